package model

// CategoryType indicates whether a category is for income or expense.
type CategoryType string

const (
	// CategoryTypeIncome represents categories for income transactions.
	CategoryTypeIncome CategoryType = "income"
	// CategoryTypeExpense represents categories for expense transactions.
	CategoryTypeExpense CategoryType = "expense"
)

// Category is one entry of the static category catalog.
type Category struct {
	Name     string
	Group    string // parent super-group
	Type     CategoryType
	Keywords []string
}
