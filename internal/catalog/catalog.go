// Package catalog is the fixed, ordered list of categories every
// classification resolves to.
package catalog

import (
	"strings"

	"github.com/Idosegev23/finhealer/internal/model"
)

// Groups.
const (
	GroupLiving    = "מחיה"
	GroupHousing   = "דיור"
	GroupTransport = "תחבורה"
	GroupHealth    = "בריאות"
	GroupLeisure   = "פנאי"
	GroupFinancial = "פיננסים"
	GroupSavings   = "חיסכון"
	GroupIncome    = "הכנסות"
)

// Fallback is the category used when nothing else matches.
const Fallback = "אחר"

// categories is in matching order: the first keyword hit wins, so narrow
// categories come before broad ones.
var categories = []model.Category{
	{Name: "מזון", Group: GroupLiving, Type: model.CategoryTypeExpense, Keywords: []string{
		"שופרסל", "רמי לוי", "ויקטורי", "יוחננוף", "מגה", "טיב טעם", "am pm", "סופרמרקט", "מכולת", "ירקות", "מאפייה",
	}},
	{Name: "מסעדות", Group: GroupLeisure, Type: model.CategoryTypeExpense, Keywords: []string{
		"מקדונלדס", "wolt", "10bis", "ארומה", "מסעדה", "קפה", "פיצה", "בורגר", "סושי", "פלאפל", "cafe",
	}},
	{Name: "בריאות", Group: GroupHealth, Type: model.CategoryTypeExpense, Keywords: []string{
		"סופר פארם", "be", "מכבי", "כללית", "מאוחדת", "לאומית", "מרפאה", "רופא", "שיניים", "pharm",
	}},
	{Name: "טיפוח", Group: GroupHealth, Type: model.CategoryTypeExpense, Keywords: []string{
		"מספרה", "קוסמטיקה",
	}},
	{Name: "דלק", Group: GroupTransport, Type: model.CategoryTypeExpense, Keywords: []string{
		"פז", "דלק", "סונול", "דור אלון", "ten", "yellow",
	}},
	{Name: "תחבורה ציבורית", Group: GroupTransport, Type: model.CategoryTypeExpense, Keywords: []string{
		"רב קו", "moovit", "רכבת ישראל", "אגד", "דן",
	}},
	{Name: "מוניות וחניה", Group: GroupTransport, Type: model.CategoryTypeExpense, Keywords: []string{
		"gett", "פנגו", "חניון", "כביש", "yango",
	}},
	{Name: "תקשורת", Group: GroupHousing, Type: model.CategoryTypeExpense, Keywords: []string{
		"פרטנר", "סלקום", "בזק", "הוט", "גולן טלקום",
	}},
	{Name: "חשבונות בית", Group: GroupHousing, Type: model.CategoryTypeExpense, Keywords: []string{
		"חברת החשמל", "מי", "תאגיד", "ארנונה", "עירייה", "סופרגז", "אמישראגז",
	}},
	{Name: "שכר דירה", Group: GroupHousing, Type: model.CategoryTypeExpense, Keywords: []string{
		"שכר דירה", "שכירות",
	}},
	{Name: "משכנתא", Group: GroupHousing, Type: model.CategoryTypeExpense, Keywords: []string{
		"משכנתא", "משכנתאות",
	}},
	{Name: "מנויים", Group: GroupLeisure, Type: model.CategoryTypeExpense, Keywords: []string{
		"netflix", "spotify", "apple", "google", "yes", "disney", "youtube",
	}},
	{Name: "בילויים", Group: GroupLeisure, Type: model.CategoryTypeExpense, Keywords: []string{
		"סינמה", "קולנוע", "הופעה", "תיאטרון", "eventim", "לאן",
	}},
	{Name: "ביגוד", Group: GroupLiving, Type: model.CategoryTypeExpense, Keywords: []string{
		"קסטרו", "זארה", "zara", "h m", "פוקס", "fox", "גולף", "terminal x",
	}},
	{Name: "חינוך", Group: GroupLiving, Type: model.CategoryTypeExpense, Keywords: []string{
		"גן", "צהרון", "אוניברסיטה", "מכללה", "חוג", "שכר לימוד",
	}},
	{Name: "ביטוחים", Group: GroupFinancial, Type: model.CategoryTypeExpense, Keywords: []string{
		"ביטוח", "הראל", "מגדל", "הפניקס", "כלל", "מנורה", "איילון",
	}},
	{Name: "הלוואות", Group: GroupFinancial, Type: model.CategoryTypeExpense, Keywords: []string{
		"הלוואה", "החזר הלוואה",
	}},
	{Name: "עמלות בנק", Group: GroupFinancial, Type: model.CategoryTypeExpense, Keywords: []string{
		"עמלה", "עמלת", "דמי כרטיס",
	}},
	{Name: "חיסכון והשקעות", Group: GroupSavings, Type: model.CategoryTypeExpense, Keywords: []string{
		"קופת גמל", "קרן השתלמות", "פיקדון", "השקעה",
	}},
	{Name: "משכורת", Group: GroupIncome, Type: model.CategoryTypeIncome, Keywords: []string{
		"משכורת", "שכר", "salary",
	}},
	{Name: "הכנסה מעסק", Group: GroupIncome, Type: model.CategoryTypeIncome, Keywords: []string{
		"חשבונית", "תשלום מלקוח",
	}},
	{Name: "קצבאות", Group: GroupIncome, Type: model.CategoryTypeIncome, Keywords: []string{
		"ביטוח לאומי", "קצבה", "מענק",
	}},
	{Name: Fallback, Group: GroupLiving, Type: model.CategoryTypeExpense},
}

var byName = func() map[string]int {
	m := make(map[string]int, len(categories))
	for i, c := range categories {
		m[c.Name] = i
	}
	return m
}()

// All returns a copy of the catalog in matching order.
func All() []model.Category {
	out := make([]model.Category, len(categories))
	copy(out, categories)
	return out
}

// Find looks a category up by exact name, ignoring surrounding whitespace.
func Find(name string) (model.Category, bool) {
	i, ok := byName[strings.TrimSpace(name)]
	if !ok {
		return model.Category{}, false
	}
	return categories[i], true
}

// Exists reports whether name is a catalog category.
func Exists(name string) bool {
	_, ok := Find(name)
	return ok
}

// Names returns category names in catalog order.
func Names() []string {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.Name
	}
	return names
}

// Groups returns the distinct groups in first-seen order.
func Groups() []string {
	seen := make(map[string]bool)
	var groups []string
	for _, c := range categories {
		if !seen[c.Group] {
			seen[c.Group] = true
			groups = append(groups, c.Group)
		}
	}
	return groups
}

// ByGroup returns the categories of a group in catalog order.
func ByGroup(group string) []model.Category {
	var out []model.Category
	for _, c := range categories {
		if c.Group == group {
			out = append(out, c)
		}
	}
	return out
}

// MatchKeyword returns the first category with a keyword appearing as whole
// words in the normalized vendor.
func MatchKeyword(normalizedVendor string) (model.Category, bool) {
	if normalizedVendor == "" {
		return model.Category{}, false
	}
	padded := " " + normalizedVendor + " "
	for _, c := range categories {
		for _, kw := range c.Keywords {
			if strings.Contains(padded, " "+kw+" ") {
				return c, true
			}
		}
	}
	return model.Category{}, false
}
