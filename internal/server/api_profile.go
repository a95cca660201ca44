package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/model"
	"github.com/Idosegev23/finhealer/internal/tax"
)

// profileMonths is how many full months the profile averages cover.
const profileMonths = 3

type profileResponse struct {
	User               *model.User `json:"user"`
	BankLinked         bool        `json:"bank_linked"`
	AvgMonthlyIncome   float64     `json:"avg_monthly_income"`
	AvgMonthlyExpenses float64     `json:"avg_monthly_expenses"`
	CurrentIncome      float64     `json:"current_month_income"`
	CurrentExpenses    float64     `json:"current_month_expenses"`
}

// getProfile returns the user with confirmed income and expense totals for
// the current month and the average of the previous full months.
func (s *Server) getProfile(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	user, err := s.deps.Store.GetUser(ctx, uid)
	if err != nil {
		s.respondError(c, err)
		return
	}

	now := s.now().UTC()
	thisMonth, _, _ := monthRange(now.Format("2006-01"))
	from := thisMonth.AddDate(0, -profileMonths, 0)
	to := thisMonth.AddDate(0, 1, 0)
	totals, err := s.deps.Store.GetMonthlyTotals(ctx, uid, from, to)
	if err != nil {
		s.respondError(c, err)
		return
	}

	resp := profileResponse{User: user, BankLinked: user.PlaidToken != ""}
	current := now.Format("2006-01")
	var pastIncome, pastExpenses float64
	for _, t := range totals {
		switch {
		case t.Month == current && t.Direction == model.DirectionIncome:
			resp.CurrentIncome = t.Amount
		case t.Month == current && t.Direction == model.DirectionExpense:
			resp.CurrentExpenses = t.Amount
		case t.Direction == model.DirectionIncome:
			pastIncome += t.Amount
		case t.Direction == model.DirectionExpense:
			pastExpenses += t.Amount
		}
	}
	resp.AvgMonthlyIncome = round2(pastIncome / profileMonths)
	resp.AvgMonthlyExpenses = round2(pastExpenses / profileMonths)
	c.JSON(http.StatusOK, resp)
}

func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

type profileUpdate struct {
	Name            *string  `json:"name"`
	MonthlyIncome   *float64 `json:"monthly_income" binding:"omitempty,gte=0"`
	MonthlyExpenses *float64 `json:"monthly_expenses" binding:"omitempty,gte=0"`
	MonthlyBudget   *float64 `json:"monthly_budget" binding:"omitempty,gte=0"`
	Phase           *string  `json:"phase"`
}

// updateProfile edits the self-reported figures. The phase only moves
// through the conversation.
func (s *Server) updateProfile(c *gin.Context) {
	var req profileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	user, err := s.deps.Store.GetUser(ctx, userID(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if req.Phase != nil && model.Phase(*req.Phase) != user.Phase {
		s.respondError(c, common.Validationf("phase is read-only"))
		return
	}
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.MonthlyIncome != nil {
		user.MonthlyIncome = *req.MonthlyIncome
	}
	if req.MonthlyExpenses != nil {
		user.MonthlyExpenses = *req.MonthlyExpenses
	}
	budgetChanged := req.MonthlyBudget != nil && *req.MonthlyBudget != user.MonthlyBudget
	if req.MonthlyBudget != nil {
		user.MonthlyBudget = *req.MonthlyBudget
	}
	if err := s.deps.Store.UpdateUserProfile(ctx, user); err != nil {
		s.respondError(c, err)
		return
	}
	if budgetChanged {
		if err := s.deps.Store.SaveBudget(ctx, &model.Budget{UserID: user.ID, Amount: user.MonthlyBudget, UpdatedAt: s.now()}); err != nil {
			s.respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, user)
}

type taxRequest struct {
	Gross        decimal.Decimal  `json:"gross"`
	CreditPoints *decimal.Decimal `json:"credit_points"`
}

func (s *Server) calculateTax(c *gin.Context) {
	var req taxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	in := tax.Input{Gross: req.Gross, CreditPoints: tax.DefaultCreditPoints}
	if req.CreditPoints != nil {
		in.CreditPoints = *req.CreditPoints
	}
	res, err := s.cfg.TaxTable.Calculate(in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) linkerUnavailable(c *gin.Context) bool {
	if s.deps.Linker != nil {
		return false
	}
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorEnvelope{Error: APIError{Message: "bank linking is not configured", Code: "unavailable"}})
	return true
}

func (s *Server) createLinkToken(c *gin.Context) {
	if s.linkerUnavailable(c) {
		return
	}
	token, err := s.deps.Linker.CreateLinkToken(c.Request.Context(), userID(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"link_token": token})
}

type exchangeRequest struct {
	PublicToken string `json:"public_token" binding:"required"`
}

// exchangePublicToken stores the access token for the savings sync.
func (s *Server) exchangePublicToken(c *gin.Context) {
	if s.linkerUnavailable(c) {
		return
	}
	var req exchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	access, itemID, err := s.deps.Linker.ExchangePublicToken(ctx, req.PublicToken)
	if err != nil {
		s.respondError(c, err)
		return
	}
	user, err := s.deps.Store.GetUser(ctx, userID(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	user.PlaidToken = access
	if err := s.deps.Store.UpdateUserProfile(ctx, user); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item_id": itemID, "bank_linked": true})
}

// handleCron runs a job for every user.
func (s *Server) handleCron(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := s.deps.Jobs.RunByName(c.Request.Context(), name)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}
