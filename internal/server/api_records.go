package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/model"
)

// activeOnly reads ?all=true, which includes deactivated records.
func activeOnly(c *gin.Context) bool {
	return c.Query("all") != "true"
}

func parseOptionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, common.Validationf("date must be YYYY-MM-DD, got %q", s)
	}
	return &t, nil
}

type loanRequest struct {
	StartDate      string  `json:"start_date"`
	Lender         string  `json:"lender" binding:"required"`
	Principal      float64 `json:"principal" binding:"gte=0"`
	Balance        float64 `json:"balance" binding:"gte=0"`
	MonthlyPayment float64 `json:"monthly_payment" binding:"gte=0"`
	InterestRate   float64 `json:"interest_rate" binding:"gte=0"`
}

func (r loanRequest) toLoan(userID string) (*model.Loan, error) {
	start, err := parseOptionalDate(r.StartDate)
	if err != nil {
		return nil, err
	}
	loan := &model.Loan{
		UserID:         userID,
		Lender:         r.Lender,
		Principal:      r.Principal,
		Balance:        r.Balance,
		MonthlyPayment: r.MonthlyPayment,
		InterestRate:   r.InterestRate,
		Active:         true,
	}
	if start != nil {
		loan.StartDate = *start
	}
	return loan, nil
}

func (s *Server) listLoans(c *gin.Context) {
	loans, err := s.deps.Store.ListLoans(c.Request.Context(), userID(c), activeOnly(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if loans == nil {
		loans = []model.Loan{}
	}
	c.JSON(http.StatusOK, gin.H{"loans": loans})
}

func (s *Server) createLoan(c *gin.Context) {
	var req loanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	loan, err := req.toLoan(userID(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.deps.Store.CreateLoan(c.Request.Context(), loan); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, loan)
}

func (s *Server) updateLoan(c *gin.Context) {
	var req loanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	loan, err := req.toLoan(userID(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	loan.ID = c.Param("id")
	if err := s.deps.Store.UpdateLoan(c.Request.Context(), loan); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

func (s *Server) deactivateLoan(c *gin.Context) {
	if err := s.deps.Store.DeactivateLoan(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type incomeRequest struct {
	Name          string  `json:"name" binding:"required"`
	Kind          string  `json:"kind"`
	MonthlyAmount float64 `json:"monthly_amount" binding:"gte=0"`
}

var incomeKinds = map[string]bool{"salary": true, "freelance": true, "allowance": true, "rent": true, "other": true}

func (r incomeRequest) toSource(userID string) (*model.IncomeSource, error) {
	kind := r.Kind
	if kind == "" {
		kind = "other"
	}
	if !incomeKinds[kind] {
		return nil, common.Validationf("unknown income kind %q", kind)
	}
	return &model.IncomeSource{
		UserID:        userID,
		Name:          r.Name,
		Kind:          kind,
		MonthlyAmount: r.MonthlyAmount,
		Active:        true,
	}, nil
}

func (s *Server) listIncome(c *gin.Context) {
	sources, err := s.deps.Store.ListIncomeSources(c.Request.Context(), userID(c), activeOnly(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if sources == nil {
		sources = []model.IncomeSource{}
	}
	c.JSON(http.StatusOK, gin.H{"income": sources})
}

func (s *Server) createIncome(c *gin.Context) {
	var req incomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	src, err := req.toSource(userID(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.deps.Store.CreateIncomeSource(c.Request.Context(), src); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, src)
}

func (s *Server) updateIncome(c *gin.Context) {
	var req incomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	src, err := req.toSource(userID(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	src.ID = c.Param("id")
	if err := s.deps.Store.UpdateIncomeSource(c.Request.Context(), src); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, src)
}

func (s *Server) deactivateIncome(c *gin.Context) {
	if err := s.deps.Store.DeactivateIncomeSource(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type goalRequest struct {
	Deadline      string  `json:"deadline"`
	Name          string  `json:"name" binding:"required"`
	AccountID     string  `json:"account_id"`
	TargetAmount  float64 `json:"target_amount" binding:"gt=0"`
	CurrentAmount float64 `json:"current_amount" binding:"gte=0"`
}

func (s *Server) listGoals(c *gin.Context) {
	goals, err := s.deps.Store.ListGoals(c.Request.Context(), userID(c), activeOnly(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	type goalView struct {
		model.Goal
		Progress float64 `json:"progress"`
	}
	views := make([]goalView, 0, len(goals))
	for _, g := range goals {
		views = append(views, goalView{Goal: g, Progress: g.Progress()})
	}
	c.JSON(http.StatusOK, gin.H{"goals": views})
}

func (s *Server) createGoal(c *gin.Context) {
	var req goalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	deadline, err := parseOptionalDate(req.Deadline)
	if err != nil {
		s.respondError(c, err)
		return
	}
	goal := &model.Goal{
		UserID:        userID(c),
		Name:          req.Name,
		AccountID:     req.AccountID,
		TargetAmount:  req.TargetAmount,
		CurrentAmount: req.CurrentAmount,
		Deadline:      deadline,
		Active:        true,
	}
	if err := s.deps.Store.CreateGoal(c.Request.Context(), goal); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, goal)
}

// updateGoal edits a goal. The last notified milestone is kept so an edit
// does not resend old notifications.
func (s *Server) updateGoal(c *gin.Context) {
	var req goalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	deadline, err := parseOptionalDate(req.Deadline)
	if err != nil {
		s.respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	goal, err := s.deps.Store.GetGoal(ctx, userID(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	goal.Name = req.Name
	goal.AccountID = req.AccountID
	goal.TargetAmount = req.TargetAmount
	goal.CurrentAmount = req.CurrentAmount
	goal.Deadline = deadline
	if err := s.deps.Store.UpdateGoal(ctx, goal); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, goal)
}

func (s *Server) deactivateGoal(c *gin.Context) {
	if err := s.deps.Store.DeactivateGoal(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type consolidationRequest struct {
	Notes   string   `json:"notes"`
	LoanIDs []string `json:"loan_ids" binding:"required,min=1"`
}

func (s *Server) listConsolidations(c *gin.Context) {
	reqs, err := s.deps.Store.ListConsolidationRequests(c.Request.Context(), userID(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if reqs == nil {
		reqs = []model.ConsolidationRequest{}
	}
	c.JSON(http.StatusOK, gin.H{"consolidations": reqs})
}

func (s *Server) createConsolidation(c *gin.Context) {
	var req consolidationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	cr := &model.ConsolidationRequest{UserID: userID(c), LoanIDs: req.LoanIDs, Notes: req.Notes}
	if err := s.deps.Store.CreateConsolidationRequest(c.Request.Context(), cr); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cr)
}

type statusRequest struct {
	Status model.ConsolidationStatus `json:"status" binding:"required"`
}

func (s *Server) updateConsolidationStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	if !req.Status.Valid() {
		s.respondError(c, common.Validationf("unknown status %q", req.Status))
		return
	}
	ctx := c.Request.Context()
	uid := userID(c)
	if err := s.deps.Store.UpdateConsolidationStatus(ctx, uid, c.Param("id"), req.Status); err != nil {
		s.respondError(c, err)
		return
	}
	cr, err := s.deps.Store.GetConsolidationRequest(ctx, uid, c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cr)
}

func (s *Server) listAlerts(c *gin.Context) {
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		s.respondError(c, err)
		return
	}
	alerts, err := s.deps.Store.ListAlerts(c.Request.Context(), userID(c), limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if alerts == nil {
		alerts = []model.Alert{}
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}
