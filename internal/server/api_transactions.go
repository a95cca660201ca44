package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Idosegev23/finhealer/internal/catalog"
	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/model"
	"github.com/Idosegev23/finhealer/internal/service"
	"github.com/Idosegev23/finhealer/internal/vendor"
)

const maxPageSize = 500

var errBadDate = common.Validationf("at must be YYYY-MM-DD")

// monthRange parses YYYY-MM into [first day, first day of next month).
func monthRange(s string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01", s)
	if err != nil {
		return time.Time{}, time.Time{}, common.Validationf("month must be YYYY-MM, got %q", s)
	}
	return start, start.AddDate(0, 1, 0), nil
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, common.Validationf("%s must be a non-negative integer", key)
	}
	return n, nil
}

func (s *Server) listTransactions(c *gin.Context) {
	filter := service.TransactionFilter{
		Status:    model.TransactionStatus(c.Query("status")),
		Direction: model.Direction(c.Query("direction")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		s.respondError(c, common.Validationf("unknown status %q", filter.Status))
		return
	}
	if m := c.Query("month"); m != "" {
		start, end, err := monthRange(m)
		if err != nil {
			s.respondError(c, err)
			return
		}
		filter.StartDate, filter.EndDate = &start, &end
	}
	if v := c.Query("vendor"); v != "" {
		filter.Vendor = vendor.Normalize(v)
	}

	var err error
	if filter.Limit, err = queryInt(c, "limit", 100); err != nil {
		s.respondError(c, err)
		return
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset, err = queryInt(c, "offset", 0); err != nil {
		s.respondError(c, err)
		return
	}

	txns, err := s.deps.Store.GetTransactions(c.Request.Context(), userID(c), filter)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if txns == nil {
		txns = []model.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txns, "count": len(txns)})
}

type manualTransactionRequest struct {
	Date      string          `json:"date" binding:"required"` // YYYY-MM-DD
	Vendor    string          `json:"vendor" binding:"required"`
	Category  string          `json:"category" binding:"required"`
	Direction model.Direction `json:"direction"`
	Amount    float64         `json:"amount" binding:"required,gt=0"`
}

// createTransaction stores a manual entry. The user picked the category, so
// it is confirmed immediately.
func (s *Server) createTransaction(c *gin.Context) {
	var req manualTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		s.respondError(c, common.Validationf("date must be YYYY-MM-DD"))
		return
	}
	if _, ok := catalog.Find(req.Category); !ok {
		s.respondError(c, common.Validationf("unknown category %q", req.Category))
		return
	}
	if req.Direction == "" {
		req.Direction = model.DirectionExpense
	}
	if req.Direction != model.DirectionExpense && req.Direction != model.DirectionIncome {
		s.respondError(c, common.Validationf("unknown direction %q", req.Direction))
		return
	}

	txn := model.Transaction{
		ID:               uuid.NewString(),
		UserID:           userID(c),
		Date:             date,
		Vendor:           req.Vendor,
		NormalizedVendor: vendor.Normalize(req.Vendor),
		Category:         req.Category,
		Amount:           req.Amount,
		Direction:        req.Direction,
		Status:           model.StatusConfirmed,
		Source:           model.SourceManual,
		CreatedAt:        s.now(),
	}
	if txn.NormalizedVendor == "" {
		s.respondError(c, common.Validationf("vendor %q is empty after normalization", req.Vendor))
		return
	}
	txn.Hash = txn.GenerateHash()

	inserted, err := s.deps.Store.SaveTransactions(c.Request.Context(), []model.Transaction{txn})
	if err != nil {
		s.respondError(c, err)
		return
	}
	if len(inserted) == 0 {
		s.respondError(c, common.ErrDuplicateEntry)
		return
	}
	c.JSON(http.StatusCreated, inserted[0])
}

type categoryRequest struct {
	Category string `json:"category" binding:"required"`
}

// confirmTransaction confirms one proposed transaction and teaches the
// vendor rule.
func (s *Server) confirmTransaction(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	uid := userID(c)

	txn, err := s.deps.Store.GetTransactionByID(ctx, uid, c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if _, ok := catalog.Find(req.Category); !ok {
		s.respondError(c, common.Validationf("unknown category %q", req.Category))
		return
	}
	if err := s.deps.Store.SetTransactionStatus(ctx, uid, txn.ID, model.StatusConfirmed, req.Category); err != nil {
		s.respondError(c, err)
		return
	}
	pattern, err := s.deps.Rules.Confirm(ctx, uid, txn.NormalizedVendor, req.Category)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": txn.ID, "status": model.StatusConfirmed, "rule": pattern})
}

func (s *Server) rejectTransaction(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	id := c.Param("id")
	if err := s.deps.Store.SetTransactionStatus(ctx, uid, id, model.StatusRejected, ""); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": model.StatusRejected})
}

// importOFX ingests an uploaded statement, reports the vendors classified by
// rule and asks about the first unknown vendor on WhatsApp.
func (s *Server) importOFX(c *gin.Context) {
	if s.deps.Importer == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorEnvelope{Error: APIError{Message: "statement import is not configured", Code: "unavailable"}})
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		s.respondError(c, common.Validationf("multipart field \"file\" is required"))
		return
	}
	f, err := file.Open()
	if err != nil {
		s.badRequest(c, err)
		return
	}
	defer func() { _ = f.Close() }()

	ctx := c.Request.Context()
	uid := userID(c)
	result, err := s.deps.Importer.Import(ctx, uid, f)
	if err != nil {
		s.respondError(c, err)
		return
	}

	reported, err := s.deps.Conversation.ReportAutoClassified(ctx, uid, result.Auto)
	if err != nil {
		s.logger.Warn("Imported but could not report auto-classified vendors", "user_id", uid, "error", err)
	}
	asked := false
	if len(result.Questions) > 0 {
		asked, err = s.deps.Conversation.AskQuestions(ctx, uid, result.Questions)
		if err != nil {
			s.logger.Warn("Imported but could not ask", "user_id", uid, "error", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"received":        result.Received,
		"saved":           result.Saved,
		"duplicates":      result.Duplicates,
		"auto_classified": result.AutoClassified,
		"reported":        reported,
		"questions":       len(result.Questions),
		"asked":           asked,
	})
}
