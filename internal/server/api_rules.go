package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Idosegev23/finhealer/internal/behavior"
	"github.com/Idosegev23/finhealer/internal/engine"
	"github.com/Idosegev23/finhealer/internal/model"
)

func (s *Server) listRules(c *gin.Context) {
	rules, err := s.deps.Rules.List(c.Request.Context(), userID(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if rules == nil {
		rules = []model.VendorPattern{}
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

// correctRule replaces a vendor's category. Existing transactions keep
// theirs.
func (s *Server) correctRule(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	pattern, previous, err := s.deps.Rules.Correct(c.Request.Context(), userID(c), c.Param("vendor"), req.Category)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rule": pattern, "previous_category": previous})
}

func (s *Server) forgetRule(c *gin.Context) {
	if err := s.deps.Rules.Forget(c.Request.Context(), userID(c), c.Param("vendor")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listBulkProposals(c *gin.Context) {
	proposals, err := s.deps.Bulk.Propose(c.Request.Context(), userID(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if proposals == nil {
		proposals = []engine.GroupProposal{}
	}
	c.JSON(http.StatusOK, gin.H{"proposals": proposals})
}

type bulkApplyRequest struct {
	Groups []struct {
		Vendor   string `json:"vendor" binding:"required"`
		Category string `json:"category" binding:"required"`
	} `json:"groups" binding:"required,min=1,dive"`
}

// applyBulk approves vendor groups. Groups are applied in order and the
// first failure stops the request; earlier groups stay applied.
func (s *Server) applyBulk(c *gin.Context) {
	var req bulkApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	uid := userID(c)

	applied := make(map[string]int, len(req.Groups))
	total := 0
	for _, g := range req.Groups {
		n, err := s.deps.Bulk.ApplyGroup(ctx, uid, g.Vendor, g.Category)
		if err != nil {
			s.respondError(c, err)
			return
		}
		applied[g.Vendor] = n
		total += n
	}
	c.JSON(http.StatusOK, gin.H{"applied": applied, "confirmed": total})
}

// asOf reads ?at=YYYY-MM-DD, defaulting to now.
func (s *Server) asOf(c *gin.Context) (time.Time, bool) {
	raw := c.Query("at")
	if raw == "" {
		return s.now(), true
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		s.respondError(c, errBadDate)
		return time.Time{}, false
	}
	return t, true
}

func (s *Server) getInsights(c *gin.Context) {
	at, ok := s.asOf(c)
	if !ok {
		return
	}
	insights, err := s.deps.Insights.Analyze(c.Request.Context(), userID(c), at)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if insights == nil {
		insights = []behavior.Insight{}
	}
	c.JSON(http.StatusOK, gin.H{"insights": insights})
}

func (s *Server) getRecurring(c *gin.Context) {
	at, ok := s.asOf(c)
	if !ok {
		return
	}
	recurring, err := s.deps.Insights.DetectRecurring(c.Request.Context(), userID(c), at)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if recurring == nil {
		recurring = []behavior.RecurringCandidate{}
	}
	c.JSON(http.StatusOK, gin.H{"recurring": recurring})
}

// getSummary returns confirmed spending per category for ?month=YYYY-MM,
// the current month by default.
func (s *Server) getSummary(c *gin.Context) {
	month := c.Query("month")
	if month == "" {
		month = s.now().UTC().Format("2006-01")
	}
	start, end, err := monthRange(month)
	if err != nil {
		s.respondError(c, err)
		return
	}
	summary, err := s.deps.Store.GetCategorySummary(c.Request.Context(), userID(c), start, end)
	if err != nil {
		s.respondError(c, err)
		return
	}
	total := 0.0
	for _, v := range summary {
		total += v
	}
	c.JSON(http.StatusOK, gin.H{"month": month, "categories": summary, "total": total})
}
