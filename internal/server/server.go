// Package server exposes the WhatsApp webhook, the dashboard API and the
// cron endpoints over HTTP.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Idosegev23/finhealer/internal/behavior"
	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/engine"
	"github.com/Idosegev23/finhealer/internal/jobs"
	"github.com/Idosegev23/finhealer/internal/model"
	"github.com/Idosegev23/finhealer/internal/service"
	"github.com/Idosegev23/finhealer/internal/tax"
)

// Config holds the HTTP settings.
type Config struct {
	TaxTable tax.Table
	// TLS, when set, serves HTTPS.
	TLS        *tls.Config
	Addr       string
	JWTSecret  string
	CronSecret string
	// AuthSecret is the shared secret exchanged for a dashboard token.
	AuthSecret string
	// TwilioAuthToken and PublicURL enable webhook signature checks when
	// both are set.
	TwilioAuthToken string
	PublicURL       string
	TokenTTL        time.Duration
	WebhookTimeout  time.Duration
}

// Validate checks the secrets the server cannot run without.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("%w: server.jwt_secret", common.ErrMissingConfig)
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("%w: server.jwt_secret must be at least 16 characters", common.ErrInvalidConfig)
	}
	if c.CronSecret == "" {
		return fmt.Errorf("%w: server.cron_secret", common.ErrMissingConfig)
	}
	return nil
}

// Conversation handles WhatsApp traffic.
type Conversation interface {
	HandleInbound(ctx context.Context, phone, text string) error
	AskQuestions(ctx context.Context, userID string, questions []engine.Question) (bool, error)
	ReportAutoClassified(ctx context.Context, userID string, autos []engine.AutoClassification) (int, error)
}

// Rules manages learned vendor rules.
type Rules interface {
	List(ctx context.Context, userID string) ([]model.VendorPattern, error)
	Confirm(ctx context.Context, userID, vendor, category string) (*model.VendorPattern, error)
	Correct(ctx context.Context, userID, vendor, category string) (*model.VendorPattern, string, error)
	Forget(ctx context.Context, userID, vendor string) error
}

// Bulk groups proposed transactions for approval.
type Bulk interface {
	Propose(ctx context.Context, userID string) ([]engine.GroupProposal, error)
	ApplyGroup(ctx context.Context, userID, vendor, category string) (int, error)
}

// Insights runs the behavior detectors.
type Insights interface {
	Analyze(ctx context.Context, userID string, now time.Time) ([]behavior.Insight, error)
	DetectRecurring(ctx context.Context, userID string, now time.Time) ([]behavior.RecurringCandidate, error)
}

// JobRunner runs a periodic job by name.
type JobRunner interface {
	RunByName(ctx context.Context, name string) (*jobs.RunSummary, error)
}

// StatementImporter ingests an uploaded statement.
type StatementImporter interface {
	Import(ctx context.Context, userID string, r io.Reader) (*engine.IncomingResult, error)
}

// BankLinker connects a bank account through Plaid Link.
type BankLinker interface {
	CreateLinkToken(ctx context.Context, userID string) (string, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (string, string, error)
}

// Deps are the components behind the routes. Importer and Linker are
// optional; their routes answer 503 when nil.
type Deps struct {
	Store        service.Storage
	Conversation Conversation
	Rules        Rules
	Bulk         Bulk
	Insights     Insights
	Jobs         JobRunner
	Importer     StatementImporter
	Linker       BankLinker
}

// Server is the HTTP front end.
type Server struct {
	engine *gin.Engine
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
	cfg    Config
}

// New builds the router.
func New(cfg Config, deps Deps) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Store == nil || deps.Conversation == nil || deps.Rules == nil ||
		deps.Bulk == nil || deps.Insights == nil || deps.Jobs == nil {
		return nil, fmt.Errorf("%w: server dependencies are incomplete", common.ErrInvalidConfig)
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.WebhookTimeout <= 0 {
		cfg.WebhookTimeout = 30 * time.Second
	}
	if len(cfg.TaxTable.Brackets) == 0 {
		cfg.TaxTable = tax.Table2024()
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: slog.Default().With("component", "server"),
		now:    time.Now,
	}
	s.engine = s.routes()
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         s.cfg.TLS,
	}

	errCh := make(chan error, 1)
	go func() {
		if srv.TLSConfig != nil {
			s.logger.Info("HTTPS server listening", "addr", s.cfg.Addr)
			errCh <- srv.ListenAndServeTLS("", "")
			return
		}
		s.logger.Info("HTTP server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("Shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/webhook/whatsapp", s.handleWebhook)
	r.POST("/auth/token", s.handleToken)

	cron := r.Group("/cron", s.requireCronSecret())
	cron.POST("/alerts", s.handleCron(jobs.NameAlerts))
	cron.POST("/savings-sync", s.handleCron(jobs.NameSavingsSync))
	cron.POST("/milestones", s.handleCron(jobs.NameMilestones))

	api := r.Group("/api", s.requireUser())

	api.GET("/profile", s.getProfile)
	api.PUT("/profile", s.updateProfile)

	api.GET("/transactions", s.listTransactions)
	api.POST("/transactions", s.createTransaction)
	api.POST("/transactions/:id/confirm", s.confirmTransaction)
	api.POST("/transactions/:id/reject", s.rejectTransaction)
	api.POST("/import/ofx", s.importOFX)

	api.GET("/classify/bulk", s.listBulkProposals)
	api.POST("/classify/bulk", s.applyBulk)

	api.GET("/rules", s.listRules)
	api.PUT("/rules/:vendor", s.correctRule)
	api.DELETE("/rules/:vendor", s.forgetRule)

	api.GET("/insights", s.getInsights)
	api.GET("/recurring", s.getRecurring)
	api.GET("/summary", s.getSummary)

	api.GET("/loans", s.listLoans)
	api.POST("/loans", s.createLoan)
	api.PUT("/loans/:id", s.updateLoan)
	api.DELETE("/loans/:id", s.deactivateLoan)

	api.GET("/income", s.listIncome)
	api.POST("/income", s.createIncome)
	api.PUT("/income/:id", s.updateIncome)
	api.DELETE("/income/:id", s.deactivateIncome)

	api.GET("/goals", s.listGoals)
	api.POST("/goals", s.createGoal)
	api.PUT("/goals/:id", s.updateGoal)
	api.DELETE("/goals/:id", s.deactivateGoal)

	api.GET("/consolidations", s.listConsolidations)
	api.POST("/consolidations", s.createConsolidation)
	api.POST("/consolidations/:id/status", s.updateConsolidationStatus)

	api.GET("/alerts", s.listAlerts)
	api.POST("/tax", s.calculateTax)

	api.POST("/plaid/link-token", s.createLinkToken)
	api.POST("/plaid/exchange", s.exchangePublicToken)

	return r
}

// requestLog logs one line per request.
func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
