package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/Idosegev23/finhealer/internal/behavior"
	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/composer"
	"github.com/Idosegev23/finhealer/internal/config"
	"github.com/Idosegev23/finhealer/internal/conversation"
	"github.com/Idosegev23/finhealer/internal/engine"
	"github.com/Idosegev23/finhealer/internal/jobs"
	"github.com/Idosegev23/finhealer/internal/learning"
	"github.com/Idosegev23/finhealer/internal/llm"
	"github.com/Idosegev23/finhealer/internal/model"
	"github.com/Idosegev23/finhealer/internal/plaid"
	"github.com/Idosegev23/finhealer/internal/router"
	"github.com/Idosegev23/finhealer/internal/storage"
	"github.com/Idosegev23/finhealer/internal/whatsapp"
)

// app holds the components a command needs. Fields beyond store are only
// populated by newApp.
type app struct {
	store        *storage.SQLiteStorage
	learner      *learning.Engine
	classifier   *engine.Classifier
	bulk         *engine.BulkClassifier
	behavior     *behavior.Engine
	conversation *conversation.Service
	runner       *jobs.Runner
	plaid        *plaid.Client
	llm          *llm.ManagedClient
	policy       config.Policy
}

// initStorage opens the database with path expansion and runs migrations.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/phi/phi.db"
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// newApp wires the full component graph around gateway. A nil gateway picks
// Twilio when configured and prints to out otherwise.
func newApp(ctx context.Context, gateway whatsapp.Gateway, out io.Writer) (*app, error) {
	store, err := initStorage(ctx)
	if err != nil {
		return nil, err
	}

	a := &app{store: store, policy: config.LoadPolicy(viper.GetViper())}
	a.learner = learning.New(store, a.policy)
	a.classifier = engine.NewClassifier(store, a.learner, a.policy)
	a.bulk = engine.NewBulkClassifier(store, a.learner, a.policy)
	a.behavior = behavior.NewEngine(store, a.policy)

	if gateway == nil {
		gateway, err = gatewayFromConfig(out)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	llmCfg := llmConfig()
	var client llm.Client
	if llmCfg.Enabled() {
		a.llm, err = llm.NewClient(llmCfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		client = a.llm
	} else {
		common.LogDebug("LLM not configured, replies use templates", common.Fields{"provider": llmCfg.Provider})
	}

	r := router.New(a.learner, store, store, a.behavior, a.policy)
	a.conversation = conversation.New(store, r, composer.Select(client), gateway, a.learner)

	// A nil *plaid.Client must not reach the job as a non-nil interface.
	var balances plaid.BalanceSource
	plaidCfg := plaidConfig()
	if plaidCfg.Enabled() {
		a.plaid, err = plaid.NewClient(plaidCfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create Plaid client: %w", err)
		}
		balances = a.plaid
	}

	a.runner = jobs.NewRunner(store, viper.GetInt("jobs.concurrency"),
		jobs.NewAlertScan(store, a.behavior, a.conversation),
		jobs.NewSavingsSync(store, balances),
		jobs.NewMilestones(store, a.conversation),
	)
	return a, nil
}

// Close releases the database and background goroutines.
func (a *app) Close() {
	if a.llm != nil {
		a.llm.Close()
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("Failed to close database", "error", err)
	}
}

func gatewayFromConfig(out io.Writer) (whatsapp.Gateway, error) {
	cfg := whatsappConfig()
	if !cfg.Enabled() {
		slog.Debug("WhatsApp not configured, printing outbound messages")
		return whatsapp.NewConsoleGateway(out), nil
	}
	gw, err := whatsapp.NewTwilioGateway(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create WhatsApp gateway: %w", err)
	}
	return gw, nil
}

func whatsappConfig() whatsapp.Config {
	return whatsapp.Config{
		AccountSID: viper.GetString("whatsapp.account_sid"),
		AuthToken:  viper.GetString("whatsapp.auth_token"),
		From:       viper.GetString("whatsapp.from"),
		BaseURL:    viper.GetString("whatsapp.base_url"),
		Timeout:    viper.GetDuration("whatsapp.timeout"),
		MaxRetries: viper.GetInt("whatsapp.max_retries"),
		RetryDelay: viper.GetDuration("whatsapp.retry_delay"),
	}
}

func llmConfig() llm.Config {
	return llm.Config{
		Provider:    viper.GetString("llm.provider"),
		APIKey:      viper.GetString("llm.api_key"),
		Model:       viper.GetString("llm.model"),
		BaseURL:     viper.GetString("llm.base_url"),
		MaxRetries:  viper.GetInt("llm.max_retries"),
		RetryDelay:  viper.GetDuration("llm.retry_delay"),
		CacheTTL:    viper.GetDuration("llm.cache_ttl"),
		Timeout:     viper.GetDuration("llm.timeout"),
		RateLimit:   viper.GetInt("llm.rate_limit"),
		Temperature: viper.GetFloat64("llm.temperature"),
		MaxTokens:   viper.GetInt("llm.max_tokens"),
	}
}

func plaidConfig() plaid.Config {
	return plaid.Config{
		ClientID:    viper.GetString("plaid.client_id"),
		Secret:      viper.GetString("plaid.secret"),
		Environment: viper.GetString("plaid.environment"),
	}
}

func backupDir(store *storage.SQLiteStorage) string {
	if dir := viper.GetString("database.backup_dir"); dir != "" {
		return config.ExpandPath(dir)
	}
	return filepath.Join(filepath.Dir(store.Path()), "backups")
}

// lookupUser resolves a phone number as typed by an operator.
func lookupUser(ctx context.Context, store *storage.SQLiteStorage, phone string) (*model.User, error) {
	if phone == "" {
		return nil, common.Validationf("--phone is required")
	}
	normalized, err := whatsapp.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	user, err := store.GetUserByPhone(ctx, normalized)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NewUserError(
				fmt.Sprintf("No user with phone %s. Add one with: phi user create --phone %s", normalized, phone), err)
		}
		return nil, err
	}
	return user, nil
}
