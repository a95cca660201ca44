package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Idosegev23/finhealer/internal/certs"
	"github.com/Idosegev23/finhealer/internal/config"
	"github.com/Idosegev23/finhealer/internal/ofx"
	"github.com/Idosegev23/finhealer/internal/server"
	"github.com/Idosegev23/finhealer/internal/tax"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook and dashboard API server",
		Long: `Run the HTTP server that receives WhatsApp messages from Twilio, serves
the dashboard API and exposes the cron endpoints for periodic jobs.`,
		Example: `  # Listen on the configured address
  phi serve

  # Override the address
  phi serve --addr :9090

  # HTTPS on localhost, e.g. for Plaid Link redirects
  phi serve --tls`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	cmd.Flags().Bool("tls", false, "serve HTTPS with a self-signed development certificate")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.tls", cmd.Flags().Lookup("tls"))
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, nil, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.Close()

	deps := server.Deps{
		Store:        a.store,
		Conversation: a.conversation,
		Rules:        a.learner,
		Bulk:         a.bulk,
		Insights:     a.behavior,
		Jobs:         a.runner,
		Importer:     ofx.NewImporter(a.classifier),
	}
	if a.plaid != nil {
		deps.Linker = a.plaid
	}

	cfg := server.Config{
		TaxTable:        tax.Table2024(),
		Addr:            viper.GetString("server.addr"),
		JWTSecret:       viper.GetString("server.jwt_secret"),
		CronSecret:      viper.GetString("server.cron_secret"),
		AuthSecret:      viper.GetString("server.auth_secret"),
		TwilioAuthToken: viper.GetString("whatsapp.auth_token"),
		PublicURL:       viper.GetString("server.public_url"),
		TokenTTL:        viper.GetDuration("server.token_ttl"),
		WebhookTimeout:  viper.GetDuration("server.webhook_timeout"),
	}
	if viper.GetBool("server.tls") {
		dir := config.ExpandPath(viper.GetString("server.tls_dir"))
		cfg.TLS, err = certs.NewManager(dir).TLSConfig()
		if err != nil {
			return fmt.Errorf("failed to prepare certificate: %w", err)
		}
	}

	srv, err := server.New(cfg, deps)
	if err != nil {
		return fmt.Errorf("failed to configure server: %w", err)
	}

	slog.Debug("Jobs registered", "jobs", a.runner.Names())
	return srv.Run(ctx)
}
