package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/model"
	"github.com/Idosegev23/finhealer/internal/tui"
	"github.com/Idosegev23/finhealer/internal/whatsapp"
)

func chatCmd() *cobra.Command {
	var phone, name, logFile string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to Phi in the terminal as if over WhatsApp",
		Long: `Open a terminal chat that goes through the same conversation service as
the webhook. Replies are captured locally instead of being sent. A phone
that is not registered yet is created on start.`,
		Example: `  phi chat --phone 0501234567 --name Dana`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			normalized, err := whatsapp.NormalizePhone(phone)
			if err != nil {
				return err
			}

			// Log lines would tear the alternate screen.
			var logOut io.Writer = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
				if err != nil {
					return fmt.Errorf("failed to open log file: %w", err)
				}
				defer func() { _ = f.Close() }()
				logOut = f
			}
			level, err := common.ParseLevel(viper.GetString("logging.level"))
			if err != nil {
				return err
			}
			if err := common.SetupLoggerTo(logOut, level, viper.GetString("logging.format")); err != nil {
				return err
			}

			outbox := &whatsapp.Outbox{}
			a, err := newApp(ctx, outbox, io.Discard)
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.store.GetUserByPhone(ctx, normalized)
			switch {
			case errors.Is(err, common.ErrNotFound):
				user = &model.User{Phone: normalized, Name: name}
				if err := a.store.CreateUser(ctx, user); err != nil {
					return fmt.Errorf("failed to create user: %w", err)
				}
			case err != nil:
				return err
			}

			displayName := name
			if displayName == "" {
				displayName = user.Name
			}
			return tui.Run(ctx, tui.Config{
				Handler: a.conversation,
				Outbox:  outbox,
				Phone:   user.Phone,
				Name:    displayName,
			})
		},
	}

	cmd.Flags().StringVar(&phone, "phone", "", "WhatsApp number to chat as (required)")
	cmd.Flags().StringVar(&name, "name", "", "display name for a new user")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs here while the chat is open")
	_ = cmd.MarkFlagRequired("phone")
	return cmd
}
