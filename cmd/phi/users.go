package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Idosegev23/finhealer/internal/cli"
	"github.com/Idosegev23/finhealer/internal/model"
	"github.com/Idosegev23/finhealer/internal/whatsapp"
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "user",
		Aliases: []string{"users"},
		Short:   "Manage user accounts",
	}
	cmd.AddCommand(userCreateCmd())
	cmd.AddCommand(userListCmd())
	return cmd
}

func userCreateCmd() *cobra.Command {
	var phone, name string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a phone number",
		Long: `Register a WhatsApp number so Phi answers it. New users start in the
reflection phase.`,
		Example: `  phi user create --phone 050-123-4567 --name "Dana"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			normalized, err := whatsapp.NormalizePhone(phone)
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			user := &model.User{Phone: normalized, Name: name}
			if err := store.CreateUser(ctx, user); err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created user %s (%s)", user.ID, user.Phone)))
			return nil
		},
	}

	cmd.Flags().StringVar(&phone, "phone", "", "WhatsApp number (required)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("phone")
	return cmd
}

func userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			users, err := store.ListUsers(ctx)
			if err != nil {
				return err
			}
			if len(users) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render("No users yet. Add one with phi user create."))
				return nil
			}

			rows := make([][]string, 0, len(users))
			for _, u := range users {
				linked := ""
				if u.PlaidToken != "" {
					linked = cli.SuccessIcon
				}
				rows = append(rows, []string{u.Phone, u.Name, string(u.Phase), cli.Money(u.MonthlyBudget), linked})
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable([]string{"PHONE", "NAME", "PHASE", "BUDGET", "BANK"}, rows))
			return nil
		},
	}
}
