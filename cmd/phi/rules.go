package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Idosegev23/finhealer/internal/cli"
	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/config"
	"github.com/Idosegev23/finhealer/internal/learning"
	"github.com/Idosegev23/finhealer/internal/model"
	"github.com/Idosegev23/finhealer/internal/vendor"
)

// maxVendorTypo is the edit distance tolerated when resolving a typed vendor.
const maxVendorTypo = 3

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rules",
		Aliases: []string{"rule"},
		Short:   "Inspect and edit learned vendor rules",
		Long: `Every confirmed answer teaches Phi a vendor → category rule. These
commands show what a user's rules are and let an operator fix them.
Corrections apply to future transactions only.`,
		Example: `  phi rules list --phone 0501234567
  phi rules correct --phone 0501234567 "סופר פארם" מזון
  phi rules forget --phone 0501234567 netflix`,
	}

	cmd.PersistentFlags().String("phone", "", "user's WhatsApp number")
	_ = cmd.MarkPersistentFlagRequired("phone")

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesForgetCmd())
	cmd.AddCommand(rulesCorrectCmd())
	return cmd
}

// withRules opens storage and a learning engine for the --phone user.
func withRules(cmd *cobra.Command, fn func(ctx context.Context, user *model.User, rules *learning.Engine) error) error {
	ctx := cmd.Context()
	phone, _ := cmd.Flags().GetString("phone")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	user, err := lookupUser(ctx, store, phone)
	if err != nil {
		return err
	}
	return fn(ctx, user, learning.New(store, config.LoadPolicy(viper.GetViper())))
}

// resolveVendor maps a typed name onto one of the user's rule vendors.
// Names that match nothing pass through unchanged.
func resolveVendor(ctx context.Context, cmd *cobra.Command, rules *learning.Engine, userID, typed string) (string, error) {
	patterns, err := rules.List(ctx, userID)
	if err != nil {
		return "", err
	}
	known := make([]string, 0, len(patterns))
	for _, p := range patterns {
		known = append(known, p.Vendor)
	}

	match, ok := vendor.Closest(typed, known, maxVendorTypo)
	if !ok {
		return typed, nil
	}
	if match != vendor.Normalize(typed) {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo(fmt.Sprintf("Using rule %q for %q", match, typed)))
	}
	return match, nil
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List a user's rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRules(cmd, func(ctx context.Context, user *model.User, rules *learning.Engine) error {
				patterns, err := rules.List(ctx, user.ID)
				if err != nil {
					return err
				}
				if len(patterns) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render("No rules learned yet."))
					return nil
				}

				rows := make([][]string, 0, len(patterns))
				for _, p := range patterns {
					rows = append(rows, []string{
						p.Vendor,
						p.Category,
						strconv.Itoa(p.Confidence) + "%",
						strconv.Itoa(p.ConfirmationCount),
						p.LastUpdated.Local().Format("2006-01-02"),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable([]string{"VENDOR", "CATEGORY", "CONFIDENCE", "CONFIRMED", "UPDATED"}, rows))
				return nil
			})
		},
	}
}

func rulesForgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget <vendor>",
		Short: "Delete the rule for a vendor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRules(cmd, func(ctx context.Context, user *model.User, rules *learning.Engine) error {
				v, err := resolveVendor(ctx, cmd, rules, user.ID, args[0])
				if err != nil {
					return err
				}
				if err := rules.Forget(ctx, user.ID, v); err != nil {
					if errors.Is(err, common.ErrNotFound) {
						return fmt.Errorf("no rule for %q", args[0])
					}
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Forgot %s", v)))
				return nil
			})
		},
	}
}

func rulesCorrectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "correct <vendor> <category>",
		Short: "Point a vendor at a different category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRules(cmd, func(ctx context.Context, user *model.User, rules *learning.Engine) error {
				v, err := resolveVendor(ctx, cmd, rules, user.ID, args[0])
				if err != nil {
					return err
				}
				p, previous, err := rules.Correct(ctx, user.ID, v, args[1])
				if err != nil {
					return err
				}

				msg := fmt.Sprintf("%s → %s (%d%%)", p.Vendor, p.Category, p.Confidence)
				if previous != "" {
					msg = fmt.Sprintf("%s → %s (was %s, %d%%)", p.Vendor, p.Category, previous, p.Confidence)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(msg))
				return nil
			})
		},
	}
}
