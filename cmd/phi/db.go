package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Idosegev23/finhealer/internal/cli"
	"github.com/Idosegev23/finhealer/internal/storage"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

Every command migrates on startup; this one exists for deploy scripts
and to report the schema version.`,
		RunE: runMigrate,
	}

	cmd.Flags().Bool("status", false, "Show the current schema version without applying changes")
	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	status, _ := cmd.Flags().GetBool("status")

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	defer func() { _ = store.Close() }()

	version, err := store.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if status {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo(fmt.Sprintf("Schema version %d (%s)", version, store.Path())))
		return nil
	}

	slog.Info("Database migrations completed", "path", store.Path(), "version", version)
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Database at schema version %d", version)))
	return nil
}

func dbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage database backups",
		Example: `  # Snapshot before a bulk import
  phi db backup create --tag pre-import

  # List and prune snapshots
  phi db backup list
  phi db backup delete pre-import`,
	}

	backup := &cobra.Command{
		Use:   "backup",
		Short: "Create, list and delete database snapshots",
	}
	backup.AddCommand(backupCreateCmd())
	backup.AddCommand(backupListCmd())
	backup.AddCommand(backupDeleteCmd())
	cmd.AddCommand(backup)
	return cmd
}

func openBackups(cmd *cobra.Command) (*storage.BackupManager, func(), error) {
	store, err := initStorage(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	manager, err := storage.NewBackupManager(store, backupDir(store))
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to create backup manager: %w", err)
	}
	return manager, func() { _ = store.Close() }, nil
}

func backupCreateCmd() *cobra.Command {
	var tag string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Snapshot the database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager, cleanup, err := openBackups(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			info, err := manager.Create(cmd.Context(), tag)
			if err != nil {
				return fmt.Errorf("failed to create backup: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Created backup %s (%s, schema v%d)\n",
				cli.SuccessStyle.Render(cli.SuccessIcon),
				cli.InfoStyle.Render(info.ID),
				formatFileSize(info.FileSize),
				info.SchemaVersion)
			return nil
		},
	}

	cmd.Flags().StringVarP(&tag, "tag", "t", "", "backup name (timestamp if empty)")
	return cmd
}

func backupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List snapshots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager, cleanup, err := openBackups(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			backups, err := manager.List()
			if err != nil {
				return fmt.Errorf("failed to list backups: %w", err)
			}
			if len(backups) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render("No backups found."))
				return nil
			}

			rows := make([][]string, 0, len(backups))
			for _, b := range backups {
				rows = append(rows, []string{
					b.ID,
					b.CreatedAt.Local().Format(time.DateTime),
					formatFileSize(b.FileSize),
					strconv.Itoa(b.RowCounts["users"]),
					strconv.Itoa(b.RowCounts["transactions"]),
					strconv.Itoa(b.RowCounts["vendor_patterns"]),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable([]string{"NAME", "CREATED", "SIZE", "USERS", "TRANSACTIONS", "RULES"}, rows))
			return nil
		},
	}
}

func backupDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, cleanup, err := openBackups(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := manager.Delete(args[0]); err != nil {
				return fmt.Errorf("failed to delete backup: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted backup " + args[0]))
			return nil
		},
	}
}

func formatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
