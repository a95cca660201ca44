package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Backup errors.
var (
	ErrBackupExists    = errors.New("backup already exists")
	ErrBackupNotFound  = errors.New("backup not found")
	ErrBackupCorrupted = errors.New("backup integrity check failed")
	ErrInvalidTag      = errors.New("invalid backup tag")
)

// BackupInfo describes one snapshot of the database.
type BackupInfo struct {
	CreatedAt     time.Time      `json:"created_at"`
	RowCounts     map[string]int `json:"row_counts"`
	ID            string         `json:"id"`
	Path          string         `json:"-"`
	FileSize      int64          `json:"file_size"`
	SchemaVersion int            `json:"schema_version"`
}

// countedTables are reported in backup metadata.
var countedTables = []string{"users", "transactions", "vendor_patterns", "goals", "loans", "alerts"}

// BackupManager writes consistent snapshots of the database next to it.
type BackupManager struct {
	storage *SQLiteStorage
	dir     string
}

// NewBackupManager creates a manager that stores snapshots under dir, or
// under a "backups" directory beside the database when dir is empty.
func NewBackupManager(s *SQLiteStorage, dir string) (*BackupManager, error) {
	if s.dbPath == ":memory:" {
		return nil, fmt.Errorf("cannot back up an in-memory database")
	}
	if dir == "" {
		dir = filepath.Join(filepath.Dir(s.dbPath), "backups")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve backup directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0750); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return &BackupManager{storage: s, dir: abs}, nil
}

// Create snapshots the database under tag, or a timestamped tag when empty.
func (m *BackupManager) Create(ctx context.Context, tag string) (*BackupInfo, error) {
	if tag == "" {
		tag = "backup-" + m.storage.now().Format("2006-01-02-150405")
	}
	if err := validateTag(tag); err != nil {
		return nil, err
	}

	dest := filepath.Join(m.dir, tag+".db")
	if _, err := os.Stat(dest); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrBackupExists, tag)
	}

	version, err := m.storage.SchemaVersion(ctx)
	if err != nil {
		return nil, err
	}
	counts := m.rowCounts(ctx)

	if _, err := m.storage.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return nil, fmt.Errorf("failed to checkpoint WAL: %w", err)
	}
	// #nosec G201 - tag is validated and the directory is absolute
	if _, err := m.storage.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", dest)); err != nil {
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}
	if err := verifyIntegrity(dest); err != nil {
		_ = os.Remove(dest)
		return nil, err
	}

	stat, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("failed to stat backup: %w", err)
	}

	info := &BackupInfo{
		ID:            tag,
		Path:          dest,
		CreatedAt:     m.storage.now(),
		FileSize:      stat.Size(),
		RowCounts:     counts,
		SchemaVersion: version,
	}
	if err := writeMetadata(filepath.Join(m.dir, tag+".meta.json"), info); err != nil {
		if rmErr := os.Remove(dest); rmErr != nil {
			slog.Error("failed to remove backup after metadata failure", "error", rmErr)
		}
		return nil, fmt.Errorf("failed to save metadata: %w", err)
	}
	return info, nil
}

// List returns the stored backups, newest first. Unreadable metadata is skipped.
func (m *BackupManager) List() ([]BackupInfo, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []BackupInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".meta.json") {
			continue
		}
		info, err := readMetadata(filepath.Join(m.dir, entry.Name()))
		if err != nil {
			slog.Debug("skipping unreadable backup metadata", "file", entry.Name(), "error", err)
			continue
		}
		info.Path = filepath.Join(m.dir, info.ID+".db")
		backups = append(backups, *info)
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// Delete removes a backup and its metadata.
func (m *BackupManager) Delete(tag string) error {
	if err := validateTag(tag); err != nil {
		return err
	}
	path := filepath.Join(m.dir, tag+".db")
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrBackupNotFound, tag)
		}
		return fmt.Errorf("failed to remove backup: %w", err)
	}
	if err := os.Remove(filepath.Join(m.dir, tag+".meta.json")); err != nil && !os.IsNotExist(err) {
		slog.Debug("failed to remove backup metadata", "tag", tag, "error", err)
	}
	return nil
}

func (m *BackupManager) rowCounts(ctx context.Context) map[string]int {
	counts := make(map[string]int, len(countedTables))
	for _, table := range countedTables {
		var n int
		// #nosec G202 - table names come from a fixed list
		if err := m.storage.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			continue
		}
		counts[table] = n
	}
	return counts
}

func validateTag(tag string) error {
	if tag == "" || strings.ContainsAny(tag, `/\'";`) || strings.Contains(tag, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidTag, tag)
	}
	return nil
}

func verifyIntegrity(path string) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("%w: %w", ErrBackupCorrupted, err)
	}
	if result != "ok" {
		return fmt.Errorf("%w: %s", ErrBackupCorrupted, result)
	}
	return nil
}

func writeMetadata(path string, info *BackupInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readMetadata(path string) (*BackupInfo, error) {
	// #nosec G304 - path is built from a directory listing
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var info BackupInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
