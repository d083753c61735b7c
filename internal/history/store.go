// File: internal/history/store.go

// Package history persists completed scans in an embedded SQLite database so
// they survive across sessions. The store answers exactly one query shape: a
// bounded newest-first listing, plus id-keyed upsert and delete.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/xkilldash9x/iocscope/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const schema = `
CREATE TABLE IF NOT EXISTS scans (
	id        TEXT PRIMARY KEY,
	indicator TEXT NOT NULL,
	type      TEXT NOT NULL,
	favorite  INTEGER NOT NULL DEFAULT 0,
	timestamp TEXT NOT NULL,
	result    BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scans_timestamp ON scans (timestamp);
`

// Store is a SQLite-backed implementation of schemas.HistoryStore.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open creates (or opens) the history database at path and ensures the
// schema exists. The parent directory is created if needed.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	// The embedded driver serializes writes; a single connection avoids
	// SQLITE_BUSY churn from concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing history schema: %w", err)
	}

	return &Store{db: db, log: logger.Named("history")}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveScan upserts an entry by id.
func (s *Store) SaveScan(ctx context.Context, entry schemas.ScanHistoryEntry) error {
	result, err := json.Marshal(entry.Result)
	if err != nil {
		return fmt.Errorf("encoding scan result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scans (id, indicator, type, favorite, timestamp, result)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			indicator = excluded.indicator,
			type      = excluded.type,
			favorite  = excluded.favorite,
			timestamp = excluded.timestamp,
			result    = excluded.result;
	`, entry.ID, entry.Indicator, string(entry.Type), boolToInt(entry.Favorite),
		entry.Timestamp.UTC().Format(time.RFC3339Nano), result)
	if err != nil {
		return fmt.Errorf("saving scan %s: %w", entry.ID, err)
	}
	return nil
}

// GetScans returns up to limit entries, most recent first.
func (s *Store) GetScans(ctx context.Context, limit int) ([]schemas.ScanHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, indicator, type, favorite, timestamp, result
		FROM scans
		ORDER BY timestamp DESC
		LIMIT ?;
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying scans: %w", err)
	}
	defer rows.Close()

	var entries []schemas.ScanHistoryEntry
	for rows.Next() {
		var (
			entry     schemas.ScanHistoryEntry
			indType   string
			favorite  int
			timestamp string
			result    []byte
		)
		if err := rows.Scan(&entry.ID, &entry.Indicator, &indType, &favorite, &timestamp, &result); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		entry.Type = schemas.IndicatorType(indType)
		entry.Favorite = favorite != 0
		if ts, err := time.Parse(time.RFC3339Nano, timestamp); err == nil {
			entry.Timestamp = ts
		}
		if err := json.Unmarshal(result, &entry.Result); err != nil {
			// A single corrupt row should not hide the rest of the history.
			s.log.Warn("Skipping undecodable history entry", zap.String("id", entry.ID), zap.Error(err))
			continue
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// DeleteScan removes a single entry by id. Deleting a missing id is a no-op.
func (s *Store) DeleteScan(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM scans WHERE id = ?;`, id); err != nil {
		return fmt.Errorf("deleting scan %s: %w", id, err)
	}
	return nil
}

// ClearScans removes every entry.
func (s *Store) ClearScans(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM scans;`); err != nil {
		return fmt.Errorf("clearing scans: %w", err)
	}
	return nil
}

// SetFavorite toggles the favorite flag, the only mutable field of an entry.
func (s *Store) SetFavorite(ctx context.Context, id string, favorite bool) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE scans SET favorite = ? WHERE id = ?;`, boolToInt(favorite), id); err != nil {
		return fmt.Errorf("updating favorite on scan %s: %w", id, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
