package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mgomes/launchr/internal/settings"
)

type DB struct {
	conn *sql.DB
}

// RescanRecord is one completed pass over all enabled plugins.
type RescanRecord struct {
	ID            int64
	StartedAt     time.Time
	FinishedAt    time.Time
	FailedPlugins []string
}

func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		conn.Close() //nolint:errcheck
		return nil, err
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) init() error {
	schema := `
		CREATE TABLE IF NOT EXISTS settings_overrides (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS rescans (
			id INTEGER PRIMARY KEY,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			failed TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_rescans_finished_at ON rescans(finished_at);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// ReadSettings returns the persisted override layer, or nil if none has
// been written.
func (db *DB) ReadSettings() (settings.Settings, error) {
	rows, err := db.conn.Query("SELECT key, value FROM settings_overrides")
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out settings.Settings
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}

		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("failed to decode setting %s: %w", key, err)
		}

		if out == nil {
			out = make(settings.Settings)
		}
		out[key] = value
	}
	return out, rows.Err()
}

// WriteSettings replaces every persisted override with s in one transaction.
func (db *DB) WriteSettings(ctx context.Context, s settings.Settings) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM settings_overrides"); err != nil {
		return err
	}

	now := time.Now().Unix()
	for key, value := range s {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to encode setting %s: %w", key, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO settings_overrides (key, value, updated_at) VALUES (?, ?, ?)",
			key, string(raw), now,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (db *DB) SettingsCount() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM settings_overrides").Scan(&count)
	return count, err
}

func (db *DB) RecordRescan(ctx context.Context, rec RescanRecord) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		"INSERT INTO rescans (started_at, finished_at, failed) VALUES (?, ?, ?)",
		rec.StartedAt.UnixMilli(), rec.FinishedAt.UnixMilli(), strings.Join(rec.FailedPlugins, ","),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// LastRescan returns the most recently finished rescan, or nil if none.
func (db *DB) LastRescan() (*RescanRecord, error) {
	var (
		rec               RescanRecord
		started, finished int64
		failed            string
	)
	err := db.conn.QueryRow(
		"SELECT id, started_at, finished_at, failed FROM rescans ORDER BY finished_at DESC, id DESC LIMIT 1",
	).Scan(&rec.ID, &started, &finished, &failed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec.StartedAt = time.UnixMilli(started)
	rec.FinishedAt = time.UnixMilli(finished)
	if failed != "" {
		rec.FailedPlugins = strings.Split(failed, ",")
	}
	return &rec, nil
}

func (db *DB) RescanCount() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM rescans").Scan(&count)
	return count, err
}
