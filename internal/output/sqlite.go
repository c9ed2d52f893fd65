// SPDX-License-Identifier: GPL-3.0-or-later

package output

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bassosimone/slp"
	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures the outcomes table exists.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := BootstrapSQLite(pctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates the outcomes table and its indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS outcomes (
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  span_id     TEXT,
  address     TEXT NOT NULL,
  port        INTEGER NOT NULL,
  ok          INTEGER NOT NULL,
  status      TEXT,
  error       TEXT,
  error_kind  TEXT NOT NULL,
  err_class   TEXT,
  elapsed_ms  REAL NOT NULL,
  created_at  TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_target ON outcomes(address, port);`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_ok ON outcomes(ok);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}

// SQLiteWriter stores each outcome as a row of the outcomes table.
type SQLiteWriter struct {
	db      *sql.DB
	timeNow func() time.Time
}

var _ Writer = &SQLiteWriter{}

// NewSQLiteWriter opens the database at path using [OpenSQLite].
func NewSQLiteWriter(ctx context.Context, path string) (*SQLiteWriter, error) {
	db, err := OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	return &SQLiteWriter{db: db, timeNow: time.Now}, nil
}

// DB returns the underlying database.
func (sw *SQLiteWriter) DB() *sql.DB {
	return sw.db
}

// Write implements [Writer].
func (sw *SQLiteWriter) Write(outcome slp.Outcome) error {
	record := NewRecord(outcome)
	_, err := sw.db.Exec(
		`INSERT INTO outcomes
  (span_id, address, port, ok, status, error, error_kind, err_class, elapsed_ms, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.SpanID,
		record.Address,
		record.Port,
		record.OK,
		record.Status,
		record.Error,
		record.ErrorKind,
		record.ErrClass,
		record.ElapsedMs,
		sw.timeNow().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// Close implements [Writer].
func (sw *SQLiteWriter) Close() error {
	return sw.db.Close()
}
