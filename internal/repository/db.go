package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type Config struct {
	Path        string        // database file, e.g. health_metrics.db
	BusyTimeout time.Duration // sqlite busy_timeout for write contention
}

const schema = `
CREATE TABLE IF NOT EXISTS metrics (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	test_name TEXT NOT NULL,
	value TEXT,
	unit TEXT,
	reference_range TEXT,
	report_date TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_metrics_unique
ON metrics(test_name, value, unit, report_date);

CREATE TABLE IF NOT EXISTS processed_files (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	filename TEXT NOT NULL,
	upload_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	status TEXT NOT NULL,
	data_points_extracted INTEGER DEFAULT 0,
	report_date TEXT
);
`

// Open opens (or creates) the sqlite database and applies the schema.
// The uniqueness index on (test_name, value, unit, report_date) is the
// deduplication key for the whole system; insert-or-ignore relies on it.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	logger.Info("store.open", "path", cfg.Path)
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		logger.Error("store.open_failed", "error", err)
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		logger.Error("store.ping_failed", "error", err)
		return nil, err
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		logger.Error("store.schema_failed", "error", err)
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logger.Info("store.ready")
	return db, nil
}

// isUniqueConstraint reports whether err is a UNIQUE constraint violation
// from the sqlite driver. Callers must not confuse it with transient write
// failures like SQLITE_BUSY.
func isUniqueConstraint(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
