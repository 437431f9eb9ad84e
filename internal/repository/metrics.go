package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/healthmetrics/extractor/internal/common"
	"github.com/healthmetrics/extractor/internal/entity"
)

// MetricRepository is the only writer of the metrics table.
type MetricRepository interface {
	// Insert stores one canonical metric. inserted is false when the
	// natural key (test_name, value, unit, report_date) already exists;
	// the collision is a successful no-op, not an error.
	Insert(ctx context.Context, m entity.Metric) (inserted bool, err error)
	// List returns all metrics, newest first.
	List(ctx context.Context) ([]entity.Metric, error)
	// ConsensusRange picks the most frequent non-empty reference range
	// recorded for a test, ties broken by the most recent report date.
	// Returns "" when no history exists.
	ConsensusRange(ctx context.Context, testName string) (string, error)
	// Update rewrites one row in place during renormalization passes. A
	// rewrite that lands on an existing natural key returns an error
	// wrapping common.ErrDuplicate; other failures come back as-is.
	Update(ctx context.Context, m entity.Metric) error
	// Delete removes one row (duplicate produced by renormalization).
	Delete(ctx context.Context, id int64) error
}

type metricRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewMetricRepository(db *sql.DB, logger *slog.Logger) MetricRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &metricRepository{db: db, logger: logger}
}

func (r *metricRepository) Insert(ctx context.Context, m entity.Metric) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO metrics (test_name, value, unit, reference_range, report_date)
		VALUES (?, ?, ?, ?, ?)`,
		m.TestName, m.Value, m.Unit, m.ReferenceRange, m.ReportDate,
	)
	if err != nil {
		r.logger.Error("store.insert_failed", "test_name", m.TestName, "error", err)
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		r.logger.Debug("store.insert.duplicate",
			"test_name", m.TestName, "value", m.Value, "unit", m.Unit, "report_date", m.ReportDate)
		return false, nil
	}
	return true, nil
}

func (r *metricRepository) List(ctx context.Context) ([]entity.Metric, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, test_name, value, unit, reference_range, report_date, created_at
		FROM metrics
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		r.logger.Error("store.list_failed", "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []entity.Metric
	for rows.Next() {
		var m entity.Metric
		var value, unit, refRange, reportDate sql.NullString
		if err := rows.Scan(&m.ID, &m.TestName, &value, &unit, &refRange, &reportDate, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Value = value.String
		m.Unit = unit.String
		m.ReferenceRange = refRange.String
		m.ReportDate = reportDate.String
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *metricRepository) ConsensusRange(ctx context.Context, testName string) (string, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT reference_range
		FROM metrics
		WHERE test_name = ? AND reference_range IS NOT NULL AND reference_range != ''
		GROUP BY reference_range
		ORDER BY COUNT(*) DESC, MAX(report_date) DESC
		LIMIT 1`, testName)

	var rng string
	switch err := row.Scan(&rng); err {
	case nil:
		return rng, nil
	case sql.ErrNoRows:
		return "", nil
	default:
		r.logger.Error("store.consensus_failed", "test_name", testName, "error", err)
		return "", err
	}
}

func (r *metricRepository) Update(ctx context.Context, m entity.Metric) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE metrics
		SET test_name = ?, value = ?, unit = ?, reference_range = ?, report_date = ?
		WHERE id = ?`,
		m.TestName, m.Value, m.Unit, m.ReferenceRange, m.ReportDate, m.ID,
	)
	if isUniqueConstraint(err) {
		return fmt.Errorf("%w: (%s, %s, %s, %s)",
			common.ErrDuplicate, m.TestName, m.Value, m.Unit, m.ReportDate)
	}
	return err
}

func (r *metricRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM metrics WHERE id = ?`, id)
	return err
}
