package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/healthmetrics/extractor/constants"
	"github.com/healthmetrics/extractor/internal/entity"
)

// FileRepository owns the append-only processed_files audit log. Rows are
// never updated after creation.
type FileRepository interface {
	RecordProcessed(ctx context.Context, filename string, status constants.FileStatus, pointCount int, reportDate string) error
	List(ctx context.Context) ([]entity.ProcessedFile, error)
}

type fileRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewFileRepository(db *sql.DB, logger *slog.Logger) FileRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &fileRepository{db: db, logger: logger}
}

func (r *fileRepository) RecordProcessed(ctx context.Context, filename string, status constants.FileStatus, pointCount int, reportDate string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO processed_files (filename, status, data_points_extracted, report_date)
		VALUES (?, ?, ?, ?)`,
		filename, string(status), pointCount, reportDate,
	)
	if err != nil {
		r.logger.Error("store.record_file_failed", "filename", filename, "error", err)
		return err
	}
	r.logger.Info("store.file_recorded", "filename", filename, "status", string(status), "points", pointCount)
	return nil
}

func (r *fileRepository) List(ctx context.Context) ([]entity.ProcessedFile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, filename, status, data_points_extracted, report_date, upload_date
		FROM processed_files
		ORDER BY upload_date DESC, id DESC`)
	if err != nil {
		r.logger.Error("store.list_files_failed", "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []entity.ProcessedFile
	for rows.Next() {
		var f entity.ProcessedFile
		var reportDate sql.NullString
		if err := rows.Scan(&f.ID, &f.Filename, &f.Status, &f.DataPointsExtracted, &reportDate, &f.UploadDate); err != nil {
			return nil, err
		}
		f.ReportDate = reportDate.String
		out = append(out, f)
	}
	return out, rows.Err()
}
