package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/healthmetrics/extractor/internal/repository"
)

// Service is a tiny façade over the metric repository that produces XLSX
// bytes for exports.
type Service struct {
	metrics repository.MetricRepository
	logger  *slog.Logger
}

func NewService(metrics repository.MetricRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{metrics: metrics, logger: logger}
}

// ExportMetricsXLSX returns an XLSX workbook with every stored metric,
// newest first, one row per measurement.
func (s *Service) ExportMetricsXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	recs, err := s.metrics.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Metrics"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Test Name",
		"Value",
		"Unit",
		"Reference Range",
		"Report Date",
		"Recorded At",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, m := range recs {
		values := []any{
			m.TestName,
			m.Value,
			m.Unit,
			m.ReferenceRange,
			m.ReportDate,
			m.CreatedAt.Format(time.RFC3339),
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		row++
	}

	// Drop the default sheet excelize creates.
	if sheet != "Sheet1" {
		_ = f.DeleteSheet("Sheet1")
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info("export.done", "rows", len(recs), "bytes", buf.Len(), "elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}
