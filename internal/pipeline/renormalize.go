package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/healthmetrics/extractor/internal/common"
	"github.com/healthmetrics/extractor/internal/entity"
	"github.com/healthmetrics/extractor/internal/normalize"
	"github.com/healthmetrics/extractor/internal/refrange"
	"github.com/healthmetrics/extractor/internal/repository"
)

// RenormalizeResult counts what a maintenance pass touched.
type RenormalizeResult struct {
	Scanned int `json:"scanned"`
	Updated int `json:"updated"`
	Removed int `json:"removed"`
}

// Renormalizer re-applies the current canonicalization rules to rows stored
// under older rules. A rewrite that collides with the natural key means the
// canonical row already exists, so the stale duplicate is removed.
type Renormalizer struct {
	engine   *normalize.Engine
	resolver *refrange.Resolver
	metrics  repository.MetricRepository
	logger   *slog.Logger
}

func NewRenormalizer(engine *normalize.Engine, resolver *refrange.Resolver, metrics repository.MetricRepository, logger *slog.Logger) *Renormalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renormalizer{engine: engine, resolver: resolver, metrics: metrics, logger: logger}
}

func (r *Renormalizer) Run(ctx context.Context) (RenormalizeResult, error) {
	rows, err := r.metrics.List(ctx)
	if err != nil {
		return RenormalizeResult{}, err
	}

	res := RenormalizeResult{Scanned: len(rows)}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		rewritten, err := r.engine.Normalize(asCandidate(row))
		if err != nil {
			// A stored row that no longer passes validation stays as-is;
			// deleting data on a rules change is not this pass's call.
			continue
		}
		rewritten.ID = row.ID
		rewritten.ReferenceRange = r.resolver.Resolve(ctx, rewritten.TestName, rewritten.ReferenceRange)

		if rewritten.TestName == row.TestName &&
			rewritten.Value == row.Value &&
			rewritten.Unit == row.Unit &&
			rewritten.ReferenceRange == row.ReferenceRange &&
			rewritten.ReportDate == row.ReportDate {
			continue
		}

		if err := r.metrics.Update(ctx, rewritten); err != nil {
			if !errors.Is(err, common.ErrDuplicate) {
				// Transient store failure (lock contention, I/O). The row
				// is intact; a later pass picks it up again.
				r.logger.Error("renormalize.update_failed", "id", row.ID, "error", err)
				continue
			}
			// The canonical form already exists; drop the stale duplicate.
			if delErr := r.metrics.Delete(ctx, row.ID); delErr != nil {
				r.logger.Error("renormalize.delete_failed", "id", row.ID, "error", delErr)
				continue
			}
			res.Removed++
			r.logger.Info("renormalize.duplicate_removed", "id", row.ID, "test_name", row.TestName)
			continue
		}
		res.Updated++
	}

	r.logger.Info("renormalize.done", "scanned", res.Scanned, "updated", res.Updated, "removed", res.Removed)
	return res, nil
}

func asCandidate(m entity.Metric) entity.RawCandidate {
	value, _ := json.Marshal(m.Value)
	return entity.RawCandidate{
		TestName:       m.TestName,
		Value:          value,
		Unit:           m.Unit,
		ReferenceRange: m.ReferenceRange,
		ReportDate:     m.ReportDate,
	}
}
