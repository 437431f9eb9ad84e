// Package refrange decides which reference range a stored metric carries.
// Priority is standard-first: the curated table enforces one consistent
// range per test regardless of what an individual report printed.
package refrange

import (
	"context"
	"log/slog"
	"strings"
)

// HistorySource is the slice of the metric store the resolver needs.
type HistorySource interface {
	ConsensusRange(ctx context.Context, testName string) (string, error)
}

type Resolver struct {
	table   *StandardTable
	history HistorySource
	logger  *slog.Logger
}

func NewResolver(table *StandardTable, history HistorySource, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{table: table, history: history, logger: logger}
}

// Resolve picks the best-known reference range for a canonical test name.
// Three tiers, first hit wins:
//  1. the standard table (authoritative, enforces consistency),
//  2. the range extracted from the current document,
//  3. consensus over previously stored rows for the same test.
//
// Returns "" when nothing is known; the caller stores an empty range rather
// than a fabricated one.
func (r *Resolver) Resolve(ctx context.Context, testName, extractedRange string) string {
	if rng, ok := r.table.Lookup(testName); ok {
		return rng
	}

	if extracted := strings.TrimSpace(extractedRange); extracted != "" {
		return extracted
	}

	rng, err := r.history.ConsensusRange(ctx, testName)
	if err != nil {
		// History is a best-effort fallback; a query failure downgrades to
		// "unknown" instead of failing the record.
		r.logger.Warn("refrange.history_failed", "test_name", testName, "error", err)
		return ""
	}
	return rng
}
