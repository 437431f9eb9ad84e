package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/healthmetrics/extractor/internal/entity"
	"github.com/healthmetrics/extractor/internal/normalize"
	"github.com/healthmetrics/extractor/internal/refrange"
	"github.com/healthmetrics/extractor/internal/repository"
)

// stubMetricRepo scripts Update failures so the renormalizer's error
// handling is testable without provoking real lock contention.
type stubMetricRepo struct {
	rows      []entity.Metric
	updateErr error
	updated   int
	deleted   []int64
}

func (s *stubMetricRepo) Insert(context.Context, entity.Metric) (bool, error) { return true, nil }

func (s *stubMetricRepo) List(context.Context) ([]entity.Metric, error) { return s.rows, nil }

func (s *stubMetricRepo) ConsensusRange(context.Context, string) (string, error) { return "", nil }

func (s *stubMetricRepo) Update(context.Context, entity.Metric) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updated++
	return nil
}

func (s *stubMetricRepo) Delete(_ context.Context, id int64) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func newTestRenormalizer(t *testing.T, metrics repository.MetricRepository) *Renormalizer {
	t.Helper()
	table, err := refrange.LoadStandardTable(filepath.Join(t.TempDir(), "missing.json"), nil)
	if err != nil {
		t.Fatalf("load table: %v", err)
	}
	resolver := refrange.NewResolver(table, metrics, nil)
	return NewRenormalizer(normalize.NewEngine(nil), resolver, metrics, nil)
}

func TestRenormalize_TransientUpdateErrorKeepsRow(t *testing.T) {
	repo := &stubMetricRepo{
		rows: []entity.Metric{{
			ID:         7,
			TestName:   "Cholesterol, Total",
			Value:      "200.0",
			Unit:       "mg/dL",
			ReportDate: "2024-01-01",
		}},
		updateErr: errors.New("database is locked (5) (SQLITE_BUSY)"),
	}
	r := newTestRenormalizer(t, repo)

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Removed != 0 {
		t.Errorf("Removed = %d, want 0; a transient failure must not delete data", res.Removed)
	}
	if res.Updated != 0 {
		t.Errorf("Updated = %d, want 0", res.Updated)
	}
	if len(repo.deleted) != 0 {
		t.Fatalf("Delete called for rows %v after a non-constraint error", repo.deleted)
	}
}

func TestRenormalize_CollisionRemovesStaleDuplicate(t *testing.T) {
	db, err := repository.Open(context.Background(), repository.Config{
		Path: filepath.Join(t.TempDir(), "test.db"),
	}, nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	metrics := repository.NewMetricRepository(db, nil)

	// Same measurement under a canonical and a legacy name: rewriting the
	// legacy row lands on the canonical row's natural key.
	seed := []entity.Metric{
		{TestName: "Total Cholesterol", Value: "200.0", Unit: "mg/dL", ReportDate: "2024-01-01"},
		{TestName: "Cholesterol, Total", Value: "200.0", Unit: "mg/dL", ReportDate: "2024-01-01"},
		// Legacy name with no counterpart: a plain in-place update.
		{TestName: "Glucose-Fasting", Value: "90.0", Unit: "mg/dL", ReportDate: "2024-01-01"},
	}
	for _, m := range seed {
		if _, err := metrics.Insert(context.Background(), m); err != nil {
			t.Fatalf("seed %s: %v", m.TestName, err)
		}
	}

	r := newTestRenormalizer(t, metrics)
	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Scanned != 3 {
		t.Errorf("Scanned = %d, want 3", res.Scanned)
	}
	if res.Removed != 1 {
		t.Errorf("Removed = %d, want 1", res.Removed)
	}
	if res.Updated != 1 {
		t.Errorf("Updated = %d, want 1", res.Updated)
	}

	rows, err := metrics.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows after deduplication, got %d", len(rows))
	}
	names := map[string]bool{}
	for _, m := range rows {
		names[m.TestName] = true
	}
	if !names["Total Cholesterol"] || !names["Fasting Glucose"] {
		t.Errorf("surviving rows = %v, want canonical names only", names)
	}
}
