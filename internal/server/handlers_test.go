package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/healthmetrics/extractor/internal/entity"
	"github.com/healthmetrics/extractor/internal/export"
	"github.com/healthmetrics/extractor/internal/extract"
	"github.com/healthmetrics/extractor/internal/llm"
	"github.com/healthmetrics/extractor/internal/normalize"
	"github.com/healthmetrics/extractor/internal/pipeline"
	"github.com/healthmetrics/extractor/internal/refrange"
	"github.com/healthmetrics/extractor/internal/repository"
)

type noopStreamer struct{}

func (noopStreamer) Stream(ctx context.Context, text string, emit func(string) error) error {
	return nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	db, err := repository.Open(context.Background(), repository.Config{
		Path: filepath.Join(t.TempDir(), "test.db"),
	}, logger)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	metrics := repository.NewMetricRepository(db, logger)
	files := repository.NewFileRepository(db, logger)

	table, err := refrange.LoadStandardTable(filepath.Join(t.TempDir(), "absent.json"), logger)
	if err != nil {
		t.Fatalf("load table: %v", err)
	}
	resolver := refrange.NewResolver(table, metrics, logger)
	engine := normalize.NewEngine(logger)

	extractor := extract.NewExtractor(extract.Config{}, logger)
	processor := pipeline.NewProcessor(
		extractor, noopStreamer{}, llm.NewGate(), engine, resolver,
		metrics, files, 0, logger,
	)
	renormalizer := pipeline.NewRenormalizer(engine, resolver, metrics, logger)

	srv, err := NewServer(
		processor, renormalizer, engine, resolver,
		metrics, files, export.NewService(metrics, logger), 1<<20, logger,
	)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestSaveMetricNormalizesAndDeduplicates(t *testing.T) {
	srv := newTestServer(t)
	payload := `{"test_name":"total cholesterol","value":"5.2","unit":"mmol/L","reference_range":"[ <5.2 ]","report_date":"15/01/2024"}`

	rec := doJSON(t, srv, http.MethodPost, "/metrics", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Status   string `json:"status"`
		Inserted bool   `json:"inserted"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Inserted {
		t.Fatal("first insert reported inserted=false")
	}

	// Identical payload must hit the uniqueness constraint, not error.
	rec = doJSON(t, srv, http.MethodPost, "/metrics", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("duplicate status = %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Inserted {
		t.Fatal("duplicate insert reported inserted=true")
	}

	rec = doJSON(t, srv, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var got []entity.Metric
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("stored %d metrics, want 1", len(got))
	}
	m := got[0]
	if m.TestName != "Total Cholesterol" {
		t.Errorf("TestName = %q", m.TestName)
	}
	if m.Value != "201.1" || m.Unit != "mg/dL" {
		t.Errorf("value/unit = %q %q, want 201.1 mg/dL", m.Value, m.Unit)
	}
	if m.ReportDate != "2024-01-15" {
		t.Errorf("ReportDate = %q, want 2024-01-15", m.ReportDate)
	}
	if m.ReferenceRange != "<5.2" {
		t.Errorf("ReferenceRange = %q, want <5.2", m.ReferenceRange)
	}
}

func TestSaveMetricRejections(t *testing.T) {
	srv := newTestServer(t)

	// Missing required value fails schema validation.
	rec := doJSON(t, srv, http.MethodPost, "/metrics", `{"test_name":"HbA1c"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing value: status = %d, want 400", rec.Code)
	}

	// Non-numeric value outside the categorical allow-list.
	rec = doJSON(t, srv, http.MethodPost, "/metrics", `{"test_name":"HbA1c","value":"pending"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad value: status = %d, want 422", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/metrics", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d, want 400", rec.Code)
	}
}

func postFile(t *testing.T, srv *Server, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/extract", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestExtractRejectsNonPDF(t *testing.T) {
	srv := newTestServer(t)
	rec := postFile(t, srv, "notes.txt", []byte("plain text"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestExtractUnreadablePDFReportsInStream(t *testing.T) {
	srv := newTestServer(t)
	rec := postFile(t, srv, "scan.pdf", []byte("%PDF-1.4 garbage"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "Could not extract text from PDF") {
		t.Errorf("body = %q, want in-stream extraction error", rec.Body.String())
	}

	// The failed run must still be recorded in the audit log.
	rec = doJSON(t, srv, http.MethodGet, "/files", "")
	var files []entity.ProcessedFile
	if err := json.Unmarshal(rec.Body.Bytes(), &files); err != nil {
		t.Fatalf("decode files: %v", err)
	}
	if len(files) != 1 || files[0].Status != "failed" {
		t.Fatalf("files = %+v, want one failed entry", files)
	}
}

func TestExportMetrics(t *testing.T) {
	srv := newTestServer(t)
	doJSON(t, srv, http.MethodPost, "/metrics", `{"test_name":"HbA1c","value":"5.4","unit":"%"}`)

	rec := doJSON(t, srv, http.MethodGet, "/metrics/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty export body")
	}
}

func TestRenormalizeEndpoint(t *testing.T) {
	srv := newTestServer(t)
	doJSON(t, srv, http.MethodPost, "/metrics", `{"test_name":"HbA1c","value":"5.4","unit":"%"}`)

	rec := doJSON(t, srv, http.MethodPost, "/admin/renormalize", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var res pipeline.RenormalizeResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Scanned != 1 {
		t.Errorf("Scanned = %d, want 1", res.Scanned)
	}
}
