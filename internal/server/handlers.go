package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/healthmetrics/extractor/constants"
	"github.com/healthmetrics/extractor/internal/common"
	"github.com/healthmetrics/extractor/internal/entity"
)

// lineSink adapts the response writer to the pipeline's line stream,
// flushing after every line so the client sees records as they are parsed.
type lineSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newLineSink(w http.ResponseWriter) *lineSink {
	flusher, _ := w.(http.Flusher)
	return &lineSink{w: w, flusher: flusher}
}

func (s *lineSink) WriteLine(line string) error {
	if _, err := io.WriteString(s.w, line+"\n"); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// handleExtract accepts one PDF and streams the extraction output. Errors
// after the first byte has been written can only be reported in-stream; the
// stream itself always ends cleanly.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+1<<20) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.maxUpload+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.maxUpload {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.maxUpload), http.StatusRequestEntityTooLarge)
		return
	}
	if !constants.IsPDFName(header.Filename) && !constants.IsPDFContent(data) {
		jsonError(w, "file must be a PDF", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	sink := newLineSink(w)
	if _, err := s.processor.ProcessDocument(r.Context(), header.Filename, data, sink); err != nil {
		if errors.Is(err, common.ErrNoText) {
			// Headers are sent; report the structured "no text" result in-stream.
			_ = sink.WriteLine(`{"error": "Could not extract text from PDF. It might be an image-only PDF."}`)
			return
		}
		s.log.Warn("extract.ended_with_error", "filename", header.Filename, "error", err)
	}
}

// handleSaveMetric ingests one metric object through the full normalization
// pipeline before storage.
func (s *Server) handleSaveMetric(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		jsonError(w, "failed to read body", http.StatusBadRequest)
		return
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		jsonError(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.metricSchema.Validate(payload); err != nil {
		jsonError(w, "invalid metric payload: "+err.Error(), http.StatusBadRequest)
		return
	}

	var cand entity.RawCandidate
	if err := json.Unmarshal(body, &cand); err != nil {
		jsonError(w, "invalid metric payload: "+err.Error(), http.StatusBadRequest)
		return
	}

	metric, err := s.engine.Normalize(cand)
	if err != nil {
		if errors.Is(err, common.ErrRejected) {
			jsonError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		jsonError(w, "normalization failed", http.StatusInternalServerError)
		return
	}
	metric.ReferenceRange = s.resolver.Resolve(r.Context(), metric.TestName, metric.ReferenceRange)

	inserted, err := s.metrics.Insert(r.Context(), metric)
	if err != nil {
		jsonError(w, "failed to store metric", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"inserted": inserted,
	})
}

func (s *Server) handleListMetrics(w http.ResponseWriter, r *http.Request) {
	recs, err := s.metrics.List(r.Context())
	if err != nil {
		jsonError(w, "failed to list metrics", http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []entity.Metric{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	recs, err := s.files.List(r.Context())
	if err != nil {
		jsonError(w, "failed to list processed files", http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []entity.ProcessedFile{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleExportMetrics(w http.ResponseWriter, r *http.Request) {
	data, err := s.exporter.ExportMetricsXLSX(r.Context())
	if err != nil {
		jsonError(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="health_metrics.xlsx"`)
	w.Write(data)
}

func (s *Server) handleRenormalize(w http.ResponseWriter, r *http.Request) {
	res, err := s.renormalizer.Run(r.Context())
	if err != nil {
		jsonError(w, "renormalization failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}
