// Package server is the HTTP surface over the extraction pipeline. The
// extraction response is a line-oriented text stream: each line is either a
// minified JSON metric, a #-prefixed progress comment, or a raw diagnostic
// line, and the stream always ends cleanly.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/healthmetrics/extractor/internal/export"
	"github.com/healthmetrics/extractor/internal/normalize"
	"github.com/healthmetrics/extractor/internal/pipeline"
	"github.com/healthmetrics/extractor/internal/refrange"
	"github.com/healthmetrics/extractor/internal/repository"
)

type Server struct {
	router chi.Router

	processor    *pipeline.Processor
	renormalizer *pipeline.Renormalizer
	engine       *normalize.Engine
	resolver     *refrange.Resolver
	metrics      repository.MetricRepository
	files        repository.FileRepository
	exporter     *export.Service

	metricSchema *jsonschema.Schema
	maxUpload    int64
	log          *slog.Logger
}

// NewServer wires the routes. maxUpload bounds the accepted document size in
// bytes.
func NewServer(
	processor *pipeline.Processor,
	renormalizer *pipeline.Renormalizer,
	engine *normalize.Engine,
	resolver *refrange.Resolver,
	metrics repository.MetricRepository,
	files repository.FileRepository,
	exporter *export.Service,
	maxUpload int64,
	log *slog.Logger,
) (*Server, error) {
	schema, err := compileMetricSchema()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	if maxUpload <= 0 {
		maxUpload = 32 << 20
	}

	s := &Server{
		processor:    processor,
		renormalizer: renormalizer,
		engine:       engine,
		resolver:     resolver,
		metrics:      metrics,
		files:        files,
		exporter:     exporter,
		metricSchema: schema,
		maxUpload:    maxUpload,
		log:          log,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Post("/extract", s.handleExtract)
	r.Post("/metrics", s.handleSaveMetric)
	r.Get("/metrics", s.handleListMetrics)
	r.Get("/metrics/export", s.handleExportMetrics)
	r.Get("/files", s.handleListFiles)

	r.Post("/admin/renormalize", s.handleRenormalize)

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
