// Package pipeline runs one document through the full extraction flow:
// text extraction, chunking, serialized model streaming, incremental line
// parsing, normalization, reference-range resolution, and deduplicated
// persistence. Failures are contained at the smallest level that can absorb
// them: a bad line costs one record, a bad chunk costs one chunk, and only
// a document with no output at all is an error.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/healthmetrics/extractor/constants"
	"github.com/healthmetrics/extractor/internal/chunker"
	"github.com/healthmetrics/extractor/internal/common"
	"github.com/healthmetrics/extractor/internal/extract"
	"github.com/healthmetrics/extractor/internal/llm"
	"github.com/healthmetrics/extractor/internal/normalize"
	"github.com/healthmetrics/extractor/internal/refrange"
	"github.com/healthmetrics/extractor/internal/repository"
	"github.com/healthmetrics/extractor/internal/stream"
)

// LineWriter is the client-facing output stream. A write error means the
// sink is gone (client disconnect); the pipeline stops generating promptly.
type LineWriter interface {
	WriteLine(line string) error
}

// Result summarizes one document's run for the audit log.
type Result struct {
	Status     constants.FileStatus
	Points     int
	ReportDate string
}

type Processor struct {
	extractor *extract.Extractor
	streamer  llm.TokenStreamer
	gate      *llm.Gate
	engine    *normalize.Engine
	resolver  *refrange.Resolver
	metrics   repository.MetricRepository
	files     repository.FileRepository
	logger    *slog.Logger

	chunkBudget int
}

func NewProcessor(
	extractor *extract.Extractor,
	streamer llm.TokenStreamer,
	gate *llm.Gate,
	engine *normalize.Engine,
	resolver *refrange.Resolver,
	metrics repository.MetricRepository,
	files repository.FileRepository,
	chunkBudget int,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if chunkBudget <= 0 {
		chunkBudget = chunker.DefaultBudget
	}
	return &Processor{
		extractor:   extractor,
		streamer:    streamer,
		gate:        gate,
		engine:      engine,
		resolver:    resolver,
		metrics:     metrics,
		files:       files,
		logger:      logger,
		chunkBudget: chunkBudget,
	}
}

// ProcessDocument extracts text from the PDF bytes and runs the extraction
// flow. It returns common.ErrNoText when the document yields nothing usable
// even after OCR; that case is recorded as a failed file, not a crash.
func (p *Processor) ProcessDocument(ctx context.Context, filename string, data []byte, sink LineWriter) (Result, error) {
	pages := p.extractor.Extract(ctx, data)

	chunks := chunker.Chunk(pages, p.chunkBudget)
	if len(chunks) == 0 {
		p.logger.Warn("pipeline.no_text", "filename", filename)
		res := Result{Status: constants.FileStatusFailed}
		p.recordFile(ctx, filename, res)
		return res, fmt.Errorf("%w: %s", common.ErrNoText, filename)
	}

	res, err := p.processChunks(ctx, filename, chunks, sink)
	p.recordFile(ctx, filename, res)
	return res, err
}

// processChunks holds the model gate for the whole multi-chunk run, so one
// document's chunks are never interleaved with another document's.
func (p *Processor) processChunks(ctx context.Context, filename string, chunks []string, sink LineWriter) (Result, error) {
	start := time.Now()

	if err := p.gate.Acquire(ctx); err != nil {
		return Result{Status: constants.FileStatusFailed}, fmt.Errorf("acquire model: %w", err)
	}
	defer p.gate.Release()

	p.logger.Info("pipeline.start", "filename", filename, "chunks", len(chunks))

	run := &documentRun{p: p, ctx: ctx, sink: sink}
	chunkErrors := 0

	for i, chunk := range chunks {
		if err := sink.WriteLine(fmt.Sprintf("# Processing chunk %d/%d", i+1, len(chunks))); err != nil {
			p.logger.Warn("pipeline.sink_closed", "filename", filename, "chunk", i+1, "error", err)
			return run.result(constants.FileStatusPartial), err
		}

		parser := stream.NewParser()
		err := p.streamer.Stream(ctx, chunk, func(token string) error {
			return run.handle(parser.Feed(token))
		})
		if flushErr := run.handle(parser.Flush()); flushErr != nil && err == nil {
			err = flushErr
		}

		if err != nil {
			if errors.Is(err, context.Canceled) || run.sinkErr != nil {
				// Client is gone; stop consuming tokens into the void.
				p.logger.Warn("pipeline.aborted", "filename", filename, "chunk", i+1, "error", err)
				return run.result(constants.FileStatusPartial), err
			}
			chunkErrors++
			p.logger.Error("pipeline.chunk_failed", "filename", filename, "chunk", i+1, "error", err)
			// Already-emitted lines stay valid; tell the client and move on.
			if werr := sink.WriteLine(fmt.Sprintf("[ERROR] Stream interrupted: %v", err)); werr != nil {
				return run.result(constants.FileStatusPartial), werr
			}
		}
	}

	status := constants.FileStatusSuccess
	switch {
	case chunkErrors == len(chunks):
		status = constants.FileStatusFailed
	case chunkErrors > 0:
		status = constants.FileStatusPartial
	}

	p.logger.Info("pipeline.done",
		"filename", filename,
		"status", string(status),
		"points", run.points,
		"chunk_errors", chunkErrors,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return run.result(status), nil
}

// documentRun accumulates per-document state across chunks.
type documentRun struct {
	p    *Processor
	ctx  context.Context
	sink LineWriter

	points     int
	reportDate string
	sinkErr    error
}

func (r *documentRun) result(status constants.FileStatus) Result {
	return Result{Status: status, Points: r.points, ReportDate: r.reportDate}
}

// handle consumes parser events in emission order. Candidate records are
// normalized, completed with a reference range, persisted, and echoed to the
// sink as minified JSON; pass-through lines are forwarded verbatim.
func (r *documentRun) handle(events []stream.Event) error {
	for _, ev := range events {
		if err := r.ctx.Err(); err != nil {
			return err
		}

		switch ev.Kind {
		case stream.EventPassthrough:
			if err := r.sink.WriteLine(ev.Line); err != nil {
				r.sinkErr = err
				return err
			}

		case stream.EventCandidate:
			metric, err := r.p.engine.Normalize(ev.Candidate)
			if err != nil {
				// Record-level rejection: logged by the engine, costs one line.
				continue
			}
			// Standard-first: the resolver may override the extracted range
			// to keep one consistent range per test across documents.
			metric.ReferenceRange = r.p.resolver.Resolve(r.ctx, metric.TestName, metric.ReferenceRange)

			if _, err := r.p.metrics.Insert(r.ctx, metric); err != nil {
				r.p.logger.Error("pipeline.insert_failed", "test_name", metric.TestName, "error", err)
				continue
			}
			r.points++
			if r.reportDate == "" && metric.ReportDate != "" {
				r.reportDate = metric.ReportDate
			}

			line, err := json.Marshal(map[string]string{
				"test_name":       metric.TestName,
				"value":           metric.Value,
				"unit":            metric.Unit,
				"reference_range": metric.ReferenceRange,
				"report_date":     metric.ReportDate,
			})
			if err != nil {
				continue
			}
			if err := r.sink.WriteLine(string(line)); err != nil {
				r.sinkErr = err
				return err
			}
		}
	}
	return nil
}

func (p *Processor) recordFile(ctx context.Context, filename string, res Result) {
	// Audit writes survive client disconnects.
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}
	if err := p.files.RecordProcessed(ctx, filename, res.Status, res.Points, res.ReportDate); err != nil {
		p.logger.Error("pipeline.audit_failed", "filename", filename, "error", err)
	}
}
