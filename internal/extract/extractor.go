// Package extract turns lab-report PDF bytes into per-page text. The text
// layer is the fast path; scanned documents fall back to rasterization plus
// OCR. Extraction degrades instead of failing: a damaged or image-only PDF
// with no working OCR yields empty pages, and the caller decides how to
// report that.
package extract

import (
	"context"
	"log/slog"
	"time"
	"unicode"
)

// minMeaningfulChars is the non-whitespace character count below which the
// text layer is considered empty and OCR kicks in.
const minMeaningfulChars = 50

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Extractor{cfg: cfg, runner: execRunner{log: logger}, logger: logger}
}

// Extract returns one string per page, in page order. It never returns an
// error for a damaged or unusual PDF; the worst case is a slice of empty
// strings (or an empty slice when the page count is unknown).
func (e *Extractor) Extract(ctx context.Context, data []byte) []string {
	start := time.Now()

	pages, err := textLayerPages(data)
	if err != nil {
		e.logger.Warn("extract.text_layer_failed", "error", err)
		pages = nil
	}

	if meaningfulChars(pages) >= minMeaningfulChars {
		e.logger.Info("extract.done",
			"method", "pdf-text",
			"pages", len(pages),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return pages
	}

	e.logger.Info("extract.text_layer_sparse", "pages", len(pages), "fallback", "ocr")

	ocred, err := e.ocrPages(ctx, data)
	if err != nil {
		// OCR unavailable or broken: return whatever the fast path produced.
		e.logger.Warn("extract.ocr_failed", "error", err)
		return pages
	}

	e.logger.Info("extract.done",
		"method", "pdf-ocr",
		"pages", len(ocred),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return ocred
}

func meaningfulChars(pages []string) int {
	n := 0
	for _, p := range pages {
		for _, r := range p {
			if !unicode.IsSpace(r) {
				n++
			}
		}
	}
	return n
}
