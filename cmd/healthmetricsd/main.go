package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/healthmetrics/extractor/internal/common"
	"github.com/healthmetrics/extractor/internal/export"
	"github.com/healthmetrics/extractor/internal/extract"
	"github.com/healthmetrics/extractor/internal/llm"
	"github.com/healthmetrics/extractor/internal/llm/llamaserver"
	"github.com/healthmetrics/extractor/internal/normalize"
	"github.com/healthmetrics/extractor/internal/pipeline"
	"github.com/healthmetrics/extractor/internal/refrange"
	"github.com/healthmetrics/extractor/internal/repository"
	"github.com/healthmetrics/extractor/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(ctx, repository.Config{
		Path:        cfg.Database.Path,
		BusyTimeout: cfg.Database.BusyTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	metrics := repository.NewMetricRepository(db, logger)
	files := repository.NewFileRepository(db, logger)

	table, err := refrange.LoadStandardTable(cfg.Ranges.StandardRangesPath, logger)
	if err != nil {
		logger.Error("failed to load standard ranges", "path", cfg.Ranges.StandardRangesPath, "error", err)
		os.Exit(1)
	}
	resolver := refrange.NewResolver(table, metrics, logger)
	engine := normalize.NewEngine(logger)

	extractor := extract.NewExtractor(extract.Config{
		Pdftoppm:      cfg.OCR.Pdftoppm,
		Tesseract:     cfg.OCR.Tesseract,
		TesseractLang: cfg.OCR.TesseractLang,
		DPI:           cfg.OCR.DPI,
		MaxPages:      cfg.OCR.MaxPages,
	}, logger)

	streamer := llamaserver.NewClient(llamaserver.Config{
		BaseURL:        cfg.LLM.BaseURL,
		Timeout:        cfg.LLM.Timeout,
		MaxOutputToken: cfg.LLM.MaxOutputToken,
		Temperature:    cfg.LLM.Temperature,
		MaxInputChars:  cfg.LLM.ChunkBudget + 2000,
	}, logger)

	processor := pipeline.NewProcessor(
		extractor, streamer, llm.NewGate(), engine, resolver,
		metrics, files, cfg.LLM.ChunkBudget, logger,
	)
	renormalizer := pipeline.NewRenormalizer(engine, resolver, metrics, logger)
	exporter := export.NewService(metrics, logger)

	srv, err := server.NewServer(
		processor, renormalizer, engine, resolver,
		metrics, files, exporter, cfg.Server.MaxUploadBytes, logger,
	)
	if err != nil {
		logger.Error("failed to build server", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http serving", "addr", cfg.Server.HTTPAddr, "standard_ranges", table.Len())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	logger.Info("shutdown complete")
}
