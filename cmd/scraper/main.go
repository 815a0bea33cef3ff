package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/logging"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/pipeline"
	"github.com/aluiziolira/go-scrape-catalog/scraper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

// run owns every resource of the process so deferred closes happen before exit.
func run() error {
	cfg, err := config.Load(config.FileName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		return err
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return err
	}

	logger, sink, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open log: %v\n", err)
		return err
	}
	defer sink.Close()
	slog.SetDefault(logger)

	logger.Info("start of program", slog.String("home_url", cfg.Remote.HomeURL))
	defer logger.Info("end of program")

	headers := make([]string, len(cfg.Fields))
	for i, field := range cfg.Fields {
		headers[i] = field.Header
	}
	writer, err := pipeline.NewWriter(cfg.Results.OutputFormat, cfg.Results.OutputFile, headers)
	if err != nil {
		logger.Error("creating writer", slog.Any("error", err))
		return err
	}
	defer func() {
		if err := writer.Close(); err != nil {
			logger.Error("close writer", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := scraper.NewScraper(cfg, logger)
	if err != nil {
		logger.Error("initialising scraper", slog.Any("error", err))
		return err
	}

	if cfg.Metrics.Addr != "" {
		metricsServer := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("metrics server shutdown failed", slog.Any("error", err))
			}
		}()
		logger.Info("metrics server enabled", slog.String("addr", cfg.Metrics.Addr))
	}

	p, err := pipeline.NewPipeline(writer, cfg)
	if err != nil {
		logger.Error("creating pipeline", slog.Any("error", err))
		return err
	}

	result, err := s.Run(ctx, p)
	if err != nil {
		logger.Error("scraping failed", slog.Any("error", err))
		logSummary(logger, result, p.GetMetrics(), cfg.Results.OutputFile)
		return err
	}

	if err := p.Close(); err != nil {
		logger.Error("pipeline shutdown failed", slog.Any("error", err))
		return err
	}

	if err := writer.Validate(); err != nil {
		logger.Error("output validation failed", slog.Any("error", err))
		return err
	}

	logSummary(logger, result, p.GetMetrics(), cfg.Results.OutputFile)
	return nil
}

func logSummary(logger *slog.Logger, result *models.CrawlResult, metrics map[string]interface{}, outputFile string) {
	if result == nil {
		return
	}

	written := int64(0)
	if processed, ok := metrics["processed_records"].(int64); ok {
		written = processed
	}
	duration := result.EndTime.Sub(result.StartTime)
	itemsPerSec := 0.0
	if duration.Seconds() > 0 {
		itemsPerSec = float64(written) / duration.Seconds()
	}

	attrs := []any{
		slog.Int64("records_written", written),
		slog.Int("records_scraped", result.TotalCount),
		slog.Int("categories", result.CategoryCount),
		slog.Int("categories_skipped", result.SkippedCount),
		slog.Int("categories_incomplete", result.IncompleteCount),
		slog.Int("pages", result.PageCount),
		slog.Int("requests", result.RequestCount),
		slog.Int("errors", result.ErrorCount),
		slog.Int("mismatched_rows", result.MismatchedRows),
		slog.Duration("duration", duration),
		slog.Float64("records_per_sec", itemsPerSec),
		slog.String("output_file", outputFile),
	}
	if len(result.ErrorsByType) > 0 {
		attrs = append(attrs, slog.Any("errors_by_type", result.ErrorsByType))
	}
	if len(result.FailedURLs) > 0 {
		attrs = append(attrs, slog.Any("failed_urls", result.FailedURLs))
	}
	if validation, ok := metrics["validation_errors"].(map[string]int); ok && len(validation) > 0 {
		attrs = append(attrs, slog.Any("validation_errors", validation))
	}
	logger.Info("scrape complete", attrs...)
}
