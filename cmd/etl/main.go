package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	httpadapter "github.com/couchcryptid/forecast-mart-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/forecast-mart-etl/internal/adapter/kafka"
	"github.com/couchcryptid/forecast-mart-etl/internal/adapter/openmeteo"
	"github.com/couchcryptid/forecast-mart-etl/internal/config"
	"github.com/couchcryptid/forecast-mart-etl/internal/domain"
	"github.com/couchcryptid/forecast-mart-etl/internal/observability"
	"github.com/couchcryptid/forecast-mart-etl/internal/pipeline"
	"github.com/couchcryptid/forecast-mart-etl/internal/report"
	"github.com/couchcryptid/forecast-mart-etl/internal/storage"
)

// Exit codes: 0 run completed with status PASS, 2 run completed with
// validation status FAIL, 1 fatal error.
const (
	exitOK             = 0
	exitFatal          = 1
	exitValidationFail = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 || args[0] != "run" {
		fmt.Fprintln(os.Stderr, "usage: etl run [--run-date YYYY-MM-DD]")
		return exitFatal
	}

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	runDateArg := fs.String("run-date", "", "run date as YYYY-MM-DD (default: today, UTC)")
	if err := fs.Parse(args[1:]); err != nil {
		return exitFatal
	}

	// Optional .env for local development; real deployments set the
	// environment directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("failed to load .env", "error", err)
		return exitFatal
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return exitFatal
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	runDate := time.Now().UTC().Truncate(24 * time.Hour)
	if *runDateArg != "" {
		runDate, err = domain.ParseRunDate(*runDateArg)
		if err != nil {
			logger.Error("invalid --run-date", "value", *runDateArg, "error", err)
			return exitFatal
		}
	}

	fetcher := openmeteo.NewClient(cfg.ProviderBaseURL, cfg.ProviderTimeout, cfg.HorizonHours, metrics, logger)
	store := storage.New(cfg.DataDir, cfg.ReportsDir, logger)
	reporter := report.New(cfg.DataDir, cfg.ReportsDir, logger)

	// Run-record publishing is feature-flagged via KAFKA_BROKERS.
	var publisher pipeline.RunPublisher
	if cfg.KafkaEnabled() {
		writer := kafkaadapter.NewRunRecordWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		publisher = writer
		logger.Info("run record publishing enabled", "topic", cfg.KafkaRunTopic)
	} else {
		logger.Info("run record publishing disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional health/metrics listener, for runs supervised by an
	// orchestrator that scrapes Prometheus.
	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	p := pipeline.New(fetcher, store, reporter, publisher, cfg, logger, metrics)

	rec, err := p.Run(ctx, runDate)
	if err != nil {
		logger.Error("run failed", "run_date", domain.FormatDate(runDate), "error", err)
		return exitFatal
	}
	if rec.Status == domain.StatusFail {
		return exitValidationFail
	}
	return exitOK
}
