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

	"github.com/joho/godotenv"

	"github.com/kirillkom/policy-reviewer/internal/bootstrap"
	"github.com/kirillkom/policy-reviewer/internal/config"
	"github.com/kirillkom/policy-reviewer/internal/core/domain"
	"github.com/kirillkom/policy-reviewer/internal/observability/logging"
	"github.com/kirillkom/policy-reviewer/internal/observability/metrics"
	"github.com/kirillkom/policy-reviewer/internal/observability/tracing"
)

const ingestTimeout = 5 * time.Minute

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	service := cfg.ServiceName + "-worker"
	slog.SetDefault(logging.NewJSONLogger(service, cfg.LogLevel))

	if cfg.NATSURL == "" {
		slog.Error("worker_requires_queue", "detail", "NATS_URL is not set")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, service, cfg.OTelEndpoint)
	if err != nil {
		slog.Error("tracing_setup_failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(service)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject, "metrics_port", cfg.WorkerMetricsPort)
	err = app.Queue.SubscribeIngest(ctx, func(handlerCtx context.Context, req domain.IngestRequest) error {
		if !req.EnqueuedAt.IsZero() {
			workerMetrics.ObserveQueueLag(service, time.Since(req.EnqueuedAt))
		}

		ingestCtx, cancel := context.WithTimeout(handlerCtx, ingestTimeout)
		defer cancel()

		start := time.Now()
		workerMetrics.StartDocument()
		result, err := app.IngestUC.IngestStored(ingestCtx, req)
		chunks := 0
		if result != nil {
			chunks = result.ChunkCount
		}
		workerMetrics.FinishDocument(service, chunks, time.Since(start), err)
		return err
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
