package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	mcpadapter "github.com/kirillkom/policy-reviewer/internal/adapters/mcp"
	"github.com/kirillkom/policy-reviewer/internal/bootstrap"
	"github.com/kirillkom/policy-reviewer/internal/config"
	"github.com/kirillkom/policy-reviewer/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	// stdout carries the MCP stream.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, cfg.ServiceName+"-mcp", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	server, err := mcpadapter.NewServer(cfg.ServiceName, &mcpadapter.Ports{
		Ingestor:  app.IngestUC,
		Answerer:  app.AnswerUC,
		Catalog:   app.Catalog,
		FileTypes: app.Extractor,
	})
	if err != nil {
		slog.Error("mcp_server_init_failed", "error", err)
		os.Exit(1)
	}

	slog.Info("mcp_serving_stdio")
	if err := server.Run(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		slog.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
