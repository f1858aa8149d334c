package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kirillkom/policy-reviewer/internal/adapters/cli"
	"github.com/kirillkom/policy-reviewer/internal/bootstrap"
	"github.com/kirillkom/policy-reviewer/internal/config"
	"github.com/kirillkom/policy-reviewer/internal/infrastructure/catalog"
	"github.com/kirillkom/policy-reviewer/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, cfg.ServiceName+"-cli", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "policyctl: %v\n", err)
		os.Exit(1)
	}

	root := cli.NewRootCommand(cli.Services{
		Ingestor:       app.IngestUC,
		Answerer:       app.AnswerUC,
		Catalog:        app.Catalog,
		ExportControls: catalog.WriteXLSX,
	})
	err = root.ExecuteContext(ctx)
	app.Close()
	if err != nil {
		os.Exit(1)
	}
}
