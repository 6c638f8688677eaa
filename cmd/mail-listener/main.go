package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"coretax/internal/archive"
	"coretax/internal/config"
	"coretax/internal/listener"
	"coretax/internal/pipeline"
	"coretax/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	var sinks []pipeline.ResultSink
	if cfg.DatabaseURL != "" {
		store, err := archive.Open(cfg.DatabaseURL)
		must(err)
		defer store.Close()
		sinks = append(sinks, store)
	}

	processor := pipeline.NewProcessingService(db, pipeline.NewParserFromConfig(cfg), sinks...)
	svc := listener.NewService(db, cfg, processor)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
