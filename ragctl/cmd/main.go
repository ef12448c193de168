package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pdfrag/config"
	"pdfrag/ingest"
	"pdfrag/query"
	"pdfrag/ragctl"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := cfg.OpenStore(ctx, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	embedder := cfg.NewEmbedder(logger)
	ragctl.SetServices(ragctl.Services{
		Ingester:  ingest.New(store, embedder, cfg.NewExtractor(logger), logger),
		Querier:   query.New(store, embedder, cfg.DefaultTopK, logger),
		Documents: store,
		Chunking:  cfg.Chunking,
	})
	return ragctl.Execute(ctx)
}
