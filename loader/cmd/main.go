package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pdfrag/config"
	"pdfrag/ingest"
	"pdfrag/loader/internal"
	"pdfrag/loader/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("error loading configuration: ", err)
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	store, err := cfg.OpenStore(openCtx, logger)
	cancel()
	if err != nil {
		log.Fatal("error to open store: ", err)
	}

	loader, err := internal.NewPDFLoader(cfg.Loader)
	if err != nil {
		log.Fatal("error creating loader directories: ", err)
	}

	ingester := ingest.New(store, cfg.NewEmbedder(logger), cfg.NewExtractor(logger), logger)
	service.New(ingester, loader, cfg.Chunking, logger).Run(ctx)

	log.Println("Closing database connection pool...")
	if err := store.Close(); err != nil {
		log.Printf("error closing pool: %v\n", err)
	}
}
