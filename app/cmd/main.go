package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pdfrag/app/server"
	"pdfrag/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("error loading configuration: ", err)
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	s, err := server.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		log.Fatal("error to start server: ", err)
	}

	go func() {
		if err := s.Run(); err != nil {
			os.Exit(1)
		}
	}()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	<-sigch
	logger.Info("received shutdown signal, shutting down server")
	if err := s.Stop(5 * time.Second); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}
