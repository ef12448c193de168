package service

import (
	"context"
	"log"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"pdfrag/loader/internal"
	"pdfrag/types"
)

type Ingester interface {
	IngestFile(ctx context.Context, path, filename, title string, chunking types.ChunkConfig) (types.IngestResult, error)
}

// outcome is the result of processing one watched file.
type outcome struct {
	path   string
	result types.IngestResult
	err    error
}

type Service struct {
	logger       *slog.Logger
	ingester     Ingester
	loader       *internal.PDFLoader
	chunking     types.ChunkConfig
	drainTimeout time.Duration
}

func New(ingester Ingester, loader *internal.PDFLoader, chunking types.ChunkConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:       logger,
		ingester:     ingester,
		loader:       loader,
		chunking:     chunking,
		drainTimeout: 5 * time.Second,
	}
}

// Run drives watcher, processor and archiver until ctx is cancelled, then
// waits up to the drain timeout for them to stop.
func (s *Service) Run(ctx context.Context) {
	fileChan := make(chan string, 10)
	doneChan := make(chan outcome)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(fileChan)
		s.loader.WatchFile(ctx, fileChan)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(doneChan)
		s.ProcessFiles(ctx, fileChan, doneChan)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.ArchiveFiles(doneChan)
	}()

	<-ctx.Done()
	log.Println("[LOADER] shutting down gracefully...")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[LOADER] all goroutines stopped successfully")
	case <-time.After(s.drainTimeout):
		log.Println("[LOADER] timeout waiting for goroutines to stop, forcing shutdown")
	}
	s.logger.Info("loader service stopped")
}

// ProcessFiles ingests every path received on fileChan. A file whose ingestion
// failed because of cancellation is released and stays in the source
// directory. Files ingested before cancellation are still archived.
func (s *Service) ProcessFiles(ctx context.Context, fileChan <-chan string, doneChan chan<- outcome) {
	for path := range fileChan {
		if ctx.Err() != nil {
			s.loader.Release(path)
			continue
		}

		s.logger.Info("processing file", "path", path)
		res, err := s.ingester.IngestFile(ctx, path, filepath.Base(path), "", s.chunking)
		if err != nil && ctx.Err() != nil {
			s.logger.Warn("file processing interrupted", "path", path)
			s.loader.Release(path)
			continue
		}
		doneChan <- outcome{path: path, result: res, err: err}
	}
}

// ArchiveFiles moves processed files to the archive, or to the bad directory
// when ingestion failed.
func (s *Service) ArchiveFiles(doneChan <-chan outcome) {
	for o := range doneChan {
		state := internal.FileDone
		if o.err != nil {
			state = internal.FileBad
			s.logger.Error("ingestion failed", "path", o.path, "error", o.err)
		} else {
			s.logger.Info("document saved",
				"path", o.path,
				"document_id", o.result.DocumentID,
				"chunks", o.result.NumChunks)
		}

		dest, err := s.loader.MoveToArchive(o.path, state)
		if err != nil {
			s.logger.Error("archive failed", "path", o.path, "error", err)
		} else {
			log.Printf("[LOADER] file moved to: %s", dest)
		}
		s.loader.Release(o.path)
	}
}
