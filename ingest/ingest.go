// Package ingest turns page texts into a stored document with embedded chunks.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"pdfrag/chunker"
	"pdfrag/pdf"
	"pdfrag/store"
	"pdfrag/types"
)

type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type Service struct {
	store     store.Storer
	embedder  Embedder
	extractor pdf.Extractor
	logger    *slog.Logger
}

// New wires an ingestion service. extractor may be nil when callers only use
// Ingest with already extracted pages.
func New(s store.Storer, e Embedder, extractor pdf.Extractor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     s,
		embedder:  e,
		extractor: extractor,
		logger:    logger,
	}
}

// IngestFile extracts the pages of the PDF at path and ingests them.
func (s *Service) IngestFile(ctx context.Context, path, filename, title string, chunking types.ChunkConfig) (types.IngestResult, error) {
	if s.extractor == nil {
		return types.IngestResult{}, fmt.Errorf("%w: no extractor configured", types.ErrExtraction)
	}
	if filename == "" {
		filename = filepath.Base(path)
	}

	pages, err := s.extractor.Extract(ctx, path)
	if err != nil {
		if !errors.Is(err, types.ErrExtraction) {
			err = fmt.Errorf("%w: %w", types.ErrExtraction, err)
		}
		return types.IngestResult{}, err
	}

	return s.Ingest(ctx, types.IngestParams{
		Title:    title,
		Filename: filename,
		Pages:    pages,
		Chunking: chunking,
	})
}

// Ingest chunks and embeds the pages, then stores the document and all of its
// chunks in one transaction. On error nothing is stored.
func (s *Service) Ingest(ctx context.Context, params types.IngestParams) (types.IngestResult, error) {
	if errs := params.Validate(); len(errs) > 0 {
		return types.IngestResult{}, types.NewValidationError(errs)
	}
	start := time.Now()
	title := params.Title
	if strings.TrimSpace(title) == "" {
		title = GenerateTitle(params.Filename)
	}
	log := s.logger.With("attempt", uuid.NewString(), "filename", params.Filename)

	drafts, err := chunker.Chunk(params.Pages, params.Chunking)
	if err != nil {
		return types.IngestResult{}, err
	}
	if len(drafts) == 0 {
		return types.IngestResult{}, fmt.Errorf("%w: %s has %d pages without text", types.ErrEmptyDocument, params.Filename, len(params.Pages))
	}
	log.Debug("chunked document",
		"pages", len(params.Pages),
		"chunks", len(drafts),
		"strategy", params.Chunking.Strategy)

	texts := make([]string, len(drafts))
	for i, d := range drafts {
		texts[i] = d.Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return types.IngestResult{}, fmt.Errorf("embed chunks: %w", err)
	}

	var doc types.Document
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		doc, err = tx.CreateDocument(ctx, title, params.Filename)
		if err != nil {
			return err
		}
		_, err = tx.CreateChunks(ctx, doc.ID, drafts, vectors)
		return err
	})
	if err != nil {
		log.Error("ingestion rolled back", "error", err)
		return types.IngestResult{}, fmt.Errorf("store document: %w", err)
	}

	log.Info("document ingested",
		"document_id", doc.ID,
		"title", title,
		"chunks", len(drafts),
		"took", time.Since(start))

	return types.IngestResult{
		Status:     "success",
		DocumentID: doc.ID,
		Title:      title,
		NumChunks:  len(drafts),
	}, nil
}

// GenerateTitle derives a display title from a file name.
func GenerateTitle(filename string) string {
	name := filepath.Base(filename)
	if strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name = name[:len(name)-4]
	}
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	name = strings.TrimSpace(name)
	if name == "" || name == "." {
		return filename
	}
	return name
}
