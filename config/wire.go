package config

import (
	"context"
	"fmt"
	"log/slog"

	"pdfrag/model"
	"pdfrag/pdf"
	"pdfrag/store"
)

// OpenStore connects the configured store and creates its schema.
func (c Config) OpenStore(ctx context.Context, logger *slog.Logger) (store.Storer, error) {
	var s store.Storer
	switch c.StoreDriver {
	case "memory":
		s = store.NewMemoryStore(c.EmbeddingDim)
	default:
		pg, err := store.NewPostgresStore(ctx, c.PostgresDSN(), c.EmbeddingDim, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		s = pg
	}

	if err := s.Init(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

// NewEmbedder wraps the configured generator in a dimension checking adapter.
func (c Config) NewEmbedder(logger *slog.Logger) *model.Adapter {
	var gen model.Generator
	switch c.EmbeddingProvider {
	case "hash":
		gen = model.NewHashEmbedder(c.EmbeddingDim)
	default:
		gen = model.NewOllamaEmbedder(model.OllamaConfig{
			URL:       c.EmbeddingURL,
			Model:     c.EmbeddingModel,
			Normalize: c.EmbeddingNormalize,
		}, logger)
	}
	return model.NewAdapter(gen, c.EmbeddingDim, c.EmbeddingBatchSize, logger)
}

func (c Config) NewExtractor(logger *slog.Logger) *pdf.FitzExtractor {
	return pdf.NewFitzExtractor(pdf.ExtractorConfig{
		CropTop:    c.PDFCropTop,
		CropBottom: c.PDFCropBottom,
	}, logger)
}
