// Package pdf turns PDF files into per-page plain text.
package pdf

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gen2brain/go-fitz"
	"github.com/google/uuid"

	"pdfrag/types"
)

// Extractor produces the text of every page of a document, in page order.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]string, error)
}

type ExtractorConfig struct {
	// CropTop and CropBottom remove running headers and footers before
	// extraction. Zero disables cropping.
	CropTop    float64
	CropBottom float64
	TempDir    string
}

// FitzExtractor validates with pdfcpu and extracts text with MuPDF.
type FitzExtractor struct {
	cfg    ExtractorConfig
	logger *slog.Logger
}

func NewFitzExtractor(cfg ExtractorConfig, logger *slog.Logger) *FitzExtractor {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FitzExtractor{cfg: cfg, logger: logger}
}

func (e *FitzExtractor) Extract(ctx context.Context, path string) ([]string, error) {
	start := time.Now()

	if err := Validate(path); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrExtraction, err)
	}
	count, err := PageCount(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrExtraction, err)
	}
	e.logger.Debug("validated pdf", "file", filepath.Base(path), "pages", count)

	src := path
	if e.cfg.CropTop > 0 || e.cfg.CropBottom > 0 {
		cropped := filepath.Join(e.cfg.TempDir, uuid.NewString()+".pdf")
		if err := RemoveHeaderFooterCrop(path, cropped, e.cfg.CropTop, e.cfg.CropBottom); err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrExtraction, err)
		}
		defer os.Remove(cropped)
		src = cropped
	}

	doc, err := fitz.New(src)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", types.ErrExtraction, path, err)
	}
	defer doc.Close()

	pages := make([]string, doc.NumPage())
	for i := range pages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrExtraction, err)
		}
		text, err := doc.Text(i)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d of %s: %w", types.ErrExtraction, i, path, err)
		}
		pages[i] = text
	}

	e.logger.Info("extracted pdf text",
		"file", filepath.Base(path),
		"pages", len(pages),
		"took", time.Since(start))
	return pages, nil
}
