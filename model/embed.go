package model

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pdfrag/types"
)

const DefaultBatchSize = 32

// Generator is the embedding capability: one vector per input text, in order.
type Generator interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Adapter batches texts through a Generator and checks every produced vector
// against the deployment dimension.
type Adapter struct {
	gen       Generator
	dim       int
	batchSize int
	logger    *slog.Logger
}

func NewAdapter(gen Generator, dim, batchSize int, logger *slog.Logger) *Adapter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		gen:       gen,
		dim:       dim,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Dimension returns the vector length every embedding must have.
func (a *Adapter) Dimension() int {
	return a.dim
}

// EmbedBatch returns out[i] for texts[i]. The result does not depend on the
// configured batch size.
func (a *Adapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	start := time.Now()
	out := make([][]float32, 0, len(texts))
	for lo := 0; lo < len(texts); lo += a.batchSize {
		hi := min(lo+a.batchSize, len(texts))

		vectors, err := a.gen.Embed(ctx, texts[lo:hi])
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d:%d]: %w", lo, hi, err)
		}
		if len(vectors) != hi-lo {
			return nil, fmt.Errorf("%w: batch [%d:%d] returned %d vectors", types.ErrCountMismatch, lo, hi, len(vectors))
		}
		for i, v := range vectors {
			if len(v) != a.dim {
				return nil, fmt.Errorf("%w: text %d has %d dimensions, expected %d", types.ErrDimensionMismatch, lo+i, len(v), a.dim)
			}
		}
		out = append(out, vectors...)
	}

	a.logger.Debug("embedded texts",
		"count", len(texts),
		"batch_size", a.batchSize,
		"dimension", a.dim,
		"took", time.Since(start))
	return out, nil
}

func (a *Adapter) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := a.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
