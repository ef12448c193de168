// Package query answers free-text queries by nearest-neighbor search.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pdfrag/store"
	"pdfrag/types"
)

const DefaultTopK = 5

// overFetch widens the candidate set when results are filtered by document.
const overFetch = 2

type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

type Service struct {
	store       store.Storer
	embedder    Embedder
	defaultTopK int
	logger      *slog.Logger
}

func New(s store.Storer, e Embedder, defaultTopK int, logger *slog.Logger) *Service {
	if defaultTopK <= 0 {
		defaultTopK = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:       s,
		embedder:    e,
		defaultTopK: defaultTopK,
		logger:      logger,
	}
}

// Query returns at most TopK chunks in ascending distance order.
//
// With a document filter, 2*TopK candidates are fetched and filtered. Fewer
// than TopK results are returned when not enough candidates belong to the
// document; no second fetch is made.
func (s *Service) Query(ctx context.Context, params types.QueryParams) ([]types.SearchResult, error) {
	start := time.Now()
	topK := params.TopK
	if topK <= 0 {
		topK = s.defaultTopK
	}

	vector, err := s.embedder.EmbedOne(ctx, params.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	limit := topK
	if params.DocumentID != nil {
		limit = overFetch * topK
	}

	candidates, err := s.store.NearestNeighbors(ctx, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	results := candidates
	if params.DocumentID != nil {
		results = make([]types.SearchResult, 0, topK)
		for _, r := range candidates {
			if r.Chunk.DocumentID == *params.DocumentID {
				results = append(results, r)
			}
		}
	}
	if len(results) > topK {
		results = results[:topK]
	}

	s.logger.Debug("query served",
		"top_k", topK,
		"candidates", len(candidates),
		"results", len(results),
		"took", time.Since(start))
	return results, nil
}
