package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrag/ingest"
	"pdfrag/model"
	"pdfrag/store"
	"pdfrag/types"
)

const dim = 16

func setup(t *testing.T) (*store.MemoryStore, *ingest.Service, *Service) {
	t.Helper()
	s := store.NewMemoryStore(dim)
	adapter := model.NewAdapter(model.NewHashEmbedder(dim), dim, 8, nil)
	return s, ingest.New(s, adapter, nil, nil), New(s, adapter, DefaultTopK, nil)
}

func ingestPages(t *testing.T, svc *ingest.Service, filename string, pages ...string) int64 {
	t.Helper()
	res, err := svc.Ingest(context.Background(), types.IngestParams{
		Filename: filename,
		Pages:    pages,
		Chunking: types.ChunkConfig{MaxChars: 60, Overlap: 10, Strategy: types.ChunkSentence},
	})
	require.NoError(t, err)
	return res.DocumentID
}

func TestQuery_EmptyStore(t *testing.T) {
	_, _, q := setup(t)

	results, err := q.Query(context.Background(), types.QueryParams{Text: "anything"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQuery_OrderedByDistance(t *testing.T) {
	_, in, q := setup(t)
	ingestPages(t, in, "solar.pdf",
		strings.Repeat("Solar panels convert sunlight into power. ", 6),
		strings.Repeat("Batteries store the energy for later use. ", 6),
	)

	results, err := q.Query(context.Background(), types.QueryParams{Text: "solar panels", TopK: 5})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.LessOrEqual(t, len(results), 5)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}
}

func TestQuery_DefaultTopK(t *testing.T) {
	_, in, q := setup(t)
	ingestPages(t, in, "long.pdf", strings.Repeat("Every sentence here is a chunk of its own. ", 20))

	results, err := q.Query(context.Background(), types.QueryParams{Text: "sentence"})
	require.NoError(t, err)
	assert.Len(t, results, DefaultTopK)
}

func TestQuery_DocumentFilter(t *testing.T) {
	_, in, q := setup(t)
	first := ingestPages(t, in, "a.pdf", strings.Repeat("Rivers flow into the sea. ", 10))
	second := ingestPages(t, in, "b.pdf", strings.Repeat("Mountains rise above clouds. ", 10))

	results, err := q.Query(context.Background(), types.QueryParams{Text: "rivers", TopK: 3, DocumentID: &second})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 3)
	for _, r := range results {
		assert.Equal(t, second, r.Chunk.DocumentID)
		assert.NotEqual(t, first, r.Chunk.DocumentID)
	}
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}
}

func TestQuery_UnknownDocumentFilter(t *testing.T) {
	_, in, q := setup(t)
	ingestPages(t, in, "a.pdf", "Only one short page.")

	missing := int64(999)
	results, err := q.Query(context.Background(), types.QueryParams{Text: "page", DocumentID: &missing})
	require.NoError(t, err)
	assert.Empty(t, results)
}

type failingEmbedder struct{ err error }

func (f failingEmbedder) EmbedOne(context.Context, string) ([]float32, error) { return nil, f.err }

func TestQuery_EmbedFailure(t *testing.T) {
	boom := errors.New("model offline")
	q := New(store.NewMemoryStore(dim), failingEmbedder{err: boom}, 0, nil)

	_, err := q.Query(context.Background(), types.QueryParams{Text: "x"})
	assert.ErrorIs(t, err, boom)
}

func TestQuery_WrongDimension(t *testing.T) {
	s := store.NewMemoryStore(dim)
	q := New(s, model.NewAdapter(model.NewHashEmbedder(8), dim, 8, nil), 0, nil)

	_, err := q.Query(context.Background(), types.QueryParams{Text: "x"})
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
}

// recordingStore returns canned candidates and records every search limit.
type recordingStore struct {
	*store.MemoryStore
	candidates []types.SearchResult
	limits     []int
}

func (r *recordingStore) NearestNeighbors(_ context.Context, _ []float32, limit int) ([]types.SearchResult, error) {
	r.limits = append(r.limits, limit)
	if len(r.candidates) > limit {
		return r.candidates[:limit], nil
	}
	return r.candidates, nil
}

func candidate(docID int64, distance float64) types.SearchResult {
	return types.SearchResult{Chunk: types.Chunk{DocumentID: docID}, Distance: distance}
}

func TestQuery_SearchLimit(t *testing.T) {
	rs := &recordingStore{MemoryStore: store.NewMemoryStore(dim)}
	q := New(rs, model.NewAdapter(model.NewHashEmbedder(dim), dim, 8, nil), DefaultTopK, nil)
	doc := int64(1)

	_, err := q.Query(context.Background(), types.QueryParams{Text: "x", TopK: 3, DocumentID: &doc})
	require.NoError(t, err)
	_, err = q.Query(context.Background(), types.QueryParams{Text: "x", TopK: 3})
	require.NoError(t, err)

	assert.Equal(t, []int{6, 3}, rs.limits)
}

func TestQuery_FilterMayReturnFewer(t *testing.T) {
	rs := &recordingStore{
		MemoryStore: store.NewMemoryStore(dim),
		candidates: []types.SearchResult{
			candidate(2, 0.1),
			candidate(1, 0.2),
			candidate(2, 0.3),
			candidate(2, 0.4),
			candidate(2, 0.5),
			candidate(1, 0.6),
			candidate(1, 0.7),
		},
	}
	q := New(rs, model.NewAdapter(model.NewHashEmbedder(dim), dim, 8, nil), DefaultTopK, nil)
	doc := int64(1)

	results, err := q.Query(context.Background(), types.QueryParams{Text: "x", TopK: 3, DocumentID: &doc})
	require.NoError(t, err)

	// only the first 6 candidates are searched, and one search is made
	require.Len(t, results, 2)
	assert.Equal(t, 0.2, results[0].Distance)
	assert.Equal(t, 0.6, results[1].Distance)
	assert.Equal(t, []int{6}, rs.limits)
}
