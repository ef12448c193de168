package store

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"pdfrag/types"
)

// MemoryStore keeps everything in process memory. Transactions stage their
// writes and publish them under the lock on commit. Ids come from counters
// that, like database sequences, are not reused after a rollback.
type MemoryStore struct {
	mu        sync.RWMutex
	dim       int
	documents []types.Document
	chunks    []types.Chunk

	docSeq   atomic.Int64
	chunkSeq atomic.Int64

	chunkFault func(position int) error
	now        func() time.Time
}

type MemoryOption func(*MemoryStore)

// WithChunkFault makes CreateChunks fail at the first position for which
// fault returns an error.
func WithChunkFault(fault func(position int) error) MemoryOption {
	return func(m *MemoryStore) {
		m.chunkFault = fault
	}
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) {
		m.now = now
	}
}

func NewMemoryStore(dim int, opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		dim: dim,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemoryStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	tx := &memTx{store: m}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: commit: %w", types.ErrStorage, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents = append(m.documents, tx.documents...)
	m.chunks = append(m.chunks, tx.chunks...)
	return nil
}

type memTx struct {
	store     *MemoryStore
	documents []types.Document
	chunks    []types.Chunk
}

func (t *memTx) CreateDocument(_ context.Context, title, filename string) (types.Document, error) {
	doc := types.Document{
		ID:        t.store.docSeq.Add(1),
		Title:     title,
		Filename:  filename,
		CreatedAt: t.store.now(),
	}
	t.documents = append(t.documents, doc)
	return doc, nil
}

func (t *memTx) CreateChunks(_ context.Context, documentID int64, drafts []types.ChunkDraft, vectors [][]float32) ([]types.Chunk, error) {
	chunks, err := attach(documentID, drafts, vectors, t.store.dim)
	if err != nil {
		return nil, err
	}

	created := t.store.now()
	for i := range chunks {
		if t.store.chunkFault != nil {
			if err := t.store.chunkFault(i); err != nil {
				return nil, fmt.Errorf("%w: insert chunk %d: %w", types.ErrStorage, chunks[i].Index, err)
			}
		}
		chunks[i].ID = t.store.chunkSeq.Add(1)
		chunks[i].CreatedAt = created
		t.chunks = append(t.chunks, chunks[i])
	}
	return chunks, nil
}

// NearestNeighbors scans every chunk. Equal distances keep insertion order.
func (m *MemoryStore) NearestNeighbors(_ context.Context, vector []float32, limit int) ([]types.SearchResult, error) {
	if len(vector) != m.dim {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, expected %d", types.ErrDimensionMismatch, len(vector), m.dim)
	}

	m.mu.RLock()
	results := make([]types.SearchResult, 0, len(m.chunks))
	for _, c := range m.chunks {
		results = append(results, types.SearchResult{Chunk: c, Distance: euclidean(vector, c.Embedding)})
	}
	m.mu.RUnlock()

	slices.SortStableFunc(results, func(a, b types.SearchResult) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
	if limit >= 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *MemoryStore) DocumentsByRecency(_ context.Context, limit int) ([]types.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]types.Document, 0, len(m.documents))
	for i := len(m.documents) - 1; i >= 0; i-- {
		docs = append(docs, m.withCount(m.documents[i]))
	}
	slices.SortStableFunc(docs, func(a, b types.Document) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit >= 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func (m *MemoryStore) DocumentByID(_ context.Context, id int64) (types.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, doc := range m.documents {
		if doc.ID == id {
			return m.withCount(doc), nil
		}
	}
	return types.Document{}, fmt.Errorf("document %d: %w", id, types.ErrNotFound)
}

func (m *MemoryStore) ChunksByDocument(_ context.Context, documentID int64) ([]types.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chunks := []types.Chunk{}
	for _, c := range m.chunks {
		if c.DocumentID == documentID {
			chunks = append(chunks, c)
		}
	}
	slices.SortFunc(chunks, func(a, b types.Chunk) int {
		return cmp.Compare(a.Index, b.Index)
	})
	return chunks, nil
}

// withCount must be called with m.mu held.
func (m *MemoryStore) withCount(doc types.Document) types.Document {
	doc.ChunkCount = 0
	for _, c := range m.chunks {
		if c.DocumentID == doc.ID {
			doc.ChunkCount++
		}
	}
	return doc
}

func (m *MemoryStore) Init(context.Context) error { return nil }

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func euclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
