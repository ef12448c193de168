package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrag/store"
	"pdfrag/types"
)

func fixedCounter(string) (int, error) { return 42, nil }

func seeded(t *testing.T) (*store.MemoryStore, []types.SearchResult) {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore(2)

	var chunks []types.Chunk
	err := s.WithTx(ctx, func(tx store.Tx) error {
		doc, err := tx.CreateDocument(ctx, "Field Manual", "field_manual.pdf")
		if err != nil {
			return err
		}
		chunks, err = tx.CreateChunks(ctx, doc.ID,
			[]types.ChunkDraft{
				{Index: 0, PageStart: 0, PageEnd: 0, Text: "Keep the radio dry."},
				{Index: 1, PageStart: 2, PageEnd: 3, Text: "Charge batteries nightly."},
			},
			[][]float32{{0, 1}, {1, 0}})
		return err
	})
	require.NoError(t, err)

	return s, []types.SearchResult{
		{Chunk: chunks[1], Distance: 0.1},
		{Chunk: chunks[0], Distance: 0.4},
	}
}

func TestAnswer_NoResults(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	a := New(Config{URL: srv.URL}, store.NewMemoryStore(2), nil, WithTokenCounter(fixedCounter))
	ans, err := a.Answer(context.Background(), "anything?", nil)
	require.NoError(t, err)
	assert.Equal(t, NoContentAnswer, ans.Answer)
	assert.Empty(t, ans.Citations)
	assert.Zero(t, calls.Load())
}

func TestAnswer_PromptAndCitations(t *testing.T) {
	s, results := seeded(t)
	var got GenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(GenerateResponse{Response: "Charge them every night."})
	}))
	defer srv.Close()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a := New(Config{URL: srv.URL, Model: "llama3"}, s, nil,
		WithTokenCounter(fixedCounter),
		WithClock(func() time.Time { return now }))

	ans, err := a.Answer(context.Background(), "How often to charge?", results)
	require.NoError(t, err)
	assert.Equal(t, "Charge them every night.", ans.Answer)
	assert.Equal(t, now, ans.Timestamp)

	assert.Equal(t, "llama3", got.Model)
	assert.False(t, got.Stream)
	assert.Contains(t, got.Prompt, "--- Source 1: Field Manual (Pages 2-3) ---\nCharge batteries nightly.")
	assert.Contains(t, got.Prompt, "--- Source 2: Field Manual (Pages 0-0) ---\nKeep the radio dry.")
	assert.Contains(t, got.Prompt, "Question: How often to charge?")

	require.Len(t, ans.Citations, 2)
	assert.Equal(t, types.Citation{
		ChunkID:    results[0].Chunk.ID,
		DocumentID: results[0].Chunk.DocumentID,
		Title:      "Field Manual",
		PageStart:  2,
		PageEnd:    3,
		Distance:   0.1,
	}, ans.Citations[0])
}

func TestAnswer_StreamedResponse(t *testing.T) {
	s, results := seeded(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"Charge "}` + "\n" + `{"response":"nightly."}` + "\n" + `{"response":"","done":true}`))
	}))
	defer srv.Close()

	a := New(Config{URL: srv.URL}, s, nil, WithTokenCounter(fixedCounter))
	ans, err := a.Answer(context.Background(), "q", results)
	require.NoError(t, err)
	assert.Equal(t, "Charge nightly.", ans.Answer)
}

func TestAnswer_ServerError(t *testing.T) {
	s, results := seeded(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	a := New(Config{URL: srv.URL}, s, nil, WithTokenCounter(fixedCounter))
	_, err := a.Answer(context.Background(), "q", results)
	assert.ErrorIs(t, err, types.ErrGeneration)
}

func TestAnswer_UnknownDocumentTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(GenerateResponse{Response: "ok"})
	}))
	defer srv.Close()

	results := []types.SearchResult{{Chunk: types.Chunk{ID: 7, DocumentID: 99, Text: "orphan"}}}
	a := New(Config{URL: srv.URL}, store.NewMemoryStore(2), nil, WithTokenCounter(fixedCounter))
	ans, err := a.Answer(context.Background(), "q", results)
	require.NoError(t, err)
	require.Len(t, ans.Citations, 1)
	assert.Equal(t, "Unknown Document", ans.Citations[0].Title)
}

func TestBuildContext_Bounded(t *testing.T) {
	sources := []Source{
		{Title: "A", Result: types.SearchResult{Chunk: types.Chunk{Text: strings.Repeat("x", 50)}}},
		{Title: "B", Result: types.SearchResult{Chunk: types.Chunk{Text: strings.Repeat("y", 50)}}},
		{Title: "C", Result: types.SearchResult{Chunk: types.Chunk{Text: strings.Repeat("z", 50)}}},
	}

	text, used := BuildContext(sources, 200)
	assert.Equal(t, 2, used)
	assert.LessOrEqual(t, len(text), 200)
	assert.NotContains(t, text, "Source 3")

	text, used = BuildContext(sources, 20)
	assert.Equal(t, 1, used)
	assert.Equal(t, 20, len([]rune(text)))
	assert.True(t, strings.HasPrefix(text, "--- Source 1: A"))
}
