package model

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ollamaServer(t *testing.T, requests *atomic.Int32, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if status != http.StatusOK {
			http.Error(w, "model not found", status)
			return
		}

		var req OllamaEmbeddingRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		assert.Equal(t, "all-minilm", req.Model)

		resp := OllamaEmbeddingResponse{Embeddings: make([][]float64, len(req.Input))}
		for i := range req.Input {
			resp.Embeddings[i] = []float64{3, 4, float64(len(req.Input[i]))}
		}
		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaEmbedder_Embed(t *testing.T) {
	var requests atomic.Int32
	srv := ollamaServer(t, &requests, http.StatusOK)
	e := NewOllamaEmbedder(OllamaConfig{URL: srv.URL, Model: "all-minilm"}, nil)

	out, err := e.Embed(context.Background(), []string{"a", "bbb"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, []float32{3, 4, 1}, out[0])
	assert.Equal(t, []float32{3, 4, 3}, out[1])

	_, err = e.Embed(context.Background(), []string{"c"})
	require.NoError(t, err)
	// warm-up + two embed calls
	assert.Equal(t, int32(3), requests.Load())
}

func TestOllamaEmbedder_Normalize(t *testing.T) {
	var requests atomic.Int32
	srv := ollamaServer(t, &requests, http.StatusOK)
	e := NewOllamaEmbedder(OllamaConfig{URL: srv.URL, Model: "all-minilm", Normalize: true}, nil)

	out, err := e.Embed(context.Background(), []string{""})
	require.NoError(t, err)
	assert.InDelta(t, 0.6, out[0][0], 1e-6)
	assert.InDelta(t, 0.8, out[0][1], 1e-6)
	assert.InDelta(t, 0.0, out[0][2], 1e-6)
}

func TestOllamaEmbedder_WarmupOnce(t *testing.T) {
	var requests atomic.Int32
	srv := ollamaServer(t, &requests, http.StatusOK)
	e := NewOllamaEmbedder(OllamaConfig{URL: srv.URL, Model: "all-minilm"}, nil)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, e.Warmup(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), requests.Load())
}

func TestOllamaEmbedder_ErrorStatus(t *testing.T) {
	var requests atomic.Int32
	srv := ollamaServer(t, &requests, http.StatusNotFound)
	e := NewOllamaEmbedder(OllamaConfig{URL: srv.URL, Model: "all-minilm"}, nil)

	_, err := e.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")

	// a failed warm-up is tried again
	_, err = e.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Equal(t, int32(2), requests.Load())
}
