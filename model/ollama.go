package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"
)

// OllamaEmbedder calls the Ollama /api/embed endpoint.
type OllamaEmbedder struct {
	apiURL    string
	model     string
	normalize bool
	client    *http.Client
	logger    *slog.Logger

	mu     sync.Mutex
	loaded bool
}

type OllamaConfig struct {
	URL       string
	Model     string
	Normalize bool
	Timeout   time.Duration
}

type OllamaEmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type OllamaEmbeddingResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

func NewOllamaEmbedder(cfg OllamaConfig, logger *slog.Logger) *OllamaEmbedder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OllamaEmbedder{
		apiURL:    cfg.URL,
		model:     cfg.Model,
		normalize: cfg.Normalize,
		client:    &http.Client{Timeout: cfg.Timeout},
		logger:    logger,
	}
}

// Warmup makes the server load the model. Concurrent callers wait for the
// one in flight; after the first success it is a no-op. A failed warm-up is
// attempted again by the next caller.
func (e *OllamaEmbedder) Warmup(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded {
		return nil
	}

	start := time.Now()
	vectors, err := e.request(ctx, []string{"warmup"})
	if err != nil {
		return fmt.Errorf("load embedding model %s: %w", e.model, err)
	}
	e.loaded = true
	e.logger.Info("embedding model loaded",
		"model", e.model,
		"dimension", len(vectors[0]),
		"took", time.Since(start))
	return nil
}

func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.Warmup(ctx); err != nil {
		return nil, err
	}
	return e.request(ctx, texts)
}

func (e *OllamaEmbedder) request(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(OllamaEmbeddingRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.apiURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var ollamaResp OllamaEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(ollamaResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(ollamaResp.Embeddings), len(texts))
	}

	out := make([][]float32, len(ollamaResp.Embeddings))
	for i, vec := range ollamaResp.Embeddings {
		if e.normalize {
			vec = normalize64(vec)
		}
		out[i] = toFloat32(vec)
	}
	return out, nil
}

func toFloat32(vec []float64) []float32 {
	embedding := make([]float32, len(vec))
	for i, v := range vec {
		embedding[i] = float32(v)
	}
	return embedding
}

// normalize64 scales vec to unit length in place.
func normalize64(vec []float64) []float64 {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}

	for i, x := range vec {
		vec[i] = x / norm
	}
	return vec
}
