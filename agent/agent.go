// Package agent answers questions from retrieved chunks with an Ollama model.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"pdfrag/types"
)

const (
	DefaultMaxContextChars = 4000

	NoContentAnswer = "No relevant content found in the specified documents."
	unknownTitle    = "Unknown Document"
)

const systemPrompt = `You are a helpful assistant that answers questions based ONLY on the provided context.

Important instructions:
- Use ONLY the information from the context below to answer the question.
- If the answer is not in the context, say "I don't have enough information in the provided documents to answer this question."
- Do not make up information or use knowledge outside of the provided context.
- Be concise and direct in your answers.
- If you quote from the context, indicate which source you are using.`

type GenerateRequest struct {
	Model  string `json:"model"`
	System string `json:"system"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type GenerateResponse struct {
	Response string `json:"response"`
}

// TitleLookup resolves the title of a chunk's document.
type TitleLookup interface {
	DocumentByID(ctx context.Context, id int64) (types.Document, error)
}

// TokenCounter reports the number of model tokens in text.
type TokenCounter func(text string) (int, error)

type Config struct {
	URL             string
	Model           string
	MaxContextChars int
	Timeout         time.Duration
}

type Agent struct {
	cfg      Config
	docs     TitleLookup
	client   *http.Client
	countTok TokenCounter
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Agent)

func WithTokenCounter(c TokenCounter) Option {
	return func(a *Agent) {
		a.countTok = c
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Agent) {
		a.now = now
	}
}

func New(cfg Config, docs TitleLookup, logger *slog.Logger, opts ...Option) *Agent {
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = DefaultMaxContextChars
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Agent{
		cfg:      cfg,
		docs:     docs,
		client:   &http.Client{Timeout: cfg.Timeout},
		countTok: CountTokens,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Source is a retrieved chunk together with its document title.
type Source struct {
	Result types.SearchResult
	Title  string
}

// Answer generates an answer to question grounded on results, which must be
// in retrieval order. Citations list the sources that made it into the
// prompt context.
func (a *Agent) Answer(ctx context.Context, question string, results []types.SearchResult) (types.Answer, error) {
	if len(results) == 0 {
		return types.Answer{
			Answer:    NoContentAnswer,
			Citations: []types.Citation{},
			Timestamp: a.now(),
		}, nil
	}

	sources, err := a.resolve(ctx, results)
	if err != nil {
		return types.Answer{}, err
	}
	sourcesText, used := BuildContext(sources, a.cfg.MaxContextChars)

	answer, err := a.generate(ctx, sourcesText, question)
	if err != nil {
		return types.Answer{}, err
	}

	citations := make([]types.Citation, used)
	for i, src := range sources[:used] {
		c := src.Result.Chunk
		citations[i] = types.Citation{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			Title:      src.Title,
			PageStart:  c.PageStart,
			PageEnd:    c.PageEnd,
			Distance:   src.Result.Distance,
		}
	}
	return types.Answer{
		Answer:    answer,
		Citations: citations,
		Timestamp: a.now(),
	}, nil
}

func (a *Agent) resolve(ctx context.Context, results []types.SearchResult) ([]Source, error) {
	titles := make(map[int64]string)
	sources := make([]Source, len(results))
	for i, r := range results {
		id := r.Chunk.DocumentID
		title, ok := titles[id]
		if !ok {
			doc, err := a.docs.DocumentByID(ctx, id)
			switch {
			case err == nil:
				title = doc.Title
			case errors.Is(err, types.ErrNotFound):
				title = unknownTitle
			default:
				return nil, fmt.Errorf("resolve title of document %d: %w", id, err)
			}
			titles[id] = title
		}
		sources[i] = Source{Result: r, Title: title}
	}
	return sources, nil
}

// BuildContext renders sources in order until maxChars would be exceeded and
// returns the context with the number of sources used. The first source is
// always used, cut to maxChars if needed.
func BuildContext(sources []Source, maxChars int) (string, int) {
	var sb strings.Builder
	used := 0
	for i, src := range sources {
		c := src.Result.Chunk
		block := fmt.Sprintf("--- Source %d: %s (Pages %d-%d) ---\n%s\n\n", i+1, src.Title, c.PageStart, c.PageEnd, c.Text)

		if utf8.RuneCountInString(sb.String())+utf8.RuneCountInString(block) > maxChars {
			if i == 0 {
				sb.WriteString(string([]rune(block)[:maxChars]))
				used = 1
			}
			break
		}
		sb.WriteString(block)
		used++
	}
	return sb.String(), used
}

func (a *Agent) generate(ctx context.Context, sourcesText, question string) (string, error) {
	start := time.Now()
	prompt := fmt.Sprintf(`Context:
%s

Question: %s

Please answer the question based only on the context provided above.`, sourcesText, question)

	reqBody, err := json.Marshal(GenerateRequest{
		Model:  a.cfg.Model,
		System: systemPrompt,
		Prompt: prompt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	if count, err := a.countTok(systemPrompt + prompt); err != nil {
		a.logger.Warn("prompt token count unavailable", "error", err)
	} else {
		a.logger.Debug("prompt prepared", "tokens", count, "chars", len(prompt))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.URL, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrGeneration, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", types.ErrGeneration, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d, body: %s", types.ErrGeneration, resp.StatusCode, string(body))
	}

	output := parseGenerated(body)
	if strings.TrimSpace(output) == "" {
		return "", fmt.Errorf("%w: empty response from %s", types.ErrGeneration, a.cfg.Model)
	}

	a.logger.Info("answer generated",
		"model", a.cfg.Model,
		"chars", len(output),
		"took", time.Since(start))
	return output, nil
}

// parseGenerated accepts both a single generate response and a stream of
// newline-delimited partial responses.
func parseGenerated(body []byte) string {
	var genResp GenerateResponse
	if err := json.Unmarshal(body, &genResp); err == nil && genResp.Response != "" {
		return genResp.Response
	}

	var output strings.Builder
	decoder := json.NewDecoder(bytes.NewReader(body))
	for decoder.More() {
		var chunk GenerateResponse
		if err := decoder.Decode(&chunk); err != nil {
			break
		}
		output.WriteString(chunk.Response)
	}
	return output.String()
}

var cl100k = sync.OnceValues(func() (*tiktoken.Tiktoken, error) {
	return tiktoken.GetEncoding("cl100k_base")
})

// CountTokens counts cl100k_base tokens. The encoding is loaded on first use.
func CountTokens(text string) (int, error) {
	enc, err := cl100k()
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}
