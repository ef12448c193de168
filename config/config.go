// Package config reads process settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"pdfrag/chunker"
	"pdfrag/types"
)

type Config struct {
	PGHost   string
	PGPort   int
	PGUser   string
	PGPass   string
	PGDBName string

	// StoreDriver is "postgres" or "memory".
	StoreDriver string

	// EmbeddingProvider is "ollama" or "hash".
	EmbeddingProvider  string
	EmbeddingURL       string
	EmbeddingModel     string
	EmbeddingDim       int
	EmbeddingBatchSize int
	EmbeddingNormalize bool

	Chunking    types.ChunkConfig
	DefaultTopK int

	ServerAddr string
	UploadDir  string

	LLMURL          string
	LLMModel        string
	MaxContextChars int

	LogLevel  string
	LogFormat string

	PDFCropTop    float64
	PDFCropBottom float64

	Loader types.LoaderConfig
}

// Load reads .env from the working directory if present, then the
// environment. Unset variables take their defaults.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	r := &reader{}
	cfg := Config{
		PGHost:   r.str("PG_HOST", "localhost"),
		PGPort:   r.integer("PG_PORT", 5432),
		PGUser:   r.str("PG_USER", "postgres"),
		PGPass:   r.str("PG_PASS", "postgres"),
		PGDBName: r.str("PG_DB_NAME", "pdfrag"),

		StoreDriver: r.str("STORE_DRIVER", "postgres"),

		EmbeddingProvider:  r.str("EMBEDDING_PROVIDER", "ollama"),
		EmbeddingURL:       r.str("OLLAMA_EMBEDDING_URL", "http://localhost:11434/api/embed"),
		EmbeddingModel:     r.str("OLLAMA_EMBEDDING_MODEL", "all-minilm"),
		EmbeddingDim:       r.integer("EMBEDDING_DIM", 384),
		EmbeddingBatchSize: r.integer("EMBEDDING_BATCH_SIZE", 32),
		EmbeddingNormalize: r.boolean("EMBEDDING_NORMALIZE", true),

		Chunking: types.ChunkConfig{
			MaxChars: r.integer("CHUNK_MAX_CHARS", chunker.DefaultMaxChars),
			Overlap:  r.integer("CHUNK_OVERLAP", chunker.DefaultOverlap),
			Strategy: types.ChunkStrategy(r.str("CHUNK_STRATEGY", string(types.ChunkSentence))),
		},
		DefaultTopK: r.integer("DEFAULT_TOP_K", 5),

		ServerAddr: r.str("SERVER_ADDR", ":3000"),
		UploadDir:  r.str("UPLOAD_DIR", os.TempDir()),

		LLMURL:          r.str("LLM_URL", "http://localhost:11434/api/generate"),
		LLMModel:        r.str("LLM_MODEL", "llama3.2"),
		MaxContextChars: r.integer("MAX_CONTEXT_CHARS", 4000),

		LogLevel:  r.str("LOG_LEVEL", "info"),
		LogFormat: r.str("LOG_FORMAT", "text"),

		PDFCropTop:    r.float("PDF_CROP_TOP", 0),
		PDFCropBottom: r.float("PDF_CROP_BOTTOM", 0),

		Loader: types.LoaderConfig{
			SourceDir:      r.str("LOADER_SOURCE_DIR", "./data/in"),
			ArchiveDir:     r.str("LOADER_ARCHIVE_DIR", "./data/archive"),
			BadDir:         r.str("LOADER_BAD_DIR", "./data/bad"),
			MonitoringTime: r.duration("LOADER_MONITORING_TIME", 5*time.Second),
		},
	}
	if err := errors.Join(r.errs...); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate checks settings that cannot be fixed by a default.
func (c Config) Validate() error {
	var errs []error
	if c.Chunking.MaxChars <= 0 {
		errs = append(errs, fmt.Errorf("CHUNK_MAX_CHARS must be positive, got %d", c.Chunking.MaxChars))
	}
	if c.Chunking.Overlap < 0 {
		errs = append(errs, fmt.Errorf("CHUNK_OVERLAP must not be negative, got %d", c.Chunking.Overlap))
	}
	switch c.Chunking.Strategy {
	case types.ChunkSentence, types.ChunkWindow:
	default:
		errs = append(errs, fmt.Errorf("CHUNK_STRATEGY must be sentence or window, got %q", c.Chunking.Strategy))
	}
	if c.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("EMBEDDING_DIM must be positive, got %d", c.EmbeddingDim))
	}
	switch c.StoreDriver {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", c.StoreDriver))
	}
	switch c.EmbeddingProvider {
	case "ollama", "hash":
	default:
		errs = append(errs, fmt.Errorf("EMBEDDING_PROVIDER must be ollama or hash, got %q", c.EmbeddingProvider))
	}
	if c.DefaultTopK <= 0 {
		errs = append(errs, fmt.Errorf("DEFAULT_TOP_K must be positive, got %d", c.DefaultTopK))
	}
	return errors.Join(errs...)
}

func (c Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.PGHost, c.PGPort, c.PGUser, c.PGPass, c.PGDBName)
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c Config) NewLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

type reader struct {
	errs []error
}

func (r *reader) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func (r *reader) integer(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (r *reader) float(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (r *reader) boolean(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

// duration accepts Go durations ("10s") or a bare number of seconds.
func (r *reader) duration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
