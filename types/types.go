package types

import (
	"time"
)

type ChunkStrategy string

const (
	ChunkSentence ChunkStrategy = "sentence"
	ChunkWindow   ChunkStrategy = "window"
)

// ChunkConfig controls how page texts are split before embedding.
type ChunkConfig struct {
	MaxChars int
	Overlap  int
	Strategy ChunkStrategy
}

// ChunkDraft is a chunk produced by the chunker, not yet linked to a document.
type ChunkDraft struct {
	Index     int
	PageStart int
	PageEnd   int
	Text      string
}

type Chunk struct {
	ID         int64     `json:"chunk_id"`
	DocumentID int64     `json:"document_id"`
	Index      int       `json:"chunk_index"`
	PageStart  int       `json:"page_start"`
	PageEnd    int       `json:"page_end"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

type Document struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"created_at"`
	// ChunkCount is filled by read queries only.
	ChunkCount int `json:"chunk_count"`
}

// SearchResult pairs a stored chunk with its distance to the query vector.
// Lower distance means more similar.
type SearchResult struct {
	Chunk    Chunk
	Distance float64
}

type IngestResult struct {
	Status     string `json:"status"`
	DocumentID int64  `json:"document_id"`
	Title      string `json:"title"`
	NumChunks  int    `json:"num_chunks"`
}

type Citation struct {
	ChunkID    int64   `json:"chunk_id"`
	DocumentID int64   `json:"document_id"`
	Title      string  `json:"title"`
	PageStart  int     `json:"page_start"`
	PageEnd    int     `json:"page_end"`
	Distance   float64 `json:"distance"`
}

type Answer struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	Timestamp time.Time  `json:"timestamp"`
}

type LoaderConfig struct {
	MonitoringTime time.Duration
	SourceDir      string
	ArchiveDir     string
	BadDir         string
}
