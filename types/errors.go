package types

import "errors"

var (
	// ErrExtraction is returned when page text could not be produced from the source file.
	ErrExtraction = errors.New("text extraction failed")
	// ErrEmptyDocument is returned when chunking produced no chunks.
	ErrEmptyDocument = errors.New("document produced no chunks")
	// ErrDimensionMismatch is returned when an embedding has the wrong length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrCountMismatch is returned when chunks and vectors disagree in number.
	ErrCountMismatch = errors.New("chunk and vector count mismatch")
	// ErrStorage wraps failures to persist or commit.
	ErrStorage = errors.New("storage failure")

	// ErrGeneration is returned when the language model gave no usable answer.
	ErrGeneration = errors.New("answer generation failed")

	ErrNotFound           = errors.New("not found")
	ErrInvalidChunkConfig = errors.New("invalid chunk configuration")
)
