// Package chunker splits extracted page texts into bounded, overlapping chunks.
//
// Lengths are counted in characters (Unicode code points), never bytes, so a
// chunk boundary can not cut a multi-byte character in half.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"pdfrag/types"
)

const (
	DefaultMaxChars = 1500
	DefaultOverlap  = 200
)

// Chunk splits pages with the strategy selected in cfg. An empty strategy
// means sentence-aware chunking.
func Chunk(pages []string, cfg types.ChunkConfig) ([]types.ChunkDraft, error) {
	if cfg.MaxChars <= 0 {
		return nil, fmt.Errorf("%w: max_chars must be positive, got %d", types.ErrInvalidChunkConfig, cfg.MaxChars)
	}
	if cfg.Overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must not be negative, got %d", types.ErrInvalidChunkConfig, cfg.Overlap)
	}

	switch cfg.Strategy {
	case types.ChunkSentence, "":
		return Sentences(pages, cfg.MaxChars, cfg.Overlap), nil
	case types.ChunkWindow:
		return Windows(pages, cfg.MaxChars, cfg.Overlap), nil
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", types.ErrInvalidChunkConfig, cfg.Strategy)
	}
}

// Sentences accumulates ". "-delimited segments of each page into chunks of at
// most maxChars. When a chunk is closed, the next one is seeded with the last
// overlap characters of the closed buffer.
//
// A single segment longer than maxChars is never split, so such a chunk may
// exceed the limit.
func Sentences(pages []string, maxChars, overlap int) []types.ChunkDraft {
	var b builder

	for page, text := range pages {
		if strings.TrimSpace(text) == "" {
			continue
		}
		if utf8.RuneCountInString(text) <= maxChars {
			b.emit(text, page)
			continue
		}

		var current string
		for _, segment := range strings.Split(strings.ReplaceAll(text, "\n", " "), ". ") {
			segment = strings.TrimSpace(segment)
			if segment == "" {
				continue
			}
			if !strings.HasSuffix(segment, ".") {
				segment += "."
			}

			size := utf8.RuneCountInString(current)
			if current != "" && size+utf8.RuneCountInString(segment)+1 > maxChars {
				b.emit(current, page)
				current = tail(current, overlap) + " " + segment
				continue
			}
			if current != "" {
				current += " " + segment
			} else {
				current = segment
			}
		}

		if strings.TrimSpace(current) != "" {
			b.emit(current, page)
		}
	}

	return b.chunks
}

// Windows slides a fixed window of maxChars over each page, stepping back
// overlap characters between windows. With overlap >= maxChars the windows
// do not overlap.
func Windows(pages []string, maxChars, overlap int) []types.ChunkDraft {
	var b builder

	for page, text := range pages {
		if strings.TrimSpace(text) == "" {
			continue
		}
		runes := []rune(text)
		if len(runes) <= maxChars {
			b.emit(text, page)
			continue
		}

		start := 0
		for start < len(runes) {
			end := min(start+maxChars, len(runes))
			piece := string(runes[start:end])
			if strings.TrimSpace(piece) != "" {
				b.emit(piece, page)
			}
			if end == len(runes) {
				break
			}

			next := end - overlap
			if overlap >= maxChars || next <= start {
				next = end
			}
			start = next
		}
	}

	return b.chunks
}

// tail returns the last n characters of s, or s itself when it is shorter.
func tail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}

type builder struct {
	chunks []types.ChunkDraft
}

// emit appends a trimmed chunk confined to one page. Indexes are assigned here
// so they stay contiguous across pages.
func (b *builder) emit(text string, page int) {
	b.chunks = append(b.chunks, types.ChunkDraft{
		Index:     len(b.chunks),
		PageStart: page,
		PageEnd:   page,
		Text:      strings.TrimSpace(text),
	})
}
