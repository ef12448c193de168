package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryParamsValidate(t *testing.T) {
	id := int64(3)
	bad := int64(-1)

	tests := []struct {
		name   string
		params QueryParams
		fields []string
	}{
		{name: "valid", params: QueryParams{Text: "what is rag", TopK: 5}},
		{name: "valid with document", params: QueryParams{Text: "q", DocumentID: &id}},
		{name: "missing text", params: QueryParams{TopK: 5}, fields: []string{"Text"}},
		{name: "top_k too large", params: QueryParams{Text: "q", TopK: 101}, fields: []string{"TopK"}},
		{name: "negative document", params: QueryParams{Text: "q", DocumentID: &bad}, fields: []string{"DocumentID"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(&tt.params)
			if len(tt.fields) == 0 {
				assert.Empty(t, errs)
				return
			}
			for _, f := range tt.fields {
				assert.Contains(t, errs, f)
			}
		})
	}
}

func TestChunkParamsApply(t *testing.T) {
	base := ChunkConfig{MaxChars: 1500, Overlap: 200, Strategy: ChunkSentence}

	assert.Equal(t, base, ChunkParams{}.Apply(base))

	got := ChunkParams{MaxChars: 800, Strategy: "window"}.Apply(base)
	assert.Equal(t, ChunkConfig{MaxChars: 800, Overlap: 200, Strategy: ChunkWindow}, got)

	zero := 0
	got = ChunkParams{Overlap: &zero}.Apply(base)
	assert.Equal(t, ChunkConfig{MaxChars: 1500, Overlap: 0, Strategy: ChunkSentence}, got)
}

func TestChunkParamsValidate(t *testing.T) {
	assert.Empty(t, Validate(&ChunkParams{Strategy: "sentence"}))
	assert.Contains(t, Validate(&ChunkParams{Strategy: "paragraph"}), "Strategy")
	negative := -1
	assert.Contains(t, Validate(&ChunkParams{Overlap: &negative}), "Overlap")
}
