package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrag/types"
)

// writePDF writes a minimal single-font PDF with one text line per page.
func writePDF(t *testing.T, lines ...string) string {
	t.Helper()

	var objects []string
	kids := make([]string, len(lines))
	for i := range lines {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(lines)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	)
	for i, line := range lines {
		stream := fmt.Sprintf("BT /F1 18 Tf 72 720 Td (%s) Tj ET", line)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	var sb strings.Builder
	sb.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = sb.Len()
		fmt.Fprintf(&sb, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := sb.Len()
	fmt.Fprintf(&sb, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&sb, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&sb, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
	return path
}

func TestFitzExtractor_Extract(t *testing.T) {
	path := writePDF(t, "Hello page one", "Second page text")

	pages, err := NewFitzExtractor(ExtractorConfig{}, nil).Extract(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Contains(t, pages[0], "Hello page one")
	assert.Contains(t, pages[1], "Second page text")
}

func TestFitzExtractor_NotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.pdf")
	require.NoError(t, os.WriteFile(path, []byte("just some text"), 0o644))

	_, err := NewFitzExtractor(ExtractorConfig{}, nil).Extract(context.Background(), path)
	assert.ErrorIs(t, err, types.ErrExtraction)
}

func TestFitzExtractor_MissingFile(t *testing.T) {
	_, err := NewFitzExtractor(ExtractorConfig{}, nil).Extract(context.Background(), filepath.Join(t.TempDir(), "absent.pdf"))
	assert.ErrorIs(t, err, types.ErrExtraction)
}

func TestRemoveHeaderFooterCrop(t *testing.T) {
	path := writePDF(t, "Hello page one", "Second page text")
	out := filepath.Join(t.TempDir(), "cropped.pdf")

	require.NoError(t, RemoveHeaderFooterCrop(path, out, 20, 40))
	require.NoError(t, Validate(out))

	n, err := PageCount(out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFitzExtractor_CropRemovesTempFile(t *testing.T) {
	path := writePDF(t, "Hello page one", "Second page text")
	tmp := t.TempDir()

	// text sits 72pt below the top edge, so a 20pt crop keeps it
	e := NewFitzExtractor(ExtractorConfig{CropTop: 20, CropBottom: 40, TempDir: tmp}, nil)
	pages, err := e.Extract(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Contains(t, pages[0], "Hello page one")

	left, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestRemoveHeaderFooterCrop_NotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.pdf")
	require.NoError(t, os.WriteFile(path, []byte("just some text"), 0o644))

	err := RemoveHeaderFooterCrop(path, filepath.Join(t.TempDir(), "out.pdf"), 10, 10)
	assert.ErrorContains(t, err, "failed to crop PDF")
}

func TestRemoveHeaderFooterCrop_NegativeMargin(t *testing.T) {
	path := writePDF(t, "Hello page one")

	err := RemoveHeaderFooterCrop(path, filepath.Join(t.TempDir(), "out.pdf"), -5, 0)
	assert.ErrorContains(t, err, "must not be negative")
}
