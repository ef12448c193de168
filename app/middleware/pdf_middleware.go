package middleware

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
)

var pdfMagic = []byte("%PDF-")

// PDFOnly rejects uploads whose multipart field is not a PDF, judged by file
// extension and leading magic bytes.
func PDFOnly(field string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		file, err := c.FormFile(field)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "multipart field '"+field+"' is required")
		}

		if !strings.EqualFold(filepath.Ext(file.Filename), ".pdf") {
			return fiber.NewError(fiber.StatusUnsupportedMediaType, "only .pdf files are accepted")
		}

		f, err := file.Open()
		if err != nil {
			return err
		}
		defer f.Close()

		head := make([]byte, len(pdfMagic))
		if _, err := io.ReadFull(f, head); err != nil || !bytes.Equal(head, pdfMagic) {
			return fiber.NewError(fiber.StatusUnsupportedMediaType, "file content is not a PDF")
		}

		return c.Next()
	}
}
