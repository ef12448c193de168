package api

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"pdfrag/types"
)

const defaultListLimit = 100

type FileIngester interface {
	IngestFile(ctx context.Context, path, filename, title string, chunking types.ChunkConfig) (types.IngestResult, error)
}

type DocumentReader interface {
	DocumentsByRecency(ctx context.Context, limit int) ([]types.Document, error)
	DocumentByID(ctx context.Context, id int64) (types.Document, error)
	ChunksByDocument(ctx context.Context, documentID int64) ([]types.Chunk, error)
}

type DocumentHandler struct {
	ingester  FileIngester
	documents DocumentReader
	chunking  types.ChunkConfig
	uploadDir string
	logger    *slog.Logger
}

func NewDocumentHandler(ingester FileIngester, documents DocumentReader, chunking types.ChunkConfig, uploadDir string, logger *slog.Logger) *DocumentHandler {
	if uploadDir == "" {
		uploadDir = os.TempDir()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentHandler{
		ingester:  ingester,
		documents: documents,
		chunking:  chunking,
		uploadDir: uploadDir,
		logger:    logger,
	}
}

// HandleUpload ingests the multipart "file" field. Optional form fields
// title, max_chars, overlap and strategy override the server defaults.
func (h *DocumentHandler) HandleUpload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewError(fiber.StatusBadRequest, "multipart field 'file' is required")
	}

	var params types.ChunkParams
	if err := c.BodyParser(&params); err != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return types.NewValidationError(errors)
	}

	path := filepath.Join(h.uploadDir, uuid.NewString()+".pdf")
	if err := c.SaveFile(file, path); err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			h.logger.Warn("failed to remove upload", "path", path, "error", err)
		}
	}()
	h.logger.Info("upload saved", "filename", file.Filename, "size", file.Size)

	res, err := h.ingester.IngestFile(c.UserContext(), path, file.Filename, c.FormValue("title"), params.Apply(h.chunking))
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (h *DocumentHandler) HandleListDocuments(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultListLimit)
	if limit <= 0 {
		return NewError(fiber.StatusBadRequest, "limit must be positive")
	}

	docs, err := h.documents.DocumentsByRecency(c.UserContext(), limit)
	if err != nil {
		return err
	}
	return c.JSON(docs)
}

func (h *DocumentHandler) HandleGetDocument(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return ErrInvalidID()
	}

	doc, err := h.documents.DocumentByID(c.UserContext(), int64(id))
	if err != nil {
		return err
	}
	return c.JSON(doc)
}

func (h *DocumentHandler) HandleGetChunks(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return ErrInvalidID()
	}

	if _, err := h.documents.DocumentByID(c.UserContext(), int64(id)); err != nil {
		return err
	}
	chunks, err := h.documents.ChunksByDocument(c.UserContext(), int64(id))
	if err != nil {
		return err
	}
	return c.JSON(chunks)
}
