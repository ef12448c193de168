package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"pdfrag/agent"
	"pdfrag/app/api"
	"pdfrag/app/middleware"
	"pdfrag/config"
	"pdfrag/ingest"
	"pdfrag/query"
	"pdfrag/store"
	"pdfrag/types"
)

var fiberConfig = fiber.Config{
	ErrorHandler: api.ErrorHandler,
	BodyLimit:    64 * 1024 * 1024,
}

// Deps are the services the HTTP routes are served by.
type Deps struct {
	Store     store.Storer
	Ingester  api.FileIngester
	Querier   api.Querier
	Answerer  api.Answerer
	Chunking  types.ChunkConfig
	UploadDir string
	Logger    *slog.Logger
}

// NewApp registers all routes on a fresh fiber app.
func NewApp(d Deps) *fiber.App {
	var (
		app             = fiber.New(fiberConfig)
		checkHandler    = api.NewCheckHandler(d.Store)
		documentHandler = api.NewDocumentHandler(d.Ingester, d.Store, d.Chunking, d.UploadDir, d.Logger)
		queryHandler    = api.NewQueryHandler(d.Querier, d.Answerer)
		check           = app.Group("/check")
		apiv1           = app.Group("/api/v1")
	)
	app.Use(recover.New())
	app.Use(cors.New())

	check.Get("/healthy", checkHandler.HandleHealthy)
	check.Get("/ready", checkHandler.HandleReady)

	apiv1.Post("/documents", middleware.PDFOnly("file"), documentHandler.HandleUpload)
	apiv1.Get("/documents", documentHandler.HandleListDocuments)
	apiv1.Get("/documents/:id", documentHandler.HandleGetDocument)
	apiv1.Get("/documents/:id/chunks", documentHandler.HandleGetChunks)
	apiv1.Post("/query", queryHandler.HandleQuery)
	apiv1.Post("/ask", queryHandler.HandleAsk)

	return app
}

type Server struct {
	listenAddr string
	logger     *slog.Logger
	store      store.Storer
	app        *fiber.App
}

// New opens the store and wires the services of cfg.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s, err := cfg.OpenStore(ctx, logger)
	if err != nil {
		return nil, err
	}

	embedder := cfg.NewEmbedder(logger)
	app := NewApp(Deps{
		Store:    s,
		Ingester: ingest.New(s, embedder, cfg.NewExtractor(logger), logger),
		Querier:  query.New(s, embedder, cfg.DefaultTopK, logger),
		Answerer: agent.New(agent.Config{
			URL:             cfg.LLMURL,
			Model:           cfg.LLMModel,
			MaxContextChars: cfg.MaxContextChars,
		}, s, logger),
		Chunking:  cfg.Chunking,
		UploadDir: cfg.UploadDir,
		Logger:    logger,
	})

	return &Server{
		listenAddr: cfg.ServerAddr,
		logger:     logger,
		store:      s,
		app:        app,
	}, nil
}

// Run serves until Stop is called.
func (s *Server) Run() error {
	s.logger.Info("server listening", "addr", s.listenAddr)
	if err := s.app.Listen(s.listenAddr); err != nil {
		s.logger.Error("error to start server", "error", err.Error())
		return err
	}
	return nil
}

func (s *Server) Stop(timeout time.Duration) error {
	err := errors.Join(
		s.app.ShutdownWithTimeout(timeout),
		s.store.Close(),
	)
	s.logger.Info("server stopped")
	return err
}
