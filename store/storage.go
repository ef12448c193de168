package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"pdfrag/types"
)

// Storer persists documents with their chunks and answers nearest-neighbor
// queries by Euclidean distance.
type Storer interface {
	// WithTx runs fn in one transaction: committed when fn returns nil,
	// rolled back when it returns an error or panics.
	WithTx(ctx context.Context, fn func(Tx) error) error
	NearestNeighbors(ctx context.Context, vector []float32, limit int) ([]types.SearchResult, error)
	DocumentsByRecency(ctx context.Context, limit int) ([]types.Document, error)
	DocumentByID(ctx context.Context, id int64) (types.Document, error)
	ChunksByDocument(ctx context.Context, documentID int64) ([]types.Chunk, error)
	Init(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Tx stages writes; nothing is visible to readers before commit.
type Tx interface {
	CreateDocument(ctx context.Context, title, filename string) (types.Document, error)
	CreateChunks(ctx context.Context, documentID int64, drafts []types.ChunkDraft, vectors [][]float32) ([]types.Chunk, error)
}

type PostgresStore struct {
	pool   *pgxpool.Pool
	dim    int
	logger *slog.Logger
}

func NewPostgresStore(ctx context.Context, connStr string, dim int, logger *slog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{
		pool:   pool,
		dim:    dim,
		logger: logger,
	}, nil
}

func (p *PostgresStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", types.ErrStorage, err)
	}

	// The rollback context survives cancellation of ctx.
	rollback := func() {
		if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			p.logger.Error("rollback failed", "error", err)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			rollback()
			panic(r)
		}
	}()

	if err := fn(&pgTx{tx: tx, dim: p.dim}); err != nil {
		rollback()
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		rollback()
		return fmt.Errorf("%w: commit: %w", types.ErrStorage, err)
	}
	return nil
}

type pgTx struct {
	tx  pgx.Tx
	dim int
}

func (t *pgTx) CreateDocument(ctx context.Context, title, filename string) (types.Document, error) {
	doc := types.Document{Title: title, Filename: filename}
	err := t.tx.QueryRow(ctx,
		`INSERT INTO documents (title, filename) VALUES ($1, $2) RETURNING id, created_at`,
		title, filename,
	).Scan(&doc.ID, &doc.CreatedAt)
	if err != nil {
		return types.Document{}, fmt.Errorf("%w: insert document: %w", types.ErrStorage, err)
	}
	return doc, nil
}

func (t *pgTx) CreateChunks(ctx context.Context, documentID int64, drafts []types.ChunkDraft, vectors [][]float32) ([]types.Chunk, error) {
	chunks, err := attach(documentID, drafts, vectors, t.dim)
	if err != nil {
		return nil, err
	}

	query := `
	INSERT INTO chunks (document_id, chunk_index, page_start, page_end, text, embedding)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id, created_at
	`
	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(query, c.DocumentID, c.Index, c.PageStart, c.PageEnd, c.Text, pgvector.NewVector(c.Embedding))
	}

	br := t.tx.SendBatch(ctx, batch)
	for i := range chunks {
		if err := br.QueryRow().Scan(&chunks[i].ID, &chunks[i].CreatedAt); err != nil {
			br.Close()
			return nil, fmt.Errorf("%w: insert chunk %d: %w", types.ErrStorage, chunks[i].Index, err)
		}
	}
	if err := br.Close(); err != nil {
		return nil, fmt.Errorf("%w: insert chunks: %w", types.ErrStorage, err)
	}
	return chunks, nil
}

// attach pairs every draft with the vector at the same position.
func attach(documentID int64, drafts []types.ChunkDraft, vectors [][]float32, dim int) ([]types.Chunk, error) {
	if len(drafts) != len(vectors) {
		return nil, fmt.Errorf("%w: %d chunks, %d vectors", types.ErrCountMismatch, len(drafts), len(vectors))
	}

	chunks := make([]types.Chunk, len(drafts))
	for i, d := range drafts {
		if len(vectors[i]) != dim {
			return nil, fmt.Errorf("%w: chunk %d has %d dimensions, expected %d", types.ErrDimensionMismatch, d.Index, len(vectors[i]), dim)
		}
		chunks[i] = types.Chunk{
			DocumentID: documentID,
			Index:      d.Index,
			PageStart:  d.PageStart,
			PageEnd:    d.PageEnd,
			Text:       d.Text,
			Embedding:  vectors[i],
		}
	}
	return chunks, nil
}

// NearestNeighbors orders by L2 distance. Rows at equal distance come back in
// index scan order, which is not stable across runs.
func (p *PostgresStore) NearestNeighbors(ctx context.Context, vector []float32, limit int) ([]types.SearchResult, error) {
	if len(vector) != p.dim {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, expected %d", types.ErrDimensionMismatch, len(vector), p.dim)
	}

	query := `
		SELECT id, document_id, chunk_index, page_start, page_end, text, created_at,
		       embedding <-> $1 AS distance
		FROM chunks
		ORDER BY embedding <-> $1
		LIMIT $2
	`
	rows, err := p.pool.Query(ctx, query, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %w", types.ErrStorage, err)
	}
	defer rows.Close()

	results := []types.SearchResult{}
	for rows.Next() {
		var r types.SearchResult
		err := rows.Scan(
			&r.Chunk.ID,
			&r.Chunk.DocumentID,
			&r.Chunk.Index,
			&r.Chunk.PageStart,
			&r.Chunk.PageEnd,
			&r.Chunk.Text,
			&r.Chunk.CreatedAt,
			&r.Distance)
		if err != nil {
			return nil, fmt.Errorf("%w: scan search row: %w", types.ErrStorage, err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: search: %w", types.ErrStorage, err)
	}
	return results, nil
}

func (p *PostgresStore) DocumentsByRecency(ctx context.Context, limit int) ([]types.Document, error) {
	query := `
		SELECT d.id, d.title, d.filename, d.created_at, COUNT(c.id)
		FROM documents d
		LEFT JOIN chunks c ON c.document_id = d.id
		GROUP BY d.id
		ORDER BY d.created_at DESC, d.id DESC
		LIMIT $1
	`
	rows, err := p.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list documents: %w", types.ErrStorage, err)
	}
	defer rows.Close()

	docs := []types.Document{}
	for rows.Next() {
		var doc types.Document
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Filename, &doc.CreatedAt, &doc.ChunkCount); err != nil {
			return nil, fmt.Errorf("%w: scan document: %w", types.ErrStorage, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list documents: %w", types.ErrStorage, err)
	}
	return docs, nil
}

func (p *PostgresStore) DocumentByID(ctx context.Context, id int64) (types.Document, error) {
	query := `
		SELECT d.id, d.title, d.filename, d.created_at,
		       (SELECT COUNT(*) FROM chunks c WHERE c.document_id = d.id)
		FROM documents d
		WHERE d.id = $1
	`
	var doc types.Document
	err := p.pool.QueryRow(ctx, query, id).Scan(&doc.ID, &doc.Title, &doc.Filename, &doc.CreatedAt, &doc.ChunkCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Document{}, fmt.Errorf("document %d: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return types.Document{}, fmt.Errorf("%w: get document: %w", types.ErrStorage, err)
	}
	return doc, nil
}

func (p *PostgresStore) ChunksByDocument(ctx context.Context, documentID int64) ([]types.Chunk, error) {
	query := `
		SELECT id, document_id, chunk_index, page_start, page_end, text, embedding, created_at
		FROM chunks
		WHERE document_id = $1
		ORDER BY chunk_index
	`
	rows, err := p.pool.Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("%w: list chunks: %w", types.ErrStorage, err)
	}
	defer rows.Close()

	chunks := []types.Chunk{}
	for rows.Next() {
		var c types.Chunk
		var embedding pgvector.Vector
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.PageStart, &c.PageEnd, &c.Text, &embedding, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan chunk: %w", types.ErrStorage, err)
		}
		c.Embedding = embedding.Slice()
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list chunks: %w", types.ErrStorage, err)
	}
	return chunks, nil
}

func (p *PostgresStore) createRagTables(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS documents (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		filename TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC);

	CREATE TABLE IF NOT EXISTS chunks (
		id BIGSERIAL PRIMARY KEY,
		document_id BIGINT NOT NULL REFERENCES documents(id),
		chunk_index INT NOT NULL,
		page_start INT NOT NULL,
		page_end INT NOT NULL,
		text TEXT NOT NULL,
		embedding vector(%d) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
		UNIQUE (document_id, chunk_index)
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id);

	-- Euclidean distance, must match the <-> operator used by search
	CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON chunks USING hnsw (embedding vector_l2_ops);
	`, p.dim)
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) Init(ctx context.Context) error {
	return p.createRagTables(ctx)
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close releases the connection pool.
func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		p.logger.Info("postgres connection pool is closed")
	}
	return nil
}
