package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/xhad/docchat/internal/models"
)

type PGStoreConfig struct {
	ConnString string
	VectorDim  int
}

// PGStore keeps documents, chunks and the conversation log in Postgres.
// Chunks reference documents with ON DELETE CASCADE.
type PGStore struct {
	config PGStoreConfig
	pool   *pgxpool.Pool
}

func NewPGStore(ctx context.Context, config PGStoreConfig) (*PGStore, error) {
	if config.VectorDim == 0 {
		config.VectorDim = 1536
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &PGStore{
		config: config,
		pool:   pool,
	}

	if err := s.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *PGStore) initialize(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			content TEXT NOT NULL,
			file_type TEXT,
			size BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d)
		)`, s.config.VectorDim),
		`CREATE INDEX IF NOT EXISTS chunks_document_id_idx ON chunks (document_id)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			message TEXT NOT NULL,
			response TEXT NOT NULL,
			context_used TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

func (s *PGStore) CreateDocument(ctx context.Context, doc models.Document) (models.Document, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	doc.Name = sanitizeUTF8(doc.Name)
	doc.Content = sanitizeUTF8(doc.Content)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (id, name, content, file_type, size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		doc.ID, doc.Name, doc.Content, doc.FileType, doc.Size, doc.CreatedAt)
	if err != nil {
		return models.Document{}, fmt.Errorf("failed to insert document: %w", err)
	}
	return doc, nil
}

func (s *PGStore) AddChunks(ctx context.Context, documentID string, chunks []models.Chunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, c := range chunks {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}

		var embedding any
		if len(c.Embedding) > 0 {
			embedding = pgvector.NewVector(c.Embedding)
		}

		batch.Queue(`
			INSERT INTO chunks (id, document_id, chunk_index, content, embedding)
			VALUES ($1, $2, $3, $4, $5)`,
			c.ID, documentID, c.Index, sanitizeUTF8(c.Content), embedding)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PGStore) ListDocuments(ctx context.Context) ([]models.Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, content, COALESCE(file_type, ''), size, created_at
		FROM documents
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return scanDocuments(rows)
}

// DeleteDocument removes the document; its chunks go with it through the
// foreign key cascade.
func (s *PGStore) DeleteDocument(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) CountDocuments(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

func (s *PGStore) SearchChunks(ctx context.Context, terms []string, limit int) ([]models.ScoredItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT d.id, d.name, COALESCE(d.file_type, ''), c.content
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE lower(c.content) LIKE ANY($1) OR lower(d.name) LIKE ANY($1)
		ORDER BY d.created_at, c.chunk_index
		LIMIT $2`,
		likePatterns(terms), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var items []models.ScoredItem
	for rows.Next() {
		var item models.ScoredItem
		if err := rows.Scan(&item.DocumentID, &item.DocumentName, &item.FileType, &item.Content); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PGStore) SearchDocuments(ctx context.Context, terms []string, limit int) ([]models.Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, content, COALESCE(file_type, ''), size, created_at
		FROM documents
		WHERE lower(content) LIKE ANY($1) OR lower(name) LIKE ANY($1)
		ORDER BY created_at
		LIMIT $2`,
		likePatterns(terms), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	return scanDocuments(rows)
}

func (s *PGStore) SaveConversation(ctx context.Context, conv models.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO conversations (id, message, response, context_used, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		conv.ID, sanitizeUTF8(conv.Message), sanitizeUTF8(conv.Response), sanitizeUTF8(conv.ContextUsed), conv.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	return nil
}

func (s *PGStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func scanDocuments(rows pgx.Rows) ([]models.Document, error) {
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.Name, &doc.Content, &doc.FileType, &doc.Size, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(errors.New("failed to read documents"), err)
	}
	return docs, nil
}

// sanitizeUTF8 drops invalid sequences and NUL bytes, both of which
// Postgres rejects in text columns.
func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	return strings.ReplaceAll(s, "\x00", "")
}
