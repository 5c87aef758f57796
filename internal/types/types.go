package types

import (
	"context"

	"github.com/xhad/docchat/internal/models"
)

// Core interfaces

type DocumentSearcher interface {
	SearchChunks(ctx context.Context, terms []string, limit int) ([]models.ScoredItem, error)
	SearchDocuments(ctx context.Context, terms []string, limit int) ([]models.Document, error)
}

type ConversationLog interface {
	SaveConversation(ctx context.Context, conv models.Conversation) error
}

type DocumentWriter interface {
	CreateDocument(ctx context.Context, doc models.Document) (models.Document, error)
	AddChunks(ctx context.Context, documentID string, chunks []models.Chunk) error
}

type DocumentStore interface {
	DocumentSearcher
	DocumentWriter
	ConversationLog
	ListDocuments(ctx context.Context) ([]models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	CountDocuments(ctx context.Context) (int, error)
	Close()
}

type Chunker interface {
	Chunk(doc models.Document) []models.Chunk
}
