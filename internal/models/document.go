package models

import "time"

type Document struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	FileType  string    `json:"file_type"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Chunk is a bounded slice of a Document's text. Embedding is optional and
// never read by retrieval.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Index      int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"-"`
}

// Conversation is an append-only audit record of one answered exchange.
type Conversation struct {
	ID          string    `json:"id"`
	Message     string    `json:"message"`
	Response    string    `json:"response"`
	ContextUsed string    `json:"context_used"`
	CreatedAt   time.Time `json:"created_at"`
}

type ScoredItem struct {
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"document_name"`
	FileType     string `json:"file_type,omitempty"`
	Content      string `json:"content"`
}
