package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/pkg/retrieval"
)

// MemoryStore keeps documents in process memory. It backs the service when
// no database is configured and is used throughout the tests.
type MemoryStore struct {
	mu            sync.RWMutex
	docs          []models.Document
	chunks        []models.Chunk
	conversations []models.Conversation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) CreateDocument(ctx context.Context, doc models.Document) (models.Document, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, doc)
	return doc, nil
}

func (s *MemoryStore) AddChunks(ctx context.Context, documentID string, chunks []models.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(documentID) < 0 {
		return ErrNotFound
	}
	for _, c := range chunks {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.DocumentID = documentID
		s.chunks = append(s.chunks, c)
	}
	return nil
}

// ListDocuments returns documents newest first.
func (s *MemoryStore) ListDocuments(ctx context.Context) ([]models.Document, error) {
	s.mu.RLock()
	docs := make([]models.Document, len(s.docs))
	copy(docs, s.docs)
	s.mu.RUnlock()

	// reverse insertion order first so equal timestamps still list newest first
	for i, j := 0, len(docs)-1; i < j; i, j = i+1, j-1 {
		docs[i], docs[j] = docs[j], docs[i]
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

// DeleteDocument removes the document together with its chunks.
func (s *MemoryStore) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return ErrNotFound
	}

	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if c.DocumentID != id {
			kept = append(kept, c)
		}
	}
	s.chunks = kept
	s.docs = append(s.docs[:idx], s.docs[idx+1:]...)
	return nil
}

func (s *MemoryStore) CountDocuments(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

func (s *MemoryStore) SearchChunks(ctx context.Context, terms []string, limit int) ([]models.ScoredItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []models.ScoredItem
	for _, c := range s.chunks {
		if len(items) >= limit {
			break
		}
		doc := s.docs[s.indexOf(c.DocumentID)]
		if retrieval.Match(doc.Name, c.Content, terms) {
			items = append(items, models.ScoredItem{
				DocumentID:   doc.ID,
				DocumentName: doc.Name,
				FileType:     doc.FileType,
				Content:      c.Content,
			})
		}
	}
	return items, nil
}

func (s *MemoryStore) SearchDocuments(ctx context.Context, terms []string, limit int) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []models.Document
	for _, d := range s.docs {
		if len(docs) >= limit {
			break
		}
		if retrieval.Match(d.Name, d.Content, terms) {
			docs = append(docs, d)
		}
	}
	return docs, nil
}

func (s *MemoryStore) SaveConversation(ctx context.Context, conv models.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = append(s.conversations, conv)
	return nil
}

// Conversations returns a copy of the audit log.
func (s *MemoryStore) Conversations() []models.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// Chunks returns a copy of the chunks owned by documentID.
func (s *MemoryStore) Chunks(documentID string) []models.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Chunk
	for _, c := range s.chunks {
		if c.DocumentID == documentID {
			out = append(out, c)
		}
	}
	return out
}

func (s *MemoryStore) Close() {}

func (s *MemoryStore) indexOf(id string) int {
	for i, d := range s.docs {
		if d.ID == id {
			return i
		}
	}
	return -1
}
