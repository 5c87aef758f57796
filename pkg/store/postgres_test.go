package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/docchat/internal/models"
)

func setupPGStore(t *testing.T) *PGStore {
	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	s, err := NewPGStore(ctx, PGStoreConfig{ConnString: connString, VectorDim: 3})
	require.NoError(t, err)

	_, err = s.pool.Exec(ctx, "TRUNCATE documents, chunks, conversations")
	require.NoError(t, err)

	t.Cleanup(s.Close)
	return s
}

func TestPGStoreLifecycle(t *testing.T) {
	s := setupPGStore(t)
	ctx := context.Background()

	doc, err := s.CreateDocument(ctx, models.Document{Name: "guide.md", Content: "Postgres guide", FileType: ".md", Size: 14})
	require.NoError(t, err)

	err = s.AddChunks(ctx, doc.ID, []models.Chunk{
		{Index: 0, Content: "Postgres indexes", Embedding: []float32{0.1, 0.2, 0.3}},
		{Index: 1, Content: "vacuum tuning"},
	})
	require.NoError(t, err)

	items, err := s.SearchChunks(ctx, []string{"vacuum"}, 3)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "guide.md", items[0].DocumentName)

	docs, err := s.SearchDocuments(ctx, []string{"postgres"}, 2)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	n, err := s.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.DeleteDocument(ctx, doc.ID))
	assert.ErrorIs(t, s.DeleteDocument(ctx, doc.ID), ErrNotFound)

	items, err = s.SearchChunks(ctx, []string{"vacuum"}, 3)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestPGStoreConversation(t *testing.T) {
	s := setupPGStore(t)
	err := s.SaveConversation(context.Background(), models.Conversation{Message: "hi", Response: "hello", ContextUsed: "ctx"})
	assert.NoError(t, err)
}
