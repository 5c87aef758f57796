// Package ingest stores uploaded files as searchable documents.
package ingest

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/internal/types"
	"github.com/xhad/docchat/pkg/extract"
	"go.uber.org/zap"
)

type Result struct {
	Filename    string
	DocumentID  string
	TextLength  int
	ChunksCount int
}

type Ingester struct {
	store     types.DocumentWriter
	extractor *extract.Extractor
	chunker   types.Chunker
	logger    *zap.Logger
}

func New(store types.DocumentWriter, extractor *extract.Extractor, chunker types.Chunker, logger *zap.Logger) *Ingester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{
		store:     store,
		extractor: extractor,
		chunker:   chunker,
		logger:    logger.Named("ingest"),
	}
}

// Ingest extracts the text of one file and saves it with its chunks. A
// failure to save chunks is logged and leaves the document stored without
// them; it reports zero chunks.
func (i *Ingester) Ingest(ctx context.Context, filename string, data []byte) (Result, error) {
	result := Result{Filename: filename}

	text, err := i.extractor.Extract(filename, data)
	if err != nil {
		return result, err
	}
	result.TextLength = utf8.RuneCountInString(text)

	doc, err := i.store.CreateDocument(ctx, models.Document{
		Name:     filename,
		Content:  text,
		FileType: extract.FileType(filename),
		Size:     int64(len(data)),
	})
	if err != nil {
		return result, fmt.Errorf("failed to save document: %w", err)
	}
	result.DocumentID = doc.ID

	chunks := i.chunker.Chunk(doc)
	if err := i.store.AddChunks(ctx, doc.ID, chunks); err != nil {
		i.logger.Warn("failed to save chunks",
			zap.Error(err),
			zap.String("document_id", doc.ID),
			zap.Int("chunks", len(chunks)))
		return result, nil
	}
	result.ChunksCount = len(chunks)

	i.logger.Info("document ingested",
		zap.String("document_id", doc.ID),
		zap.String("name", filename),
		zap.Int("text_length", result.TextLength),
		zap.Int("chunks", result.ChunksCount))
	return result, nil
}
