// Package retrieval selects stored text relevant to a chat message.
//
// Matching is lexical: the query is split into terms, and an item matches
// when its document name or content contains any of them. There is no
// ranking; results keep the store's order and are cut to a limit.
package retrieval

import (
	"context"
	"strings"

	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/internal/types"
	"go.uber.org/zap"
)

// DefaultKeywords are kept as query terms even when they are short.
var DefaultKeywords = []string{
	"rag", "retrieval", "augmented", "generation",
	"ia", "ai", "inteligencia", "artificial",
	"machine", "learning", "tecnologia", "moderno",
	"cloud", "computing", "iot",
}

const minTermLength = 4

type Config struct {
	Keywords        []string
	ChunkLimit      int
	DocumentLimit   int
	DocumentExcerpt int
}

type Retriever struct {
	store    types.DocumentSearcher
	config   Config
	keywords map[string]struct{}
	logger   *zap.Logger
}

// New builds a Retriever. A nil store is allowed and retrieves nothing.
func New(store types.DocumentSearcher, config Config, logger *zap.Logger) *Retriever {
	if len(config.Keywords) == 0 {
		config.Keywords = DefaultKeywords
	}
	if config.ChunkLimit <= 0 {
		config.ChunkLimit = 3
	}
	if config.DocumentLimit <= 0 {
		config.DocumentLimit = 2
	}
	if config.DocumentExcerpt <= 0 {
		config.DocumentExcerpt = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	keywords := make(map[string]struct{}, len(config.Keywords))
	for _, k := range config.Keywords {
		keywords[strings.ToLower(k)] = struct{}{}
	}

	return &Retriever{
		store:    store,
		config:   config,
		keywords: keywords,
		logger:   logger.Named("retrieval"),
	}
}

// Terms returns the lowercase query terms that take part in matching:
// allow-listed keywords plus any term longer than three characters.
func (r *Retriever) Terms(query string) []string {
	var terms []string
	seen := make(map[string]bool)

	for _, term := range strings.Fields(strings.ToLower(query)) {
		if seen[term] {
			continue
		}
		_, keyword := r.keywords[term]
		if keyword || len([]rune(term)) >= minTermLength {
			terms = append(terms, term)
			seen[term] = true
		}
	}
	return terms
}

// Retrieve returns up to ChunkLimit matching chunks. When no chunk matches
// it falls back to whole documents, each cut to DocumentExcerpt characters.
// Store failures are logged and yield an empty result.
func (r *Retriever) Retrieve(ctx context.Context, query string) []models.ScoredItem {
	terms := r.Terms(query)
	if len(terms) == 0 || r.store == nil {
		return nil
	}

	items, err := r.store.SearchChunks(ctx, terms, r.config.ChunkLimit)
	if err != nil {
		r.logger.Warn("chunk search failed", zap.Error(err), zap.Strings("terms", terms))
		return nil
	}
	if len(items) > r.config.ChunkLimit {
		items = items[:r.config.ChunkLimit]
	}
	if len(items) > 0 {
		r.logger.Debug("chunks matched", zap.Int("count", len(items)), zap.Strings("terms", terms))
		return items
	}

	docs, err := r.store.SearchDocuments(ctx, terms, r.config.DocumentLimit)
	if err != nil {
		r.logger.Warn("document search failed", zap.Error(err), zap.Strings("terms", terms))
		return nil
	}
	if len(docs) > r.config.DocumentLimit {
		docs = docs[:r.config.DocumentLimit]
	}

	for _, doc := range docs {
		items = append(items, models.ScoredItem{
			DocumentID:   doc.ID,
			DocumentName: doc.Name,
			FileType:     doc.FileType,
			Content:      truncate(doc.Content, r.config.DocumentExcerpt),
		})
	}
	r.logger.Debug("documents matched", zap.Int("count", len(items)), zap.Strings("terms", terms))
	return items
}

// Match reports whether name or content contains any of the terms.
// Terms are expected in lowercase.
func Match(name, content string, terms []string) bool {
	name = strings.ToLower(name)
	content = strings.ToLower(content)
	for _, term := range terms {
		if strings.Contains(name, term) || strings.Contains(content, term) {
			return true
		}
	}
	return false
}

// FormatContext renders items as the context text handed to the prompt.
func FormatContext(items []models.ScoredItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		name := item.DocumentName
		if name == "" {
			name = "Document"
		}
		parts = append(parts, "["+name+"]: "+item.Content)
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
