package processor

import (
	"strings"

	"github.com/google/uuid"
	"github.com/xhad/docchat/internal/models"
)

// ProcessorConfig sizes are counted in words.
type ProcessorConfig struct {
	ChunkSize      int
	ChunkOverlap   int
	MinChunkLength int
}

type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.ChunkSize <= 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap < 0 {
		config.ChunkOverlap = 0
	}
	if config.ChunkOverlap >= config.ChunkSize {
		config.ChunkOverlap = config.ChunkSize / 10
	}
	if config.MinChunkLength <= 0 {
		config.MinChunkLength = 1
	}

	return Processor{
		config: config,
	}
}

// Chunk splits the document's text into overlapping word windows. Chunks
// are numbered in order and carry the owning document's ID.
func (p *Processor) Chunk(doc models.Document) []models.Chunk {
	words := strings.Fields(doc.Content)
	if len(words) == 0 {
		return nil
	}

	step := p.config.ChunkSize - p.config.ChunkOverlap
	var chunks []models.Chunk

	for start := 0; start < len(words); start += step {
		end := start + p.config.ChunkSize
		if end > len(words) {
			end = len(words)
		}

		content := strings.Join(words[start:end], " ")
		if len(content) >= p.config.MinChunkLength {
			chunks = append(chunks, models.Chunk{
				ID:         uuid.NewString(),
				DocumentID: doc.ID,
				Index:      len(chunks),
				Content:    content,
			})
		}

		// the window reached the end; another step would only repeat the overlap
		if end == len(words) {
			break
		}
	}

	return chunks
}
