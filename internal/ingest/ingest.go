package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"golang.org/x/sync/errgroup"

	"condo-rag/internal/models"
	"condo-rag/internal/parser"
)

const defaultConcurrency = 4

// StatusStore advances a document through the pipeline status machine. Each
// update commits on its own so progress is observable by polling.
type StatusStore interface {
	UpdateStatus(ctx context.Context, documentID string, status models.DocumentStatus) error
}

// ChunkSink persists one embedded chunk. Writes are independent; the
// pipeline never wraps them in an all-or-nothing transaction.
type ChunkSink interface {
	SaveChunk(ctx context.Context, doc models.DocumentInfo, chunk models.Chunk, embedding []float32) error
}

// Processor turns an uploaded PDF into searchable, embedded chunks.
type Processor struct {
	statuses    StatusStore
	sink        ChunkSink
	embedder    embeddings.Embedder
	splitter    *parser.Splitter
	concurrency int

	// extraction is swappable for tests; production uses parser.ExtractText.
	extract func(filePath string) (map[int]string, error)
}

func NewProcessor(statuses StatusStore, sink ChunkSink, embedder embeddings.Embedder, splitter *parser.Splitter) *Processor {
	return &Processor{
		statuses:    statuses,
		sink:        sink,
		embedder:    embedder,
		splitter:    splitter,
		concurrency: defaultConcurrency,
		extract:     parser.ExtractText,
	}
}

// Process runs the full pipeline: extract page text, chunk it, embed each
// chunk and persist it. Any failure marks the document failed and keeps the
// chunks written so far; there is no automatic retry.
func (p *Processor) Process(ctx context.Context, doc models.DocumentInfo, filePath string) error {
	if ext := strings.ToLower(filepath.Ext(filePath)); ext != ".pdf" {
		return fmt.Errorf("%w: %s", parser.ErrUnsupportedFormat, ext)
	}

	// 1. Extract text
	if err := p.statuses.UpdateStatus(ctx, doc.ID, models.StatusExtracting); err != nil {
		return p.fail(ctx, doc, err)
	}
	textByPage, err := p.extract(filePath)
	if err != nil {
		return p.fail(ctx, doc, err)
	}

	// 2. Chunking
	if err := p.statuses.UpdateStatus(ctx, doc.ID, models.StatusChunking); err != nil {
		return p.fail(ctx, doc, err)
	}
	chunks := parser.ChunkPages(textByPage, p.splitter)

	// 3. Embed and save chunks
	if err := p.statuses.UpdateStatus(ctx, doc.ID, models.StatusEmbedding); err != nil {
		return p.fail(ctx, doc, err)
	}
	if err := p.embedChunks(ctx, doc, chunks); err != nil {
		return p.fail(ctx, doc, err)
	}

	// 4. Done
	if err := p.statuses.UpdateStatus(ctx, doc.ID, models.StatusCompleted); err != nil {
		return p.fail(ctx, doc, err)
	}

	log.Info().Str("document_id", doc.ID).Int("chunks", len(chunks)).Msg("Document processed")
	return nil
}

// embedChunks fans out per-chunk embedding calls with a bounded concurrency
// so provider rate limits are respected. Each worker commits its own chunk.
func (p *Processor) embedChunks(ctx context.Context, doc models.DocumentInfo, chunks []models.Chunk) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, chunk := range chunks {
		g.Go(func() error {
			vectors, err := p.embedder.EmbedDocuments(gctx, []string{chunk.Content})
			if err != nil {
				return err
			}
			if len(vectors) == 0 {
				return fmt.Errorf("embedding provider returned no vector for chunk %d", chunk.ChunkIndex)
			}
			return p.sink.SaveChunk(gctx, doc, chunk, vectors[0])
		})
	}
	return g.Wait()
}

// ProcessDetached runs the pipeline on a background context so it outlives
// the request that triggered it. Progress is observable only through the
// document's status.
func (p *Processor) ProcessDetached(doc models.DocumentInfo, filePath string) {
	go func() {
		if err := p.Process(context.Background(), doc, filePath); err != nil {
			log.Error().Err(err).Str("document_id", doc.ID).Msg("Error processing document")
		}
	}()
}

func (p *Processor) fail(ctx context.Context, doc models.DocumentInfo, cause error) error {
	if err := p.statuses.UpdateStatus(ctx, doc.ID, models.StatusFailed); err != nil {
		log.Error().Err(err).Str("document_id", doc.ID).Msg("Error marking document failed")
	}
	log.Error().Err(cause).Str("document_id", doc.ID).Msg("Document processing failed")
	return cause
}
