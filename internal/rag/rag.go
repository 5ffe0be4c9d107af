package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"condo-rag/internal/cache"
	"condo-rag/internal/models"
	"condo-rag/internal/ratelimit"
)

// Retriever finds the most relevant chunks for a query embedding within one
// tenant. An empty corpus yields an empty slice, not an error.
type Retriever interface {
	Search(ctx context.Context, queryEmbedding []float32, tenantID string, limit int) ([]models.RetrievedChunk, error)
}

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Service is the question-answering entry point. All collaborators are
// injected; the service owns no global state.
type Service struct {
	gate      *ratelimit.Gate
	cache     *cache.Cache
	embedder  embeddings.Embedder
	retriever Retriever
	generator Generator
	maxChunks int
}

func NewService(gate *ratelimit.Gate, responseCache *cache.Cache, embedder embeddings.Embedder, retriever Retriever, generator Generator, maxChunks int) *Service {
	if maxChunks <= 0 {
		maxChunks = models.DefaultMaxChunks
	}
	return &Service{
		gate:      gate,
		cache:     responseCache,
		embedder:  embedder,
		retriever: retriever,
		generator: generator,
		maxChunks: maxChunks,
	}
}

// Chat answers a question grounded on the tenant's ingested documents.
// The usage gate runs before the cache lookup, so cache hits consume quota
// too. On a miss the question is embedded, the top chunks are retrieved and
// the answer is synthesized and cached.
func (s *Service) Chat(ctx context.Context, question, tenantID, userID string, maxChunks int) (*models.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	if maxChunks <= 0 {
		maxChunks = s.maxChunks
	}

	if err := s.gate.Check(ctx, userID); err != nil {
		return nil, err
	}

	if answer, found := s.cache.Get(ctx, question, tenantID); found {
		return answer, nil
	}

	queryEmbedding, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	chunks, err := s.retriever.Search(ctx, queryEmbedding, tenantID, maxChunks)
	if err != nil {
		return nil, err
	}

	if len(chunks) == 0 {
		log.Info().Str("tenant_id", tenantID).Msg("No relevant chunks found")
		return &models.Answer{
			Answer:  models.NoDocumentsAnswer,
			Sources: []models.Source{},
		}, nil
	}

	answer, err := s.synthesize(ctx, question, chunks)
	if err != nil {
		return nil, err
	}

	s.cache.Put(ctx, question, tenantID, answer)
	return answer, nil
}

// synthesize builds the labeled context block and the constrained prompt,
// calls the chat model and packages the answer with its sources. Sources
// mirror the chunks that were fed in, they are not re-derived from the
// generated text.
func (s *Service) synthesize(ctx context.Context, question string, chunks []models.RetrievedChunk) (*models.Answer, error) {
	var context strings.Builder
	for i, chunk := range chunks {
		if i > 0 {
			context.WriteString("\n\n")
		}
		context.WriteString(fmt.Sprintf(models.ContextSourceLabel, chunk.Filename, chunk.PageNumber))
		context.WriteString("\n")
		context.WriteString(chunk.Text)
	}

	prompt := fmt.Sprintf(models.AnswerPromptTemplate, context.String(), question)

	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	sources := make([]models.Source, 0, len(chunks))
	for _, chunk := range chunks {
		sources = append(sources, models.Source{
			Document:   chunk.Filename,
			Page:       chunk.PageNumber,
			Similarity: chunk.Similarity,
		})
	}

	return &models.Answer{Answer: text, Sources: sources}, nil
}

// UsageSnapshot reports the user's current daily usage without consuming
// quota.
func (s *Service) UsageSnapshot(ctx context.Context, userID string) models.Usage {
	return s.gate.Peek(ctx, userID)
}

// CacheStats returns the number of currently cached responses.
func (s *Service) CacheStats(ctx context.Context) int {
	return s.cache.Stats(ctx)
}

// InvalidateCache wipes every cached answer system-wide. The privileged
// flag comes from the caller's authorization layer and is trusted as-is.
func (s *Service) InvalidateCache(ctx context.Context, privileged bool) (int, error) {
	if !privileged {
		return 0, ErrNotAuthorized
	}
	return s.cache.InvalidateAll(ctx), nil
}
