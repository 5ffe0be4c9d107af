package embedding

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"condo-rag/internal/config"
)

// NewEmbedder builds the embedding client for the configured provider.
// EmbedDocuments is used for document-indexing mode during ingestion and
// EmbedQuery for question embeddings at query time.
func NewEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	switch llmConfig.Provider {
	case "ollama":
		return NewOllamaEmbedder(llmConfig)
	case "openai", "":
		return NewOpenAIEmbedder(llmConfig)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", llmConfig.Provider)
	}
}

func NewOpenAIEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	llm, err := openai.New(
		openai.WithBaseURL(llmConfig.BaseURL),
		openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
		openai.WithModel(llmConfig.Model),
	)
	if err != nil {
		log.Error().Err(err).Msg("Error initializing LLM")
		return nil, err
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		log.Error().Err(err).Msg("Error creating embedder")
		return nil, err
	}
	return embedder, nil
}

// new ollama embedder
func NewOllamaEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(llmConfig.BaseURL),
		ollama.WithModel(llmConfig.Model),
	)
	if err != nil {
		log.Error().Err(err).Msg("Error initializing LLM")
		return nil, err
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		log.Error().Err(err).Msg("Error creating embedder")
		return nil, err
	}
	return embedder, nil
}
