package llmservice

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"condo-rag/internal/config"
)

// Client wraps the chat model behind a single Generate call so the rest of
// the core stays provider-agnostic.
type Client struct {
	llm *openai.LLM
}

func NewClient(llmConfig *config.LLMConfig) (*Client, error) {
	llm, err := openai.New(
		openai.WithBaseURL(llmConfig.BaseURL),
		openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
		openai.WithModel(llmConfig.Model),
	)
	if err != nil {
		return nil, err
	}
	return &Client{llm: llm}, nil
}

// Generate sends the prompt to the chat model and returns the completion
// verbatim.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: prompt}},
		},
	}

	res, err := c.llm.GenerateContent(ctx, messages)
	if err != nil {
		log.Error().Err(err).Msg("Error generating content")
		return "", err
	}
	if len(res.Choices) == 0 {
		log.Error().Msg("Chat model returned no choices")
		return "", ErrEmptyResponse
	}
	return res.Choices[0].Content, nil
}
