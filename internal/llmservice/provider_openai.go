// internal/llmservice/provider_openai.go
package llmservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/korhaliv/mend-cli/api/schemas"
	"github.com/korhaliv/mend-cli/internal/config"
)

// OpenAIClient implements schemas.LLMClient on top of the OpenAI chat
// completion API.
type OpenAIClient struct {
	client *openai.Client
	logger *zap.Logger
}

// NewOpenAIClient initializes the adapter. A custom endpoint allows pointing
// at compatible gateways.
func NewOpenAIClient(cfg config.LLMConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = cfg.Endpoint
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientCfg),
		logger: logger.Named("llm_client.openai"),
	}, nil
}

// Generate sends the prompt as a system+user chat exchange.
func (c *OpenAIClient) Generate(ctx context.Context, prompt schemas.Prompt) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if prompt.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: prompt.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt.User,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     prompt.Model,
		Messages:  messages,
		MaxTokens: prompt.MaxTokens,
	})
	if err != nil {
		return "", c.classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", schemas.NewLLMError(schemas.LLMMalformedResponse, fmt.Errorf("openai API returned no choices"))
	}

	c.logger.Debug("OpenAI generation complete",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))
	return resp.Choices[0].Message.Content, nil
}

// Close implements schemas.LLMClient.
func (c *OpenAIClient) Close() error { return nil }

// classify maps OpenAI SDK failures onto the retry taxonomy. Throttling and
// server-side errors are retryable Transport failures; authorization and
// request errors are terminal.
func (c *OpenAIClient) classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable:
			return schemas.NewLLMError(schemas.LLMTransport, err)
		default:
			return schemas.NewLLMError(schemas.LLMMalformedResponse, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return schemas.NewLLMError(schemas.LLMTimeout, err)
	}
	return schemas.NewLLMError(schemas.LLMTransport, err)
}
