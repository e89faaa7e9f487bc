// internal/llmservice/provider_gemini.go
package llmservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/korhaliv/mend-cli/api/schemas"
	"github.com/korhaliv/mend-cli/internal/config"
)

// GeminiClient implements schemas.LLMClient against the Gemini generateContent
// HTTP API. Retry and breaker policy live in Service; this adapter only
// normalizes failures into the service taxonomy.
type GeminiClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// -- Gemini API request/response structures (internal to this file) --

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiRequestPayload struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *struct {
		Parts []geminiPart `json:"parts"`
	} `json:"system_instruction,omitempty"`
	GenerationConfig struct {
		MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig,omitempty"`
}

type geminiResponsePayload struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// NewGeminiClient initializes the adapter.
func NewGeminiClient(cfg config.LLMConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", cfg.Model)
	}

	return &GeminiClient{
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		httpClient: &http.Client{
			// The service applies the real per-call deadline through ctx; this
			// is a backstop against a hung connection.
			Timeout: cfg.RequestTimeout + 10*time.Second,
		},
		logger: logger.Named("llm_client.gemini"),
	}, nil
}

// Generate sends the prompt and returns the first candidate's text.
func (c *GeminiClient) Generate(ctx context.Context, prompt schemas.Prompt) (string, error) {
	payload := geminiRequestPayload{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt.User}}},
		},
	}
	if prompt.System != "" {
		payload.SystemInstruction = &struct {
			Parts []geminiPart `json:"parts"`
		}{Parts: []geminiPart{{Text: prompt.System}}}
	}
	payload.GenerationConfig.MaxOutputTokens = prompt.MaxTokens

	body, err := json.Marshal(payload)
	if err != nil {
		return "", schemas.NewLLMError(schemas.LLMMalformedResponse, fmt.Errorf("failed to marshal request payload: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", schemas.NewLLMError(schemas.LLMTransport, fmt.Errorf("failed to create HTTP request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", schemas.NewLLMError(schemas.LLMTransport, fmt.Errorf("failed to execute HTTP request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", schemas.NewLLMError(schemas.LLMTransport, fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", c.classifyStatus(resp.StatusCode, respBody)
	}

	var responsePayload geminiResponsePayload
	if err := json.Unmarshal(respBody, &responsePayload); err != nil {
		return "", schemas.NewLLMError(schemas.LLMMalformedResponse, fmt.Errorf("failed to decode response payload: %w", err))
	}

	if len(responsePayload.Candidates) == 0 {
		return "", schemas.NewLLMError(schemas.LLMMalformedResponse, fmt.Errorf("gemini API returned no candidates"))
	}
	candidate := responsePayload.Candidates[0]
	if len(candidate.Content.Parts) == 0 {
		return "", schemas.NewLLMError(schemas.LLMMalformedResponse,
			fmt.Errorf("gemini API returned empty content parts (reason: %s)", candidate.FinishReason))
	}

	c.logger.Debug("Gemini generation complete",
		zap.Int("prompt_tokens", responsePayload.UsageMetadata.PromptTokenCount),
		zap.Int("completion_tokens", responsePayload.UsageMetadata.CandidatesTokenCount))
	return candidate.Content.Parts[0].Text, nil
}

// Close implements schemas.LLMClient. The HTTP client holds no resources
// needing explicit release.
func (c *GeminiClient) Close() error { return nil }

// classifyStatus maps HTTP status codes onto the retry taxonomy: throttling
// and server-side errors are Transport (retryable), everything else,
// including authorization failures, is terminal.
func (c *GeminiClient) classifyStatus(statusCode int, body []byte) error {
	err := fmt.Errorf("gemini API error: status %d, body: %s", statusCode, string(body))
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError, http.StatusBadGateway:
		return schemas.NewLLMError(schemas.LLMTransport, err)
	default:
		return schemas.NewLLMError(schemas.LLMMalformedResponse, err)
	}
}
