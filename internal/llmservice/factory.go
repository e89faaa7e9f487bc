// internal/llmservice/factory.go
package llmservice

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/korhaliv/mend-cli/api/schemas"
	"github.com/korhaliv/mend-cli/internal/config"
)

// NewClient is a factory function that creates a provider adapter based on
// explicit configuration. There is no auto-detection; the provider set is
// closed and selected by name.
func NewClient(cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(cfg, logger)
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s %s]",
			cfg.Provider, config.ProviderGemini, config.ProviderOpenAI)
	}
}
