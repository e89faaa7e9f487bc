// internal/llmservice/service.go
package llmservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/korhaliv/mend-cli/api/schemas"
	"github.com/korhaliv/mend-cli/internal/config"
)

// Service is the resource-bounded, resilient wrapper around a provider
// transport. Every call is rate limited and wall-clock bounded; Transport
// failures are retried with exponential backoff; repeated failures trip the
// circuit breaker. All failures surface as LLMServiceError values.
type Service struct {
	client     schemas.LLMClient
	logger     *zap.Logger
	limiter    *rate.Limiter
	breaker    *CircuitBreaker
	timeout    time.Duration
	maxRetries uint64
	model      string
	maxTokens  int
}

// New wraps the provider client with the configured resilience policy.
func New(client schemas.LLMClient, cfg config.LLMConfig, logger *zap.Logger) *Service {
	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	return &Service{
		client:     client,
		logger:     logger.Named("llm_service"),
		limiter:    rate.NewLimiter(limit, 1),
		breaker:    NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerWindow, cfg.BreakerCooldown),
		timeout:    cfg.RequestTimeout,
		maxRetries: uint64(cfg.MaxRetries),
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
	}
}

// Breaker exposes the breaker so callers can stop scheduling work for the
// rest of a run once the circuit opens.
func (s *Service) Breaker() *CircuitBreaker { return s.breaker }

// Generate sends one prompt through the transport, honoring the breaker, the
// rate limiter, the per-call timeout and the Transport-only retry policy.
func (s *Service) Generate(ctx context.Context, prompt schemas.Prompt) (string, error) {
	if err := s.breaker.Allow(); err != nil {
		return "", err
	}

	if prompt.Model == "" {
		prompt.Model = s.model
	}
	if prompt.MaxTokens == 0 {
		prompt.MaxTokens = s.maxTokens
	}

	if err := s.limiter.Wait(ctx); err != nil {
		// Cancellation while queued: the transport was never invoked, so the
		// breaker does not count this. A half-open probe slot we were granted
		// goes back so the next call may probe.
		s.breaker.ReleaseProbe()
		return "", schemas.NewLLMError(schemas.LLMTimeout, fmt.Errorf("rate limiter wait aborted: %w", err))
	}

	var response string
	operation := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		start := time.Now()
		text, err := s.client.Generate(attemptCtx, prompt)
		if err != nil {
			normalized := normalizeError(err, attemptCtx)
			if schemas.IsLLMError(normalized, schemas.LLMTransport) {
				s.logger.Warn("Transient transport failure, retrying", zap.Error(normalized))
				return normalized
			}
			// Timeout, malformed response and authorization-style failures
			// are never retried.
			return backoff.Permanent(normalized)
		}

		s.logger.Debug("LLM generation complete",
			zap.Duration("duration", time.Since(start)),
			zap.String("model", prompt.Model))
		response = text
		return nil
	}

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.maxRetries)
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		s.breaker.RecordFailure()
		return "", normalizeError(err, ctx)
	}

	s.breaker.RecordSuccess()
	return response, nil
}

// Close releases the underlying transport.
func (s *Service) Close() error { return s.client.Close() }

// normalizeError folds any provider failure into the service taxonomy.
func normalizeError(err error, ctx context.Context) error {
	var le *schemas.LLMServiceError
	if errors.As(err, &le) {
		return le
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return schemas.NewLLMError(schemas.LLMTimeout, err)
	}
	return schemas.NewLLMError(schemas.LLMTransport, err)
}
