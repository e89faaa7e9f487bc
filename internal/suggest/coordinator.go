// internal/suggest/coordinator.go
package suggest

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/korhaliv/mend-cli/api/schemas"
)

// Breaker is the subset of the LLM service circuit breaker the coordinator
// consults to stop scheduling AI work once the provider is known dead.
type Breaker interface {
	Open() bool
}

// Coordinator fans suggestion generation out over the failure groups. The
// rule-based engine runs inline (it is pure and cheap); AI generation for
// independent groups runs on a bounded worker pool so provider rate limits
// and memory stay respected. Each worker owns a disjoint subset of groups and
// only appends to the synchronized result set.
type Coordinator struct {
	rules   schemas.Suggester
	ai      schemas.Suggester // nil when no provider is configured
	breaker Breaker           // nil when ai is nil
	workers int
	logger  *zap.Logger
}

// NewCoordinator wires the suggestion engines. ai and breaker may be nil to
// run rule-based only.
func NewCoordinator(rules, ai schemas.Suggester, breaker Breaker, workers int, logger *zap.Logger) *Coordinator {
	if workers <= 0 {
		workers = 1
	}
	return &Coordinator{
		rules:   rules,
		ai:      ai,
		breaker: breaker,
		workers: workers,
		logger:  logger.Named("suggest-coordinator"),
	}
}

// Generate produces the merged, unranked suggestion set for all groups.
// Per-group failures are recovered locally: the group is skipped, the error
// recorded, and the run continues. When the circuit breaker opens, all
// remaining AI work for the run is skipped and the pipeline falls back to
// rule-based suggestions only.
func (c *Coordinator) Generate(ctx context.Context, groups []schemas.FailureGroup) ([]schemas.FixSuggestion, []error) {
	var (
		mu          sync.Mutex
		suggestions []schemas.FixSuggestion
		errs        []error
	)
	collect := func(s []schemas.FixSuggestion, err error) {
		mu.Lock()
		defer mu.Unlock()
		suggestions = append(suggestions, s...)
		if err != nil {
			errs = append(errs, err)
		}
	}

	// Rule-based pass: sequential, deterministic, never fails the run.
	for _, group := range groups {
		if ctx.Err() != nil {
			collect(nil, ctx.Err())
			return suggestions, errs
		}
		s, err := c.rules.Suggest(ctx, group)
		collect(s, err)
	}

	if c.ai == nil {
		return suggestions, errs
	}

	// AI pass: bounded pool, cancellation checked at group boundaries.
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(c.workers)

	var aiDisabled sync.Once
	disabled := false
	var disabledMu sync.Mutex
	isDisabled := func() bool {
		disabledMu.Lock()
		defer disabledMu.Unlock()
		return disabled
	}

	for _, group := range groups {
		group := group
		if egCtx.Err() != nil {
			break
		}
		if isDisabled() || (c.breaker != nil && c.breaker.Open()) {
			break
		}
		eg.Go(func() error {
			if egCtx.Err() != nil || isDisabled() {
				return nil
			}
			s, err := c.ai.Suggest(egCtx, group)
			if err != nil {
				if schemas.IsLLMError(err, schemas.LLMCircuitOpen) {
					aiDisabled.Do(func() {
						c.logger.Warn("Circuit breaker open, skipping remaining AI suggestion work for this run")
						disabledMu.Lock()
						disabled = true
						disabledMu.Unlock()
					})
				}
				collect(nil, err)
				return nil // Per-group failures never abort the pool.
			}
			collect(s, nil)
			return nil
		})
	}
	_ = eg.Wait()

	return suggestions, errs
}
