// internal/llmservice/breaker.go
package llmservice

import (
	"fmt"
	"sync"
	"time"

	"github.com/korhaliv/mend-cli/api/schemas"
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// CircuitBreaker fails fast after repeated provider failures. After N
// consecutive failures inside a rolling window the breaker opens and rejects
// calls immediately for a cool-down interval; once the cool-down elapses
// exactly one probe call is allowed. A successful probe closes the breaker, a
// failed one reopens it. This bounds the damage a dead provider can do to the
// overall run timeout budget.
type CircuitBreaker struct {
	mu        sync.Mutex
	threshold int
	window    time.Duration
	cooldown  time.Duration
	now       func() time.Time

	state       breakerState
	consecutive int
	streakStart time.Time
	openedAt    time.Time
	probing     bool
}

// NewCircuitBreaker builds a closed breaker.
func NewCircuitBreaker(threshold int, window, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold,
		window:    window,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Allow reports whether a call may proceed. During the cool-down window it
// returns an LLMCircuitOpen error without the underlying transport ever being
// invoked.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return nil
	case stateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return schemas.NewLLMError(schemas.LLMCircuitOpen,
				fmt.Errorf("circuit open, cooling down for %s", b.cooldown-b.now().Sub(b.openedAt)))
		}
		// Cool-down elapsed: permit a single probe.
		b.state = stateHalfOpen
		b.probing = true
		return nil
	case stateHalfOpen:
		if b.probing {
			return schemas.NewLLMError(schemas.LLMCircuitOpen,
				fmt.Errorf("circuit half-open, probe already in flight"))
		}
		b.probing = true
		return nil
	}
	return nil
}

// ReleaseProbe returns an unused half-open probe slot. A caller that was
// granted the probe but aborted before invoking the transport must release
// it; the probe outcome is unknown, so neither success nor failure is
// recorded and the next call may probe again.
func (b *CircuitBreaker) ReleaseProbe() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen {
		b.probing = false
	}
}

// RecordSuccess notes a completed call. A successful probe closes the breaker.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = stateClosed
	b.consecutive = 0
	b.probing = false
}

// RecordFailure notes a failed call. The streak resets when the rolling
// window has passed since its first failure.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()

	if b.state == stateHalfOpen {
		// Failed probe: reopen for another cool-down.
		b.state = stateOpen
		b.openedAt = now
		b.probing = false
		b.consecutive = 0
		return
	}

	if b.consecutive == 0 || now.Sub(b.streakStart) > b.window {
		b.consecutive = 1
		b.streakStart = now
	} else {
		b.consecutive++
	}

	if b.consecutive >= b.threshold {
		b.state = stateOpen
		b.openedAt = now
		b.consecutive = 0
	}
}

// Open reports whether the breaker currently rejects calls.
func (b *CircuitBreaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == stateOpen && b.now().Sub(b.openedAt) < b.cooldown
}
