// internal/llmservice/breaker_test.go
package llmservice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/korhaliv/mend-cli/api/schemas"
)

// fakeClock drives the breaker's notion of time in tests.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int, window, cooldown time.Duration) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	b := NewCircuitBreaker(threshold, window, cooldown)
	b.now = clock.now
	return b, clock
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()
	b, _ := newTestBreaker(3, time.Minute, 30*time.Second)

	for i := 0; i < 2; i++ {
		require.NoError(t, b.Allow())
		b.RecordFailure()
	}
	assert.False(t, b.Open())

	require.NoError(t, b.Allow())
	b.RecordFailure()

	assert.True(t, b.Open())
	err := b.Allow()
	require.Error(t, err)
	assert.True(t, schemas.IsLLMError(err, schemas.LLMCircuitOpen))
}

func TestBreakerSuccessResetsStreak(t *testing.T) {
	t.Parallel()
	b, _ := newTestBreaker(3, time.Minute, 30*time.Second)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	// Never three consecutive failures: still closed.
	assert.False(t, b.Open())
	assert.NoError(t, b.Allow())
}

func TestBreakerWindowExpiryResetsStreak(t *testing.T) {
	t.Parallel()
	b, clock := newTestBreaker(3, time.Minute, 30*time.Second)

	b.RecordFailure()
	b.RecordFailure()
	clock.advance(2 * time.Minute)
	b.RecordFailure() // Streak restarts: this is failure #1 of a new window.

	assert.False(t, b.Open())
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	t.Parallel()
	b, clock := newTestBreaker(2, time.Minute, 30*time.Second)

	b.RecordFailure()
	b.RecordFailure()
	require.Error(t, b.Allow())

	// Cool-down elapsed: exactly one probe is let through.
	clock.advance(31 * time.Second)
	require.NoError(t, b.Allow())
	err := b.Allow()
	require.Error(t, err)
	assert.True(t, schemas.IsLLMError(err, schemas.LLMCircuitOpen))

	// A successful probe closes the breaker fully.
	b.RecordSuccess()
	assert.NoError(t, b.Allow())
	assert.False(t, b.Open())
}

func TestBreakerReleasedProbeAllowsAnother(t *testing.T) {
	t.Parallel()
	b, clock := newTestBreaker(2, time.Minute, 30*time.Second)

	b.RecordFailure()
	b.RecordFailure()
	clock.advance(31 * time.Second)
	require.NoError(t, b.Allow())

	// The probe aborted before reaching the transport; its slot goes back
	// instead of blocking every later call as an in-flight probe.
	b.ReleaseProbe()
	require.NoError(t, b.Allow())

	b.RecordSuccess()
	assert.False(t, b.Open())
	assert.NoError(t, b.Allow())
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	t.Parallel()
	b, clock := newTestBreaker(2, time.Minute, 30*time.Second)

	b.RecordFailure()
	b.RecordFailure()
	clock.advance(31 * time.Second)
	require.NoError(t, b.Allow())

	b.RecordFailure()

	// Reopened for a fresh cool-down.
	assert.True(t, b.Open())
	require.Error(t, b.Allow())
	clock.advance(31 * time.Second)
	assert.NoError(t, b.Allow())
}
