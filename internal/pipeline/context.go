// internal/pipeline/context.go
package pipeline

import (
	"github.com/google/uuid"

	"github.com/korhaliv/mend-cli/api/schemas"
)

// AnalyzerContext accumulates the state of one run as it moves through the
// pipeline. It is owned by a single state machine and never shared across
// goroutines.
type AnalyzerContext struct {
	RunID       string
	Failures    []schemas.Failure
	Groups      []schemas.FailureGroup
	Suggestions []schemas.FixSuggestion
	Applied     []schemas.AppliedFix
	Errors      []schemas.RunError
}

// NewAnalyzerContext mints a fresh run context with a unique run ID.
func NewAnalyzerContext() *AnalyzerContext {
	return &AnalyzerContext{RunID: uuid.NewString()}
}

// RecordError attaches a non-fatal error to the run, tagged with the phase
// that produced it.
func (c *AnalyzerContext) RecordError(phase string, err error) {
	if err == nil {
		return
	}
	c.Errors = append(c.Errors, schemas.RunError{Phase: phase, Err: err, Msg: err.Error()})
}

// Result snapshots the accumulated state into the run's structured output.
// Called exactly once, whether the run completed or died early: partial
// results always survive.
func (c *AnalyzerContext) Result(state string) schemas.RunResult {
	return schemas.RunResult{
		RunID:       c.RunID,
		State:       state,
		Failures:    c.Failures,
		Groups:      c.Groups,
		Suggestions: c.Suggestions,
		Applied:     c.Applied,
		Errors:      c.Errors,
	}
}
