// internal/suggest/coordinator_test.go
package suggest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/korhaliv/mend-cli/api/schemas"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedSuggester returns per-TestID canned results.
type scriptedSuggester struct {
	name    string
	mu      sync.Mutex
	results map[string][]schemas.FixSuggestion
	errs    map[string]error
	calls   []string
}

func (s *scriptedSuggester) Name() string { return s.name }

func (s *scriptedSuggester) Suggest(ctx context.Context, group schemas.FailureGroup) ([]schemas.FixSuggestion, error) {
	rep := group.Representative()
	s.mu.Lock()
	s.calls = append(s.calls, rep.TestID)
	s.mu.Unlock()
	if err := s.errs[rep.TestID]; err != nil {
		return nil, err
	}
	return s.results[rep.TestID], nil
}

func (s *scriptedSuggester) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type staticBreaker struct{ open bool }

func (b *staticBreaker) Open() bool { return b.open }

func groupsFor(testIDs ...string) []schemas.FailureGroup {
	groups := make([]schemas.FailureGroup, 0, len(testIDs))
	for _, id := range testIDs {
		groups = append(groups, schemas.FailureGroup{Members: []schemas.Failure{
			{TestID: id, Outcome: schemas.OutcomeFailed},
		}})
	}
	return groups
}

func suggestionFor(testID string, provenance schemas.Provenance) schemas.FixSuggestion {
	s := schemas.FixSuggestion{TestID: testID, Suggestion: "fix " + testID + " via " + string(provenance), Confidence: 0.5, Provenance: provenance}
	s.Fingerprint = schemas.ComputeFingerprint(s.Suggestion, nil)
	return s
}

func TestCoordinatorMergesRuleAndAISuggestions(t *testing.T) {
	t.Parallel()

	rules := &scriptedSuggester{name: "rule", results: map[string][]schemas.FixSuggestion{
		"t1": {suggestionFor("t1", schemas.ProvenanceRule)},
		"t2": {suggestionFor("t2", schemas.ProvenanceRule)},
	}}
	ai := &scriptedSuggester{name: "ai", results: map[string][]schemas.FixSuggestion{
		"t1": {suggestionFor("t1", schemas.ProvenanceAI)},
		"t2": {suggestionFor("t2", schemas.ProvenanceAI)},
	}}

	c := NewCoordinator(rules, ai, &staticBreaker{}, 2, zaptest.NewLogger(t))
	suggestions, errs := c.Generate(context.Background(), groupsFor("t1", "t2"))

	assert.Empty(t, errs)
	assert.Len(t, suggestions, 4)
}

func TestCoordinatorRuleOnlyWhenNoAI(t *testing.T) {
	t.Parallel()

	rules := &scriptedSuggester{name: "rule", results: map[string][]schemas.FixSuggestion{
		"t1": {suggestionFor("t1", schemas.ProvenanceRule)},
	}}

	c := NewCoordinator(rules, nil, nil, 2, zaptest.NewLogger(t))
	suggestions, errs := c.Generate(context.Background(), groupsFor("t1"))

	assert.Empty(t, errs)
	require.Len(t, suggestions, 1)
	assert.Equal(t, schemas.ProvenanceRule, suggestions[0].Provenance)
}

func TestCoordinatorPerGroupFailureDoesNotAbort(t *testing.T) {
	t.Parallel()

	rules := &scriptedSuggester{name: "rule", results: map[string][]schemas.FixSuggestion{
		"t1": {suggestionFor("t1", schemas.ProvenanceRule)},
		"t2": {suggestionFor("t2", schemas.ProvenanceRule)},
	}}
	ai := &scriptedSuggester{
		name:    "ai",
		results: map[string][]schemas.FixSuggestion{"t2": {suggestionFor("t2", schemas.ProvenanceAI)}},
		errs:    map[string]error{"t1": errors.New("model exploded")},
	}

	c := NewCoordinator(rules, ai, &staticBreaker{}, 1, zaptest.NewLogger(t))
	suggestions, errs := c.Generate(context.Background(), groupsFor("t1", "t2"))

	// The t1 AI failure is recorded but t2's AI suggestion still arrives.
	require.Len(t, errs, 1)
	assert.Len(t, suggestions, 3)
}

func TestCoordinatorSkipsAIWhenBreakerOpen(t *testing.T) {
	t.Parallel()

	rules := &scriptedSuggester{name: "rule", results: map[string][]schemas.FixSuggestion{}}
	ai := &scriptedSuggester{name: "ai", results: map[string][]schemas.FixSuggestion{}}

	c := NewCoordinator(rules, ai, &staticBreaker{open: true}, 2, zaptest.NewLogger(t))
	_, errs := c.Generate(context.Background(), groupsFor("t1", "t2", "t3"))

	assert.Empty(t, errs)
	assert.Equal(t, 0, ai.callCount())
	assert.Equal(t, 3, rules.callCount())
}

func TestCoordinatorDisablesAIAfterCircuitOpens(t *testing.T) {
	t.Parallel()

	rules := &scriptedSuggester{name: "rule", results: map[string][]schemas.FixSuggestion{}}
	ai := &scriptedSuggester{
		name: "ai",
		errs: map[string]error{
			"t1": schemas.NewLLMError(schemas.LLMCircuitOpen, errors.New("cooling down")),
			"t2": schemas.NewLLMError(schemas.LLMCircuitOpen, errors.New("cooling down")),
			"t3": schemas.NewLLMError(schemas.LLMCircuitOpen, errors.New("cooling down")),
		},
	}

	// Workers=1 serializes the AI pass, so after the first circuit-open
	// error no further group should be scheduled.
	c := NewCoordinator(rules, ai, &staticBreaker{}, 1, zaptest.NewLogger(t))
	_, errs := c.Generate(context.Background(), groupsFor("t1", "t2", "t3"))

	assert.NotEmpty(t, errs)
	assert.Less(t, ai.callCount(), 3)
}

func TestCoordinatorCancelledContext(t *testing.T) {
	t.Parallel()

	rules := &scriptedSuggester{name: "rule", results: map[string][]schemas.FixSuggestion{}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewCoordinator(rules, nil, nil, 2, zaptest.NewLogger(t))
	suggestions, errs := c.Generate(ctx, groupsFor("t1", "t2"))

	assert.Empty(t, suggestions)
	assert.NotEmpty(t, errs)
}
