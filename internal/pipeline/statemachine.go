// internal/pipeline/statemachine.go
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/korhaliv/mend-cli/api/schemas"
	"github.com/korhaliv/mend-cli/internal/analyze"
)

// State names the phases of an analyzer run.
type State string

const (
	StateInitial    State = "INITIAL"
	StateExtracting State = "EXTRACTING"
	StateAnalyzing  State = "ANALYZING"
	StateSuggesting State = "SUGGESTING"
	StateApplying   State = "APPLYING"
	StateCompleted  State = "COMPLETED"
	StateError      State = "ERROR"
)

// validTransitions is the explicit transition table. Any transition not
// listed here is a programming error and is rejected.
var validTransitions = map[State][]State{
	StateInitial:    {StateExtracting, StateError},
	StateExtracting: {StateAnalyzing, StateCompleted, StateError},
	StateAnalyzing:  {StateSuggesting, StateError},
	StateSuggesting: {StateApplying, StateCompleted, StateError},
	StateApplying:   {StateCompleted, StateError},
	StateCompleted:  {},
	StateError:      {},
}

// SuggestionEngine is the combined generate-and-rank contract the state
// machine drives during the SUGGESTING phase.
type SuggestionEngine interface {
	Generate(ctx context.Context, groups []schemas.FailureGroup) ([]schemas.FixSuggestion, []error)
}

// Ranker orders and truncates the merged suggestion set.
type Ranker interface {
	Rank(suggestions []schemas.FixSuggestion) []schemas.FixSuggestion
}

// FixApplier materializes suggestions onto the filesystem.
type FixApplier interface {
	Apply(ctx context.Context, runID string, s schemas.FixSuggestion) (schemas.AppliedFix, error)
}

// StateMachine drives one analyzer run through its phases. A machine is
// single-use: Run may be called exactly once.
type StateMachine struct {
	extractor schemas.Extractor
	analyzer  *analyze.Analyzer
	engine    SuggestionEngine
	ranker    Ranker
	applier   FixApplier // nil disables the APPLYING phase
	monitor   *ResourceMonitor
	logger    *zap.Logger

	state State
	run   *AnalyzerContext
	used  bool
}

// NewStateMachine assembles a machine around its phase implementations. A nil
// applier skips the APPLYING phase entirely.
func NewStateMachine(extractor schemas.Extractor, analyzer *analyze.Analyzer, engine SuggestionEngine, ranker Ranker, applier FixApplier, monitor *ResourceMonitor, logger *zap.Logger) *StateMachine {
	return &StateMachine{
		extractor: extractor,
		analyzer:  analyzer,
		engine:    engine,
		ranker:    ranker,
		applier:   applier,
		monitor:   monitor,
		state:     StateInitial,
		run:       NewAnalyzerContext(),
		logger:    logger.Named("state-machine"),
	}
}

// State returns the machine's current state.
func (sm *StateMachine) State() State { return sm.state }

// RunID returns the run's unique identifier.
func (sm *StateMachine) RunID() string { return sm.run.RunID }

// transition moves the machine to next, enforcing the transition table.
func (sm *StateMachine) transition(next State) error {
	for _, allowed := range validTransitions[sm.state] {
		if allowed == next {
			sm.logger.Debug("State transition",
				zap.String("from", string(sm.state)),
				zap.String("to", string(next)))
			sm.state = next
			return nil
		}
	}
	return fmt.Errorf("invalid state transition %s -> %s", sm.state, next)
}

// fail moves the machine to ERROR, records the cause, and returns the final
// result. ERROR is terminal but the result still carries every artifact
// produced before the failure.
func (sm *StateMachine) fail(phase string, err error) (schemas.RunResult, error) {
	sm.run.RecordError(phase, err)
	sm.state = StateError
	sm.logger.Error("Run terminated",
		zap.String("run_id", sm.run.RunID),
		zap.String("phase", phase),
		zap.Error(err))
	return sm.run.Result(string(StateError)), err
}

// Run executes the full pipeline. The returned RunResult is always populated
// with whatever the run produced, even when err is non-nil.
func (sm *StateMachine) Run(ctx context.Context) (result schemas.RunResult, err error) {
	if sm.used {
		return schemas.RunResult{}, fmt.Errorf("state machine is single-use; already ran %s", sm.run.RunID)
	}
	sm.used = true

	runCtx, cancel := sm.monitor.RunContext(ctx)
	defer cancel()

	// A panic in any phase must not escape the run: it becomes a recorded
	// error and the machine lands in ERROR.
	defer func() {
		if r := recover(); r != nil {
			result, err = sm.fail(string(sm.state), fmt.Errorf("panic during %s: %v", sm.state, r))
		}
	}()

	sm.logger.Info("Starting analyzer run", zap.String("run_id", sm.run.RunID))

	if result, failed, err := sm.advance(runCtx, StateExtracting, sm.extract); failed {
		return result, err
	}
	// An empty extraction ends the run from EXTRACTING; there is nothing to
	// analyze or suggest.
	if len(sm.run.Failures) == 0 {
		return sm.complete()
	}

	if result, failed, err := sm.advance(runCtx, StateAnalyzing, sm.analyze); failed {
		return result, err
	}
	if result, failed, err := sm.advance(runCtx, StateSuggesting, sm.suggest); failed {
		return result, err
	}

	// APPLYING is entered only when an applier is configured and ranking
	// produced at least one suggestion.
	if sm.applier != nil && len(sm.run.Suggestions) > 0 {
		if result, failed, err := sm.advance(runCtx, StateApplying, sm.apply); failed {
			return result, err
		}
	}

	return sm.complete()
}

// advance transitions into state and executes the phase body under the
// monitor's resource checks and phase deadline. When failed is true the
// machine has landed in ERROR and result carries the terminal snapshot.
func (sm *StateMachine) advance(runCtx context.Context, state State, exec func(context.Context) error) (result schemas.RunResult, failed bool, err error) {
	if terr := sm.transition(state); terr != nil {
		result, err = sm.fail(string(sm.state), terr)
		return result, true, err
	}
	if merr := sm.monitor.Check(runCtx, string(state)); merr != nil {
		result, err = sm.fail(string(state), merr)
		return result, true, err
	}

	phaseCtx, phaseCancel := sm.monitor.PhaseContext(runCtx)
	execErr := exec(phaseCtx)
	execErr = sm.monitor.ClassifyPhaseErr(phaseCtx, string(state), execErr)
	phaseCancel()

	if execErr != nil {
		result, err = sm.fail(string(state), execErr)
		return result, true, err
	}
	return schemas.RunResult{}, false, nil
}

func (sm *StateMachine) complete() (schemas.RunResult, error) {
	if err := sm.transition(StateCompleted); err != nil {
		return sm.fail(string(sm.state), err)
	}
	sm.logger.Info("Analyzer run completed",
		zap.String("run_id", sm.run.RunID),
		zap.Int("failures", len(sm.run.Failures)),
		zap.Int("groups", len(sm.run.Groups)),
		zap.Int("suggestions", len(sm.run.Suggestions)),
		zap.Int("applied", len(sm.run.Applied)))
	return sm.run.Result(string(StateCompleted)), nil
}

func (sm *StateMachine) extract(ctx context.Context) error {
	failures, err := sm.extractor.Extract(ctx)
	if err != nil {
		return err
	}
	sm.run.Failures = failures
	return nil
}

func (sm *StateMachine) analyze(ctx context.Context) error {
	groups, err := sm.analyzer.Group(sm.run.Failures)
	if err != nil {
		return err
	}
	sm.run.Groups = groups
	return nil
}

func (sm *StateMachine) suggest(ctx context.Context) error {
	if len(sm.run.Groups) == 0 {
		return nil
	}
	suggestions, errs := sm.engine.Generate(ctx, sm.run.Groups)
	for _, genErr := range errs {
		// Per-group suggester failures degrade the run, never kill it.
		sm.run.RecordError(string(StateSuggesting), genErr)
	}
	sm.run.Suggestions = sm.ranker.Rank(suggestions)
	return nil
}

// apply materializes the top-ranked suggestion per failure. Application
// failures are recorded and the AppliedFix kept, so the caller sees which
// suggestions were attempted and rolled back.
func (sm *StateMachine) apply(ctx context.Context) error {
	applied := make(map[string]bool, len(sm.run.Suggestions))
	for _, s := range sm.run.Suggestions {
		if applied[s.TestID] || len(s.Changes) == 0 {
			continue
		}
		fix, err := sm.applier.Apply(ctx, sm.run.RunID, s)
		sm.run.Applied = append(sm.run.Applied, fix)
		if err != nil {
			sm.run.RecordError(string(StateApplying), err)
			if schemas.IsFixError(err, schemas.FixBackupFailed) {
				// A backup failure means the store itself is broken; applying
				// anything further would risk irreversible changes.
				return err
			}
			continue
		}
		applied[s.TestID] = true
	}
	return nil
}
