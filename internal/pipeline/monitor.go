// internal/pipeline/monitor.go
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/korhaliv/mend-cli/api/schemas"
	"github.com/korhaliv/mend-cli/internal/config"
)

// ResourceMonitor enforces the wall-clock and memory budgets of a run. Time
// limits are enforced through derived contexts; the memory ceiling is polled
// at phase boundaries because a hard in-flight kill has no safe recovery.
type ResourceMonitor struct {
	phaseTimeout time.Duration
	runTimeout   time.Duration
	memLimitMiB  int
	started      time.Time
	logger       *zap.Logger
}

// NewResourceMonitor builds a monitor from the analyzer budget configuration.
func NewResourceMonitor(cfg config.AnalyzerConfig, logger *zap.Logger) *ResourceMonitor {
	return &ResourceMonitor{
		phaseTimeout: cfg.PhaseTimeout,
		runTimeout:   cfg.RunTimeout,
		memLimitMiB:  cfg.MemoryLimitMiB,
		logger:       logger.Named("resource-monitor"),
	}
}

// RunContext derives the context bounding the entire run and records the
// start time.
func (m *ResourceMonitor) RunContext(ctx context.Context) (context.Context, context.CancelFunc) {
	m.started = time.Now()
	return context.WithTimeout(ctx, m.runTimeout)
}

// PhaseContext derives a context bounding a single phase.
func (m *ResourceMonitor) PhaseContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.phaseTimeout)
}

// Check classifies the state at a phase boundary. A nil return means the run
// may proceed; otherwise the error is a ResourceLimitError and the run must
// terminate, keeping whatever partial results exist.
func (m *ResourceMonitor) Check(ctx context.Context, phase string) error {
	if err := ctx.Err(); err != nil {
		return &schemas.ResourceLimitError{
			Kind:  schemas.ResourceTimeout,
			Phase: phase,
			Err:   fmt.Errorf("run exceeded its time budget after %s: %w", time.Since(m.started).Round(time.Millisecond), err),
		}
	}

	if m.memLimitMiB > 0 {
		var stats runtime.MemStats
		runtime.ReadMemStats(&stats)
		usedMiB := int(stats.HeapAlloc / (1 << 20))
		if usedMiB > m.memLimitMiB {
			return &schemas.ResourceLimitError{
				Kind:  schemas.ResourceMemoryExceeded,
				Phase: phase,
				Err:   fmt.Errorf("heap usage %d MiB exceeds the %d MiB ceiling", usedMiB, m.memLimitMiB),
			}
		}
		m.logger.Debug("Memory check passed",
			zap.String("phase", phase),
			zap.Int("used_mib", usedMiB),
			zap.Int("limit_mib", m.memLimitMiB))
	}
	return nil
}

// ClassifyPhaseErr folds a phase error into the resource taxonomy when the
// phase's own deadline fired; other errors pass through unchanged.
func (m *ResourceMonitor) ClassifyPhaseErr(phaseCtx context.Context, phase string, err error) error {
	if err == nil {
		return nil
	}
	if phaseCtx.Err() == context.DeadlineExceeded {
		return &schemas.ResourceLimitError{
			Kind:  schemas.ResourceTimeout,
			Phase: phase,
			Err:   fmt.Errorf("phase exceeded its %s budget: %w", m.phaseTimeout, err),
		}
	}
	return err
}
