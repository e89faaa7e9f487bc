// internal/applier/applier.go
package applier

import (
	"context"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/korhaliv/mend-cli/api/schemas"
)

// Applier materializes a suggestion's file changes atomically. Every touched
// file is backed up before any mutation; if any single change fails, every
// already-modified file is restored and the suggestion is reported as failed.
// No partial application is ever left on disk.
type Applier struct {
	resolver schemas.PathResolver
	backups  schemas.BackupStore
	runner   schemas.TestRunner // nil disables verification
	verify   bool
	logger   *zap.Logger
}

// NewApplier wires the applier. Verification defaults to off; passing a nil
// runner with verify=true is a configuration error surfaced at apply time.
func NewApplier(resolver schemas.PathResolver, backups schemas.BackupStore, runner schemas.TestRunner, verify bool, logger *zap.Logger) *Applier {
	return &Applier{
		resolver: resolver,
		backups:  backups,
		runner:   runner,
		verify:   verify,
		logger:   logger.Named("fix-applier"),
	}
}

// Apply applies one suggestion's change set as a single atomic unit.
func (a *Applier) Apply(ctx context.Context, runID string, s schemas.FixSuggestion) (schemas.AppliedFix, error) {
	applied := schemas.AppliedFix{Suggestion: s}

	if len(s.Changes) == 0 {
		return applied, &schemas.FixApplicationError{
			Kind: schemas.FixPartialApply,
			Err:  fmt.Errorf("suggestion %s carries no file changes", shortFingerprint(s.Fingerprint)),
		}
	}

	// Deterministic application order.
	paths := make([]string, 0, len(s.Changes))
	for p := range s.Changes {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	// Resolve every path up front; a single bad path fails the whole
	// suggestion before anything is touched.
	absPaths := make(map[string]string, len(paths))
	for _, p := range paths {
		rel, err := a.resolver.Resolve(p)
		if err != nil {
			return applied, &schemas.FixApplicationError{Kind: schemas.FixPartialApply, Path: p, Err: err}
		}
		absPaths[p] = a.resolver.Abs(rel)
	}

	// Phase 1: back up every touched file. An AppliedFix only exists after
	// every backup succeeded.
	for _, p := range paths {
		ref, err := a.backups.Backup(runID, s.Fingerprint, absPaths[p])
		if err != nil {
			return applied, &schemas.FixApplicationError{Kind: schemas.FixBackupFailed, Path: p, Err: err}
		}
		applied.Backups = append(applied.Backups, ref)
	}

	// Phase 2: apply all changes, rolling everything back on the first
	// failure.
	for i, p := range paths {
		if err := ctx.Err(); err != nil {
			a.rollback(applied.Backups[:i])
			return applied, &schemas.FixApplicationError{Kind: schemas.FixPartialApply, Path: p, Err: err}
		}
		if err := a.applyOne(absPaths[p], s.Changes[p]); err != nil {
			a.rollback(applied.Backups[:i])
			return applied, &schemas.FixApplicationError{Kind: schemas.FixPartialApply, Path: p, Err: err}
		}
		applied.Files = append(applied.Files, absPaths[p])
	}

	// Phase 3: optional verification gates success; a failed verification
	// also triggers rollback.
	if a.verify {
		if a.runner == nil {
			a.rollback(applied.Backups)
			return applied, &schemas.FixApplicationError{
				Kind: schemas.FixVerificationFailed,
				Err:  fmt.Errorf("verification enabled but no test runner configured"),
			}
		}
		result, err := a.runner.RunTest(ctx, s.TestID)
		applied.Verification = &result
		if err != nil || !result.Passed {
			a.rollback(applied.Backups)
			if err == nil {
				err = fmt.Errorf("test %s still fails after applying fix", s.TestID)
			}
			return applied, &schemas.FixApplicationError{Kind: schemas.FixVerificationFailed, Err: err}
		}
	}

	applied.Success = true
	a.logger.Info("Applied fix suggestion",
		zap.String("fingerprint", shortFingerprint(s.Fingerprint)),
		zap.Strings("files", applied.Files))
	return applied, nil
}

// applyOne mutates a single file according to its change payload.
func (a *Applier) applyOne(absPath string, change schemas.FileChange) error {
	switch change.Kind {
	case schemas.ChangeFullContent:
		return os.WriteFile(absPath, []byte(change.Content), 0o644)
	case schemas.ChangeUnifiedDiff:
		original, err := os.ReadFile(absPath)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", absPath, err)
		}
		patched, err := applyUnifiedDiff(string(original), change.Content)
		if err != nil {
			return err
		}
		return os.WriteFile(absPath, []byte(patched), 0o644)
	default:
		return fmt.Errorf("unsupported change kind %q", change.Kind)
	}
}

// rollback restores every file in refs. Restore failures are logged but do
// not mask the original application error.
func (a *Applier) rollback(refs []schemas.BackupRef) {
	for _, ref := range refs {
		if err := a.backups.Restore(ref); err != nil {
			a.logger.Error("CRITICAL: failed to restore file from backup, manual intervention required",
				zap.String("path", ref.Path),
				zap.String("backup", ref.BackupPath),
				zap.Error(err))
		}
	}
}
