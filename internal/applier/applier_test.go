// internal/applier/applier_test.go
package applier

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/korhaliv/mend-cli/api/schemas"
)

// tempResolver roots all paths in a test directory.
type tempResolver struct {
	root string
}

func (r *tempResolver) Resolve(path string) (string, error) { return path, nil }
func (r *tempResolver) Abs(rel string) string               { return filepath.Join(r.root, rel) }

// stubRunner returns a scripted verification result.
type stubRunner struct {
	passed bool
	err    error
}

func (r *stubRunner) RunTest(ctx context.Context, testID string) (schemas.VerificationResult, error) {
	return schemas.VerificationResult{TestID: testID, Passed: r.passed}, r.err
}

func newTestApplier(t *testing.T, runner schemas.TestRunner, verify bool) (*Applier, string) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	root := t.TempDir()

	backups, err := NewFileBackupStore(filepath.Join(root, ".backups"), logger)
	require.NoError(t, err)

	return NewApplier(&tempResolver{root: root}, backups, runner, verify, logger), root
}

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func suggestionWith(changes map[string]schemas.FileChange) schemas.FixSuggestion {
	s := schemas.FixSuggestion{
		TestID:     "tests/test_calc.py::test_add",
		Suggestion: "Fix the arithmetic.",
		Changes:    changes,
		Confidence: 0.8,
		Provenance: schemas.ProvenanceAI,
	}
	s.Fingerprint = schemas.ComputeFingerprint(s.Suggestion, s.Changes)
	return s
}

func TestApplyFullContentChanges(t *testing.T) {
	t.Parallel()
	a, root := newTestApplier(t, nil, false)

	pathA := writeFile(t, root, "a.py", "x = 1\n")
	pathB := writeFile(t, root, "b.py", "y = 1\n")

	fix, err := a.Apply(context.Background(), "run-1", suggestionWith(map[string]schemas.FileChange{
		"a.py": {Kind: schemas.ChangeFullContent, Content: "x = 2\n"},
		"b.py": {Kind: schemas.ChangeFullContent, Content: "y = 2\n"},
	}))
	require.NoError(t, err)

	assert.True(t, fix.Success)
	assert.Len(t, fix.Files, 2)
	assert.Len(t, fix.Backups, 2)
	assert.Equal(t, "x = 2\n", readFile(t, pathA))
	assert.Equal(t, "y = 2\n", readFile(t, pathB))
}

func TestApplyDiffChange(t *testing.T) {
	t.Parallel()
	a, root := newTestApplier(t, nil, false)

	path := writeFile(t, root, "calc.py", "def add(a, b):\n    return a - b\n")

	patch := `--- a/calc.py
+++ b/calc.py
@@ -1,2 +1,2 @@
 def add(a, b):
-    return a - b
+    return a + b
`
	fix, err := a.Apply(context.Background(), "run-1", suggestionWith(map[string]schemas.FileChange{
		"calc.py": {Kind: schemas.ChangeUnifiedDiff, Content: patch},
	}))
	require.NoError(t, err)
	assert.True(t, fix.Success)
	assert.Equal(t, "def add(a, b):\n    return a + b\n", readFile(t, path))
}

func TestApplySecondFileFailureRollsBackFirst(t *testing.T) {
	t.Parallel()
	a, root := newTestApplier(t, nil, false)

	pathA := writeFile(t, root, "a.py", "x = 1\n")
	pathB := writeFile(t, root, "b.py", "y = 1\n")

	// The b.py patch does not match the file content, so its application
	// fails after a.py has already been rewritten.
	badPatch := `--- a/b.py
+++ b/b.py
@@ -1 +1 @@
-does not exist in the file
+replacement
`
	fix, err := a.Apply(context.Background(), "run-1", suggestionWith(map[string]schemas.FileChange{
		"a.py": {Kind: schemas.ChangeFullContent, Content: "x = 2\n"},
		"b.py": {Kind: schemas.ChangeUnifiedDiff, Content: badPatch},
	}))

	require.Error(t, err)
	assert.True(t, schemas.IsFixError(err, schemas.FixPartialApply))
	assert.False(t, fix.Success)

	// Atomicity: the first file is back to its pre-apply content.
	assert.Equal(t, "x = 1\n", readFile(t, pathA))
	assert.Equal(t, "y = 1\n", readFile(t, pathB))
}

func TestApplyBackupFailureMutatesNothing(t *testing.T) {
	t.Parallel()
	a, root := newTestApplier(t, nil, false)

	pathA := writeFile(t, root, "a.py", "x = 1\n")
	// z.py does not exist: its backup fails after a.py's backup succeeded,
	// but before anything was written.

	fix, err := a.Apply(context.Background(), "run-1", suggestionWith(map[string]schemas.FileChange{
		"a.py": {Kind: schemas.ChangeFullContent, Content: "x = 2\n"},
		"z.py": {Kind: schemas.ChangeFullContent, Content: "new file\n"},
	}))

	require.Error(t, err)
	assert.True(t, schemas.IsFixError(err, schemas.FixBackupFailed))
	assert.False(t, fix.Success)
	assert.Equal(t, "x = 1\n", readFile(t, pathA))
}

func TestApplyEmptyChangeSet(t *testing.T) {
	t.Parallel()
	a, _ := newTestApplier(t, nil, false)

	_, err := a.Apply(context.Background(), "run-1", suggestionWith(nil))
	require.Error(t, err)
}

func TestApplyVerificationFailureRollsBack(t *testing.T) {
	t.Parallel()
	a, root := newTestApplier(t, &stubRunner{passed: false}, true)

	path := writeFile(t, root, "a.py", "x = 1\n")

	fix, err := a.Apply(context.Background(), "run-1", suggestionWith(map[string]schemas.FileChange{
		"a.py": {Kind: schemas.ChangeFullContent, Content: "x = 2\n"},
	}))

	require.Error(t, err)
	assert.True(t, schemas.IsFixError(err, schemas.FixVerificationFailed))
	assert.False(t, fix.Success)
	require.NotNil(t, fix.Verification)
	assert.False(t, fix.Verification.Passed)
	assert.Equal(t, "x = 1\n", readFile(t, path))
}

func TestApplyVerificationSuccess(t *testing.T) {
	t.Parallel()
	a, root := newTestApplier(t, &stubRunner{passed: true}, true)

	path := writeFile(t, root, "a.py", "x = 1\n")

	fix, err := a.Apply(context.Background(), "run-1", suggestionWith(map[string]schemas.FileChange{
		"a.py": {Kind: schemas.ChangeFullContent, Content: "x = 2\n"},
	}))
	require.NoError(t, err)
	assert.True(t, fix.Success)
	require.NotNil(t, fix.Verification)
	assert.True(t, fix.Verification.Passed)
	assert.Equal(t, "x = 2\n", readFile(t, path))
}

func TestBackupStoreRoundTrip(t *testing.T) {
	t.Parallel()
	logger := zaptest.NewLogger(t)
	root := t.TempDir()

	store, err := NewFileBackupStore(filepath.Join(root, ".backups"), logger)
	require.NoError(t, err)

	path := writeFile(t, root, "f.py", "original\n")
	ref, err := store.Backup("run-1", "fingerprint", path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("mutated\n"), 0o644))
	require.NoError(t, store.Restore(ref))
	assert.Equal(t, "original\n", readFile(t, path))

	require.NoError(t, store.Cleanup("run-1"))
	assert.Error(t, store.Restore(ref))
}

func TestCommitterRejectsFailedFix(t *testing.T) {
	t.Parallel()
	c := NewCommitter(t.TempDir(), zaptest.NewLogger(t))

	_, err := c.Commit(schemas.AppliedFix{Success: false})
	require.Error(t, err)
}

func TestCommitterSkipsNonRepository(t *testing.T) {
	t.Parallel()
	c := NewCommitter(t.TempDir(), zaptest.NewLogger(t))

	hash, err := c.Commit(schemas.AppliedFix{Success: true, Suggestion: suggestionWith(nil)})
	require.NoError(t, err)
	assert.Empty(t, hash)
}

func TestCommandTestRunner(t *testing.T) {
	t.Parallel()
	logger := zaptest.NewLogger(t)

	t.Run("passing command", func(t *testing.T) {
		t.Parallel()
		r := NewCommandTestRunner("true # {test}", t.TempDir(), logger)
		result, err := r.RunTest(context.Background(), "t1")
		require.NoError(t, err)
		assert.True(t, result.Passed)
	})

	t.Run("failing command", func(t *testing.T) {
		t.Parallel()
		r := NewCommandTestRunner("false", t.TempDir(), logger)
		result, err := r.RunTest(context.Background(), "t1")
		require.NoError(t, err)
		assert.False(t, result.Passed)
	})

	t.Run("placeholder expansion", func(t *testing.T) {
		t.Parallel()
		r := NewCommandTestRunner("echo {test}", t.TempDir(), logger)
		result, err := r.RunTest(context.Background(), "suite::case")
		require.NoError(t, err)
		assert.Contains(t, result.Output, "suite::case")
	})
}

func TestApplyCancelledContext(t *testing.T) {
	t.Parallel()
	a, root := newTestApplier(t, nil, false)

	pathA := writeFile(t, root, "a.py", "x = 1\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fix, err := a.Apply(ctx, "run-1", suggestionWith(map[string]schemas.FileChange{
		"a.py": {Kind: schemas.ChangeFullContent, Content: "x = 2\n"},
	}))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, fix.Success)
	assert.Equal(t, "x = 1\n", readFile(t, pathA))
}
