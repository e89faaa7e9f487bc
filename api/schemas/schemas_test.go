// api/schemas/schemas_test.go
package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcomeIsFailure(t *testing.T) {
	t.Parallel()

	assert.True(t, OutcomeFailed.IsFailure())
	assert.True(t, OutcomeError.IsFailure())
	assert.False(t, OutcomePassed.IsFailure())
	assert.False(t, OutcomeSkipped.IsFailure())
}

func TestFailureKey(t *testing.T) {
	t.Parallel()

	a := Failure{File: "pkg/a.py", TestID: "test_x", Line: 10}
	b := Failure{File: "pkg/a.py", TestID: "test_x", Line: 10}
	c := Failure{File: "pkg/a.py", TestID: "test_x", Line: 11}

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestGroupRepresentativeIsFirstMember(t *testing.T) {
	t.Parallel()

	g := FailureGroup{Members: []Failure{
		{TestID: "first"},
		{TestID: "second"},
	}}
	assert.Equal(t, "first", g.Representative().TestID)
}

func TestComputeFingerprint(t *testing.T) {
	t.Parallel()

	changes := map[string]FileChange{
		"a.py": {Kind: ChangeFullContent, Content: "x = 1\n"},
		"b.py": {Kind: ChangeUnifiedDiff, Content: "--- a/b.py\n+++ b/b.py\n"},
	}

	base := ComputeFingerprint("Fix the import", changes)
	require.Len(t, base, 64)

	t.Run("independent of provenance and metadata", func(t *testing.T) {
		t.Parallel()
		// The fingerprint is a pure function of text and changes, so two
		// engines producing the same fix collide.
		again := ComputeFingerprint("Fix the import", changes)
		assert.Equal(t, base, again)
	})

	t.Run("whitespace and case insensitive", func(t *testing.T) {
		t.Parallel()
		variant := ComputeFingerprint("  fix   THE import ", changes)
		assert.Equal(t, base, variant)
	})

	t.Run("sensitive to change content", func(t *testing.T) {
		t.Parallel()
		other := map[string]FileChange{
			"a.py": {Kind: ChangeFullContent, Content: "x = 2\n"},
			"b.py": changes["b.py"],
		}
		assert.NotEqual(t, base, ComputeFingerprint("Fix the import", other))
	})

	t.Run("sensitive to text", func(t *testing.T) {
		t.Parallel()
		assert.NotEqual(t, base, ComputeFingerprint("Fix the name", changes))
	})

	t.Run("empty changes", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, ComputeFingerprint("hint", nil), ComputeFingerprint("hint", map[string]FileChange{}))
	})
}
