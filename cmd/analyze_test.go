// cmd/analyze_test.go
package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/korhaliv/mend-cli/api/schemas"
)

func TestAllApplied(t *testing.T) {
	t.Parallel()

	assert.True(t, allApplied(nil))
	assert.True(t, allApplied([]schemas.AppliedFix{{Success: true}, {Success: true}}))
	assert.False(t, allApplied([]schemas.AppliedFix{{Success: true}, {Success: false}}))
}

func TestWriteResultToFile(t *testing.T) {
	dir := t.TempDir()
	outputPath = filepath.Join(dir, "result.json")
	t.Cleanup(func() { outputPath = "" })

	result := schemas.RunResult{
		RunID: "run-42",
		State: "COMPLETED",
		Failures: []schemas.Failure{
			{TestID: "t1", Outcome: schemas.OutcomeFailed},
		},
	}
	require.NoError(t, writeResult(result))

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)

	var decoded schemas.RunResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-42", decoded.RunID)
	assert.Equal(t, "COMPLETED", decoded.State)
	require.Len(t, decoded.Failures, 1)
	assert.Equal(t, "t1", decoded.Failures[0].TestID)
}
