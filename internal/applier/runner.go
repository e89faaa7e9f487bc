// internal/applier/runner.go
package applier

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/korhaliv/mend-cli/api/schemas"
)

// CommandTestRunner verifies applied fixes by shelling out to a configured
// test command. The {test} placeholder in the command expands to the test ID.
type CommandTestRunner struct {
	command string
	dir     string
	logger  *zap.Logger
}

// NewCommandTestRunner builds a runner executing command from dir.
func NewCommandTestRunner(command, dir string, logger *zap.Logger) *CommandTestRunner {
	return &CommandTestRunner{command: command, dir: dir, logger: logger.Named("test-runner")}
}

// RunTest re-executes the originating test. A non-zero exit marks the test
// failed; only a failure to start the process at all is an error.
func (r *CommandTestRunner) RunTest(ctx context.Context, testID string) (schemas.VerificationResult, error) {
	if r.command == "" {
		return schemas.VerificationResult{TestID: testID}, fmt.Errorf("no test command configured")
	}

	shellCmd := strings.ReplaceAll(r.command, "{test}", testID)
	r.logger.Info("Verifying fix", zap.String("test_id", testID), zap.String("command", shellCmd))

	start := time.Now()
	cmd := exec.CommandContext(ctx, "sh", "-c", shellCmd)
	cmd.Dir = r.dir
	output, err := cmd.CombinedOutput()

	result := schemas.VerificationResult{
		TestID:   testID,
		Passed:   err == nil,
		Output:   string(output),
		Duration: time.Since(start),
	}
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			// The test ran and failed; that is a result, not a runner error.
			return result, nil
		}
		return result, fmt.Errorf("failed to run test command: %w", err)
	}
	return result, nil
}
