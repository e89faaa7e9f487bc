// internal/extract/context.go
package extract

import (
	"fmt"
	"math"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/korhaliv/mend-cli/api/schemas"
)

// contextWindow is the number of source lines rendered around a failing line.
const contextWindow = 15

// enrichCodeContext fills in CodeContext for failure records that name a
// resolvable file and line but whose report carried no snippet of its own.
// Reported context always wins; unreadable sources leave the record as-is.
func enrichCodeContext(failures []schemas.Failure, resolver schemas.PathResolver, logger *zap.Logger) {
	if resolver == nil {
		return
	}
	for i := range failures {
		f := &failures[i]
		if !f.Outcome.IsFailure() || f.CodeContext != "" || f.File == "" || f.Line <= 0 {
			continue
		}
		data, err := os.ReadFile(resolver.Abs(f.File))
		if err != nil {
			logger.Debug("Source unavailable for code context",
				zap.String("file", f.File), zap.Error(err))
			continue
		}
		if rendered := renderCodeContext(string(data), f.Line, contextWindow); rendered != "" {
			f.CodeContext = rendered
		}
	}
}

// renderCodeContext returns a window of source lines centered on lineNum,
// each prefixed with an aligned line number. The failing line carries a "->"
// marker so it survives truncation and stays visible in prompts.
func renderCodeContext(sourceCode string, lineNum, window int) string {
	lines := strings.Split(sourceCode, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if lineNum <= 0 || lineNum > len(lines) {
		return ""
	}

	start := lineNum - window/2 - 1
	if start < 0 {
		start = 0
	}
	end := start + window
	if end > len(lines) {
		end = len(lines)
	}
	if end-start < window && start > 0 {
		start = end - window
		if start < 0 {
			start = 0
		}
	}
	if end == 0 {
		return ""
	}
	lineWidth := int(math.Log10(float64(end))) + 1

	rendered := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		n := i + 1
		marker := "   "
		if n == lineNum {
			marker = "-> "
		}
		rendered = append(rendered, fmt.Sprintf("%s%*d: %s", marker, lineWidth, n, lines[i]))
	}
	return strings.Join(rendered, "\n")
}
