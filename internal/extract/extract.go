// internal/extract/extract.go
package extract

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/korhaliv/mend-cli/api/schemas"
)

// errorKindRegex matches a leading exception-style kind in a failure message,
// e.g. "AssertionError: expected 3, got 4".
var errorKindRegex = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_.]*(?:Error|Exception|Failure))\b:?\s*`)

// classifyMessage splits a raw failure message into an error kind and the
// remaining message text. Messages without a recognizable kind keep the whole
// text and an empty kind.
func classifyMessage(raw string) (kind, message string) {
	raw = strings.TrimSpace(raw)
	if m := errorKindRegex.FindStringSubmatch(raw); m != nil {
		return m[1], strings.TrimSpace(raw[len(m[0]):])
	}
	return "", raw
}

// parseOutcome normalizes the outcome strings found in the supported report
// formats. Unknown values are reported as unrecognized so the caller can skip
// the record.
func parseOutcome(s string) (schemas.Outcome, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "passed", "pass", "ok":
		return schemas.OutcomePassed, true
	case "failed", "fail", "failure":
		return schemas.OutcomeFailed, true
	case "error", "errored":
		return schemas.OutcomeError, true
	case "skipped", "skip":
		return schemas.OutcomeSkipped, true
	default:
		return "", false
	}
}

// dedupe drops duplicate records (same file+test+line reported twice),
// keeping the first occurrence and preserving input order.
func dedupe(failures []schemas.Failure, logger *zap.Logger) []schemas.Failure {
	seen := make(map[string]struct{}, len(failures))
	out := failures[:0]
	for _, f := range failures {
		key := f.Key()
		if _, dup := seen[key]; dup {
			logger.Debug("Dropping duplicate test record",
				zap.String("test_id", f.TestID),
				zap.String("file", f.File),
				zap.Int("line", f.Line))
			continue
		}
		seen[key] = struct{}{}
		out = append(out, f)
	}
	return out
}

// resolvePath runs a reported path through the external resolver. Extraction
// never resolves paths itself; an unresolvable path keeps the raw value so
// the record is still visible downstream.
func resolvePath(resolver schemas.PathResolver, path string, logger *zap.Logger) string {
	if path == "" || resolver == nil {
		return path
	}
	resolved, err := resolver.Resolve(path)
	if err != nil {
		logger.Warn("Path resolution failed, keeping reported path",
			zap.String("path", path), zap.Error(err))
		return path
	}
	return resolved
}
