// internal/analyze/analyzer.go
package analyze

import (
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"github.com/korhaliv/mend-cli/api/schemas"
)

// Analyzer clusters failures into groups sharing a root-cause signature, so
// one root cause manifesting across many tests triggers a single round of
// (potentially expensive) suggestion work.
type Analyzer struct {
	logger *zap.Logger
}

// NewAnalyzer initializes a new failure analyzer.
func NewAnalyzer(logger *zap.Logger) *Analyzer {
	return &Analyzer{logger: logger.Named("analyzer")}
}

// Normalization masks for volatile message fragments. Two messages differing
// only in concrete values share a pattern.
var (
	hexAddrRegex = regexp.MustCompile(`0x[0-9a-fA-F]+`)
	numberRegex  = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	quotedRegex  = regexp.MustCompile(`'[^']*'|"[^"]*"`)
)

// NormalizeMessage reduces a failure message to its pattern: hex addresses,
// numbers and quoted literals are masked.
func NormalizeMessage(msg string) string {
	msg = hexAddrRegex.ReplaceAllString(msg, "<addr>")
	msg = quotedRegex.ReplaceAllString(msg, "<str>")
	msg = numberRegex.ReplaceAllString(msg, "<n>")
	return msg
}

// SignatureFor derives the grouping signature of one failure.
func SignatureFor(f schemas.Failure) schemas.Signature {
	return schemas.Signature{
		ErrorKind:      f.ErrorKind,
		MessagePattern: NormalizeMessage(f.Message),
		LocationHint:   f.File + ":" + strconv.Itoa(f.Line),
	}
}

// Group clusters failing and errored records by exact signature equality.
// Passed and skipped records are not grouped. Group order follows the first
// occurrence of each signature in extraction order, and the representative of
// each group is its first-occurring member, so grouping is deterministic
// across repeated runs on the same input.
func (a *Analyzer) Group(failures []schemas.Failure) ([]schemas.FailureGroup, error) {
	index := make(map[schemas.Signature]int)
	var groups []schemas.FailureGroup

	for _, f := range failures {
		if !f.Outcome.IsFailure() {
			continue
		}
		sig := SignatureFor(f)
		if i, ok := index[sig]; ok {
			groups[i].Members = append(groups[i].Members, f)
			continue
		}
		index[sig] = len(groups)
		groups = append(groups, schemas.FailureGroup{
			Signature: sig,
			Members:   []schemas.Failure{f},
		})
	}

	a.logger.Info("Clustered failures into groups",
		zap.Int("failures", len(failures)),
		zap.Int("groups", len(groups)))
	return groups, nil
}
