// internal/suggest/rules.go
package suggest

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/korhaliv/mend-cli/api/schemas"
)

// rule maps an error kind to a suggestion template and a baseline
// confidence. Mechanical fix patterns (imports, names) start high; assertion
// mismatches need human judgment and start lower.
type rule struct {
	template   string
	confidence float64
}

var ruleTable = map[string]rule{
	"AssertionError": {
		template:   "Review the assertion in %s: the expected and actual values diverge. Check whether the test expectation or the implementation is stale.",
		confidence: 0.45,
	},
	"ImportError": {
		template:   "An import failed in %s. Verify the module is installed and the import path matches the package layout.",
		confidence: 0.8,
	},
	"ModuleNotFoundError": {
		template:   "A module could not be found in %s. Add the missing dependency or correct the import path.",
		confidence: 0.8,
	},
	"NameError": {
		template:   "An undefined name is referenced in %s. Check for a typo or a missing definition/import.",
		confidence: 0.75,
	},
	"AttributeError": {
		template:   "An attribute access failed in %s. The object likely has a different type than expected; check for None or a renamed member.",
		confidence: 0.55,
	},
	"TypeError": {
		template:   "A type mismatch occurred in %s. Check argument counts and types at the failing call site.",
		confidence: 0.5,
	},
	"KeyError": {
		template:   "A dictionary key is missing in %s. Guard the lookup or ensure the key is populated before access.",
		confidence: 0.55,
	},
	"IndexError": {
		template:   "An index is out of range in %s. Check the collection length before indexing.",
		confidence: 0.55,
	},
	"FileNotFoundError": {
		template:   "A file path referenced in %s does not exist. Check the working directory and fixture paths.",
		confidence: 0.65,
	},
	"TimeoutError": {
		template:   "The operation in %s timed out. Check for slow external calls or raise the timeout in the test setup.",
		confidence: 0.4,
	},
}

const genericTemplate = "Inspect the failure in %s: %s"
const genericConfidence = 0.3

// evidenceRegex detects explicit expected/actual values in the message, which
// makes a suggestion materially more actionable.
var evidenceRegex = regexp.MustCompile(`(?i)\bexpected\b.*\b(?:got|actual|but was)\b|!=|==`)

// RuleBasedSuggester is the deterministic, offline heuristic suggestion
// generator. It is pure: no external calls, same input always yields the same
// output, and it never fails a group.
type RuleBasedSuggester struct {
	logger *zap.Logger
}

// NewRuleBasedSuggester builds the suggester.
func NewRuleBasedSuggester(logger *zap.Logger) *RuleBasedSuggester {
	return &RuleBasedSuggester{logger: logger.Named("rule-suggester")}
}

// Name implements schemas.Suggester.
func (s *RuleBasedSuggester) Name() string { return "rule" }

// Suggest generates one suggestion for the group's representative failure.
// Confidence is adjusted upward when strong textual evidence is present and
// degraded, never zeroed, when code context is missing.
func (s *RuleBasedSuggester) Suggest(_ context.Context, group schemas.FailureGroup) ([]schemas.FixSuggestion, error) {
	rep := group.Representative()

	location := rep.File
	if location == "" {
		location = rep.TestID
	}

	var text string
	var confidence float64
	if r, ok := ruleTable[rep.ErrorKind]; ok {
		text = fmt.Sprintf(r.template, location)
		confidence = r.confidence
	} else {
		msg := rep.Message
		if msg == "" {
			msg = "no failure message captured"
		}
		text = fmt.Sprintf(genericTemplate, location, msg)
		confidence = genericConfidence
	}

	if evidenceRegex.MatchString(rep.Message) {
		confidence += 0.15
	}
	if strings.TrimSpace(rep.CodeContext) == "" {
		confidence *= 0.8
	}
	confidence = clampConfidence(confidence)

	suggestion := schemas.FixSuggestion{
		TestID:     rep.TestID,
		Suggestion: text,
		Confidence: confidence,
		Provenance: schemas.ProvenanceRule,
	}
	suggestion.Fingerprint = schemas.ComputeFingerprint(suggestion.Suggestion, suggestion.Changes)

	return []schemas.FixSuggestion{suggestion}, nil
}

// clampConfidence keeps confidence inside [0, 1].
func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
