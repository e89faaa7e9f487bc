// internal/suggest/llm.go
package suggest

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/korhaliv/mend-cli/api/schemas"
)

// LLMSuggester builds a prompt from a group's representative failure, sends
// it through the resilient LLM service and parses the response into zero or
// more suggestions. An unparseable response yields zero suggestions rather
// than failing the run.
type LLMSuggester struct {
	service    schemas.LLMClient
	logger     *zap.Logger
	maxContext int
}

// NewLLMSuggester wires the suggester to an LLM client (usually the
// llmservice wrapper). maxContext bounds the characters of traceback and code
// context included in a prompt.
func NewLLMSuggester(service schemas.LLMClient, maxContext int, logger *zap.Logger) *LLMSuggester {
	if maxContext <= 0 {
		maxContext = 4000
	}
	return &LLMSuggester{
		service:    service,
		logger:     logger.Named("llm-suggester"),
		maxContext: maxContext,
	}
}

// Name implements schemas.Suggester.
func (s *LLMSuggester) Name() string { return "ai" }

// llmSuggestion is the strict response schema requested from the model.
type llmSuggestion struct {
	Suggestion  string  `json:"suggestion"`
	Explanation string  `json:"explanation"`
	Confidence  float64 `json:"confidence"`
	Changes     map[string]struct {
		Kind    string `json:"kind"`
		Content string `json:"content"`
	} `json:"changes"`
}

// Suggest implements schemas.Suggester.
func (s *LLMSuggester) Suggest(ctx context.Context, group schemas.FailureGroup) ([]schemas.FixSuggestion, error) {
	rep := group.Representative()

	prompt := schemas.Prompt{
		System: s.systemPrompt(),
		User:   s.userPrompt(rep, len(group.Members)),
	}

	response, err := s.service.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("LLM generation failed for %s: %w", rep.TestID, err)
	}

	parsed, err := ParseJSONResponse[[]llmSuggestion](response)
	if err != nil {
		s.logger.Warn("Unparseable LLM response, producing no suggestions",
			zap.String("test_id", rep.TestID), zap.Error(err))
		return nil, nil
	}

	suggestions := make([]schemas.FixSuggestion, 0, len(*parsed))
	for _, raw := range *parsed {
		if strings.TrimSpace(raw.Suggestion) == "" {
			continue
		}

		changes := make(map[string]schemas.FileChange, len(raw.Changes))
		for path, ch := range raw.Changes {
			kind := schemas.ChangeKind(ch.Kind)
			if kind != schemas.ChangeFullContent && kind != schemas.ChangeUnifiedDiff {
				// Guess from shape when the model omits or invents the kind.
				if strings.Contains(ch.Content, "--- a/") && strings.Contains(ch.Content, "+++ b/") {
					kind = schemas.ChangeUnifiedDiff
				} else {
					kind = schemas.ChangeFullContent
				}
			}
			changes[path] = schemas.FileChange{Kind: kind, Content: CleanCodeOutput(ch.Content)}
		}

		out := schemas.FixSuggestion{
			TestID:      rep.TestID,
			Suggestion:  strings.TrimSpace(raw.Suggestion),
			Explanation: strings.TrimSpace(raw.Explanation),
			Changes:     changes,
			Confidence:  clampConfidence(raw.Confidence),
			Provenance:  schemas.ProvenanceAI,
		}
		out.Fingerprint = schemas.ComputeFingerprint(out.Suggestion, out.Changes)
		suggestions = append(suggestions, out)
	}

	s.logger.Debug("Parsed AI suggestions",
		zap.String("test_id", rep.TestID),
		zap.Int("count", len(suggestions)))
	return suggestions, nil
}

func (s *LLMSuggester) systemPrompt() string {
	return `You are an expert developer analyzing failing tests. Given one failure (error kind, message, traceback, code context), propose precise, minimal fixes.
Respond with a strict JSON array. Each element:
{
  "suggestion": "One-sentence description of the fix.",
  "explanation": "Short explanation of the root cause.",
  "confidence": 0.0-1.0,
  "changes": {"relative/path.py": {"kind": "full" or "diff", "content": "new file content or unified diff"}}
}
Use project-relative paths. Unified diffs must use a/ and b/ prefixes. Return [] if no fix can be proposed.`
}

func (s *LLMSuggester) userPrompt(rep schemas.Failure, memberCount int) string {
	traceback := TruncateMiddle(rep.Traceback, s.maxContext/2)
	context := TruncateMiddle(rep.CodeContext, s.maxContext/2)

	var b strings.Builder
	fmt.Fprintf(&b, "A test failed (%d test(s) share this root cause).\n\n", memberCount)
	fmt.Fprintf(&b, "**Test:** %s\n", rep.TestID)
	fmt.Fprintf(&b, "**Location:** %s:%d\n", rep.File, rep.Line)
	fmt.Fprintf(&b, "**Error kind:** %s\n", rep.ErrorKind)
	fmt.Fprintf(&b, "**Message:** %s\n", rep.Message)
	if traceback != "" {
		fmt.Fprintf(&b, "\n**Traceback:**\n```\n%s\n```\n", traceback)
	}
	if context != "" {
		fmt.Fprintf(&b, "\n**Code context:**\n```\n%s\n```\n", context)
	}
	return b.String()
}

const truncationMarker = "\n... [truncated] ...\n"

// TruncateMiddle deterministically bounds text to maxLen characters by
// retaining the head and tail and dropping the middle. The failing line is
// preserved because failure context places it at the tail end of tracebacks
// and the center marker of context windows stays intact within either half.
func TruncateMiddle(text string, maxLen int) string {
	if maxLen <= 0 || len(text) <= maxLen {
		return text
	}
	if maxLen <= len(truncationMarker)+2 {
		return text[:maxLen]
	}
	keep := maxLen - len(truncationMarker)
	head := keep / 2
	tail := keep - head
	return text[:head] + truncationMarker + text[len(text)-tail:]
}
