// api/schemas/interfaces.go
package schemas

import (
	"context"
)

// Extractor normalizes raw test-run artifacts into Failure records. The
// concrete set of extractors is fixed: JSON report, JUnit-style XML report,
// and a live per-test event stream.
type Extractor interface {
	// Name returns a short identifier for the extractor variant.
	Name() string
	// Extract reads the extractor's source and returns one normalized record
	// per test outcome, in input order. A wholly unreadable source fails with
	// an ExtractionError; malformed individual records are skipped and logged.
	Extract(ctx context.Context) ([]Failure, error)
}

// Suggester produces fix suggestions for one failure group, working from the
// group's deterministic representative.
type Suggester interface {
	// Name returns a short identifier for the suggester variant.
	Name() string
	// Suggest returns zero or more suggestions for the group. A suggester
	// failing for one group must not fail the run.
	Suggest(ctx context.Context, group FailureGroup) ([]FixSuggestion, error)
}

// Prompt is the single wire contract the core depends on: one request with
// prompt text, a token ceiling and a model identifier, yielding one response
// text.
type Prompt struct {
	System    string `json:"system,omitempty"`
	User      string `json:"user"`
	MaxTokens int    `json:"max_tokens,omitempty"`
	Model     string `json:"model,omitempty"`
}

// LLMClient abstracts a single LLM provider behind the send-prompt-get-text
// contract. Provider adapters are a closed, explicitly configured set;
// failures are normalized into the LLMServiceError taxonomy.
type LLMClient interface {
	// Generate produces a text completion for the prompt.
	Generate(ctx context.Context, prompt Prompt) (string, error)
	// Close releases any resources held by the client.
	Close() error
}

// PathResolver maps artifact-reported paths onto safe, project-root-relative
// paths before they are stored. Extractors never perform this resolution
// themselves.
type PathResolver interface {
	// Resolve returns the project-relative form of path, or an error if the
	// path escapes the project root or cannot be mapped.
	Resolve(path string) (string, error)
	// Abs returns the absolute on-disk location of a project-relative path.
	Abs(relPath string) string
}

// TestRunner re-executes a single originating test to verify an applied fix.
type TestRunner interface {
	RunTest(ctx context.Context, testID string) (VerificationResult, error)
}

// BackupStore persists pre-mutation file contents so a fix application can
// always be rolled back. Entries are keyed by (run ID, suggestion
// fingerprint, file path).
type BackupStore interface {
	// Backup stores the current content of the file at absPath.
	Backup(runID, fingerprint, absPath string) (BackupRef, error)
	// Restore writes the backed-up content back to its original location.
	Restore(ref BackupRef) error
	// Cleanup removes all backup entries for the run once its applied-fix set
	// is finalized.
	Cleanup(runID string) error
}
