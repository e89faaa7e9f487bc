// api/schemas/schemas.go
package schemas

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Outcome is the normalized result of a single test execution.
type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeError   Outcome = "error"
	OutcomeSkipped Outcome = "skipped"
)

// IsFailure reports whether the outcome represents a failed or errored test.
func (o Outcome) IsFailure() bool {
	return o == OutcomeFailed || o == OutcomeError
}

// Failure is one normalized test-outcome record extracted from a run
// artifact. Records are emitted for every outcome, not only failures, so
// downstream consumers get full visibility into the run. Immutable once
// produced by an extractor.
type Failure struct {
	TestID      string  `json:"test_id"`
	File        string  `json:"file"` // Relative to the project root, pre-resolved.
	Line        int     `json:"line"`
	ErrorKind   string  `json:"error_kind,omitempty"`
	Message     string  `json:"message,omitempty"`
	Traceback   string  `json:"traceback,omitempty"`
	CodeContext string  `json:"code_context,omitempty"`
	Outcome     Outcome `json:"outcome"`
	Raw         string  `json:"raw,omitempty"` // The raw source record, verbatim.
}

// Key identifies a record for deduplication purposes (same file, test and
// line reported twice keeps the first occurrence).
func (f Failure) Key() string {
	return f.File + "\x00" + f.TestID + "\x00" + strconv.Itoa(f.Line)
}

// Signature is the root-cause key a FailureGroup clusters on.
type Signature struct {
	ErrorKind      string `json:"error_kind"`
	MessagePattern string `json:"message_pattern"`
	LocationHint   string `json:"location_hint"`
}

// FailureGroup is a cluster of failures sharing a root-cause signature.
// Created by the analyzer and read-only afterward.
type FailureGroup struct {
	Signature Signature `json:"signature"`
	Members   []Failure `json:"members"`
}

// Representative returns the deterministic representative of the group: the
// first-occurring member in extraction order.
func (g FailureGroup) Representative() Failure {
	return g.Members[0]
}

// Provenance records which engine produced a suggestion.
type Provenance string

const (
	ProvenanceRule Provenance = "rule"
	ProvenanceAI   Provenance = "ai"
)

// ChangeKind distinguishes the two supported fix payload formats.
type ChangeKind string

const (
	// ChangeFullContent replaces the entire file content.
	ChangeFullContent ChangeKind = "full"
	// ChangeUnifiedDiff applies a unified-diff hunk set to the file.
	ChangeUnifiedDiff ChangeKind = "diff"
)

// FileChange is the per-file payload of a fix suggestion, keyed by a path
// resolved relative to the project root.
type FileChange struct {
	Kind    ChangeKind `json:"kind"`
	Content string     `json:"content"`
}

// FixSuggestion is a proposed code change with a confidence score and
// provenance. Fingerprint is a deterministic hash over the normalized
// suggestion text and change payload, independent of provenance.
type FixSuggestion struct {
	TestID      string                `json:"test_id"` // The owning failure.
	Suggestion  string                `json:"suggestion"`
	Explanation string                `json:"explanation,omitempty"`
	Changes     map[string]FileChange `json:"changes,omitempty"`
	Confidence  float64               `json:"confidence"` // Always within [0, 1].
	Provenance  Provenance            `json:"provenance"`
	Fingerprint string                `json:"fingerprint"`
}

// BackupRef identifies one backup entry, keyed by run, suggestion fingerprint
// and file path. Entries are retained until the run's applied-fix set is
// finalized.
type BackupRef struct {
	RunID       string `json:"run_id"`
	Fingerprint string `json:"fingerprint"`
	Path        string `json:"path"`
	BackupPath  string `json:"backup_path"`
}

// VerificationResult records the outcome of re-running the originating test
// after a fix was applied.
type VerificationResult struct {
	TestID   string        `json:"test_id"`
	Passed   bool          `json:"passed"`
	Output   string        `json:"output,omitempty"`
	Duration time.Duration `json:"duration"`
}

// AppliedFix is the recorded, reversible effect of materializing a suggestion
// onto the filesystem. It is only created after a successful backup of every
// touched file, and is never partially applied: either all touched files
// changed or none did.
type AppliedFix struct {
	Suggestion   FixSuggestion       `json:"suggestion"`
	Files        []string            `json:"files"`
	Backups      []BackupRef         `json:"backups"`
	Success      bool                `json:"success"`
	Verification *VerificationResult `json:"verification,omitempty"`
}

// TestEvent is one live per-test outcome event delivered by an embedded
// test-runner hook, used when no report file is ever produced.
type TestEvent struct {
	TestID    string        `json:"test_id"`
	File      string        `json:"file"`
	Line      int           `json:"line"`
	Outcome   Outcome       `json:"outcome"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Message   string        `json:"message,omitempty"`
	Traceback string        `json:"traceback,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// RunError ties a recorded error to the pipeline phase that produced it.
type RunError struct {
	Phase string `json:"phase"`
	Err   error  `json:"-"`
	Msg   string `json:"error"`
}

// RunResult is the structured, best-effort output of one analyzer run. It
// always contains whatever failures and suggestions were produced before any
// fatal condition, plus the list of encountered errors.
type RunResult struct {
	RunID       string          `json:"run_id"`
	State       string          `json:"state"`
	Failures    []Failure       `json:"failures"`
	Groups      []FailureGroup  `json:"groups"`
	Suggestions []FixSuggestion `json:"suggestions"`
	Applied     []AppliedFix    `json:"applied,omitempty"`
	Errors      []RunError      `json:"errors,omitempty"`
}

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// normalizeForFingerprint collapses whitespace and case so that trivially
// reformatted suggestions still collide.
func normalizeForFingerprint(s string) string {
	return whitespaceRegex.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

// ComputeFingerprint derives the deduplication fingerprint for a suggestion:
// a SHA-256 over the normalized suggestion text plus the normalized change
// payload in path order. Two suggestions with identical normalized text and
// changes always produce the same fingerprint regardless of provenance.
func ComputeFingerprint(text string, changes map[string]FileChange) string {
	h := sha256.New()
	h.Write([]byte(normalizeForFingerprint(text)))

	paths := make([]string, 0, len(changes))
	for p := range changes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		c := changes[p]
		h.Write([]byte{0})
		h.Write([]byte(p))
		h.Write([]byte{0})
		h.Write([]byte(c.Kind))
		h.Write([]byte{0})
		h.Write([]byte(normalizeForFingerprint(c.Content)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

