// api/schemas/errors.go
package schemas

import (
	"errors"
	"fmt"
)

// ExtractionError reports a wholly unreadable artifact source. Malformed
// individual records are not extraction errors; those are skipped and logged.
type ExtractionError struct {
	Source string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %v", e.Source, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// AnalysisError reports a failure while clustering failures into groups.
type AnalysisError struct {
	Err error
}

func (e *AnalysisError) Error() string { return fmt.Sprintf("analysis failed: %v", e.Err) }
func (e *AnalysisError) Unwrap() error { return e.Err }

// LLMErrorKind classifies provider failures into the single taxonomy the core
// depends on.
type LLMErrorKind string

const (
	LLMTimeout           LLMErrorKind = "timeout"
	LLMTransport         LLMErrorKind = "transport"
	LLMMalformedResponse LLMErrorKind = "malformed_response"
	LLMCircuitOpen       LLMErrorKind = "circuit_open"
)

// LLMServiceError wraps any provider-specific failure. Only Transport
// failures are ever retried.
type LLMServiceError struct {
	Kind LLMErrorKind
	Err  error
}

func (e *LLMServiceError) Error() string {
	return fmt.Sprintf("llm service error (%s): %v", e.Kind, e.Err)
}

func (e *LLMServiceError) Unwrap() error { return e.Err }

// NewLLMError builds a typed service error.
func NewLLMError(kind LLMErrorKind, err error) *LLMServiceError {
	return &LLMServiceError{Kind: kind, Err: err}
}

// IsLLMError reports whether err is (or wraps) an LLMServiceError of the
// given kind.
func IsLLMError(err error, kind LLMErrorKind) bool {
	var le *LLMServiceError
	return errors.As(err, &le) && le.Kind == kind
}

// FixErrorKind classifies fix-application failures.
type FixErrorKind string

const (
	FixBackupFailed       FixErrorKind = "backup_failed"
	FixPartialApply       FixErrorKind = "partial_apply"
	FixVerificationFailed FixErrorKind = "verification_failed"
)

// FixApplicationError reports a failed fix application. The applier always
// rolls the suggestion back before returning one of these.
type FixApplicationError struct {
	Kind FixErrorKind
	Path string
	Err  error
}

func (e *FixApplicationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("fix application error (%s) on %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("fix application error (%s): %v", e.Kind, e.Err)
}

func (e *FixApplicationError) Unwrap() error { return e.Err }

// IsFixError reports whether err is (or wraps) a FixApplicationError of the
// given kind.
func IsFixError(err error, kind FixErrorKind) bool {
	var fe *FixApplicationError
	return errors.As(err, &fe) && fe.Kind == kind
}

// ResourceLimitKind classifies resource-exhaustion conditions.
type ResourceLimitKind string

const (
	ResourceTimeout        ResourceLimitKind = "timeout"
	ResourceMemoryExceeded ResourceLimitKind = "memory_exceeded"
)

// ResourceLimitError is always fatal to the run, though the result still
// contains everything produced before the limit was hit.
type ResourceLimitError struct {
	Kind  ResourceLimitKind
	Phase string
	Err   error
}

func (e *ResourceLimitError) Error() string {
	return fmt.Sprintf("resource limit exceeded (%s) in phase %s: %v", e.Kind, e.Phase, e.Err)
}

func (e *ResourceLimitError) Unwrap() error { return e.Err }

// IsResourceLimit reports whether err is (or wraps) a ResourceLimitError.
func IsResourceLimit(err error) bool {
	var re *ResourceLimitError
	return errors.As(err, &re)
}
