// internal/extract/report_json.go
package extract

import (
	"context"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/korhaliv/mend-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonReport mirrors the structured JSON report schema: one record per test
// with identifier, outcome, long representation of the failure and timing.
type jsonReport struct {
	Tests []jsonTestRecord `json:"tests"`
}

type jsonTestRecord struct {
	TestID   string  `json:"test_id"`
	File     string  `json:"file"`
	Line     int     `json:"line"`
	Outcome  string  `json:"outcome"`
	Duration float64 `json:"duration"`
	LongRepr string  `json:"longrepr"`
	Error    *struct {
		Kind      string `json:"kind"`
		Message   string `json:"message"`
		Traceback string `json:"traceback"`
	} `json:"error"`
	Context string `json:"code_context"`
}

// JSONReportExtractor normalizes a structured JSON test report into Failure
// records.
type JSONReportExtractor struct {
	source   io.Reader
	name     string
	resolver schemas.PathResolver
	logger   *zap.Logger
}

// NewJSONReportExtractor builds an extractor over an already-open report
// source. The name is used in error reporting only.
func NewJSONReportExtractor(source io.Reader, name string, resolver schemas.PathResolver, logger *zap.Logger) *JSONReportExtractor {
	return &JSONReportExtractor{
		source:   source,
		name:     name,
		resolver: resolver,
		logger:   logger.Named("extract-json"),
	}
}

// Name implements schemas.Extractor.
func (e *JSONReportExtractor) Name() string { return "json-report" }

// Extract emits one record per test outcome, in input order, including
// passed and skipped outcomes. Malformed individual records are skipped and
// logged; an unreadable source fails with a schemas.ExtractionError.
func (e *JSONReportExtractor) Extract(ctx context.Context) ([]schemas.Failure, error) {
	data, err := io.ReadAll(e.source)
	if err != nil {
		return nil, &schemas.ExtractionError{Source: e.name, Err: fmt.Errorf("failed to read report: %w", err)}
	}

	var report jsonReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, &schemas.ExtractionError{Source: e.name, Err: fmt.Errorf("failed to decode report: %w", err)}
	}
	if report.Tests == nil {
		return nil, &schemas.ExtractionError{Source: e.name, Err: fmt.Errorf("report has no 'tests' array")}
	}

	failures := make([]schemas.Failure, 0, len(report.Tests))
	for i, rec := range report.Tests {
		if err := ctx.Err(); err != nil {
			return failures, err
		}

		outcome, ok := parseOutcome(rec.Outcome)
		if !ok || rec.TestID == "" {
			e.logger.Warn("Skipping malformed test record",
				zap.Int("index", i),
				zap.String("test_id", rec.TestID),
				zap.String("outcome", rec.Outcome))
			continue
		}

		f := schemas.Failure{
			TestID:      rec.TestID,
			File:        resolvePath(e.resolver, rec.File, e.logger),
			Line:        rec.Line,
			Outcome:     outcome,
			CodeContext: rec.Context,
		}
		raw, _ := json.MarshalToString(rec)
		f.Raw = raw

		if rec.Error != nil {
			f.ErrorKind = rec.Error.Kind
			f.Message = rec.Error.Message
			f.Traceback = rec.Error.Traceback
		}
		if f.ErrorKind == "" && rec.LongRepr != "" {
			f.ErrorKind, f.Message = classifyMessage(rec.LongRepr)
			if f.Traceback == "" {
				f.Traceback = rec.LongRepr
			}
		}

		failures = append(failures, f)
	}

	failures = dedupe(failures, e.logger)
	enrichCodeContext(failures, e.resolver, e.logger)
	return failures, nil
}
