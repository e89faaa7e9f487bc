// internal/extract/report_xml.go
package extract

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/korhaliv/mend-cli/api/schemas"
)

// JUnitExtractor normalizes a JUnit-style XML report
// (testsuite/testcase/failure elements) into Failure records.
type JUnitExtractor struct {
	source   io.Reader
	name     string
	resolver schemas.PathResolver
	logger   *zap.Logger
}

// NewJUnitExtractor builds an extractor over an already-open XML report.
func NewJUnitExtractor(source io.Reader, name string, resolver schemas.PathResolver, logger *zap.Logger) *JUnitExtractor {
	return &JUnitExtractor{
		source:   source,
		name:     name,
		resolver: resolver,
		logger:   logger.Named("extract-junit"),
	}
}

// Name implements schemas.Extractor.
func (e *JUnitExtractor) Name() string { return "junit-xml" }

// Extract walks every testcase element in document order. A testcase with no
// failure/error/skipped child is a passed record; those are emitted too.
func (e *JUnitExtractor) Extract(ctx context.Context) ([]schemas.Failure, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(e.source); err != nil {
		return nil, &schemas.ExtractionError{Source: e.name, Err: fmt.Errorf("failed to parse XML: %w", err)}
	}

	cases := doc.FindElements("//testcase")
	if len(cases) == 0 && doc.FindElement("//testsuite") == nil {
		return nil, &schemas.ExtractionError{Source: e.name, Err: fmt.Errorf("document contains no testsuite elements")}
	}

	failures := make([]schemas.Failure, 0, len(cases))
	for _, tc := range cases {
		if err := ctx.Err(); err != nil {
			return failures, err
		}

		name := tc.SelectAttrValue("name", "")
		classname := tc.SelectAttrValue("classname", "")
		if name == "" {
			e.logger.Warn("Skipping testcase without a name attribute")
			continue
		}

		testID := name
		if classname != "" {
			testID = classname + "::" + name
		}

		line := 0
		if v := tc.SelectAttrValue("line", ""); v != "" {
			line, _ = strconv.Atoi(v)
		}

		f := schemas.Failure{
			TestID:  testID,
			File:    resolvePath(e.resolver, tc.SelectAttrValue("file", ""), e.logger),
			Line:    line,
			Outcome: schemas.OutcomePassed,
		}

		serialized, _ := elementString(tc)
		f.Raw = serialized

		switch {
		case tc.SelectElement("failure") != nil:
			fillFromResult(&f, tc.SelectElement("failure"), schemas.OutcomeFailed)
		case tc.SelectElement("error") != nil:
			fillFromResult(&f, tc.SelectElement("error"), schemas.OutcomeError)
		case tc.SelectElement("skipped") != nil:
			fillFromResult(&f, tc.SelectElement("skipped"), schemas.OutcomeSkipped)
		}

		failures = append(failures, f)
	}

	failures = dedupe(failures, e.logger)
	enrichCodeContext(failures, e.resolver, e.logger)
	return failures, nil
}

// fillFromResult copies failure/error/skipped element details onto the record.
func fillFromResult(f *schemas.Failure, el *etree.Element, outcome schemas.Outcome) {
	f.Outcome = outcome
	f.ErrorKind = el.SelectAttrValue("type", "")
	f.Message = el.SelectAttrValue("message", "")
	f.Traceback = el.Text()
	if f.ErrorKind == "" && f.Message != "" {
		f.ErrorKind, f.Message = classifyMessage(f.Message)
	}
}

func elementString(el *etree.Element) (string, error) {
	doc := etree.NewDocument()
	doc.SetRoot(el.Copy())
	return doc.WriteToString()
}
