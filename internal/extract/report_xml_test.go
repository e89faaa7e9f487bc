// internal/extract/report_xml_test.go
package extract

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/korhaliv/mend-cli/api/schemas"
)

const sampleJUnitReport = `<?xml version="1.0" encoding="utf-8"?>
<testsuites>
  <testsuite name="pytest" tests="4" failures="1" errors="1" skipped="1">
    <testcase classname="tests.test_math" name="test_add" file="tests/test_math.py" line="14">
      <failure type="AssertionError" message="assert 3 == 4">Traceback line one
Traceback line two</failure>
    </testcase>
    <testcase classname="tests.test_math" name="test_sub" file="tests/test_math.py" line="20"/>
    <testcase classname="tests.test_io" name="test_load" file="tests/test_io.py" line="7">
      <error message="FileNotFoundError: fixture.csv not found"/>
    </testcase>
    <testcase classname="tests.test_io" name="test_slow">
      <skipped message="requires network"/>
    </testcase>
    <testcase classname="" name=""/>
  </testsuite>
</testsuites>`

func TestJUnitExtract(t *testing.T) {
	t.Parallel()
	logger := zaptest.NewLogger(t)

	e := NewJUnitExtractor(strings.NewReader(sampleJUnitReport), "report.xml", nil, logger)
	failures, err := e.Extract(context.Background())
	require.NoError(t, err)

	// The nameless testcase is skipped.
	require.Len(t, failures, 4)

	failed := failures[0]
	assert.Equal(t, "tests.test_math::test_add", failed.TestID)
	assert.Equal(t, "tests/test_math.py", failed.File)
	assert.Equal(t, 14, failed.Line)
	assert.Equal(t, schemas.OutcomeFailed, failed.Outcome)
	assert.Equal(t, "AssertionError", failed.ErrorKind)
	assert.Equal(t, "assert 3 == 4", failed.Message)
	assert.Contains(t, failed.Traceback, "Traceback line two")
	assert.Contains(t, failed.Raw, "<failure")

	assert.Equal(t, schemas.OutcomePassed, failures[1].Outcome)

	// An error element without a type attribute classifies from the message.
	errored := failures[2]
	assert.Equal(t, schemas.OutcomeError, errored.Outcome)
	assert.Equal(t, "FileNotFoundError", errored.ErrorKind)
	assert.Equal(t, "fixture.csv not found", errored.Message)

	assert.Equal(t, schemas.OutcomeSkipped, failures[3].Outcome)
}

func TestJUnitExtractNotXML(t *testing.T) {
	t.Parallel()
	logger := zaptest.NewLogger(t)

	e := NewJUnitExtractor(strings.NewReader(`{"tests": []}`), "bad.xml", nil, logger)
	_, err := e.Extract(context.Background())
	require.Error(t, err)
	var xerr *schemas.ExtractionError
	assert.ErrorAs(t, err, &xerr)
}

func TestJUnitExtractNoSuites(t *testing.T) {
	t.Parallel()
	logger := zaptest.NewLogger(t)

	e := NewJUnitExtractor(strings.NewReader(`<?xml version="1.0"?><report></report>`), "odd.xml", nil, logger)
	_, err := e.Extract(context.Background())
	require.Error(t, err)
}
