// internal/extract/detect.go
package extract

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/korhaliv/mend-cli/api/schemas"
)

// Format identifies a report artifact format.
type Format string

const (
	FormatJSON   Format = "json"
	FormatJUnit  Format = "junit"
	FormatEvents Format = "events"
)

// DetectFormat sniffs the artifact format from the file extension, falling
// back to the first non-whitespace byte of the content.
func DetectFormat(path string, r *bufio.Reader) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".xml":
		return FormatJUnit, nil
	case ".jsonl", ".ndjson":
		return FormatEvents, nil
	}

	peek, err := r.Peek(512)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to sniff report format: %w", err)
	}
	trimmed := bytes.TrimLeft(peek, " \t\r\n")
	switch {
	case len(trimmed) > 0 && trimmed[0] == '<':
		return FormatJUnit, nil
	case len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '['):
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unrecognized report format for %s", path)
}

// OpenFileExtractor opens a report file and returns the matching extractor
// variant. The caller owns the returned closer.
func OpenFileExtractor(path string, format Format, resolver schemas.PathResolver, logger *zap.Logger) (schemas.Extractor, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, &schemas.ExtractionError{Source: path, Err: err}
	}

	r := bufio.NewReader(f)
	if format == "" {
		format, err = DetectFormat(path, r)
		if err != nil {
			_ = f.Close()
			return nil, nil, &schemas.ExtractionError{Source: path, Err: err}
		}
	}

	switch format {
	case FormatJSON:
		return NewJSONReportExtractor(r, path, resolver, logger), f, nil
	case FormatJUnit:
		return NewJUnitExtractor(r, path, resolver, logger), f, nil
	default:
		_ = f.Close()
		return nil, nil, &schemas.ExtractionError{Source: path, Err: fmt.Errorf("unsupported report format %q", format)}
	}
}
