// internal/applier/diff.go
package applier

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// applyUnifiedDiff applies a unified-diff payload to the original file
// content. Hunks must apply cleanly: any context or deletion mismatch is an
// error, because a misapplied hunk would silently corrupt the file.
func applyUnifiedDiff(original, patch string) (string, error) {
	fileDiff, err := diff.ParseFileDiff([]byte(patch))
	if err != nil {
		return "", fmt.Errorf("failed to parse unified diff: %w", err)
	}

	origLines := strings.Split(original, "\n")
	var out []string
	cursor := 0

	for i, hunk := range fileDiff.Hunks {
		start := int(hunk.OrigStartLine) - 1
		if start < 0 {
			start = 0
		}
		if start < cursor || start > len(origLines) {
			return "", fmt.Errorf("hunk %d starts at line %d, outside the applicable range", i+1, hunk.OrigStartLine)
		}

		out = append(out, origLines[cursor:start]...)
		cursor = start

		body := strings.TrimSuffix(string(hunk.Body), "\n")
		for _, line := range strings.Split(body, "\n") {
			var op byte = ' '
			text := line
			if len(line) > 0 {
				op = line[0]
				text = line[1:]
			}

			switch op {
			case ' ':
				if cursor >= len(origLines) || origLines[cursor] != text {
					return "", contextMismatch(i, cursor, text, origLines)
				}
				out = append(out, text)
				cursor++
			case '-':
				if cursor >= len(origLines) || origLines[cursor] != text {
					return "", contextMismatch(i, cursor, text, origLines)
				}
				cursor++
			case '+':
				out = append(out, text)
			case '\\':
				// "\ No newline at end of file" markers carry no content.
			default:
				return "", fmt.Errorf("hunk %d contains an invalid line prefix %q", i+1, op)
			}
		}
	}

	out = append(out, origLines[cursor:]...)
	return strings.Join(out, "\n"), nil
}

func contextMismatch(hunkIdx, cursor int, want string, origLines []string) error {
	got := "<eof>"
	if cursor < len(origLines) {
		got = origLines[cursor]
	}
	return fmt.Errorf("hunk %d does not apply at line %d: want %q, file has %q", hunkIdx+1, cursor+1, want, got)
}
