// internal/suggest/parser_test.go
package suggest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type parsePayload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestParseJSONResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response string
		want     parsePayload
		wantErr  bool
	}{
		{
			name:     "bare object",
			response: `{"name": "x", "count": 2}`,
			want:     parsePayload{Name: "x", Count: 2},
		},
		{
			name:     "markdown fenced",
			response: "```json\n{\"name\": \"x\", \"count\": 2}\n```",
			want:     parsePayload{Name: "x", Count: 2},
		},
		{
			name:     "fenced without language tag",
			response: "```\n{\"name\": \"y\", \"count\": 1}\n```",
			want:     parsePayload{Name: "y", Count: 1},
		},
		{
			name:     "conversational wrapper",
			response: `Sure, here is the result: {"name": "z", "count": 3} Hope that helps!`,
			want:     parsePayload{Name: "z", Count: 3},
		},
		{
			name:     "not json at all",
			response: "I could not produce a result.",
			wantErr:  true,
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseJSONResponse[parsePayload](tc.response)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, *got)
		})
	}
}

func TestParseJSONResponseArray(t *testing.T) {
	t.Parallel()

	response := "```json\n[{\"name\": \"a\", \"count\": 1}, {\"name\": \"b\", \"count\": 2}]\n```"
	got, err := ParseJSONResponse[[]parsePayload](response)
	require.NoError(t, err)
	require.Len(t, *got, 2)
	assert.Equal(t, "b", (*got)[1].Name)
}

func TestCleanCodeOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain code", "x = 1", "x = 1"},
		{"fenced code", "```python\nx = 1\n```", "x = 1"},
		{"fenced diff keeps trailing newline", "```diff\n--- a/f.py\n+++ b/f.py\n@@ -1 +1 @@\n-x = 1\n+x = 2\n```", "--- a/f.py\n+++ b/f.py\n@@ -1 +1 @@\n-x = 1\n+x = 2\n"},
		{"surrounding whitespace", "  x = 1  ", "x = 1"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, CleanCodeOutput(tc.in))
		})
	}
}

func TestTruncateMiddle(t *testing.T) {
	t.Parallel()

	short := "abcdef"
	assert.Equal(t, short, TruncateMiddle(short, 100))
	assert.Equal(t, short, TruncateMiddle(short, len(short)))

	long := ""
	for i := 0; i < 100; i++ {
		long += "0123456789"
	}
	out := TruncateMiddle(long, 200)
	assert.LessOrEqual(t, len(out), 200)
	assert.Contains(t, out, "[truncated]")
	// Head and tail survive.
	assert.Equal(t, long[:10], out[:10])
	assert.Equal(t, long[len(long)-10:], out[len(out)-10:])
}
