package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{
			name: "bare object",
			in:   `{"a": 1}`,
			want: `{"a": 1}`,
			ok:   true,
		},
		{
			name: "surrounded by prose",
			in:   "Here is the plan:\n{\"a\": 1}\nLet me know if you need more.",
			want: `{"a": 1}`,
			ok:   true,
		},
		{
			name: "fenced json",
			in:   "```json\n{\"a\": 1}\n```",
			want: `{"a": 1}`,
			ok:   true,
		},
		{
			name: "bare fence",
			in:   "```\n{\"a\": 1}\n```",
			want: `{"a": 1}`,
			ok:   true,
		},
		{
			name: "no braces",
			in:   "I could not produce JSON for that.",
			ok:   false,
		},
		{
			name: "invalid json between braces",
			in:   "{this is not json}",
			ok:   false,
		},
		{
			name: "empty",
			in:   "",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSONObject(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestExtractJSONArray(t *testing.T) {
	got, ok := ExtractJSONArray("the phases are: [1, 2, 3] as requested")
	require.True(t, ok)
	assert.Equal(t, "[1, 2, 3]", got)

	_, ok = ExtractJSONArray("no array here")
	assert.False(t, ok)
}

func TestDecodeObject(t *testing.T) {
	var out struct {
		MainGoal string `json:"main_goal"`
	}
	err := DecodeObject("```json\n{\"main_goal\": \"renewable energy\"}\n```", &out)
	require.NoError(t, err)
	assert.Equal(t, "renewable energy", out.MainGoal)

	err = DecodeObject("nothing structured", &out)
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 100, EstimateTokens(string(make([]byte, 300))))
}
