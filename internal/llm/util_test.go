package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"json code block", "```json\n{\"key\": \"value\"}\n```", `{"key": "value"}`},
		{"generic code block", "```\n{\"key\": \"value\"}\n```", `{"key": "value"}`},
		{"plain JSON", `{"key": "value"}`, `{"key": "value"}`},
		{"preamble", "Here is the JSON:\n{\"jobs\": []}", `{"jobs": []}`},
		{"trailing text", "{\"key\": \"value\"}\n\nLet me know!", `{"key": "value"}`},
		{"braces inside strings", `Result: {"md": "use {braces} and \"quotes\""}`, `{"md": "use {braces} and \"quotes\""}`},
		{"nested", "Output: {\"a\": {\"b\": 1}}", `{"a": {"b": 1}}`},
		{"no object", "not json", "not json"},
		{"unterminated", `{"key": `, `{"key":`},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJSONBlock(tt.input))
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSONObject(`{"a":1} tail`))
	assert.Equal(t, `{"t":"}"}`, extractJSONObject(`{"t":"}"}`))
	assert.Equal(t, "", extractJSONObject(`[1,2]`))
	assert.Equal(t, "", extractJSONObject(`{"open":`))
}
