package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_ValidPrompt(t *testing.T) {
	clearCache()

	prompt, err := Get("ranking.json", "user")
	require.NoError(t, err)
	assert.Contains(t, prompt, "{{.ProfileContext}}")
	assert.Contains(t, prompt, "skill_match*0.30")
}

func TestGet_InvalidFile(t *testing.T) {
	clearCache()

	_, err := Get("nonexistent.json", "some-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read prompt file")
}

func TestGet_InvalidKey(t *testing.T) {
	clearCache()

	_, err := Get("enrichment.json", "nonexistent-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestPromptFiles_HaveAllKeys(t *testing.T) {
	clearCache()

	for _, file := range []string{"enrichment.json", "ranking.json"} {
		for _, key := range []string{"system", "user", "job"} {
			prompt, err := Get(file, key)
			require.NoError(t, err, file+" "+key)
			assert.NotEmpty(t, prompt, file+" "+key)
		}
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		template string
		data     map[string]string
		want     string
	}{
		{
			name:     "replaces keys",
			template: "Hello {{.Name}}, welcome to {{.Company}}!",
			data:     map[string]string{"Name": "Alice", "Company": "Acme Corp"},
			want:     "Hello Alice, welcome to Acme Corp!",
		},
		{
			name:     "no placeholders",
			template: "No placeholders here",
			data:     map[string]string{"Key": "Value"},
			want:     "No placeholders here",
		},
		{
			name:     "missing key stays",
			template: "Hello {{.Name}}",
			data:     map[string]string{},
			want:     "Hello {{.Name}}",
		},
		{
			name:     "placeholder inside value is not expanded",
			template: "{{.Jobs}} / {{.Count}}",
			data:     map[string]string{"Jobs": "uses {{.Count}} literally", "Count": "3"},
			want:     "uses {{.Count}} literally / 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.template, tt.data))
		})
	}
}

func TestCaching(t *testing.T) {
	clearCache()

	prompt1, err := Get("enrichment.json", "user")
	require.NoError(t, err)

	prompt2, err := Get("enrichment.json", "user")
	require.NoError(t, err)

	assert.Equal(t, prompt1, prompt2)
}
