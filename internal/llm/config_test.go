package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWithDefaults_OpenAI(t *testing.T) {
	cfg := Config{APIKey: "sk"}.WithDefaults()

	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, DefaultOpenAIBaseURL, cfg.BaseURL)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, "gpt-4o-mini", cfg.CompletionModel)
	assert.Equal(t, 120*time.Second, cfg.Timeout)
}

func TestWithDefaults_Gemini(t *testing.T) {
	cfg := Config{Provider: "Gemini"}.WithDefaults()

	assert.Equal(t, ProviderGemini, cfg.Provider)
	assert.Equal(t, "text-embedding-004", cfg.EmbeddingModel)
	assert.Equal(t, "gemini-2.5-flash", cfg.CompletionModel)
}

func TestWithDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := Config{
		BaseURL:         "http://localhost:11434/v1/",
		EmbeddingModel:  "nomic-embed-text",
		CompletionModel: "llama3",
		Timeout:         time.Second,
		Temperature:     0.7,
	}.WithDefaults()

	assert.Equal(t, "http://localhost:11434/v1", cfg.BaseURL)
	assert.Equal(t, "nomic-embed-text", cfg.EmbeddingModel)
	assert.Equal(t, "llama3", cfg.CompletionModel)
	assert.Equal(t, time.Second, cfg.Timeout)
	assert.InDelta(t, 0.7, cfg.Temperature, 1e-6)
}
