// Package llm provides the embedding and structured completion clients used by
// the pipeline, with OpenAI-compatible and Gemini providers behind one interface.
package llm

import (
	"strings"
	"time"
)

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderOpenAI is any endpoint speaking the OpenAI embeddings and chat completions wire format
	ProviderOpenAI Provider = "openai"
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
)

// MaxEmbeddingBatch is the largest number of texts sent in one embedding request.
const MaxEmbeddingBatch = 100

// DefaultOpenAIBaseURL is used when no base URL is configured.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// Config holds the provider selection and model names
type Config struct {
	Provider          Provider
	APIKey            string
	BaseURL           string
	EmbeddingModel    string
	CompletionModel   string
	RequestsPerSecond float64
	Timeout           time.Duration
	Temperature       float32
}

// DefaultConfig returns the OpenAI defaults.
func DefaultConfig() Config {
	return Config{
		Provider:        ProviderOpenAI,
		BaseURL:         DefaultOpenAIBaseURL,
		EmbeddingModel:  "text-embedding-3-small",
		CompletionModel: "gpt-4o-mini",
		Timeout:         120 * time.Second,
		Temperature:     0.2,
	}
}

// DefaultGeminiConfig returns the Gemini defaults.
func DefaultGeminiConfig() Config {
	return Config{
		Provider:        ProviderGemini,
		EmbeddingModel:  "text-embedding-004",
		CompletionModel: "gemini-2.5-flash",
		Timeout:         120 * time.Second,
		Temperature:     0.2,
	}
}

// WithDefaults fills empty fields from the defaults of the configured provider.
func (c Config) WithDefaults() Config {
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}
	c.Provider = Provider(strings.ToLower(string(c.Provider)))

	def := DefaultConfig()
	if c.Provider == ProviderGemini {
		def = DefaultGeminiConfig()
	}

	if c.BaseURL == "" {
		c.BaseURL = def.BaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = def.EmbeddingModel
	}
	if c.CompletionModel == "" {
		c.CompletionModel = def.CompletionModel
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.Temperature == 0 {
		c.Temperature = def.Temperature
	}
	return c
}
