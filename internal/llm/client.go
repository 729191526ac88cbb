package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/job-ranker/internal/schemas"
)

// Embedder turns texts into vectors. The i-th vector corresponds to texts[i].
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// CompletionRequest is one structured completion call.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	// Schema constrains the output; the response is validated against it
	// before it is decoded into out.
	Schema *schemas.Schema
}

// Completer produces JSON output conforming to a schema.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest, out any) error
}

// Client is an abstraction over LLM providers
type Client interface {
	Embedder
	Completer
	// Close releases any resources held by the client
	Close() error
}

// NewClient creates a new LLM client based on configuration
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (Client, error) {
	cfg = cfg.WithDefaults()

	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(cfg, logger)
	case ProviderGemini:
		return NewGeminiClient(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
}

// decodeStructured validates content against schema and decodes it into out.
// Missing required fields are rejected here rather than defaulted by the decoder.
func decodeStructured(content string, schema *schemas.Schema, out any) error {
	content = CleanJSONBlock(content)
	if content == "" {
		return ErrEmptyResponse
	}

	if schema != nil {
		if err := schema.Validate(content); err != nil {
			return fmt.Errorf("completion does not match schema %s: %w", schema.Name, err)
		}
	}

	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("failed to decode completion: %w", err)
	}
	return nil
}
