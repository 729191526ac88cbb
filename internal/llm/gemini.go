package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/jonathan/job-ranker/internal/logger"
)

// GeminiClient implements Client for Google Gemini. Gemini accepts only a
// subset of JSON Schema, so numeric bounds and additionalProperties are
// checked locally after decoding.
type GeminiClient struct {
	client  *genai.Client
	cfg     Config
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, cfg Config, log *zap.Logger) (*GeminiClient, error) {
	cfg = cfg.WithDefaults()
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client:  client,
		cfg:     cfg,
		limiter: newLimiter(cfg.RequestsPerSecond),
		log:     logger.OrNop(log).With(logger.CommonFields(string(ProviderGemini), cfg.CompletionModel)...),
	}, nil
}

// Embed embeds texts with BatchEmbedContents, MaxEmbeddingBatch texts per call.
func (c *GeminiClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	model := c.client.EmbeddingModel(c.cfg.EmbeddingModel)
	vectors := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += MaxEmbeddingBatch {
		end := min(start+MaxEmbeddingBatch, len(texts))

		if err := waitLimiter(ctx, c.limiter); err != nil {
			return nil, err
		}

		batch := model.NewBatch()
		for _, text := range texts[start:end] {
			batch.AddContent(genai.Text(text))
		}

		res, err := model.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, &APIError{Provider: ProviderGemini, Operation: "embeddings", Message: "request failed", Cause: err}
		}
		if len(res.Embeddings) != end-start {
			return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(res.Embeddings), end-start)
		}
		for i, emb := range res.Embeddings {
			if emb == nil || len(emb.Values) == 0 {
				return nil, fmt.Errorf("embedding response index %d has an empty vector", i)
			}
			vectors = append(vectors, emb.Values)
		}
	}

	return vectors, nil
}

// Complete generates JSON output and validates it against the request schema.
func (c *GeminiClient) Complete(ctx context.Context, req CompletionRequest, out any) error {
	if err := waitLimiter(ctx, c.limiter); err != nil {
		return err
	}

	model := c.client.GenerativeModel(c.cfg.CompletionModel)
	model.SetTemperature(c.cfg.Temperature)
	model.ResponseMIMEType = "application/json"
	if req.Schema != nil {
		model.ResponseSchema = responseSchema(req.Schema.Document())
	}
	if req.SystemPrompt != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.SystemPrompt))
	}

	c.log.Debug("sending completion", zap.String("prompt", logger.TruncateForLog(req.UserPrompt, 200)))

	resp, err := model.GenerateContent(ctx, genai.Text(req.UserPrompt))
	if err != nil {
		return &APIError{Provider: ProviderGemini, Operation: "generate", Message: "request failed", Cause: err}
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return err
	}

	c.log.Debug("received completion", zap.String("response", logger.TruncateForLog(text, 200)))

	return decodeStructured(text, req.Schema, out)
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// responseSchema converts a JSON Schema document into the Gemini schema
// subset. Keywords Gemini has no field for are dropped.
func responseSchema(doc map[string]any) *genai.Schema {
	if doc == nil {
		return nil
	}

	s := &genai.Schema{}
	switch doc["type"] {
	case "string":
		s.Type = genai.TypeString
	case "number":
		s.Type = genai.TypeNumber
	case "integer":
		s.Type = genai.TypeInteger
	case "boolean":
		s.Type = genai.TypeBoolean
	case "array":
		s.Type = genai.TypeArray
	case "object":
		s.Type = genai.TypeObject
	}

	if desc, ok := doc["description"].(string); ok {
		s.Description = desc
	}
	s.Enum = stringList(doc["enum"])
	s.Required = stringList(doc["required"])

	if items, ok := doc["items"].(map[string]any); ok {
		s.Items = responseSchema(items)
	}
	if props, ok := doc["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if m, ok := prop.(map[string]any); ok {
				s.Properties[name] = responseSchema(m)
			}
		}
	}
	return s
}

func stringList(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if str, ok := item.(string); ok {
			out = append(out, str)
		}
	}
	return out
}

// extractTextFromResponse extracts text from Gemini API response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonMaxTokens {
		return "", ErrTruncated
	}
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: blocked by safety filter", ErrRefusal)
	}
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("%w: no text parts", ErrEmptyResponse)
	}

	return strings.Join(parts, ""), nil
}
