package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jonathan/job-ranker/internal/logger"
)

const maxErrorMessage = 1024

// OpenAIClient speaks the OpenAI embeddings and chat completions wire format.
type OpenAIClient struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *zap.Logger
}

// OpenAIOption customizes an OpenAIClient.
type OpenAIOption func(*OpenAIClient)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) OpenAIOption {
	return func(c *OpenAIClient) { c.httpClient = hc }
}

// NewOpenAIClient creates a client for cfg.BaseURL.
func NewOpenAIClient(cfg Config, log *zap.Logger, opts ...OpenAIOption) (*OpenAIClient, error) {
	cfg = cfg.WithDefaults()
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	c := &OpenAIClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    newLimiter(cfg.RequestsPerSecond),
		log:        logger.OrNop(log).With(logger.CommonFields(string(ProviderOpenAI), cfg.CompletionModel)...),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingResponse struct {
	Data []embeddingData `json:"data"`
}

// Embed embeds texts in requests of at most MaxEmbeddingBatch inputs. Any
// failed request fails the whole call.
func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += MaxEmbeddingBatch {
		end := min(start+MaxEmbeddingBatch, len(texts))

		var resp embeddingResponse
		req := embeddingRequest{Model: c.cfg.EmbeddingModel, Input: texts[start:end]}
		if err := c.post(ctx, "embeddings", req, &resp); err != nil {
			return nil, err
		}

		ordered, err := orderEmbeddings(resp.Data, end-start)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, ordered...)
	}

	return vectors, nil
}

// orderEmbeddings places each vector at its declared index. The provider does
// not guarantee response order matches input order.
func orderEmbeddings(data []embeddingData, want int) ([][]float32, error) {
	if len(data) != want {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(data), want)
	}

	ordered := make([][]float32, want)
	for _, d := range data {
		if d.Index < 0 || d.Index >= want {
			return nil, fmt.Errorf("embedding response index %d out of range [0,%d)", d.Index, want)
		}
		if ordered[d.Index] != nil {
			return nil, fmt.Errorf("embedding response has duplicate index %d", d.Index)
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("embedding response index %d has an empty vector", d.Index)
		}
		ordered[d.Index] = d.Embedding
	}
	return ordered, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type jsonSchemaFormat struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

type responseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *jsonSchemaFormat `json:"json_schema,omitempty"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float32        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
			Refusal *string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Complete sends one chat completion in strict JSON schema mode and decodes
// the single choice into out.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest, out any) error {
	format := responseFormat{Type: "json_object"}
	if req.Schema != nil {
		format = responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchemaFormat{
				Name:   req.Schema.Name,
				Schema: req.Schema.Document(),
				Strict: true,
			},
		}
	}

	body := chatRequest{
		Model:          c.cfg.CompletionModel,
		Temperature:    c.cfg.Temperature,
		ResponseFormat: format,
	}
	if req.SystemPrompt != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.UserPrompt})

	c.log.Debug("sending completion", zap.String("prompt", logger.TruncateForLog(req.UserPrompt, 200)))

	var resp chatResponse
	if err := c.post(ctx, "chat/completions", body, &resp); err != nil {
		return err
	}

	if len(resp.Choices) == 0 {
		return ErrEmptyResponse
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != nil && *choice.Message.Refusal != "" {
		return fmt.Errorf("%w: %s", ErrRefusal, *choice.Message.Refusal)
	}
	if choice.FinishReason == "length" {
		return ErrTruncated
	}
	if choice.Message.Content == nil {
		return ErrEmptyResponse
	}

	c.log.Debug("received completion", zap.String("response", logger.TruncateForLog(*choice.Message.Content, 200)))

	return decodeStructured(*choice.Message.Content, req.Schema, out)
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (c *OpenAIClient) Close() error {
	return nil
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *OpenAIClient) post(ctx context.Context, path string, body any, out any) error {
	if err := waitLimiter(ctx, c.limiter); err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/"+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Provider: ProviderOpenAI, Operation: path, Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Provider: ProviderOpenAI, Operation: path, Message: "failed to read response", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(respBody))
		var parsed apiErrorBody
		if json.Unmarshal(respBody, &parsed) == nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		if len(msg) > maxErrorMessage {
			msg = msg[:maxErrorMessage]
		}
		return &APIError{Provider: ProviderOpenAI, Operation: path, StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
