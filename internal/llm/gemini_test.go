package llm

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGeminiClient_RequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), Config{Provider: ProviderGemini}, nil)
	assert.Error(t, err)
}

func TestExtractTextFromResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"jobs":`), genai.Text(`[]}`)}},
		}},
	}

	text, err := extractTextFromResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, `{"jobs":[]}`, text)
}

func TestExtractTextFromResponse_Failures(t *testing.T) {
	tests := []struct {
		name    string
		resp    *genai.GenerateContentResponse
		wantErr error
	}{
		{"nil response", nil, ErrEmptyResponse},
		{"no candidates", &genai.GenerateContentResponse{}, ErrEmptyResponse},
		{"no content", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}, ErrEmptyResponse},
		{"max tokens", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonMaxTokens}}}, ErrTruncated},
		{"safety", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}}}, ErrRefusal},
		{
			"no text parts",
			&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{genai.Blob{MIMEType: "image/png"}}},
			}}},
			ErrEmptyResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extractTextFromResponse(tt.resp)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestResponseSchema(t *testing.T) {
	s := responseSchema(enrichmentSchema(t).Document())
	require.NotNil(t, s)
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, []string{"jobs"}, s.Required)

	jobs := s.Properties["jobs"]
	require.NotNil(t, jobs)
	assert.Equal(t, genai.TypeArray, jobs.Type)
	require.NotNil(t, jobs.Items)
	assert.Equal(t, genai.TypeObject, jobs.Items.Type)
	assert.ElementsMatch(t, []string{"job_id", "seniority", "summary", "description_markdown"}, jobs.Items.Required)

	seniority := jobs.Items.Properties["seniority"]
	require.NotNil(t, seniority)
	assert.Equal(t, genai.TypeString, seniority.Type)
	assert.Equal(t, []string{"junior", "mid", "senior"}, seniority.Enum)
	assert.Contains(t, jobs.Items.Properties["summary"].Description, "summary")
}

func TestResponseSchema_NumbersAndNil(t *testing.T) {
	assert.Nil(t, responseSchema(nil))

	s := responseSchema(map[string]any{"type": "number", "minimum": 0.0, "maximum": 100.0})
	assert.Equal(t, genai.TypeNumber, s.Type)
	assert.Nil(t, s.Properties)
	assert.Nil(t, s.Enum)
}
