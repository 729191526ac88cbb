package ranking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-ranker/internal/llm"
	"github.com/jonathan/job-ranker/internal/schemas"
	"github.com/jonathan/job-ranker/internal/types"
)

// MockCompleter implements llm.Completer by validating and decoding a canned response.
type MockCompleter struct {
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (string, error)
	Requests     []llm.CompletionRequest
}

func (m *MockCompleter) Complete(ctx context.Context, req llm.CompletionRequest, out any) error {
	m.Requests = append(m.Requests, req)
	content, err := m.CompleteFunc(ctx, req)
	if err != nil {
		return err
	}
	if err := req.Schema.Validate(content); err != nil {
		return err
	}
	return json.Unmarshal([]byte(content), out)
}

func rankingJSON(entries ...string) string {
	return `{"rankings":[` + strings.Join(entries, ",") + `]}`
}

func entry(id uuid.UUID, score, skill, budget, client, scope, win float64) string {
	return fmt.Sprintf(`{"job_id":%q,"score":%v,"skill_match":%v,"budget_fit":%v,"client_quality":%v,"scope_fit":%v,"win_probability":%v,"reasoning":"fits"}`,
		id.String(), score, skill, budget, client, scope, win)
}

func ptr[T any](v T) *T { return &v }

func testJobs(n int) []types.Job {
	jobs := make([]types.Job, n)
	for i := range jobs {
		jobs[i] = types.Job{
			ID:          uuid.New(),
			Title:       fmt.Sprintf("Job %d", i+1),
			Description: strings.Repeat("d", 2000),
			Skills:      []string{"Go", "Postgres"},
			BudgetType:  types.BudgetHourly,
			HourlyMin:   ptr(30.0),
			HourlyMax:   ptr(60.0),
		}
	}
	return jobs
}

func TestRankBatch_WeightedScore(t *testing.T) {
	jobs := testJobs(2)
	mock := &MockCompleter{
		CompleteFunc: func(_ context.Context, _ llm.CompletionRequest) (string, error) {
			return rankingJSON(
				entry(jobs[0].ID, 69, 80, 60, 90, 70, 40),
				// model claims 95 while the breakdown weighs to 50
				entry(jobs[1].ID, 95, 50, 50, 50, 50, 50),
			), nil
		},
	}

	batch, err := RankBatch(context.Background(), mock, Request{ProfileContext: "Name: Ada", Jobs: jobs})
	require.NoError(t, err)
	require.Len(t, batch.Results, 2)
	assert.Empty(t, batch.Ignored)

	assert.Equal(t, 69, batch.Results[0].Score())
	assert.False(t, batch.Results[0].ScoreDiverges())

	assert.Equal(t, 50, batch.Results[1].Score())
	assert.True(t, batch.Results[1].ScoreDiverges())

	runID := uuid.New()
	teamID := uuid.New()
	ranking := batch.Results[1].Ranking(teamID, runID, ptr(0.7))
	assert.Equal(t, 50, ranking.Score)
	assert.Equal(t, runID, ranking.AgentRunID)
	assert.Equal(t, teamID, ranking.TeamID)
	assert.Equal(t, jobs[1].ID, ranking.JobID)
	assert.Equal(t, "fits", ranking.Reasoning)
	require.NoError(t, ranking.Breakdown.Validate())
}

func TestRankBatch_PromptContents(t *testing.T) {
	jobs := testJobs(1)
	jobs[0].AISeniority = ptr("senior")
	jobs[0].ClientRating = ptr(4.9)
	jobs[0].PaymentVerified = true

	mock := &MockCompleter{
		CompleteFunc: func(_ context.Context, _ llm.CompletionRequest) (string, error) {
			return rankingJSON(), nil
		},
	}

	_, err := RankBatch(context.Background(), mock, Request{
		ProfileContext: "Name: Ada\nSkills: Go (5 yrs)",
		Tightness:      ptr(0.75),
		Jobs:           jobs,
	})
	require.NoError(t, err)
	require.Len(t, mock.Requests, 1)

	req := mock.Requests[0]
	assert.Equal(t, schemas.RankingBatch, req.Schema.Name)
	assert.NotEmpty(t, req.SystemPrompt)
	assert.Contains(t, req.UserPrompt, "Skills: Go (5 yrs)")
	assert.Contains(t, req.UserPrompt, "Match tightness: 0.75")
	assert.Contains(t, req.UserPrompt, "job_id: "+jobs[0].ID.String())
	assert.Contains(t, req.UserPrompt, "Seniority: senior")
	// seniority alone does not make the job enriched
	assert.Contains(t, req.UserPrompt, "Summary: Not specified")
	assert.Contains(t, req.UserPrompt, "Skills: Go, Postgres")
	assert.Contains(t, req.UserPrompt, "Budget: Hourly $30-$60/hr")
	assert.Contains(t, req.UserPrompt, "rating 4.9, payment verified")
	assert.Contains(t, req.UserPrompt, strings.Repeat("d", DefaultDescriptionMax)+"\n")
	assert.NotContains(t, req.UserPrompt, strings.Repeat("d", DefaultDescriptionMax+1))
	assert.NotContains(t, req.UserPrompt, "{{.")
}

func TestRankBatch_EnrichedJobCarriesSummary(t *testing.T) {
	jobs := testJobs(1)
	jobs[0].AISeniority = ptr("mid")
	jobs[0].AISummary = ptr("Builds a billing service in Go.")
	jobs[0].AIDescriptionMD = ptr("- Go")

	mock := &MockCompleter{
		CompleteFunc: func(_ context.Context, _ llm.CompletionRequest) (string, error) {
			return rankingJSON(), nil
		},
	}

	_, err := RankBatch(context.Background(), mock, Request{Jobs: jobs})
	require.NoError(t, err)
	assert.Contains(t, mock.Requests[0].UserPrompt, "Summary: Builds a billing service in Go.")
}

func TestRankBatch_TightnessNotSpecified(t *testing.T) {
	mock := &MockCompleter{
		CompleteFunc: func(_ context.Context, _ llm.CompletionRequest) (string, error) {
			return rankingJSON(), nil
		},
	}

	_, err := RankBatch(context.Background(), mock, Request{Jobs: testJobs(1)})
	require.NoError(t, err)
	assert.Contains(t, mock.Requests[0].UserPrompt, "Match tightness: not specified")
}

func TestRankBatch_IgnoresUnknownAndRepeatedIDs(t *testing.T) {
	jobs := testJobs(2)
	stranger := uuid.New()
	mock := &MockCompleter{
		CompleteFunc: func(_ context.Context, _ llm.CompletionRequest) (string, error) {
			return rankingJSON(
				entry(jobs[0].ID, 50, 50, 50, 50, 50, 50),
				entry(jobs[0].ID, 60, 60, 60, 60, 60, 60),
				entry(stranger, 70, 70, 70, 70, 70, 70),
			), nil
		},
	}

	batch, err := RankBatch(context.Background(), mock, Request{Jobs: jobs})
	require.NoError(t, err)
	require.Len(t, batch.Results, 1)
	assert.Equal(t, 50, batch.Results[0].Score())
	assert.Len(t, batch.Ignored, 2)
}

func TestRankBatch_PartialBreakdownRejected(t *testing.T) {
	jobs := testJobs(1)
	mock := &MockCompleter{
		CompleteFunc: func(_ context.Context, _ llm.CompletionRequest) (string, error) {
			return fmt.Sprintf(`{"rankings":[{"job_id":%q,"score":70,"skill_match":70,"reasoning":"x"}]}`, jobs[0].ID), nil
		},
	}

	batch, err := RankBatch(context.Background(), mock, Request{Jobs: jobs})
	require.Error(t, err)
	assert.Nil(t, batch)

	var verr *schemas.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestRankBatch_CompletionError(t *testing.T) {
	boom := errors.New("provider down")
	mock := &MockCompleter{
		CompleteFunc: func(_ context.Context, _ llm.CompletionRequest) (string, error) {
			return "", boom
		},
	}

	_, err := RankBatch(context.Background(), mock, Request{Jobs: testJobs(3)})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "ranking completion failed")
}

func TestRankBatch_EmptyBatch(t *testing.T) {
	mock := &MockCompleter{}

	batch, err := RankBatch(context.Background(), mock, Request{})
	require.NoError(t, err)
	assert.Empty(t, batch.Results)
	assert.Empty(t, mock.Requests)
}

func TestParseResponse_OutOfRangeBreakdown(t *testing.T) {
	jobs := testJobs(1)
	resp := batchResponse{Rankings: []rankingEntry{{
		JobID: jobs[0].ID.String(), SkillMatch: 120, BudgetFit: 1, ClientQuality: 1, ScopeFit: 1, WinProbability: 1,
	}}}

	batch := parseResponse(resp, jobs)
	assert.Empty(t, batch.Results)
	require.Len(t, batch.Ignored, 1)
	assert.Contains(t, batch.Ignored[0], "skill_match out of range")
}
