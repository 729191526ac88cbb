package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-ranker/internal/types"
)

var (
	testUserID = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001")
	testTeamID = uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000002")
	testRunID  = uuid.MustParse("cccccccc-0000-0000-0000-000000000003")
	testJobID  = uuid.MustParse("dddddddd-0000-0000-0000-000000000004")
)

func newTestRepository(t *testing.T, handler http.HandlerFunc) *Repository {
	t.Helper()
	return NewRepository(newTestClient(t, handler))
}

func TestRepository_GetProfileBundle(t *testing.T) {
	repo := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eq."+testUserID.String(), r.URL.Query().Get("user_id"))
		switch r.URL.Path {
		case "/rest/v1/profiles":
			_, _ = w.Write([]byte(`[{"user_id":"` + testUserID.String() + `","full_name":"Ada","headline":"Go engineer"}]`))
		case "/rest/v1/skills":
			_, _ = w.Write([]byte(`[{"name":"Go","years":5},{"name":"SQL"}]`))
		case "/rest/v1/experiences":
			assert.Equal(t, "start_date.desc", r.URL.Query().Get("order"))
			_, _ = w.Write([]byte(`[{"title":"Engineer","company":"Acme","start_date":"2021-03-01","end_date":null}]`))
		case "/rest/v1/preferences":
			_, _ = w.Write([]byte(`[{"hourly_rate_min":40,"hourly_rate_max":80,"currency":"USD","tightness":0.7}]`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	bundle, err := repo.GetProfileBundle(context.Background(), testUserID)
	require.NoError(t, err)

	require.NotNil(t, bundle.Profile)
	assert.Equal(t, "Ada", bundle.Profile.FullName)
	require.Len(t, bundle.Skills, 2)
	assert.Nil(t, bundle.Skills[1].Years)
	require.Len(t, bundle.Experiences, 1)
	require.NotNil(t, bundle.Experiences[0].StartDate)
	assert.Equal(t, 2021, bundle.Experiences[0].StartDate.Year())
	assert.Nil(t, bundle.Experiences[0].EndDate)
	require.NotNil(t, bundle.Preference)
	assert.Equal(t, "USD", bundle.Preference.Currency)
}

func TestRepository_GetProfileBundle_Empty(t *testing.T) {
	repo := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	bundle, err := repo.GetProfileBundle(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Nil(t, bundle.Profile)
	assert.Nil(t, bundle.Preference)
	assert.Empty(t, bundle.Skills)
}

func TestRepository_GetProfileBundle_Error(t *testing.T) {
	repo := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := repo.GetProfileBundle(context.Background(), testUserID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get profile")
}

func TestRepository_ListUnembeddedJobs(t *testing.T) {
	repo := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/rest/v1/jobs", r.URL.Path)
		assert.Equal(t, "eq."+testTeamID.String(), q.Get("team_id"))
		assert.Equal(t, "is.null", q.Get("embedding"))
		assert.Equal(t, "500", q.Get("limit"))
		_, _ = w.Write([]byte(`[{"id":"` + testJobID.String() + `","title":"Go API","description":"Build it"}]`))
	})

	jobs, err := repo.ListUnembeddedJobs(context.Background(), testTeamID, 500)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, testJobID, jobs[0].ID)
	assert.Equal(t, "Go API", jobs[0].Title)
}

func TestRepository_UpdateJobEmbeddingOnlyWhenNull(t *testing.T) {
	repo := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		q := r.URL.Query()
		assert.Equal(t, "eq."+testJobID.String(), q.Get("id"))
		assert.Equal(t, "is.null", q.Get("embedding"))

		var body map[string][]float32
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []float32{0.1, 0.2}, body["embedding"])
		w.WriteHeader(http.StatusNoContent)
	})

	err := repo.UpdateJobEmbedding(context.Background(), testJobID, []float32{0.1, 0.2})
	assert.NoError(t, err)
}

func TestRepository_UpdateProfileEmbedding(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	repo := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/profiles", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "2026-01-02T03:04:05Z", body["embedding_updated_at"])
		w.WriteHeader(http.StatusNoContent)
	})

	assert.NoError(t, repo.UpdateProfileEmbedding(context.Background(), testUserID, []float32{1}, at))
}

func TestRepository_MatchJobs(t *testing.T) {
	repo := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/rpc/match_jobs", r.URL.Path)
		var args map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&args))
		assert.Equal(t, testTeamID.String(), args["p_team_id"])
		assert.EqualValues(t, 50, args["match_count"])
		assert.InDelta(t, 0.2, args["match_threshold"], 1e-9)
		assert.Len(t, args["query_embedding"], 3)
		_, _ = w.Write([]byte(`[{"job_id":"` + testJobID.String() + `","similarity":0.83}]`))
	})

	matches, err := repo.MatchJobs(context.Background(), testTeamID, []float32{1, 2, 3}, 50, 0.2)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, testJobID, matches[0].JobID)
	assert.InDelta(t, 0.83, matches[0].Similarity, 1e-9)
}

func TestRepository_GetJobsByID(t *testing.T) {
	other := uuid.MustParse("dddddddd-0000-0000-0000-000000000005")
	repo := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "in.("+testJobID.String()+","+other.String()+")", r.URL.Query().Get("id"))
		assert.NotContains(t, r.URL.Query().Get("select"), "embedding")
		_, _ = w.Write([]byte(`[{"id":"` + other.String() + `","title":"B","hourly_min":30}]`))
	})

	jobs, err := repo.GetJobsByID(context.Background(), []uuid.UUID{testJobID, other})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.NotNil(t, jobs[0].HourlyMin)
	assert.InDelta(t, 30, *jobs[0].HourlyMin, 1e-9)

	jobs, err = repo.GetJobsByID(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, jobs)
}

func TestRepository_UpdateJobEnrichment(t *testing.T) {
	repo := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"ai_seniority":"senior","ai_summary":"s","ai_description_md":"- x"}`, string(body))
		w.WriteHeader(http.StatusNoContent)
	})

	err := repo.UpdateJobEnrichment(context.Background(), testJobID, types.JobEnrichment{
		Seniority:           types.SenioritySenior,
		Summary:             "s",
		DescriptionMarkdown: "- x",
	})
	assert.NoError(t, err)
}

func TestRepository_InsertRanking(t *testing.T) {
	rankingID := uuid.New()
	repo := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/job_rankings", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotContains(t, body, "id")
		assert.NotContains(t, body, "created_at")
		assert.EqualValues(t, 72, body["score"])
		assert.Equal(t, testRunID.String(), body["agent_run_id"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`[{"id":"` + rankingID.String() + `","job_id":"` + testJobID.String() + `","score":72,"created_at":"2026-01-01T00:00:00Z"}]`))
	})

	created, err := repo.InsertRanking(context.Background(), &types.Ranking{
		JobID:      testJobID,
		TeamID:     testTeamID,
		AgentRunID: testRunID,
		Score:      72,
		Breakdown:  types.NewScoreBreakdown(80, 70, 60, 70, 60),
		Reasoning:  "good fit",
	})
	require.NoError(t, err)
	assert.Equal(t, rankingID, created.ID)
	assert.Equal(t, 72, created.Score)
}

func TestRepository_UpdateAgentRun(t *testing.T) {
	repo := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/agent_runs", r.URL.Path)
		assert.Equal(t, "eq."+testRunID.String(), r.URL.Query().Get("id"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"output":{"phase":"ranking","jobs_embedded":1,"jobs_shortlisted":2,"jobs_enriched":3,"jobs_ranked":0}}`, string(body))
		w.WriteHeader(http.StatusNoContent)
	})

	err := repo.UpdateAgentRun(context.Background(), testRunID, types.AgentRunUpdate{
		Output: &types.RunOutput{
			Phase:      "ranking",
			RunMetrics: types.RunMetrics{JobsEmbedded: 1, JobsShortlisted: 2, JobsEnriched: 3},
		},
	})
	assert.NoError(t, err)
}

func TestRepository_GetAgentRun(t *testing.T) {
	calls := 0
	repo := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			_, _ = w.Write([]byte(`[{"id":"` + testRunID.String() + `","status":"succeeded","output":{"jobs_ranked":4}}]`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})

	run, err := repo.GetAgentRun(context.Background(), testRunID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, types.RunStatusSucceeded, run.Status)
	assert.Equal(t, 4, run.Output.JobsRanked)

	run, err = repo.GetAgentRun(context.Background(), testRunID)
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestParseDate(t *testing.T) {
	str := func(s string) *string { return &s }

	assert.Nil(t, parseDate(nil))
	assert.Nil(t, parseDate(str(" ")))
	assert.Nil(t, parseDate(str("yesterday")))

	got := parseDate(str("2020-05-17"))
	require.NotNil(t, got)
	assert.Equal(t, time.May, got.Month())

	got = parseDate(str("2020-05-17T10:00:00+00:00"))
	require.NotNil(t, got)
	assert.Equal(t, 10, got.Hour())
}
