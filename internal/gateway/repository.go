package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/job-ranker/internal/types"
)

// Table and procedure names on the data endpoint
const (
	TableProfiles    = "profiles"
	TableSkills      = "skills"
	TableExperiences = "experiences"
	TablePreferences = "preferences"
	TableJobs        = "jobs"
	TableRankings    = "job_rankings"
	TableAgentRuns   = "agent_runs"

	RPCMatchJobs = "match_jobs"
)

// jobColumns excludes the embedding, which the pipeline never reads back.
var jobColumns = []string{
	"id", "team_id", "title", "description", "skills", "seniority",
	"budget_type", "hourly_min", "hourly_max", "fixed_min", "fixed_max",
	"client_rating", "client_hires", "payment_verified",
	"ai_seniority", "ai_summary", "ai_description_md", "created_at",
}

// Repository maps typed pipeline operations onto REST calls.
type Repository struct {
	client *Client
}

// NewRepository wraps a Client.
func NewRepository(client *Client) *Repository {
	return &Repository{client: client}
}

type experienceRow struct {
	Title       string  `json:"title"`
	Company     string  `json:"company"`
	Description string  `json:"description"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
}

// GetProfileBundle loads the profile, skills, experiences and preferences of a user.
func (r *Repository) GetProfileBundle(ctx context.Context, userID uuid.UUID) (*types.ProfileBundle, error) {
	bundle := &types.ProfileBundle{}

	var profiles []types.Profile
	q := From(TableProfiles).Eq("user_id", userID).Select("user_id", "full_name", "headline", "about").Limit(1)
	if err := r.client.Get(ctx, q.String(), &profiles); err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if len(profiles) > 0 {
		bundle.Profile = &profiles[0]
	}

	q = From(TableSkills).Eq("user_id", userID).Select("name", "years").Order("years", true)
	if err := r.client.Get(ctx, q.String(), &bundle.Skills); err != nil {
		return nil, fmt.Errorf("failed to get skills: %w", err)
	}

	var experiences []experienceRow
	q = From(TableExperiences).Eq("user_id", userID).
		Select("title", "company", "description", "start_date", "end_date").
		Order("start_date", true)
	if err := r.client.Get(ctx, q.String(), &experiences); err != nil {
		return nil, fmt.Errorf("failed to get experiences: %w", err)
	}
	for _, row := range experiences {
		bundle.Experiences = append(bundle.Experiences, types.Experience{
			Title:       row.Title,
			Company:     row.Company,
			Description: row.Description,
			StartDate:   parseDate(row.StartDate),
			EndDate:     parseDate(row.EndDate),
		})
	}

	var prefs []types.Preference
	q = From(TablePreferences).Eq("user_id", userID).
		Select("hourly_rate_min", "hourly_rate_max", "currency", "tightness").Limit(1)
	if err := r.client.Get(ctx, q.String(), &prefs); err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	if len(prefs) > 0 {
		bundle.Preference = &prefs[0]
	}

	return bundle, nil
}

// UpdateProfileEmbedding overwrites the profile embedding and its timestamp.
func (r *Repository) UpdateProfileEmbedding(ctx context.Context, userID uuid.UUID, embedding []float32, at time.Time) error {
	row := map[string]any{
		"embedding":            embedding,
		"embedding_updated_at": at.UTC().Format(time.RFC3339),
	}
	return r.client.Patch(ctx, TableProfiles, Filter().Eq("user_id", userID), row)
}

// ListUnembeddedJobs returns up to limit jobs of the team whose embedding is null.
func (r *Repository) ListUnembeddedJobs(ctx context.Context, teamID uuid.UUID, limit int) ([]types.Job, error) {
	var jobs []types.Job
	q := From(TableJobs).Eq("team_id", teamID).IsNull("embedding").Select("id", "title", "description").Limit(limit)
	if err := r.client.Get(ctx, q.String(), &jobs); err != nil {
		return nil, fmt.Errorf("failed to list unembedded jobs: %w", err)
	}
	return jobs, nil
}

// UpdateJobEmbedding writes one job's embedding. The embedding IS NULL filter
// keeps a concurrent run from overwriting a vector written in the meantime.
func (r *Repository) UpdateJobEmbedding(ctx context.Context, jobID uuid.UUID, embedding []float32) error {
	row := map[string]any{"embedding": embedding}
	return r.client.Patch(ctx, TableJobs, Filter().Eq("id", jobID).IsNull("embedding"), row)
}

type matchJobsArgs struct {
	TeamID         uuid.UUID `json:"p_team_id"`
	QueryEmbedding []float32 `json:"query_embedding"`
	MatchCount     int       `json:"match_count"`
	MatchThreshold float64   `json:"match_threshold"`
}

// MatchJobs runs the vector similarity search procedure.
func (r *Repository) MatchJobs(ctx context.Context, teamID uuid.UUID, embedding []float32, count int, threshold float64) ([]types.JobMatch, error) {
	var matches []types.JobMatch
	args := matchJobsArgs{
		TeamID:         teamID,
		QueryEmbedding: embedding,
		MatchCount:     count,
		MatchThreshold: threshold,
	}
	if err := r.client.RPC(ctx, RPCMatchJobs, args, &matches); err != nil {
		return nil, fmt.Errorf("failed to match jobs: %w", err)
	}
	return matches, nil
}

// GetJobsByID fetches full rows for the given ids in one query.
func (r *Repository) GetJobsByID(ctx context.Context, ids []uuid.UUID) ([]types.Job, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}

	var jobs []types.Job
	q := From(TableJobs).In("id", strIDs...).Select(jobColumns...)
	if err := r.client.Get(ctx, q.String(), &jobs); err != nil {
		return nil, fmt.Errorf("failed to get jobs by id: %w", err)
	}
	return jobs, nil
}

// UpdateJobEnrichment writes the AI-derived fields of one job.
func (r *Repository) UpdateJobEnrichment(ctx context.Context, jobID uuid.UUID, enrichment types.JobEnrichment) error {
	return r.client.Patch(ctx, TableJobs, Filter().Eq("id", jobID), enrichment)
}

type rankingRow struct {
	JobID      uuid.UUID            `json:"job_id"`
	TeamID     uuid.UUID            `json:"team_id"`
	AgentRunID uuid.UUID            `json:"agent_run_id"`
	Score      int                  `json:"score"`
	Breakdown  types.ScoreBreakdown `json:"breakdown"`
	Reasoning  string               `json:"reasoning"`
	Tightness  *float64             `json:"tightness,omitempty"`
}

// InsertRanking appends a ranking record. Rankings are never upserted.
func (r *Repository) InsertRanking(ctx context.Context, ranking *types.Ranking) (*types.Ranking, error) {
	row := rankingRow{
		JobID:      ranking.JobID,
		TeamID:     ranking.TeamID,
		AgentRunID: ranking.AgentRunID,
		Score:      ranking.Score,
		Breakdown:  ranking.Breakdown,
		Reasoning:  ranking.Reasoning,
		Tightness:  ranking.Tightness,
	}

	var created types.Ranking
	if err := r.client.Post(ctx, TableRankings, row, &created); err != nil {
		return nil, fmt.Errorf("failed to insert ranking: %w", err)
	}
	return &created, nil
}

// ListRankings returns the rankings produced by one agent run, best first.
func (r *Repository) ListRankings(ctx context.Context, agentRunID uuid.UUID) ([]types.Ranking, error) {
	var rankings []types.Ranking
	q := From(TableRankings).Eq("agent_run_id", agentRunID).Order("score", true)
	if err := r.client.Get(ctx, q.String(), &rankings); err != nil {
		return nil, fmt.Errorf("failed to list rankings: %w", err)
	}
	return rankings, nil
}

// UpdateAgentRun applies a field-scoped patch to an agent run.
func (r *Repository) UpdateAgentRun(ctx context.Context, runID uuid.UUID, update types.AgentRunUpdate) error {
	return r.client.Patch(ctx, TableAgentRuns, Filter().Eq("id", runID), update)
}

// GetAgentRun returns the agent run, or nil if it does not exist.
func (r *Repository) GetAgentRun(ctx context.Context, runID uuid.UUID) (*types.AgentRun, error) {
	var runs []types.AgentRun
	q := From(TableAgentRuns).Eq("id", runID).Limit(1)
	if err := r.client.Get(ctx, q.String(), &runs); err != nil {
		return nil, fmt.Errorf("failed to get agent run: %w", err)
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// parseDate accepts date and timestamp columns; unparseable values become nil.
func parseDate(s *string) *time.Time {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, *s); err == nil {
			return &t
		}
	}
	return nil
}
