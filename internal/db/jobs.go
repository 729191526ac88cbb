package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/jonathan/job-ranker/internal/types"
)

// jobColumns excludes the embedding, which the pipeline never reads back.
const jobColumns = `id, team_id, title, COALESCE(description, ''), COALESCE(skills, '{}'), seniority,
	COALESCE(budget_type, ''), hourly_min, hourly_max, fixed_min, fixed_max,
	client_rating, client_hires, COALESCE(payment_verified, false),
	ai_seniority, ai_summary, ai_description_md, created_at`

func scanJob(row pgx.Row) (types.Job, error) {
	var j types.Job
	err := row.Scan(&j.ID, &j.TeamID, &j.Title, &j.Description, &j.Skills, &j.Seniority,
		&j.BudgetType, &j.HourlyMin, &j.HourlyMax, &j.FixedMin, &j.FixedMax,
		&j.ClientRating, &j.ClientHires, &j.PaymentVerified,
		&j.AISeniority, &j.AISummary, &j.AIDescriptionMD, &j.CreatedAt)
	return j, err
}

// ListUnembeddedJobs returns up to limit jobs of the team whose embedding is null.
func (db *DB) ListUnembeddedJobs(ctx context.Context, teamID uuid.UUID, limit int) ([]types.Job, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, title, COALESCE(description, '')
		 FROM jobs
		 WHERE team_id = $1 AND embedding IS NULL
		 ORDER BY created_at
		 LIMIT $2`,
		teamID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list unembedded jobs: %w", err)
	}
	defer rows.Close()

	var jobs []types.Job
	for rows.Next() {
		j := types.Job{TeamID: teamID}
		if err := rows.Scan(&j.ID, &j.Title, &j.Description); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list unembedded jobs: %w", err)
	}
	return jobs, nil
}

// UpdateJobEmbedding writes one job's embedding unless another run already did.
func (db *DB) UpdateJobEmbedding(ctx context.Context, jobID uuid.UUID, embedding []float32) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE jobs SET embedding = $2 WHERE id = $1 AND embedding IS NULL`,
		jobID, pgvector.NewVector(embedding),
	)
	if err != nil {
		return fmt.Errorf("failed to update job embedding: %w", err)
	}
	return nil
}

// matchJobsQuery keeps jobs at or above the similarity threshold.
const matchJobsQuery = `SELECT id, 1 - (embedding <=> $2) AS similarity
	FROM jobs
	WHERE team_id = $1
	  AND embedding IS NOT NULL
	  AND 1 - (embedding <=> $2) >= $3
	ORDER BY embedding <=> $2
	LIMIT $4`

// MatchJobs returns the team's jobs whose cosine similarity to embedding is
// at least threshold, most similar first.
func (db *DB) MatchJobs(ctx context.Context, teamID uuid.UUID, embedding []float32, count int, threshold float64) ([]types.JobMatch, error) {
	rows, err := db.pool.Query(ctx, matchJobsQuery,
		teamID, pgvector.NewVector(embedding), threshold, count,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to match jobs: %w", err)
	}
	defer rows.Close()

	var matches []types.JobMatch
	for rows.Next() {
		var m types.JobMatch
		if err := rows.Scan(&m.JobID, &m.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to match jobs: %w", err)
	}
	return matches, nil
}

// GetJobsByID fetches full rows for the given ids in one query.
func (db *DB) GetJobsByID(ctx context.Context, ids []uuid.UUID) ([]types.Job, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := db.pool.Query(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get jobs by id: %w", err)
	}
	defer rows.Close()

	var jobs []types.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get jobs by id: %w", err)
	}
	return jobs, nil
}

// UpdateJobEnrichment writes the AI-derived fields of one job.
func (db *DB) UpdateJobEnrichment(ctx context.Context, jobID uuid.UUID, e types.JobEnrichment) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE jobs SET ai_seniority = $2, ai_summary = $3, ai_description_md = $4 WHERE id = $1`,
		jobID, e.Seniority, e.Summary, e.DescriptionMarkdown,
	)
	if err != nil {
		return fmt.Errorf("failed to update job enrichment: %w", err)
	}
	return nil
}
