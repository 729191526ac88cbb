package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/job-ranker/internal/types"
)

// InsertRanking appends a ranking record. Rankings are never upserted.
func (db *DB) InsertRanking(ctx context.Context, r *types.Ranking) (*types.Ranking, error) {
	breakdown, err := json.Marshal(r.Breakdown)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal breakdown: %w", err)
	}

	created := *r
	err = db.pool.QueryRow(ctx,
		`INSERT INTO job_rankings (job_id, team_id, agent_run_id, score, breakdown, reasoning, tightness)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		r.JobID, r.TeamID, r.AgentRunID, r.Score, breakdown, r.Reasoning, r.Tightness,
	).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert ranking: %w", err)
	}
	return &created, nil
}

// ListRankings returns the rankings produced by one agent run, best first.
func (db *DB) ListRankings(ctx context.Context, agentRunID uuid.UUID) ([]types.Ranking, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, job_id, team_id, agent_run_id, score, breakdown, COALESCE(reasoning, ''), tightness, created_at
		 FROM job_rankings
		 WHERE agent_run_id = $1
		 ORDER BY score DESC`,
		agentRunID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list rankings: %w", err)
	}
	defer rows.Close()

	var rankings []types.Ranking
	for rows.Next() {
		var r types.Ranking
		var breakdown []byte
		if err := rows.Scan(&r.ID, &r.JobID, &r.TeamID, &r.AgentRunID, &r.Score, &breakdown,
			&r.Reasoning, &r.Tightness, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ranking: %w", err)
		}
		if breakdown != nil {
			if err := json.Unmarshal(breakdown, &r.Breakdown); err != nil {
				return nil, fmt.Errorf("failed to decode breakdown of ranking %s: %w", r.ID, err)
			}
		}
		rankings = append(rankings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list rankings: %w", err)
	}
	return rankings, nil
}

// UpdateAgentRun applies a field-scoped patch to an agent run. Unset fields
// are left untouched; an empty patch is a no-op.
func (db *DB) UpdateAgentRun(ctx context.Context, runID uuid.UUID, update types.AgentRunUpdate) error {
	set, args, err := agentRunAssignments(update)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}

	args = append(args, runID)
	query := fmt.Sprintf(`UPDATE agent_runs SET %s WHERE id = $%d`, set, len(args))
	if _, err := db.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update agent run: %w", err)
	}
	return nil
}

// agentRunAssignments builds the SET clause for the fields present in update.
func agentRunAssignments(update types.AgentRunUpdate) (string, []any, error) {
	var cols []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		cols = append(cols, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if update.Status != "" {
		add("status", update.Status)
	}
	if update.StartedAt != nil {
		add("started_at", update.StartedAt.UTC())
	}
	if update.FinishedAt != nil {
		add("finished_at", update.FinishedAt.UTC())
	}
	if update.Output != nil {
		output, err := json.Marshal(update.Output)
		if err != nil {
			return "", nil, fmt.Errorf("failed to marshal run output: %w", err)
		}
		add("output", output)
	}
	if update.Error != nil {
		add("error", *update.Error)
	}

	return strings.Join(cols, ", "), args, nil
}

// GetAgentRun returns the agent run, or nil if it does not exist.
func (db *DB) GetAgentRun(ctx context.Context, runID uuid.UUID) (*types.AgentRun, error) {
	var run types.AgentRun
	var output []byte
	err := db.pool.QueryRow(ctx,
		`SELECT id, status, started_at, finished_at, output, error FROM agent_runs WHERE id = $1`,
		runID,
	).Scan(&run.ID, &run.Status, &run.StartedAt, &run.FinishedAt, &output, &run.Error)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get agent run: %w", err)
	}

	if output != nil {
		run.Output = &types.RunOutput{}
		if err := json.Unmarshal(output, run.Output); err != nil {
			return nil, fmt.Errorf("failed to decode agent run output: %w", err)
		}
	}
	return &run, nil
}
