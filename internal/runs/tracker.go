// Package runs records the lifecycle of an agent run on its store row.
package runs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/job-ranker/internal/logger"
	"github.com/jonathan/job-ranker/internal/types"
)

// Updater applies a field-scoped patch to an agent run.
type Updater interface {
	UpdateAgentRun(ctx context.Context, runID uuid.UUID, update types.AgentRunUpdate) error
}

// Tracker writes status transitions for one run. Every write is a single
// patch without retries; failures are logged and dropped.
type Tracker struct {
	store Updater
	runID uuid.UUID
	log   *zap.Logger
	now   func() time.Time
}

// NewTracker creates a Tracker for runID.
func NewTracker(store Updater, runID uuid.UUID, log *zap.Logger) *Tracker {
	return &Tracker{
		store: store,
		runID: runID,
		log:   logger.OrNop(log).With(zap.String(logger.FieldRunID, runID.String())),
		now:   time.Now,
	}
}

// RunID returns the tracked run id.
func (t *Tracker) RunID() uuid.UUID {
	return t.runID
}

// MarkRunning sets status running and the start time.
func (t *Tracker) MarkRunning(ctx context.Context) {
	now := t.now().UTC()
	t.apply(ctx, "mark run running", types.AgentRunUpdate{
		Status:    types.RunStatusRunning,
		StartedAt: &now,
	})
}

// MarkPhase records the phase just reached and the counts so far.
func (t *Tracker) MarkPhase(ctx context.Context, phase string, metrics types.RunMetrics) {
	t.apply(ctx, "record phase", types.AgentRunUpdate{
		Output: &types.RunOutput{Phase: phase, RunMetrics: metrics},
	}, zap.String(logger.FieldPhase, phase))
}

// MarkSucceeded sets the terminal succeeded status with the final metrics.
func (t *Tracker) MarkSucceeded(ctx context.Context, phase string, metrics types.RunMetrics) {
	now := t.now().UTC()
	t.apply(ctx, "mark run succeeded", types.AgentRunUpdate{
		Status:     types.RunStatusSucceeded,
		FinishedAt: &now,
		Output:     &types.RunOutput{Phase: phase, RunMetrics: metrics},
	})
}

// MarkFailed sets the terminal failed status. phase is the last phase reached.
func (t *Tracker) MarkFailed(ctx context.Context, phase string, errText string, metrics types.RunMetrics) {
	now := t.now().UTC()
	t.apply(ctx, "mark run failed", types.AgentRunUpdate{
		Status:     types.RunStatusFailed,
		FinishedAt: &now,
		Output:     &types.RunOutput{Phase: phase, RunMetrics: metrics},
		Error:      &errText,
	})
}

func (t *Tracker) apply(ctx context.Context, action string, update types.AgentRunUpdate, fields ...zap.Field) {
	if err := t.store.UpdateAgentRun(ctx, t.runID, update); err != nil {
		t.log.Warn("runs: failed to "+action, append(fields, zap.Error(err))...)
	}
}
