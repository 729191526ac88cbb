package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/job-ranker/internal/logger"
	"github.com/jonathan/job-ranker/internal/retry"
)

// Factory builds the pipeline for one attempt. cleanup releases whatever the
// factory opened and is called once the attempt finishes.
type Factory func(ctx context.Context) (p *Pipeline, cleanup func(), err error)

// Runner executes task invocations under a retry policy. Only errors raised
// before the pipeline starts are retried; a pipeline that ran is never rerun,
// whatever its status.
type Runner struct {
	build  Factory
	policy retry.Policy
	log    *zap.Logger
}

// NewRunner creates a Runner.
func NewRunner(build Factory, policy retry.Policy, log *zap.Logger) *Runner {
	return &Runner{build: build, policy: policy, log: logger.OrNop(log)}
}

// Run validates in and runs the pipeline. The error is non-nil only when no
// attempt reached the pipeline.
func (r *Runner) Run(ctx context.Context, in Input) (Result, error) {
	var res Result
	err := r.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		if err := in.Validate(); err != nil {
			return retry.Permanent(fmt.Errorf("invalid task input: %w", err))
		}

		p, cleanup, err := r.build(ctx)
		if err != nil {
			r.log.Warn("runner: failed to build pipeline",
				zap.Int("attempt", attempt),
				zap.String(logger.FieldRunID, in.AgentRunID.String()),
				zap.Error(err))
			return fmt.Errorf("failed to build pipeline: %w", err)
		}
		if cleanup != nil {
			defer cleanup()
		}

		res = p.Run(ctx, in)
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}
