// Package pipeline orchestrates one enrichment and ranking run: profile
// context, embeddings, shortlisting, enrichment and ranking, with the run's
// status recorded along the way.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/job-ranker/internal/enrichment"
	"github.com/jonathan/job-ranker/internal/llm"
	"github.com/jonathan/job-ranker/internal/logger"
	"github.com/jonathan/job-ranker/internal/pipeline/steps"
	"github.com/jonathan/job-ranker/internal/profile"
	"github.com/jonathan/job-ranker/internal/ranking"
	"github.com/jonathan/job-ranker/internal/runs"
	"github.com/jonathan/job-ranker/internal/types"
)

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Step     string           `json:"step"`
	Category string           `json:"category"`
	Message  string           `json:"message"`
	RunID    string           `json:"run_id,omitempty"`
	Metrics  types.RunMetrics `json:"metrics"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// Input identifies the run.
type Input struct {
	TeamID     uuid.UUID `json:"teamId"`
	UserID     uuid.UUID `json:"userId"`
	AgentRunID uuid.UUID `json:"agentRunId"`
}

// Validate rejects nil identifiers.
func (in Input) Validate() error {
	switch {
	case in.TeamID == uuid.Nil:
		return errors.New("team id is required")
	case in.UserID == uuid.Nil:
		return errors.New("user id is required")
	case in.AgentRunID == uuid.Nil:
		return errors.New("agent run id is required")
	}
	return nil
}

// Result is the outcome of Run. Err is set when Status is failed.
type Result struct {
	Status  string
	Phase   string
	Metrics types.RunMetrics
	Err     error
}

// Pipeline runs the phases against a store and an LLM provider.
type Pipeline struct {
	store     Store
	embedder  llm.Embedder
	completer llm.Completer
	opts      Options
	log       *zap.Logger
	now       func() time.Time
}

// New creates a Pipeline. Non-positive sizes and limits take their defaults,
// as does a negative MatchThreshold; see DefaultOptions.
func New(store Store, embedder llm.Embedder, completer llm.Completer, opts Options, log *zap.Logger) *Pipeline {
	return &Pipeline{
		store:     store,
		embedder:  embedder,
		completer: completer,
		opts:      opts.withDefaults(),
		log:       logger.OrNop(log),
		now:       time.Now,
	}
}

// runState is shared by concurrent batches.
type runState struct {
	mu        sync.Mutex
	phase     string
	completed map[string]bool
	metrics   types.RunMetrics
}

func (s *runState) update(fn func(m *types.RunMetrics)) {
	s.mu.Lock()
	fn(&s.metrics)
	s.mu.Unlock()
}

func (s *runState) snapshot() (string, types.RunMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase, s.metrics
}

// run carries the per-invocation collaborators.
type run struct {
	*Pipeline
	in      Input
	log     *zap.Logger
	tracker *runs.Tracker
	state   *runState
}

// Run executes every phase and records the outcome on the agent run. It never
// returns an error: failures, panics and cancellation end in status failed.
func (p *Pipeline) Run(ctx context.Context, in Input) (res Result) {
	log := p.log.With(
		zap.String(logger.FieldRunID, in.AgentRunID.String()),
		zap.String(logger.FieldTeamID, in.TeamID.String()),
		zap.String(logger.FieldUserID, in.UserID.String()),
	)
	r := &run{
		Pipeline: p,
		in:       in,
		log:      log,
		tracker:  runs.NewTracker(p.store, in.AgentRunID, log),
		state:    &runState{phase: steps.PhaseQueued, completed: map[string]bool{}},
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("pipeline: panic", zap.Any("panic", rec), zap.Stack("stack"))
			res = r.fail(ctx, fmt.Errorf("panic: %v", rec))
		}
	}()

	if err := in.Validate(); err != nil {
		return r.fail(ctx, err)
	}

	r.tracker.MarkRunning(ctx)
	log.Info("pipeline: run started")

	if err := r.execute(ctx); err != nil {
		return r.fail(ctx, err)
	}

	phase, metrics := r.state.snapshot()
	log.Info("pipeline: run succeeded",
		zap.Int("jobs_embedded", metrics.JobsEmbedded),
		zap.Int("jobs_shortlisted", metrics.JobsShortlisted),
		zap.Int("jobs_enriched", metrics.JobsEnriched),
		zap.Int("jobs_ranked", metrics.JobsRanked),
	)
	return Result{Status: types.RunStatusSucceeded, Phase: phase, Metrics: metrics}
}

func (r *run) execute(ctx context.Context) error {
	// 1. Context build
	bundle, err := r.store.GetProfileBundle(ctx, r.in.UserID)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	profileContext := profile.BuildContext(bundle)
	if err := r.advance(ctx, steps.PhaseContextBuilt, "built profile context"); err != nil {
		return err
	}

	// 2. Profile embedding
	profileEmbedding, err := r.embedProfile(ctx, profileContext)
	if err != nil {
		return err
	}
	if err := r.advance(ctx, steps.PhaseProfileEmbedded, "embedded profile"); err != nil {
		return err
	}

	// 3. Job embedding
	if err := r.embedJobs(ctx); err != nil {
		return err
	}
	if err := r.advance(ctx, steps.PhaseJobsEmbedded, "embedded unembedded jobs"); err != nil {
		return err
	}

	// 4. Shortlisting
	matches, err := r.store.MatchJobs(ctx, r.in.TeamID, profileEmbedding, r.opts.MatchCount, r.opts.MatchThreshold)
	if err != nil {
		return fmt.Errorf("failed to match jobs: %w", err)
	}
	r.state.update(func(m *types.RunMetrics) { m.JobsShortlisted = len(matches) })
	if err := r.advance(ctx, steps.PhaseShortlisted, fmt.Sprintf("shortlisted %d jobs", len(matches))); err != nil {
		return err
	}

	if len(matches) == 0 {
		r.log.Info("pipeline: no jobs matched the profile")
		return r.finalize(ctx)
	}

	jobs, err := r.loadShortlist(ctx, matches)
	if err != nil {
		return err
	}

	// 5. Enrichment
	if err := r.enrichJobs(ctx, jobs); err != nil {
		return err
	}
	if err := r.advance(ctx, steps.PhaseEnriched, "enriched shortlisted jobs"); err != nil {
		return err
	}

	// 6. Ranking
	if err := r.rankJobs(ctx, jobs, profileContext, bundle.Tightness()); err != nil {
		return err
	}
	if err := r.advance(ctx, steps.PhaseRanked, "ranked shortlisted jobs"); err != nil {
		return err
	}

	// 7. Finalize
	return r.finalize(ctx)
}

func (r *run) embedProfile(ctx context.Context, profileContext string) ([]float32, error) {
	vectors, err := r.embedder.Embed(ctx, []string{profileContext})
	if err != nil {
		return nil, fmt.Errorf("failed to embed profile: %w", err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("failed to embed profile: got %d vectors", len(vectors))
	}

	r.warnOnError("update profile embedding",
		r.store.UpdateProfileEmbedding(ctx, r.in.UserID, vectors[0], r.now().UTC()))
	return vectors[0], nil
}

// embedJobs embeds jobs without an embedding, one batch at a time. A failed
// embedding call fails the run; a failed write is logged and counted anyway.
func (r *run) embedJobs(ctx context.Context) error {
	jobs, err := r.store.ListUnembeddedJobs(ctx, r.in.TeamID, r.opts.UnembeddedJobLimit)
	if err != nil {
		return fmt.Errorf("failed to list unembedded jobs: %w", err)
	}

	for n, batch := range chunk(jobs, r.opts.EmbeddingBatchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}

		texts := make([]string, len(batch))
		for i := range batch {
			texts[i] = batch[i].EmbeddingText(r.opts.EmbeddingDescriptionMax)
		}

		vectors, err := r.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed job batch %d: %w", n+1, err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("failed to embed job batch %d: got %d vectors for %d jobs", n+1, len(vectors), len(batch))
		}

		for i := range batch {
			r.warnOnError("update job embedding",
				r.store.UpdateJobEmbedding(ctx, batch[i].ID, vectors[i]),
				zap.String(logger.FieldJobID, batch[i].ID.String()))
		}
		r.state.update(func(m *types.RunMetrics) { m.JobsEmbedded += len(batch) })
	}
	return nil
}

// loadShortlist fetches the matched rows in one query and returns them in match order.
func (r *run) loadShortlist(ctx context.Context, matches []types.JobMatch) ([]types.Job, error) {
	ids := make([]uuid.UUID, len(matches))
	for i, m := range matches {
		ids[i] = m.JobID
	}

	rows, err := r.store.GetJobsByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load shortlisted jobs: %w", err)
	}

	byID := make(map[uuid.UUID]types.Job, len(rows))
	for _, j := range rows {
		byID[j.ID] = j
	}

	jobs := make([]types.Job, 0, len(ids))
	for _, id := range ids {
		if j, ok := byID[id]; ok {
			jobs = append(jobs, j)
			delete(byID, id)
		} else {
			r.log.Warn("pipeline: shortlisted job not found", zap.String(logger.FieldJobID, id.String()))
		}
	}
	return jobs, nil
}

func (r *run) enrichJobs(ctx context.Context, jobs []types.Job) error {
	return r.forEachBatch(ctx, jobs, r.opts.EnrichmentBatchSize, func(ctx context.Context, n int, batch []types.Job) {
		log := r.log.With(zap.String(logger.FieldPhase, steps.PhaseEnriched), zap.Int(logger.FieldBatch, n+1))

		res, err := enrichment.EnrichBatch(ctx, r.completer, batch, 0)
		if err != nil {
			log.Warn("pipeline: enrichment batch failed",
				zap.Int("jobs", len(batch)),
				zap.Bool("rate_limited", llm.IsRateLimited(err)),
				zap.Error(err))
			return
		}
		for _, reason := range res.Ignored {
			log.Warn("pipeline: ignored enrichment result", zap.String("reason", reason))
		}

		index := make(map[uuid.UUID]int, len(batch))
		for i := range batch {
			index[batch[i].ID] = i
		}
		for _, result := range res.Results {
			e := result.Enrichment
			r.warnOnError("update job enrichment",
				r.store.UpdateJobEnrichment(ctx, result.JobID, e),
				zap.String(logger.FieldJobID, result.JobID.String()))

			// Ranking prompts prefer the enriched seniority.
			job := &batch[index[result.JobID]]
			job.AISeniority = &e.Seniority
			job.AISummary = &e.Summary
			job.AIDescriptionMD = &e.DescriptionMarkdown
		}
		r.state.update(func(m *types.RunMetrics) { m.JobsEnriched += len(res.Results) })
	})
}

func (r *run) rankJobs(ctx context.Context, jobs []types.Job, profileContext string, tightness *float64) error {
	return r.forEachBatch(ctx, jobs, r.opts.RankingBatchSize, func(ctx context.Context, n int, batch []types.Job) {
		log := r.log.With(zap.String(logger.FieldPhase, steps.PhaseRanked), zap.Int(logger.FieldBatch, n+1))

		res, err := ranking.RankBatch(ctx, r.completer, ranking.Request{
			ProfileContext: profileContext,
			Tightness:      tightness,
			Jobs:           batch,
			DescriptionMax: r.opts.RankingDescriptionMax,
		})
		if err != nil {
			log.Warn("pipeline: ranking batch failed",
				zap.Int("jobs", len(batch)),
				zap.Bool("rate_limited", llm.IsRateLimited(err)),
				zap.Error(err))
			return
		}
		for _, reason := range res.Ignored {
			log.Warn("pipeline: ignored ranking result", zap.String("reason", reason))
		}

		inserted := 0
		for _, result := range res.Results {
			jobField := zap.String(logger.FieldJobID, result.JobID.String())
			if result.ScoreDiverges() {
				log.Warn("pipeline: model score differs from weighted breakdown",
					jobField,
					zap.Float64("model_score", result.ModelScore),
					zap.Int("weighted_score", result.Score()))
			}

			_, err := r.store.InsertRanking(ctx, result.Ranking(r.in.TeamID, r.in.AgentRunID, tightness))
			if r.warnOnError("insert ranking", err, jobField) {
				inserted++
			}
		}
		r.state.update(func(m *types.RunMetrics) { m.JobsRanked += inserted })
	})
}

// advance validates and records a phase transition.
func (r *run) advance(ctx context.Context, phase, message string) error {
	metrics, err := r.enter(phase)
	if err != nil {
		return err
	}

	r.log.Info("pipeline: "+message, zap.String(logger.FieldPhase, phase))
	r.tracker.MarkPhase(ctx, phase, metrics)
	r.emit(phase, message, metrics)
	return nil
}

func (r *run) finalize(ctx context.Context) error {
	metrics, err := r.enter(steps.PhaseFinalized)
	if err != nil {
		return err
	}

	r.tracker.MarkSucceeded(ctx, steps.PhaseFinalized, metrics)
	r.emit(steps.PhaseFinalized, "run finalized", metrics)
	return nil
}

// enter marks phase completed once its dependencies are, and returns the
// metrics at that point. No phase follows a terminal one.
func (r *run) enter(phase string) (types.RunMetrics, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	if steps.IsTerminal(r.state.phase) {
		return types.RunMetrics{}, fmt.Errorf("cannot enter %s: run already ended in %s", phase, r.state.phase)
	}
	if err := steps.ValidateDependencies(r.state.completed, phase); err != nil {
		return types.RunMetrics{}, err
	}
	r.state.completed[phase] = true
	r.state.phase = phase
	return r.state.metrics, nil
}

// fail records status failed. The write uses a context detached from ctx so a
// canceled run is still marked.
func (r *run) fail(ctx context.Context, err error) Result {
	phase, metrics := r.state.snapshot()

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.FinalWriteTimeout)
	defer cancel()

	r.log.Error("pipeline: run failed", zap.String(logger.FieldPhase, phase), zap.Error(err))
	r.tracker.MarkFailed(writeCtx, phase, err.Error(), metrics)
	r.emit(steps.PhaseFailed, err.Error(), metrics)

	return Result{Status: types.RunStatusFailed, Phase: phase, Metrics: metrics, Err: err}
}

func (r *run) emit(step, message string, metrics types.RunMetrics) {
	if r.opts.OnProgress == nil {
		return
	}
	category := steps.CategoryLifecycle
	if def, ok := steps.StepRegistry[step]; ok {
		category = def.Category
	}
	r.opts.OnProgress(ProgressEvent{
		Step:     step,
		Category: category,
		Message:  message,
		RunID:    r.in.AgentRunID.String(),
		Metrics:  metrics,
	})
}

// warnOnError logs a failed incidental write and reports whether err was nil.
func (r *run) warnOnError(action string, err error, fields ...zap.Field) bool {
	if err == nil {
		return true
	}
	r.log.Warn("pipeline: failed to "+action, append(fields, zap.Error(err))...)
	return false
}
