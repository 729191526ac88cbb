package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/job-ranker/internal/config"
	"github.com/jonathan/job-ranker/internal/types"
)

// Store is the data access the pipeline needs. gateway.Repository and db.DB
// both implement it.
type Store interface {
	GetProfileBundle(ctx context.Context, userID uuid.UUID) (*types.ProfileBundle, error)
	UpdateProfileEmbedding(ctx context.Context, userID uuid.UUID, embedding []float32, at time.Time) error

	ListUnembeddedJobs(ctx context.Context, teamID uuid.UUID, limit int) ([]types.Job, error)
	UpdateJobEmbedding(ctx context.Context, jobID uuid.UUID, embedding []float32) error
	MatchJobs(ctx context.Context, teamID uuid.UUID, embedding []float32, count int, threshold float64) ([]types.JobMatch, error)
	GetJobsByID(ctx context.Context, ids []uuid.UUID) ([]types.Job, error)
	UpdateJobEnrichment(ctx context.Context, jobID uuid.UUID, enrichment types.JobEnrichment) error

	InsertRanking(ctx context.Context, ranking *types.Ranking) (*types.Ranking, error)
	UpdateAgentRun(ctx context.Context, runID uuid.UUID, update types.AgentRunUpdate) error
}

// Options holds the batching and shortlisting constants of a run.
// MatchThreshold is the minimum similarity; a negative value selects the
// default and zero keeps every match.
type Options struct {
	EmbeddingBatchSize      int
	UnembeddedJobLimit      int
	MatchCount              int
	MatchThreshold          float64
	EnrichmentBatchSize     int
	RankingBatchSize        int
	EmbeddingDescriptionMax int
	RankingDescriptionMax   int
	// BatchConcurrency bounds how many enrichment or ranking batches are in
	// flight at once. Embedding batches always run one at a time.
	BatchConcurrency int
	// FinalWriteTimeout bounds the failure status write made after the run
	// context has been canceled.
	FinalWriteTimeout time.Duration
	OnProgress        ProgressCallback
}

// DefaultOptions returns the production constants.
func DefaultOptions() Options {
	return Options{
		EmbeddingBatchSize:      100,
		UnembeddedJobLimit:      500,
		MatchCount:              50,
		MatchThreshold:          0.2,
		EnrichmentBatchSize:     5,
		RankingBatchSize:        5,
		EmbeddingDescriptionMax: 2000,
		RankingDescriptionMax:   1500,
		BatchConcurrency:        1,
		FinalWriteTimeout:       10 * time.Second,
	}
}

// OptionsFromConfig maps the pipeline section of the configuration.
func OptionsFromConfig(cfg config.PipelineConfig) Options {
	opts := DefaultOptions()
	opts.EmbeddingBatchSize = cfg.EmbeddingBatchSize
	opts.UnembeddedJobLimit = cfg.UnembeddedJobLimit
	opts.MatchCount = cfg.MatchCount
	opts.MatchThreshold = cfg.MatchThreshold
	opts.EnrichmentBatchSize = cfg.EnrichmentBatchSize
	opts.RankingBatchSize = cfg.RankingBatchSize
	opts.EmbeddingDescriptionMax = cfg.EmbeddingDescriptionMax
	opts.RankingDescriptionMax = cfg.RankingDescriptionMax
	opts.BatchConcurrency = cfg.BatchConcurrency
	return opts.withDefaults()
}

// withDefaults replaces non-positive sizes, limits and durations with the
// defaults. MatchThreshold is only replaced when negative: zero is a valid
// threshold that shortlists every embedded job.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.EmbeddingBatchSize <= 0 {
		o.EmbeddingBatchSize = def.EmbeddingBatchSize
	}
	if o.UnembeddedJobLimit <= 0 {
		o.UnembeddedJobLimit = def.UnembeddedJobLimit
	}
	if o.MatchCount <= 0 {
		o.MatchCount = def.MatchCount
	}
	if o.MatchThreshold < 0 {
		o.MatchThreshold = def.MatchThreshold
	}
	if o.EnrichmentBatchSize <= 0 {
		o.EnrichmentBatchSize = def.EnrichmentBatchSize
	}
	if o.RankingBatchSize <= 0 {
		o.RankingBatchSize = def.RankingBatchSize
	}
	if o.EmbeddingDescriptionMax <= 0 {
		o.EmbeddingDescriptionMax = def.EmbeddingDescriptionMax
	}
	if o.RankingDescriptionMax <= 0 {
		o.RankingDescriptionMax = def.RankingDescriptionMax
	}
	if o.BatchConcurrency <= 0 {
		o.BatchConcurrency = def.BatchConcurrency
	}
	if o.FinalWriteTimeout <= 0 {
		o.FinalWriteTimeout = def.FinalWriteTimeout
	}
	return o
}
