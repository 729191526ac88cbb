package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/job-ranker/internal/config"
	"github.com/jonathan/job-ranker/internal/db"
	"github.com/jonathan/job-ranker/internal/gateway"
	"github.com/jonathan/job-ranker/internal/llm"
	"github.com/jonathan/job-ranker/internal/logger"
	"github.com/jonathan/job-ranker/internal/pipeline"
	"github.com/jonathan/job-ranker/internal/retry"
	"github.com/jonathan/job-ranker/internal/server"
	"github.com/jonathan/job-ranker/internal/types"
)

// runStore is what the commands need from a storage backend.
type runStore interface {
	pipeline.Store
	server.RunReader
	ListRankings(ctx context.Context, agentRunID uuid.UUID) ([]types.Ranking, error)
}

var (
	_ runStore = (*gateway.Repository)(nil)
	_ runStore = (*db.DB)(nil)
)

// loadConfig reads the config file named by --config plus the environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, verbose bool) (*zap.Logger, error) {
	log, err := logger.New(cfg.Log.JSON, cfg.Log.Debug || verbose)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}

// openStore connects the configured backend. The returned cleanup is never nil.
func openStore(ctx context.Context, cfg *config.Config) (runStore, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		database, err := db.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, func() {}, err
		}
		return database, database.Close, nil
	default:
		client, err := gateway.NewClient(cfg.Gateway.URL, cfg.Gateway.ServiceKey,
			gateway.WithHTTPClient(&http.Client{Timeout: cfg.Gateway.Timeout}))
		if err != nil {
			return nil, func() {}, fmt.Errorf("failed to create gateway client: %w", err)
		}
		return gateway.NewRepository(client), func() {}, nil
	}
}

func llmConfig(cfg config.LLMConfig) llm.Config {
	return llm.Config{
		Provider:          llm.Provider(cfg.Provider),
		APIKey:            cfg.APIKey,
		BaseURL:           cfg.BaseURL,
		EmbeddingModel:    cfg.EmbeddingModel,
		CompletionModel:   cfg.CompletionModel,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Timeout:           cfg.Timeout,
	}.WithDefaults()
}

func retryPolicy(cfg config.TaskConfig) retry.Policy {
	return retry.Policy{
		MaxAttempts: cfg.MaxAttempts,
		MinBackoff:  cfg.MinBackoff,
		MaxBackoff:  cfg.MaxBackoff,
		MaxDuration: cfg.MaxDuration,
	}
}

// pipelineFactory opens a store and an LLM client for every attempt and
// closes both when the attempt ends.
func pipelineFactory(cfg *config.Config, log *zap.Logger, onProgress pipeline.ProgressCallback) pipeline.Factory {
	opts := pipeline.OptionsFromConfig(cfg.Pipeline)
	opts.OnProgress = onProgress
	llmCfg := llmConfig(cfg.LLM)

	return func(ctx context.Context) (*pipeline.Pipeline, func(), error) {
		store, closeStore, err := openStore(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}

		client, err := llm.NewClient(ctx, llmCfg, log)
		if err != nil {
			closeStore()
			return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
		}

		cleanup := func() {
			if err := client.Close(); err != nil {
				log.Warn("failed to close LLM client", zap.Error(err))
			}
			closeStore()
		}
		return pipeline.New(store, client, client, opts, log), cleanup, nil
	}
}
