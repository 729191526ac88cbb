package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"SUPABASE_URL", "SUPABASE_SERVICE_ROLE_KEY", "DATABASE_URL",
		"OPENAI_API_KEY", "GEMINI_API_KEY", "SCRAPER_API_KEY",
		"JOB_RANKER_GATEWAY_URL", "JOB_RANKER_GATEWAY_SERVICE_KEY", "JOB_RANKER_LLM_API_KEY",
		"JOB_RANKER_PIPELINE_MATCH_COUNT", "JOB_RANKER_STORE_BACKEND",
	} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, BackendREST, cfg.Store.Backend)
	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, 100, cfg.Pipeline.EmbeddingBatchSize)
	assert.Equal(t, 500, cfg.Pipeline.UnembeddedJobLimit)
	assert.Equal(t, 50, cfg.Pipeline.MatchCount)
	assert.InDelta(t, 0.2, cfg.Pipeline.MatchThreshold, 1e-9)
	assert.Equal(t, 5, cfg.Pipeline.EnrichmentBatchSize)
	assert.Equal(t, 5, cfg.Pipeline.RankingBatchSize)
	assert.Equal(t, 2000, cfg.Pipeline.EmbeddingDescriptionMax)
	assert.Equal(t, 1500, cfg.Pipeline.RankingDescriptionMax)
	assert.Equal(t, 1, cfg.Pipeline.BatchConcurrency)
	assert.Equal(t, 2, cfg.Task.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Task.MinBackoff)
	assert.Equal(t, 60*time.Second, cfg.Task.MaxBackoff)
	assert.Equal(t, 600*time.Second, cfg.Task.MaxDuration)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)

	content := `
gateway:
  url: https://data.example.com/rest/v1
  service_key: service-key
llm:
  api_key: sk-test
  completion_model: gpt-4o
pipeline:
  match_count: 25
  batch_concurrency: 3
task:
  max_duration: 5m
log:
  json: true
`
	path := filepath.Join(t.TempDir(), "job_ranker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://data.example.com/rest/v1", cfg.Gateway.URL)
	assert.Equal(t, "service-key", cfg.Gateway.ServiceKey)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o", cfg.LLM.CompletionModel)
	assert.Equal(t, 25, cfg.Pipeline.MatchCount)
	assert.Equal(t, 3, cfg.Pipeline.BatchConcurrency)
	assert.Equal(t, 5*time.Minute, cfg.Task.MaxDuration)
	assert.True(t, cfg.Log.JSON)
	require.NoError(t, cfg.RequirePipeline())
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUPABASE_URL", "https://env.example.com/rest/v1")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "env-key")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("JOB_RANKER_PIPELINE_MATCH_COUNT", "10")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com/rest/v1", cfg.Gateway.URL)
	assert.Equal(t, "env-key", cfg.Gateway.ServiceKey)
	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
	assert.Equal(t, 10, cfg.Pipeline.MatchCount)
}

func TestLoad_PrefixedEnvWinsOverConventional(t *testing.T) {
	clearEnv(t)
	t.Setenv("JOB_RANKER_LLM_API_KEY", "sk-prefixed")
	t.Setenv("OPENAI_API_KEY", "sk-conventional")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-prefixed", cfg.LLM.APIKey)
}

func TestLoad_FileNotFound(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("/nonexistent/path/job_ranker.yaml")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidate_Ranges(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"embedding batch above provider limit", func(c *Config) { c.Pipeline.EmbeddingBatchSize = 101 }, "pipeline.embedding_batch_size"},
		{"zero match count", func(c *Config) { c.Pipeline.MatchCount = 0 }, "pipeline.match_count"},
		{"threshold above one", func(c *Config) { c.Pipeline.MatchThreshold = 1.5 }, "pipeline.match_threshold"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "sqlite" }, "store.backend"},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "other" }, "llm.provider"},
		{"max backoff below min", func(c *Config) { c.Task.MaxBackoff = time.Second }, "task.max_backoff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.True(t, IsConfigError(err))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestRequirePipeline_MissingCredentials(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	err = cfg.RequirePipeline()
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.Contains(t, err.Error(), "gateway.url")

	cfg.Gateway.URL = "https://data.example.com/rest/v1"
	cfg.Gateway.ServiceKey = "key"
	err = cfg.RequirePipeline()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.api_key")

	cfg.LLM.APIKey = "sk"
	assert.NoError(t, cfg.RequirePipeline())
}

func TestRequireStore_Postgres(t *testing.T) {
	cfg := &Config{Store: StoreConfig{Backend: BackendPostgres}}
	err := cfg.RequireStore()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url")

	cfg.Store.DatabaseURL = "postgres://localhost/jobs"
	assert.NoError(t, cfg.RequireStore())
}

func TestRequireScraper(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.RequireScraper())

	cfg.Scraper.BaseURL = "https://scraper.example.com"
	cfg.Scraper.APIKey = "key"
	assert.NoError(t, cfg.RequireScraper())
}
