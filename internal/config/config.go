// Package config provides configuration loading and validation for the job ranker.
// Values come from an optional YAML file, then environment variables, then defaults.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable derived from a config key
// (pipeline.match_count -> JOB_RANKER_PIPELINE_MATCH_COUNT).
const EnvPrefix = "JOB_RANKER"

// Store backends
const (
	BackendREST     = "rest"
	BackendPostgres = "postgres"
)

// LLM providers
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config is the full runtime configuration.
type Config struct {
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Store    StoreConfig    `mapstructure:"store"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Task     TaskConfig     `mapstructure:"task"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

// GatewayConfig points at the REST data endpoint.
type GatewayConfig struct {
	URL        string        `mapstructure:"url"`
	ServiceKey string        `mapstructure:"service_key"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// StoreConfig selects how the pipeline reaches the data store.
type StoreConfig struct {
	Backend     string `mapstructure:"backend" validate:"oneof=rest postgres"`
	DatabaseURL string `mapstructure:"database_url"`
}

// LLMConfig configures the embedding and completion provider.
type LLMConfig struct {
	Provider          string        `mapstructure:"provider" validate:"oneof=openai gemini"`
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	EmbeddingModel    string        `mapstructure:"embedding_model"`
	CompletionModel   string        `mapstructure:"completion_model"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// PipelineConfig holds the batching and shortlisting constants.
type PipelineConfig struct {
	EmbeddingBatchSize      int     `mapstructure:"embedding_batch_size" validate:"gt=0,lte=100"`
	UnembeddedJobLimit      int     `mapstructure:"unembedded_job_limit" validate:"gt=0"`
	MatchCount              int     `mapstructure:"match_count" validate:"gt=0"`
	MatchThreshold          float64 `mapstructure:"match_threshold" validate:"gte=0,lte=1"`
	EnrichmentBatchSize     int     `mapstructure:"enrichment_batch_size" validate:"gt=0"`
	RankingBatchSize        int     `mapstructure:"ranking_batch_size" validate:"gt=0"`
	EmbeddingDescriptionMax int     `mapstructure:"embedding_description_max" validate:"gt=0"`
	RankingDescriptionMax   int     `mapstructure:"ranking_description_max" validate:"gt=0"`
	BatchConcurrency        int     `mapstructure:"batch_concurrency" validate:"gt=0"`
}

// TaskConfig is the scheduler-level policy applied to a whole invocation.
type TaskConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gt=0"`
	MinBackoff  time.Duration `mapstructure:"min_backoff" validate:"gt=0"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff" validate:"gtfield=MinBackoff"`
	MaxDuration time.Duration `mapstructure:"max_duration" validate:"gt=0"`
}

// ScraperConfig configures the profile scraping provider.
type ScraperConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	DatasetID    string        `mapstructure:"dataset_id"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	MaxWait      time.Duration `mapstructure:"max_wait" validate:"gt=0"`
}

// ServerConfig configures the trigger endpoint.
type ServerConfig struct {
	Port              int           `mapstructure:"port" validate:"gt=0,lte=65535"`
	TriggersPerSecond float64       `mapstructure:"triggers_per_second" validate:"gte=0"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	JSON  bool `mapstructure:"json"`
	Debug bool `mapstructure:"debug"`
}

// ConfigError reports a missing or invalid configuration value.
//
//nolint:revive // ConfigError reads better at call sites than Error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: '%s' %s", e.Field, e.Message)
}

// IsConfigError reports whether err is (or wraps) a *ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

// SetDefaults registers every key with its default value. Registering secrets
// with empty defaults lets viper resolve them from the environment on Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("gateway.url", "")
	v.SetDefault("gateway.service_key", "")
	v.SetDefault("gateway.timeout", 30*time.Second)

	v.SetDefault("store.backend", BackendREST)
	v.SetDefault("store.database_url", "")

	v.SetDefault("llm.provider", ProviderOpenAI)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	// Empty model names resolve to the provider's defaults.
	v.SetDefault("llm.embedding_model", "")
	v.SetDefault("llm.completion_model", "")
	v.SetDefault("llm.requests_per_second", 0)
	v.SetDefault("llm.timeout", 120*time.Second)

	v.SetDefault("pipeline.embedding_batch_size", 100)
	v.SetDefault("pipeline.unembedded_job_limit", 500)
	v.SetDefault("pipeline.match_count", 50)
	v.SetDefault("pipeline.match_threshold", 0.2)
	v.SetDefault("pipeline.enrichment_batch_size", 5)
	v.SetDefault("pipeline.ranking_batch_size", 5)
	v.SetDefault("pipeline.embedding_description_max", 2000)
	v.SetDefault("pipeline.ranking_description_max", 1500)
	v.SetDefault("pipeline.batch_concurrency", 1)

	v.SetDefault("task.max_attempts", 2)
	v.SetDefault("task.min_backoff", 5*time.Second)
	v.SetDefault("task.max_backoff", 60*time.Second)
	v.SetDefault("task.max_duration", 600*time.Second)

	v.SetDefault("scraper.base_url", "")
	v.SetDefault("scraper.api_key", "")
	v.SetDefault("scraper.dataset_id", "")
	v.SetDefault("scraper.poll_interval", 5*time.Second)
	v.SetDefault("scraper.max_wait", 5*time.Minute)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.triggers_per_second", 0)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("log.json", false)
	v.SetDefault("log.debug", false)
}

// bindConventionalEnv maps the environment variable names used by the
// surrounding deployment onto config keys, after the prefixed name.
func bindConventionalEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"gateway.url":         {"SUPABASE_URL"},
		"gateway.service_key": {"SUPABASE_SERVICE_ROLE_KEY"},
		"store.database_url":  {"DATABASE_URL"},
		"llm.api_key":         {"OPENAI_API_KEY", "GEMINI_API_KEY"},
		"scraper.api_key":     {"SCRAPER_API_KEY"},
	}
	for key, names := range bindings {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		args := append([]string{key, prefixed}, names...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}
	return nil
}

// NewViper returns a viper instance with defaults and environment bindings.
func NewViper() (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindConventionalEnv(v); err != nil {
		return nil, err
	}
	return v, nil
}

// Load reads the optional YAML file at path, overlays the environment and
// returns a validated Config.
func Load(path string) (*Config, error) {
	v, err := NewViper()
	if err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks value ranges. Credentials are checked separately by the
// Require* methods since not every command needs them.
func (c *Config) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("mapstructure")
	})
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ConfigError{
				Field:   strings.TrimPrefix(fe.Namespace(), "Config."),
				Message: fmt.Sprintf("failed '%s' validation (value: %v)", fe.Tag(), fe.Value()),
			}
		}
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}

// RequireStore checks the credentials of the selected store backend.
func (c *Config) RequireStore() error {
	switch c.Store.Backend {
	case BackendPostgres:
		if c.Store.DatabaseURL == "" {
			return &ConfigError{Field: "store.database_url", Message: "is required for the postgres backend"}
		}
	default:
		if c.Gateway.URL == "" {
			return &ConfigError{Field: "gateway.url", Message: "is required"}
		}
		if c.Gateway.ServiceKey == "" {
			return &ConfigError{Field: "gateway.service_key", Message: "is required"}
		}
	}
	return nil
}

// RequireLLM checks the provider credentials.
func (c *Config) RequireLLM() error {
	if c.LLM.APIKey == "" {
		return &ConfigError{Field: "llm.api_key", Message: "is required"}
	}
	if c.LLM.Provider == ProviderOpenAI && c.LLM.BaseURL == "" {
		return &ConfigError{Field: "llm.base_url", Message: "is required for the openai provider"}
	}
	return nil
}

// RequirePipeline checks everything a pipeline run needs before any work starts.
func (c *Config) RequirePipeline() error {
	if err := c.RequireStore(); err != nil {
		return err
	}
	return c.RequireLLM()
}

// RequireScraper checks the scraping provider settings.
func (c *Config) RequireScraper() error {
	if c.Scraper.BaseURL == "" {
		return &ConfigError{Field: "scraper.base_url", Message: "is required"}
	}
	if c.Scraper.APIKey == "" {
		return &ConfigError{Field: "scraper.api_key", Message: "is required"}
	}
	return nil
}
