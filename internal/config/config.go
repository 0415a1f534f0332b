package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "INKWELL"

type Config struct {
	Port    string `envconfig:"PORT" default:"8080"`
	Debug   bool   `envconfig:"DEBUG" default:"false"`
	LogMode string `envconfig:"LOG_MODE" default:"production"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// APIToken enables bearer authentication when set
	APIToken string `envconfig:"API_TOKEN"`

	OpenAIAPIKey        string  `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL       string  `envconfig:"OPENAI_BASE_URL"`
	EmbeddingModel      string  `envconfig:"EMBEDDING_MODEL"`
	EmbeddingDimensions int     `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	GenModel            string  `envconfig:"GEN_MODEL"`
	GenTemperature      float32 `envconfig:"GEN_TEMPERATURE" default:"0.7"`
	GenMaxTokens        int     `envconfig:"GEN_MAX_TOKENS" default:"2000"`
	GenRatePerSec       float64 `envconfig:"GEN_RATE_PER_SEC" default:"2"`

	ChunkMaxTokens     int    `envconfig:"CHUNK_MAX_TOKENS" default:"800"`
	ChunkOverlapTokens int    `envconfig:"CHUNK_OVERLAP_TOKENS" default:"150"`
	Tokenizer          string `envconfig:"TOKENIZER" default:"estimate"`

	DiffTimeout        time.Duration `envconfig:"DIFF_TIMEOUT" default:"1s"`
	ProviderTimeout    time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"60s"`
	ProviderMaxRetries uint64        `envconfig:"PROVIDER_MAX_RETRIES" default:"3"`

	IndexPollInterval time.Duration `envconfig:"INDEX_POLL_INTERVAL" default:"10s"`
	IndexLease        time.Duration `envconfig:"INDEX_LEASE" default:"10m"`
	IndexBatchSize    int           `envconfig:"INDEX_BATCH_SIZE" default:"64"`
	IndexConcurrency  int           `envconfig:"INDEX_CONCURRENCY" default:"2"`

	S3Endpoint  string        `envconfig:"S3_ENDPOINT"`
	S3AccessKey string        `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string        `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string        `envconfig:"S3_BUCKET" default:"inkwell-snapshots"`
	S3Region    string        `envconfig:"S3_REGION" default:"us-east-1"`
	S3URLExpiry time.Duration `envconfig:"S3_URL_EXPIRY" default:"15m"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.ChunkMaxTokens <= 0 {
		return fmt.Errorf("CHUNK_MAX_TOKENS must be positive, got %d", c.ChunkMaxTokens)
	}
	if c.ChunkOverlapTokens < 0 || c.ChunkOverlapTokens >= c.ChunkMaxTokens {
		return fmt.Errorf("CHUNK_OVERLAP_TOKENS must be in [0, %d), got %d", c.ChunkMaxTokens, c.ChunkOverlapTokens)
	}
	if c.IndexLease <= 0 {
		return fmt.Errorf("INDEX_LEASE must be positive, got %s", c.IndexLease)
	}
	switch c.Tokenizer {
	case "estimate", "tiktoken":
	default:
		return fmt.Errorf("TOKENIZER must be estimate or tiktoken, got %q", c.Tokenizer)
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasAuth() bool {
	return c.APIToken != ""
}
