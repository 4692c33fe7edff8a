package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	APIKey string `envconfig:"API_KEY"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	VerdictModel        string `envconfig:"VERDICT_MODEL"`

	// Retrieval tuning. MinScore and the keyword-count static ranking carry
	// empirical values from the original corpus; treat them as calibration
	// knobs rather than truths.
	RetrievalTopK     int     `envconfig:"RETRIEVAL_TOP_K" default:"5"`
	RetrievalMinScore float64 `envconfig:"RETRIEVAL_MIN_SCORE" default:"0.7"`

	// Bulk ingestion throttling. The delays are deliberate backpressure
	// against provider rate limits, not incidental latency.
	IngestBatchSize  int           `envconfig:"INGEST_BATCH_SIZE" default:"10"`
	IngestItemDelay  time.Duration `envconfig:"INGEST_ITEM_DELAY" default:"200ms"`
	IngestBatchDelay time.Duration `envconfig:"INGEST_BATCH_DELAY" default:"2s"`

	IndexReadyRetries   int           `envconfig:"INDEX_READY_RETRIES" default:"10"`
	IndexReadyDelay     time.Duration `envconfig:"INDEX_READY_DELAY" default:"2s"`
	RefreshPollInterval time.Duration `envconfig:"REFRESH_POLL_INTERVAL" default:"5m"`
	VerificationTimeout time.Duration `envconfig:"VERIFICATION_TIMEOUT" default:"30s"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"skillverify-corpus"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("SKILLVERIFY", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}
