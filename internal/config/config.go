// Package config loads the service configuration from a YAML file with
// environment variable overrides, the same two-layer approach the rest
// of this codebase's ancestry uses: a config.yaml checked into the
// deployment, overridden at runtime by env vars for secrets and
// per-environment tuning.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// DatabaseConfig holds the relational store connection.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// VectorDatabaseConfig holds the vector store connection. Backend
// selects between the pgvector and qdrant implementations.
type VectorDatabaseConfig struct {
	Backend string `yaml:"backend"` // "pgvector" | "qdrant"
	URL     string `yaml:"url"`
}

// BrokerConfig holds the usage-event transport connection.
type BrokerConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// ObjectStoreConfig holds the S3/MinIO-compatible object store settings.
type ObjectStoreConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// BillingConfig holds the Limit Gate's upstream billing service.
type BillingConfig struct {
	ServiceURL string `yaml:"service_url"`
}

// AuthConfig holds the JWKS/authorization-server settings used to
// validate bearer tokens on inbound requests.
type AuthConfig struct {
	AuthorizationServerURL string `yaml:"authorization_server_url"`
	JWKSURL                string `yaml:"jwks_url"`
}

// ScrapingConfig holds crawl tuning knobs.
type ScrapingConfig struct {
	Strategy          string        `yaml:"strategy"` // auto|requests_first|playwright_only|requests_only
	EnableFallback    bool          `yaml:"enable_fallback"`
	PlaywrightTimeout time.Duration `yaml:"playwright_timeout"`
	RequestsTimeout   time.Duration `yaml:"requests_timeout"`
	MaxPagesPerSite   int           `yaml:"max_pages_per_site"`
	Delay             time.Duration `yaml:"delay"`
}

// ModelConfig holds the classifier's LLM credentials.
type ModelConfig struct {
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
}

// EmbeddingConfig holds the Vector Ingestor's embedding endpoint.
type EmbeddingConfig struct {
	Host      string `yaml:"host"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	BatchSize int    `yaml:"batch_size"`
}

// Config is the root configuration object.
type Config struct {
	Database      DatabaseConfig       `yaml:"database"`
	VectorStore   VectorDatabaseConfig `yaml:"vector_store"`
	Broker        BrokerConfig         `yaml:"broker"`
	ObjectStore   ObjectStoreConfig    `yaml:"object_store"`
	Billing       BillingConfig        `yaml:"billing"`
	Auth          AuthConfig           `yaml:"auth"`
	Scraping      ScrapingConfig       `yaml:"scraping"`
	Models        ModelConfig          `yaml:"models"`
	Embeddings    EmbeddingConfig      `yaml:"embeddings"`
	LogLevel      string               `yaml:"log_level"`
}

// Load reads filename as YAML, then overlays environment variables on
// top. A missing file is not an error when env vars alone can satisfy
// required fields; an empty filename skips the file entirely.
func Load(filename string) (*Config, error) {
	cfg := defaultConfig()

	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshaling config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Scraping: ScrapingConfig{
			Strategy:          "auto",
			EnableFallback:    true,
			PlaywrightTimeout: 30 * time.Second,
			RequestsTimeout:   10 * time.Second,
			MaxPagesPerSite:   100,
			Delay:             500 * time.Millisecond,
		},
		LogLevel: "info",
		VectorStore: VectorDatabaseConfig{
			Backend: "pgvector",
		},
		Embeddings: EmbeddingConfig{
			Model:     "text-embedding-3-small",
			BatchSize: 10,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	strVar(&cfg.Database.URL, "DATABASE_URL")
	strVar(&cfg.VectorStore.URL, "VECTOR_DATABASE_URL")
	strVar(&cfg.Billing.ServiceURL, "BILLING_SERVICE_URL")
	strVar(&cfg.Auth.AuthorizationServerURL, "AUTHORIZATION_SERVER_URL")
	strVar(&cfg.Auth.JWKSURL, "JWKS_URL")
	strVar(&cfg.Models.OpenAIAPIKey, "OPENAI_API_KEY")
	strVar(&cfg.Models.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	strVar(&cfg.Embeddings.Host, "EMBEDDINGS_HOST")
	strVar(&cfg.Embeddings.APIKey, "EMBEDDINGS_API_KEY")
	strVar(&cfg.Embeddings.Model, "EMBEDDINGS_MODEL")
	intVar(&cfg.Embeddings.BatchSize, "EMBEDDINGS_BATCH_SIZE")
	strVar(&cfg.LogLevel, "LOG_LEVEL")

	if v := os.Getenv("RABBITMQ_BROKERS"); v != "" {
		cfg.Broker.Brokers = splitCSV(v)
	}
	strVar(&cfg.Broker.Topic, "RABBITMQ_TOPIC")

	strVar(&cfg.ObjectStore.Endpoint, "MINIO_ENDPOINT")
	strVar(&cfg.ObjectStore.Bucket, "MINIO_BUCKET")
	strVar(&cfg.ObjectStore.AccessKey, "MINIO_ACCESS_KEY")
	strVar(&cfg.ObjectStore.SecretKey, "MINIO_SECRET_KEY")
	boolVar(&cfg.ObjectStore.UseSSL, "MINIO_USE_SSL")

	strVar(&cfg.Scraping.Strategy, "SCRAPING_STRATEGY")
	boolVar(&cfg.Scraping.EnableFallback, "ENABLE_FALLBACK")
	durationSecondsVar(&cfg.Scraping.PlaywrightTimeout, "PLAYWRIGHT_TIMEOUT")
	durationSecondsVar(&cfg.Scraping.RequestsTimeout, "REQUESTS_TIMEOUT")
	intVar(&cfg.Scraping.MaxPagesPerSite, "MAX_PAGES_PER_SITE")
	durationSecondsVar(&cfg.Scraping.Delay, "SCRAPING_DELAY")
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("config: DATABASE_URL is required")
	}
	if c.VectorStore.URL == "" {
		return fmt.Errorf("config: VECTOR_DATABASE_URL is required")
	}
	return nil
}

func strVar(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func boolVar(dst *bool, env string) {
	if v := os.Getenv(env); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func intVar(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// durationSecondsVar reads env as a float number of seconds, matching
// the original service's plain-number env vars (e.g. SCRAPING_DELAY=0.5).
func durationSecondsVar(dst *time.Duration, env string) {
	if v := os.Getenv(env); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = time.Duration(f * float64(time.Second))
		}
	}
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
