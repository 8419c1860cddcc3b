package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	// ErrMissingBucket is returned when the s3 backend has no bucket configured
	ErrMissingBucket = errors.New("R2_BUCKET is required for the s3 storage backend")

	// ErrUnknownBackend is returned for an unsupported STORAGE_BACKEND
	ErrUnknownBackend = errors.New("unknown storage backend")

	// ErrUnknownLedger is returned for an unsupported LEDGER
	ErrUnknownLedger = errors.New("unknown ledger")

	// ErrMissingDatabaseURL is returned when the postgres ledger has no DATABASE_URL
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required for the postgres ledger")
)

// Storage backends
const (
	BackendS3         = "s3"
	BackendFilesystem = "filesystem"
)

// Ledger kinds
const (
	LedgerSentinel = "sentinel"
	LedgerPostgres = "postgres"
)

type Config struct {
	Storage  StorageConfig
	CDN      CDNConfig
	Pipeline PipelineConfig
	Manifest ManifestConfig
	Ledger   LedgerConfig
	Metrics  MetricsConfig
	LogLevel string
}

type StorageConfig struct {
	Backend   string
	Dir       string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
}

type CDNConfig struct {
	BaseURL string
	Version string
}

type PipelineConfig struct {
	AssetsDir   string
	ColorsPath  string
	LogsDir     string
	Concurrency int
}

type ManifestConfig struct {
	OutputPath  string
	SettleDelay time.Duration
}

type LedgerConfig struct {
	Kind           string
	SentinelSuffix string
	DatabaseURL    string
}

type MetricsConfig struct {
	PushgatewayURL string
}

// Load reads .env if present, then the environment, over the defaults
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("STORAGE_BACKEND", BackendS3)
	v.SetDefault("STORAGE_DIR", "./dev-data")
	v.SetDefault("R2_ENDPOINT", "")
	v.SetDefault("R2_ACCESS_KEY_ID", "")
	v.SetDefault("R2_SECRET_ACCESS_KEY", "")
	v.SetDefault("R2_BUCKET", "")
	v.SetDefault("R2_REGION", "auto")
	v.SetDefault("CDN_BASE_URL", "")
	v.SetDefault("CDN_VERSION", "")
	v.SetDefault("ASSETS_DIR", "./assets/originals")
	v.SetDefault("ICON_COLORS_PATH", "./config/icon-colors.json")
	v.SetDefault("LOGS_DIR", "./logs")
	v.SetDefault("CONCURRENCY", 5)
	v.SetDefault("MANIFEST_OUTPUT", "./assets/assets-manifest.json")
	v.SetDefault("MANIFEST_SETTLE_DELAY", "3s")
	v.SetDefault("LEDGER", LedgerSentinel)
	v.SetDefault("SENTINEL_SUFFIX", ".done")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("PUSHGATEWAY_URL", "")
	v.SetDefault("LOG_LEVEL", "info")

	v.AutomaticEnv()

	cfg := &Config{
		Storage: StorageConfig{
			Backend:   v.GetString("STORAGE_BACKEND"),
			Dir:       v.GetString("STORAGE_DIR"),
			Endpoint:  v.GetString("R2_ENDPOINT"),
			AccessKey: v.GetString("R2_ACCESS_KEY_ID"),
			SecretKey: v.GetString("R2_SECRET_ACCESS_KEY"),
			Bucket:    v.GetString("R2_BUCKET"),
			Region:    v.GetString("R2_REGION"),
		},
		CDN: CDNConfig{
			BaseURL: v.GetString("CDN_BASE_URL"),
			Version: v.GetString("CDN_VERSION"),
		},
		Pipeline: PipelineConfig{
			AssetsDir:   v.GetString("ASSETS_DIR"),
			ColorsPath:  v.GetString("ICON_COLORS_PATH"),
			LogsDir:     v.GetString("LOGS_DIR"),
			Concurrency: v.GetInt("CONCURRENCY"),
		},
		Manifest: ManifestConfig{
			OutputPath:  v.GetString("MANIFEST_OUTPUT"),
			SettleDelay: v.GetDuration("MANIFEST_SETTLE_DELAY"),
		},
		Ledger: LedgerConfig{
			Kind:           v.GetString("LEDGER"),
			SentinelSuffix: v.GetString("SENTINEL_SUFFIX"),
			DatabaseURL:    v.GetString("DATABASE_URL"),
		},
		Metrics: MetricsConfig{
			PushgatewayURL: v.GetString("PUSHGATEWAY_URL"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that depend on each other
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendS3:
		if c.Storage.Bucket == "" {
			return ErrMissingBucket
		}
	case BackendFilesystem:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Storage.Backend)
	}

	switch c.Ledger.Kind {
	case LedgerSentinel:
	case LedgerPostgres:
		if c.Ledger.DatabaseURL == "" {
			return ErrMissingDatabaseURL
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownLedger, c.Ledger.Kind)
	}

	if c.Pipeline.Concurrency <= 0 {
		return fmt.Errorf("CONCURRENCY must be positive, got %d", c.Pipeline.Concurrency)
	}
	return nil
}
