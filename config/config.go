package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends selectable through STORE_BACKEND.
const (
	BackendFile     = "file"
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
)

// Config holds all configuration for the application
type Config struct {
	GitHubToken string
	Username    string
	APIBaseURL  string

	StoreBackend string
	SnapshotPath string
	BoltPath     string
	PostgresDSN  string

	PageSize          int
	CommitWindow      int
	RequestDelay      time.Duration
	HTTPTimeout       time.Duration
	MaxAttempts       int
	BaseBackoff       time.Duration
	MaxRateLimitWait  time.Duration
	RequestsPerSecond float64

	ClusterCount    int
	ClusterSeed     int64
	ForecastHorizon int

	LogLevel    string
	LogEncoding string

	LLMBaseURL string
	LLMModel   string
	LLMAPIKey  string
}

// NewConfig creates a new Config instance
func NewConfig() *Config {
	return &Config{}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("API_BASE_URL", "https://api.github.com")
	v.SetDefault("STORE_BACKEND", BackendFile)
	v.SetDefault("SNAPSHOT_PATH", "data/raw_data.json")
	v.SetDefault("BOLT_PATH", "data/snapshots.db")
	v.SetDefault("PAGE_SIZE", 100)
	v.SetDefault("COMMIT_WINDOW", 5)
	v.SetDefault("REQUEST_DELAY", "1s")
	v.SetDefault("HTTP_TIMEOUT", "30s")
	v.SetDefault("MAX_ATTEMPTS", 3)
	v.SetDefault("BASE_BACKOFF", "1s")
	v.SetDefault("MAX_RATE_LIMIT_WAIT", "60s")
	v.SetDefault("REQUESTS_PER_SECOND", 5)
	v.SetDefault("CLUSTER_COUNT", 3)
	v.SetDefault("CLUSTER_SEED", 42)
	v.SetDefault("FORECAST_HORIZON", 90)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_ENCODING", "console")
	v.SetDefault("LLM_BASE_URL", "http://localhost:11434/v1")
	v.SetDefault("LLM_MODEL", "llama3.1")
}

// Load loads configuration from an optional .env file and environment variables.
// A missing GITHUB_USERNAME is reported by RequireUsername, not here, so commands that never talk to
// the API can still run.
func (c *Config) Load(envFile string) error {
	v := viper.New()
	setDefaults(v)

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !isNotExist(err) {
				return fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}
	v.AutomaticEnv()

	c.GitHubToken = v.GetString("GITHUB_TOKEN")
	c.Username = v.GetString("GITHUB_USERNAME")
	c.APIBaseURL = strings.TrimRight(v.GetString("API_BASE_URL"), "/")

	c.StoreBackend = strings.ToLower(v.GetString("STORE_BACKEND"))
	c.SnapshotPath = v.GetString("SNAPSHOT_PATH")
	c.BoltPath = v.GetString("BOLT_PATH")
	c.PostgresDSN = v.GetString("POSTGRES_DSN")

	c.PageSize = v.GetInt("PAGE_SIZE")
	c.CommitWindow = v.GetInt("COMMIT_WINDOW")
	c.RequestDelay = v.GetDuration("REQUEST_DELAY")
	c.HTTPTimeout = v.GetDuration("HTTP_TIMEOUT")
	c.MaxAttempts = v.GetInt("MAX_ATTEMPTS")
	c.BaseBackoff = v.GetDuration("BASE_BACKOFF")
	c.MaxRateLimitWait = v.GetDuration("MAX_RATE_LIMIT_WAIT")
	c.RequestsPerSecond = v.GetFloat64("REQUESTS_PER_SECOND")

	c.ClusterCount = v.GetInt("CLUSTER_COUNT")
	c.ClusterSeed = v.GetInt64("CLUSTER_SEED")
	c.ForecastHorizon = v.GetInt("FORECAST_HORIZON")

	c.LogLevel = v.GetString("LOG_LEVEL")
	c.LogEncoding = v.GetString("LOG_ENCODING")

	c.LLMBaseURL = v.GetString("LLM_BASE_URL")
	c.LLMModel = v.GetString("LLM_MODEL")
	c.LLMAPIKey = v.GetString("LLM_API_KEY")

	return c.validate()
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendFile, BackendBolt:
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required when STORE_BACKEND=%s", BackendPostgres)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.PageSize < 1 || c.PageSize > 100 {
		return fmt.Errorf("PAGE_SIZE must be in range <1..100>, got %d", c.PageSize)
	}
	if c.CommitWindow < 1 {
		return fmt.Errorf("COMMIT_WINDOW must be positive, got %d", c.CommitWindow)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("MAX_ATTEMPTS must be positive, got %d", c.MaxAttempts)
	}
	if c.ClusterCount < 1 {
		return fmt.Errorf("CLUSTER_COUNT must be positive, got %d", c.ClusterCount)
	}
	if c.ForecastHorizon < 0 {
		return fmt.Errorf("FORECAST_HORIZON cannot be negative, got %d", c.ForecastHorizon)
	}
	return nil
}

// RequireUsername reports whether the configuration can drive a fetch.
func (c *Config) RequireUsername() error {
	if c.Username == "" {
		return fmt.Errorf("GITHUB_USERNAME is required")
	}
	return nil
}

// SnapshotLocation is the key under which the configured backend keeps the snapshot.
// Database backends key by username, the file backend by path.
func (c *Config) SnapshotLocation() string {
	if c.StoreBackend == BackendFile {
		return c.SnapshotPath
	}
	return strings.ToLower(c.Username)
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
