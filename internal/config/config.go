package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"BulletinTracker/internal/domain"
)

const (
	configPathEnv = "BULLETIN_TRACKER_CONFIG"

	storageBackendEnv   = "STORAGE_BACKEND"
	storageDSNEnv       = "STORAGE_DSN"
	httpMaxWorkersEnv   = "HTTP_MAX_WORKERS"
	httpTimeoutEnv      = "HTTP_TIMEOUT_SECONDS"
	httpRetriesEnv      = "HTTP_RETRIES"
	userAgentEnv        = "USER_AGENT"
	sourceBaseURLEnv    = "SOURCE_BASE_URL"
	dateParseMinRateEnv = "DATE_PARSE_MIN_RATE"
	logLevelEnv         = "LOG_LEVEL"
)

// Backend names selectable through STORAGE_BACKEND.
const (
	BackendEmbedded = "embedded"
	BackendServer   = "server"
)

// Config holds high-level settings required across the application.
type Config struct {
	Storage  StorageConfig `yaml:"storage"`
	HTTP     HTTPConfig    `yaml:"http"`
	Source   SourceConfig  `yaml:"source"`
	Quality  QualityConfig `yaml:"quality"`
	LogLevel string        `yaml:"logLevel"`
}

// StorageConfig selects the repository backend and its location.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	DSN     string `yaml:"dsn"`
}

// HTTPConfig bounds the fetcher's parallelism and retry policy.
type HTTPConfig struct {
	MaxWorkers     int    `yaml:"maxWorkers"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
	Retries        int    `yaml:"retries"`
	UserAgent      string `yaml:"userAgent"`
}

// SourceConfig points at the upstream bulletin site.
type SourceConfig struct {
	BaseURL string `yaml:"baseUrl"`
}

// QualityConfig holds normalization gate thresholds.
type QualityConfig struct {
	DateParseMinRate float64 `yaml:"dateParseMinRate"`
}

// Load reads .env, YAML configuration (if present), and environment
// overrides, then validates the result.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(storageBackendEnv); v != "" {
		c.Storage.Backend = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv(storageDSNEnv); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv(userAgentEnv); v != "" {
		c.HTTP.UserAgent = v
	}
	if v := os.Getenv(sourceBaseURLEnv); v != "" {
		c.Source.BaseURL = strings.TrimSuffix(v, "/")
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.LogLevel = v
	}

	if v := os.Getenv(httpMaxWorkersEnv); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s=%q is not an integer: %w", httpMaxWorkersEnv, v, domain.ErrConfig)
		}
		c.HTTP.MaxWorkers = n
	}
	if v := os.Getenv(httpTimeoutEnv); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s=%q is not an integer: %w", httpTimeoutEnv, v, domain.ErrConfig)
		}
		c.HTTP.TimeoutSeconds = n
	}
	if v := os.Getenv(httpRetriesEnv); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s=%q is not an integer: %w", httpRetriesEnv, v, domain.ErrConfig)
		}
		c.HTTP.Retries = n
	}
	if v := os.Getenv(dateParseMinRateEnv); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s=%q is not a float: %w", dateParseMinRateEnv, v, domain.ErrConfig)
		}
		c.Quality.DateParseMinRate = f
	}

	return nil
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case BackendEmbedded, BackendServer:
	default:
		return fmt.Errorf("storage backend %q (want %s or %s): %w",
			c.Storage.Backend, BackendEmbedded, BackendServer, domain.ErrConfig)
	}
	if c.Storage.DSN == "" {
		return fmt.Errorf("storage dsn is empty: %w", domain.ErrConfig)
	}
	if c.HTTP.MaxWorkers < 1 {
		return fmt.Errorf("http max workers %d < 1: %w", c.HTTP.MaxWorkers, domain.ErrConfig)
	}
	if c.HTTP.TimeoutSeconds < 1 {
		return fmt.Errorf("http timeout %ds < 1s: %w", c.HTTP.TimeoutSeconds, domain.ErrConfig)
	}
	if c.HTTP.Retries < 0 {
		return fmt.Errorf("http retries %d < 0: %w", c.HTTP.Retries, domain.ErrConfig)
	}
	if c.Quality.DateParseMinRate < 0 || c.Quality.DateParseMinRate > 1 {
		return fmt.Errorf("date parse min rate %.2f outside [0,1]: %w",
			c.Quality.DateParseMinRate, domain.ErrConfig)
	}
	if c.Source.BaseURL == "" {
		return fmt.Errorf("source base url is empty: %w", domain.ErrConfig)
	}
	return nil
}

func mergeConfig(base, override Config) Config {
	if override.Storage.Backend != "" {
		base.Storage.Backend = override.Storage.Backend
	}
	if override.Storage.DSN != "" {
		base.Storage.DSN = override.Storage.DSN
	}

	if override.HTTP.MaxWorkers != 0 {
		base.HTTP.MaxWorkers = override.HTTP.MaxWorkers
	}
	if override.HTTP.TimeoutSeconds != 0 {
		base.HTTP.TimeoutSeconds = override.HTTP.TimeoutSeconds
	}
	if override.HTTP.Retries != 0 {
		base.HTTP.Retries = override.HTTP.Retries
	}
	if override.HTTP.UserAgent != "" {
		base.HTTP.UserAgent = override.HTTP.UserAgent
	}

	if override.Source.BaseURL != "" {
		base.Source.BaseURL = strings.TrimSuffix(override.Source.BaseURL, "/")
	}

	if override.Quality.DateParseMinRate != 0 {
		base.Quality.DateParseMinRate = override.Quality.DateParseMinRate
	}

	if override.LogLevel != "" {
		base.LogLevel = override.LogLevel
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Storage: StorageConfig{
			Backend: BackendEmbedded,
			DSN:     "visabulletin.db",
		},
		HTTP: HTTPConfig{
			MaxWorkers:     4,
			TimeoutSeconds: 30,
			Retries:        3,
			UserAgent:      "BulletinTracker/1.0 (visa bulletin research)",
		},
		Source: SourceConfig{
			BaseURL: "https://travel.state.gov/content/travel/en/legal/visa-law0/visa-bulletin",
		},
		Quality: QualityConfig{
			DateParseMinRate: 0.5,
		},
		LogLevel: "info",
	}
}
