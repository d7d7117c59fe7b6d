package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/mirador-eeg/internal/correlation"
	"github.com/miradorstack/mirador-eeg/internal/filter"
)

const envPrefix = "MIRADOR_EEG_"

// Config captures the settings required to boot the EEG phase analysis service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Data     DataConfig     `yaml:"data"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Cache    CacheConfig    `yaml:"cache"`
}

// ServerConfig controls gRPC listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// DataConfig locates recordings and exported phase files.
type DataConfig struct {
	// Dir is the root that recording paths in requests are resolved against.
	Dir string `yaml:"dir"`
	// ExportDir receives per-phase EDF files. Empty disables export.
	ExportDir string `yaml:"exportDir"`
}

// AnalysisConfig holds defaults applied when a request leaves them unset.
type AnalysisConfig struct {
	Filter          FilterConfig  `yaml:"filter"`
	CorrelationMode string        `yaml:"correlationMode"`
	Timeout         time.Duration `yaml:"timeout"`
}

// FilterConfig is the default band-pass. A zero HighFreq disables filtering.
type FilterConfig struct {
	LowFreq  float64 `yaml:"lowFreq"`
	HighFreq float64 `yaml:"highFreq"`
	Order    int     `yaml:"order"`
}

// Enabled reports whether a default filter is configured.
func (f FilterConfig) Enabled() bool { return f.HighFreq > 0 }

// Spec turns the defaults into a filter specification at rate fs.
func (f FilterConfig) Spec(fs float64) filter.Spec {
	return filter.Spec{LowFreq: f.LowFreq, HighFreq: f.HighFreq, SamplingFreq: fs, Order: f.Order}
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// CacheConfig controls caching of analysis results.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Backend      string        `yaml:"backend"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
	ResultTTL    time.Duration `yaml:"resultTTL"`
}

const (
	// BackendMemory keeps results in process.
	BackendMemory = "memory"
	// BackendValkey stores results in a Valkey/Redis server.
	BackendValkey = "valkey"
)

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(envPrefix + "CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot start with and stores the
// correlation mode in its canonical form.
func (c *Config) Validate() error {
	mode, err := correlation.ParseMode(c.Analysis.CorrelationMode)
	if err != nil {
		return fmt.Errorf("analysis.correlationMode: %w", err)
	}
	c.Analysis.CorrelationMode = string(mode)
	if f := c.Analysis.Filter; f.Enabled() {
		if !(f.LowFreq > 0) || f.HighFreq <= f.LowFreq || f.Order < 1 {
			return fmt.Errorf("analysis.filter: need 0 < lowFreq < highFreq and order >= 1, got %g-%g order %d", f.LowFreq, f.HighFreq, f.Order)
		}
	}
	if c.Cache.Enabled {
		switch c.Cache.Backend {
		case BackendMemory:
		case BackendValkey:
			if c.Cache.Addr == "" {
				return errors.New("cache.addr is required for the valkey backend")
			}
		default:
			return fmt.Errorf("cache.backend %q: want %s or %s", c.Cache.Backend, BackendMemory, BackendValkey)
		}
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50061",
			MetricsAddress:  ":2113",
			GracefulTimeout: 10 * time.Second,
		},
		Data: DataConfig{Dir: "data"},
		Analysis: AnalysisConfig{
			CorrelationMode: string(correlation.ModeRaw),
			Timeout:         2 * time.Minute,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Cache: CacheConfig{
			Enabled:      false,
			Backend:      BackendMemory,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			ResultTTL:    30 * time.Minute,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Server.Address, "SERVER_ADDRESS")
	setString(&cfg.Server.MetricsAddress, "METRICS_ADDRESS")
	setDuration(&cfg.Server.GracefulTimeout, "GRACEFUL_TIMEOUT")

	setString(&cfg.Data.Dir, "DATA_DIR")
	setString(&cfg.Data.ExportDir, "EXPORT_DIR")

	setFloat(&cfg.Analysis.Filter.LowFreq, "FILTER_LOW_FREQ")
	setFloat(&cfg.Analysis.Filter.HighFreq, "FILTER_HIGH_FREQ")
	setInt(&cfg.Analysis.Filter.Order, "FILTER_ORDER")
	setString(&cfg.Analysis.CorrelationMode, "CORRELATION_MODE")
	setDuration(&cfg.Analysis.Timeout, "ANALYSIS_TIMEOUT")

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	if v := os.Getenv(envPrefix + "LOG_FORMAT"); v != "" {
		cfg.Logging.JSON = strings.EqualFold(v, "json")
	}

	setBool(&cfg.Cache.Enabled, "CACHE_ENABLED")
	setString(&cfg.Cache.Backend, "CACHE_BACKEND")
	setString(&cfg.Cache.Addr, "CACHE_ADDR")
	setString(&cfg.Cache.Username, "CACHE_USERNAME")
	setString(&cfg.Cache.Password, "CACHE_PASSWORD")
	setInt(&cfg.Cache.DB, "CACHE_DB")
	setBool(&cfg.Cache.TLS, "CACHE_TLS")
	setDuration(&cfg.Cache.DialTimeout, "CACHE_DIAL_TIMEOUT")
	setDuration(&cfg.Cache.ReadTimeout, "CACHE_READ_TIMEOUT")
	setDuration(&cfg.Cache.WriteTimeout, "CACHE_WRITE_TIMEOUT")
	setInt(&cfg.Cache.MaxRetries, "CACHE_MAX_RETRIES")
	setDuration(&cfg.Cache.ResultTTL, "CACHE_RESULT_TTL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		*dst = strings.EqualFold(v, "true") || v == "1"
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
