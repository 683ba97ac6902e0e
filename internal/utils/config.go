package utils

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig holds the last configuration loaded by LoadConfig. Exported so
// tests can tweak individual knobs without going through a YAML file.
var AppConfig Config

// PostgresConfig describes the connection to the API token database.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// RateLimiterConfig controls the token and anonymous-user limiters.
type RateLimiterConfig struct {
	Interval          time.Duration
	UserLimit         int
	EnableUserLimiter bool
}

// UnmarshalYAML parses the interval from a duration string ("1m", "1h").
func (r *RateLimiterConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Interval          string `yaml:"interval"`
		UserLimit         int    `yaml:"user_limit"`
		EnableUserLimiter bool   `yaml:"enable_user_limiter"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Interval != "" {
		d, err := time.ParseDuration(raw.Interval)
		if err != nil {
			return fmt.Errorf("rate_limiter.interval: %w", err)
		}
		r.Interval = d
	}
	r.UserLimit = raw.UserLimit
	r.EnableUserLimiter = raw.EnableUserLimiter
	return nil
}

// Config is the full service configuration.
type Config struct {
	Server struct {
		Host    string `yaml:"host"`
		Port    string `yaml:"port"`
		Prefork bool   `yaml:"prefork"`
	} `yaml:"server"`

	Logger struct {
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
		Level      string `yaml:"level"`
	} `yaml:"logger"`

	Cache struct {
		RedisHost   string `yaml:"redis_host"`
		AnalysisDB  int    `yaml:"analysis_db"`
		RateLimitDB int    `yaml:"rate_limit_db"`
	} `yaml:"cache"`

	Limits struct {
		// MaxUploadBytes caps the multipart body accepted by the server.
		// The converter applies its own 50 MiB per-file rule on top.
		MaxUploadBytes int `yaml:"max_upload_bytes"`
	} `yaml:"limits"`

	RateLimiter RateLimiterConfig `yaml:"rate_limiter"`

	Auth struct {
		Enabled  bool           `yaml:"enabled"`
		Postgres PostgresConfig `yaml:"postgres"`
	} `yaml:"auth"`

	Storage struct {
		Dir string `yaml:"dir"`
	} `yaml:"storage"`

	AI struct {
		BaseURL     string `yaml:"base_url"`
		APIKey      string `yaml:"api_key"`
		Model       string `yaml:"model"`
		TimeoutSecs int    `yaml:"timeout_secs"`
	} `yaml:"ai"`

	Report struct {
		ChromePath      string `yaml:"chrome_path"`
		ChromeNoSandbox bool   `yaml:"chrome_no_sandbox"`
		TimeoutSecs     int    `yaml:"timeout_secs"`
	} `yaml:"report"`
}

func defaultConfig() Config {
	var cfg Config
	cfg.Server.Port = ":8080"
	cfg.Logger.Level = "info"
	cfg.Logger.MaxSizeMB = 50
	cfg.Logger.MaxBackups = 3
	cfg.Logger.MaxAgeDays = 14
	cfg.Cache.RedisHost = "localhost:6379"
	cfg.Cache.AnalysisDB = 0
	cfg.Cache.RateLimitDB = 1
	cfg.Limits.MaxUploadBytes = 52 * 1024 * 1024
	cfg.RateLimiter.Interval = time.Minute
	cfg.Storage.Dir = "data/files"
	cfg.AI.BaseURL = "https://api.openai.com"
	cfg.AI.Model = "gpt-4o-mini"
	cfg.AI.TimeoutSecs = 90
	cfg.Report.TimeoutSecs = 20
	return cfg
}

// LoadConfig reads the YAML config from CONFIG_PATH (default "config.yaml")
// and stores the result in AppConfig. A missing file yields the defaults;
// an unparseable file is a startup failure.
func LoadConfig() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			panic(fmt.Sprintf("invalid config %s: %v", path, err))
		}
	} else if !os.IsNotExist(err) {
		panic(fmt.Sprintf("cannot read config %s: %v", path, err))
	}

	if cfg.RateLimiter.Interval <= 0 {
		cfg.RateLimiter.Interval = time.Minute
	}
	if cfg.Limits.MaxUploadBytes <= 0 {
		cfg.Limits.MaxUploadBytes = 52 * 1024 * 1024
	}

	AppConfig = cfg
	return cfg
}

// GetConfig returns the configuration loaded by the last LoadConfig call.
func GetConfig() Config {
	return AppConfig
}
