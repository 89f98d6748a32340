// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"` // minio | local

	Minio struct {
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		UseSSL    bool   `yaml:"use_ssl"`
	} `yaml:"minio"`

	Local struct {
		BasePath string `yaml:"base_path"`
	} `yaml:"local"`
}

type AIConfig struct {
	OpenAIKey       string `yaml:"openai_key"`
	OpenAIModel     string `yaml:"openai_model"`
	GeminiKey       string `yaml:"gemini_key"`
	GeminiURL       string `yaml:"gemini_url"`
	GeminiModel     string `yaml:"gemini_model"`
	ConcurrentLimit int    `yaml:"concurrent_limit"` // max concurrent vision calls
}

type CacheConfig struct {
	TTL                 time.Duration `yaml:"ttl"`
	JanitorInterval     time.Duration `yaml:"janitor_interval"`
	CountCachedAttempts bool          `yaml:"count_cached_attempts"` // cache hits still bump the region tracker
}

type TrackerConfig struct {
	TTL time.Duration `yaml:"ttl"` // sliding expiry per session+question key
}

type PipelineConfig struct {
	RunTimeout time.Duration `yaml:"run_timeout"` // optional whole-run deadline; 0 = none
}

type AdminConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`
	AI       AIConfig       `yaml:"ai"`
	Cache    CacheConfig    `yaml:"cache"`
	Tracker  TrackerConfig  `yaml:"tracker"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Admin    AdminConfig    `yaml:"admin"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout <= 0 {
		// detect-error drives the whole pipeline inside the request
		cfg.Server.WriteTimeout = 15 * time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "local"
	}
	if cfg.Storage.Local.BasePath == "" {
		cfg.Storage.Local.BasePath = "."
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}
	if cfg.AI.OpenAIModel == "" {
		cfg.AI.OpenAIModel = "gpt-4o"
	}
	if cfg.AI.GeminiModel == "" {
		cfg.AI.GeminiModel = "gemini-2.0-flash"
	}
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = time.Hour
	}
	if cfg.Cache.JanitorInterval <= 0 {
		cfg.Cache.JanitorInterval = 5 * time.Minute
	}
	if cfg.Tracker.TTL <= 0 {
		cfg.Tracker.TTL = 24 * time.Hour
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Storage.Backend != "minio" && cfg.Storage.Backend != "local" {
		return nil, fmt.Errorf("storage.backend must be minio or local, got %q", cfg.Storage.Backend)
	}
	if cfg.Storage.Backend == "minio" && cfg.Storage.Minio.Endpoint == "" {
		return nil, errors.New("storage.minio.endpoint is required for the minio backend")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
