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

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AIConfig struct {
	OpenAIKey       string        `yaml:"openai_key"`
	GeminiKey       string        `yaml:"gemini_key"`
	DefaultModel    string        `yaml:"default_model"`
	ConcurrentLimit int           `yaml:"concurrent_limit"` // max concurrent advisor calls
	Timeout         time.Duration `yaml:"timeout"`
}

// RuleSpec is one entry of the ordered rule set. Order in the config file is
// evaluation order.
type RuleSpec struct {
	Name     string            `yaml:"name"`
	Weight   float64           `yaml:"weight"`
	Blocking bool              `yaml:"blocking"`
	Params   map[string]string `yaml:"params"`
}

type PolicyConfig struct {
	RuleSetVersion string     `yaml:"rule_set_version"`
	Threshold      float64    `yaml:"threshold"`
	Rules          []RuleSpec `yaml:"rules"`
}

type QueueConfig struct {
	Workers      int           `yaml:"workers"`
	PollInterval time.Duration `yaml:"poll_interval"`
	LeaseTTL     time.Duration `yaml:"lease_ttl"`
	MaxAttempts  int           `yaml:"max_attempts"`
	BackoffBase  time.Duration `yaml:"backoff_base"`
	BackoffCap   time.Duration `yaml:"backoff_cap"`
	ReapInterval time.Duration `yaml:"reap_interval"`
}

type ServerConfig struct {
	Port               int    `yaml:"port"`
	SubmitRatePerMin   int    `yaml:"submit_rate_per_min"`
	AdminSecret        string `yaml:"admin_secret"`
	AdminSessionTTLMin int    `yaml:"admin_session_ttl_min"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	AI       AIConfig       `yaml:"ai"`
	Policy   PolicyConfig   `yaml:"policy"`
	Queue    QueueConfig    `yaml:"queue"`
	Server   ServerConfig   `yaml:"server"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads and validates the static configuration surface. A
// malformed rule set or policy is fatal: the process refuses to start.
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
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Policy.Threshold == 0 {
		cfg.Policy.Threshold = 0.7
	}
	if cfg.Policy.RuleSetVersion == "" {
		cfg.Policy.RuleSetVersion = "v1"
	}
	if cfg.Queue.Workers <= 0 {
		cfg.Queue.Workers = 4
	}
	if cfg.Queue.PollInterval <= 0 {
		cfg.Queue.PollInterval = 500 * time.Millisecond
	}
	if cfg.Queue.LeaseTTL <= 0 {
		cfg.Queue.LeaseTTL = 2 * time.Minute
	}
	if cfg.Queue.MaxAttempts <= 0 {
		cfg.Queue.MaxAttempts = 5
	}
	if cfg.Queue.BackoffBase <= 0 {
		cfg.Queue.BackoffBase = 2 * time.Second
	}
	if cfg.Queue.BackoffCap <= 0 {
		cfg.Queue.BackoffCap = 5 * time.Minute
	}
	if cfg.Queue.ReapInterval <= 0 {
		cfg.Queue.ReapInterval = 30 * time.Second
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = 10 * time.Second
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gpt-4o-mini"
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.SubmitRatePerMin <= 0 {
		cfg.Server.SubmitRatePerMin = 120
	}
	if cfg.Server.AdminSessionTTLMin <= 0 {
		cfg.Server.AdminSessionTTLMin = 30
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Policy.Threshold < 0 || cfg.Policy.Threshold > 1 {
		return nil, fmt.Errorf("policy.threshold must be in [0,1], got %v", cfg.Policy.Threshold)
	}
	if len(cfg.Policy.Rules) == 0 {
		return nil, errors.New("policy.rules must list at least one rule")
	}
	for _, r := range cfg.Policy.Rules {
		if r.Name == "" {
			return nil, errors.New("policy.rules entries need a name")
		}
		if r.Weight < 0 {
			return nil, fmt.Errorf("rule %q has negative weight", r.Name)
		}
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
