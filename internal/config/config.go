// Package config holds the yaml-driven configuration structs for the
// service, mirroring the teacher's internal/config/providers.go:
// sub-structs per concern composed into one root, loaded once at startup
// and validated before internal/core wires anything up.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/pumpshort/internal/cooldown"
	"github.com/sawpanic/pumpshort/internal/outcome"
)

// ServiceConfig is the complete operational configuration.
type ServiceConfig struct {
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Cooldown   CooldownConfig   `yaml:"cooldown"`
	Snapshot   SnapshotConfig   `yaml:"snapshot"`
	Memory     MemoryConfig     `yaml:"memory"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Outcome    OutcomeConfig    `yaml:"outcome"`
	HTTPServer HTTPServerConfig `yaml:"http_server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ExchangeConfig tunes the exchange.Adapter/TradeStream pair (spec.md §6).
type ExchangeConfig struct {
	BaseURL        string        `yaml:"base_url"`
	StreamURL      string        `yaml:"stream_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
	RateLimitBurst int           `yaml:"rate_limit_burst"`
	UserAgent      string        `yaml:"user_agent"`
	PollInterval   time.Duration `yaml:"poll_interval"`
}

func (e *ExchangeConfig) Validate() error {
	if e.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty")
	}
	if e.RateLimitRPS <= 0 {
		return fmt.Errorf("rate_limit_rps must be positive, got %f", e.RateLimitRPS)
	}
	if e.RateLimitBurst < 1 {
		return fmt.Errorf("rate_limit_burst must be at least 1, got %d", e.RateLimitBurst)
	}
	if e.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", e.PollInterval)
	}
	return nil
}

// CooldownConfig selects the debounce policy preset and backing store
// (spec.md §4.3, §9 Open Question on policy variants).
type CooldownConfig struct {
	Policy    string `yaml:"policy"` // "default", "legacy_a", "legacy_b"
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`
	TTL       time.Duration `yaml:"ttl"`
}

// Resolve returns the cooldown.Policy the configured preset name selects.
func (c *CooldownConfig) Resolve() (cooldown.Policy, error) {
	switch c.Policy {
	case "", "default":
		return cooldown.CooldownPolicyDefault(), nil
	case "legacy_a":
		return cooldown.CooldownPolicyLegacyA(), nil
	case "legacy_b":
		return cooldown.CooldownPolicyLegacyB(), nil
	default:
		return cooldown.Policy{}, fmt.Errorf("unknown cooldown policy %q", c.Policy)
	}
}

func (c *CooldownConfig) Validate() error {
	_, err := c.Resolve()
	return err
}

// SnapshotConfig tunes the Snapshot Store's retention window (spec.md §4.1).
type SnapshotConfig struct {
	RetentionWindow time.Duration `yaml:"retention_window"`
}

func (s *SnapshotConfig) Validate() error {
	if s.RetentionWindow <= 0 {
		return fmt.Errorf("retention_window must be positive, got %s", s.RetentionWindow)
	}
	return nil
}

// MemoryConfig points the Memory / Intelligence Store at its backing
// Postgres database (spec.md §4.6).
type MemoryConfig struct {
	PostgresDSN     string `yaml:"postgres_dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	SimilarityTopN  int    `yaml:"similarity_top_n"`
}

func (m *MemoryConfig) Validate() error {
	if m.PostgresDSN == "" {
		return fmt.Errorf("postgres_dsn cannot be empty")
	}
	if m.MaxOpenConns <= 0 {
		return fmt.Errorf("max_open_conns must be positive, got %d", m.MaxOpenConns)
	}
	if m.SimilarityTopN <= 0 {
		return fmt.Errorf("similarity_top_n must be positive, got %d", m.SimilarityTopN)
	}
	return nil
}

// ClassifierConfig tunes when the Classifier graduates from untrained to
// trained (spec.md §4.6.4).
type ClassifierConfig struct {
	MinTrainingSamples int `yaml:"min_training_samples"`
}

func (c *ClassifierConfig) Validate() error {
	if c.MinTrainingSamples <= 0 {
		return fmt.Errorf("min_training_samples must be positive, got %d", c.MinTrainingSamples)
	}
	return nil
}

// OutcomeConfig selects the Outcome Tracker's mode and trailing-follower
// tuning (spec.md §4.7, §9 Open Question).
type OutcomeConfig struct {
	Mode     string  `yaml:"mode"` // "scheduled", "trailing", "both"
	Activation float64 `yaml:"activation_pct"`
	TrailDistance float64 `yaml:"trail_distance_pct"`
	MaxTrackingMinutes int `yaml:"max_tracking_minutes"`
}

// Resolve builds an outcome.Config from the configured mode and trailing
// parameters, falling back to spec defaults for anything left at zero.
func (o *OutcomeConfig) Resolve() (outcome.Config, error) {
	var mode outcome.Mode
	switch o.Mode {
	case "", "both":
		mode = outcome.ModeBoth
	case "scheduled":
		mode = outcome.ModeScheduled
	case "trailing":
		mode = outcome.ModeTrailing
	default:
		return outcome.Config{}, fmt.Errorf("unknown outcome mode %q", o.Mode)
	}

	trailing := outcome.DefaultTrailingConfig()
	if o.Activation > 0 {
		trailing.ActivationPct = o.Activation
	}
	if o.TrailDistance > 0 {
		trailing.TrailDistancePct = o.TrailDistance
	}
	if o.MaxTrackingMinutes > 0 {
		trailing.MaxTrackingMinutes = o.MaxTrackingMinutes
	}
	return outcome.Config{Mode: mode, Trailing: trailing}, nil
}

func (o *OutcomeConfig) Validate() error {
	_, err := o.Resolve()
	return err
}

// HTTPServerConfig tunes the ops HTTP server (spec.md §6 supplemented
// ambient tooling: metrics/health/status/stats).
type HTTPServerConfig struct {
	Addr string `yaml:"addr"`
}

func (h *HTTPServerConfig) Validate() error {
	if h.Addr == "" {
		return fmt.Errorf("addr cannot be empty")
	}
	return nil
}

// LoggingConfig tunes zerolog's global logger (internal/obslog).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

func (l *LoggingConfig) Validate() error {
	switch l.Level {
	case "", "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("unknown log level %q", l.Level)
	}
}

// Validate checks every sub-config, matching the teacher's
// ProvidersConfig.Validate aggregate-error style.
func (s *ServiceConfig) Validate() error {
	if err := s.Exchange.Validate(); err != nil {
		return fmt.Errorf("exchange: %w", err)
	}
	if err := s.Cooldown.Validate(); err != nil {
		return fmt.Errorf("cooldown: %w", err)
	}
	if err := s.Snapshot.Validate(); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := s.Memory.Validate(); err != nil {
		return fmt.Errorf("memory: %w", err)
	}
	if err := s.Classifier.Validate(); err != nil {
		return fmt.Errorf("classifier: %w", err)
	}
	if err := s.Outcome.Validate(); err != nil {
		return fmt.Errorf("outcome: %w", err)
	}
	if err := s.HTTPServer.Validate(); err != nil {
		return fmt.Errorf("http_server: %w", err)
	}
	if err := s.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

// Default returns the service's built-in defaults, used when no config
// file is supplied and as the base Load overlays a config file onto.
func Default() ServiceConfig {
	return ServiceConfig{
		Exchange: ExchangeConfig{
			BaseURL:        "https://futures.kraken.com/derivatives/api/v3",
			StreamURL:      "wss://futures.kraken.com/ws/v1",
			RequestTimeout: 10 * time.Second,
			RateLimitRPS:   1.0,
			RateLimitBurst: 2,
			UserAgent:      "pumpshort/1.0 (+exchange-adapter)",
			PollInterval:   5 * time.Second,
		},
		Cooldown: CooldownConfig{Policy: "default", TTL: 30 * time.Minute},
		Snapshot: SnapshotConfig{RetentionWindow: 40 * time.Minute},
		Memory: MemoryConfig{
			PostgresDSN:    "postgres://localhost:5432/pumpshort?sslmode=disable",
			MaxOpenConns:   10,
			SimilarityTopN: 20,
		},
		Classifier: ClassifierConfig{MinTrainingSamples: 20},
		Outcome:    OutcomeConfig{Mode: "both"},
		HTTPServer: HTTPServerConfig{Addr: ":8090"},
		Logging:    LoggingConfig{Level: "info"},
	}
}

// Load reads a yaml file at path, overlaying it onto Default() so an
// operator's file only needs to name the fields it wants to override.
func Load(path string) (*ServiceConfig, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse service config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid service config: %w", err)
	}
	return &cfg, nil
}
