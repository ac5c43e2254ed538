package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Upstream   UpstreamConfig   `yaml:"upstream"`
	Session    SessionConfig    `yaml:"session"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// ServerConfig holds the HTTP API configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// UpstreamConfig describes the field-service backend this service talks to:
// the push stream for inbound job notifications and the REST base for
// technician actions and the bulk working-set fetch.
type UpstreamConfig struct {
	StreamURL             string            `yaml:"stream_url"`
	RestBaseURL           string            `yaml:"rest_base_url"`
	Headers               map[string]string `yaml:"headers"`
	RequestTimeoutSeconds int               `yaml:"request_timeout_seconds"`
	RequestTimeout        time.Duration     `yaml:"-"` // Ignored by YAML parser
	BackoffSeconds        []float64         `yaml:"backoff_seconds"`
	Backoff               []time.Duration   `yaml:"-"` // Ignored by YAML parser
	CategoryTTLSeconds    int               `yaml:"category_ttl_seconds"`
}

// SessionConfig identifies the authenticated technician this instance serves.
type SessionConfig struct {
	TechCode   string `yaml:"tech_code"`
	Token      string `yaml:"token"`
	CompanyRef string `yaml:"company_ref"`
}

// DatabaseConfig holds the database connection configuration for the
// subscription and journal tables.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Session.TechCode == "" {
		return nil, fmt.Errorf("session.tech_code must be set")
	}

	if cfg.Upstream.RequestTimeoutSeconds <= 0 {
		cfg.Upstream.RequestTimeoutSeconds = 30
	}
	cfg.Upstream.RequestTimeout = time.Duration(cfg.Upstream.RequestTimeoutSeconds) * time.Second

	if len(cfg.Upstream.BackoffSeconds) == 0 {
		cfg.Upstream.BackoffSeconds = []float64{0, 2, 5, 10, 30}
	}
	cfg.Upstream.Backoff = make([]time.Duration, len(cfg.Upstream.BackoffSeconds))
	for i, s := range cfg.Upstream.BackoffSeconds {
		cfg.Upstream.Backoff[i] = time.Duration(s * float64(time.Second))
	}

	if cfg.Upstream.CategoryTTLSeconds <= 0 {
		cfg.Upstream.CategoryTTLSeconds = 3600
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	return &cfg, nil
}
