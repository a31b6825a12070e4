package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" toml:"server"`
	Backend    BackendConfig    `yaml:"backend" toml:"backend"`
	Reconcile  ReconcileConfig  `yaml:"reconcile" toml:"reconcile"`
	Workflow   WorkflowConfig   `yaml:"workflow" toml:"workflow"`
	Database   DatabaseConfig   `yaml:"database" toml:"database"`
	Push       PushConfig       `yaml:"push" toml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool" toml:"worker_pool"`
	Redis      RedisConfig      `yaml:"redis" toml:"redis"`
	Metrics    MetricsConfig    `yaml:"metrics" toml:"metrics"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size" toml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key" toml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key" toml:"vapid_private_key"`
	Subject    string `yaml:"subject" toml:"subject"`
	TTL        int    `yaml:"ttl" toml:"ttl"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port" toml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header" toml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec" toml:"rate_limit_per_sec"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds" toml:"cache_ttl_seconds"`
}

// BackendConfig describes the remote rental backend that receives vehicle commands.
type BackendConfig struct {
	BaseURL        string            `yaml:"base_url" toml:"base_url"`
	TimeoutSeconds int               `yaml:"timeout_seconds" toml:"timeout_seconds"`
	Timeout        time.Duration     `yaml:"-" toml:"-"`
	HTTPProxy      string            `yaml:"http_proxy" toml:"http_proxy"`
	Headers        map[string]string `yaml:"headers" toml:"headers"`
	UserPath       string            `yaml:"user_path" toml:"user_path"`
	RenterRoutes   RenterRoutes      `yaml:"renter_routes" toml:"renter_routes"`
}

// RenterRoutes are the renter-side vehicle action endpoints.
type RenterRoutes struct {
	Open    string `yaml:"open" toml:"open"`
	Close   string `yaml:"close" toml:"close"`
	GiveKey string `yaml:"give_key" toml:"give_key"`
	TakeKey string `yaml:"take_key" toml:"take_key"`
}

// ReconcileConfig controls cache refreshes after completion and on a schedule.
type ReconcileConfig struct {
	DelayMS  int           `yaml:"delay_ms" toml:"delay_ms"`
	Delay    time.Duration `yaml:"-" toml:"-"`
	Enabled  bool          `yaml:"enabled" toml:"enabled"`
	Schedule string        `yaml:"schedule" toml:"schedule"`
}

// WorkflowConfig holds state machine tunables.
type WorkflowConfig struct {
	MarkerWindowMS int           `yaml:"marker_window_ms" toml:"marker_window_ms"`
	MarkerWindow   time.Duration `yaml:"-" toml:"-"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver" toml:"driver"`
	DSN                    string `yaml:"dsn" toml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns" toml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns" toml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes" toml:"conn_max_lifetime_minutes"`
}

// RedisConfig enables relaying broadcast signals between instances.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" toml:"enabled"`
	Addr     string `yaml:"addr" toml:"addr"`
	Password string `yaml:"password" toml:"password"`
	DB       int    `yaml:"db" toml:"db"`
	Channel  string `yaml:"channel" toml:"channel"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// Load reads the configuration from the given path. Files ending in .toml are
// decoded as TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	var cfg Config
	if strings.HasSuffix(path, ".toml") {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Backend.TimeoutSeconds <= 0 {
		cfg.Backend.TimeoutSeconds = 30
	}
	cfg.Backend.Timeout = time.Duration(cfg.Backend.TimeoutSeconds) * time.Second
	cfg.Backend.BaseURL = strings.TrimRight(cfg.Backend.BaseURL, "/")
	if cfg.Backend.UserPath == "" {
		cfg.Backend.UserPath = "/auth/user/me"
	}
	r := &cfg.Backend.RenterRoutes
	if r.Open == "" {
		r.Open = "/rent/open"
	}
	if r.Close == "" {
		r.Close = "/rent/close"
	}
	if r.GiveKey == "" {
		r.GiveKey = "/rent/give-key"
	}
	if r.TakeKey == "" {
		r.TakeKey = "/rent/take-key"
	}

	if cfg.Reconcile.DelayMS <= 0 {
		cfg.Reconcile.DelayMS = 1000
	}
	cfg.Reconcile.Delay = time.Duration(cfg.Reconcile.DelayMS) * time.Millisecond
	if cfg.Reconcile.Schedule == "" {
		cfg.Reconcile.Schedule = "@every 1m"
	}

	if cfg.Workflow.MarkerWindowMS <= 0 {
		cfg.Workflow.MarkerWindowMS = 1000
	}
	cfg.Workflow.MarkerWindow = time.Duration(cfg.Workflow.MarkerWindowMS) * time.Millisecond

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = "fleet:signals"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}
