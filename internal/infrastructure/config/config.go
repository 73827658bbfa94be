package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Ability    AbilityConfig
	Worker     WorkerConfig
	Bundle     BundleConfig
	Permission PermissionConfig
	Remote     RemoteConfig
	Logging    LogConfig
	RateLimit  RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// AbilityConfig holds lifecycle controller configuration.
type AbilityConfig struct {
	ListCapacity   int    `envconfig:"ABILITY_LIST_CAPACITY" default:"10"`
	LauncherBundle string `envconfig:"LAUNCHER_BUNDLE" default:"com.ohos.launcher"`
	LauncherSuffix string `envconfig:"LAUNCHER_SUFFIX" default:".launcher"`
}

// WorkerConfig holds worker task configuration.
type WorkerConfig struct {
	QueueLength  int `envconfig:"WORKER_QUEUE_LENGTH" default:"32"`
	TaskPriority int `envconfig:"WORKER_TASK_PRIORITY" default:"25"`
	StackSize    int `envconfig:"WORKER_STACK_SIZE" default:"65536"`
	MaxTasks     int `envconfig:"WORKER_MAX_TASKS" default:"8"`
	PostRetries  int `envconfig:"WORKER_POST_RETRIES" default:"0"`
}

// BundleConfig holds bundle catalog configuration.
type BundleConfig struct {
	AppsDir      string `envconfig:"BUNDLE_APPS_DIR" default:""`
	ManifestGlob string `envconfig:"BUNDLE_MANIFEST_GLOB" default:"**/manifest.{yaml,yml,toml,json}"`
}

// PermissionConfig holds start-request policy configuration.
type PermissionConfig struct {
	Deny       []string `envconfig:"PERMISSION_DENY"`
	StartRPS   float64  `envconfig:"PERMISSION_START_RPS" default:"0"`
	StartBurst int      `envconfig:"PERMISSION_START_BURST" default:"1"`
}

// RemoteConfig holds remote device configuration.
type RemoteConfig struct {
	Devices []string      `envconfig:"REMOTE_DEVICES"` // "device=baseURL" pairs
	Timeout time.Duration `envconfig:"REMOTE_TIMEOUT" default:"5s"`
	Retries int           `envconfig:"REMOTE_RETRIES" default:"2"`
}

// DeviceMap parses the device list into deviceID -> base URL.
func (r RemoteConfig) DeviceMap() (map[string]string, error) {
	devices := make(map[string]string, len(r.Devices))
	for _, pair := range r.Devices {
		device, url, ok := strings.Cut(pair, "=")
		if !ok || device == "" || url == "" {
			return nil, fmt.Errorf("invalid remote device %q, want device=url", pair)
		}
		devices[device] = url
	}
	return devices, nil
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate checks values that envconfig cannot express.
func (c *Config) Validate() error {
	// the home unit is protected by evicting the entry above it, so two slots are the floor
	if c.Ability.ListCapacity < 2 {
		return fmt.Errorf("ability list capacity must be at least 2, got %d", c.Ability.ListCapacity)
	}
	if c.Ability.LauncherBundle == "" {
		return fmt.Errorf("launcher bundle name is required")
	}
	if c.Worker.QueueLength < 1 {
		return fmt.Errorf("worker queue length must be positive, got %d", c.Worker.QueueLength)
	}
	if c.Worker.MaxTasks < 1 {
		return fmt.Errorf("worker max tasks must be positive, got %d", c.Worker.MaxTasks)
	}
	if _, err := c.Remote.DeviceMap(); err != nil {
		return err
	}
	if c.Worker.PostRetries < 0 {
		return fmt.Errorf("worker post retries must not be negative")
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Ability: AbilityConfig{
			ListCapacity:   10,
			LauncherBundle: "com.ohos.launcher",
			LauncherSuffix: ".launcher",
		},
		Worker: WorkerConfig{
			QueueLength:  32,
			TaskPriority: 25,
			StackSize:    65536,
			MaxTasks:     8,
		},
		Bundle: BundleConfig{
			ManifestGlob: "**/manifest.{yaml,yml,toml,json}",
		},
		Permission: PermissionConfig{
			StartBurst: 1,
		},
		Remote: RemoteConfig{
			Timeout: 5 * time.Second,
			Retries: 2,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
