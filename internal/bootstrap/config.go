// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

// Package bootstrap builds an internal/engine.Engine from process
// configuration. cmd/osmo-server and cmd/osmoctl are two different
// binaries that both need the same collaborator graph — the Scheduler
// Bridge, the Admission & Validator, the Durable Store, ... — with no
// HTTP surface between them (§1 Non-goals), so this package is the one
// place that graph gets wired, instead of each cmd duplicating it.
package bootstrap

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/osmo-project/osmo/internal/logging"
)

// configValidator is shared across Validate calls; go-playground/validator
// caches struct-tag reflection per type internally, so one instance for the
// process is the documented usage.
var configValidator = validator.New()

// Config is the full process configuration every OSMO binary loads via
// internal/procconfig: struct defaults, then an optional YAML file, then
// environment variables.
type Config struct {
	Database  DatabaseConfig  `koanf:"database"`
	Logging   logging.Config  `koanf:"logging"`
	Render    RenderConfig    `koanf:"render"`
	Secrets   SecretsConfig   `koanf:"secrets"`
	Notify    NotifyConfig    `koanf:"notify"`
	Admission AdmissionConfig `koanf:"admission"`
	Redis     RedisConfig     `koanf:"redis"`
	Backends  []BackendConfig `koanf:"backends" validate:"required,min=1,unique=Name,dive"`
	// PollInterval is how often cmd/osmo-server's background rollup/
	// timeout loop re-evaluates every alive workflow (§5); unused by
	// cmd/osmoctl.
	PollInterval time.Duration `koanf:"poll_interval"`
}

// DatabaseConfig is the durable store's connection (§2: the Config Store
// and Durable Store share one relational database).
type DatabaseConfig struct {
	DSN string `koanf:"dsn" validate:"required"`
}

// RenderConfig sizes the Template Renderer's worker pool (§4.2).
type RenderConfig struct {
	Workers     int   `koanf:"workers" validate:"gt=0"`
	MaxTimeMS   int   `koanf:"max_time_ms"`
	MemoryLimit int64 `koanf:"memory_limit_bytes"`
}

// SecretsConfig names the initial MEK kid generated on first start (§9).
type SecretsConfig struct {
	InitialKeyID string `koanf:"initial_key_id"`
}

// NotifyConfig points the State Machine's Notifier at a webhook sink
// (§4.6 "Notifications"; email/chat transports are out of scope, §1).
type NotifyConfig struct {
	WebhookURL     string            `koanf:"webhook_url"`
	WebhookHeaders map[string]string `koanf:"webhook_headers"`
}

// AdmissionConfig configures the shared registry validator and default
// user quota (§4.4, §4.7).
type AdmissionConfig struct {
	RegistryDisableHosts []string `koanf:"registry_disable_hosts"`
	RegistryRateLimit    float64  `koanf:"registry_rate_limit_per_sec"`
	RegistryBurst        float64  `koanf:"registry_burst"`
	DefaultMaxWorkflows  int      `koanf:"default_max_workflows"`
	DefaultMaxTasks      int      `koanf:"default_max_tasks"`
}

// RedisConfig backs the action channel's pub/sub (§4.8 action_channel).
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// BackendConfig is one entry of the Backend Interface (§4.8): a named
// cluster/scheduler endpoint pools reference by name.
type BackendConfig struct {
	Name               string `koanf:"name" validate:"required"`
	BaseURL            string `koanf:"base_url" validate:"required"`
	Namespace          string `koanf:"namespace"`
	SchedulerName      string `koanf:"scheduler_name"`
	QueueLabel         string `koanf:"queue_label"`
	SupportsPriority   bool   `koanf:"supports_priority"`
	InsecureSkipVerify bool   `koanf:"insecure_skip_verify"`
}

// DefaultConfig returns the struct-default configuration LoadWithDefaults
// layers a config file and environment variables on top of.
func DefaultConfig() Config {
	return Config{
		Database: DatabaseConfig{DSN: "host=localhost user=osmo dbname=osmo sslmode=disable"},
		Logging:  logging.Config{Level: "info", Format: "json"},
		Render:   RenderConfig{Workers: 4, MaxTimeMS: 5000, MemoryLimit: 64 << 20},
		Secrets:  SecretsConfig{InitialKeyID: "initial"},
		Admission: AdmissionConfig{
			RegistryRateLimit:   10,
			RegistryBurst:       20,
			DefaultMaxWorkflows: 100,
			DefaultMaxTasks:     1000,
		},
		PollInterval: 5 * time.Second,
	}
}

// Validate implements internal/procconfig.Validator. Struct-tag rules above
// cover the "must be set"/"must be positive"/"backend names must be
// unique" checks; `unique=Name` is go-playground/validator's cross-element
// uniqueness constraint for a slice of structs, keyed on the named field.
func (c Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Load reads configPath (if non-empty) and environment variables
// (OSMO__-prefixed) over DefaultConfig(), then validates the result.
func Load(configPath string) (Config, error) {
	defaults := DefaultConfig()
	loader := newLoader()
	if err := loader.LoadWithDefaults(&defaults, configPath); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	var cfg Config
	if err := loader.UnmarshalAndValidate("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
