// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Invoker kinds.
const (
	// InvokerEcho answers every batch locally with a summary of its
	// messages. Used for demos and offline runs.
	InvokerEcho = "echo"

	// InvokerCommand runs an external program with the batch on stdin.
	InvokerCommand = "command"
)

// Config is the master configuration for lull.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Paths configures directory and socket locations.
	Paths PathsConfig `yaml:"paths"`

	// Coordinator configures debounce defaults and retention.
	Coordinator CoordinatorConfig `yaml:"coordinator"`

	// Invoker configures the downstream operation.
	Invoker InvokerConfig `yaml:"invoker"`

	// Journal configures the durable transition log.
	Journal JournalConfig `yaml:"journal"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Paths       *PathsConfig       `yaml:"paths,omitempty"`
	Coordinator *CoordinatorConfig `yaml:"coordinator,omitempty"`
	Invoker     *InvokerConfig     `yaml:"invoker,omitempty"`
	Journal     *JournalConfig     `yaml:"journal,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for lull data.
	Root string `yaml:"root"`

	// State holds the journal database and the service lock file.
	State string `yaml:"state"`

	// Socket is the unix socket the service listens on.
	Socket string `yaml:"socket"`
}

// CoordinatorConfig configures debounce behavior. Durations are Go
// duration strings ("5s", "24h").
type CoordinatorConfig struct {
	// QuietPeriod applies to start requests that name none.
	// Default: 5s
	QuietPeriod string `yaml:"quiet_period"`

	// Retention is how long finished instances stay queryable.
	// Default: 24h
	Retention string `yaml:"retention"`

	// SweepInterval is how often finished instances past retention
	// are pruned.
	// Default: 1m
	SweepInterval string `yaml:"sweep_interval"`
}

// InvokerConfig configures the downstream operation.
type InvokerConfig struct {
	// Kind selects the implementation: "echo" or "command".
	// Default: echo
	Kind string `yaml:"kind"`

	// Command is the argv run for kind "command". The batch is written
	// to its stdin and its stdout is the result.
	Command []string `yaml:"command"`

	// Timeout bounds one downstream attempt.
	// Default: 2m
	Timeout string `yaml:"timeout"`

	// Retry configures attempts after a failed invocation.
	Retry RetryConfig `yaml:"retry"`
}

// RetryConfig configures the invoker's retry policy.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the
	// first. 1 disables retry.
	// Default: 1
	MaxAttempts int `yaml:"max_attempts"`

	// InitialBackoff is the delay before the second attempt. Each
	// later delay doubles, up to MaxBackoff.
	// Default: 1s
	InitialBackoff string `yaml:"initial_backoff"`

	// MaxBackoff caps the delay between attempts.
	// Default: 30s
	MaxBackoff string `yaml:"max_backoff"`
}

// JournalConfig configures the journal database.
type JournalConfig struct {
	// Compression is the codec for large payloads: "none", "lz4", or
	// "zstd".
	// Default: zstd
	Compression string `yaml:"compression"`

	// CompressionThreshold is the payload size in bytes below which
	// payloads are stored uncompressed.
	// Default: 256
	CompressionThreshold int `yaml:"compression_threshold"`

	// Synchronous is the SQLite synchronous pragma: "FULL" or "NORMAL".
	// Default: FULL
	Synchronous string `yaml:"synchronous"`

	// Recipients are age X25519 public keys. When any are set, payloads
	// are encrypted at rest to all of them.
	Recipients []string `yaml:"recipients"`

	// IdentityFile is the age identity file used to decrypt sealed
	// payloads. Required when Recipients is set.
	IdentityFile string `yaml:"identity_file"`
}

// Default returns the default configuration. It is also the complete
// configuration when no config file is named. State and Socket follow
// Root until expandVariables resolves them.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "lull")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:   defaultRoot,
			State:  "${LULL_ROOT}/state",
			Socket: "${LULL_ROOT}/lull.sock",
		},
		Coordinator: CoordinatorConfig{
			QuietPeriod:   "5s",
			Retention:     "24h",
			SweepInterval: "1m",
		},
		Invoker: InvokerConfig{
			Kind:    InvokerEcho,
			Timeout: "2m",
			Retry: RetryConfig{
				MaxAttempts:    1,
				InitialBackoff: "1s",
				MaxBackoff:     "30s",
			},
		},
		Journal: JournalConfig{
			Compression:          "zstd",
			CompressionThreshold: 256,
			Synchronous:          "FULL",
		},
	}
}

// Load loads configuration from the file named by the LULL_CONFIG
// environment variable. When it is unset, Load returns the defaults
// with variables expanded.
func Load() (*Config, error) {
	configPath := os.Getenv("LULL_CONFIG")
	if configPath == "" {
		cfg := Default()
		cfg.applyEnvironmentOverrides()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values. The only expansion performed is ${HOME}
// and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	// Apply environment-specific overrides (development/staging/production sections in the file).
	cfg.applyEnvironmentOverrides()

	// Expand ${HOME} and similar variables in paths for portability.
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: retry transient downstream failures.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Invoker: &InvokerConfig{
					Retry: RetryConfig{MaxAttempts: 3},
				},
				Journal: &JournalConfig{
					Synchronous: "FULL",
				},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.State != "" {
			c.Paths.State = overrides.Paths.State
		}
		if overrides.Paths.Socket != "" {
			c.Paths.Socket = overrides.Paths.Socket
		}
	}

	if overrides.Coordinator != nil {
		if overrides.Coordinator.QuietPeriod != "" {
			c.Coordinator.QuietPeriod = overrides.Coordinator.QuietPeriod
		}
		if overrides.Coordinator.Retention != "" {
			c.Coordinator.Retention = overrides.Coordinator.Retention
		}
		if overrides.Coordinator.SweepInterval != "" {
			c.Coordinator.SweepInterval = overrides.Coordinator.SweepInterval
		}
	}

	if overrides.Invoker != nil {
		if overrides.Invoker.Kind != "" {
			c.Invoker.Kind = overrides.Invoker.Kind
		}
		if len(overrides.Invoker.Command) > 0 {
			c.Invoker.Command = overrides.Invoker.Command
		}
		if overrides.Invoker.Timeout != "" {
			c.Invoker.Timeout = overrides.Invoker.Timeout
		}
		if overrides.Invoker.Retry.MaxAttempts != 0 {
			c.Invoker.Retry.MaxAttempts = overrides.Invoker.Retry.MaxAttempts
		}
		if overrides.Invoker.Retry.InitialBackoff != "" {
			c.Invoker.Retry.InitialBackoff = overrides.Invoker.Retry.InitialBackoff
		}
		if overrides.Invoker.Retry.MaxBackoff != "" {
			c.Invoker.Retry.MaxBackoff = overrides.Invoker.Retry.MaxBackoff
		}
	}

	if overrides.Journal != nil {
		if overrides.Journal.Compression != "" {
			c.Journal.Compression = overrides.Journal.Compression
		}
		if overrides.Journal.CompressionThreshold != 0 {
			c.Journal.CompressionThreshold = overrides.Journal.CompressionThreshold
		}
		if overrides.Journal.Synchronous != "" {
			c.Journal.Synchronous = overrides.Journal.Synchronous
		}
		if len(overrides.Journal.Recipients) > 0 {
			c.Journal.Recipients = overrides.Journal.Recipients
		}
		if overrides.Journal.IdentityFile != "" {
			c.Journal.IdentityFile = overrides.Journal.IdentityFile
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"LULL_ROOT": c.Paths.Root,
		"HOME":      os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["LULL_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.State = expandVars(c.Paths.State, vars)
	c.Paths.Socket = expandVars(c.Paths.Socket, vars)
	c.Journal.IdentityFile = expandVars(c.Journal.IdentityFile, vars)
	for index, argument := range c.Invoker.Command {
		c.Invoker.Command[index] = expandVars(argument, vars)
	}
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. Every problem is
// reported, not just the first.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Paths.State == "" {
		errs = append(errs, fmt.Errorf("paths.state is required"))
	}
	if c.Paths.Socket == "" {
		errs = append(errs, fmt.Errorf("paths.socket is required"))
	}

	if _, err := c.Coordinator.Durations(); err != nil {
		errs = append(errs, err)
	}

	switch c.Invoker.Kind {
	case InvokerEcho:
	case InvokerCommand:
		if len(c.Invoker.Command) == 0 || c.Invoker.Command[0] == "" {
			errs = append(errs, fmt.Errorf("invoker.command is required for kind %q", InvokerCommand))
		}
	default:
		errs = append(errs, fmt.Errorf("invoker.kind must be one of: %v", []string{InvokerEcho, InvokerCommand}))
	}
	if _, err := c.Invoker.Durations(); err != nil {
		errs = append(errs, err)
	}
	if c.Invoker.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("invoker.retry.max_attempts must be at least 1, got %d", c.Invoker.Retry.MaxAttempts))
	}

	compressionValues := []string{"none", "lz4", "zstd"}
	if !slices.Contains(compressionValues, c.Journal.Compression) {
		errs = append(errs, fmt.Errorf("journal.compression must be one of: %v", compressionValues))
	}
	if c.Journal.CompressionThreshold < 0 {
		errs = append(errs, fmt.Errorf("journal.compression_threshold must not be negative"))
	}
	synchronousValues := []string{"FULL", "NORMAL"}
	if !slices.Contains(synchronousValues, c.Journal.Synchronous) {
		errs = append(errs, fmt.Errorf("journal.synchronous must be one of: %v", synchronousValues))
	}
	if len(c.Journal.Recipients) > 0 && c.Journal.IdentityFile == "" {
		errs = append(errs, fmt.Errorf("journal.identity_file is required when journal.recipients is set"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// CoordinatorDurations holds the parsed coordinator durations.
type CoordinatorDurations struct {
	QuietPeriod   time.Duration
	Retention     time.Duration
	SweepInterval time.Duration
}

// Durations parses the coordinator duration strings.
func (c CoordinatorConfig) Durations() (CoordinatorDurations, error) {
	var durations CoordinatorDurations
	err := errors.Join(
		parsePositive("coordinator.quiet_period", c.QuietPeriod, &durations.QuietPeriod),
		parsePositive("coordinator.retention", c.Retention, &durations.Retention),
		parsePositive("coordinator.sweep_interval", c.SweepInterval, &durations.SweepInterval),
	)
	return durations, err
}

// InvokerDurations holds the parsed invoker durations.
type InvokerDurations struct {
	Timeout        time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Durations parses the invoker duration strings.
func (c InvokerConfig) Durations() (InvokerDurations, error) {
	var durations InvokerDurations
	err := errors.Join(
		parsePositive("invoker.timeout", c.Timeout, &durations.Timeout),
		parsePositive("invoker.retry.initial_backoff", c.Retry.InitialBackoff, &durations.InitialBackoff),
		parsePositive("invoker.retry.max_backoff", c.Retry.MaxBackoff, &durations.MaxBackoff),
	)
	if err == nil && durations.MaxBackoff < durations.InitialBackoff {
		err = fmt.Errorf("invoker.retry.max_backoff (%s) is below initial_backoff (%s)", c.Retry.MaxBackoff, c.Retry.InitialBackoff)
	}
	return durations, err
}

func parsePositive(field, value string, target *time.Duration) error {
	duration, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if duration <= 0 {
		return fmt.Errorf("%s must be positive, got %s", field, value)
	}
	*target = duration
	return nil
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Root,
		c.Paths.State,
		filepath.Dir(c.Paths.Socket),
	}

	for _, path := range paths {
		if path == "" || path == "." {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}

// JournalPath is the journal database inside the state directory.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.State, "journal.db")
}

// LockPath is the single-owner lock file inside the state directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.State, "lull.lock")
}
