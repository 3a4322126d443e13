// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "lull.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return configPath
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}
	if cfg.Invoker.Kind != InvokerEcho {
		t.Errorf("expected invoker.kind=echo, got %s", cfg.Invoker.Kind)
	}
	if cfg.Invoker.Timeout != "2m" {
		t.Errorf("expected invoker.timeout=2m, got %s", cfg.Invoker.Timeout)
	}
	if cfg.Coordinator.QuietPeriod != "5s" {
		t.Errorf("expected coordinator.quiet_period=5s, got %s", cfg.Coordinator.QuietPeriod)
	}
	if cfg.Journal.Synchronous != "FULL" {
		t.Errorf("expected journal.synchronous=FULL, got %s", cfg.Journal.Synchronous)
	}
}

func TestLoad_WithoutLullConfigUsesDefaults(t *testing.T) {
	t.Setenv("LULL_CONFIG", "")
	t.Setenv("HOME", "/home/tester")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
	if strings.Contains(cfg.Paths.State, "${") || strings.Contains(cfg.Paths.Socket, "${") {
		t.Errorf("unexpanded paths: state=%s socket=%s", cfg.Paths.State, cfg.Paths.Socket)
	}
	if cfg.Paths.State != filepath.Join(cfg.Paths.Root, "state") {
		t.Errorf("expected state under root %s, got %s", cfg.Paths.Root, cfg.Paths.State)
	}
}

func TestLoad_WithLullConfig(t *testing.T) {
	configPath := writeConfig(t, `
environment: staging
paths:
  root: /test/root
`)
	t.Setenv("LULL_CONFIG", configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Environment != Staging {
		t.Errorf("expected environment=staging, got %s", cfg.Environment)
	}
	if cfg.Paths.Root != "/test/root" {
		t.Errorf("expected root=/test/root, got %s", cfg.Paths.Root)
	}
	if cfg.Paths.Socket != "/test/root/lull.sock" {
		t.Errorf("expected socket to follow root, got %s", cfg.Paths.Socket)
	}
}

func TestLoadFile(t *testing.T) {
	configPath := writeConfig(t, `
environment: staging

paths:
  root: /custom/root
  socket: /run/lull/lull.sock

coordinator:
  quiet_period: 2s
  retention: 1h

invoker:
  kind: command
  command: ["weather-agent", "--model", "small"]
  timeout: 30s
  retry:
    max_attempts: 4
    initial_backoff: 500ms
    max_backoff: 10s

journal:
  compression: lz4
  compression_threshold: 1024
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if cfg.Paths.Socket != "/run/lull/lull.sock" {
		t.Errorf("expected socket=/run/lull/lull.sock, got %s", cfg.Paths.Socket)
	}
	if cfg.Paths.State != "/custom/root/state" {
		t.Errorf("expected state=/custom/root/state, got %s", cfg.Paths.State)
	}
	if cfg.Coordinator.SweepInterval != "1m" {
		t.Errorf("expected unset sweep_interval to keep its default, got %s", cfg.Coordinator.SweepInterval)
	}
	if got := strings.Join(cfg.Invoker.Command, " "); got != "weather-agent --model small" {
		t.Errorf("expected command argv, got %q", got)
	}
	if cfg.Journal.Compression != "lz4" || cfg.Journal.CompressionThreshold != 1024 {
		t.Errorf("expected lz4 above 1024 bytes, got %s above %d", cfg.Journal.Compression, cfg.Journal.CompressionThreshold)
	}

	invoker, err := cfg.Invoker.Durations()
	if err != nil {
		t.Fatalf("Invoker.Durations: %v", err)
	}
	if invoker.Timeout != 30*time.Second || invoker.InitialBackoff != 500*time.Millisecond || invoker.MaxBackoff != 10*time.Second {
		t.Errorf("invoker durations = %+v", invoker)
	}
	coordinator, err := cfg.Coordinator.Durations()
	if err != nil {
		t.Fatalf("Coordinator.Durations: %v", err)
	}
	if coordinator.QuietPeriod != 2*time.Second || coordinator.Retention != time.Hour || coordinator.SweepInterval != time.Minute {
		t.Errorf("coordinator durations = %+v", coordinator)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestLoadFile_Malformed(t *testing.T) {
	configPath := writeConfig(t, "coordinator: [not, a, mapping\n")
	if _, err := LoadFile(configPath); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	configPath := writeConfig(t, `
environment: development

coordinator:
  quiet_period: 5s

development:
  coordinator:
    quiet_period: 1s
  journal:
    synchronous: NORMAL
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Coordinator.QuietPeriod != "1s" {
		t.Errorf("expected development override quiet_period=1s, got %s", cfg.Coordinator.QuietPeriod)
	}
	if cfg.Journal.Synchronous != "NORMAL" {
		t.Errorf("expected development override synchronous=NORMAL, got %s", cfg.Journal.Synchronous)
	}
}

func TestProductionDefaults(t *testing.T) {
	configPath := writeConfig(t, "environment: production\n")

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Invoker.Retry.MaxAttempts != 3 {
		t.Errorf("expected production max_attempts=3, got %d", cfg.Invoker.Retry.MaxAttempts)
	}
	if cfg.Journal.Synchronous != "FULL" {
		t.Errorf("expected production synchronous=FULL, got %s", cfg.Journal.Synchronous)
	}
}

func TestExpandVariables(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	t.Setenv("WEATHER_AGENT", "/opt/agents/weather")

	configPath := writeConfig(t, `
paths:
  root: ${HOME}/lull
  state: ${LULL_ROOT}/var
  socket: ${LULL_SOCKET_DIR:-/tmp}/lull.sock
invoker:
  kind: command
  command: ["${WEATHER_AGENT}", "--root", "${LULL_ROOT}"]
journal:
  identity_file: ${HOME}/.config/lull/identity.txt
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"root", cfg.Paths.Root, "/home/tester/lull"},
		{"state", cfg.Paths.State, "/home/tester/lull/var"},
		{"socket default", cfg.Paths.Socket, "/tmp/lull.sock"},
		{"command program", cfg.Invoker.Command[0], "/opt/agents/weather"},
		{"command argument", cfg.Invoker.Command[2], "/home/tester/lull"},
		{"identity file", cfg.Journal.IdentityFile, "/home/tester/.config/lull/identity.txt"},
	}
	for _, test := range tests {
		if test.got != test.want {
			t.Errorf("%s: expected %s, got %s", test.name, test.want, test.got)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"bad environment", func(c *Config) { c.Environment = "qa" }, "invalid environment"},
		{"missing root", func(c *Config) { c.Paths.Root = "" }, "paths.root is required"},
		{"missing socket", func(c *Config) { c.Paths.Socket = "" }, "paths.socket is required"},
		{"bad quiet period", func(c *Config) { c.Coordinator.QuietPeriod = "soon" }, "coordinator.quiet_period"},
		{"zero retention", func(c *Config) { c.Coordinator.Retention = "0s" }, "coordinator.retention must be positive"},
		{"unknown invoker", func(c *Config) { c.Invoker.Kind = "llm" }, "invoker.kind must be one of"},
		{"command without argv", func(c *Config) { c.Invoker.Kind = InvokerCommand }, "invoker.command is required"},
		{"zero attempts", func(c *Config) { c.Invoker.Retry.MaxAttempts = 0 }, "max_attempts must be at least 1"},
		{"inverted backoff", func(c *Config) { c.Invoker.Retry.MaxBackoff = "100ms" }, "below initial_backoff"},
		{"unknown compression", func(c *Config) { c.Journal.Compression = "brotli" }, "journal.compression must be one of"},
		{"synchronous off", func(c *Config) { c.Journal.Synchronous = "OFF" }, "journal.synchronous must be one of"},
		{"recipients without identity", func(c *Config) {
			c.Journal.Recipients = []string{"age1example"}
		}, "journal.identity_file is required"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			cfg.Paths.Root = "/srv/lull"
			cfg.Paths.State = "/srv/lull/state"
			cfg.Paths.Socket = "/srv/lull/lull.sock"
			test.mutate(cfg)

			err := cfg.Validate()
			if test.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("expected error containing %q, got %v", test.wantErr, err)
			}
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Paths.Root = ""
	cfg.Invoker.Kind = "llm"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"paths.root", "invoker.kind"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestEnsurePaths(t *testing.T) {
	root := filepath.Join(t.TempDir(), "lull")
	cfg := Default()
	cfg.Paths.Root = root
	cfg.Paths.State = filepath.Join(root, "state")
	cfg.Paths.Socket = filepath.Join(root, "run", "lull.sock")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths failed: %v", err)
	}
	for _, directory := range []string{root, cfg.Paths.State, filepath.Join(root, "run")} {
		info, err := os.Stat(directory)
		if err != nil || !info.IsDir() {
			t.Errorf("expected directory %s: %v", directory, err)
		}
	}
	if cfg.JournalPath() != filepath.Join(root, "state", "journal.db") {
		t.Errorf("unexpected journal path %s", cfg.JournalPath())
	}
	if cfg.LockPath() != filepath.Join(root, "state", "lull.lock") {
		t.Errorf("unexpected lock path %s", cfg.LockPath())
	}
}
