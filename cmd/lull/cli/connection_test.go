// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveSocketPrecedence(t *testing.T) {
	root := t.TempDir()
	configPath := filepath.Join(root, "lull.yaml")
	if err := os.WriteFile(configPath, []byte("paths:\n  socket: "+filepath.Join(root, "from-config.sock")+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(SocketEnvVar, "")
	connection := Connection{ConfigPath: configPath}
	socketPath, err := connection.ResolveSocket()
	if err != nil {
		t.Fatal(err)
	}
	if socketPath != filepath.Join(root, "from-config.sock") {
		t.Errorf("from config = %q", socketPath)
	}

	t.Setenv(SocketEnvVar, "/run/from-env.sock")
	if socketPath, _ := connection.ResolveSocket(); socketPath != "/run/from-env.sock" {
		t.Errorf("from environment = %q", socketPath)
	}

	connection.SocketPath = "/run/from-flag.sock"
	if socketPath, _ := connection.ResolveSocket(); socketPath != "/run/from-flag.sock" {
		t.Errorf("from flag = %q", socketPath)
	}

	client, err := connection.Connect()
	if err != nil {
		t.Fatal(err)
	}
	if client.SocketPath() != "/run/from-flag.sock" {
		t.Errorf("client socket = %q", client.SocketPath())
	}
}

func TestResolveSocketDefaults(t *testing.T) {
	t.Setenv(SocketEnvVar, "")
	t.Setenv("LULL_CONFIG", "")
	t.Setenv("HOME", "/home/tester")
	var connection Connection
	socketPath, err := connection.ResolveSocket()
	if err != nil {
		t.Fatal(err)
	}
	if socketPath != "/home/tester/.cache/lull/lull.sock" {
		t.Errorf("default socket = %q", socketPath)
	}
}

func TestResolveSocketBadConfig(t *testing.T) {
	t.Setenv(SocketEnvVar, "")
	connection := Connection{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")}
	_, err := connection.ResolveSocket()
	toolErr, ok := err.(*ToolError)
	if !ok || toolErr.Category != CategoryValidation || toolErr.Hint == "" {
		t.Errorf("error = %v, want a hinted validation error", err)
	}
}
