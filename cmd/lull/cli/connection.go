// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/lull/lib/config"
	"github.com/bureau-foundation/lull/lib/lullclient"
)

// SocketEnvVar names the socket when --socket is not given.
const SocketEnvVar = "LULL_SOCKET"

// Connection holds the flags that locate lull-service. Embed it in a
// params struct; [BindFlags] registers its flags through AddFlags.
type Connection struct {
	SocketPath string
	ConfigPath string
}

// AddFlags registers --socket and --config.
func (c *Connection) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.SocketPath, "socket", "",
		"lull-service socket (default: $"+SocketEnvVar+", else paths.socket from the config)")
	flagSet.StringVar(&c.ConfigPath, "config", "",
		"config file used to find the socket (default: $LULL_CONFIG, else built-in defaults)")
}

// ResolveSocket returns the socket path: --socket, then LULL_SOCKET,
// then paths.socket of the config named by --config or LULL_CONFIG,
// then the built-in default.
func (c *Connection) ResolveSocket() (string, error) {
	if c.SocketPath != "" {
		return c.SocketPath, nil
	}
	if fromEnvironment := os.Getenv(SocketEnvVar); fromEnvironment != "" {
		return fromEnvironment, nil
	}

	var cfg *config.Config
	var err error
	if c.ConfigPath != "" {
		cfg, err = config.LoadFile(c.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return "", Validation("loading config to find the lull-service socket: %w", err).
			WithHint("Pass --socket or set " + SocketEnvVar + " to skip the config file.")
	}
	if cfg.Paths.Socket == "" {
		return "", Validation("config has no paths.socket")
	}
	return cfg.Paths.Socket, nil
}

// Connect returns a client for the resolved socket. No connection is
// made until the first call.
func (c *Connection) Connect() (*lullclient.Client, error) {
	socketPath, err := c.ResolveSocket()
	if err != nil {
		return nil, err
	}
	client, err := lullclient.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}
	return client, nil
}
