// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/lull/lib/clock"
	"github.com/bureau-foundation/lull/lib/config"
	"github.com/bureau-foundation/lull/lib/debounce"
	"github.com/bureau-foundation/lull/lib/invoke"
	"github.com/bureau-foundation/lull/lib/journal"
	"github.com/bureau-foundation/lull/lib/lockfile"
	"github.com/bureau-foundation/lull/lib/process"
	"github.com/bureau-foundation/lull/lib/sealed"
	"github.com/bureau-foundation/lull/lib/service"
	"github.com/bureau-foundation/lull/lib/sqlitepool"
	"github.com/bureau-foundation/lull/lib/version"
)

// shutdownGrace bounds how long shutdown waits for in-flight
// downstream invocations.
const shutdownGrace = 30 * time.Second

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

// flags holds command-line overrides of config file values. Empty
// values leave the file (or default) value in place.
type flags struct {
	configPath  string
	socketPath  string
	stateDir    string
	quietPeriod string
	invokerKind string
	command     []string
	logLevel    string
	showVersion bool
}

func parseFlags(args []string) (flags, error) {
	var parsed flags
	flagSet := pflag.NewFlagSet("lull-service", pflag.ContinueOnError)
	flagSet.StringVar(&parsed.configPath, "config", "", "config file path (default: $LULL_CONFIG, else built-in defaults)")
	flagSet.StringVar(&parsed.socketPath, "socket", "", "unix socket to listen on (overrides paths.socket)")
	flagSet.StringVar(&parsed.stateDir, "state-dir", "", "directory for the journal and lock file (overrides paths.state)")
	flagSet.StringVar(&parsed.quietPeriod, "quiet-period", "", "default quiet period, e.g. 5s (overrides coordinator.quiet_period)")
	flagSet.StringVar(&parsed.invokerKind, "invoker", "", "downstream invoker: echo or command (overrides invoker.kind)")
	flagSet.StringArrayVar(&parsed.command, "command", nil, "argv element of the downstream program, repeatable (overrides invoker.command)")
	flagSet.StringVar(&parsed.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flagSet.BoolVar(&parsed.showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(args); err != nil {
		return flags{}, err
	}
	if flagSet.NArg() > 0 {
		return flags{}, fmt.Errorf("unexpected arguments: %v", flagSet.Args())
	}
	return parsed, nil
}

func run() error {
	parsed, err := parseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if parsed.showVersion {
		fmt.Printf("lull-service %s\n", version.Full())
		return nil
	}

	cfg, err := loadConfig(parsed)
	if err != nil {
		return err
	}

	logger, err := newLogger(parsed.logLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, clock.Real(), logger, nil)
}

// loadConfig reads the config file named by --config or LULL_CONFIG,
// applies flag overrides, and validates the result.
func loadConfig(parsed flags) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if parsed.configPath != "" {
		cfg, err = config.LoadFile(parsed.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if parsed.socketPath != "" {
		cfg.Paths.Socket = parsed.socketPath
	}
	if parsed.stateDir != "" {
		cfg.Paths.State = parsed.stateDir
	}
	if parsed.quietPeriod != "" {
		cfg.Coordinator.QuietPeriod = parsed.quietPeriod
	}
	if parsed.invokerKind != "" {
		cfg.Invoker.Kind = parsed.invokerKind
	}
	if len(parsed.command) > 0 {
		cfg.Invoker.Command = parsed.command
		if parsed.invokerKind == "" {
			cfg.Invoker.Kind = config.InvokerCommand
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds a text handler when stderr is a terminal and a JSON
// handler otherwise.
func newLogger(level string) (*slog.Logger, error) {
	var slogLevel slog.Level
	if err := slogLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	options := &slog.HandlerOptions{Level: slogLevel}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return slog.New(slog.NewTextHandler(os.Stderr, options)), nil
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, options)), nil
}

// openJournal opens the journal with the configured compression,
// durability, and sealing.
func openJournal(cfg *config.Config, logger *slog.Logger) (*journal.Journal, error) {
	compression, err := journal.ParseCompressionTag(cfg.Journal.Compression)
	if err != nil {
		return nil, err
	}

	var sealer *sealed.Sealer
	if len(cfg.Journal.Recipients) > 0 {
		identities, err := sealed.ParseIdentityFile(cfg.Journal.IdentityFile)
		if err != nil {
			return nil, err
		}
		sealer, err = sealed.New(cfg.Journal.Recipients, identities)
		if err != nil {
			return nil, err
		}
	}

	return journal.Open(journal.Config{
		Path:                 cfg.JournalPath(),
		Synchronous:          sqlitepool.Synchronous(cfg.Journal.Synchronous),
		Compression:          compression,
		CompressionThreshold: cfg.Journal.CompressionThreshold,
		Sealer:               sealer,
		Logger:               logger,
	})
}

// serve runs the service until ctx is cancelled. When ready is
// non-nil it receives the socket server once it is listening.
func serve(ctx context.Context, cfg *config.Config, clk clock.Clock, logger *slog.Logger, ready chan<- *service.SocketServer) error {
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	lock, err := lockfile.Acquire(cfg.LockPath())
	if err != nil {
		return fmt.Errorf("state directory %s: %w", cfg.Paths.State, err)
	}
	defer lock.Release()

	store, err := openJournal(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	invoker, err := invoke.FromConfig(cfg.Invoker, clk, logger)
	if err != nil {
		return err
	}

	durations, err := cfg.Coordinator.Durations()
	if err != nil {
		return err
	}

	manager, err := debounce.NewManager(debounce.ManagerConfig{
		Journal:            store,
		Invoker:            invoker,
		Clock:              clk,
		Observer:           debounce.LogObserver{Logger: logger},
		Logger:             logger,
		DefaultQuietPeriod: durations.QuietPeriod,
		Retention:          durations.Retention,
		SweepInterval:      durations.SweepInterval,
	})
	if err != nil {
		return err
	}
	if err := manager.Recover(ctx); err != nil {
		return fmt.Errorf("recovering instances: %w", err)
	}
	counts := manager.Counts()
	logger.Info("recovered instances",
		"accumulating", counts.Accumulating,
		"flushing", counts.Flushing,
		"done", counts.Done,
		"failed", counts.Failed,
	)

	retentionContext, stopRetention := context.WithCancel(ctx)
	retentionDone := make(chan struct{})
	go func() {
		defer close(retentionDone)
		manager.RunRetention(retentionContext)
	}()

	lullService := &LullService{manager: manager, logger: logger}
	server := service.NewSocketServer(cfg.Paths.Socket, logger)
	lullService.registerActions(server)

	if ready != nil {
		go func() {
			select {
			case <-server.Ready():
				ready <- server
			case <-ctx.Done():
			}
		}()
	}

	logger.Info("lull-service starting",
		"version", version.Info(),
		"socket", cfg.Paths.Socket,
		"journal", cfg.JournalPath(),
		"invoker", cfg.Invoker.Kind,
	)
	serveErr := server.Serve(ctx)

	stopRetention()
	<-retentionDone

	shutdownContext, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := manager.Shutdown(shutdownContext); err != nil {
		logger.Error("coordinators did not stop in time", "error", err)
	}
	logger.Info("lull-service stopped")
	return serveErr
}
