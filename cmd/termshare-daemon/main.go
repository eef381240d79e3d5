// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/termshare/control"
	"github.com/bureau-foundation/termshare/lib/codec"
	"github.com/bureau-foundation/termshare/lib/config"
	"github.com/bureau-foundation/termshare/lib/process"
	"github.com/bureau-foundation/termshare/lib/tmux"
	"github.com/bureau-foundation/termshare/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("termshare-daemon", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to termshare.yaml (default: $"+config.EnvironmentVariable+")")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		version.Print("termshare-daemon")
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runDaemon(ctx, cfg, logger)
}

// loadConfig reads path, or $TERMSHARE_CONFIG when path is empty, and
// validates the result.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(logConfig config.LogConfig, output io.Writer) *slog.Logger {
	options := &slog.HandlerOptions{Level: logConfig.SlogLevel()}
	if logConfig.Format == "json" {
		return slog.New(slog.NewJSONHandler(output, options))
	}
	return slog.New(slog.NewTextHandler(output, options))
}

// runDaemon serves the control channel until ctx is cancelled or the
// channel ends. On cancellation it sends fin and waits up to
// control.shutdown_timeout for the server to close the connection;
// either outcome is a clean shutdown.
func runDaemon(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	metrics := control.NewMetrics()
	if cfg.Metrics.Listen != "" {
		shutdown, err := serveMetrics(cfg.Metrics.Listen, metrics, logger)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	server := tmux.NewServer(cfg.Tmux.Socket, "")
	host := control.NewTmuxHost(server, cfg.Tmux.Session, logger)

	if !cfg.Control.Enabled {
		logger.Info("control channel disabled, idling", "tmux_session", cfg.Tmux.Session)
		<-ctx.Done()
		return nil
	}

	connection, err := control.Dial(ctx, cfg.Control.Host, cfg.Control.Port, control.DialOptions{
		Timeout: cfg.Control.ConnectTimeout,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	logger.Info("control channel connected",
		"host", cfg.Control.Host,
		"port", cfg.Control.Port,
		"tmux_session", cfg.Tmux.Session,
	)

	session := control.NewSession(control.SessionConfig{
		Identity: control.Identity{
			Username:  cfg.Session.Username,
			IPAddress: cfg.Session.IPAddress,
			PublicKey: cfg.Session.PublicKey,
		},
		Token:                 cfg.Session.Token,
		ReadOnlyToken:         cfg.Session.ReadOnlyToken,
		ClientVersion:         cfg.Session.ClientVersion,
		ClientProtocolVersion: cfg.Session.ClientProtocolVersion,
	})
	encoder := codec.NewEncoder()
	notifier := control.NewNotifier(session, encoder, control.NotifierConfig{
		Enabled:            true,
		ConnectionTemplate: cfg.Control.ConnectionTemplate,
		Logger:             logger,
		Metrics:            metrics,
	})
	dispatcher := control.NewDispatcher(control.DispatcherConfig{
		Session:  session,
		Encoder:  encoder,
		Handlers: host.Handlers(),
		Logger:   logger,
		Metrics:  metrics,
	})
	channel := control.NewChannel(connection, control.ChannelConfig{
		Session:           session,
		Encoder:           encoder,
		Dispatch:          dispatcher.Dispatch,
		ReceiveBufferSize: cfg.Control.ReceiveBufferSize,
		Logger:            logger,
		Metrics:           metrics,
	})

	notifier.SendHeader()
	if cfg.Session.Exec != "" {
		notifier.SendExec(cfg.Session.Exec)
	}
	if err := host.PublishConnection(cfg.Control.ConnectionTemplate, session.Token()); err != nil {
		logger.Warn("publishing connection command to tmux failed", "error", err)
	}

	// The channel outlives ctx so that fin can still be exchanged.
	runCtx, cancelRun := context.WithCancel(context.WithoutCancel(ctx))
	result := make(chan error, 1)
	go func() { result <- channel.Run(runCtx) }()

	var watchers sync.WaitGroup
	defer func() {
		cancelRun()
		watchers.Wait()
	}()
	if cfg.Tmux.ClientPollInterval > 0 {
		watcher := control.NewClientWatcher(control.ClientWatcherConfig{
			Lister:      server,
			SessionName: cfg.Tmux.Session,
			Channel:     channel,
			Notifier:    notifier,
			Interval:    cfg.Tmux.ClientPollInterval,
			Logger:      logger,
		})
		watchers.Add(1)
		go func() {
			defer watchers.Done()
			watcher.Run(runCtx)
		}()
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
	}
	return shutdownChannel(channel, notifier, result, cancelRun, cfg.Control.ShutdownTimeout, logger)
}

// shutdownChannel sends fin and waits for Run to finish. The server
// answers fin by closing the connection, which Run reports as nil. If
// it does not close within timeout the channel is cancelled.
func shutdownChannel(channel *control.Channel, notifier *control.Notifier, result <-chan error,
	cancel context.CancelFunc, timeout time.Duration, logger *slog.Logger) error {
	if !channel.Submit(notifier.SendFin) {
		return <-result
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-result:
		if err != nil {
			return err
		}
		logger.Info("control server closed the connection after fin")
		return nil
	case <-timer.C:
		logger.Warn("control server did not close the connection after fin", "timeout", timeout)
		cancel()
		<-result
		return nil
	}
}

// serveMetrics starts the /metrics endpoint on listen. The returned
// function stops it.
func serveMetrics(listen string, metrics *control.Metrics, logger *slog.Logger) (func(), error) {
	listener, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, fmt.Errorf("listening for metrics on %s: %w", listen, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	httpServer := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	served := make(chan struct{})
	go func() {
		defer close(served)
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("metrics endpoint listening", "address", listener.Addr().String())

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("stopping metrics server", "error", err)
		}
		<-served
	}, nil
}
