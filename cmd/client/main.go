package main

import (
	"bufio"
	"context"
	"dm-relay/contract"
	"dm-relay/infrastructure/http/client"
	"dm-relay/repositories"
	"dm-relay/runtime"
	"dm-relay/services"
	"dm-relay/ui"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run keeps every deferred cleanup on the exit path, so the inbound stream
// and the session store are closed however the client stops.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.validate(); err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Session store (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		return exitRuntime, fmt.Errorf("session store opening failed: %w", err)
	}

	// 3. Remote services & display
	httpClient := client.NewClient(config.ServerURL, config.RequestTimeout)
	terminal := ui.NewTerminal(os.Stdout, config.Colours)
	messenger, err := runtime.NewMessenger(log, runtime.Backends{
		Registry: client.NewRegistryClient(httpClient),
		Delivery: client.NewDeliveryClient(httpClient),
		Channel:  pushChannel(config, log),
	}, repositories.NewSessionRepository(db, log, config.SessionID), terminal, services.RetryPolicy{
		MaxAttempts:    config.MaxAttempts,
		Backoff:        services.FixedBackoff(config.RetryBackoff),
		AttemptTimeout: config.AttemptTimeout,
	}, nil)
	if err != nil {
		_ = db.Close()
		return exitRuntime, fmt.Errorf("session loading failed: %w", err)
	}
	messenger.Own(db)
	defer func() {
		log.Info("Closing session...")
		if err := messenger.Close(); err != nil {
			log.Error("Session close failed", "error", err)
		}
	}()

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := messenger.Start(ctx); err != nil {
		terminal.Info("Previous session could not be resumed, use /register <name>")
	}
	if _, ok := messenger.Identity(); !ok {
		terminal.Help()
	}

	// 5. Input loop
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	sh := newShell(messenger, terminal)
	for {
		select {
		case <-ctx.Done():
			log.Info("Interrupted")
			return exitOK, nil
		case line, ok := <-lines:
			if !ok || sh.exec(ctx, line) {
				return exitOK, nil
			}
		}
	}
}

func pushChannel(config Config, log *slog.Logger) contract.PushChannel {
	if config.PushTransport == transportWebSocket {
		return client.NewWebSocketChannel(config.ServerURL, log)
	}
	return client.NewSSEChannel(config.ServerURL, log)
}
