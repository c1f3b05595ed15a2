package main

import (
	"context"
	"dm-relay/infrastructure/http/server"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"golang.org/x/sync/errgroup"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Directory index (Bluge, in memory)
	directory, err := server.NewDirectory()
	if err != nil {
		return exitRuntime, fmt.Errorf("directory opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing directory...")
		_ = directory.Close()
	}()

	// 3. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	publicHost := config.PublicHost
	if publicHost == "" {
		publicHost = config.Host
	}
	relay := server.NewServer(log, directory, server.Options{
		Host:        publicHost,
		Heartbeat:   config.Heartbeat,
		SearchLimit: config.SearchLimit,
	})

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{
		Addr:              address,
		Handler:           relay.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Open streams end with the process context, otherwise Shutdown
		// would wait on them until its deadline.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	// 4. Serve until a signal arrives
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Starting relay", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return exitRuntime, err
	}
	log.Info("Relay stopped cleanly")
	return exitOK, nil
}
