package main

import (
	"fmt"
	"time"
)

type Config struct {
	ServerURL      string        `env:"SERVER_URL,default=http://localhost:5000"`
	PushTransport  string        `env:"PUSH_TRANSPORT,default=sse"`
	SessionID      string        `env:"SESSION_ID,default=default"`
	BadgerFilepath string        `env:"BADGER_FILEPATH,default=.dm-relay/session"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT,default=10s"`
	MaxAttempts    int           `env:"SEND_MAX_ATTEMPTS,default=3"`
	RetryBackoff   time.Duration `env:"SEND_RETRY_BACKOFF,default=1s"`
	AttemptTimeout time.Duration `env:"SEND_ATTEMPT_TIMEOUT,default=5s"`
	Colours        bool          `env:"COLOURS,default=true"`
	LogLevel       string        `env:"LOG_LEVEL,default=ERROR"`
}

const (
	transportSSE       = "sse"
	transportWebSocket = "websocket"
)

func (c Config) validate() error {
	switch c.PushTransport {
	case transportSSE, transportWebSocket:
	default:
		return fmt.Errorf("PUSH_TRANSPORT must be %q or %q, got %q", transportSSE, transportWebSocket, c.PushTransport)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("SEND_MAX_ATTEMPTS must be at least 1, got %d", c.MaxAttempts)
	}
	return nil
}
