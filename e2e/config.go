package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// RELAY_ADDR targets a running relay; empty starts one in process
	RelayAddr string `envconfig:"RELAY_ADDR"`
	// E2E_PUSH_TRANSPORT selects the inbound stream: sse or websocket
	PushTransport string `envconfig:"E2E_PUSH_TRANSPORT" default:"sse"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours        bool          `envconfig:"E2E_COLOURS" default:"true"`
	ReceiveTimeout time.Duration `envconfig:"E2E_RECEIVE_TIMEOUT" default:"5s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
