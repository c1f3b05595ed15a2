package main

import "time"

type Config struct {
	Host            string        `env:"HOST,default=localhost"`
	Port            int           `env:"PORT,default=5000"`
	PublicHost      string        `env:"PUBLIC_HOST"`
	Heartbeat       time.Duration `env:"HEARTBEAT_INTERVAL,default=25s"`
	SearchLimit     int           `env:"SEARCH_LIMIT,default=50"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s"`
	LogLevel        string        `env:"LOG_LEVEL,default=INFO"`
}
