package config

import "time"

type Config struct {
	ServerAddr      string        `envconfig:"SERVER_ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
	MaxBodyBytes    int64         `envconfig:"SERVER_MAX_BODY_BYTES" default:"1048576"`
}
