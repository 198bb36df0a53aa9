package config

import "time"

type Config struct {
	Interval     time.Duration `envconfig:"POLL_INTERVAL" default:"5s"`
	Timeout      time.Duration `envconfig:"POLL_TIMEOUT" default:"15m"`
	CheckTimeout time.Duration `envconfig:"POLL_CHECK_TIMEOUT" default:"30s"`
}
