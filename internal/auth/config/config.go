package config

import "time"

type Config struct {
	// Secret signs operator tokens. Empty disables authentication.
	Secret string        `envconfig:"AUTH_SECRET"`
	TTL    time.Duration `envconfig:"AUTH_TTL" default:"12h"`
}
