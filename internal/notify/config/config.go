package config

import "time"

type Config struct {
	URL      string        `envconfig:"NOTIFY_URL"`
	Token    string        `envconfig:"NOTIFY_TOKEN"`
	Template string        `envconfig:"NOTIFY_TEMPLATE" default:"payment_confirmed"`
	Timeout  time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"10s"`
}
