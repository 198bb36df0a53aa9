package config

import "time"

type Config struct {
	BaseURL string        `envconfig:"PROVIDER_BASE_URL" default:"https://api.mercadopago.com"`
	Token   string        `envconfig:"PROVIDER_TOKEN"`
	Timeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"30s"`
}
