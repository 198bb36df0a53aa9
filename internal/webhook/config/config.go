package config

type Config struct {
	// Secret enables x-signature validation when set.
	Secret string `envconfig:"WEBHOOK_SECRET"`
}
