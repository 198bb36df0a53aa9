package config

type Config struct {
	Backend string `envconfig:"LEDGER_BACKEND" default:"memory"`
	Path    string `envconfig:"LEDGER_PATH" default:"ledger.db"`
	DBDsn   string `envconfig:"LEDGER_DSN"`
}
