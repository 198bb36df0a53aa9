package config

import "time"

type Config struct {
	Table          string        `envconfig:"LEDGER_TABLE" default:"payments"`
	MinInterval    time.Duration `envconfig:"LEDGER_MIN_INTERVAL" default:"1100ms"`
	CacheTTL       time.Duration `envconfig:"LEDGER_CACHE_TTL" default:"5m"`
	MaxAttempts    int           `envconfig:"LEDGER_MAX_ATTEMPTS" default:"5"`
	InitialBackoff time.Duration `envconfig:"LEDGER_INITIAL_BACKOFF" default:"1s"`
	MaxBackoff     time.Duration `envconfig:"LEDGER_MAX_BACKOFF" default:"30s"`
	RedisAddr      string        `envconfig:"LEDGER_REDIS_ADDR"`
	RedisStaleTTL  time.Duration `envconfig:"LEDGER_REDIS_STALE_TTL" default:"24h"`
}
