package config

import (
	"github.com/kelseyhightower/envconfig"

	authConfig "github.com/iurnickita/pixrecon/internal/auth/config"
	"github.com/iurnickita/pixrecon/internal/errs"
	handlerConfig "github.com/iurnickita/pixrecon/internal/handler/config"
	loggerConfig "github.com/iurnickita/pixrecon/internal/logger/config"
	serviceConfig "github.com/iurnickita/pixrecon/internal/service/config"
	storeConfig "github.com/iurnickita/pixrecon/internal/store/config"
)

type Config struct {
	Handler handlerConfig.Config
	Service serviceConfig.Config
	Store   storeConfig.Config
	Logger  loggerConfig.Config
	Auth    authConfig.Config
}

// GetConfig reads the configuration from the environment.
func GetConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, errs.Wrap(err, "process env config")
	}
	return cfg, nil
}
