package config

import (
	ledgerConfig "github.com/iurnickita/pixrecon/internal/ledger/config"
	notifyConfig "github.com/iurnickita/pixrecon/internal/notify/config"
	pollerConfig "github.com/iurnickita/pixrecon/internal/poller/config"
	providerConfig "github.com/iurnickita/pixrecon/internal/provider/config"
	webhookConfig "github.com/iurnickita/pixrecon/internal/webhook/config"
)

type Config struct {
	Ledger   ledgerConfig.Config
	Provider providerConfig.Config
	Poller   pollerConfig.Config
	Webhook  webhookConfig.Config
	Notify   notifyConfig.Config
}
