package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iurnickita/pixrecon/internal/auth"
	"github.com/iurnickita/pixrecon/internal/config"
	"github.com/iurnickita/pixrecon/internal/handler"
	"github.com/iurnickita/pixrecon/internal/logger"
	"github.com/iurnickita/pixrecon/internal/service"
	"github.com/iurnickita/pixrecon/internal/store"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service (default)",
		Long: `Run the HTTP service until SIGINT or SIGTERM.

Examples:
  pixrecon serve --addr :8080 --backend bolt --path ledger.db
  LEDGER_BACKEND=postgres LEDGER_DSN=postgres://... pixrecon`,
		RunE: runServe,
	}
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.GetConfig()
	if err != nil {
		return config.Config{}, err
	}
	if flagAddr != "" {
		cfg.Handler.ServerAddr = flagAddr
	}
	if flagBackend != "" {
		cfg.Store.Backend = flagBackend
	}
	if flagPath != "" {
		cfg.Store.Path = flagPath
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	zaplog, err := logger.NewZapLog(cfg.Logger)
	if err != nil {
		return err
	}
	defer zaplog.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := store.NewBackend(cfg.Store)
	if err != nil {
		return err
	}
	defer backend.Close()

	service, err := service.NewService(ctx, cfg.Service, backend, zaplog)
	if err != nil {
		return err
	}
	defer service.Close()

	auth := auth.NewAuth(cfg.Auth, zaplog)

	zaplog.Info("pixrecon starting",
		zap.String("version", Version),
		zap.String("backend", cfg.Store.Backend),
		zap.Bool("auth", auth.Enabled()))
	return handler.Serve(ctx, cfg.Handler, auth, service, zaplog)
}
