package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

var (
	flagAddr    string
	flagBackend string
	flagPath    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "pixrecon",
		Short:        "PIX static-key payment reconciliation service",
		Version:      Version,
		SilenceUsage: true,
		RunE:         runServe,
	}
	rootCmd.PersistentFlags().StringVar(&flagAddr, "addr", "", "listen address (overrides SERVER_ADDR)")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "ledger backend: memory, bolt, xlsx, postgres (overrides LEDGER_BACKEND)")
	rootCmd.PersistentFlags().StringVar(&flagPath, "path", "", "ledger file for bolt and xlsx (overrides LEDGER_PATH)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(pendingCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}
