package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iurnickita/pixrecon/internal/service"
	"github.com/iurnickita/pixrecon/internal/store"
)

func pendingCmd() *cobra.Command {
	var period string

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List payment requests still waiting for payment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			backend, err := store.NewBackend(cfg.Store)
			if err != nil {
				return err
			}
			defer backend.Close()

			svc, err := service.NewService(cmd.Context(), cfg.Service, backend, zap.NewNop())
			if err != nil {
				return err
			}
			defer svc.Close()

			pending, err := svc.Pending(cmd.Context(), period, true)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "IDENTIFIER\tPERIOD\tPAYER\tITEM\tAMOUNT\tCREATED")
			for _, req := range pending {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					req.Identifier, req.Period, req.PayerID, req.Item,
					req.Amount.StringFixed(2), req.CreatedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&period, "period", "", "only this billing period (YYYYMM)")
	return cmd
}
