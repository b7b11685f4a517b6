package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/lemonmilkceo/final-sub001/internal/contracts"
	"github.com/lemonmilkceo/final-sub001/internal/expiry"
	"github.com/lemonmilkceo/final-sub001/internal/ledger"
	"github.com/lemonmilkceo/final-sub001/internal/notify"
)

func expireCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "expire",
		Short: "Run one expiry batch and print the report",
		Long: `Expire every pending contract whose signing window closed before --at
(default: now) and notify both parties. Safe to re-run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return err
				}
				now = t
			}
			_, pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			log := logger()
			ledgerSvc := ledger.NewService(ledger.NewRepository(pool), log)
			svc := contracts.NewService(contracts.NewRepository(pool), ledgerSvc, log)
			rep, err := expiry.NewScheduler(svc, notify.NewStore(pool, log), log).Run(cmd.Context(), now)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "evaluate deadlines at this RFC3339 time")
	return cmd
}
