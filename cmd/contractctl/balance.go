package main

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lemonmilkceo/final-sub001/internal/ledger"
)

func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <user-id>",
		Short: "Print a user's credit balances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}
			_, pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			balances, err := ledger.NewService(ledger.NewRepository(pool), logger()).Balances(cmd.Context(), userID)
			if err != nil {
				return err
			}
			types := make([]string, 0, len(balances))
			for t := range balances {
				types = append(types, t)
			}
			sort.Strings(types)
			for _, t := range types {
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %d\n", t, balances[t])
			}
			return nil
		},
	}
}
