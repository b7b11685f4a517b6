package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lemonmilkceo/final-sub001/internal/pii"
)

func piiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pii",
		Short: "Inspect encrypted profile data",
	}
	cmd.AddCommand(piiHashCmd(), piiDuplicatesCmd())
	return cmd
}

func encryptor() (*pii.Encryptor, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return pii.NewEncryptor(cfg.PII.Secret, cfg.PII.LookupSalt, pii.KeyDerivation(cfg.PII.KeyDerivation))
}

func piiHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <national-id>",
		Short: "Print the lookup hash stored for a national id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc, err := encryptor()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), enc.LookupHash(pii.NormalizeNationalID(args[0]), pii.NationalIDHashPrefix))
			return nil
		},
	}
}

func piiDuplicatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "duplicates <national-id>",
		Short: "List users whose national id shares the hashed prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc, err := encryptor()
			if err != nil {
				return err
			}
			_, pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			log := logger()
			reader := pii.NewReader(enc, pii.NewPGAccessLogger(pool, log), log)
			svc := pii.NewProfileService(pii.NewProfileRepository(pool), enc, reader, log)
			ids, err := svc.FindDuplicates(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}
