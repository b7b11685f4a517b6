// Command contractctl runs operator tasks against the contracts database:
// migrations, one-off expiry runs, balance checks and token minting.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/lemonmilkceo/final-sub001/internal/config"
	"github.com/lemonmilkceo/final-sub001/internal/db"
)

var Version = "dev"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "contractctl",
		Short:         "Operator tooling for the contracts service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_FILE"), "path to a TOML config file")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(expireCmd())
	rootCmd.AddCommand(balanceCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(piiCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}

func logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// connect loads config and opens a pool; callers close the pool.
func connect(ctx context.Context) (config.Config, *pgxpool.Pool, error) {
	cfg, err := loadConfig()
	if err != nil {
		return config.Config{}, nil, err
	}
	pool, err := db.Connect(ctx, cfg.Database.URL, 2)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, pool, nil
}
