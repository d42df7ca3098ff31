// Package cli is the walletctl operator tool.
package cli

import (
	"fmt"
	"os"

	"github.com/richardliu001/wallet-ledger/internal/auth"
	"github.com/richardliu001/wallet-ledger/internal/config"
	"github.com/richardliu001/wallet-ledger/internal/logger"
	"github.com/richardliu001/wallet-ledger/internal/repo"
	"github.com/richardliu001/wallet-ledger/internal/service"
	"github.com/spf13/cobra"
)

// App is what the subcommands operate on.
type App struct {
	Repo       *repo.Repository
	Auth       *auth.Service
	Onboarding *service.OnboardingService
	Close      func()
}

// Opener builds the App from the config file at path.
type Opener func(path string) (*App, error)

// Execute runs walletctl against Postgres.
func Execute() {
	if err := NewRootCmd(OpenPostgres).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func NewRootCmd(open Opener) *cobra.Command {
	var (
		configFile string
		app        *App
	)
	root := &cobra.Command{
		Use:           "walletctl",
		Short:         "Operator tool for the wallet ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile == "" {
				configFile = config.Path()
			}
			var err error
			app, err = open(configFile)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil && app.Close != nil {
				app.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path (default $WALLET_CONFIG)")

	getApp := func() *App { return app }
	root.AddCommand(
		newProvisionCmd(getApp),
		newIssueKeyCmd(getApp),
		newSessionTokenCmd(getApp),
		newBalanceCmd(getApp),
	)
	return root
}

// OpenPostgres wires the App the way the server does, minus HTTP.
func OpenPostgres(path string) (*App, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	gdb, err := repo.OpenPostgres(cfg.Postgres)
	if err != nil {
		return nil, err
	}
	if err := repo.Migrate(gdb); err != nil {
		return nil, err
	}
	r := repo.NewRepository(gdb, nil, nil, log, repo.WithTxTimeout(cfg.Postgres.TxTimeout))
	return &App{
		Repo:       r,
		Auth:       auth.NewService(gdb, cfg.Auth, log),
		Onboarding: service.NewOnboardingService(r, log),
		Close: func() {
			_ = log.Sync()
			if sqlDB, err := gdb.DB(); err == nil {
				_ = sqlDB.Close()
			}
		},
	}, nil
}
