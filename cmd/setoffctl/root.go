package main

import (
	"context"
	"fmt"

	financeapp "github.com/erp/setoff/internal/application/finance"
	"github.com/erp/setoff/internal/infrastructure/config"
	"github.com/erp/setoff/internal/infrastructure/event"
	"github.com/erp/setoff/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	flagConfig string
	flagTenant string
)

var rootCmd = &cobra.Command{
	Use:   "setoffctl",
	Short: "Admin tool for the setoff service",
	Long: `setoffctl inspects setoff ledgers, prepayments and the event outbox
directly in the database and runs the tax calculator offline.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ./config.toml, SETOFF_* env)")
	rootCmd.PersistentFlags().StringVar(&flagTenant, "tenant", "", "tenant id")

	rootCmd.AddCommand(taxCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(outstandingCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(outboxCmd)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (*config.Config, error) {
	if flagConfig != "" {
		return config.LoadFile(flagConfig)
	}
	return config.Load()
}

func tenant() (uuid.UUID, error) {
	if flagTenant == "" {
		return uuid.Nil, fmt.Errorf("--tenant is required")
	}
	id, err := uuid.Parse(flagTenant)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --tenant: %w", err)
	}
	return id, nil
}

type services struct {
	ledger      *financeapp.LedgerService
	prepayments *financeapp.PrepaymentService
	setoff      *financeapp.SetoffService
	lines       *financeapp.SourceLineService
	close       func() error
}

// openDatabase connects to the configured database without logging queries
func openDatabase(ctx context.Context) (*persistence.Database, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	db, err := persistence.NewDatabase(&cfg.Database, persistence.Options{})
	if err != nil {
		return nil, err
	}
	if db.Driver() == "sqlite" {
		if err := db.AutoMigrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

func openServices(ctx context.Context) (*services, error) {
	db, err := openDatabase(ctx)
	if err != nil {
		return nil, err
	}

	log := zap.NewNop()
	scope := persistence.NewGormTransactionScope(db.DB, event.NewSetoffEventSerializer())
	ledger := financeapp.NewLedgerService(scope, log)
	prepayments := financeapp.NewPrepaymentService(scope, log)
	return &services{
		ledger:      ledger,
		prepayments: prepayments,
		setoff:      financeapp.NewSetoffService(scope, ledger, prepayments, log),
		lines:       financeapp.NewSourceLineService(scope, log),
		close:       db.Close,
	}, nil
}
