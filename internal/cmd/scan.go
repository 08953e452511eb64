package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pookie-sol/presale-api/internal/config"
	"github.com/pookie-sol/presale-api/internal/logger"
	"github.com/pookie-sol/presale-api/internal/presale"
	"github.com/pookie-sol/presale-api/internal/rpc"
	"github.com/pookie-sol/presale-api/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the treasury wallet for contributions and exit",
	Long: `Walk the treasury wallet's transaction history once, record any new
presale contributions, and print a summary. Useful for backfilling the local
contribution cache without running the server.`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOrCreate()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Presale.TreasuryWallet == "" {
		return fmt.Errorf("presale.treasury_wallet is not configured")
	}

	log, err := logger.NewDevelopment()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	if err := initDirectories(cfg); err != nil {
		log.Error("Failed to initialize directories", zap.Error(err))
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store := storage.NewContributionStore(cfg.Storage.ContributionsDir)
	client := rpc.New(cfg.RPC.Endpoints, cfg.RPC.Timeout, log)
	scanner := presale.NewScanner(client, store, cfg.Presale, log)

	log.Info("Scanning treasury wallet",
		zap.String("wallet", cfg.Presale.TreasuryWallet),
		zap.Int("batch_size", cfg.Presale.BatchSize),
		zap.Int("max_batches", cfg.Presale.MaxBatches))

	found, err := scanner.Scan(ctx)
	if err != nil {
		log.Error("Scan failed", zap.Error(err))
		return err
	}

	stats, err := scanner.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("\nScan complete: %d new contributions\n", found)
	fmt.Printf("  Total: %.2f SOL of %.2f target (%.1f%%)\n",
		stats.TotalSOL, stats.TargetSOL, stats.Progress*100)
	fmt.Printf("  Contributions: %d\n", stats.ContributionCount)
	for amount, count := range stats.CountByAmount {
		fmt.Printf("    %s SOL: %d\n", amount, count)
	}

	return nil
}
