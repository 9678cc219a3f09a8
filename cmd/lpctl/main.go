package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "lpctl",
		Short:        "Concentrated-liquidity position manager",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.String("rpc", "", "Ethereum JSON-RPC URL")
	flags.String("position-manager", "", "NonfungiblePositionManager address")
	flags.String("factory", "", "pool factory address")
	flags.String("pool-init-code-hash", "", "pool init code hash for CREATE2 derivation")
	flags.StringSlice("native-tokens", nil, "wrapped native token addresses (comma-separated)")
	flags.String("private-key", "", "hex private key used to sign transactions")
	flags.String("slippage", "0.005", "slippage tolerance as a fraction (0.005 = 0.5%)")
	flags.Duration("max-wait", 10*time.Minute, "deadline offset for submitted actions")
	flags.Duration("max-staleness", 30*time.Second, "oldest acceptable pool snapshot, 0 disables")
	flags.Int("stale-refetches", 2, "pool re-reads before failing on a stale snapshot")
	flags.Duration("stale-refetch-delay", 12*time.Second, "wait between stale snapshot re-reads")
	flags.Duration("receipt-timeout", 3*time.Minute, "how long to wait for a receipt")
	flags.Duration("poll-interval", 2*time.Second, "receipt polling interval")
	flags.Int("max-retries", 5, "maximum retry attempts for RPC reads")
	flags.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	flags.String("journal", "./data/executions.jsonl", "execution journal JSONL path, empty disables")
	flags.String("pg-dsn", "", "Postgres DSN for the execution journal")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		newPoolCmd(),
		newPositionCmd(),
		newMintCmd(),
		newIncreaseCmd(),
		newDecreaseCmd(),
		newCollectCmd(),
		newClaimAllCmd(),
		newApproveCmd(),
		newJournalCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
