package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityPilot/internal/config"
	"liquidityPilot/internal/storage"
	"liquidityPilot/internal/storage/postgres"
)

type journalStatus struct {
	TxHash string `json:"tx_hash"`
	Found  bool   `json:"found"`
	Status string `json:"status,omitempty"`
	Source string `json:"source"`
}

// newJournalCmd reads the execution journal. It needs no RPC endpoint.
func newJournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List journaled executions, or look up the status of one transaction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgFile, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			tx, _ := cmd.Flags().GetString("tx")
			out := cmd.OutOrStdout()
			if tx == "" {
				if cfg.Journal == "" {
					return fmt.Errorf("--journal is required to list executions")
				}
				records, err := storage.ReadJsonl(cfg.Journal)
				if err != nil {
					return err
				}
				return printJSON(out, records)
			}

			raw, err := hexutil.Decode(tx)
			if err != nil || len(raw) != common.HashLength {
				return fmt.Errorf("invalid tx hash %q", tx)
			}
			hash := common.BytesToHash(raw).Hex()

			ctx := cmd.Context()
			var (
				lookup storage.StatusLookup
				source string
			)
			switch {
			case cfg.PostgresDSN != "":
				store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
				if err != nil {
					return fmt.Errorf("journal store: %w", err)
				}
				defer store.Close()
				lookup, source = store, "postgres"
			case cfg.Journal != "":
				lookup, source = storage.NewJsonlJournal(cfg.Journal), cfg.Journal
			default:
				return fmt.Errorf("--journal or --pg-dsn is required")
			}

			status, found, err := lookup.ExecutionStatus(ctx, hash)
			if err != nil {
				return fmt.Errorf("lookup %s: %w", hash, err)
			}
			logger.Debug("journal lookup", zap.String("tx", hash), zap.String("source", source), zap.Bool("found", found))
			return printJSON(out, journalStatus{TxHash: hash, Found: found, Status: status, Source: source})
		},
	}
	cmd.Flags().String("tx", "", "transaction hash to look up")
	return cmd
}
