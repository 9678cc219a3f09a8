package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityPilot/internal/chain"
	"liquidityPilot/internal/config"
	"liquidityPilot/internal/gateway"
	"liquidityPilot/internal/lifecycle"
	"liquidityPilot/internal/model"
	"liquidityPilot/internal/planner"
	"liquidityPilot/internal/storage"
	"liquidityPilot/internal/storage/postgres"
)

// app holds the components wired for one command invocation.
type app struct {
	cfg          config.Config
	action       config.ActionConfig
	logger       *zap.Logger
	gateway      *gateway.Gateway
	planner      *planner.Planner
	orchestrator *lifecycle.Orchestrator
	out          io.Writer
}

// runWith loads configuration, connects, and hands a ready app to fn.
func runWith(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	action, err := config.LoadAction(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	key, err := cfg.SigningKey()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	gw, err := gateway.New(chainClient, gateway.Config{
		PositionManager:  cfg.PositionManager,
		Factory:          cfg.Factory,
		PoolInitCodeHash: cfg.PoolInitCodeHash,
		NativeTokens:     cfg.NativeTokens,
		PrivateKey:       key,
		ReceiptTimeout:   cfg.ReceiptTimeout,
		PollInterval:     cfg.PollInterval,
		MaxRetries:       cfg.MaxRetries,
		RetryBackoff:     cfg.RetryBackoff,
	}, logger.Named("gateway"))
	if err != nil {
		return err
	}

	a := &app{
		cfg:     cfg,
		action:  action,
		logger:  logger,
		gateway: gw,
		planner: planner.New(gw, gw, planner.Options{
			MaxStaleness:   cfg.MaxStaleness,
			StaleRefetches: cfg.StaleRefetches,
			RefetchDelay:   cfg.StaleRefetchDelay,
		}, logger.Named("planner")),
		orchestrator: lifecycle.New(gw, lifecycle.NewTracker(), logger.Named("orchestrator")),
		out:          cmd.OutOrStdout(),
	}

	logger.Debug("lpctl start",
		zap.String("command", cmd.Name()),
		zap.String("rpc", cfg.RPCURL),
		zap.String("position_manager", cfg.PositionManager.Hex()),
		zap.String("account", gw.Account().Hex()),
		zap.Bool("dry_run", action.DryRun),
	)
	return fn(ctx, a)
}

// self returns the signing account or an error naming the flag that would supply one.
func (a *app) self(flag string) (common.Address, error) {
	if account := a.gateway.Account(); account != (common.Address{}) {
		return account, nil
	}
	return common.Address{}, fmt.Errorf("--%s or --private-key is required", flag)
}

type dryRunOutput struct {
	Requests    []model.ActionRequest `json:"requests"`
	Calls       []model.ActionRequest `json:"calls"`
	NativeValue string                `json:"native_value"`
}

// execute submits requests as one batch, or prints the bundle on dry run, and journals the outcome.
func (a *app) execute(ctx context.Context, command string, requests []model.ActionRequest) error {
	if a.action.DryRun {
		now := time.Now()
		for i, req := range requests {
			if err := req.Validate(now); err != nil {
				return fmt.Errorf("request %d: %w", i, err)
			}
		}
		batch, err := lifecycle.Bundle(requests)
		if err != nil {
			return err
		}
		a.journal(ctx, model.ExecutionRecord{
			Command:    command,
			Account:    a.gateway.Account(),
			Status:     model.ExecutionDryRun,
			Requests:   batch.Calls,
			RecordedAt: now.UTC(),
		})
		return a.print(dryRunOutput{Requests: requests, Calls: batch.Calls, NativeValue: batch.NativeValue.String()})
	}

	result, err := a.orchestrator.Execute(ctx, requests)
	record := model.ExecutionRecord{
		Command:    command,
		Account:    a.gateway.Account(),
		Requests:   requests,
		RecordedAt: time.Now().UTC(),
	}
	switch {
	case err == nil:
		record.Status = model.ExecutionSucceeded
	case errors.Is(err, model.ErrBatchReverted):
		record.Status = model.ExecutionReverted
	default:
		record.Status = model.ExecutionFailed
	}
	if err != nil {
		record.Error = err.Error()
	}
	if err == nil || result.TxHash != (common.Hash{}) {
		record.Result = &result
	}
	a.journal(ctx, record)

	if err != nil {
		return err
	}
	return a.print(result)
}

// journal appends the record to every configured sink. Failures are logged, not returned.
func (a *app) journal(ctx context.Context, record model.ExecutionRecord) {
	var sinks storage.MultiJournal
	if a.cfg.Journal != "" {
		sinks = append(sinks, storage.NewJsonlJournal(a.cfg.Journal))
	}
	if a.cfg.PostgresDSN != "" {
		store, err := postgres.NewStore(ctx, a.cfg.PostgresDSN)
		if err != nil {
			a.logger.Warn("journal store unavailable", zap.Error(err))
		} else {
			defer store.Close()
			if err := store.EnsureSchema(ctx); err != nil {
				a.logger.Warn("journal schema", zap.Error(err))
			} else {
				sinks = append(sinks, store)
			}
		}
	}
	if len(sinks) == 0 {
		return
	}
	if err := sinks.Record(ctx, record); err != nil {
		a.logger.Warn("journal write failed", zap.String("command", record.Command), zap.Error(err))
	}
}

func (a *app) print(v interface{}) error {
	return printJSON(a.out, v)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
