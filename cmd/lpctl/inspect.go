package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"liquidityPilot/internal/liquidity"
	"liquidityPilot/internal/model"
	"liquidityPilot/internal/planner"
	"liquidityPilot/internal/tickmath"
)

type poolOutput struct {
	Pool     model.Pool      `json:"pool"`
	Price    decimal.Decimal `json:"price"`
	Reserve0 decimal.Decimal `json:"reserve0"`
	Reserve1 decimal.Decimal `json:"reserve1"`
}

func newPoolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Show the current state of a pool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWith(cmd, func(ctx context.Context, a *app) error {
				if a.action.Pool == (common.Address{}) {
					return fmt.Errorf("--pool is required")
				}
				pool, err := a.gateway.PoolState(ctx, a.action.Pool)
				if err != nil {
					return err
				}
				reserve0, reserve1, err := a.gateway.PoolReserves(ctx, pool)
				if err != nil {
					return err
				}
				return a.print(poolOutput{
					Pool:     pool,
					Price:    tickmath.SqrtPriceX96ToPrice(pool.SqrtPriceX96, pool.Token0.Decimals, pool.Token1.Decimals),
					Reserve0: liquidity.FromRaw(reserve0, pool.Token0.Decimals),
					Reserve1: liquidity.FromRaw(reserve1, pool.Token1.Decimals),
				})
			})
		},
	}
	cmd.Flags().String("pool", "", "pool address")
	return cmd
}

type positionOutput struct {
	planner.Summary
	Claimable0 string `json:"claimable0_raw"`
	Claimable1 string `json:"claimable1_raw"`
}

func newPositionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "position",
		Short: "Summarize a position at the current pool price",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWith(cmd, func(ctx context.Context, a *app) error {
				if a.action.TokenID == nil {
					return fmt.Errorf("--token-id is required")
				}
				summary, err := a.planner.Describe(ctx, a.action.TokenID)
				if err != nil {
					return err
				}
				fee0, fee1, err := a.gateway.ClaimableFees(ctx, a.action.TokenID, summary.Owner)
				if err != nil {
					return err
				}
				return a.print(positionOutput{
					Summary:    summary,
					Claimable0: fee0.String(),
					Claimable1: fee1.String(),
				})
			})
		},
	}
	cmd.Flags().String("token-id", "", "position token id")
	return cmd
}
