package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityPilot/internal/liquidity"
	"liquidityPilot/internal/model"
	"liquidityPilot/internal/planner"
)

func addDryRun(cmd *cobra.Command) {
	cmd.Flags().Bool("dry-run", false, "print the planned batch without submitting")
}

func newMintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Open a new position from a price range and a one-sided amount",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWith(cmd, func(ctx context.Context, a *app) error {
				if a.action.Pool == (common.Address{}) {
					return fmt.Errorf("--pool is required")
				}
				recipient := a.action.Recipient
				if recipient == (common.Address{}) {
					var err error
					if recipient, err = a.self("recipient"); err != nil {
						return err
					}
				}
				req, err := a.planner.PlanMint(ctx, planner.MintIntent{
					Pool:       a.action.Pool,
					PriceLower: a.action.PriceLower,
					PriceUpper: a.action.PriceUpper,
					InputIndex: a.action.InputIndex,
					Amount:     a.action.Amount,
					Slippage:   a.cfg.Slippage,
					MaxWait:    a.cfg.MaxWait,
					Recipient:  recipient,
				})
				if err != nil {
					return err
				}
				return a.execute(ctx, "mint", []model.ActionRequest{req})
			})
		},
	}
	cmd.Flags().String("pool", "", "pool address")
	cmd.Flags().String("price-lower", "", "lower price bound (token1 per token0)")
	cmd.Flags().String("price-upper", "", "upper price bound (token1 per token0)")
	cmd.Flags().Int("input-index", 0, "token the amount is given in (0 or 1)")
	cmd.Flags().String("amount", "", "amount of the input token in human units")
	cmd.Flags().String("recipient", "", "owner of the new position, defaults to the signer")
	addDryRun(cmd)
	return cmd
}

func newIncreaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "increase",
		Short: "Add liquidity to an existing position",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWith(cmd, func(ctx context.Context, a *app) error {
				if a.action.TokenID == nil {
					return fmt.Errorf("--token-id is required")
				}
				req, err := a.planner.PlanIncrease(ctx, planner.IncreaseIntent{
					TokenID:    a.action.TokenID,
					InputIndex: a.action.InputIndex,
					Amount:     a.action.Amount,
					Slippage:   a.cfg.Slippage,
					MaxWait:    a.cfg.MaxWait,
				})
				if err != nil {
					return err
				}
				return a.execute(ctx, "increase", []model.ActionRequest{req})
			})
		},
	}
	cmd.Flags().String("token-id", "", "position token id")
	cmd.Flags().Int("input-index", 0, "token the amount is given in (0 or 1)")
	cmd.Flags().String("amount", "", "amount of the input token in human units")
	addDryRun(cmd)
	return cmd
}

func newDecreaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decrease",
		Short: "Remove a percentage of a position's liquidity and collect the proceeds",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWith(cmd, func(ctx context.Context, a *app) error {
				if a.action.TokenID == nil {
					return fmt.Errorf("--token-id is required")
				}
				requests, err := a.planner.PlanDecrease(ctx, planner.DecreaseIntent{
					TokenID:    a.action.TokenID,
					Percentage: a.action.Percent,
					Slippage:   a.cfg.Slippage,
					MaxWait:    a.cfg.MaxWait,
					Recipient:  a.action.Recipient,
				})
				if err != nil {
					return err
				}
				return a.execute(ctx, "decrease", requests)
			})
		},
	}
	cmd.Flags().String("token-id", "", "position token id")
	cmd.Flags().String("percent", "", "share of liquidity to remove, in (0, 100]")
	cmd.Flags().String("recipient", "", "receiver of the withdrawn tokens, defaults to the owner")
	addDryRun(cmd)
	return cmd
}

func newCollectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect everything owed to a position",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWith(cmd, func(ctx context.Context, a *app) error {
				if a.action.TokenID == nil {
					return fmt.Errorf("--token-id is required")
				}
				req, err := a.planner.PlanCollect(ctx, a.action.TokenID, a.action.Recipient, a.cfg.MaxWait)
				if err != nil {
					return err
				}
				return a.execute(ctx, "collect", []model.ActionRequest{req})
			})
		},
	}
	cmd.Flags().String("token-id", "", "position token id")
	cmd.Flags().String("recipient", "", "receiver of the collected tokens, defaults to the owner")
	addDryRun(cmd)
	return cmd
}

func newClaimAllCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claim-all",
		Short: "Collect fees from every position of an owner in one transaction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWith(cmd, func(ctx context.Context, a *app) error {
				owner := a.action.Owner
				if owner == (common.Address{}) {
					var err error
					if owner, err = a.self("owner"); err != nil {
						return err
					}
				}
				requests, err := a.planner.PlanClaimAll(ctx, owner, a.action.Recipient, a.cfg.MaxWait)
				if err != nil {
					return err
				}
				if len(requests) == 0 {
					a.logger.Info("no positions to claim", zap.String("owner", owner.Hex()))
					return nil
				}
				return a.execute(ctx, "claim-all", requests)
			})
		},
	}
	cmd.Flags().String("owner", "", "position owner, defaults to the signer")
	cmd.Flags().String("recipient", "", "receiver of the collected tokens, defaults to the owner")
	addDryRun(cmd)
	return cmd
}

type approvalOutput struct {
	Token     common.Address           `json:"token"`
	Spender   common.Address           `json:"spender"`
	Current   string                   `json:"current_allowance"`
	Requested string                   `json:"requested_allowance"`
	Result    *model.TransactionResult `json:"result,omitempty"`
}

func newApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Approve the position manager to spend a token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWith(cmd, func(ctx context.Context, a *app) error {
				if a.action.Token == (common.Address{}) {
					return fmt.Errorf("--token is required")
				}
				owner, err := a.self("owner")
				if err != nil {
					return err
				}
				spender := a.gateway.PositionManager()

				amount := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
				if !a.action.Amount.IsZero() {
					token, err := a.gateway.TokenInfo(ctx, a.action.Token)
					if err != nil {
						return err
					}
					if amount, err = liquidity.ToRaw(a.action.Amount, token.Decimals); err != nil {
						return err
					}
				}

				current, err := a.gateway.Allowance(ctx, a.action.Token, owner, spender)
				if err != nil {
					return err
				}
				out := approvalOutput{
					Token:     a.action.Token,
					Spender:   spender,
					Current:   current.String(),
					Requested: amount.String(),
				}
				if a.action.DryRun {
					return a.print(out)
				}

				result, err := a.gateway.Approve(ctx, a.action.Token, spender, amount)
				if err != nil {
					return err
				}
				out.Result = &result
				return a.print(out)
			})
		},
	}
	cmd.Flags().String("token", "", "ERC20 token address")
	cmd.Flags().String("amount", "", "allowance in human units, defaults to unlimited")
	addDryRun(cmd)
	return cmd
}
