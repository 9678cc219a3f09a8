package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
)

// ActionConfig holds the per-command inputs of the position commands.
// Unset values stay zero; the planner validates what each command needs.
type ActionConfig struct {
	Pool       common.Address
	PriceLower decimal.Decimal
	PriceUpper decimal.Decimal
	InputIndex int
	Amount     decimal.Decimal
	TokenID    *big.Int
	Percent    decimal.Decimal
	Recipient  common.Address
	Owner      common.Address
	Token      common.Address
	DryRun     bool
}

// LoadAction merges config file, environment variables, and flags into ActionConfig.
func LoadAction(cfgFile string, flags *pflag.FlagSet) (ActionConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return ActionConfig{}, err
	}

	cfg := ActionConfig{
		InputIndex: v.GetInt("input-index"),
		DryRun:     v.GetBool("dry-run"),
	}
	if cfg.InputIndex != 0 && cfg.InputIndex != 1 {
		return ActionConfig{}, fmt.Errorf("input-index: must be 0 or 1, got %d", cfg.InputIndex)
	}

	addresses := []struct {
		key string
		dst *common.Address
	}{
		{"pool", &cfg.Pool},
		{"recipient", &cfg.Recipient},
		{"owner", &cfg.Owner},
		{"token", &cfg.Token},
	}
	for _, item := range addresses {
		raw := strings.TrimSpace(v.GetString(item.key))
		if raw == "" {
			continue
		}
		addr, err := parseAddress(raw)
		if err != nil {
			return ActionConfig{}, fmt.Errorf("%s: %w", item.key, err)
		}
		*item.dst = addr
	}

	decimals := []struct {
		key string
		dst *decimal.Decimal
	}{
		{"price-lower", &cfg.PriceLower},
		{"price-upper", &cfg.PriceUpper},
		{"amount", &cfg.Amount},
		{"percent", &cfg.Percent},
	}
	for _, item := range decimals {
		raw := strings.TrimSpace(v.GetString(item.key))
		if raw == "" {
			continue
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return ActionConfig{}, fmt.Errorf("%s: %w", item.key, err)
		}
		*item.dst = value
	}

	if raw := strings.TrimSpace(v.GetString("token-id")); raw != "" {
		id, ok := new(big.Int).SetString(raw, 10)
		if !ok || id.Sign() < 0 {
			return ActionConfig{}, fmt.Errorf("token-id: invalid value %q", raw)
		}
		cfg.TokenID = id
	}

	return cfg, nil
}
