package config

import (
	"crypto/ecdsa"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Ethereum mainnet deployment.
const (
	defaultPositionManager  = "0xC36442b4a4522E871399CD717aBDD847Ab11FE88"
	defaultFactory          = "0x1F98431c8aD98523631AE4a59f267346ea31F984"
	defaultPoolInitCodeHash = "0xe34f199b19b2b4f47f68442619d555527d244f78a3297ea89325f843f87b8b54"
	defaultNativeToken      = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
)

// Config holds connection, deployment and submission settings shared by every command.
type Config struct {
	RPCURL           string
	PositionManager  common.Address
	Factory          common.Address
	PoolInitCodeHash common.Hash
	NativeTokens     []common.Address
	PrivateKey       string

	Slippage          decimal.Decimal
	MaxWait           time.Duration
	MaxStaleness      time.Duration
	StaleRefetches    int
	StaleRefetchDelay time.Duration

	ReceiptTimeout time.Duration
	PollInterval   time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration

	Journal     string
	PostgresDSN string
	LogLevel    string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return Config{}, err
	}

	manager, err := parseAddress(v.GetString("position-manager"))
	if err != nil {
		return Config{}, fmt.Errorf("position-manager: %w", err)
	}
	factory, err := parseAddress(v.GetString("factory"))
	if err != nil {
		return Config{}, fmt.Errorf("factory: %w", err)
	}
	initHash := v.GetString("pool-init-code-hash")
	if len(strings.TrimPrefix(initHash, "0x")) != 64 {
		return Config{}, fmt.Errorf("pool-init-code-hash: invalid hash %q", initHash)
	}
	native, err := ParseAddresses(getStringSlice(v, "native-tokens"))
	if err != nil {
		return Config{}, fmt.Errorf("native-tokens: %w", err)
	}
	slippage, err := decimal.NewFromString(v.GetString("slippage"))
	if err != nil {
		return Config{}, fmt.Errorf("slippage: %w", err)
	}

	cfg := Config{
		RPCURL:            v.GetString("rpc"),
		PositionManager:   manager,
		Factory:           factory,
		PoolInitCodeHash:  common.HexToHash(initHash),
		NativeTokens:      native,
		PrivateKey:        v.GetString("private-key"),
		Slippage:          slippage,
		MaxWait:           v.GetDuration("max-wait"),
		MaxStaleness:      v.GetDuration("max-staleness"),
		StaleRefetches:    v.GetInt("stale-refetches"),
		StaleRefetchDelay: v.GetDuration("stale-refetch-delay"),
		ReceiptTimeout:    v.GetDuration("receipt-timeout"),
		PollInterval:      v.GetDuration("poll-interval"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		Journal:           v.GetString("journal"),
		PostgresDSN:       v.GetString("pg-dsn"),
		LogLevel:          v.GetString("log-level"),
	}

	return cfg, nil
}

// SigningKey parses the configured private key. It returns nil when none is set.
func (c Config) SigningKey() (*ecdsa.PrivateKey, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(c.PrivateKey), "0x")
	if raw == "" {
		return nil, nil
	}
	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("private-key: %w", err)
	}
	return key, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("LPCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("position-manager", defaultPositionManager)
	v.SetDefault("factory", defaultFactory)
	v.SetDefault("pool-init-code-hash", defaultPoolInitCodeHash)
	v.SetDefault("native-tokens", defaultNativeToken)
	v.SetDefault("slippage", "0.005")
	v.SetDefault("max-wait", 10*time.Minute)
	v.SetDefault("max-staleness", 30*time.Second)
	v.SetDefault("stale-refetches", 2)
	v.SetDefault("stale-refetch-delay", 12*time.Second)
	v.SetDefault("receipt-timeout", 3*time.Minute)
	v.SetDefault("poll-interval", 2*time.Second)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("journal", "./data/executions.jsonl")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

// ParseAddresses converts string addresses into common.Address.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		addr, err := parseAddress(input)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, addr)
	}
	return addresses, nil
}

func parseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %q", input)
	}
	return common.HexToAddress(input), nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
