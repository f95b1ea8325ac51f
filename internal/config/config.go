package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL            string
	Keypair           string
	Commitment        string
	LogLevel          string
	MaxRetries        int
	RetryBackoff      time.Duration
	Pool              string
	BundleMint        string
	StartIndex        int
	Positions         int
	RangePercent      float64
	Amount            string
	SlippageBps       uint16
	ChunkSize         int
	ComputeUnitLimit  uint32
	ComputeUnitPrice  uint64
	Delay             time.Duration
	ConfirmTimeout    time.Duration
	PollInterval      time.Duration
	Policy            string
	IncludeOutOfRange bool
	Indices           []string
	Journal           string
	SnapshotDir       string
	DBDSN             string
	TokenSymbols      map[string]string
	MetricsAddr       string
	DryRun            bool
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BUNDLER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("commitment", "confirmed")
	v.SetDefault("log-level", "info")
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 250*time.Millisecond)
	v.SetDefault("positions", 10)
	v.SetDefault("range-percent", 0.01)
	v.SetDefault("slippage-bps", 100)
	v.SetDefault("confirm-timeout", 60*time.Second)
	v.SetDefault("poll-interval", 700*time.Millisecond)
	v.SetDefault("journal", "./data/journal.jsonl")
	v.SetDefault("snapshot-dir", "./data/snapshots")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	slippage := v.GetUint("slippage-bps")
	if slippage > 10_000 {
		return Config{}, fmt.Errorf("slippage-bps %d above 10000", slippage)
	}

	cfg := Config{
		RPCURL:            v.GetString("rpc-url"),
		Keypair:           v.GetString("keypair"),
		Commitment:        v.GetString("commitment"),
		LogLevel:          v.GetString("log-level"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		Pool:              v.GetString("pool"),
		BundleMint:        v.GetString("bundle-mint"),
		StartIndex:        v.GetInt("start-index"),
		Positions:         v.GetInt("positions"),
		RangePercent:      v.GetFloat64("range-percent"),
		Amount:            v.GetString("amount"),
		SlippageBps:       uint16(slippage),
		ChunkSize:         v.GetInt("chunk-size"),
		ComputeUnitLimit:  v.GetUint32("compute-unit-limit"),
		ComputeUnitPrice:  v.GetUint64("compute-unit-price"),
		Delay:             v.GetDuration("delay"),
		ConfirmTimeout:    v.GetDuration("confirm-timeout"),
		PollInterval:      v.GetDuration("poll-interval"),
		Policy:            v.GetString("policy"),
		IncludeOutOfRange: v.GetBool("include-out-of-range"),
		Indices:           getStringSlice(v, "indices"),
		Journal:           v.GetString("journal"),
		SnapshotDir:       v.GetString("snapshot-dir"),
		DBDSN:             v.GetString("db-dsn"),
		TokenSymbols:      getStringMap(v, "token-symbols"),
		MetricsAddr:       v.GetString("metrics-addr"),
		DryRun:            v.GetBool("dry-run"),
	}

	return cfg, nil
}

var lamportsPerSOL = decimal.New(1, 9)

// ParseSOL converts a SOL amount such as "1.5" to lamports.
func ParseSOL(amount string) (uint64, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return 0, fmt.Errorf("amount is required")
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("amount %q must be positive", amount)
	}
	lamports := d.Mul(lamportsPerSOL)
	if !lamports.Equal(lamports.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than 9 decimals", amount)
	}
	bi := lamports.BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("amount %q is too large", amount)
	}
	return bi.Uint64(), nil
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

// getStringMap reads key=value pairs. Config files should list them as
// strings since viper lowercases map keys, which breaks base58 mints.
func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			out[k] = fmt.Sprintf("%v", v)
		}
		return out
	case []string:
		return parseStringMap(strings.Join(typed, ","))
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return parseStringMap(strings.Join(items, ","))
	case string:
		return parseStringMap(typed)
	default:
		return map[string]string{}
	}
}

func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	for _, pair := range splitAndClean(input) {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
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
