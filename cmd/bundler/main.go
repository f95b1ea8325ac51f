package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "bundler",
		Short:        "Orca Whirlpool position bundle planner and submitter",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	poolCmd := &cobra.Command{
		Use:   "pool",
		Short: "Show the state of a whirlpool",
		RunE:  runPool,
	}
	addCommonFlags(poolCmd.Flags())
	poolCmd.Flags().String("pool", "", "whirlpool address")
	poolCmd.Flags().Bool("cached", false, "print the last saved snapshot instead of reading the chain")
	root.AddCommand(poolCmd)

	root.AddCommand(newBundleCmd())

	positionCmd := &cobra.Command{
		Use:   "position",
		Short: "Show one bundled position",
		RunE:  runPosition,
	}
	addCommonFlags(positionCmd.Flags())
	positionCmd.Flags().String("bundle-mint", "", "position bundle mint")
	positionCmd.Flags().Int("index", 0, "bundle index")
	root.AddCommand(positionCmd)

	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan opening and funding positions without submitting",
		RunE:  runPlan,
	}
	addCommonFlags(planCmd.Flags())
	addPlanFlags(planCmd.Flags())
	planCmd.Flags().String("amount", "", "SOL to deploy, e.g. 1.5")
	root.AddCommand(planCmd)

	openCmd := &cobra.Command{
		Use:   "open",
		Short: "Open empty positions in a bundle",
		RunE:  runOpen,
	}
	addCommonFlags(openCmd.Flags())
	addPlanFlags(openCmd.Flags())
	addSubmitFlags(openCmd.Flags())
	openCmd.Flags().Bool("include-out-of-range", false, "also open positions that do not hold the current price")
	root.AddCommand(openCmd)

	depositCmd := &cobra.Command{
		Use:   "deposit",
		Short: "Open positions and deposit SOL into the ones in range",
		RunE:  runDeposit,
	}
	addCommonFlags(depositCmd.Flags())
	addPlanFlags(depositCmd.Flags())
	addSubmitFlags(depositCmd.Flags())
	depositCmd.Flags().String("amount", "", "SOL to deploy, e.g. 1.5")
	root.AddCommand(depositCmd)

	addLiquidityCmd := &cobra.Command{
		Use:   "add-liquidity",
		Short: "Deposit SOL into positions that are already open",
		RunE:  runAddLiquidity,
	}
	addCommonFlags(addLiquidityCmd.Flags())
	addPlanFlags(addLiquidityCmd.Flags())
	addSubmitFlags(addLiquidityCmd.Flags())
	addLiquidityCmd.Flags().String("amount", "", "SOL to deploy, e.g. 1.5")
	addLiquidityCmd.Flags().StringSlice("indices", nil, "bundle indices (comma-separated)")
	root.AddCommand(addLiquidityCmd)

	rebalanceCmd := &cobra.Command{
		Use:   "rebalance",
		Short: "Check a bundle against the current price and open more positions near the edge",
		RunE:  runRebalance,
	}
	addCommonFlags(rebalanceCmd.Flags())
	addSubmitFlags(rebalanceCmd.Flags())
	rebalanceCmd.Flags().String("bundle-mint", "", "position bundle mint")
	rebalanceCmd.Flags().Uint64("compute-unit-price", 0, "priority fee in micro-lamports per compute unit")
	rebalanceCmd.Flags().Bool("dry-run", false, "report and plan without submitting")
	root.AddCommand(rebalanceCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommonFlags(fs *pflag.FlagSet) {
	fs.String("rpc-url", "", "Solana RPC URL")
	fs.String("keypair", "~/.config/solana/id.json", "wallet keypair file")
	fs.String("commitment", "confirmed", "commitment for reads (processed, confirmed, finalized)")
	fs.Int("max-retries", 3, "maximum retry attempts for RPC reads")
	fs.Duration("retry-backoff", 250*time.Millisecond, "initial retry backoff")
	fs.String("journal", "./data/journal.jsonl", "submission journal JSONL path")
	fs.String("snapshot-dir", "./data/snapshots", "pool snapshot directory")
	fs.String("db-dsn", "", "optional Postgres DSN for bundle records and submissions")
	fs.StringSlice("token-symbols", nil, "extra mint=SYMBOL pairs (comma-separated)")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
}

func addPlanFlags(fs *pflag.FlagSet) {
	fs.String("pool", "", "whirlpool address")
	fs.String("bundle-mint", "", "position bundle mint")
	fs.Int("start-index", 0, "first bundle index")
	fs.Int("positions", 10, "number of positions")
	fs.Float64("range-percent", 0.01, "width of each position relative to the current price")
	fs.Uint16("slippage-bps", 100, "slippage tolerance in basis points")
	fs.Int("chunk-size", 0, "positions per transaction, 0 uses the operation default")
	fs.Uint32("compute-unit-limit", 0, "compute units per transaction, 0 uses the operation default")
	fs.Uint64("compute-unit-price", 0, "priority fee in micro-lamports per compute unit")
	fs.String("policy", "", "failure policy (abort, continue), empty uses the operation default")
	fs.Bool("dry-run", false, "print the plan without submitting")
}

func addSubmitFlags(fs *pflag.FlagSet) {
	fs.Duration("delay", 0, "pause between transactions, 0 uses the operation default")
	fs.Duration("confirm-timeout", 60*time.Second, "how long to wait for each confirmation")
	fs.Duration("poll-interval", 700*time.Millisecond, "signature status poll interval")
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
