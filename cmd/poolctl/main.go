// poolctl quotes swaps and replays scripted operations against an
// in-memory pool.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aman-zulfiqar/solana-amm-pool/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "poolctl",
		Short:        "Constant-product pool calculator and simulator",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./poolctl.yaml)")
	root.PersistentFlags().String("log-level", "warn", "log level")
	root.PersistentFlags().Uint32("fee-numerator", 3, "swap fee numerator")
	root.PersistentFlags().Uint32("fee-denominator", 1000, "swap fee denominator")

	root.AddCommand(newQuoteCmd(), newSimulateCmd())
	return root
}

// loadConfig merges flags, POOLCTL_* env and the config file for cmd.
func loadConfig(cmd *cobra.Command) (config.CLIConfig, *logrus.Logger, error) {
	cfg, err := config.LoadCLI(cfgFile, cmd.Flags())
	if err != nil {
		return config.CLIConfig{}, nil, err
	}

	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return config.CLIConfig{}, nil, err
	}
	logger.SetLevel(lvl)
	return cfg, logger, nil
}
