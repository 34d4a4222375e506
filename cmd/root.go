package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"checkup/internal/conf"
)

var (
	flagConfig  string
	flagBinary  string
	flagTimeout time.Duration
	flagRetries int

	// logger and registry are shared by all subcommands, built in
	// PersistentPreRun and disposed in PersistentPostRun.
	logger   *log.Logger
	registry *conf.Registry
)

var rootCmd = &cobra.Command{
	Use:           "checkup",
	Short:         "Run an external static analyzer and filter its diagnostics",
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = log.New(os.Stderr, "", log.LstdFlags)
		registry = conf.NewRegistry(logger)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		registry.Close()
	},
}

// Execute runs the root command under an interrupt-aware context.
// Exits with code 1 on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "",
		"root config file (default: discovered in the working directory)")
	rootCmd.PersistentFlags().StringVar(&flagBinary, "binary", "analyzer",
		"path to the analyzer executable")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 0,
		"startup liveness timeout (0 waits indefinitely)")
	rootCmd.PersistentFlags().IntVar(&flagRetries, "retries", 1,
		"total launch attempts")
}
