// Package main implements sigctl, the command-line client for signald.
//
// sigctl talks to a running signald over HTTP by default. With --local it
// builds the adapters from the same configuration the daemon reads, and
// with --simulate it runs against simulated integrations so the pipeline
// can be demoed without any credentials.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// options holds the persistent flags shared by every subcommand.
type options struct {
	serverURL  string
	configPath string
	local      bool
	simulate   bool
	simCount   int
	timeout    time.Duration
	jsonOutput bool
	now        func() time.Time
}

func newRootCmd() *cobra.Command {
	opts := &options{now: time.Now}

	rootCmd := &cobra.Command{
		Use:   "sigctl",
		Short: "CLI for the signald unified signal feed",
		Long: `sigctl reads the unified signal feed, integration health and coverage
from signald, and exports them to Excel.

By default it queries a running signald server. Use --local to build the
integrations in-process from your signald configuration, or --simulate to
use simulated integrations.`,
		Version:       version,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.serverURL, "server", "http://localhost:9191", "signald server URL")
	flags.StringVar(&opts.configPath, "config", "", "config file used with --local")
	flags.BoolVar(&opts.local, "local", false, "build integrations in-process from configuration")
	flags.BoolVar(&opts.simulate, "simulate", false, "use simulated integrations")
	flags.IntVar(&opts.simCount, "simulate-count", 8, "items generated per simulated integration")
	flags.DurationVar(&opts.timeout, "timeout", 60*time.Second, "overall command timeout")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print JSON instead of tables")
	rootCmd.MarkFlagsMutuallyExclusive("local", "simulate")

	rootCmd.AddCommand(
		newSignalsCmd(opts),
		newHealthCmd(opts),
		newCoverageCmd(opts),
		newExportCmd(opts),
		newWatchCmd(opts),
	)
	return rootCmd
}

// describe names where data comes from, for display.
func (o *options) describe() string {
	switch {
	case o.simulate:
		return "simulated"
	case o.local:
		return "local"
	default:
		return o.serverURL
	}
}

func (o *options) validate() error {
	if o.simCount < 0 {
		return fmt.Errorf("--simulate-count must not be negative")
	}
	if o.timeout <= 0 {
		return fmt.Errorf("--timeout must be positive")
	}
	return nil
}
