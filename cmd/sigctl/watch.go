package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/signald/internal/monitor"
)

func newWatchCmd(opts *options) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live dashboard of the signal feed",
		Long: `Open a live terminal dashboard of the signal feed, integration health and
coverage. Press r to refresh and q to quit.

Examples:
  sigctl watch
  sigctl watch --simulate --interval 10s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			if interval < time.Second {
				return fmt.Errorf("--interval must be at least 1s")
			}
			b, err := opts.backend(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			model := monitor.NewModel(snapshotFetcher(b), opts.describe(), interval)
			p := tea.NewProgram(model,
				tea.WithAltScreen(),
				tea.WithContext(cmd.Context()),
				tea.WithOutput(cmd.OutOrStdout()),
			)
			_, err = p.Run()
			return err
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "refresh interval")
	return cmd
}

// snapshotFetcher adapts a backend to the dashboard's refresh call.
func snapshotFetcher(b backend) monitor.Fetcher {
	return func(ctx context.Context) (monitor.Snapshot, error) {
		var snap monitor.Snapshot
		sigs, err := b.Signals(ctx, nil)
		if err != nil {
			return snap, err
		}
		st, err := b.Integrations(ctx, false)
		if err != nil {
			return snap, err
		}
		cov, err := b.Coverage(ctx)
		if err != nil {
			return snap, err
		}
		snap.Signals = sigs
		snap.Coverage = cov
		for _, s := range st {
			snap.Health = append(snap.Health, s.IntegrationHealth)
		}
		return snap, nil
	}
}
