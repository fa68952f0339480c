package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/signald/internal/aggregate"
	"github.com/fyrsmithlabs/signald/internal/export"
	httpapi "github.com/fyrsmithlabs/signald/internal/http"
	"github.com/fyrsmithlabs/signald/internal/signal"
)

func newSignalsCmd(opts *options) *cobra.Command {
	var (
		since    string
		category string
		source   string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "signals",
		Short: "List the merged signal feed, newest first",
		Long: `List the merged signal feed, newest first.

Examples:
  # Signals from the last two days
  sigctl signals --since 48h

  # Only blockers, as JSON
  sigctl signals --category blocker --json

  # Try it without credentials
  sigctl signals --simulate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, err := parseSince(since, opts.now())
			if err != nil {
				return err
			}
			if category != "" && !signal.Category(category).Valid() {
				return fmt.Errorf("unknown category %q", category)
			}
			if source != "" && !signal.Source(source).Valid() {
				return fmt.Errorf("unknown source %q", source)
			}

			sigs, err := withBackend(cmd, opts, "Fetching signals", func(ctx context.Context, b backend) ([]signal.Signal, error) {
				return b.Signals(ctx, from)
			})
			if err != nil {
				return err
			}
			sigs = filterSignals(sigs, signal.Category(category), signal.Source(source), limit)

			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), sigs)
			}
			return renderSignals(cmd.OutOrStdout(), sigs, opts.now())
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "RFC 3339 timestamp or duration such as 48h")
	cmd.Flags().StringVar(&category, "category", "", "only show this category")
	cmd.Flags().StringVar(&source, "source", "", "only show this source")
	cmd.Flags().IntVar(&limit, "limit", 0, "show at most this many signals (0 for all)")
	return cmd
}

func newHealthCmd(opts *options) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show the health of every connected integration",
		Long: `Show the health of every connected integration, with the action to take
for any that need attention.

Examples:
  sigctl health
  sigctl health --refresh --server http://localhost:9191`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows, err := withBackend(cmd, opts, "Checking integrations", func(ctx context.Context, b backend) ([]httpapi.IntegrationStatus, error) {
				return b.Integrations(ctx, refresh)
			})
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), rows)
			}
			return renderHealth(cmd.OutOrStdout(), rows)
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the server's health cache")
	return cmd
}

func newCoverageCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "coverage",
		Short: "Show how much of your work signald can see",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cov, err := withBackend(cmd, opts, "Assessing coverage", func(ctx context.Context, b backend) (aggregate.Coverage, error) {
				return b.Coverage(ctx)
			})
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), cov)
			}
			return renderCoverage(cmd.OutOrStdout(), cov)
		},
	}
}

func newExportCmd(opts *options) *cobra.Command {
	var (
		since  string
		output string
		xlsx   bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export signals, health and coverage to a workbook",
		Long: `Export signals, integration health and coverage to an Excel workbook.

Examples:
  # Write signals_<timestamp>.xlsx to the current directory
  sigctl export --xlsx

  # Last week of signals to a named file
  sigctl export --xlsx --since 168h -o weekly.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !xlsx {
				return errors.New("choose an export format (--xlsx)")
			}
			if err := opts.validate(); err != nil {
				return err
			}
			now := opts.now()
			from, err := parseSince(since, now)
			if err != nil {
				return err
			}

			b, err := opts.backend(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			bar := newProgress(cmd.ErrOrStderr(), 3, "Exporting")
			report := export.Report{GeneratedAt: now}
			if report.Signals, err = b.Signals(ctx, from); err != nil {
				return err
			}
			_ = bar.Add(1)
			st, err := b.Integrations(ctx, false)
			if err != nil {
				return err
			}
			for _, s := range st {
				report.Health = append(report.Health, s.IntegrationHealth)
			}
			_ = bar.Add(1)
			if report.Coverage, err = b.Coverage(ctx); err != nil {
				return err
			}
			_ = bar.Add(1)
			finishBar(bar)

			path := output
			if path == "" {
				path = export.DefaultFilename(now)
			}
			if err := export.Save(path, report); err != nil {
				return err
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				abs = path
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d signal(s) to %s\n", len(report.Signals), abs)
			return nil
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "RFC 3339 timestamp or duration such as 48h")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default signals_<timestamp>.xlsx)")
	cmd.Flags().BoolVar(&xlsx, "xlsx", false, "write an Excel workbook")
	return cmd
}

// withBackend opens the selected backend, runs fn under the command
// timeout with a spinner, and closes the backend.
func withBackend[T any](cmd *cobra.Command, opts *options, desc string, fn func(context.Context, backend) (T, error)) (T, error) {
	var zero T
	if err := opts.validate(); err != nil {
		return zero, err
	}
	b, err := opts.backend(cmd.Context())
	if err != nil {
		return zero, err
	}
	defer b.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	spin := newSpinner(cmd.ErrOrStderr(), desc)
	out, err := fn(ctx, b)
	finishBar(spin)
	return out, err
}

// parseSince accepts an RFC 3339 timestamp or a positive duration counted
// back from now. Empty means no lower bound.
func parseSince(raw string, now time.Time) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return nil, fmt.Errorf("invalid --since %q: want an RFC 3339 timestamp or a positive duration", raw)
	}
	t := now.Add(-d)
	return &t, nil
}

func filterSignals(sigs []signal.Signal, category signal.Category, source signal.Source, limit int) []signal.Signal {
	out := make([]signal.Signal, 0, len(sigs))
	for _, s := range sigs {
		if category != "" && s.Category != category {
			continue
		}
		if source != "" && s.Source != source {
			continue
		}
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
