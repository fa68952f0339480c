package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/signald/internal/aggregate"
	httpapi "github.com/fyrsmithlabs/signald/internal/http"
	"github.com/fyrsmithlabs/signald/internal/signal"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderSignals(w io.Writer, sigs []signal.Signal, now time.Time) error {
	if len(sigs) == 0 {
		_, err := fmt.Fprintln(w, dimStyle.Render("No signals."))
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "AGE\tSOURCE\tCATEGORY\tCONF\tTITLE")
	for _, s := range sigs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\n",
			age(now, s.Timestamp),
			s.Source.DisplayName(),
			s.Category,
			s.Confidence,
			s.Title)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("%d signal(s)", len(sigs))))
	return err
}

// age renders how long ago t was, rounded to a readable unit.
func age(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d/time.Minute))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd", int(d/(24*time.Hour)))
	}
}

func statusLabel(status signal.HealthStatus) string {
	switch status {
	case signal.StatusHealthy:
		return healthyStyle.Render("● " + string(status))
	case signal.StatusDegraded:
		return warningStyle.Render("◐ " + string(status))
	case signal.StatusNotConfigured:
		return dimStyle.Render("○ not configured")
	default:
		return errorStyle.Render("✗ " + string(status))
	}
}

func renderHealth(w io.Writer, rows []httpapi.IntegrationStatus) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, dimStyle.Render("No integrations connected. Connect a tool to get started."))
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tWORKSPACE\tLAST SYNC\tSTATUS")
	for _, r := range rows {
		lastSync := "-"
		if r.LastSyncAt != nil {
			lastSync = r.LastSyncAt.Local().Format("2006-01-02 15:04")
		}
		workspace := r.Workspace
		if workspace == "" {
			workspace = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Source.DisplayName(), workspace, lastSync, statusLabel(r.Status))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, r := range rows {
		if r.Guidance == "" {
			continue
		}
		fmt.Fprintf(w, "%s %s\n", warningStyle.Render(r.Source.DisplayName()+":"), r.Guidance)
		if r.Error != "" {
			fmt.Fprintf(w, "  %s\n", dimStyle.Render(r.Error))
		}
	}
	return nil
}

func renderCoverage(w io.Writer, cov aggregate.Coverage) error {
	var level string
	switch cov.Overall {
	case aggregate.LevelHigh:
		level = healthyStyle.Render(string(cov.Overall))
	case aggregate.LevelMedium:
		level = warningStyle.Render(string(cov.Overall))
	default:
		level = errorStyle.Render(string(cov.Overall))
	}

	fmt.Fprintf(w, "%s %d%% (%s)\n", titleStyle.Render("Coverage:"), cov.Percentage, level)
	fmt.Fprintf(w, "  Communication: %d%%\n", cov.CommunicationCoverage)
	fmt.Fprintf(w, "  Tasks:         %d%%\n", cov.TaskCoverage)
	fmt.Fprintf(w, "  Connected:     %s\n", names(cov.ConnectedTools))
	fmt.Fprintf(w, "  Missing:       %s\n", names(cov.MissingTools))
	_, err := fmt.Fprintln(w, cov.Message)
	return err
}

func names(sources []signal.Source) string {
	if len(sources) == 0 {
		return "-"
	}
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = s.DisplayName()
	}
	return strings.Join(out, ", ")
}
