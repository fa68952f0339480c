package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/signald/internal/aggregate"
	"github.com/fyrsmithlabs/signald/internal/signal"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
	historySize     = 30
	recentRows      = 8
	titleWidth      = 60
)

// Snapshot is one refresh worth of dashboard data.
type Snapshot struct {
	Signals  []signal.Signal
	Health   []signal.IntegrationHealth
	Coverage aggregate.Coverage
}

// Fetcher loads a Snapshot. It is called once per refresh with a context
// bounded by the refresh timeout.
type Fetcher func(ctx context.Context) (Snapshot, error)

// Model is the BubbleTea dashboard model.
type Model struct {
	fetch      Fetcher
	source     string
	interval   time.Duration
	timeout    time.Duration
	now        func() time.Time
	lastUpdate time.Time
	snapshot   Snapshot
	err        error
	quitting   bool

	// Feed volume per refresh, for the sparklines.
	volumeHistory  []float64
	blockerHistory []float64

	coverageProgress progress.Model
}

// Lipgloss styles (k9s-inspired color scheme)
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
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

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// NewModel creates a dashboard that calls fetch every interval. source
// names where the data comes from and is shown in the header and on errors.
func NewModel(fetch Fetcher, source string, interval time.Duration) Model {
	return Model{
		fetch:    fetch,
		source:   source,
		interval: interval,
		timeout:  interval,
		now:      time.Now,
		coverageProgress: progress.New(
			progress.WithGradient("#ff0000", "#00ff00"),
			progress.WithWidth(40),
		),
		volumeHistory:  make([]float64, 0, historySize),
		blockerHistory: make([]float64, 0, historySize),
	}
}

// statusBadge summarizes integration health: green when all are healthy,
// yellow when any is degraded, red when any is in error.
func statusBadge(health []signal.IntegrationHealth) string {
	if len(health) == 0 {
		return dimStyle.Render("○ NO INTEGRATIONS")
	}
	worst := signal.StatusHealthy
	for _, h := range health {
		switch h.Status {
		case signal.StatusError:
			worst = signal.StatusError
		case signal.StatusDegraded, signal.StatusNotConfigured:
			if worst == signal.StatusHealthy {
				worst = signal.StatusDegraded
			}
		}
	}
	switch worst {
	case signal.StatusHealthy:
		return healthyStyle.Render("✓ HEALTHY")
	case signal.StatusDegraded:
		return warningStyle.Render("⚠ DEGRADED")
	default:
		return errorStyle.Render("✗ ERROR")
	}
}

func healthBadge(status signal.HealthStatus) string {
	switch status {
	case signal.StatusHealthy:
		return healthyStyle.Render("[✓]")
	case signal.StatusDegraded, signal.StatusNotConfigured:
		return warningStyle.Render("[⚠]")
	default:
		return errorStyle.Render("[✗]")
	}
}

func coverageBadge(level aggregate.Level) string {
	switch level {
	case aggregate.LevelHigh:
		return healthyStyle.Render("[high]")
	case aggregate.LevelMedium:
		return warningStyle.Render("[medium]")
	default:
		return errorStyle.Render("[low]")
	}
}

// appendToHistory appends a value to history, maintaining max size
func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}

// createSparkline creates a sparkline chart from historical data
func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}
	spark.Draw()

	return sparklineStyle.Render(spark.View())
}

// Message types
type tickMsg time.Time
type snapshotMsg Snapshot
type errMsg error

// Init starts the refresh loop with an immediate fetch.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tick(m.interval),
		m.refresh(),
	)
}

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) refresh() tea.Cmd {
	fetch, timeout := m.fetch, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		snap, err := fetch(ctx)
		if err != nil {
			return errMsg(err)
		}
		return snapshotMsg(snap)
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, m.refresh()
		}

	case tickMsg:
		return m, tea.Batch(
			tick(m.interval),
			m.refresh(),
		)

	case snapshotMsg:
		snap := Snapshot(msg)
		m.snapshot = snap
		m.volumeHistory = appendToHistory(m.volumeHistory, float64(len(snap.Signals)))
		m.blockerHistory = appendToHistory(m.blockerHistory, float64(countCategory(snap.Signals, signal.CategoryBlocker)))
		m.lastUpdate = m.now()
		m.err = nil
		return m, nil

	case errMsg:
		m.err = error(msg)
		return m, nil
	}

	return m, nil
}

// View renders the dashboard
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.err != nil {
		return m.renderError()
	}
	return m.renderDashboard()
}

func (m Model) renderError() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(" signald Monitor ") + "\n\n")
	b.WriteString(errorStyle.Render("⚠ Cannot load the signal feed") + "\n\n")
	b.WriteString(dimStyle.Render("Source: ") + valueStyle.Render(m.source) + "\n")
	b.WriteString(dimStyle.Render("Error: ") + errorStyle.Render(m.err.Error()) + "\n\n")
	b.WriteString(dimStyle.Render("Is signald running? Start it with `signald`, or use --simulate.") + "\n")
	b.WriteString(footer(m.interval))
	return containerStyle.Render(b.String())
}

func (m Model) renderDashboard() string {
	var b strings.Builder
	snap := m.snapshot

	lastUpdateStr := "Never"
	if !m.lastUpdate.IsZero() {
		lastUpdateStr = m.lastUpdate.Format("3:04:05 PM")
	}
	b.WriteString(headerStyle.Render(" signald Monitor ") + "\n")
	fmt.Fprintf(&b, "%s   %s   %s\n",
		statusBadge(snap.Health),
		dimStyle.Render(m.source),
		dimStyle.Render(lastUpdateStr))

	// Feed
	b.WriteString("\n" + sectionStyle.Render("┃ Feed") + "\n")
	b.WriteString(labelStyle.Render("  Signals: ") +
		valueStyle.Render(FormatCount(len(snap.Signals))) +
		"   " + createSparkline(m.volumeHistory) + "\n")
	b.WriteString(labelStyle.Render("  Blockers: ") +
		valueStyle.Render(FormatCount(countCategory(snap.Signals, signal.CategoryBlocker))) +
		"  " + createSparkline(m.blockerHistory) + "\n")
	if breakdown := FormatBreakdown(snap.Signals); breakdown != "" {
		b.WriteString(labelStyle.Render("  By category: ") + dimStyle.Render(breakdown) + "\n")
	}

	// Integrations
	b.WriteString("\n" + sectionStyle.Render("┃ Integrations") + "\n")
	if len(snap.Health) == 0 {
		b.WriteString(dimStyle.Render("  "+aggregate.EmptyMessage) + "\n")
	}
	for _, h := range snap.Health {
		line := "  " + healthBadge(h.Status) + " " + valueStyle.Render(h.Source.DisplayName())
		if h.Workspace != "" {
			line += dimStyle.Render(" (" + h.Workspace + ")")
		}
		if h.LastSyncAt != nil {
			line += dimStyle.Render("  synced " + FormatAge(m.now().Sub(*h.LastSyncAt)) + " ago")
		}
		if g := h.Guidance(); g != "" {
			line += "  " + warningStyle.Render(g)
		}
		b.WriteString(line + "\n")
	}

	// Coverage
	cov := snap.Coverage
	b.WriteString("\n" + sectionStyle.Render("┃ Coverage") + "\n")
	b.WriteString(labelStyle.Render("  Overall: ") +
		m.coverageProgress.ViewAs(float64(cov.Percentage)/100) +
		" " + coverageBadge(cov.Overall) + "\n")
	b.WriteString(labelStyle.Render("  Comm: ") + valueStyle.Render(FormatPercent(cov.CommunicationCoverage)) +
		labelStyle.Render("  Tasks: ") + valueStyle.Render(FormatPercent(cov.TaskCoverage)) + "\n")
	if cov.Message != "" {
		b.WriteString("  " + dimStyle.Render(cov.Message) + "\n")
	}

	// Recent
	b.WriteString("\n" + sectionStyle.Render("┃ Recent") + "\n")
	if len(snap.Signals) == 0 {
		b.WriteString(dimStyle.Render("  No signals yet") + "\n")
	}
	for i, s := range snap.Signals {
		if i == recentRows {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  … %d more", len(snap.Signals)-recentRows)) + "\n")
			break
		}
		fmt.Fprintf(&b, "  %s %s %s %s\n",
			dimStyle.Render(fmt.Sprintf("%4s", FormatAge(m.now().Sub(s.Timestamp)))),
			labelStyle.Render(fmt.Sprintf("%-9s", s.Source.DisplayName())),
			dimStyle.Render(fmt.Sprintf("%-10s", s.Category)),
			signal.Truncate(s.Title, titleWidth))
	}

	b.WriteString(footer(m.interval))
	return containerStyle.Render(b.String())
}

func footer(interval time.Duration) string {
	return "\n" + footerKeyStyle.Render("[q]") + footerStyle.Render(" quit  ") +
		footerKeyStyle.Render("[r]") + footerStyle.Render(" refresh  ") +
		footerStyle.Render(fmt.Sprintf("Auto: %v", interval))
}

func countCategory(sigs []signal.Signal, c signal.Category) int {
	n := 0
	for _, s := range sigs {
		if s.Category == c {
			n++
		}
	}
	return n
}
