package aggregate

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/signald/internal/signal"
)

// Level buckets a coverage percentage.
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

const (
	highThreshold   = 70
	mediumThreshold = 40

	commWeight = 0.4
	taskWeight = 0.6

	maxMissing = 3
)

// EmptyMessage is the coverage message for an empty registry.
const EmptyMessage = "Connect a tool to get started"

var (
	communicationTools = []signal.Source{
		signal.SourceSlack, signal.SourceTeams, signal.SourceGmail, signal.SourceWhatsApp,
	}
	taskTools = []signal.Source{
		signal.SourceAsana, signal.SourceLinear, signal.SourceJira, signal.SourceGitHub,
	}

	// recommendOrder ranks unconnected tools by how much they add.
	recommendOrder = []signal.Source{
		signal.SourceSlack, signal.SourceAsana, signal.SourceLinear, signal.SourceJira,
		signal.SourceTeams, signal.SourceGmail, signal.SourceGitHub, signal.SourceWhatsApp,
	}
)

// Coverage summarizes how much of the workspace the registry can see.
type Coverage struct {
	Overall               Level           `json:"overall"`
	Percentage            int             `json:"percentage"`
	CommunicationCoverage int             `json:"communicationCoverage"`
	TaskCoverage          int             `json:"taskCoverage"`
	ConnectedTools        []signal.Source `json:"connectedTools"`
	MissingTools          []signal.Source `json:"missingTools"`
	Message               string          `json:"message"`
}

// AssessCoverage scores the current registry. It is recomputed on every
// call.
func (m *Manager) AssessCoverage() Coverage {
	return Assess(m.Sources())
}

// Assess scores a set of connected sources. Sources outside both tool
// categories are listed as connected but do not move the score.
func Assess(connected []signal.Source) Coverage {
	set := make(map[signal.Source]bool, len(connected))
	for _, s := range connected {
		set[s] = true
	}

	comm := share(set, communicationTools)
	task := share(set, taskTools)
	pct := int(math.Round(comm*commWeight + task*taskWeight))
	pct = max(0, min(100, pct))

	c := Coverage{
		Percentage:            pct,
		CommunicationCoverage: int(math.Round(comm)),
		TaskCoverage:          int(math.Round(task)),
		ConnectedTools:        orderConnected(set),
		MissingTools:          missing(set),
	}

	switch {
	case pct >= highThreshold:
		c.Overall = LevelHigh
	case pct >= mediumThreshold:
		c.Overall = LevelMedium
	default:
		c.Overall = LevelLow
	}
	c.Message = message(c, len(set))
	return c
}

// share returns the percentage of tools present in set.
func share(set map[signal.Source]bool, tools []signal.Source) float64 {
	n := 0
	for _, t := range tools {
		if set[t] {
			n++
		}
	}
	return float64(n) / float64(len(tools)) * 100
}

// orderConnected lists known tools in recommendation order, then anything
// else alphabetically.
func orderConnected(set map[signal.Source]bool) []signal.Source {
	out := make([]signal.Source, 0, len(set))
	known := make(map[signal.Source]bool, len(recommendOrder))
	for _, s := range recommendOrder {
		known[s] = true
		if set[s] {
			out = append(out, s)
		}
	}
	var extra []signal.Source
	for s := range set {
		if !known[s] {
			extra = append(extra, s)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

func missing(set map[signal.Source]bool) []signal.Source {
	out := make([]signal.Source, 0, maxMissing)
	for _, s := range recommendOrder {
		if len(out) == maxMissing {
			break
		}
		if !set[s] {
			out = append(out, s)
		}
	}
	return out
}

func message(c Coverage, registered int) string {
	if registered == 0 {
		return EmptyMessage
	}
	names := make([]string, len(c.MissingTools))
	for i, s := range c.MissingTools {
		names[i] = s.DisplayName()
	}
	suggest := strings.Join(names, ", ")

	switch {
	case c.Overall == LevelHigh || len(names) == 0:
		return "Great coverage: signals are flowing from your key tools"
	case c.Overall == LevelMedium:
		return fmt.Sprintf("Good coverage. Connect %s to close the remaining gaps", suggest)
	default:
		return fmt.Sprintf("Limited coverage. Connect %s to see more of what needs your attention", suggest)
	}
}
