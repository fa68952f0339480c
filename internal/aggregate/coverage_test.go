package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/signald/internal/signal"
	"github.com/fyrsmithlabs/signald/internal/simulator"
)

func TestAssess(t *testing.T) {
	tests := []struct {
		name        string
		connected   []signal.Source
		overall     Level
		percentage  int
		comm, task  int
		missing     []signal.Source
		msgContains string
	}{
		{
			name:        "empty registry",
			overall:     LevelLow,
			percentage:  0,
			missing:     []signal.Source{signal.SourceSlack, signal.SourceAsana, signal.SourceLinear},
			msgContains: EmptyMessage,
		},
		{
			name:        "chat only",
			connected:   []signal.Source{signal.SourceSlack},
			overall:     LevelLow,
			percentage:  10,
			comm:        25,
			missing:     []signal.Source{signal.SourceAsana, signal.SourceLinear, signal.SourceJira},
			msgContains: "Connect Asana, Linear, Jira",
		},
		{
			name:        "two task tools",
			connected:   []signal.Source{signal.SourceAsana, signal.SourceLinear},
			overall:     LevelLow,
			percentage:  30,
			task:        50,
			missing:     []signal.Source{signal.SourceSlack, signal.SourceJira, signal.SourceTeams},
			msgContains: "Limited coverage",
		},
		{
			name:        "medium",
			connected:   []signal.Source{signal.SourceSlack, signal.SourceAsana, signal.SourceLinear, signal.SourceGitHub},
			overall:     LevelMedium,
			percentage:  55,
			comm:        25,
			task:        75,
			missing:     []signal.Source{signal.SourceJira, signal.SourceTeams, signal.SourceGmail},
			msgContains: "Connect Jira, Teams, Gmail",
		},
		{
			name: "high",
			connected: []signal.Source{
				signal.SourceSlack, signal.SourceWhatsApp,
				signal.SourceAsana, signal.SourceLinear, signal.SourceJira, signal.SourceGitHub,
			},
			overall:     LevelHigh,
			percentage:  80,
			comm:        50,
			task:        100,
			missing:     []signal.Source{signal.SourceTeams, signal.SourceGmail},
			msgContains: "Great coverage",
		},
		{
			name:        "everything",
			connected:   signal.KnownSources(),
			overall:     LevelHigh,
			percentage:  100,
			comm:        100,
			task:        100,
			missing:     []signal.Source{},
			msgContains: "Great coverage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Assess(tt.connected)
			assert.Equal(t, tt.overall, c.Overall)
			assert.Equal(t, tt.percentage, c.Percentage)
			assert.Equal(t, tt.comm, c.CommunicationCoverage)
			assert.Equal(t, tt.task, c.TaskCoverage)
			assert.Equal(t, tt.missing, c.MissingTools)
			assert.Contains(t, c.Message, tt.msgContains)
			assert.Len(t, c.ConnectedTools, len(tt.connected))
		})
	}
}

func TestAssess_EmptyMessage(t *testing.T) {
	c := New(nil).AssessCoverage()
	assert.Equal(t, LevelLow, c.Overall)
	assert.Equal(t, 0, c.Percentage)
	assert.Equal(t, EmptyMessage, c.Message)
	assert.Empty(t, c.ConnectedTools)
}

func TestAssess_Bounds(t *testing.T) {
	known := signal.KnownSources()
	// Every subset of the known sources plus one unknown source.
	for mask := 0; mask < 1<<len(known); mask++ {
		connected := []signal.Source{"custom"}
		for i, s := range known {
			if mask&(1<<i) != 0 {
				connected = append(connected, s)
			}
		}
		c := Assess(connected)
		assert.GreaterOrEqual(t, c.Percentage, 0)
		assert.LessOrEqual(t, c.Percentage, 100)
		assert.LessOrEqual(t, len(c.MissingTools), 3)
		for _, s := range c.MissingTools {
			assert.NotContains(t, connected, s)
		}
	}
}

func TestAssess_UnknownSourceListedLast(t *testing.T) {
	c := Assess([]signal.Source{"zendesk", signal.SourceGitHub, signal.SourceSlack})
	assert.Equal(t, []signal.Source{signal.SourceSlack, signal.SourceGitHub, "zendesk"}, c.ConnectedTools)
	assert.Equal(t, 25, c.Percentage)
}

func TestManager_AssessCoverageTracksRegistry(t *testing.T) {
	m := New(nil)
	assert.Equal(t, 0, m.AssessCoverage().Percentage)

	m.Register(simulator.New(simulator.Config{Source: signal.SourceAsana}))
	assert.Equal(t, 15, m.AssessCoverage().Percentage)

	m.Register(simulator.New(simulator.Config{Source: signal.SourceSlack}))
	c := m.AssessCoverage()
	assert.Equal(t, 25, c.Percentage)
	assert.Equal(t, []signal.Source{signal.SourceSlack, signal.SourceAsana}, c.ConnectedTools)
}
