package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/signald/internal/signal"
)

var taskNow = time.Date(2025, 6, 11, 14, 30, 0, 0, time.UTC)

func dateOnly(offsetDays int) *time.Time {
	d := time.Date(taskNow.Year(), taskNow.Month(), taskNow.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, offsetDays)
	return &d
}

func TestClassifyTask(t *testing.T) {
	tests := []struct {
		name     string
		task     Task
		wantCat  signal.Category
		wantConf float64
		wantRule string
	}{
		{
			name:     "overdue yesterday",
			task:     Task{ID: "1", Name: "Write report", Due: dateOnly(-1)},
			wantCat:  signal.CategoryDeadline,
			wantConf: 1.0,
			wantRule: "overdue",
		},
		{
			name:     "overdue dominates blocker",
			task:     Task{ID: "2", Name: "Blocked: vendor contract", Due: dateOnly(-5)},
			wantCat:  signal.CategoryDeadline,
			wantConf: 1.0,
			wantRule: "overdue",
		},
		{
			name:     "overdue dominates escalation tag",
			task:     Task{ID: "3", Name: "Review launch plan?", Tags: []string{"Urgent"}, Due: dateOnly(-2)},
			wantCat:  signal.CategoryDeadline,
			wantConf: 1.0,
		},
		{
			name:     "blocker tag",
			task:     Task{ID: "4", Name: "Integrate payments", Tags: []string{"Blocker"}, Due: dateOnly(10)},
			wantCat:  signal.CategoryBlocker,
			wantConf: 0.90,
			wantRule: "blocker",
		},
		{
			name:     "due today",
			task:     Task{ID: "5", Name: "Ship release notes", Due: dateOnly(0)},
			wantCat:  signal.CategoryDeadline,
			wantConf: 0.85,
			wantRule: "due_soon",
		},
		{
			name:     "due tomorrow",
			task:     Task{ID: "6", Name: "Ship release notes", Due: dateOnly(1)},
			wantCat:  signal.CategoryDeadline,
			wantConf: 0.85,
		},
		{
			name:     "due in three days",
			task:     Task{ID: "7", Name: "Prepare offsite agenda", Due: dateOnly(3)},
			wantCat:  signal.CategoryDeadline,
			wantConf: 0.70,
			wantRule: "due_this_week",
		},
		{
			name:     "far future falls through to decision",
			task:     Task{ID: "8", Name: "Review hiring plan", Due: dateOnly(20)},
			wantCat:  signal.CategoryDecision,
			wantConf: 0.80,
		},
		{
			name:     "question in notes",
			task:     Task{ID: "9", Name: "Pick a venue", Notes: "Which city works for everyone?"},
			wantCat:  signal.CategoryQuestion,
			wantConf: 0.70,
		},
		{
			name:     "high priority tag",
			task:     Task{ID: "10", Name: "Fix invoices export", Tags: []string{"High Priority"}},
			wantCat:  signal.CategoryEscalation,
			wantConf: 0.80,
		},
		{
			name:     "default",
			task:     Task{ID: "11", Name: "Update team wiki"},
			wantCat:  signal.CategoryUpdate,
			wantConf: 0.50,
			wantRule: "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ClassifyTask(tt.task, taskNow)
			require.True(t, ok)
			assert.Equal(t, tt.wantCat, got.Category)
			assert.InDelta(t, tt.wantConf, got.Confidence, 1e-9)
			if tt.wantRule != "" {
				assert.Equal(t, tt.wantRule, got.Rule)
			}
		})
	}
}

func TestClassifyTask_CompletedSkipped(t *testing.T) {
	_, ok := ClassifyTask(Task{ID: "1", Name: "Blocked overdue", Due: dateOnly(-3), Completed: true}, taskNow)
	assert.False(t, ok)
}

func TestClassifyTask_OverdueMonotonic(t *testing.T) {
	names := []string{"", "Blocked", "Review?", "urgent asap", "sign off decision", "FYI"}
	tags := [][]string{nil, {"blocker"}, {"urgent"}, {"stuck", "high priority"}}
	for _, n := range names {
		for _, tg := range tags {
			for _, off := range []int{-1, -7, -400} {
				got, ok := ClassifyTask(Task{Name: n, Tags: tg, Due: dateOnly(off)}, taskNow)
				require.True(t, ok)
				assert.Equal(t, signal.CategoryDeadline, got.Category)
				assert.GreaterOrEqual(t, got.Confidence, 0.95)
				assert.LessOrEqual(t, got.Confidence, 1.0)
			}
		}
	}
}

func TestDaysUntil(t *testing.T) {
	assert.Equal(t, 0, DaysUntil(taskNow.Add(-time.Hour), taskNow))
	assert.Equal(t, 1, DaysUntil(taskNow.Add(time.Hour), taskNow))
	assert.Equal(t, -1, DaysUntil(taskNow.Add(-25*time.Hour), taskNow))
	assert.Equal(t, 2, DaysUntil(taskNow.Add(36*time.Hour), taskNow))
}

func TestTaskRules_Table(t *testing.T) {
	for _, r := range TaskRules() {
		assert.True(t, r.Category.Valid(), r.Name)
		assert.LessOrEqual(t, r.Confidence, 1.0)
	}
}
