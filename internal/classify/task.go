package classify

import (
	"math"
	"strings"
	"time"

	"github.com/fyrsmithlabs/signald/internal/signal"
)

const (
	overdueConfidence = 0.95
	overdueBoost      = 0.3
)

// Task is the tracker-neutral view of a task or issue.
type Task struct {
	ID    string
	Name  string
	Notes string
	Tags  []string
	// Due is nil when the task has no due date. Date-only due dates are
	// midnight UTC of that day with DueHasTime false.
	Due        *time.Time
	DueHasTime bool
	Completed  bool
	ProjectID  string
}

// TaskInput is what task rules match against.
type TaskInput struct {
	Name  string // lowercased
	Notes string // lowercased
	Tags  []string
	// DaysUntilDue is nil without a due date.
	DaysUntilDue *int
}

func (in TaskInput) nameOrTags(phrases ...string) bool {
	if containsAny(in.Name, phrases...) {
		return true
	}
	for _, t := range in.Tags {
		if containsAny(t, phrases...) {
			return true
		}
	}
	return false
}

func (in TaskInput) dueWithin(lo, hi int) bool {
	return in.DaysUntilDue != nil && *in.DaysUntilDue >= lo && *in.DaysUntilDue <= hi
}

// TaskRule is one row of the task ladder.
type TaskRule struct {
	Name       string
	Match      func(in TaskInput) bool
	Category   signal.Category
	Confidence float64
}

var taskRules = []TaskRule{
	{
		Name:       "blocker",
		Match:      func(in TaskInput) bool { return in.nameOrTags("blocked", "blocker", "stuck") },
		Category:   signal.CategoryBlocker,
		Confidence: 0.90,
	},
	{
		Name:       "overdue",
		Match:      func(in TaskInput) bool { return in.DaysUntilDue != nil && *in.DaysUntilDue < 0 },
		Category:   signal.CategoryDeadline,
		Confidence: overdueConfidence,
	},
	{
		Name:       "due_soon",
		Match:      func(in TaskInput) bool { return in.dueWithin(0, 1) },
		Category:   signal.CategoryDeadline,
		Confidence: 0.85,
	},
	{
		Name:       "due_this_week",
		Match:      func(in TaskInput) bool { return in.dueWithin(2, 3) },
		Category:   signal.CategoryDeadline,
		Confidence: 0.70,
	},
	{
		Name:       "decision",
		Match:      func(in TaskInput) bool { return containsAny(in.Name, "review", "approve", "decision", "sign off") },
		Category:   signal.CategoryDecision,
		Confidence: 0.80,
	},
	{
		Name:       "question",
		Match:      func(in TaskInput) bool { return strings.Contains(in.Name, "?") || strings.Contains(in.Notes, "?") },
		Category:   signal.CategoryQuestion,
		Confidence: 0.70,
	},
	{
		Name:       "escalation",
		Match:      func(in TaskInput) bool { return in.nameOrTags("urgent", "high priority", "high-priority", "asap") },
		Category:   signal.CategoryEscalation,
		Confidence: 0.80,
	},
}

var taskDefault = Result{Category: signal.CategoryUpdate, Confidence: 0.50, Rule: "default"}

// TaskRules returns a copy of the task ladder in evaluation order.
func TaskRules() []TaskRule {
	out := make([]TaskRule, len(taskRules))
	copy(out, taskRules)
	return out
}

// DaysUntil returns ceil((due-now)/24h). Negative means overdue.
func DaysUntil(due, now time.Time) int {
	d := math.Ceil(due.Sub(now).Hours() / 24)
	if d == 0 {
		// Avoid -0.
		return 0
	}
	return int(d)
}

// ClassifyTask classifies t as of now. ok is false for completed tasks.
//
// An overdue task is always a deadline with boosted confidence, whatever
// rule fired first.
func ClassifyTask(t Task, now time.Time) (res Result, ok bool) {
	if t.Completed {
		return Result{}, false
	}

	in := TaskInput{
		Name:  normalizeQuotes(strings.ToLower(t.Name)),
		Notes: normalizeQuotes(strings.ToLower(t.Notes)),
	}
	for _, tag := range t.Tags {
		in.Tags = append(in.Tags, strings.ToLower(tag))
	}
	if t.Due != nil {
		days := DaysUntil(*t.Due, now)
		in.DaysUntilDue = &days
	}

	res = taskDefault
	for _, r := range taskRules {
		if r.Match(in) {
			res = Result{Category: r.Category, Confidence: r.Confidence, Rule: r.Name}
			break
		}
	}

	if in.DaysUntilDue != nil && *in.DaysUntilDue < 0 {
		res.Category = signal.CategoryDeadline
		res.Confidence = math.Min(1, overdueConfidence+overdueBoost)
		res.Rule = "overdue"
	}
	res.Confidence = signal.ClampConfidence(res.Confidence)
	return res, true
}
