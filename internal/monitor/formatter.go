package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/signald/internal/signal"
)

// FormatCount formats a count, abbreviating thousands as "1.2k".
func FormatCount(n int) string {
	if n >= 1000 {
		return fmt.Sprintf("%.1fk", float64(n)/1000)
	}
	return fmt.Sprintf("%d", n)
}

// FormatPercent formats an integer percentage.
func FormatPercent(pct int) string {
	return fmt.Sprintf("%d%%", pct)
}

// FormatAge formats an elapsed duration as "now", "Xm", "Xh" or "Xd".
// Negative durations (clock skew, future timestamps) read as "now".
func FormatAge(d time.Duration) string {
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

// FormatBreakdown lists non-zero category counts in taxonomy order, e.g.
// "deadline 3 · blocker 1". It returns "" for an empty feed.
func FormatBreakdown(sigs []signal.Signal) string {
	counts := make(map[signal.Category]int, len(signal.Categories()))
	for _, s := range sigs {
		counts[s.Category]++
	}
	var parts []string
	for _, c := range signal.Categories() {
		if n := counts[c]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", c, n))
		}
	}
	return strings.Join(parts, " · ")
}
