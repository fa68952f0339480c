package http

import "github.com/fyrsmithlabs/signald/internal/signal"

// CountSignals tallies sigs by source and by category. Every category
// appears in ByCategory, with zero when absent.
func CountSignals(sigs []signal.Signal) SignalCounts {
	c := SignalCounts{
		BySource:   make(map[signal.Source]int),
		ByCategory: make(map[signal.Category]int, len(signal.Categories())),
	}
	for _, cat := range signal.Categories() {
		c.ByCategory[cat] = 0
	}
	for _, s := range sigs {
		c.BySource[s.Source]++
		c.ByCategory[s.Category]++
	}
	return c
}
