package http

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/signald/internal/signal"
)

func TestCountSignals(t *testing.T) {
	c := CountSignals([]signal.Signal{
		{Source: signal.SourceSlack, Category: signal.CategoryBlocker},
		{Source: signal.SourceSlack, Category: signal.CategoryQuestion},
		{Source: signal.SourceAsana, Category: signal.CategoryBlocker},
	})
	assert.Equal(t, map[signal.Source]int{signal.SourceSlack: 2, signal.SourceAsana: 1}, c.BySource)
	assert.Equal(t, 2, c.ByCategory[signal.CategoryBlocker])
	assert.Equal(t, 1, c.ByCategory[signal.CategoryQuestion])
	assert.Len(t, c.ByCategory, len(signal.Categories()))
	assert.Zero(t, c.ByCategory[signal.CategoryDecision])

	empty := CountSignals(nil)
	assert.Empty(t, empty.BySource)
	assert.Len(t, empty.ByCategory, 8)
}
