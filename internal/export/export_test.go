package export

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/fyrsmithlabs/signald/internal/aggregate"
	"github.com/fyrsmithlabs/signald/internal/signal"
)

var testNow = time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)

func testReport() Report {
	due := testNow.Add(24 * time.Hour)
	synced := testNow.Add(-time.Minute)
	return Report{
		GeneratedAt: testNow,
		Signals: []signal.Signal{
			{
				ID: "slack-C1-1", Source: signal.SourceSlack, Category: signal.CategoryBlocker, Confidence: 0.9,
				Title: "Blocked on the API", Sender: "Priya", Timestamp: testNow, Channel: "#platform",
				URL: "https://acme.slack.com/archives/C1/p1",
			},
			{
				ID: "github-acme/api#7", Source: signal.SourceGitHub, Category: signal.CategoryDeadline, Confidence: 0.85,
				Title: "Ship v2", Owner: "sam", Timestamp: testNow.Add(-time.Hour), Deadline: &due,
				URL: "https://github.com/acme/api/issues/7",
			},
		},
		Health: []signal.IntegrationHealth{
			signal.Healthy(signal.SourceSlack, "Acme", nil, nil).WithLastSync(synced, ""),
			signal.ErrorStatus(signal.SourceGitHub, assert.AnError),
		},
		Coverage: aggregate.Assess([]signal.Source{signal.SourceSlack, signal.SourceGitHub}),
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, testReport()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetSignals, SheetIntegrations, SheetCoverage}, f.GetSheetList())

	rows, err := f.GetRows(SheetSignals)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, signalHeaders, rows[0])
	assert.Equal(t, "Slack", rows[1][1])
	assert.Equal(t, "Blocker", rows[1][2])
	assert.Equal(t, "Blocked on the API", rows[1][4])
	assert.Equal(t, "GitHub", rows[2][1])
	assert.Equal(t, "2025-06-12T12:00:00Z", rows[2][7])

	ok, link, err := f.GetCellHyperLink(SheetSignals, "J2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://acme.slack.com/archives/C1/p1", link)

	rows, err = f.GetRows(SheetIntegrations)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Healthy", rows[1][1])
	assert.Equal(t, "Error", rows[2][1])
	assert.Equal(t, "reconnect this integration", rows[2][7])

	overall, err := f.GetCellValue(SheetCoverage, "B2")
	require.NoError(t, err)
	assert.Equal(t, "Low", overall)
	suggested, err := f.GetCellValue(SheetCoverage, "B7")
	require.NoError(t, err)
	assert.Equal(t, "Asana, Linear, Jira", suggested)
}

func TestWrite_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Report{GeneratedAt: testNow, Coverage: aggregate.Assess(nil)}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetSignals)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	msg, err := f.GetCellValue(SheetCoverage, "B8")
	require.NoError(t, err)
	assert.Equal(t, aggregate.EmptyMessage, msg)
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFilename(testNow))
	assert.Equal(t, "signals_2025-06-11_12-00-00.xlsx", filepath.Base(path))
	require.NoError(t, Save(path, testReport()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Len(t, f.GetSheetList(), 3)
}
