package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/fyrsmithlabs/signald/internal/aggregate"
	httpapi "github.com/fyrsmithlabs/signald/internal/http"
	"github.com/fyrsmithlabs/signald/internal/logging"
	"github.com/fyrsmithlabs/signald/internal/signal"
	"github.com/fyrsmithlabs/signald/internal/simulator"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func newSignaldServer(t *testing.T) *httptest.Server {
	t.Helper()
	m := aggregate.New(logging.NewNop())
	m.Register(simulator.New(simulator.Config{Source: signal.SourceSlack, Count: 4}))
	m.Register(simulator.New(simulator.Config{Source: signal.SourceAsana, Count: 3}))
	m.Register(simulator.Failing(signal.SourceLinear, errors.New("token_expired")))

	reg := prometheus.NewRegistry()
	srv, err := httpapi.NewServer(m, logging.NewNop(), &httpapi.Config{
		Version:    "test",
		Registerer: reg,
		Gatherer:   reg,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestSignalsCommand(t *testing.T) {
	t.Run("renders simulated feed as a table", func(t *testing.T) {
		out, err := execute(t, "signals", "--simulate")
		require.NoError(t, err)

		assert.Contains(t, out, "SOURCE")
		assert.Contains(t, out, "Slack")
		assert.Contains(t, out, "WhatsApp")
		assert.Contains(t, out, "signal(s)")
	})

	t.Run("filters by category as JSON", func(t *testing.T) {
		out, err := execute(t, "signals", "--simulate", "--category", "deadline", "--json")
		require.NoError(t, err)

		var sigs []signal.Signal
		require.NoError(t, json.Unmarshal([]byte(out), &sigs))
		require.NotEmpty(t, sigs)
		for _, s := range sigs {
			assert.Equal(t, signal.CategoryDeadline, s.Category)
		}
	})

	t.Run("limit caps the list", func(t *testing.T) {
		out, err := execute(t, "signals", "--simulate", "--limit", "2", "--json")
		require.NoError(t, err)

		var sigs []signal.Signal
		require.NoError(t, json.Unmarshal([]byte(out), &sigs))
		assert.Len(t, sigs, 2)
	})

	t.Run("reads from a server", func(t *testing.T) {
		ts := newSignaldServer(t)
		out, err := execute(t, "signals", "--server", ts.URL, "--since", "24h", "--json")
		require.NoError(t, err)

		var sigs []signal.Signal
		require.NoError(t, json.Unmarshal([]byte(out), &sigs))
		require.NotEmpty(t, sigs)
		for i := 1; i < len(sigs); i++ {
			assert.False(t, sigs[i].Timestamp.After(sigs[i-1].Timestamp), "feed must be newest first")
		}
	})

	t.Run("rejects bad flags", func(t *testing.T) {
		_, err := execute(t, "signals", "--simulate", "--since", "yesterday")
		assert.ErrorContains(t, err, "invalid --since")

		_, err = execute(t, "signals", "--simulate", "--category", "gossip")
		assert.ErrorContains(t, err, "unknown category")

		_, err = execute(t, "signals", "--simulate", "--local")
		assert.Error(t, err)
	})

	t.Run("surfaces server errors", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer ts.Close()

		_, err := execute(t, "signals", "--server", ts.URL)
		assert.ErrorContains(t, err, "server returned status 500: boom")
	})
}

func TestHealthCommand(t *testing.T) {
	t.Run("simulated integrations are healthy", func(t *testing.T) {
		out, err := execute(t, "health", "--simulate")
		require.NoError(t, err)

		assert.Contains(t, out, "Simulated slack")
		assert.Contains(t, out, "healthy")
		assert.NotContains(t, out, "error")
	})

	t.Run("shows guidance for failing integrations", func(t *testing.T) {
		ts := newSignaldServer(t)
		out, err := execute(t, "health", "--server", ts.URL, "--refresh")
		require.NoError(t, err)

		assert.Contains(t, out, "Linear:")
		assert.Contains(t, out, "token_expired")
	})

	t.Run("JSON carries guidance", func(t *testing.T) {
		ts := newSignaldServer(t)
		out, err := execute(t, "health", "--server", ts.URL, "--json")
		require.NoError(t, err)

		var rows []httpapi.IntegrationStatus
		require.NoError(t, json.Unmarshal([]byte(out), &rows))
		require.Len(t, rows, 3)
		for _, r := range rows {
			if r.Source == signal.SourceLinear {
				assert.Equal(t, signal.StatusError, r.Status)
				assert.NotEmpty(t, r.Guidance)
			}
		}
	})
}

func TestCoverageCommand(t *testing.T) {
	out, err := execute(t, "coverage", "--simulate", "--json")
	require.NoError(t, err)

	var cov aggregate.Coverage
	require.NoError(t, json.Unmarshal([]byte(out), &cov))
	// slack, whatsapp: 2/4 comm. asana, linear, github: 3/4 task.
	assert.Equal(t, 50, cov.CommunicationCoverage)
	assert.Equal(t, 75, cov.TaskCoverage)
	assert.Equal(t, 65, cov.Percentage)
	assert.Equal(t, aggregate.LevelMedium, cov.Overall)

	text, err := execute(t, "coverage", "--simulate")
	require.NoError(t, err)
	assert.Contains(t, text, "65%")
	assert.Contains(t, text, cov.Message)
}

func TestExportCommand(t *testing.T) {
	t.Run("writes a workbook", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.xlsx")
		out, err := execute(t, "export", "--simulate", "--xlsx", "-o", path)
		require.NoError(t, err)
		assert.Contains(t, out, "Exported")

		f, err := os.Open(path)
		require.NoError(t, err)
		defer f.Close()
		wb, err := excelize.OpenReader(f)
		require.NoError(t, err)
		defer wb.Close()
		assert.Contains(t, wb.GetSheetList(), "Signals")
	})

	t.Run("requires a format", func(t *testing.T) {
		_, err := execute(t, "export", "--simulate")
		assert.ErrorContains(t, err, "--xlsx")
	})
}

func TestParseSince(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		raw     string
		want    *time.Time
		wantErr bool
	}{
		{name: "empty", raw: ""},
		{name: "duration", raw: "48h", want: ptr(now.Add(-48 * time.Hour))},
		{name: "timestamp", raw: "2025-06-01T00:00:00Z", want: ptr(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))},
		{name: "negative duration", raw: "-1h", wantErr: true},
		{name: "garbage", raw: "last week", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSince(tt.raw, now)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got))
		})
	}
}

func TestAge(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "now", age(now, now.Add(-10*time.Second)))
	assert.Equal(t, "5m", age(now, now.Add(-5*time.Minute)))
	assert.Equal(t, "30h", age(now, now.Add(-30*time.Hour)))
	assert.Equal(t, "3d", age(now, now.Add(-72*time.Hour)))
}

func TestNames(t *testing.T) {
	assert.Equal(t, "-", names(nil))
	assert.True(t, strings.HasPrefix(names([]signal.Source{signal.SourceGitHub, signal.SourceSlack}), "GitHub, Slack"))
}

func ptr(t time.Time) *time.Time { return &t }

func TestSnapshotFetcher(t *testing.T) {
	opts := &options{simulate: true, simCount: 4, timeout: time.Second, now: time.Now}
	b, err := opts.backend(t.Context())
	require.NoError(t, err)
	defer b.Close()

	snap, err := snapshotFetcher(b)(t.Context())
	require.NoError(t, err)
	assert.NotEmpty(t, snap.Signals)
	assert.Len(t, snap.Health, len(simulatedSources))
	assert.Equal(t, 65, snap.Coverage.Percentage)
}

func TestWatchRejectsShortInterval(t *testing.T) {
	_, err := execute(t, "watch", "--simulate", "--interval", "10ms")
	assert.ErrorContains(t, err, "--interval")
}
