package aggregate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/signald/internal/logging"
	"github.com/fyrsmithlabs/signald/internal/metrics"
	"github.com/fyrsmithlabs/signald/internal/signal"
	"github.com/fyrsmithlabs/signald/internal/simulator"
	"github.com/fyrsmithlabs/signald/internal/telemetry"
)

var testNow = time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)

func sig(id string, ts time.Time) signal.Signal {
	return signal.Signal{
		SourceID:   id,
		Category:   signal.CategoryUpdate,
		Confidence: 0.5,
		Title:      id,
		Timestamp:  ts,
		URL:        "https://example.test/" + id,
	}
}

func ids(sigs []signal.Signal) []string {
	out := make([]string, len(sigs))
	for i, s := range sigs {
		out[i] = s.SourceID
	}
	return out
}

func TestFetchAllSignals_MergesByRecency(t *testing.T) {
	m := New(nil)
	m.Register(simulator.WithSignals(signal.SourceSlack,
		sig("T", testNow),
		sig("T-1h", testNow.Add(-time.Hour)),
		sig("T-2h", testNow.Add(-2*time.Hour)),
	))
	m.Register(simulator.WithSignals(signal.SourceAsana,
		sig("T-30m", testNow.Add(-30*time.Minute)),
		sig("T-3h", testNow.Add(-3*time.Hour)),
	))

	got := m.FetchAllSignals(context.Background(), nil)
	assert.Equal(t, []string{"T", "T-30m", "T-1h", "T-2h", "T-3h"}, ids(got))
}

func TestFetchAllSignals_EqualTimestampsKeepSourceOrder(t *testing.T) {
	m := New(nil)
	m.Register(simulator.WithSignals(signal.SourceSlack, sig("s", testNow)))
	m.Register(simulator.WithSignals(signal.SourceAsana, sig("a", testNow)))
	m.Register(simulator.WithSignals(signal.SourceLinear, sig("l", testNow)))

	for range 5 {
		got := m.FetchAllSignals(context.Background(), nil)
		assert.Equal(t, []string{"a", "l", "s"}, ids(got))
	}
}

func TestFetchAllSignals_PartialFailure(t *testing.T) {
	tests := []struct {
		name   string
		broken signal.Adapter
		logMsg string
		logLvl zapcore.Level
	}{
		{
			name:   "error",
			broken: simulator.Failing(signal.SourceLinear, errors.New("connection reset by peer")),
			logMsg: "adapter fetch failed",
			logLvl: zapcore.WarnLevel,
		},
		{
			name:   "panic",
			broken: simulator.New(simulator.Config{Source: signal.SourceLinear, Panic: true}),
			logMsg: "adapter fetch panicked",
			logLvl: zapcore.ErrorLevel,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := logging.NewTestLogger()
			good := simulator.New(simulator.Config{
				Source: signal.SourceSlack,
				Count:  6,
				Now:    func() time.Time { return testNow },
			})
			want, err := good.FetchSignals(context.Background(), nil)
			require.NoError(t, err)
			require.NotEmpty(t, want)

			m := New(logger.Logger)
			m.Register(tt.broken)
			m.Register(good)

			got := m.FetchAllSignals(context.Background(), nil)
			assert.Equal(t, want, got)
			logger.AssertLogged(t, tt.logLvl, tt.logMsg)
		})
	}
}

func TestFetchAllSignals_SortInvariant(t *testing.T) {
	m := New(nil)
	for i, src := range []signal.Source{signal.SourceSlack, signal.SourceAsana, signal.SourceGitHub, signal.SourceWhatsApp} {
		offset := time.Duration(i) * 17 * time.Minute
		m.Register(simulator.New(simulator.Config{
			Source:  src,
			Count:   8,
			Spacing: 45 * time.Minute,
			Now:     func() time.Time { return testNow.Add(-offset) },
		}))
	}

	got := m.FetchAllSignals(context.Background(), nil)
	require.NotEmpty(t, got)
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].Timestamp.After(got[i-1].Timestamp),
			"signal %d (%s) is newer than signal %d (%s)", i, got[i].Timestamp, i-1, got[i-1].Timestamp)
	}
}

func TestFetchAllSignals_Empty(t *testing.T) {
	got := New(nil).FetchAllSignals(context.Background(), nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFetchAllSignals_Since(t *testing.T) {
	m := New(nil)
	m.Register(simulator.WithSignals(signal.SourceSlack,
		sig("new", testNow),
		sig("old", testNow.Add(-48*time.Hour)),
	))
	since := testNow.Add(-24 * time.Hour)
	assert.Equal(t, []string{"new"}, ids(m.FetchAllSignals(context.Background(), &since)))
}

func TestFetchAllSignals_Tracing(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	m := New(nil, WithTracer(tt.Tracer("test")))
	m.Register(simulator.WithSignals(signal.SourceSlack, sig("a", testNow), sig("b", testNow)))
	m.Register(simulator.Failing(signal.SourceAsana, errors.New("boom")))

	m.FetchAllSignals(context.Background(), nil)

	tt.AssertSpanExists(t, "aggregate.fetch_all_signals")
	tt.AssertSpanAttribute(t, "aggregate.fetch_all_signals", "signals", int64(2))
	assert.Len(t, tt.SpansNamed("adapter.fetch_signals"), 2)
}

func TestGetHealth(t *testing.T) {
	logger := logging.NewTestLogger()
	m := New(logger.Logger, WithMetrics(metrics.NewMetrics()))
	m.Register(simulator.New(simulator.Config{Source: signal.SourceSlack}))
	m.Register(simulator.New(simulator.Config{Source: signal.SourceAsana, Status: signal.StatusDegraded}))
	m.Register(simulator.Failing(signal.SourceLinear, errors.New("token_revoked")))
	m.Register(simulator.New(simulator.Config{Source: signal.SourceGitHub, Panic: true}))

	got := m.GetHealth(context.Background())
	require.Len(t, got, 4)

	bySource := make(map[signal.Source]signal.IntegrationHealth)
	for _, h := range got {
		bySource[h.Source] = h
	}
	assert.Equal(t, signal.StatusHealthy, bySource[signal.SourceSlack].Status)
	assert.Equal(t, signal.StatusDegraded, bySource[signal.SourceAsana].Status)
	assert.True(t, bySource[signal.SourceAsana].Connected)

	linear := bySource[signal.SourceLinear]
	assert.Equal(t, signal.StatusError, linear.Status)
	assert.False(t, linear.Connected)
	assert.True(t, linear.NeedsReauth)

	gh := bySource[signal.SourceGitHub]
	assert.Equal(t, signal.StatusError, gh.Status)
	assert.Contains(t, gh.Error, "panicked")
	logger.AssertLogged(t, zapcore.ErrorLevel, "adapter health check panicked")

	// Ordered by source.
	assert.Equal(t, signal.SourceAsana, got[0].Source)
	assert.Equal(t, signal.SourceSlack, got[3].Source)

	mt := metrics.NewMetrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.IntegrationStatus.WithLabelValues("linear", "error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(mt.IntegrationStatus.WithLabelValues("linear", "healthy")))
}

func TestGetHealth_Concurrent(t *testing.T) {
	m := New(nil)
	for _, src := range []signal.Source{signal.SourceSlack, signal.SourceAsana, signal.SourceLinear, signal.SourceGitHub} {
		m.Register(simulator.New(simulator.Config{Source: src, Latency: 150 * time.Millisecond}))
	}

	start := time.Now()
	got := m.GetHealth(context.Background())
	elapsed := time.Since(start)

	assert.Len(t, got, 4)
	assert.Less(t, elapsed, 450*time.Millisecond, "health checks ran sequentially")
}

// gatedAdapter blocks FetchSignals until release is closed or its context
// ends, recording how the context ended.
type gatedAdapter struct {
	source  signal.Source
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
	ctxErr  atomic.Value
}

func newGatedAdapter(source signal.Source) *gatedAdapter {
	return &gatedAdapter{source: source, started: make(chan struct{}, 1), release: make(chan struct{})}
}

func (g *gatedAdapter) Source() signal.Source { return g.source }

func (g *gatedAdapter) CheckHealth(context.Context) signal.IntegrationHealth {
	return signal.Healthy(g.source, "", nil, nil)
}

func (g *gatedAdapter) FetchSignals(ctx context.Context, _ *time.Time) ([]signal.Signal, error) {
	g.calls.Add(1)
	select {
	case g.started <- struct{}{}:
	default:
	}
	select {
	case <-ctx.Done():
		g.ctxErr.Store(ctx.Err())
		return nil, ctx.Err()
	case <-g.release:
		return []signal.Signal{sig("shared", testNow)}, nil
	}
}

func TestFetchAllSignals_CanceledCallerDoesNotStarveOthers(t *testing.T) {
	m := New(nil)
	a := newGatedAdapter(signal.SourceSlack)
	m.Register(a)

	ctxA, cancelA := context.WithCancel(context.Background())
	gotA := make(chan []signal.Signal, 1)
	go func() { gotA <- m.FetchAllSignals(ctxA, nil) }()
	<-a.started

	cancelA()
	select {
	case sigs := <-gotA:
		assert.Empty(t, sigs)
	case <-time.After(2 * time.Second):
		t.Fatal("canceled caller did not return")
	}

	// The fetch is still in flight, so this caller joins it.
	gotB := make(chan []signal.Signal, 1)
	go func() { gotB <- m.FetchAllSignals(context.Background(), nil) }()
	time.Sleep(20 * time.Millisecond)
	close(a.release)

	select {
	case sigs := <-gotB:
		assert.Equal(t, []string{"shared"}, ids(sigs))
	case <-time.After(2 * time.Second):
		t.Fatal("live caller did not return")
	}
	assert.Equal(t, int32(1), a.calls.Load())
	assert.Nil(t, a.ctxErr.Load())
}

func TestFetchAllSignals_CancelMidFetch(t *testing.T) {
	tests := []struct {
		name    string
		cancelA time.Duration
	}{
		{"cancel early", 10 * time.Millisecond},
		{"cancel late", 120 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(nil)
			m.Register(simulator.New(simulator.Config{
				Source:  signal.SourceSlack,
				Signals: []signal.Signal{sig("a", testNow)},
				Latency: 200 * time.Millisecond,
			}))

			ctxA, cancelA := context.WithTimeout(context.Background(), tt.cancelA)
			defer cancelA()
			gotA := make(chan []signal.Signal, 1)
			gotB := make(chan []signal.Signal, 1)
			go func() { gotA <- m.FetchAllSignals(ctxA, nil) }()
			go func() { gotB <- m.FetchAllSignals(context.Background(), nil) }()

			assert.Empty(t, <-gotA)
			assert.Equal(t, []string{"a"}, ids(<-gotB))
		})
	}
}

func TestFetchAllSignals_SharedFetchTimeout(t *testing.T) {
	m := New(nil, WithFetchTimeout(30*time.Millisecond))
	a := newGatedAdapter(signal.SourceSlack)
	m.Register(a)

	start := time.Now()
	sigs := m.FetchAllSignals(context.Background(), nil)

	assert.Empty(t, sigs)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, context.DeadlineExceeded, a.ctxErr.Load())
}

func TestFetchAllSignals_AlreadyCanceled(t *testing.T) {
	m := New(nil)
	a := newGatedAdapter(signal.SourceSlack)
	m.Register(a)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Empty(t, m.FetchAllSignals(ctx, nil))
	assert.Equal(t, int32(0), a.calls.Load())
}

type countingAdapter struct {
	source signal.Source
	checks atomic.Int32
}

func (c *countingAdapter) Source() signal.Source { return c.source }

func (c *countingAdapter) CheckHealth(context.Context) signal.IntegrationHealth {
	c.checks.Add(1)
	return signal.Healthy(c.source, "", nil, nil)
}

func (c *countingAdapter) FetchSignals(context.Context, *time.Time) ([]signal.Signal, error) {
	return []signal.Signal{}, nil
}

func TestGetHealth_Cache(t *testing.T) {
	now := testNow
	m := New(nil, WithHealthCacheTTL(time.Minute), WithClock(func() time.Time { return now }))
	a := &countingAdapter{source: signal.SourceSlack}
	m.Register(a)

	m.GetHealth(context.Background())
	m.GetHealth(context.Background())
	assert.Equal(t, int32(1), a.checks.Load())

	m.RefreshHealth(context.Background())
	assert.Equal(t, int32(2), a.checks.Load())

	now = now.Add(2 * time.Minute)
	m.GetHealth(context.Background())
	assert.Equal(t, int32(3), a.checks.Load())

	// Registering invalidates.
	m.Register(&countingAdapter{source: signal.SourceAsana})
	got := m.GetHealth(context.Background())
	assert.Len(t, got, 2)
	assert.Equal(t, int32(4), a.checks.Load())
}

func TestGetHealth_NoCacheByDefault(t *testing.T) {
	m := New(nil)
	a := &countingAdapter{source: signal.SourceSlack}
	m.Register(a)

	m.GetHealth(context.Background())
	m.GetHealth(context.Background())
	assert.Equal(t, int32(2), a.checks.Load())
}

func TestRegister_Replaces(t *testing.T) {
	m := New(nil)
	m.Register(simulator.WithSignals(signal.SourceSlack, sig("first", testNow)))
	m.Register(simulator.WithSignals(signal.SourceSlack, sig("second", testNow)))

	assert.Equal(t, 1, m.Len())
	assert.Equal(t, []signal.Source{signal.SourceSlack}, m.Sources())
	assert.Equal(t, []string{"second"}, ids(m.FetchAllSignals(context.Background(), nil)))

	_, ok := m.Adapter(signal.SourceSlack)
	assert.True(t, ok)
	_, ok = m.Adapter(signal.SourceAsana)
	assert.False(t, ok)
}

func TestClose(t *testing.T) {
	m := New(nil)
	calls := 0
	m.onClose(func() error { calls++; return nil })
	m.onClose(func() error { calls++; return errors.New("closing") })

	assert.EqualError(t, m.Close(), "closing")
	assert.Equal(t, 2, calls)
	assert.NoError(t, m.Close())
}
