package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/fyrsmithlabs/signald/internal/logging"
	"github.com/fyrsmithlabs/signald/internal/metrics"
	"github.com/fyrsmithlabs/signald/internal/signal"
)

const instrumentationName = "github.com/fyrsmithlabs/signald/internal/aggregate"

// DefaultFetchTimeout bounds one shared adapter fetch.
const DefaultFetchTimeout = time.Minute

// Option configures a Manager.
type Option func(*Manager)

// WithTracer sets the tracer used for fan-out spans.
func WithTracer(t trace.Tracer) Option {
	return func(m *Manager) { m.tracer = t }
}

// WithMetrics records fetch durations and integration status.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithHealthCacheTTL caches GetHealth results for ttl. Zero disables the
// cache.
func WithHealthCacheTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.cacheTTL = ttl }
}

// WithFetchTimeout bounds a shared adapter fetch. The fetch is detached from
// the callers that joined it, so this is what stops it. Non-positive values
// keep DefaultFetchTimeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.fetchTimeout = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager fans out to registered adapters. It is safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	adapters map[signal.Source]signal.Adapter

	logger   *logging.Logger
	tracer   trace.Tracer
	metrics  *metrics.Metrics
	cacheTTL time.Duration
	now      func() time.Time

	fetchTimeout time.Duration

	// fetches collapses concurrent fetches of one adapter for the same
	// window so an adapter never runs FetchSignals concurrently with itself
	// for identical arguments.
	fetches singleflight.Group

	cacheMu  sync.Mutex
	cache    []signal.IntegrationHealth
	cachedAt time.Time

	closers []func() error
}

// New creates an empty Manager.
func New(logger *logging.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		adapters: make(map[signal.Source]signal.Adapter),
		logger:   logger.Named("aggregate"),
		tracer:   otel.Tracer(instrumentationName),
		now:      time.Now,

		fetchTimeout: DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds a, replacing any adapter already registered for its source.
func (m *Manager) Register(a signal.Adapter) {
	m.mu.Lock()
	m.adapters[a.Source()] = a
	m.mu.Unlock()
	m.invalidate()
}

// Close releases resources opened on the Manager's behalf, such as the
// redis inbox connection.
func (m *Manager) Close() error {
	m.mu.Lock()
	closers := m.closers
	m.closers = nil
	m.mu.Unlock()

	var errs []error
	for _, c := range closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) onClose(fn func() error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closers = append(m.closers, fn)
}

// Adapter returns the adapter registered for source.
func (m *Manager) Adapter(source signal.Source) (signal.Adapter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.adapters[source]
	return a, ok
}

// Sources returns the registered sources in sorted order.
func (m *Manager) Sources() []signal.Source {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]signal.Source, 0, len(m.adapters))
	for s := range m.adapters {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of registered adapters.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.adapters)
}

// snapshot returns the adapters ordered by source.
func (m *Manager) snapshot() []signal.Adapter {
	sources := m.Sources()
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]signal.Adapter, 0, len(sources))
	for _, s := range sources {
		if a, ok := m.adapters[s]; ok {
			out = append(out, a)
		}
	}
	return out
}

// GetHealth returns one health record per registered adapter, ordered by
// source. Results are served from cache when a TTL is configured and the
// cache is fresh.
func (m *Manager) GetHealth(ctx context.Context) []signal.IntegrationHealth {
	if cached, ok := m.cached(); ok {
		return cached
	}
	return m.RefreshHealth(ctx)
}

// RefreshHealth checks every adapter, bypassing and then repopulating the
// cache.
func (m *Manager) RefreshHealth(ctx context.Context) []signal.IntegrationHealth {
	ctx, span := m.tracer.Start(ctx, "aggregate.get_health")
	defer span.End()

	adapters := m.snapshot()
	span.SetAttributes(attribute.Int("adapters", len(adapters)))

	out := make([]signal.IntegrationHealth, len(adapters))
	var g errgroup.Group
	for i, a := range adapters {
		g.Go(func() error {
			out[i] = m.checkOne(ctx, a)
			return nil
		})
	}
	_ = g.Wait()

	m.store(out)
	return cloneHealth(out)
}

func (m *Manager) checkOne(ctx context.Context, a signal.Adapter) (h signal.IntegrationHealth) {
	source := a.Source()
	ctx = logging.WithSource(ctx, string(source))
	ctx = logging.WithOperation(ctx, "check_health")
	ctx, span := m.tracer.Start(ctx, "adapter.check_health",
		trace.WithAttributes(attribute.String("source", string(source))))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("health check panicked: %v", r)
			m.logger.Error(ctx, "adapter health check panicked", zap.Any("panic", r))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			h = signal.ErrorStatus(source, err)
		}
		m.metrics.SetStatus(string(source), string(h.Status))
		span.SetAttributes(attribute.String("status", string(h.Status)))
	}()

	h = a.CheckHealth(ctx)
	if h.Source == "" {
		h.Source = source
	}
	h = h.Normalize()
	if h.Status == signal.StatusError {
		m.logger.Warn(ctx, "integration unhealthy",
			zap.String("error", h.Error),
			zap.Bool("needs_reauth", h.NeedsReauth))
		span.SetStatus(codes.Error, h.Error)
	}
	return h
}

func (m *Manager) cached() ([]signal.IntegrationHealth, bool) {
	if m.cacheTTL <= 0 {
		return nil, false
	}
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	if m.cache == nil || m.now().Sub(m.cachedAt) >= m.cacheTTL {
		return nil, false
	}
	return cloneHealth(m.cache), true
}

func (m *Manager) store(h []signal.IntegrationHealth) {
	if m.cacheTTL <= 0 {
		return
	}
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	m.cache = cloneHealth(h)
	m.cachedAt = m.now()
}

func (m *Manager) invalidate() {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	m.cache = nil
}

func cloneHealth(h []signal.IntegrationHealth) []signal.IntegrationHealth {
	out := make([]signal.IntegrationHealth, len(h))
	copy(out, h)
	return out
}

// FetchAllSignals fetches from every adapter concurrently and returns the
// union sorted newest first. Equal timestamps keep source order. The result
// is never nil.
func (m *Manager) FetchAllSignals(ctx context.Context, since *time.Time) []signal.Signal {
	ctx, span := m.tracer.Start(ctx, "aggregate.fetch_all_signals")
	defer span.End()

	adapters := m.snapshot()
	span.SetAttributes(attribute.Int("adapters", len(adapters)))

	results := make([][]signal.Signal, len(adapters))
	var g errgroup.Group
	for i, a := range adapters {
		g.Go(func() error {
			results[i] = m.fetchShared(ctx, a, since)
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, r := range results {
		total += len(r)
	}
	merged := make([]signal.Signal, 0, total)
	for _, r := range results {
		merged = append(merged, r...)
	}
	signal.SortByTimestampDesc(merged)

	span.SetAttributes(attribute.Int("signals", len(merged)))
	m.logger.Debug(ctx, "signals aggregated",
		zap.Int("adapters", len(adapters)),
		zap.Int("signals", len(merged)))
	return merged
}

func (m *Manager) fetchShared(ctx context.Context, a signal.Adapter, since *time.Time) []signal.Signal {
	key := string(a.Source())
	if since != nil {
		key += "|" + since.UTC().Format(time.RFC3339Nano)
	}
	if ctx.Err() != nil {
		return nil
	}

	// The fetch outlives any one caller: a caller that gives up must not
	// cancel the work other callers are waiting on.
	ch := m.fetches.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.fetchTimeout)
		defer cancel()
		return m.fetchOne(fctx, a, since), nil
	})
	select {
	case <-ctx.Done():
		m.logger.Debug(ctx, "caller left shared fetch",
			zap.String("source", string(a.Source())), zap.Error(ctx.Err()))
		return nil
	case res := <-ch:
		return res.Val.([]signal.Signal)
	}
}

func (m *Manager) fetchOne(ctx context.Context, a signal.Adapter, since *time.Time) (sigs []signal.Signal) {
	source := a.Source()
	ctx = logging.WithSource(ctx, string(source))
	ctx = logging.WithOperation(ctx, "fetch_signals")
	ctx, span := m.tracer.Start(ctx, "adapter.fetch_signals",
		trace.WithAttributes(attribute.String("source", string(source))))
	defer span.End()

	start := m.now()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("fetch panicked: %v", r)
			m.logger.Error(ctx, "adapter fetch panicked", zap.Any("panic", r))
			m.metrics.Failed(string(source), "fetch")
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			sigs = nil
		}
		m.metrics.ObserveFetch(string(source), m.now().Sub(start))
		span.SetAttributes(attribute.Int("signals", len(sigs)))
	}()

	sigs, err := a.FetchSignals(ctx, since)
	if err != nil {
		m.logger.Warn(ctx, "adapter fetch failed", zap.Error(err))
		m.metrics.Failed(string(source), "fetch")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil
	}
	return sigs
}
