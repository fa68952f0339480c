package signal

import (
	"context"
	"sync"
	"time"
)

// Adapter is implemented by every integration.
type Adapter interface {
	// Source returns the integration identifier.
	Source() Source

	// CheckHealth verifies the credential with a minimal read call. It never
	// fails: problems are reported in the returned record.
	CheckHealth(ctx context.Context) IntegrationHealth

	// FetchSignals returns classified, filtered signals modified at or after
	// since (nil selects the adapter's default window), newest first.
	// Upstream failures are logged and yield partial or empty results; the
	// error is reserved for context cancellation.
	FetchSignals(ctx context.Context, since *time.Time) ([]Signal, error)
}

// SyncState records the outcome of an adapter's last fetch so that health
// checks can report it. The zero value is ready to use.
type SyncState struct {
	mu      sync.Mutex
	lastAt  time.Time
	lastErr string
}

// Record stores the outcome of a fetch finished at t.
func (s *SyncState) Record(t time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAt = t
	if err != nil {
		s.lastErr = err.Error()
	} else {
		s.lastErr = ""
	}
}

// Apply copies the last sync outcome into h. A failed last sync on an
// otherwise healthy connection downgrades nothing; callers read
// LastSyncError.
func (s *SyncState) Apply(h IntegrationHealth) IntegrationHealth {
	s.mu.Lock()
	defer s.mu.Unlock()
	return h.WithLastSync(s.lastAt, s.lastErr)
}
