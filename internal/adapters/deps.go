// Package adapters holds what every source adapter shares: injected
// dependencies, credential validation, and the finishing pass applied to
// signals before they leave an adapter.
package adapters

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/signald/internal/apiclient"
	"github.com/fyrsmithlabs/signald/internal/config"
	"github.com/fyrsmithlabs/signald/internal/metrics"
	"github.com/fyrsmithlabs/signald/internal/secrets"
	"github.com/fyrsmithlabs/signald/internal/signal"
)

const (
	// DefaultWindow is how far back chat and messaging adapters look when
	// no since is given.
	DefaultWindow = 24 * time.Hour

	// MaxSubUnits caps channels, projects, or workspaces scanned per fetch.
	MaxSubUnits = 10
)

// Deps are the collaborators injected into every adapter. Zero values are
// replaced by WithDefaults.
type Deps struct {
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Scrubber secrets.Scrubber

	// HTTPClient supplies the transport. Tests point it at httptest.
	HTTPClient *http.Client

	// Now is the clock used for windows and due-date math.
	Now func() time.Time

	Timeout       time.Duration
	RatePerSecond float64
	Retry         apiclient.RetryConfig

	// Window is the default look-back for chat and messaging sources.
	Window time.Duration

	// MaxSubUnits caps the sub-units scanned per fetch.
	MaxSubUnits int
}

// WithDefaults returns a copy of d with every unset field filled.
func (d Deps) WithDefaults() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Scrubber == nil {
		d.Scrubber = secrets.MustNew(nil)
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Window <= 0 {
		d.Window = DefaultWindow
	}
	if d.MaxSubUnits <= 0 || d.MaxSubUnits > MaxSubUnits {
		d.MaxSubUnits = MaxSubUnits
	}
	return d
}

// Client builds an apiclient for baseURL authenticated with token.
func (d Deps) Client(baseURL string, token config.Secret) (*apiclient.Client, error) {
	return apiclient.New(apiclient.Config{
		BaseURL:       baseURL,
		Token:         token,
		Timeout:       d.Timeout,
		RatePerSecond: d.RatePerSecond,
		Retry:         d.Retry,
		HTTPClient:    d.HTTPClient,
		Logger:        d.Logger,
	})
}

// Since resolves the fetch lower bound: since when given, else now minus
// the default window.
func (d Deps) Since(since *time.Time) time.Time {
	if since != nil {
		return *since
	}
	return d.Now().Add(-d.Window)
}

// ValidateToken rejects empty tokens and tokens containing whitespace.
func ValidateToken(source signal.Source, token config.Secret) error {
	v := token.Value()
	if v == "" {
		return fmt.Errorf("%s: %w: token is empty", source, signal.ErrInvalidCredential)
	}
	if strings.ContainsAny(v, " \t\r\n") {
		return fmt.Errorf("%s: %w: token contains whitespace", source, signal.ErrInvalidCredential)
	}
	return nil
}

// Finish scrubs, normalizes, sorts, and counts the signals an adapter is
// about to return.
func Finish(d Deps, source signal.Source, sigs []signal.Signal) []signal.Signal {
	for i := range sigs {
		s := &sigs[i]
		s.Source = source
		s.Title = d.Scrubber.Redact(s.Title)
		s.Snippet = d.Scrubber.Redact(s.Snippet)
		s.Normalize()
		d.Metrics.Emitted(string(source), string(s.Category))
	}
	signal.SortByTimestampDesc(sigs)
	if sigs == nil {
		sigs = []signal.Signal{}
	}
	return sigs
}
