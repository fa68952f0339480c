package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fyrsmithlabs/signald/internal/adapters"
	"github.com/fyrsmithlabs/signald/internal/aggregate"
	"github.com/fyrsmithlabs/signald/internal/config"
	httpapi "github.com/fyrsmithlabs/signald/internal/http"
	"github.com/fyrsmithlabs/signald/internal/logging"
	"github.com/fyrsmithlabs/signald/internal/signal"
	"github.com/fyrsmithlabs/signald/internal/simulator"
)

// backend is where a command reads the feed from.
type backend interface {
	Signals(ctx context.Context, since *time.Time) ([]signal.Signal, error)
	Integrations(ctx context.Context, refresh bool) ([]httpapi.IntegrationStatus, error)
	Coverage(ctx context.Context) (aggregate.Coverage, error)
	Close() error
}

// simulatedSources are the integrations --simulate registers.
var simulatedSources = []signal.Source{
	signal.SourceSlack,
	signal.SourceWhatsApp,
	signal.SourceAsana,
	signal.SourceLinear,
	signal.SourceGitHub,
}

func (o *options) backend(ctx context.Context) (backend, error) {
	switch {
	case o.simulate:
		m := aggregate.New(logging.NewNop())
		for _, src := range simulatedSources {
			m.Register(simulator.New(simulator.Config{Source: src, Count: o.simCount, Now: o.now}))
		}
		return &localBackend{manager: m}, nil
	case o.local:
		cfg, err := config.LoadWithFile(o.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		m, err := aggregate.NewFromConfig(ctx, cfg, logging.NewNop(), adapters.Deps{})
		if err != nil {
			return nil, fmt.Errorf("failed to build integrations: %w", err)
		}
		return &localBackend{manager: m}, nil
	default:
		return &remoteBackend{
			baseURL: strings.TrimRight(o.serverURL, "/"),
			client:  &http.Client{Timeout: o.timeout},
		}, nil
	}
}

// localBackend runs the aggregation manager in-process.
type localBackend struct {
	manager *aggregate.Manager
}

func (b *localBackend) Signals(ctx context.Context, since *time.Time) ([]signal.Signal, error) {
	return b.manager.FetchAllSignals(ctx, since), nil
}

func (b *localBackend) Integrations(ctx context.Context, _ bool) ([]httpapi.IntegrationStatus, error) {
	health := b.manager.RefreshHealth(ctx)
	out := make([]httpapi.IntegrationStatus, len(health))
	for i, h := range health {
		out[i] = httpapi.IntegrationStatus{IntegrationHealth: h, Guidance: h.Guidance()}
	}
	return out, nil
}

func (b *localBackend) Coverage(context.Context) (aggregate.Coverage, error) {
	return b.manager.AssessCoverage(), nil
}

func (b *localBackend) Close() error {
	return b.manager.Close()
}

// remoteBackend queries a signald server.
type remoteBackend struct {
	baseURL string
	client  *http.Client
}

func (b *remoteBackend) Signals(ctx context.Context, since *time.Time) ([]signal.Signal, error) {
	q := url.Values{}
	if since != nil {
		q.Set("since", since.UTC().Format(time.RFC3339))
	}
	var resp httpapi.SignalsResponse
	if err := b.get(ctx, "/api/v1/signals", q, &resp); err != nil {
		return nil, err
	}
	return resp.Signals, nil
}

func (b *remoteBackend) Integrations(ctx context.Context, refresh bool) ([]httpapi.IntegrationStatus, error) {
	q := url.Values{}
	if refresh {
		q.Set("refresh", "true")
	}
	var resp httpapi.IntegrationsResponse
	if err := b.get(ctx, "/api/v1/integrations/health", q, &resp); err != nil {
		return nil, err
	}
	return resp.Integrations, nil
}

func (b *remoteBackend) Coverage(ctx context.Context) (aggregate.Coverage, error) {
	var cov aggregate.Coverage
	err := b.get(ctx, "/api/v1/coverage", nil, &cov)
	return cov, err
}

func (b *remoteBackend) Close() error { return nil }

func (b *remoteBackend) get(ctx context.Context, path string, q url.Values, out any) error {
	u := b.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
