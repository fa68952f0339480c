package http

import (
	"time"

	"github.com/fyrsmithlabs/signald/internal/signal"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Sources int    `json:"sources"`
}

// SignalsResponse is the response body for GET /api/v1/signals.
type SignalsResponse struct {
	Signals     []signal.Signal `json:"signals"`
	Count       int             `json:"count"`
	Since       *time.Time      `json:"since,omitempty"`
	GeneratedAt time.Time       `json:"generatedAt"`
	Counts      SignalCounts    `json:"counts"`
}

// SignalCounts breaks a signal list down for dashboards.
type SignalCounts struct {
	BySource   map[signal.Source]int   `json:"bySource"`
	ByCategory map[signal.Category]int `json:"byCategory"`
}

// IntegrationStatus is one row of GET /api/v1/integrations/health.
type IntegrationStatus struct {
	signal.IntegrationHealth
	// Guidance is the action to show the user, empty when none is needed.
	Guidance string `json:"guidance,omitempty"`
}

// IntegrationsResponse is the response body for
// GET /api/v1/integrations/health.
type IntegrationsResponse struct {
	Integrations []IntegrationStatus `json:"integrations"`
	CheckedAt    time.Time           `json:"checkedAt"`
}

// WebhookResponse is the response body for POST /webhooks/whatsapp.
type WebhookResponse struct {
	Received int `json:"received"`
}
