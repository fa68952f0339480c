package signal

import (
	"strings"
	"time"
)

// HealthStatus is the connectivity state of an integration.
type HealthStatus string

const (
	StatusHealthy       HealthStatus = "healthy"
	StatusDegraded      HealthStatus = "degraded"
	StatusError         HealthStatus = "error"
	StatusNotConfigured HealthStatus = "not_configured"
)

// IntegrationHealth is computed fresh on every health check.
type IntegrationHealth struct {
	Source        Source       `json:"source"`
	Connected     bool         `json:"connected"`
	Status        HealthStatus `json:"status"`
	Workspace     string       `json:"workspace,omitempty"`
	Scopes        []string     `json:"scopes,omitempty"`
	MissingScopes []string     `json:"missingScopes,omitempty"`
	LastSyncAt    *time.Time   `json:"lastSyncAt,omitempty"`
	LastSyncError string       `json:"lastSyncError,omitempty"`
	NeedsReauth   bool         `json:"needsReauth,omitempty"`
	Error         string       `json:"error,omitempty"`
}

// authMarkers are substrings of upstream error messages that mean the
// credential itself is bad, not that the call failed transiently.
var authMarkers = []string{
	"invalid_auth",
	"token_revoked",
	"token_expired",
	"not_authed",
	"account_inactive",
	"unauthorized",
	"401",
	"invalid token",
	"bad credentials",
	"authentication failed",
	"authentication_error",
	"oauthexception",
}

// IsAuthError reports whether an error message looks like an auth failure.
func IsAuthError(msg string) bool {
	lower := strings.ToLower(msg)
	for _, m := range authMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Healthy returns a connected, healthy record. If missingScopes is non-empty
// the record is degraded instead.
func Healthy(source Source, workspace string, scopes, missingScopes []string) IntegrationHealth {
	h := IntegrationHealth{
		Source:        source,
		Connected:     true,
		Status:        StatusHealthy,
		Workspace:     workspace,
		Scopes:        scopes,
		MissingScopes: missingScopes,
	}
	return h.Normalize()
}

// ErrorStatus converts a failed health check into data.
func ErrorStatus(source Source, err error) IntegrationHealth {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return IntegrationHealth{
		Source:      source,
		Connected:   false,
		Status:      StatusError,
		Error:       msg,
		NeedsReauth: IsAuthError(msg),
	}
}

// NotConfigured is the record for a source with no credential.
func NotConfigured(source Source) IntegrationHealth {
	return IntegrationHealth{Source: source, Status: StatusNotConfigured}
}

// Normalize enforces the status invariants and returns the result.
func (h IntegrationHealth) Normalize() IntegrationHealth {
	switch h.Status {
	case StatusError, StatusNotConfigured:
		h.Connected = false
	case StatusHealthy, StatusDegraded:
		if !h.Connected {
			h.Status = StatusError
			if h.Error == "" {
				h.Error = "not connected"
			}
			break
		}
		if len(h.MissingScopes) > 0 {
			h.Status = StatusDegraded
		} else {
			h.Status = StatusHealthy
		}
	default:
		h.Status = StatusError
		h.Connected = false
	}
	return h
}

// WithLastSync attaches the adapter's last fetch outcome.
func (h IntegrationHealth) WithLastSync(at time.Time, syncErr string) IntegrationHealth {
	if !at.IsZero() {
		t := at
		h.LastSyncAt = &t
	}
	h.LastSyncError = syncErr
	return h
}

// Guidance is the user-facing prompt for the calling layer to render.
func (h IntegrationHealth) Guidance() string {
	switch h.Status {
	case StatusError:
		return "reconnect this integration"
	case StatusDegraded:
		return "grant additional permissions"
	case StatusNotConfigured:
		return "connect this integration"
	default:
		return ""
	}
}

// MissingScopes returns the entries of required absent from granted.
func MissingScopes(required, granted []string) []string {
	have := make(map[string]bool, len(granted))
	for _, g := range granted {
		have[strings.TrimSpace(g)] = true
	}
	var missing []string
	for _, r := range required {
		if !have[r] {
			missing = append(missing, r)
		}
	}
	return missing
}
