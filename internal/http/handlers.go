package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/signald/internal/adapters/whatsapp"
	"github.com/fyrsmithlabs/signald/internal/signal"
)

// handleHealth reports process liveness. Integration health lives under
// /api/v1/integrations/health.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: s.config.Version,
		Sources: s.manager.Len(),
	})
}

// handleSignals returns the merged signal feed.
//
// Query parameters:
//   - since: RFC 3339 timestamp, or a duration such as "48h" meaning that
//     long ago. Omitted means each adapter's default window.
func (s *Server) handleSignals(c echo.Context) error {
	since, err := s.parseSince(c.QueryParam("since"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	sigs := s.manager.FetchAllSignals(c.Request().Context(), since)
	return c.JSON(http.StatusOK, SignalsResponse{
		Signals:     sigs,
		Count:       len(sigs),
		Since:       since,
		GeneratedAt: s.now().UTC(),
		Counts:      CountSignals(sigs),
	})
}

func (s *Server) parseSince(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return nil, errors.New("since must be an RFC 3339 timestamp or a positive duration")
	}
	t := s.now().Add(-d)
	return &t, nil
}

// handleIntegrations returns per-source health. refresh=true bypasses the
// health cache.
func (s *Server) handleIntegrations(c echo.Context) error {
	ctx := c.Request().Context()
	refresh, _ := strconv.ParseBool(c.QueryParam("refresh"))

	var health []signal.IntegrationHealth
	if refresh {
		health = s.manager.RefreshHealth(ctx)
	} else {
		health = s.manager.GetHealth(ctx)
	}

	out := make([]IntegrationStatus, len(health))
	for i, h := range health {
		out[i] = IntegrationStatus{IntegrationHealth: h, Guidance: h.Guidance()}
	}
	return c.JSON(http.StatusOK, IntegrationsResponse{
		Integrations: out,
		CheckedAt:    s.now().UTC(),
	})
}

func (s *Server) handleCoverage(c echo.Context) error {
	return c.JSON(http.StatusOK, s.manager.AssessCoverage())
}

// handleWebhookVerify answers the subscription handshake.
func (s *Server) handleWebhookVerify(c echo.Context) error {
	challenge, ok := whatsapp.VerifyChallenge(
		c.QueryParam("hub.mode"),
		c.QueryParam("hub.verify_token"),
		c.QueryParam("hub.challenge"),
		s.config.VerifyToken.Value(),
	)
	if !ok {
		s.logger.Warn(c.Request().Context(), "webhook verification rejected")
		return echo.NewHTTPError(http.StatusForbidden, "verification failed")
	}
	return c.String(http.StatusOK, challenge)
}

// handleWebhookDeliver stores inbound messages in the inbox.
func (s *Server) handleWebhookDeliver(c echo.Context) error {
	ctx := c.Request().Context()
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}

	if s.config.AppSecret.IsSet() &&
		!whatsapp.VerifySignature(body, c.Request().Header.Get(whatsapp.SignatureHeader), s.config.AppSecret.Value()) {
		s.logger.Warn(ctx, "webhook signature mismatch")
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	}

	msgs, err := whatsapp.ParseWebhook(body)
	if err != nil {
		s.logger.Warn(ctx, "invalid webhook payload", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(msgs) > 0 {
		if err := s.inbox.Add(ctx, msgs...); err != nil {
			s.logger.Error(ctx, "webhook messages not stored", zap.Error(err), zap.Int("messages", len(msgs)))
			// A 5xx makes the Cloud API redeliver.
			return echo.NewHTTPError(http.StatusServiceUnavailable, "inbox unavailable")
		}
	}
	s.logger.Debug(ctx, "webhook delivery stored", zap.Int("messages", len(msgs)))
	return c.JSON(http.StatusOK, WebhookResponse{Received: len(msgs)})
}
