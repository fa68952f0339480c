// Package whatsapp turns inbound WhatsApp Business messages into signals.
//
// Messages arrive through the Cloud API webhook and wait in an Inbox; the
// adapter classifies what the inbox holds for the fetch window.
package whatsapp

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/signald/internal/adapters"
	"github.com/fyrsmithlabs/signald/internal/apiclient"
	"github.com/fyrsmithlabs/signald/internal/classify"
	"github.com/fyrsmithlabs/signald/internal/config"
	"github.com/fyrsmithlabs/signald/internal/signal"
)

// DefaultBaseURL is the Graph API root for the Cloud API.
const DefaultBaseURL = "https://graph.facebook.com/v19.0"

// Config holds the Cloud API credential.
type Config struct {
	Token         config.Secret
	PhoneNumberID string
	BaseURL       string
}

// Adapter reads classified customer messages from an Inbox.
type Adapter struct {
	client  *apiclient.Client
	phoneID string
	inbox   Inbox
	deps    adapters.Deps
	log     *zap.Logger
	sync    signal.SyncState
}

var _ signal.Adapter = (*Adapter)(nil)

// New validates the credential and phone number id. A nil inbox selects a
// MemoryInbox.
func New(cfg Config, inbox Inbox, deps adapters.Deps) (*Adapter, error) {
	if err := adapters.ValidateToken(signal.SourceWhatsApp, cfg.Token); err != nil {
		return nil, err
	}
	if !isNumeric(cfg.PhoneNumberID) {
		return nil, fmt.Errorf("whatsapp: %w: phone number id must be numeric", signal.ErrInvalidCredential)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if inbox == nil {
		inbox = NewMemoryInbox(0)
	}

	deps = deps.WithDefaults()
	client, err := deps.Client(cfg.BaseURL, cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: %w", err)
	}
	return &Adapter{
		client:  client,
		phoneID: cfg.PhoneNumberID,
		inbox:   inbox,
		deps:    deps,
		log:     deps.Logger.With(zap.String("source", string(signal.SourceWhatsApp))),
	}, nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Source implements signal.Adapter.
func (a *Adapter) Source() signal.Source {
	return signal.SourceWhatsApp
}

// Inbox returns the inbox the webhook handler writes to.
func (a *Adapter) Inbox() Inbox {
	return a.inbox
}

// CheckHealth reads the phone number resource.
func (a *Adapter) CheckHealth(ctx context.Context) signal.IntegrationHealth {
	var resp struct {
		ID                 string `json:"id"`
		DisplayPhoneNumber string `json:"display_phone_number"`
		VerifiedName       string `json:"verified_name"`
	}
	q := url.Values{"fields": {"display_phone_number,verified_name"}}
	if err := a.client.Get(ctx, a.phoneID, q, &resp); err != nil {
		return a.sync.Apply(signal.ErrorStatus(signal.SourceWhatsApp, fmt.Errorf("whatsapp phone number: %w", err)))
	}
	workspace := resp.VerifiedName
	if workspace == "" {
		workspace = resp.DisplayPhoneNumber
	}
	return a.sync.Apply(signal.Healthy(signal.SourceWhatsApp, workspace, nil, nil))
}

// FetchSignals classifies inbox messages received since the given time, or
// within the default window.
func (a *Adapter) FetchSignals(ctx context.Context, since *time.Time) ([]signal.Signal, error) {
	msgs, err := a.inbox.Since(ctx, a.deps.Since(since))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.log.Error("whatsapp inbox read failed", zap.Error(err))
		a.deps.Metrics.Failed(string(signal.SourceWhatsApp), "inbox")
		a.sync.Record(a.deps.Now(), err)
		return []signal.Signal{}, nil
	}

	var out []signal.Signal
	for _, m := range msgs {
		res, ok := classify.ClassifyBusiness(m.Text)
		if !ok {
			a.deps.Metrics.Dropped(string(signal.SourceWhatsApp), string(classify.BusinessNoise(m.Text)))
			continue
		}
		sender := m.Name
		if sender == "" {
			sender = m.From
		}
		out = append(out, signal.Signal{
			SourceID:   m.ID,
			Category:   res.Category,
			Confidence: res.Confidence,
			Title:      res.Title,
			Snippet:    m.Text,
			Sender:     sender,
			Timestamp:  m.Timestamp,
			URL:        "https://wa.me/" + strings.TrimPrefix(m.From, "+"),
			Channel:    "whatsapp",
			Metadata: map[string]any{
				"businessType": string(res.Type),
				"signalType":   string(res.SignalType),
				"priority":     string(res.Priority),
				"from":         m.From,
			},
		})
	}

	a.sync.Record(a.deps.Now(), nil)
	return adapters.Finish(a.deps, signal.SourceWhatsApp, out), nil
}
