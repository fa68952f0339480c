package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries the HMAC of a webhook delivery.
const SignatureHeader = "X-Hub-Signature-256"

// webhookPayload is the subset of the Cloud API notification we read.
type webhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Field string       `json:"field"`
			Value webhookValue `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type webhookValue struct {
	Contacts []struct {
		WaID    string `json:"wa_id"`
		Profile struct {
			Name string `json:"name"`
		} `json:"profile"`
	} `json:"contacts"`
	Messages []struct {
		ID        string `json:"id"`
		From      string `json:"from"`
		Timestamp string `json:"timestamp"`
		Type      string `json:"type"`
		Text      struct {
			Body string `json:"body"`
		} `json:"text"`
	} `json:"messages"`
}

// ParseWebhook extracts text messages from a webhook notification. Status
// updates and non-text messages are ignored.
func ParseWebhook(body []byte) ([]Message, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}
	if p.Object != "" && p.Object != "whatsapp_business_account" {
		return nil, fmt.Errorf("unexpected webhook object %q", p.Object)
	}

	var out []Message
	for _, e := range p.Entry {
		for _, c := range e.Changes {
			names := make(map[string]string, len(c.Value.Contacts))
			for _, ct := range c.Value.Contacts {
				names[ct.WaID] = ct.Profile.Name
			}
			for _, m := range c.Value.Messages {
				if m.Type != "text" || m.Text.Body == "" {
					continue
				}
				secs, err := strconv.ParseInt(m.Timestamp, 10, 64)
				if err != nil {
					return nil, fmt.Errorf("message %s: invalid timestamp %q", m.ID, m.Timestamp)
				}
				out = append(out, Message{
					ID:        m.ID,
					From:      m.From,
					Name:      names[m.From],
					Text:      m.Text.Body,
					Timestamp: time.Unix(secs, 0).UTC(),
				})
			}
		}
	}
	return out, nil
}

// VerifyChallenge answers the subscription handshake. It returns the
// challenge to echo and whether the request is valid.
func VerifyChallenge(mode, token, challenge, expected string) (string, bool) {
	if mode != "subscribe" || expected == "" || token != expected {
		return "", false
	}
	return challenge, true
}

// VerifySignature checks a delivery against its X-Hub-Signature-256 value,
// which is "sha256=" followed by the hex HMAC-SHA256 of the raw body keyed
// with the app secret.
func VerifySignature(body []byte, header, appSecret string) bool {
	hexSum, ok := strings.CutPrefix(header, "sha256=")
	if !ok || appSecret == "" {
		return false
	}
	got, err := hex.DecodeString(hexSum)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
