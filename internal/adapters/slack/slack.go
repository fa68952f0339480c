// Package slack turns recent Slack channel messages into signals.
package slack

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/signald/internal/adapters"
	"github.com/fyrsmithlabs/signald/internal/apiclient"
	"github.com/fyrsmithlabs/signald/internal/classify"
	"github.com/fyrsmithlabs/signald/internal/config"
	"github.com/fyrsmithlabs/signald/internal/signal"
)

// DefaultBaseURL is the Slack Web API root.
const DefaultBaseURL = "https://slack.com/api"

const historyLimit = 100

// RequiredScopes are the OAuth scopes the adapter reads with.
var RequiredScopes = []string{"channels:history", "channels:read", "users:read"}

// Config holds the Slack credential.
type Config struct {
	Token   config.Secret
	BaseURL string
}

// Adapter reads Slack channels the token's user belongs to.
type Adapter struct {
	client *apiclient.Client
	deps   adapters.Deps
	log    *zap.Logger
	sync   signal.SyncState
}

var _ signal.Adapter = (*Adapter)(nil)

// New validates the token and builds the adapter. No request is made.
func New(cfg Config, deps adapters.Deps) (*Adapter, error) {
	if err := adapters.ValidateToken(signal.SourceSlack, cfg.Token); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(cfg.Token.Value(), "xox") {
		return nil, fmt.Errorf("slack: %w: token must start with xox", signal.ErrInvalidCredential)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	deps = deps.WithDefaults()
	client, err := deps.Client(cfg.BaseURL, cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("slack: %w", err)
	}
	return &Adapter{
		client: client,
		deps:   deps,
		log:    deps.Logger.With(zap.String("source", string(signal.SourceSlack))),
	}, nil
}

// Source implements signal.Adapter.
func (a *Adapter) Source() signal.Source {
	return signal.SourceSlack
}

// CheckHealth calls auth.test and compares the granted scopes, reported in
// the X-OAuth-Scopes header, with RequiredScopes.
func (a *Adapter) CheckHealth(ctx context.Context) signal.IntegrationHealth {
	var resp authTestResponse
	header, err := a.call(ctx, "auth.test", nil, &resp)
	if err != nil {
		return a.sync.Apply(signal.ErrorStatus(signal.SourceSlack, err))
	}

	var granted, missing []string
	if raw := header.Get("X-OAuth-Scopes"); raw != "" {
		granted = splitScopes(raw)
		missing = signal.MissingScopes(RequiredScopes, granted)
	}
	return a.sync.Apply(signal.Healthy(signal.SourceSlack, resp.Team, granted, missing))
}

// FetchSignals scans up to MaxSubUnits member channels for messages newer
// than since and classifies them.
func (a *Adapter) FetchSignals(ctx context.Context, since *time.Time) ([]signal.Signal, error) {
	oldest := a.deps.Since(since)

	var auth authTestResponse
	if _, err := a.call(ctx, "auth.test", nil, &auth); err != nil {
		return a.fail(ctx, "auth", err)
	}

	channels, err := a.channels(ctx)
	if err != nil {
		return a.fail(ctx, "channels", err)
	}

	histories := make([][]message, len(channels))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(adapters.MaxSubUnits)
	for i, ch := range channels {
		g.Go(func() error {
			msgs, err := a.history(gctx, ch.ID, oldest)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				a.log.Warn("skipping channel", zap.String("channel", ch.Name), zap.Error(err))
				a.deps.Metrics.Failed(string(signal.SourceSlack), "history")
				return nil
			}
			histories[i] = msgs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	users := make(map[string]userInfo)
	var out []signal.Signal
	for i, ch := range channels {
		for _, m := range histories[i] {
			sig, ok := a.toSignal(ctx, auth.URL, ch, m, users)
			if ok {
				out = append(out, sig)
			}
		}
	}

	a.sync.Record(a.deps.Now(), nil)
	return adapters.Finish(a.deps, signal.SourceSlack, out), nil
}

// fail records a total upstream failure. Cancellation is the only error
// surfaced to the caller.
func (a *Adapter) fail(ctx context.Context, op string, err error) ([]signal.Signal, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	a.log.Error("slack fetch failed", zap.String("operation", op), zap.Error(err))
	a.deps.Metrics.Failed(string(signal.SourceSlack), op)
	a.sync.Record(a.deps.Now(), err)
	return []signal.Signal{}, nil
}

func (a *Adapter) toSignal(ctx context.Context, teamURL string, ch channel, m message, users map[string]userInfo) (signal.Signal, bool) {
	if m.Subtype != "" || m.BotID != "" || strings.TrimSpace(m.Text) == "" {
		return signal.Signal{}, false
	}

	res, ok := classify.ClassifyChat(m.Text)
	if !ok {
		a.deps.Metrics.Dropped(string(signal.SourceSlack), string(classify.Noise(m.Text)))
		return signal.Signal{}, false
	}
	if res.Confidence < classify.ChatConfidenceThreshold {
		a.deps.Metrics.Dropped(string(signal.SourceSlack), "low_confidence")
		return signal.Signal{}, false
	}

	ts, err := parseTS(m.TS)
	if err != nil {
		a.log.Debug("skipping message with bad ts", zap.String("ts", m.TS))
		return signal.Signal{}, false
	}

	sender := a.user(ctx, m.User, users)
	return signal.Signal{
		SourceID:    ch.ID + "-" + m.TS,
		Category:    res.Category,
		Confidence:  res.Confidence,
		Title:       classify.ExtractTitle(m.Text, signal.MaxTitleLen),
		Snippet:     classify.StripMarkup(m.Text),
		Sender:      sender.displayName(m.User),
		SenderEmail: sender.Profile.Email,
		Timestamp:   ts,
		URL:         permalink(teamURL, ch.ID, m.TS),
		Channel:     "#" + ch.Name,
		Metadata: map[string]any{
			"rule":      res.Rule,
			"channelId": ch.ID,
			"ts":        m.TS,
		},
	}, true
}

// user resolves a user id through the per-fetch cache. Lookup failures are
// cached too so a broken user is asked once.
func (a *Adapter) user(ctx context.Context, id string, cache map[string]userInfo) userInfo {
	if id == "" {
		return userInfo{}
	}
	if u, ok := cache[id]; ok {
		return u
	}
	var resp usersInfoResponse
	if _, err := a.call(ctx, "users.info", url.Values{"user": {id}}, &resp); err != nil {
		a.log.Debug("user lookup failed", zap.String("user", id), zap.Error(err))
		a.deps.Metrics.Failed(string(signal.SourceSlack), "users.info")
		resp.User = userInfo{}
	}
	cache[id] = resp.User
	return resp.User
}

func (a *Adapter) channels(ctx context.Context) ([]channel, error) {
	q := url.Values{
		"types":            {"public_channel,private_channel"},
		"exclude_archived": {"true"},
		"limit":            {"200"},
	}
	var resp conversationsListResponse
	if _, err := a.call(ctx, "conversations.list", q, &resp); err != nil {
		return nil, err
	}

	var member []channel
	for _, ch := range resp.Channels {
		if !ch.IsMember {
			continue
		}
		member = append(member, ch)
		if len(member) == a.deps.MaxSubUnits {
			break
		}
	}
	return member, nil
}

func (a *Adapter) history(ctx context.Context, channelID string, oldest time.Time) ([]message, error) {
	q := url.Values{
		"channel": {channelID},
		"oldest":    {strconv.FormatInt(oldest.Unix(), 10)},
		"inclusive": {"true"},
		"limit":     {strconv.Itoa(historyLimit)},
	}
	var resp historyResponse
	if _, err := a.call(ctx, "conversations.history", q, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// call performs a Web API GET. Slack reports failures in the body with a
// 200 status, so ok=false becomes an error carrying Slack's error code.
func (a *Adapter) call(ctx context.Context, method string, q url.Values, out envelope) (headers, error) {
	h, err := a.client.GetWithHeader(ctx, method, q, out)
	if err != nil {
		return nil, fmt.Errorf("slack %s: %w", method, err)
	}
	if ok, code := out.status(); !ok {
		return nil, fmt.Errorf("slack %s: %s", method, code)
	}
	return h, nil
}

func splitScopes(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseTS converts a Slack "seconds.micros" timestamp.
func parseTS(ts string) (time.Time, error) {
	secs, frac, _ := strings.Cut(ts, ".")
	s, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	var micros int64
	if frac != "" {
		if len(frac) > 6 {
			frac = frac[:6]
		}
		frac += strings.Repeat("0", 6-len(frac))
		if micros, err = strconv.ParseInt(frac, 10, 64); err != nil {
			return time.Time{}, err
		}
	}
	return time.Unix(s, micros*1000).UTC(), nil
}

// permalink builds the archive link Slack clients resolve without an API
// call. teamURL comes from auth.test.
func permalink(teamURL, channelID, ts string) string {
	base := strings.TrimRight(teamURL, "/")
	if base == "" {
		base = "https://slack.com"
	}
	return base + "/archives/" + channelID + "/p" + strings.ReplaceAll(ts, ".", "")
}
