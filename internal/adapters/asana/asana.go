// Package asana turns incomplete Asana tasks assigned to the user into
// signals.
package asana

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

// DefaultBaseURL is the Asana REST API root.
const DefaultBaseURL = "https://app.asana.com/api/1.0"

const (
	appURL   = "https://app.asana.com/0"
	pageSize = 100
	maxPages = 5
)

var taskFields = strings.Join([]string{
	"name", "notes", "completed", "due_on", "due_at", "tags.name",
	"memberships.project.gid", "memberships.project.name",
	"assignee.name", "assignee.email", "created_at", "modified_at",
}, ",")

// Config holds the Asana personal access token.
type Config struct {
	Token   config.Secret
	BaseURL string
}

// Adapter reads tasks across the user's workspaces.
type Adapter struct {
	client *apiclient.Client
	deps   adapters.Deps
	log    *zap.Logger
	sync   signal.SyncState
}

var _ signal.Adapter = (*Adapter)(nil)

// New validates the token and builds the adapter.
func New(cfg Config, deps adapters.Deps) (*Adapter, error) {
	if err := adapters.ValidateToken(signal.SourceAsana, cfg.Token); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	deps = deps.WithDefaults()
	client, err := deps.Client(cfg.BaseURL, cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("asana: %w", err)
	}
	return &Adapter{
		client: client,
		deps:   deps,
		log:    deps.Logger.With(zap.String("source", string(signal.SourceAsana))),
	}, nil
}

// Source implements signal.Adapter.
func (a *Adapter) Source() signal.Source {
	return signal.SourceAsana
}

// CheckHealth reads /users/me. Personal access tokens carry no scopes, so a
// working token is always healthy.
func (a *Adapter) CheckHealth(ctx context.Context) signal.IntegrationHealth {
	me, err := a.me(ctx)
	if err != nil {
		return a.sync.Apply(signal.ErrorStatus(signal.SourceAsana, err))
	}
	var workspace string
	if len(me.Workspaces) > 0 {
		workspace = me.Workspaces[0].Name
	}
	return a.sync.Apply(signal.Healthy(signal.SourceAsana, workspace, nil, nil))
}

// FetchSignals returns incomplete tasks assigned to the user. When since is
// set only tasks modified at or after it are returned.
func (a *Adapter) FetchSignals(ctx context.Context, since *time.Time) ([]signal.Signal, error) {
	me, err := a.me(ctx)
	if err != nil {
		return a.fail(ctx, "users.me", err)
	}

	workspaces := me.Workspaces
	if len(workspaces) > a.deps.MaxSubUnits {
		workspaces = workspaces[:a.deps.MaxSubUnits]
	}

	perWorkspace := make([][]task, len(workspaces))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(adapters.MaxSubUnits)
	for i, ws := range workspaces {
		g.Go(func() error {
			tasks, err := a.tasks(gctx, ws.GID, since)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				a.log.Warn("skipping workspace", zap.String("workspace", ws.Name), zap.Error(err))
				a.deps.Metrics.Failed(string(signal.SourceAsana), "tasks")
				return nil
			}
			perWorkspace[i] = tasks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := a.deps.Now()
	var out []signal.Signal
	for i, ws := range workspaces {
		for _, t := range perWorkspace[i] {
			sig, ok := a.toSignal(ws, t, now)
			if !ok {
				continue
			}
			if since != nil && sig.Timestamp.Before(*since) {
				a.deps.Metrics.Dropped(string(signal.SourceAsana), "stale")
				continue
			}
			out = append(out, sig)
		}
	}

	a.sync.Record(now, nil)
	return adapters.Finish(a.deps, signal.SourceAsana, out), nil
}

func (a *Adapter) fail(ctx context.Context, op string, err error) ([]signal.Signal, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	a.log.Error("asana fetch failed", zap.String("operation", op), zap.Error(err))
	a.deps.Metrics.Failed(string(signal.SourceAsana), op)
	a.sync.Record(a.deps.Now(), err)
	return []signal.Signal{}, nil
}

func (a *Adapter) toSignal(ws workspace, t task, now time.Time) (signal.Signal, bool) {
	ct := t.classifyTask()
	res, ok := classify.ClassifyTask(ct, now)
	if !ok {
		a.deps.Metrics.Dropped(string(signal.SourceAsana), "completed")
		return signal.Signal{}, false
	}

	ts := t.ModifiedAt
	if ts.IsZero() {
		ts = t.CreatedAt
	}
	if ts.IsZero() {
		ts = now
	}

	snippet := t.Notes
	if strings.TrimSpace(snippet) == "" {
		snippet = t.Name
	}

	meta := map[string]any{
		"rule":      res.Rule,
		"workspace": ws.Name,
	}
	if ct.ProjectID != "" {
		meta["projectId"] = ct.ProjectID
	}
	if len(ct.Tags) > 0 {
		meta["tags"] = ct.Tags
	}

	return signal.Signal{
		SourceID:   t.GID,
		Category:   res.Category,
		Confidence: res.Confidence,
		Title:      t.Name,
		Snippet:    snippet,
		Owner:      t.Assignee.Name,
		OwnerEmail: t.Assignee.Email,
		Timestamp:  ts,
		Deadline:   ct.Due,
		URL:        TaskURL(ct.ProjectID, t.GID),
		Channel:    t.projectName(),
		Metadata:   meta,
	}, true
}

// TaskURL is the deep link for a task. Tasks outside any project use the
// 0 placeholder, which Asana resolves.
func TaskURL(projectID, taskID string) string {
	if projectID == "" {
		projectID = "0"
	}
	return appURL + "/" + projectID + "/" + taskID
}

func (a *Adapter) me(ctx context.Context) (user, error) {
	var resp struct {
		Data user `json:"data"`
	}
	q := url.Values{"opt_fields": {"name,email,workspaces.name"}}
	if err := a.client.Get(ctx, "users/me", q, &resp); err != nil {
		return user{}, fmt.Errorf("asana users/me: %w", err)
	}
	return resp.Data, nil
}

// tasks pages through incomplete tasks assigned to the user in one
// workspace, optionally limited to those modified since a point in time.
func (a *Adapter) tasks(ctx context.Context, workspaceID string, since *time.Time) ([]task, error) {
	q := url.Values{
		"assignee":        {"me"},
		"workspace":       {workspaceID},
		"completed_since": {"now"},
		"limit":           {strconv.Itoa(pageSize)},
		"opt_fields":      {taskFields},
	}
	if since != nil {
		q.Set("modified_since", since.UTC().Format(time.RFC3339))
	}

	var all []task
	for page := 0; page < maxPages; page++ {
		var resp taskPage
		if err := a.client.Get(ctx, "tasks", q, &resp); err != nil {
			return nil, fmt.Errorf("asana tasks: %w", err)
		}
		all = append(all, resp.Data...)
		if resp.NextPage == nil || resp.NextPage.Offset == "" {
			break
		}
		q.Set("offset", resp.NextPage.Offset)
	}
	return all, nil
}
