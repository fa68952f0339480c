// Package linear turns open Linear issues assigned to the viewer into
// signals.
package linear

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/signald/internal/adapters"
	"github.com/fyrsmithlabs/signald/internal/apiclient"
	"github.com/fyrsmithlabs/signald/internal/classify"
	"github.com/fyrsmithlabs/signald/internal/config"
	"github.com/fyrsmithlabs/signald/internal/signal"
)

// DefaultBaseURL is the Linear API root; queries go to /graphql.
const DefaultBaseURL = "https://api.linear.app"

const viewerQuery = `query Viewer {
  viewer { id name email organization { name } }
}`

const issuesQuery = `query AssignedIssues($filter: IssueFilter, $after: String) {
  viewer {
    organization { urlKey }
    assignedIssues(filter: $filter, first: 100, after: $after) {
      nodes {
        id identifier title description url priority dueDate createdAt updatedAt
        state { type }
        labels { nodes { name } }
        team { key name }
        project { id name }
        assignee { name email }
      }
      pageInfo { hasNextPage endCursor }
    }
  }
}`

const maxPages = 5

const appURL = "https://linear.app"

// Config holds the Linear credential.
type Config struct {
	Token   config.Secret
	BaseURL string
}

// Adapter reads issues assigned to the authenticated user.
type Adapter struct {
	client *apiclient.Client
	deps   adapters.Deps
	log    *zap.Logger
	sync   signal.SyncState
}

var _ signal.Adapter = (*Adapter)(nil)

// New validates the token and builds the adapter.
func New(cfg Config, deps adapters.Deps) (*Adapter, error) {
	if err := adapters.ValidateToken(signal.SourceLinear, cfg.Token); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	deps = deps.WithDefaults()
	client, err := deps.Client(cfg.BaseURL, cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("linear: %w", err)
	}
	return &Adapter{
		client: client,
		deps:   deps,
		log:    deps.Logger.With(zap.String("source", string(signal.SourceLinear))),
	}, nil
}

// Source implements signal.Adapter.
func (a *Adapter) Source() signal.Source {
	return signal.SourceLinear
}

// CheckHealth queries the viewer.
func (a *Adapter) CheckHealth(ctx context.Context) signal.IntegrationHealth {
	var data struct {
		Viewer viewer `json:"viewer"`
	}
	if err := a.query(ctx, viewerQuery, nil, &data); err != nil {
		return a.sync.Apply(signal.ErrorStatus(signal.SourceLinear, err))
	}
	return a.sync.Apply(signal.Healthy(signal.SourceLinear, data.Viewer.Organization.Name, nil, nil))
}

// FetchSignals returns open issues assigned to the viewer. When since is
// given only issues updated at or after it are requested.
func (a *Adapter) FetchSignals(ctx context.Context, since *time.Time) ([]signal.Signal, error) {
	filter := map[string]any{
		"completedAt": map[string]any{"null": true},
		"canceledAt":  map[string]any{"null": true},
	}
	if since != nil {
		filter["updatedAt"] = map[string]any{"gte": since.UTC().Format(time.RFC3339)}
	}

	var issues []issue
	var orgKey string
	var after *string
	for page := 0; page < maxPages; page++ {
		var data issuesData
		vars := map[string]any{"filter": filter, "after": after}
		if err := a.query(ctx, issuesQuery, vars, &data); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if len(issues) == 0 {
				a.log.Error("linear fetch failed", zap.Error(err))
				a.deps.Metrics.Failed(string(signal.SourceLinear), "issues")
				a.sync.Record(a.deps.Now(), err)
				return []signal.Signal{}, nil
			}
			a.log.Warn("stopping pagination early", zap.Int("page", page), zap.Error(err))
			a.deps.Metrics.Failed(string(signal.SourceLinear), "issues")
			break
		}
		if k := data.Viewer.Organization.URLKey; k != "" {
			orgKey = k
		}
		conn := data.Viewer.AssignedIssues
		issues = append(issues, conn.Nodes...)
		if !conn.PageInfo.HasNextPage || conn.PageInfo.EndCursor == "" {
			break
		}
		cursor := conn.PageInfo.EndCursor
		after = &cursor
	}

	now := a.deps.Now()
	var out []signal.Signal
	for _, is := range issues {
		if sig, ok := a.toSignal(is, orgKey, now); ok {
			out = append(out, sig)
		}
	}

	a.sync.Record(now, nil)
	return adapters.Finish(a.deps, signal.SourceLinear, out), nil
}

func (a *Adapter) toSignal(is issue, orgKey string, now time.Time) (signal.Signal, bool) {
	ct := is.classifyTask()
	res, ok := classify.ClassifyTask(ct, now)
	if !ok {
		a.deps.Metrics.Dropped(string(signal.SourceLinear), "completed")
		return signal.Signal{}, false
	}

	ts := is.UpdatedAt
	if ts.IsZero() {
		ts = is.CreatedAt
	}
	snippet := is.Description
	if strings.TrimSpace(snippet) == "" {
		snippet = is.Title
	}

	return signal.Signal{
		SourceID:   is.ID,
		Category:   res.Category,
		Confidence: res.Confidence,
		Title:      is.Identifier + " " + is.Title,
		Snippet:    snippet,
		Owner:      is.Assignee.Name,
		OwnerEmail: is.Assignee.Email,
		Timestamp:  ts,
		Deadline:   ct.Due,
		URL:        IssueURL(is.URL, orgKey, is.Identifier),
		Channel:    is.Team.Name,
		Metadata: map[string]any{
			"rule":       res.Rule,
			"identifier": is.Identifier,
			"priority":   is.Priority,
			"team":       is.Team.Key,
		},
	}, true
}

// IssueURL is the browser link for an issue. The API's url is used when
// present, otherwise it is built from the workspace key and identifier.
func IssueURL(apiURL, orgKey, identifier string) string {
	if apiURL != "" {
		return apiURL
	}
	if orgKey == "" || identifier == "" {
		return appURL
	}
	return appURL + "/" + orgKey + "/issue/" + identifier
}

// query posts a GraphQL document. GraphQL-level errors arrive with a 200
// status and are returned as errors.
func (a *Adapter) query(ctx context.Context, doc string, vars map[string]any, out any) error {
	req := graphQLRequest{Query: doc, Variables: vars}
	var resp graphQLResponse
	resp.Data = out
	if err := a.client.Post(ctx, "graphql", req, &resp); err != nil {
		return fmt.Errorf("linear graphql: %w", err)
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msg := e.Message
			if e.Extensions.Code != "" {
				msg = e.Extensions.Code + ": " + msg
			}
			msgs = append(msgs, msg)
		}
		return errors.New("linear graphql: " + strings.Join(msgs, "; "))
	}
	return nil
}
