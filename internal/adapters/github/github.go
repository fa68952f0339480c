// Package github turns open GitHub issues assigned to the user into
// signals.
package github

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/signald/internal/adapters"
	"github.com/fyrsmithlabs/signald/internal/classify"
	"github.com/fyrsmithlabs/signald/internal/config"
	"github.com/fyrsmithlabs/signald/internal/signal"
)

const (
	perPage  = 100
	maxPages = 3
)

// RequiredScopes applies to classic tokens, which report their scopes.
// Fine-grained tokens report none and are not checked.
var RequiredScopes = []string{"repo"}

// Config holds the GitHub credential and optional repository list.
type Config struct {
	Token config.Secret
	// BaseURL overrides the API root, for GitHub Enterprise or tests.
	BaseURL string
	// Repos limits the scan to "owner/name" entries.
	Repos []string
}

type repoRef struct {
	owner, name string
}

func (r repoRef) String() string {
	return r.owner + "/" + r.name
}

// Adapter reads issues through go-github.
type Adapter struct {
	client *gh.Client
	repos  []repoRef
	deps   adapters.Deps
	log    *zap.Logger
	sync   signal.SyncState
}

var _ signal.Adapter = (*Adapter)(nil)

// New validates the token and repository list and builds the adapter.
func New(cfg Config, deps adapters.Deps) (*Adapter, error) {
	if err := adapters.ValidateToken(signal.SourceGitHub, cfg.Token); err != nil {
		return nil, err
	}
	repos, err := parseRepos(cfg.Repos)
	if err != nil {
		return nil, err
	}

	deps = deps.WithDefaults()
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.github.com"
	}
	// apiclient supplies the oauth2 transport and per-call timeout.
	api, err := deps.Client(base, cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("github: %w", err)
	}
	client := gh.NewClient(api.HTTPClient())
	if cfg.BaseURL != "" {
		u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("github: invalid base URL: %w", err)
		}
		client.BaseURL = u
	}

	return &Adapter{
		client: client,
		repos:  repos,
		deps:   deps,
		log:    deps.Logger.With(zap.String("source", string(signal.SourceGitHub))),
	}, nil
}

func parseRepos(entries []string) ([]repoRef, error) {
	var out []repoRef
	for _, e := range entries {
		owner, name, ok := strings.Cut(strings.TrimSpace(e), "/")
		if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
			return nil, fmt.Errorf("github: invalid repository %q (want owner/name)", e)
		}
		out = append(out, repoRef{owner: owner, name: name})
	}
	return out, nil
}

// Source implements signal.Adapter.
func (a *Adapter) Source() signal.Source {
	return signal.SourceGitHub
}

// CheckHealth reads the authenticated user.
func (a *Adapter) CheckHealth(ctx context.Context) signal.IntegrationHealth {
	user, resp, err := a.client.Users.Get(ctx, "")
	if err != nil {
		return a.sync.Apply(signal.ErrorStatus(signal.SourceGitHub, err))
	}

	var granted, missing []string
	if resp != nil {
		if raw := resp.Header.Get("X-OAuth-Scopes"); raw != "" {
			for _, s := range strings.Split(raw, ",") {
				granted = append(granted, strings.TrimSpace(s))
			}
			missing = signal.MissingScopes(RequiredScopes, granted)
		}
	}
	return a.sync.Apply(signal.Healthy(signal.SourceGitHub, user.GetLogin(), granted, missing))
}

const webURL = "https://github.com"

// FetchSignals lists open issues assigned to the user, narrowed to issues
// updated since the given time when one is provided.
func (a *Adapter) FetchSignals(ctx context.Context, since *time.Time) ([]signal.Signal, error) {
	var issues []*gh.Issue
	var err error
	if len(a.repos) == 0 {
		issues, err = a.assigned(ctx, since)
	} else {
		issues, err = a.fromRepos(ctx, since)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.log.Error("github fetch failed", zap.Error(err))
		a.deps.Metrics.Failed(string(signal.SourceGitHub), "issues")
		a.sync.Record(a.deps.Now(), err)
		return []signal.Signal{}, nil
	}

	now := a.deps.Now()
	var out []signal.Signal
	for _, is := range issues {
		if is.IsPullRequest() {
			continue
		}
		if sig, ok := a.toSignal(is, now); ok {
			out = append(out, sig)
		}
	}

	a.sync.Record(now, nil)
	return adapters.Finish(a.deps, signal.SourceGitHub, out), nil
}

// assigned uses /issues, which spans every repository the user can see.
func (a *Adapter) assigned(ctx context.Context, since *time.Time) ([]*gh.Issue, error) {
	opts := &gh.IssueListOptions{
		Filter:      "assigned",
		State:       "open",
		ListOptions: gh.ListOptions{PerPage: perPage},
	}
	if since != nil {
		opts.Since = *since
	}

	var all []*gh.Issue
	for page := 0; page < maxPages; page++ {
		issues, resp, err := a.client.Issues.List(ctx, true, opts)
		if err != nil {
			return nil, fmt.Errorf("list assigned issues: %w", err)
		}
		all = append(all, issues...)
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// fromRepos scans configured repositories concurrently. One failing
// repository is skipped; all of them failing is a total failure.
func (a *Adapter) fromRepos(ctx context.Context, since *time.Time) ([]*gh.Issue, error) {
	user, _, err := a.client.Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	repos := a.repos
	if len(repos) > a.deps.MaxSubUnits {
		repos = repos[:a.deps.MaxSubUnits]
	}

	perRepo := make([][]*gh.Issue, len(repos))
	failed := make([]error, len(repos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(adapters.MaxSubUnits)
	for i, repo := range repos {
		g.Go(func() error {
			issues, err := a.repoIssues(gctx, repo, user.GetLogin(), since)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				a.log.Warn("skipping repository", zap.String("repo", repo.String()), zap.Error(err))
				a.deps.Metrics.Failed(string(signal.SourceGitHub), "repo_issues")
				failed[i] = err
				return nil
			}
			perRepo[i] = issues
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []*gh.Issue
	succeeded := 0
	for i := range repos {
		if failed[i] == nil {
			succeeded++
			all = append(all, perRepo[i]...)
		}
	}
	if succeeded == 0 && len(repos) > 0 {
		return nil, fmt.Errorf("all %d repositories failed: %w", len(repos), failed[0])
	}
	return all, nil
}

func (a *Adapter) repoIssues(ctx context.Context, repo repoRef, login string, since *time.Time) ([]*gh.Issue, error) {
	opts := &gh.IssueListByRepoOptions{
		State:       "open",
		Assignee:    login,
		ListOptions: gh.ListOptions{PerPage: perPage},
	}
	if since != nil {
		opts.Since = *since
	}

	var all []*gh.Issue
	for page := 0; page < maxPages; page++ {
		issues, resp, err := a.client.Issues.ListByRepo(ctx, repo.owner, repo.name, opts)
		if err != nil {
			return nil, err
		}
		for _, is := range issues {
			if is.Repository == nil {
				is.Repository = &gh.Repository{FullName: gh.String(repo.String())}
			}
		}
		all = append(all, issues...)
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

func (a *Adapter) toSignal(is *gh.Issue, now time.Time) (signal.Signal, bool) {
	repo := issueRepo(is)
	ct := classify.Task{
		ID:        strconv.FormatInt(is.GetID(), 10),
		Name:      is.GetTitle(),
		Notes:     is.GetBody(),
		Completed: is.GetState() == "closed",
		ProjectID: repo,
	}
	var labels []string
	for _, l := range is.Labels {
		labels = append(labels, l.GetName())
	}
	ct.Tags = labels
	if due := is.GetMilestone().GetDueOn(); !due.IsZero() {
		d := due.UTC()
		ct.Due = &d
	}

	res, ok := classify.ClassifyTask(ct, now)
	if !ok {
		a.deps.Metrics.Dropped(string(signal.SourceGitHub), "completed")
		return signal.Signal{}, false
	}

	ts := is.GetUpdatedAt().Time
	if ts.IsZero() {
		ts = is.GetCreatedAt().Time
	}
	snippet := is.GetBody()
	if strings.TrimSpace(snippet) == "" {
		snippet = is.GetTitle()
	}

	meta := map[string]any{
		"rule":   res.Rule,
		"number": is.GetNumber(),
		"repo":   repo,
	}
	if len(labels) > 0 {
		meta["labels"] = labels
	}

	return signal.Signal{
		SourceID:   repo + "#" + strconv.Itoa(is.GetNumber()),
		Category:   res.Category,
		Confidence: res.Confidence,
		Title:      is.GetTitle(),
		Snippet:    snippet,
		Owner:      is.GetAssignee().GetLogin(),
		OwnerEmail: is.GetAssignee().GetEmail(),
		Sender:     is.GetUser().GetLogin(),
		Timestamp:  ts,
		Deadline:   ct.Due,
		URL:        IssueURL(is),
		Channel:    repo,
		Metadata:   meta,
	}, true
}

// issueRepo is owner/name for the issue's repository. Responses without an
// embedded repository still carry repository_url.
func issueRepo(is *gh.Issue) string {
	if name := is.GetRepository().GetFullName(); name != "" {
		return name
	}
	raw := is.GetRepositoryURL()
	if i := strings.Index(raw, "/repos/"); i >= 0 {
		return strings.Trim(raw[i+len("/repos/"):], "/")
	}
	return ""
}

// IssueURL is the browser link for an issue. html_url is used when present,
// otherwise the link is built from the repository and number.
func IssueURL(is *gh.Issue) string {
	if u := is.GetHTMLURL(); u != "" {
		return u
	}
	repo := issueRepo(is)
	if repo == "" || is.GetNumber() == 0 {
		return webURL + "/issues/assigned"
	}
	kind := "issues"
	if is.IsPullRequest() {
		kind = "pull"
	}
	return webURL + "/" + repo + "/" + kind + "/" + strconv.Itoa(is.GetNumber())
}
