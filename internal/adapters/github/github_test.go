package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/signald/internal/adapters"
	"github.com/fyrsmithlabs/signald/internal/config"
	"github.com/fyrsmithlabs/signald/internal/signal"
)

var testNow = time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)

const apiIssues = `[
  {"id":1,"number":12,"title":"Blocked on upstream API change","state":"open",
   "html_url":"https://github.com/acme/api/issues/12","updated_at":"2025-06-11T10:00:00Z",
   "repository":{"full_name":"acme/api"},"labels":[{"name":"bug"}],
   "assignee":{"login":"sam"},"user":{"login":"ana"}},
  {"id":2,"number":13,"title":"Q3 roadmap","state":"open",
   "html_url":"https://github.com/acme/api/issues/13","updated_at":"2025-06-11T09:00:00Z",
   "repository":{"full_name":"acme/api"},"milestone":{"due_on":"2025-06-01T07:00:00Z"}},
  {"id":3,"number":14,"title":"Add retries","state":"open",
   "html_url":"https://github.com/acme/api/pull/14","updated_at":"2025-06-11T11:00:00Z",
   "pull_request":{"url":"https://api.github.com/repos/acme/api/pulls/14"}}
]`

type fakeGitHub struct {
	userStatus int
	scopes     string
	since      string
	assignee   string
}

func (f *fakeGitHub) serve(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ghp_test", r.Header.Get("Authorization"))
		if f.userStatus != 0 {
			w.WriteHeader(f.userStatus)
			_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
			return
		}
		if f.scopes != "" {
			w.Header().Set("X-OAuth-Scopes", f.scopes)
		}
		_, _ = w.Write([]byte(`{"login":"sam"}`))
	})
	mux.HandleFunc("/issues", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "assigned", r.URL.Query().Get("filter"))
		f.since = r.URL.Query().Get("since")
		_, _ = w.Write([]byte(apiIssues))
	})
	mux.HandleFunc("/repos/acme/api/issues", func(w http.ResponseWriter, r *http.Request) {
		f.assignee = r.URL.Query().Get("assignee")
		_, _ = w.Write([]byte(apiIssues))
	})
	mux.HandleFunc("/repos/acme/web/issues", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Server Error"}`, http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestAdapter(t *testing.T, f *fakeGitHub, repos ...string) *Adapter {
	t.Helper()
	srv := f.serve(t)
	a, err := New(Config{Token: config.Secret("ghp_test"), BaseURL: srv.URL, Repos: repos}, adapters.Deps{
		HTTPClient:    srv.Client(),
		Now:           func() time.Time { return testNow },
		RatePerSecond: 1000,
	})
	require.NoError(t, err)
	return a
}

func TestFetchSignals_Assigned(t *testing.T) {
	f := &fakeGitHub{}
	a := newTestAdapter(t, f)

	since := testNow.Add(-24 * time.Hour)
	sigs, err := a.FetchSignals(context.Background(), &since)
	require.NoError(t, err)
	require.Len(t, sigs, 2)
	assert.Equal(t, "2025-06-10T12:00:00Z", f.since)

	blocker := sigs[0]
	assert.Equal(t, "github-acme/api#12", blocker.ID)
	assert.Equal(t, signal.CategoryBlocker, blocker.Category)
	assert.Equal(t, 0.90, blocker.Confidence)
	assert.Equal(t, "sam", blocker.Owner)
	assert.Equal(t, "ana", blocker.Sender)
	assert.Equal(t, "acme/api", blocker.Channel)
	assert.Equal(t, "https://github.com/acme/api/issues/12", blocker.URL)
	assert.Equal(t, []string{"bug"}, blocker.Metadata["labels"])

	overdue := sigs[1]
	assert.Equal(t, signal.CategoryDeadline, overdue.Category)
	assert.Equal(t, 1.0, overdue.Confidence)
	require.NotNil(t, overdue.Deadline)
}

func TestIssueURL(t *testing.T) {
	tests := []struct {
		name  string
		issue *gh.Issue
		want  string
	}{
		{
			name:  "html url wins",
			issue: &gh.Issue{HTMLURL: gh.String("https://github.com/acme/api/issues/7"), Number: gh.Int(99)},
			want:  "https://github.com/acme/api/issues/7",
		},
		{
			name:  "built from repository",
			issue: &gh.Issue{Number: gh.Int(42), Repository: &gh.Repository{FullName: gh.String("acme/api")}},
			want:  "https://github.com/acme/api/issues/42",
		},
		{
			name:  "built from repository url",
			issue: &gh.Issue{Number: gh.Int(5), RepositoryURL: gh.String("https://api.github.com/repos/acme/web")},
			want:  "https://github.com/acme/web/issues/5",
		},
		{
			name: "pull request",
			issue: &gh.Issue{Number: gh.Int(8), Repository: &gh.Repository{FullName: gh.String("acme/api")},
				PullRequestLinks: &gh.PullRequestLinks{URL: gh.String("https://api.github.com/repos/acme/api/pulls/8")}},
			want: "https://github.com/acme/api/pull/8",
		},
		{
			name:  "nothing to build from",
			issue: &gh.Issue{},
			want:  "https://github.com/issues/assigned",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IssueURL(tt.issue))
		})
	}
}

func TestFetchSignals_MissingHTMLURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/issues", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":9,"number":77,"title":"Blocked on vendor SDK","state":"open",
		  "updated_at":"2025-06-11T10:00:00Z","repository_url":"https://api.github.com/repos/acme/sdk"}]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	a, err := New(Config{Token: config.Secret("ghp_test"), BaseURL: srv.URL}, adapters.Deps{
		HTTPClient:    srv.Client(),
		Now:           func() time.Time { return testNow },
		RatePerSecond: 1000,
	})
	require.NoError(t, err)

	sigs, err := a.FetchSignals(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, "https://github.com/acme/sdk/issues/77", sigs[0].URL)
	assert.Equal(t, "acme/sdk", sigs[0].Channel)
	assert.Equal(t, "github-acme/sdk#77", sigs[0].ID)
}

func TestFetchSignals_ReposSkipFailures(t *testing.T) {
	f := &fakeGitHub{}
	a := newTestAdapter(t, f, "acme/api", "acme/web")

	sigs, err := a.FetchSignals(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, sigs, 2)
	assert.Equal(t, "sam", f.assignee)

	h := a.CheckHealth(context.Background())
	assert.Empty(t, h.LastSyncError)
}

func TestFetchSignals_AllReposFail(t *testing.T) {
	a := newTestAdapter(t, &fakeGitHub{}, "acme/web")

	sigs, err := a.FetchSignals(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, sigs)

	h := a.CheckHealth(context.Background())
	assert.Contains(t, h.LastSyncError, "all 1 repositories failed")
}

func TestCheckHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		h := newTestAdapter(t, &fakeGitHub{scopes: "repo, read:org"}).CheckHealth(context.Background())
		assert.Equal(t, signal.StatusHealthy, h.Status)
		assert.Equal(t, "sam", h.Workspace)
		assert.Equal(t, []string{"repo", "read:org"}, h.Scopes)
	})
	t.Run("missing repo scope", func(t *testing.T) {
		h := newTestAdapter(t, &fakeGitHub{scopes: "read:user"}).CheckHealth(context.Background())
		assert.Equal(t, signal.StatusDegraded, h.Status)
		assert.Equal(t, []string{"repo"}, h.MissingScopes)
		assert.Equal(t, "grant additional permissions", h.Guidance())
	})
	t.Run("bad credentials", func(t *testing.T) {
		h := newTestAdapter(t, &fakeGitHub{userStatus: http.StatusUnauthorized}).CheckHealth(context.Background())
		assert.Equal(t, signal.StatusError, h.Status)
		assert.False(t, h.Connected)
		assert.True(t, h.NeedsReauth)
	})
}

func TestParseRepos(t *testing.T) {
	repos, err := parseRepos([]string{"acme/api", " acme/web "})
	require.NoError(t, err)
	assert.Equal(t, []repoRef{{"acme", "api"}, {"acme", "web"}}, repos)

	for _, bad := range []string{"acme", "/api", "acme/", "a/b/c"} {
		_, err := parseRepos([]string{bad})
		assert.Error(t, err, bad)
	}
}
