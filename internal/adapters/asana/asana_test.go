package asana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/signald/internal/adapters"
	"github.com/fyrsmithlabs/signald/internal/apiclient"
	"github.com/fyrsmithlabs/signald/internal/config"
	"github.com/fyrsmithlabs/signald/internal/signal"
)

var testNow = time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)

func modified(d time.Duration) string {
	return testNow.Add(-d).Format(time.RFC3339)
}

func newServer(t *testing.T, meStatus int, inspect ...func(url.Values)) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(v))
	}
	mux.HandleFunc("/users/me", func(w http.ResponseWriter, r *http.Request) {
		if meStatus != http.StatusOK {
			http.Error(w, `{"errors":[{"message":"Not Authorized"}]}`, meStatus)
			return
		}
		write(w, map[string]any{"data": map[string]any{
			"gid": "1", "name": "Sam",
			"workspaces": []map[string]any{{"gid": "W1", "name": "Acme"}, {"gid": "W2", "name": "Side"}},
		}})
	})
	mux.HandleFunc("/tasks", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		for _, fn := range inspect {
			fn(q)
		}
		assert.Equal(t, "me", q.Get("assignee"))
		assert.Equal(t, "now", q.Get("completed_since"))
		switch {
		case q.Get("workspace") == "W2":
			http.Error(w, "boom", http.StatusInternalServerError)
		case q.Get("offset") == "":
			write(w, map[string]any{
				"data": []map[string]any{
					{"gid": "101", "name": "Blocked: waiting on legal", "modified_at": modified(5 * time.Hour),
						"memberships": []map[string]any{{"project": map[string]any{"gid": "P1", "name": "Launch"}}}},
					{"gid": "102", "name": "Ship Q3 plan", "due_on": "2025-06-10", "modified_at": modified(4 * time.Hour),
						"assignee": map[string]any{"name": "Sam", "email": "sam@acme.test"},
						"memberships": []map[string]any{{"project": map[string]any{"gid": "P1", "name": "Launch"}}}},
					{"gid": "103", "name": "Review contract", "due_on": "2025-06-12", "modified_at": modified(3 * time.Hour)},
					{"gid": "104", "name": "Done already", "completed": true, "modified_at": modified(time.Hour)},
				},
				"next_page": map[string]any{"offset": "abc"},
			})
		default:
			assert.Equal(t, "abc", q.Get("offset"))
			write(w, map[string]any{
				"data": []map[string]any{
					{"gid": "105", "name": "Plain task", "notes": "Some background", "modified_at": modified(2 * time.Hour)},
				},
				"next_page": nil,
			})
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestAdapter(t *testing.T, srv *httptest.Server) *Adapter {
	t.Helper()
	a, err := New(Config{Token: config.Secret("1/123:abc"), BaseURL: srv.URL}, adapters.Deps{
		HTTPClient:    srv.Client(),
		Now:           func() time.Time { return testNow },
		RatePerSecond: 1000,
		Retry:         apiclient.RetryConfig{MaxRetries: -1},
	})
	require.NoError(t, err)
	return a
}

func TestFetchSignals(t *testing.T) {
	a := newTestAdapter(t, newServer(t, http.StatusOK))

	sigs, err := a.FetchSignals(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, sigs, 4)

	byID := map[string]signal.Signal{}
	for _, s := range sigs {
		byID[s.SourceID] = s
	}

	plain := byID["105"]
	assert.Equal(t, signal.CategoryUpdate, plain.Category)
	assert.Equal(t, 0.50, plain.Confidence)
	assert.Equal(t, "https://app.asana.com/0/0/105", plain.URL)
	assert.Equal(t, "Some background", plain.Snippet)

	overdue := byID["102"]
	assert.Equal(t, signal.CategoryDeadline, overdue.Category)
	assert.Equal(t, 1.0, overdue.Confidence)
	assert.Equal(t, "https://app.asana.com/0/P1/102", overdue.URL)
	assert.Equal(t, "Sam", overdue.Owner)
	assert.Equal(t, "Launch", overdue.Channel)
	require.NotNil(t, overdue.Deadline)
	assert.Equal(t, "overdue", overdue.Metadata["rule"])

	soon := byID["103"]
	assert.Equal(t, signal.CategoryDeadline, soon.Category)
	assert.Equal(t, 0.85, soon.Confidence)

	blocker := byID["101"]
	assert.Equal(t, signal.CategoryBlocker, blocker.Category)
	assert.Equal(t, 0.90, blocker.Confidence)

	assert.NotContains(t, byID, "104")

	for i := 1; i < len(sigs); i++ {
		assert.False(t, sigs[i].Timestamp.After(sigs[i-1].Timestamp))
	}
	assert.Equal(t, "asana-105", sigs[0].ID)
}

func TestFetchSignals_Since(t *testing.T) {
	tests := []struct {
		name      string
		since     *time.Time
		wantParam string
		wantIDs   []string
	}{
		{
			name:    "no window",
			wantIDs: []string{"105", "103", "102", "101"},
		},
		{
			name:      "window drops older tasks",
			since:     func() *time.Time { v := testNow.Add(-210 * time.Minute); return &v }(),
			wantParam: "2025-06-11T08:30:00Z",
			wantIDs:   []string{"105", "103"},
		},
		{
			name:      "boundary is inclusive",
			since:     func() *time.Time { v := testNow.Add(-2 * time.Hour); return &v }(),
			wantParam: "2025-06-11T10:00:00Z",
			wantIDs:   []string{"105"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mu sync.Mutex
			var params []string
			srv := newServer(t, http.StatusOK, func(q url.Values) {
				mu.Lock()
				defer mu.Unlock()
				params = append(params, q.Get("modified_since"))
			})
			a := newTestAdapter(t, srv)

			sigs, err := a.FetchSignals(context.Background(), tt.since)
			require.NoError(t, err)

			got := make([]string, len(sigs))
			for i, s := range sigs {
				got[i] = s.SourceID
			}
			assert.Equal(t, tt.wantIDs, got)

			mu.Lock()
			defer mu.Unlock()
			require.NotEmpty(t, params)
			for _, p := range params {
				assert.Equal(t, tt.wantParam, p)
			}
		})
	}
}

func TestFetchSignals_TotalFailure(t *testing.T) {
	a := newTestAdapter(t, newServer(t, http.StatusUnauthorized))

	sigs, err := a.FetchSignals(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, sigs)

	h := a.CheckHealth(context.Background())
	assert.Equal(t, signal.StatusError, h.Status)
	assert.True(t, h.NeedsReauth)
	assert.Contains(t, h.LastSyncError, "401")
}

func TestCheckHealth(t *testing.T) {
	a := newTestAdapter(t, newServer(t, http.StatusOK))
	h := a.CheckHealth(context.Background())
	assert.Equal(t, signal.StatusHealthy, h.Status)
	assert.True(t, h.Connected)
	assert.Equal(t, "Acme", h.Workspace)
}

func TestNew_InvalidToken(t *testing.T) {
	_, err := New(Config{Token: config.Secret("  ")}, adapters.Deps{})
	assert.ErrorIs(t, err, signal.ErrInvalidCredential)
}

func TestTaskURL(t *testing.T) {
	assert.Equal(t, "https://app.asana.com/0/P/T", TaskURL("P", "T"))
	assert.Equal(t, "https://app.asana.com/0/0/T", TaskURL("", "T"))
}

func TestClassifyTaskMapping(t *testing.T) {
	at := time.Date(2025, 6, 12, 15, 0, 0, 0, time.FixedZone("x", 3600))
	ct := task{GID: "1", DueAt: &at, DueOn: "2025-06-12"}.classifyTask()
	require.NotNil(t, ct.Due)
	assert.True(t, ct.DueHasTime)
	assert.Equal(t, time.UTC, ct.Due.Location())

	ct = task{GID: "1", DueOn: "garbage"}.classifyTask()
	assert.Nil(t, ct.Due)
}
