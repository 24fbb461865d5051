package httpgw

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rcliao/insight-sync/internal/engine"
	"github.com/rcliao/insight-sync/internal/gateway"
	"github.com/rcliao/insight-sync/internal/insight"
	"github.com/rcliao/insight-sync/internal/model"
	"github.com/rcliao/insight-sync/internal/server"
	"github.com/rcliao/insight-sync/internal/store"
)

func newTestClient(t *testing.T) (*Client, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ts := httptest.NewServer(server.New(st, nil).Handler())
	t.Cleanup(ts.Close)
	return New(ts.URL, Options{HTTPClient: ts.Client()}), st
}

func TestClientSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)

	id, err := c.CreateSession(ctx)
	require.NoError(t, err)

	ok, err := c.ValidateSession(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, c.DeleteSession(ctx, id))

	ok, err = c.ValidateSession(ctx, id)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestClientCommitAndHistory(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	id, err := c.CreateSession(ctx)
	require.NoError(t, err)

	batch := []model.Insight{
		{FieldKey: "bedrooms", Text: "2 bedrooms", Category: model.CategoryRequirements, Priority: model.PriorityMust, Origin: model.OriginUser},
		{Text: "Quiet street", Category: model.CategoryLifestyle, Priority: model.PriorityNiceToHave, Origin: model.OriginAI},
	}
	got, err := c.CommitInsights(ctx, id, batch, model.SourceRegularChat)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "2 bedrooms", got[0].Text)
	require.Equal(t, "Quiet street", got[1].Text)

	_, err = c.AddMessage(ctx, store.MessageParams{SessionID: id, Content: "hi"})
	require.NoError(t, err)

	p, err := c.FetchHistory(ctx, id)
	require.NoError(t, err)
	require.Len(t, p.Insights, 2)
	require.Len(t, p.Messages, 1)
}

func TestClientMapsErrors(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)

	_, err := c.CommitInsights(ctx, "gone", []model.Insight{
		{Text: "x", Priority: model.PriorityMust, Origin: model.OriginUser},
	}, model.SourceRegularChat)
	require.True(t, errors.Is(err, gateway.ErrSessionNotFound), "got %v", err)

	_, err = c.FetchHistory(ctx, "gone")
	require.True(t, errors.Is(err, gateway.ErrSessionNotFound), "got %v", err)

	id, _ := c.CreateSession(ctx)
	_, err = c.CommitInsights(ctx, id, []model.Insight{{Text: "x"}}, model.SourceRegularChat)
	var verr *gateway.ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	require.Len(t, verr.Entries, 1)
}

func TestValidateSessionBeyondListingLimit(t *testing.T) {
	ctx := context.Background()
	c, st := newTestClient(t)

	oldest, err := c.CreateSession(ctx)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		_, err := st.CreateSession(ctx)
		require.NoError(t, err)
	}

	ok, err := c.ValidateSession(ctx, oldest)
	require.NoError(t, err)
	require.True(t, ok)

	e := engine.New(c, engine.Options{})
	got, err := e.ResumeSession(ctx, oldest)
	require.NoError(t, err)
	require.Equal(t, oldest, got)

	list, err := c.ListSessions(ctx, store.ListSessionsParams{Limit: 5})
	require.NoError(t, err)
	require.Len(t, list, 5)
}

func TestUnknownRouteIsNotSessionNotFound(t *testing.T) {
	ctx := context.Background()
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	c := New(ts.URL, Options{HTTPClient: ts.Client()})
	_, err := c.CommitInsights(ctx, "1", []model.Insight{
		{Text: "x", Priority: model.PriorityMust, Origin: model.OriginUser},
	}, model.SourceRegularChat)
	require.Error(t, err)
	require.False(t, errors.Is(err, gateway.ErrSessionNotFound), "got %v", err)

	// a wrong base path reaches gin's own 404 page
	live, st := newTestClient(t)
	id, err := st.CreateSession(ctx)
	require.NoError(t, err)
	wrong := New(live.baseURL+"/api", Options{})
	_, err = wrong.FetchHistory(ctx, id)
	require.Error(t, err)
	require.False(t, errors.Is(err, gateway.ErrSessionNotFound), "got %v", err)
}

func TestServerUnavailableIsNetworkError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream timeout", http.StatusGatewayTimeout)
	}))
	defer ts.Close()

	c := New(ts.URL, Options{HTTPClient: ts.Client()})
	_, err := c.FetchHistory(context.Background(), "1")

	var nerr *gateway.NetworkError
	require.True(t, errors.As(err, &nerr), "got %v", err)
	require.Equal(t, "history", nerr.Op)
	require.Contains(t, err.Error(), "504")
	require.False(t, errors.Is(err, gateway.ErrSessionNotFound))
}

func TestClientTimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	c := New(ts.URL, Options{Timeout: 20 * time.Millisecond})
	_, err := c.CommitInsights(context.Background(), "1", nil, model.SourceRegularChat)

	var nerr *gateway.NetworkError
	require.True(t, errors.As(err, &nerr), "got %v", err)
	require.Equal(t, "commit", nerr.Op)
	require.False(t, errors.Is(err, gateway.ErrSessionNotFound))
}

func TestEngineRecoversOverHTTP(t *testing.T) {
	ctx := context.Background()
	c, st := newTestClient(t)
	e := engine.New(c, engine.Options{})

	first, err := e.EnsureValidSession(ctx)
	require.NoError(t, err)
	require.NoError(t, e.SetOverlayField(insight.FieldLocation, "Lausanne", model.PriorityMust, ""))

	// the session disappears out-of-band
	require.NoError(t, st.DeleteSession(ctx, first))

	got, err := e.SubmitInsights(ctx, nil, model.SourceFilterPanel)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotEqual(t, first, got[0].SessionID)
	require.Equal(t, e.SessionID(), got[0].SessionID)
	require.Empty(t, e.PendingInsights())
}
