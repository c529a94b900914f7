package devserver

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bnema/sessionkit/internal/adapters/events"
	"github.com/bnema/sessionkit/internal/adapters/gateway"
	"github.com/bnema/sessionkit/internal/adapters/storage/memory"
	"github.com/bnema/sessionkit/internal/application"
	"github.com/bnema/sessionkit/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	server  *httptest.Server
	storage *memory.Store
	client  *gateway.Client
	session *application.SessionStore
	clock   *manualClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	clock := &manualClock{now: time.Now().Truncate(time.Second)}
	srv, err := New(Config{
		Users: []Credentials{
			{Username: "ada", Password: "lovelace", Email: "ada@example.com", Name: "Ada"},
			DefaultCredentials,
		},
		TokenTTL:   time.Hour,
		SigningKey: []byte("test-signing-key"),
		Clock:      clock,
	})
	require.NoError(t, err)

	server := httptest.NewServer(srv.Handler())
	t.Cleanup(server.Close)

	storage := memory.NewStore()
	client := gateway.New(gateway.Config{
		BaseURL:       server.URL + PathPrefix,
		HTTPClient:    server.Client(),
		TokenProvider: gateway.StorageTokenProvider(storage, ""),
	})
	session, err := application.NewSessionStore(context.Background(), client, application.SessionConfig{
		Storage: storage,
		Clock:   clock,
	})
	require.NoError(t, err)

	return &harness{server: server, storage: storage, client: client, session: session, clock: clock}
}

func TestLoginLoadUserAndClaims(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.session.Login(ctx, "ada", "lovelace"))

	state := h.session.State()
	assert.True(t, state.IsAuthenticated)
	assert.NotEmpty(t, state.Token)
	assert.Equal(t, "ada@example.com", state.User.Email())

	persisted, err := h.storage.Get(ctx, "auth_token")
	require.NoError(t, err)
	assert.Equal(t, state.Token, persisted)

	h.session.LoadUser(ctx)
	assert.Equal(t, "Ada", h.session.State().User.Name())
	assert.True(t, h.session.State().IsAuthenticated)

	claims, err := h.session.TokenClaims()
	require.NoError(t, err)
	assert.Equal(t, "1", claims.Subject)
	assert.Equal(t, tokenIssuer, claims.Issuer)
	assert.False(t, claims.Expired(h.session.Now()))
}

func TestLoginWithWrongPasswordFails(t *testing.T) {
	h := newHarness(t)

	err := h.session.Login(context.Background(), "ada", "wrong")
	require.Error(t, err)
	assert.EqualError(t, err, "HTTP 401: Invalid credentials")

	state := h.session.State()
	assert.Contains(t, state.Error, "401")
	assert.False(t, state.IsAuthenticated)
	assert.Equal(t, 0, h.storage.Len())
}

func TestLogoutRevokesToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.session.Login(ctx, "demo", "demo"))

	_, err := h.client.Post(ctx, "/auth/logout", nil)
	require.NoError(t, err)

	_, err = h.client.Get(ctx, "/auth/me")
	assert.EqualError(t, err, "HTTP 401: Unauthorized")

	h.session.LoadUser(ctx)
	assert.Equal(t, domain.SessionState{}, h.session.State())
	assert.Equal(t, 0, h.storage.Len())
}

func TestExpiredTokenIsRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.session.Login(ctx, "demo", "demo"))

	h.clock.Advance(2 * time.Hour)

	_, err := h.client.Get(ctx, "/auth/me")
	assert.EqualError(t, err, "HTTP 401: Unauthorized")

	claims, err := h.session.TokenClaims()
	require.NoError(t, err)
	assert.True(t, claims.Expired(h.session.Now()))
}

func TestItemsCRUD(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.client.Get(ctx, "/items")
	require.EqualError(t, err, "HTTP 401: Unauthorized")

	require.NoError(t, h.session.Login(ctx, "demo", "demo"))

	created, err := h.client.Post(ctx, "/items", map[string]any{"name": "alpha", "count": 1})
	require.NoError(t, err)
	item := created.(map[string]any)
	id := item["id"].(string)
	assert.NotEmpty(t, id)
	assert.Equal(t, "alpha", item["name"])

	_, err = h.client.Post(ctx, "/items", map[string]any{"name": "beta"})
	require.NoError(t, err)

	list, err := h.client.Get(ctx, "/items")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, id, list.([]any)[0].(map[string]any)["id"])

	patched, err := h.client.Patch(ctx, "/items/"+id, map[string]any{"count": 2, "name": nil})
	require.NoError(t, err)
	assert.Equal(t, float64(2), patched.(map[string]any)["count"])
	assert.NotContains(t, patched.(map[string]any), "name")

	replaced, err := h.client.Put(ctx, "/items/"+id, map[string]any{"name": "gamma"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"id":         id,
		"name":       "gamma",
		"created_at": item["created_at"],
		"updated_at": replaced.(map[string]any)["updated_at"],
	}, replaced)

	deleted, err := h.client.Delete(ctx, "/items/"+id)
	require.NoError(t, err)
	assert.Nil(t, deleted)

	_, err = h.client.Get(ctx, "/items/"+id)
	assert.EqualError(t, err, "HTTP 404: Not found")

	_, err = h.client.Patch(ctx, "/items/"+id, nil)
	assert.EqualError(t, err, "HTTP 400: Invalid request body")
}

func waitForEvent(t *testing.T, ch <-chan domain.Event, eventType string) domain.Event {
	t.Helper()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case event := <-ch:
			if event.Type() == eventType {
				return event
			}
		case <-deadline:
			t.Fatalf("no %q event received", eventType)
		}
	}
}

func TestEventChannelsDeliverItemEvents(t *testing.T) {
	testCases := []struct {
		name    string
		baseURL func(*httptest.Server) string
		path    string
	}{
		{name: "server-sent events", baseURL: func(s *httptest.Server) string { return s.URL + PathPrefix }, path: "/events"},
		{name: "websocket", baseURL: func(s *httptest.Server) string { return "ws" + strings.TrimPrefix(s.URL, "http") + PathPrefix }, path: "/events/ws"},
		{name: "websocket upgrade on stream path", baseURL: func(s *httptest.Server) string { return "ws" + strings.TrimPrefix(s.URL, "http") + PathPrefix }, path: "/events"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			require.NoError(t, h.session.Login(ctx, "demo", "demo"))

			received := make(chan domain.Event, 16)
			sub, err := events.Connect(ctx, events.Config{
				BaseURL:    tc.baseURL(h.server),
				Path:       tc.path,
				Storage:    h.storage,
				HTTPClient: h.server.Client(),
				OnEvent:    func(event domain.Event) { received <- event },
			})
			require.NoError(t, err)
			t.Cleanup(func() { _ = sub.Close() })
			assert.Contains(t, sub.URL(), "token=")

			waitForEvent(t, received, "ready")

			_, err = h.client.Post(ctx, "/items", map[string]any{"name": "live"})
			require.NoError(t, err)

			event := waitForEvent(t, received, "item.created")
			assert.Equal(t, "live", event.Data().(map[string]any)["name"])
		})
	}
}

func TestEventStreamRequiresToken(t *testing.T) {
	h := newHarness(t)

	_, err := events.Connect(context.Background(), events.Config{
		BaseURL:    h.server.URL + PathPrefix,
		Storage:    h.storage,
		HTTPClient: h.server.Client(),
		OnEvent:    func(domain.Event) {},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401")
}

func TestHealth(t *testing.T) {
	h := newHarness(t)

	resp, err := h.server.Client().Get(h.server.URL + PathPrefix + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	srv, err := New(Config{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	addrCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx, "127.0.0.1:0", func(addr net.Addr) { addrCh <- addr.String() })
	}()

	addr := <-addrCh
	resp, err := http.Get("http://" + addr + PathPrefix + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
