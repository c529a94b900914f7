package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bnema/sessionkit/internal/adapters/storage/memory"
	"github.com/bnema/sessionkit/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildURL(t *testing.T) {
	t.Parallel()

	withToken := memory.NewStoreWith(map[string]string{"auth_token": "abc"})

	testCases := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "stored token appended",
			cfg:  Config{BaseURL: "http://localhost/api", Storage: withToken},
			want: "http://localhost/api/events?token=abc",
		},
		{
			name: "no stored token leaves url untouched",
			cfg:  Config{BaseURL: "http://localhost/api", Storage: memory.NewStore()},
			want: "http://localhost/api/events",
		},
		{
			name: "existing query uses ampersand",
			cfg:  Config{BaseURL: "http://localhost/api", Path: "/stream?topic=jobs", Storage: withToken},
			want: "http://localhost/api/stream?topic=jobs&token=abc",
		},
		{
			name: "auth skipped",
			cfg:  Config{BaseURL: "http://localhost/api", SkipAuth: true, Storage: withToken},
			want: "http://localhost/api/events",
		},
		{
			name: "token is url encoded",
			cfg:  Config{BaseURL: "", Storage: memory.NewStoreWith(map[string]string{"auth_token": "a b&c=d"})},
			want: "/events?token=a+b%26c%3Dd",
		},
		{
			name: "custom token key",
			cfg:  Config{BaseURL: "ws://localhost", TokenKey: "session", Storage: memory.NewStoreWith(map[string]string{"session": "s1"})},
			want: "ws://localhost/events?token=s1",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, BuildURL(context.Background(), tc.cfg))
		})
	}
}

func TestReadEventStreamFraming(t *testing.T) {
	t.Parallel()

	type dispatched struct{ Event, Data string }

	stream := strings.Join([]string{
		": keep-alive",
		"",
		"data: {\"type\":\"a\"}",
		"",
		"event: ping",
		"data: {}",
		"",
		"data: line one",
		"data:line two",
		"",
		"id: 7\r",
		"data: crlf\r",
		"\r",
		"event: empty",
		"",
		"data: cut off by eof",
	}, "\n")

	var got []dispatched
	err := readEventStream(strings.NewReader(stream), func(event, data string) {
		got = append(got, dispatched{event, data})
	})
	require.NoError(t, err)

	want := []dispatched{
		{Data: `{"type":"a"}`},
		{Event: "ping", Data: "{}"},
		{Data: "line one\nline two"},
		{Data: "crlf"},
		{Data: "cut off by eof"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("dispatched events mismatch (-want +got):\n%s", diff)
	}
}

func sseHandler(t *testing.T, frames []string, hold bool) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		for _, frame := range frames {
			_, _ = fmt.Fprint(w, frame)
		}
		flusher.Flush()
		if hold {
			<-r.Context().Done()
		}
	}
}

func collect(t *testing.T, ch <-chan domain.Event, n int) []domain.Event {
	t.Helper()

	events := make([]domain.Event, 0, n)
	for len(events) < n {
		select {
		case event := <-ch:
			events = append(events, event)
		case <-time.After(2 * time.Second):
			t.Fatalf("received %d of %d events", len(events), n)
		}
	}
	return events
}

func TestConnectEventStreamDeliversEveryJSONValue(t *testing.T) {
	t.Parallel()

	queries := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries <- r.URL.RawQuery
		sseHandler(t, []string{
			"data: not json\n\n",
			"data: [1,2,3]\n\n",
			"event: heartbeat\ndata: {\"type\":\"hidden\"}\n\n",
			"data: {\"type\":\"job.done\",\"data\":{\"id\":\"1\"},\"extra\":true}\n\n",
			"data: {\"type\":\n",
			"data: \"split\"}\n\n",
		}, false)(w, r)
	}))
	t.Cleanup(server.Close)

	received := make(chan domain.Event, 8)
	errs := make(chan error, 1)
	sub, err := Connect(context.Background(), Config{
		BaseURL:    server.URL,
		Storage:    memory.NewStoreWith(map[string]string{"auth_token": "abc"}),
		HTTPClient: server.Client(),
		OnEvent:    func(event domain.Event) { received <- event },
		OnError:    func(err error) { errs <- err },
	})
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/events?token=abc", sub.URL())

	events := collect(t, received, 3)
	assert.Equal(t, []any{float64(1), float64(2), float64(3)}, events[0].Payload)
	assert.Empty(t, events[0].Type())
	assert.Nil(t, events[0].Data())
	assert.Equal(t, "job.done", events[1].Type())
	assert.Equal(t, map[string]any{"id": "1"}, events[1].Data())
	assert.Equal(t, true, events[1].Field("extra"))
	assert.Equal(t, "split", events[2].Type())

	select {
	case err := <-errs:
		require.ErrorIs(t, err, ErrStreamEnded)
	case <-time.After(2 * time.Second):
		t.Fatal("stream end was not reported")
	}
	<-sub.Done()
	assert.ErrorIs(t, sub.Err(), ErrStreamEnded)
	assert.Empty(t, received)
	assert.Equal(t, "token=abc", <-queries)
}

func TestConnectForwardsScalarsAndNull(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(sseHandler(t, []string{
		"data: [1,2]\n\n",
		"data: 42\n\n",
		"data: \"hi\"\n\n",
		"data: null\n\n",
	}, false))
	t.Cleanup(server.Close)

	received := make(chan domain.Event, 8)
	sub, err := Connect(context.Background(), Config{
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		OnEvent:    func(event domain.Event) { received <- event },
	})
	require.NoError(t, err)

	events := collect(t, received, 4)
	<-sub.Done()

	payloads := make([]any, 0, len(events))
	for _, event := range events {
		payloads = append(payloads, event.Payload)
	}
	assert.Equal(t, []any{[]any{float64(1), float64(2)}, float64(42), "hi", nil}, payloads)

	line, err := json.Marshal(events[3])
	require.NoError(t, err)
	assert.Equal(t, "null", string(line))
}

func TestConnectMalformedPayloadNeverInvokesHandler(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(sseHandler(t, []string{"data: {oops\n\n", "data: plain text\n\n"}, false))
	t.Cleanup(server.Close)

	calls := 0
	sub, err := Connect(context.Background(), Config{
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		OnEvent:    func(domain.Event) { calls++ },
	})
	require.NoError(t, err)

	<-sub.Done()
	assert.Equal(t, 0, calls)
}

func TestConnectCloseStopsWithoutReportingError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(sseHandler(t, []string{"data: {\"type\":\"hello\"}\n\n"}, true))
	t.Cleanup(server.Close)

	received := make(chan domain.Event, 1)
	errs := make(chan error, 1)
	sub, err := Connect(context.Background(), Config{
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		OnEvent:    func(event domain.Event) { received <- event },
		OnError:    func(err error) { errs <- err },
	})
	require.NoError(t, err)
	collect(t, received, 1)

	_ = sub.Close()
	<-sub.Done()
	assert.NoError(t, sub.Err())
	assert.Empty(t, errs)
	assert.NoError(t, sub.Close())
}

func TestConnectCloseFromHandlerReturns(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(sseHandler(t, []string{"data: {\"type\":\"hello\"}\n\n"}, true))
	t.Cleanup(server.Close)

	var sub *Subscription
	ready := make(chan struct{})
	closed := make(chan error, 1)
	errs := make(chan error, 1)
	sub, err := Connect(context.Background(), Config{
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		OnEvent: func(domain.Event) {
			<-ready
			closed <- sub.Close()
		},
		OnError: func(err error) { errs <- err },
	})
	require.NoError(t, err)
	close(ready)

	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close called from the event handler did not return")
	}

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not exit after Close")
	}
	assert.NoError(t, sub.Err())
	assert.Empty(t, errs)
	assert.NoError(t, sub.Close())
}

func TestConnectFailureIsReturned(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	errs := make(chan error, 1)
	_, err := Connect(context.Background(), Config{
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		OnEvent:    func(domain.Event) {},
		OnError:    func(err error) { errs <- err },
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "HTTP 401")

	select {
	case reported := <-errs:
		assert.Equal(t, err, reported)
	default:
		t.Fatal("connect failure was not reported to OnError")
	}
}

func TestConnectRequiresHandler(t *testing.T) {
	t.Parallel()

	_, err := Connect(context.Background(), Config{BaseURL: "http://localhost"})
	require.True(t, errors.Is(err, domain.ErrNoEventSink))
}

func TestConnectWebsocketParity(t *testing.T) {
	t.Parallel()

	upgrader := websocket.Upgrader{}
	queries := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries <- r.URL.RawQuery
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte(`{"type":"binary"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"job.started","data":{"id":"9"}}`))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		_, _, _ = conn.ReadMessage()
	}))
	t.Cleanup(server.Close)

	received := make(chan domain.Event, 4)
	errs := make(chan error, 1)
	sub, err := Connect(context.Background(), Config{
		BaseURL: "ws" + strings.TrimPrefix(server.URL, "http"),
		Storage: memory.NewStoreWith(map[string]string{"auth_token": "abc"}),
		OnEvent: func(event domain.Event) { received <- event },
		OnError: func(err error) { errs <- err },
	})
	require.NoError(t, err)

	events := collect(t, received, 1)
	assert.Equal(t, "job.started", events[0].Type())

	select {
	case err := <-errs:
		require.ErrorIs(t, err, ErrStreamEnded)
	case <-time.After(2 * time.Second):
		t.Fatal("socket close was not reported")
	}
	<-sub.Done()
	assert.Empty(t, received)
	assert.Equal(t, "token=abc", <-queries)
}
