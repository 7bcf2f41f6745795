package httpapi_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifycore/pkg/httpapi"
	"github.com/dmitrymomot/notifycore/pkg/logger"
	"github.com/dmitrymomot/notifycore/pkg/notify"
	"github.com/dmitrymomot/notifycore/pkg/provider"
)

func TestStream(t *testing.T) {
	t.Parallel()

	hub := provider.NewHub()
	t.Cleanup(func() { _ = hub.Close() })

	online := make(chan struct{})
	offline := make(chan struct{})
	q := &MockQueue{}
	q.On("MarkUserOnline", mock.Anything, int64(5), "sse").Return(0, nil).Run(func(mock.Arguments) { close(online) })
	q.On("MarkUserOffline", mock.Anything, int64(5)).Return(nil).Run(func(mock.Arguments) { close(offline) })

	api := httpapi.New(&MockNotifier{}, q, hub,
		httpapi.WithLogger(logger.Discard()),
		httpapi.WithHeartbeat(time.Hour),
	)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/users/5/stream", nil)
	require.NoError(t, err)
	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	reader := bufio.NewReader(res.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)

	select {
	case <-online:
	case <-time.After(2 * time.Second):
		t.Fatal("user was not marked online")
	}
	assert.Equal(t, 1, hub.Connections(5))
	assert.True(t, hub.IsOnline(context.Background(), 5))

	msg := notify.Message{ID: "m1", UserID: 5, Type: "comment", Title: "hello"}
	require.NoError(t, hub.Send(context.Background(), msg))

	event := readEvent(t, reader)
	assert.Equal(t, "m1", event["id"])
	assert.Equal(t, "notification", event["event"])
	var got notify.Message
	require.NoError(t, json.Unmarshal([]byte(event["data"]), &got))
	assert.Equal(t, "hello", got.Title)

	cancel()
	select {
	case <-offline:
	case <-time.After(2 * time.Second):
		t.Fatal("user was not marked offline")
	}
	assert.Eventually(t, func() bool { return hub.Connections(5) == 0 }, time.Second, 10*time.Millisecond)
}

func TestStream_HeartbeatRefreshesPresence(t *testing.T) {
	t.Parallel()

	hub := provider.NewHub()
	t.Cleanup(func() { _ = hub.Close() })

	touched := make(chan struct{}, 8)
	q := &MockQueue{}
	q.On("MarkUserOnline", mock.Anything, int64(6), "sse").Return(0, nil)
	q.On("MarkUserOffline", mock.Anything, int64(6)).Return(nil)
	q.On("Touch", mock.Anything, int64(6), "sse").Return(0, nil).Run(func(mock.Arguments) {
		select {
		case touched <- struct{}{}:
		default:
		}
	})

	api := httpapi.New(&MockNotifier{}, q, hub,
		httpapi.WithLogger(logger.Discard()),
		httpapi.WithHeartbeat(20*time.Millisecond),
	)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/users/6/stream", nil)
	require.NoError(t, err)
	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	go func() { _, _ = io.Copy(io.Discard, res.Body) }()

	for i := range 2 {
		select {
		case <-touched:
		case <-time.After(2 * time.Second):
			t.Fatalf("heartbeat %d did not refresh presence", i+1)
		}
	}
}

func TestStream_InvalidUser(t *testing.T) {
	t.Parallel()

	hub := provider.NewHub()
	t.Cleanup(func() { _ = hub.Close() })
	api := httpapi.New(&MockNotifier{}, &MockQueue{}, hub, httpapi.WithLogger(logger.Discard()))

	rec := do(api.Handler(), http.MethodGet, "/users/x/stream", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func readEvent(t *testing.T, r *bufio.Reader) map[string]string {
	t.Helper()
	event := map[string]string{}
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if line == "" {
			if len(event) > 0 {
				return event
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		key, value, _ := strings.Cut(line, ": ")
		event[key] = value
	}
}

func TestServer_Serve(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := httpapi.NewServer(httpapi.ServerConfig{ShutdownTimeout: time.Second}, logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx, ln, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("pong"))
		}))
	}()

	var res *http.Response
	require.Eventually(t, func() bool {
		res, err = http.Get("http://" + ln.Addr().String())
		return err == nil
	}, time.Second, 10*time.Millisecond)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
