package relay

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/logrelay/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T, capacity int) (*Handler, *Registry, *metrics.Metrics, *httptest.Server) {
	t.Helper()
	m := metrics.NewMetrics()
	registry := newTestRegistry(t, RegistryConfig{Capacity: capacity, Metrics: m})
	handler, err := NewHandler(HandlerConfig{Registry: registry, Logger: zerolog.Nop()})
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.Handle("/ws/{id}", handler)
	ts := httptest.NewServer(mux)
	t.Cleanup(func() {
		handler.CloseAll()
		ts.Close()
	})
	return handler, registry, m, ts
}

func dialHandler(t *testing.T, ts *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/" + id
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestNewHandler_RequiresRegistry(t *testing.T) {
	_, err := NewHandler(HandlerConfig{})
	assert.Error(t, err)
}

func TestHandler_TracksConnections(t *testing.T) {
	handler, registry, m, ts := newTestHandler(t, 0)
	id, err := registry.Create()
	require.NoError(t, err)

	dialHandler(t, ts, id)
	dialHandler(t, ts, id)

	require.Eventually(t, func() bool { return handler.Count() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ConnectionsActive))

	handler.CloseAll()
	require.Eventually(t, func() bool { return handler.Count() == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.ConnectionsActive))
}

func TestHandler_CountsPublishedMessages(t *testing.T) {
	handler, registry, m, ts := newTestHandler(t, 0)
	id, err := registry.Create()
	require.NoError(t, err)

	sender := dialHandler(t, ts, id)
	receiver := dialHandler(t, ts, id)
	require.Eventually(t, func() bool { return handler.Count() == 2 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte("plain")))
	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte(`{"sender":"a","content":"b","timestamp":3}`)))

	assert.Equal(t, "pipe:plain", readText(t, receiver))
	assert.JSONEq(t, `{"sender":"a","content":"b","timestamp":3}`, readText(t, receiver))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.MessagesPublished.WithLabelValues(metrics.TopicPipe)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.MessagesPublished.WithLabelValues(metrics.TopicChat)))
}

func TestHandler_IgnoresBinaryFrames(t *testing.T) {
	handler, registry, _, ts := newTestHandler(t, 0)
	id, err := registry.Create()
	require.NoError(t, err)

	sender := dialHandler(t, ts, id)
	receiver := dialHandler(t, ts, id)
	require.Eventually(t, func() bool { return handler.Count() == 2 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, sender.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02}))
	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte("after")))

	assert.Equal(t, "pipe:after", readText(t, receiver))
}

func TestHandler_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	handler, registry, _, ts := newTestHandler(t, 10)
	id, err := registry.Create()
	require.NoError(t, err)

	sender := dialHandler(t, ts, id)
	fast := dialHandler(t, ts, id)
	dialHandler(t, ts, id) // never reads
	require.Eventually(t, func() bool { return handler.Count() == 3 }, 2*time.Second, 5*time.Millisecond)

	for i := 0; i < 200; i++ {
		require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("%d", i))))
		assert.Equal(t, fmt.Sprintf("pipe:%d", i), readText(t, fast))
	}
}

func TestHandler_PingInterval(t *testing.T) {
	registry := newTestRegistry(t, RegistryConfig{})
	handler, err := NewHandler(HandlerConfig{
		Registry:     registry,
		Logger:       zerolog.Nop(),
		PingInterval: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.Handle("/ws/{id}", handler)
	ts := httptest.NewServer(mux)
	defer ts.Close()
	defer handler.CloseAll()

	id, err := registry.Create()
	require.NoError(t, err)
	conn := dialHandler(t, ts, id)

	pinged := make(chan struct{}, 1)
	conn.SetPingHandler(func(string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return nil
	})

	// Control frames are only processed while reading.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pinged:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a ping from the relay")
	}
}
