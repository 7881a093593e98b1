package ws

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MJE43/pf-mines/internal/events"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(log.NewWithOptions(io.Discard, log.Options{}))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) events.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var e events.Event
	require.NoError(t, json.Unmarshal(data, &e))
	return e
}

func TestHubBroadcastsEvents(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	sent := events.New(events.KindCreated, "abcdef0123456789", time.Now())
	sent.Commitment = "deadbeef"
	hub.Observe(context.Background(), sent)

	got := readEvent(t, conn)
	assert.Equal(t, sent.ID, got.ID)
	assert.Equal(t, events.KindCreated, got.Kind)
	assert.Equal(t, "deadbeef", got.Commitment)
}

func TestHubFiltersByGame(t *testing.T) {
	hub, srv := startHub(t)
	all := dial(t, srv, "")
	onlyB := dial(t, srv, "?game_id=b")
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	hub.Observe(context.Background(), events.New(events.KindCreated, "a", time.Now()))
	hub.Observe(context.Background(), events.New(events.KindCreated, "b", time.Now()))

	assert.Equal(t, "a", readEvent(t, all).GameID)
	assert.Equal(t, "b", readEvent(t, all).GameID)
	assert.Equal(t, "b", readEvent(t, onlyB).GameID)
}

func TestHubForgetsClosedClients(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubStopsWithContext(t *testing.T) {
	hub := NewHub(log.NewWithOptions(io.Discard, log.Options{}))
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
	assert.Zero(t, hub.Clients())
	// Observing after shutdown must not block.
	hub.Observe(context.Background(), events.New(events.KindCreated, "x", time.Now()))
}
