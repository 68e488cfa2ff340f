package websocket

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, onIncoming ...func(IncomingMessage)) *Hub {
	t.Helper()
	hub := NewHub(log.New(io.Discard))
	if len(onIncoming) > 0 {
		hub.OnIncoming = onIncoming[0]
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

func TestHubBroadcastToPlayers(t *testing.T) {
	hub := startHub(t)

	c1 := &Client{PlayerID: "alice", Send: make(chan OutgoingMessage, 1), Hub: hub}
	c2 := &Client{PlayerID: "bob", Send: make(chan OutgoingMessage, 1), Hub: hub}
	c3 := &Client{PlayerID: "carol", Send: make(chan OutgoingMessage, 1), Hub: hub}

	hub.register <- c1
	hub.register <- c2
	hub.register <- c3

	msg := OutgoingMessage{
		Event: EventTableState,
		Data:  map[string]interface{}{"tableId": "t1"},
	}

	hub.BroadcastToPlayers([]string{"alice", "bob"}, msg)

	m1 := <-c1.Send
	m2 := <-c2.Send

	assert.Equal(t, EventTableState, m1.Event)
	assert.Equal(t, EventTableState, m2.Event)

	time.Sleep(10 * time.Millisecond)
	select {
	case <-c3.Send:
		assert.Fail(t, "carol is not at the table")
	default:
	}
}

func TestHubSendsAfterStopDoNotBlock(t *testing.T) {
	hub := NewHub(log.New(io.Discard))
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	done := make(chan struct{})
	go func() {
		defer close(done)
		// well past the request buffers
		for i := 0; i < 200; i++ {
			hub.BroadcastToPlayers([]string{"alice"}, OutgoingMessage{Event: EventTableState})
			hub.SendToPlayer("alice", OutgoingMessage{Event: EventHoleCards})
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sending to a stopped hub blocked")
	}
}

func TestHubSendToPlayer(t *testing.T) {
	hub := startHub(t)

	c1 := &Client{PlayerID: "alice", Send: make(chan OutgoingMessage, 1), Hub: hub}
	c2 := &Client{PlayerID: "bob", Send: make(chan OutgoingMessage, 1), Hub: hub}

	hub.register <- c1
	hub.register <- c2

	hub.SendToPlayer("alice", OutgoingMessage{Event: EventHoleCards, Data: "As Kd"})

	received := <-c1.Send
	assert.Equal(t, EventHoleCards, received.Event)
	assert.Equal(t, "As Kd", received.Data)

	time.Sleep(10 * time.Millisecond)
	select {
	case <-c2.Send:
		assert.Fail(t, "bob should not see alice's cards")
	default:
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := startHub(t)

	c := &Client{PlayerID: "alice", Send: make(chan OutgoingMessage, 1), Hub: hub}

	hub.register <- c
	require.Eventually(t, func() bool { return hub.Connected("alice") }, time.Second, 5*time.Millisecond)

	hub.unregister <- c
	require.Eventually(t, func() bool { return !hub.Connected("alice") }, time.Second, 5*time.Millisecond)

	_, open := <-c.Send
	assert.False(t, open, "send channel is closed on unregister")
}

func TestHubReconnectReplacesOldClient(t *testing.T) {
	hub := startHub(t)

	old := &Client{PlayerID: "alice", Send: make(chan OutgoingMessage, 1), Hub: hub}
	fresh := &Client{PlayerID: "alice", Send: make(chan OutgoingMessage, 1), Hub: hub}

	hub.register <- old
	hub.register <- fresh

	_, open := <-old.Send
	assert.False(t, open)

	// the stale connection's read pump unregisters late; it must not evict the new one
	hub.unregister <- old
	hub.SendToPlayer("alice", OutgoingMessage{Event: EventTableState})
	assert.Equal(t, EventTableState, (<-fresh.Send).Event)
	assert.True(t, hub.Connected("alice"))
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := startHub(t)

	c := &Client{PlayerID: "alice", Send: make(chan OutgoingMessage, 1), Hub: hub}
	hub.register <- c

	hub.SendToPlayer("alice", OutgoingMessage{Event: "first"})
	hub.SendToPlayer("alice", OutgoingMessage{Event: "second"})
	// hub is still responsive after the dropped message
	hub.SendToPlayer("nobody", OutgoingMessage{Event: "third"})

	assert.Equal(t, "first", (<-c.Send).Event)
	time.Sleep(10 * time.Millisecond)
	select {
	case m := <-c.Send:
		assert.Failf(t, "unexpected message", "got %s", m.Event)
	default:
	}
}

func TestServeWSRoundTrip(t *testing.T) {
	gin.SetMode(gin.TestMode)
	got := make(chan IncomingMessage, 1)
	hub := startHub(t, func(m IncomingMessage) { got <- m })

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		c.Set("playerID", c.Query("as"))
	}, ServeWS(hub))
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?as=alice"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// From is set by the server even if the client lies about it
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"from":  "mallory",
		"event": EventPlayerAction,
		"data":  map[string]interface{}{"tableId": "t1", "action": "check"},
	}))

	select {
	case m := <-got:
		assert.Equal(t, "alice", m.From)
		assert.Equal(t, EventPlayerAction, m.Event)
		assert.JSONEq(t, `{"tableId":"t1","action":"check"}`, string(m.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("incoming message never reached the hub")
	}

	hub.SendToPlayer("alice", OutgoingMessage{Event: EventTableState, Data: map[string]string{"id": "t1"}})
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var out struct {
		Event string            `json:"event"`
		Data  map[string]string `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, EventTableState, out.Event)
	assert.Equal(t, "t1", out.Data["id"])
}

func TestServeWSRequiresPlayer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := startHub(t)

	r := gin.New()
	r.GET("/ws", ServeWS(hub))
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}

func BenchmarkHubBroadcast(b *testing.B) {
	hub := NewHub(log.New(io.Discard))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Run(ctx) }()

	// 所有 Send 都必须有人接收
	c1 := &Client{PlayerID: "alice", Send: make(chan OutgoingMessage, 1024), Hub: hub}
	c2 := &Client{PlayerID: "bob", Send: make(chan OutgoingMessage, 1024), Hub: hub}
	go func() {
		for range c1.Send {
		}
	}()
	go func() {
		for range c2.Send {
		}
	}()

	hub.register <- c1
	hub.register <- c2

	b.ResetTimer()
	msg := OutgoingMessage{Event: "bench", Data: nil}

	for i := 0; i < b.N; i++ {
		hub.BroadcastToPlayers([]string{"alice", "bob"}, msg)
	}
}
