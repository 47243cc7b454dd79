package websocket

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	return NewHub(context.Background(), nil, zap.NewNop().Sugar())
}

func newTestClient(h *Hub, code, playerID string) *Client {
	return &Client{
		hub:      h,
		send:     make(chan []byte, sendBufferSize),
		gameCode: code,
		playerID: playerID,
	}
}

func TestAddAndRemoveClient(t *testing.T) {
	h := newTestHub(t)
	c := newTestClient(h, "123", "alice")

	h.addClient(c)
	assert.Equal(t, []string{"alice"}, h.ConnectedPlayers("123"))

	h.removeClient(c)
	assert.Empty(t, h.ConnectedPlayers("123"))

	// The send channel closes on removal.
	_, open := <-c.send
	assert.False(t, open)
}

func TestReconnectReplacesConnection(t *testing.T) {
	h := newTestHub(t)
	first := newTestClient(h, "123", "alice")
	second := newTestClient(h, "123", "alice")

	h.addClient(first)
	h.addClient(second)

	// The seat keeps one entry, held by the new connection.
	assert.Equal(t, []string{"alice"}, h.ConnectedPlayers("123"))

	// Removing the stale connection must not evict the live one.
	h.removeClient(first)
	assert.Equal(t, []string{"alice"}, h.ConnectedPlayers("123"))

	h.removeClient(second)
	assert.Empty(t, h.ConnectedPlayers("123"))
}

func TestReplacedConnectionCanStillReply(t *testing.T) {
	h := newTestHub(t)
	first := newTestClient(h, "123", "alice")
	second := newTestClient(h, "123", "alice")

	h.addClient(first)
	h.addClient(second)

	// The old readPump may still be dispatching a frame when the seat
	// is taken over; its reply must not bring the hub down.
	require.NotPanics(t, func() {
		first.sendError(errors.New("pas ton tour"))
	})
	select {
	case msg := <-first.send:
		assert.Contains(t, string(msg), "pas ton tour")
	default:
		t.Fatal("reply was dropped")
	}
}

func TestDeliverSkipsExcludedPlayer(t *testing.T) {
	h := newTestHub(t)
	alice := newTestClient(h, "123", "alice")
	bob := newTestClient(h, "123", "bob")
	h.addClient(alice)
	h.addClient(bob)

	h.deliver(&broadcastMessage{code: "123", data: []byte("salut"), exclude: "alice"})

	select {
	case msg := <-bob.send:
		assert.Equal(t, "salut", string(msg))
	default:
		t.Fatal("bob received nothing")
	}
	select {
	case <-alice.send:
		t.Fatal("excluded sender got the frame back")
	default:
	}
}

func TestDeliverDropsForSlowConsumer(t *testing.T) {
	h := newTestHub(t)
	c := newTestClient(h, "123", "alice")
	c.send = make(chan []byte) // unbuffered, nobody reading
	h.addClient(c)

	done := make(chan struct{})
	go func() {
		h.deliver(&broadcastMessage{code: "123", data: []byte("x")})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("deliver blocked on a slow consumer")
	}
}

func TestBroadcastToGameThroughRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub(ctx, nil, zap.NewNop().Sugar())
	go h.Run()

	c := newTestClient(h, "123", "alice")
	h.register <- c
	require.Eventually(t, func() bool {
		return len(h.ConnectedPlayers("123")) == 1
	}, time.Second, 5*time.Millisecond)

	h.BroadcastToGame("123", []byte("bonjour"))
	select {
	case msg := <-c.send:
		assert.Equal(t, "bonjour", string(msg))
	case <-time.After(time.Second):
		t.Fatal("broadcast never arrived")
	}
}

func TestSendToPlayerTargetsOneSeat(t *testing.T) {
	h := newTestHub(t)
	alice := newTestClient(h, "123", "alice")
	bob := newTestClient(h, "123", "bob")
	h.addClient(alice)
	h.addClient(bob)

	h.SendToPlayer("123", "bob", []byte("privé"))

	select {
	case msg := <-bob.send:
		assert.Equal(t, "privé", string(msg))
	default:
		t.Fatal("bob received nothing")
	}
	select {
	case <-alice.send:
		t.Fatal("alice got bob's frame")
	default:
	}
}
