package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestClient(id string) *Client {
	return &Client{ID: id, Send: make(chan OutgoingMessage, 16)}
}

func runHub(t *testing.T, ackTimeout time.Duration, retries int) *Hub {
	t.Helper()
	h := NewHub(ackTimeout, retries)
	go h.Run()
	t.Cleanup(h.Close)
	return h
}

func waitRegistered(t *testing.T, h *Hub, want int) {
	t.Helper()
	assert.Eventually(t, func() bool { return h.ClientCount() == want }, time.Second, time.Millisecond)
}

func TestHub_RegisterAndBroadcast(t *testing.T) {
	h := runHub(t, time.Second, 1)
	a, b := newTestClient("a"), newTestClient("b")
	h.register <- a
	h.register <- b
	waitRegistered(t, h, 2)

	h.BroadcastToPlayers([]string{"a", "b"}, OutgoingMessage{Event: EventNextTurn, Data: "a"})

	for _, c := range []*Client{a, b} {
		select {
		case msg := <-c.Send:
			assert.Equal(t, EventNextTurn, msg.Event)
		case <-time.After(time.Second):
			t.Fatalf("client %s never received the broadcast", c.ID)
		}
	}
}

func TestHub_SendToPlayer_UnknownConnIgnored(t *testing.T) {
	h := runHub(t, time.Second, 1)
	a := newTestClient("a")
	h.register <- a
	waitRegistered(t, h, 1)

	h.SendToPlayer("ghost", OutgoingMessage{Event: EventError, Data: "nope"})
	h.SendToPlayer("a", OutgoingMessage{Event: EventLobby})

	select {
	case msg := <-a.Send:
		assert.Equal(t, EventLobby, msg.Event)
	case <-time.After(time.Second):
		t.Fatal("targeted send never arrived")
	}
}

func TestHub_UnregisterFiresOnDisconnect(t *testing.T) {
	h := NewHub(time.Second, 1)
	dropped := make(chan string, 1)
	h.OnDisconnect = func(connID string) { dropped <- connID }
	go h.Run()
	defer h.Close()

	a := newTestClient("a")
	h.register <- a
	h.unregister <- a

	select {
	case id := <-dropped:
		assert.Equal(t, "a", id)
	case <-time.After(time.Second):
		t.Fatal("OnDisconnect never fired")
	}
	assert.Equal(t, 0, h.ClientCount())
}

func TestHub_IncomingRoutedToCallback(t *testing.T) {
	h := NewHub(time.Second, 1)
	got := make(chan IncomingMessage, 1)
	h.OnIncoming = func(msg IncomingMessage) { got <- msg }
	go h.Run()
	defer h.Close()

	h.incoming <- IncomingMessage{From: "a", Event: EventPickupPile}

	select {
	case msg := <-got:
		assert.Equal(t, "a", msg.From)
		assert.Equal(t, EventPickupPile, msg.Event)
	case <-time.After(time.Second):
		t.Fatal("incoming message never reached the callback")
	}
}

// Handlers reply from inside the hub callbacks, so delivery must not loop
// back through the Run goroutine that invoked the callback.
func TestHub_CallbackCanReplyIntoHub(t *testing.T) {
	h := NewHub(time.Second, 1)
	h.OnIncoming = func(msg IncomingMessage) {
		h.SendToPlayer(msg.From, OutgoingMessage{Event: EventAck})
		h.BroadcastToPlayers([]string{"a", "b"}, OutgoingMessage{Event: EventNextTurn})
	}
	go h.Run()
	t.Cleanup(h.Close)

	a, b := newTestClient("a"), newTestClient("b")
	h.register <- a
	h.register <- b
	waitRegistered(t, h, 2)

	h.incoming <- IncomingMessage{From: "a", Event: EventPlayCard}

	want := map[string][]string{"a": {EventAck, EventNextTurn}, "b": {EventNextTurn}}
	for _, c := range []*Client{a, b} {
		for _, event := range want[c.ID] {
			select {
			case msg := <-c.Send:
				assert.Equal(t, event, msg.Event)
			case <-time.After(time.Second):
				t.Fatalf("client %s never received %s", c.ID, event)
			}
		}
	}
}

func TestHub_DisconnectCallbackCanBroadcast(t *testing.T) {
	h := NewHub(time.Second, 1)
	h.OnDisconnect = func(connID string) {
		h.BroadcastToPlayers([]string{"b"}, OutgoingMessage{Event: EventLobby, Data: connID})
	}
	go h.Run()
	t.Cleanup(h.Close)

	a, b := newTestClient("a"), newTestClient("b")
	h.register <- a
	h.register <- b
	waitRegistered(t, h, 2)

	h.unregister <- a

	select {
	case msg := <-b.Send:
		assert.Equal(t, EventLobby, msg.Event)
		assert.Equal(t, "a", msg.Data)
	case <-time.After(time.Second):
		t.Fatal("disconnect broadcast never reached the remaining client")
	}
}

func TestHub_SendWithAck_ResolvedByEcho(t *testing.T) {
	h := runHub(t, time.Second, 3)
	a := newTestClient("a")
	h.register <- a
	waitRegistered(t, h, 1)

	// fake client loop: echo the sequence number straight back
	go func() {
		msg := <-a.Send
		h.resolveAck("a", msg.Seq)
	}()

	err := h.SendWithAck(context.Background(), "a", OutgoingMessage{Event: EventGameOver})
	assert.NoError(t, err)
}

func TestHub_SendWithAck_RetriesThenFails(t *testing.T) {
	h := NewHub(10*time.Millisecond, 2)
	go h.Run()
	a := newTestClient("a")
	h.register <- a
	waitRegistered(t, h, 1)

	delivered := make(chan OutgoingMessage, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range a.Send {
			delivered <- msg
		}
	}()

	err := h.SendWithAck(context.Background(), "a", OutgoingMessage{Event: EventGameOver})
	assert.Error(t, err)

	h.Close()
	<-done
	assert.Len(t, delivered, 2, "one delivery per attempt")
}

func TestHub_SendWithAck_ContextCancelled(t *testing.T) {
	h := runHub(t, time.Minute, 3)
	a := newTestClient("a")
	h.register <- a
	waitRegistered(t, h, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-a.Send
		cancel()
	}()

	err := h.SendWithAck(ctx, "a", OutgoingMessage{Event: EventGameOver})
	assert.ErrorIs(t, err, context.Canceled)
}
