package websocket

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"topthat/internal/utils"
)

type HubInterface interface {
	BroadcastToPlayers(connIDs []string, msg OutgoingMessage)
	SendToPlayer(connID string, msg OutgoingMessage)
	SendWithAck(ctx context.Context, connID string, msg OutgoingMessage) error
	ClientByID(connID string) (*Client, bool)
	Close()
}

// Hub owns every live connection. Register/unregister/incoming funnel
// through Run so the client map is mutated from one goroutine; outbound
// delivery goes straight to the client send buffers under the read lock,
// so the OnIncoming and OnDisconnect callbacks may reply into the hub
// without deadlocking Run.
type Hub struct {
	clients    map[string]*Client // connection id -> client
	register   chan *Client
	unregister chan *Client
	incoming   chan IncomingMessage

	// OnIncoming hands player messages to the controller layer.
	OnIncoming func(IncomingMessage)
	// OnDisconnect fires after a connection is dropped from the map.
	OnDisconnect func(connID string)

	AckTimeout time.Duration
	AckRetries int

	seq     atomic.Uint64
	ackMu   sync.Mutex
	pending map[string]chan struct{} // connID:seq -> resolution

	quit chan struct{}
	mu   sync.RWMutex
}

func NewHub(ackTimeout time.Duration, ackRetries int) *Hub {
	if ackTimeout <= 0 {
		ackTimeout = 5 * time.Second
	}
	if ackRetries <= 0 {
		ackRetries = 3
	}
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		incoming:   make(chan IncomingMessage),
		pending:    make(map[string]chan struct{}),
		AckTimeout: ackTimeout,
		AckRetries: ackRetries,
		quit:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	utils.Print.Info("hub started")

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.ID] = c
			h.mu.Unlock()
			utils.Print.Info("connection registered", "conn", c.ID, "total", h.ClientCount())

		case c := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[c.ID]
			if ok {
				delete(h.clients, c.ID)
				close(c.Send)
			}
			h.mu.Unlock()
			if ok {
				utils.Print.Info("connection dropped", "conn", c.ID, "total", h.ClientCount())
				if h.OnDisconnect != nil {
					h.OnDisconnect(c.ID)
				}
			}

		case msg := <-h.incoming:
			if h.OnIncoming != nil {
				h.OnIncoming(msg)
			}

		case <-h.quit:
			h.mu.Lock()
			for _, c := range h.clients {
				close(c.Send)
			}
			h.clients = make(map[string]*Client)
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) BroadcastToPlayers(connIDs []string, msg OutgoingMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range connIDs {
		if client, ok := h.clients[id]; ok {
			select {
			case client.Send <- msg:
			default:
				// slow consumer; drop rather than stall the room
			}
		}
	}
}

func (h *Hub) SendToPlayer(connID string, msg OutgoingMessage) {
	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()
	if ok {
		select {
		case client.Send <- msg:
		default:
		}
	}
}

// SendWithAck delivers msg and waits for the client to echo the sequence
// number back, retrying with exponential backoff. The wait is scoped to
// this one call; nothing else in the room blocks on it.
func (h *Hub) SendWithAck(ctx context.Context, connID string, msg OutgoingMessage) error {
	msg.Seq = h.seq.Add(1)
	done := make(chan struct{})

	key := ackKey(connID, msg.Seq)
	h.ackMu.Lock()
	h.pending[key] = done
	h.ackMu.Unlock()
	defer func() {
		h.ackMu.Lock()
		delete(h.pending, key)
		h.ackMu.Unlock()
	}()

	wait := h.AckTimeout
	for attempt := 0; attempt < h.AckRetries; attempt++ {
		h.SendToPlayer(connID, msg)

		timer := time.NewTimer(wait)
		select {
		case <-done:
			timer.Stop()
			return nil
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			wait *= 2
		}
	}
	return fmt.Errorf("no ack from %s for %s after %d attempts", connID, msg.Event, h.AckRetries)
}

func (h *Hub) resolveAck(connID string, seq uint64) {
	h.ackMu.Lock()
	done, ok := h.pending[ackKey(connID, seq)]
	if ok {
		delete(h.pending, ackKey(connID, seq))
	}
	h.ackMu.Unlock()
	if ok {
		close(done)
	}
}

func ackKey(connID string, seq uint64) string {
	return fmt.Sprintf("%s:%d", connID, seq)
}

func (h *Hub) ClientByID(connID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[connID]
	return c, ok
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Close() {
	close(h.quit)
}
