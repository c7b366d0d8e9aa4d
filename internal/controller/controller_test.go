package controller

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"topthat/internal/auth"
	"topthat/internal/game/manager"
	"topthat/internal/game/session"
	"topthat/internal/lobby"
	ws "topthat/internal/websocket"

	"github.com/stretchr/testify/assert"
)

// mockHub records every delivery per connection so tests can assert on the
// full outbound stream without a real socket.
type mockHub struct {
	mu    sync.Mutex
	sent  map[string][]ws.OutgoingMessage
	acked []ws.OutgoingMessage
}

func newMockHub() *mockHub {
	return &mockHub{sent: make(map[string][]ws.OutgoingMessage)}
}

func (m *mockHub) BroadcastToPlayers(connIDs []string, msg ws.OutgoingMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range connIDs {
		m.sent[id] = append(m.sent[id], msg)
	}
}

func (m *mockHub) SendToPlayer(connID string, msg ws.OutgoingMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[connID] = append(m.sent[connID], msg)
}

func (m *mockHub) SendWithAck(ctx context.Context, connID string, msg ws.OutgoingMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[connID] = append(m.sent[connID], msg)
	m.acked = append(m.acked, msg)
	return nil
}

func (m *mockHub) ClientByID(connID string) (*ws.Client, bool) { return nil, false }

func (m *mockHub) Close() {}

func (m *mockHub) messages(connID string) []ws.OutgoingMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ws.OutgoingMessage(nil), m.sent[connID]...)
}

func (m *mockHub) lastEvent(connID, event string) (ws.OutgoingMessage, bool) {
	msgs := m.messages(connID)
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Event == event {
			return msgs[i], true
		}
	}
	return ws.OutgoingMessage{}, false
}

func (m *mockHub) countEvent(connID, event string) int {
	n := 0
	for _, msg := range m.messages(connID) {
		if msg.Event == event {
			n++
		}
	}
	return n
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	assert.NoError(t, err)
	return b
}

func newStack(t *testing.T) (*Controller, *mockHub, *lobby.Service, *manager.GameManager) {
	t.Helper()
	hub := newMockHub()
	svc := lobby.NewService(lobby.NewMemoryRepo(), 4, 60)
	games := manager.NewGameManager(manager.Options{CPUDelay: 10 * time.Millisecond, CPUSpecialDelay: 10 * time.Millisecond})
	tokens := auth.NewTokens("test-secret", time.Hour)
	c := New(hub, svc, games, tokens)
	return c, hub, svc, games
}

func joinPlayer(t *testing.T, c *Controller, hub *mockHub, connID, name, roomCode string) JoinedPayload {
	t.Helper()
	payload := JoinGamePayload{PlayerName: name, NumHumans: 2, RoomID: roomCode}
	c.HandleMessage(ws.IncomingMessage{From: connID, Event: ws.EventJoinGame, Seq: 1, Data: raw(t, payload)})

	msg, ok := hub.lastEvent(connID, ws.EventJoined)
	assert.True(t, ok, "expected a joined event for %s", connID)
	joined, ok := msg.Data.(JoinedPayload)
	assert.True(t, ok)
	return joined
}

func TestController_JoinCreatesRoomAndIssuesToken(t *testing.T) {
	c, hub, _, _ := newStack(t)

	joined := joinPlayer(t, c, hub, "conn1", "Ana", "")
	assert.NotEmpty(t, joined.ID)
	assert.True(t, lobby.IsValidRoomCode(joined.RoomID))
	assert.NotEmpty(t, joined.Token)

	ackMsg, ok := hub.lastEvent("conn1", ws.EventAck)
	assert.True(t, ok)
	ack := ackMsg.Data.(ws.AckPayload)
	assert.True(t, ack.Success)
	assert.EqualValues(t, 1, ack.Seq)

	_, ok = hub.lastEvent("conn1", ws.EventLobby)
	assert.True(t, ok, "lobby snapshot follows a join")
}

func TestController_JoinRejectsBadPayload(t *testing.T) {
	c, hub, _, _ := newStack(t)

	c.HandleMessage(ws.IncomingMessage{From: "conn1", Event: ws.EventJoinGame, Seq: 7, Data: raw(t, JoinGamePayload{PlayerName: ""})})

	ackMsg, ok := hub.lastEvent("conn1", ws.EventAck)
	assert.True(t, ok)
	ack := ackMsg.Data.(ws.AckPayload)
	assert.False(t, ack.Success)
	assert.Equal(t, CodeInvalidPlayerName, ack.Code)

	_, ok = hub.lastEvent("conn1", ws.EventError)
	assert.True(t, ok, "failures are mirrored on the err channel")
}

func TestController_UnknownEvent(t *testing.T) {
	c, hub, _, _ := newStack(t)
	c.HandleMessage(ws.IncomingMessage{From: "conn1", Event: "no-such-event"})
	_, ok := hub.lastEvent("conn1", ws.EventError)
	assert.True(t, ok)
}

func TestController_StartBroadcastsPerViewerState(t *testing.T) {
	c, hub, _, _ := newStack(t)

	j1 := joinPlayer(t, c, hub, "conn1", "Ana", "")
	j2 := joinPlayer(t, c, hub, "conn2", "Ben", j1.RoomID)
	assert.Equal(t, j1.RoomID, j2.RoomID)

	c.HandleMessage(ws.IncomingMessage{From: "conn1", Event: ws.EventStartGame, Seq: 2, Data: raw(t, StartGamePayload{})})

	assert.Eventually(t, func() bool {
		return hub.countEvent("conn1", ws.EventStateUpdate) > 0 &&
			hub.countEvent("conn2", ws.EventStateUpdate) > 0
	}, time.Second, 5*time.Millisecond, "both seats get the deal snapshot")

	ackMsg, ok := hub.lastEvent("conn1", ws.EventAck)
	assert.True(t, ok)
	assert.True(t, ackMsg.Data.(ws.AckPayload).Success)
}

func TestController_StartRequiresHost(t *testing.T) {
	c, hub, _, _ := newStack(t)

	j1 := joinPlayer(t, c, hub, "conn1", "Ana", "")
	joinPlayer(t, c, hub, "conn2", "Ben", j1.RoomID)

	c.HandleMessage(ws.IncomingMessage{From: "conn2", Event: ws.EventStartGame, Seq: 3, Data: raw(t, StartGamePayload{})})

	ackMsg, ok := hub.lastEvent("conn2", ws.EventAck)
	assert.True(t, ok)
	assert.False(t, ackMsg.Data.(ws.AckPayload).Success)
}

func TestController_PlayOutOfTurnGetsCodedError(t *testing.T) {
	c, hub, _, games := newStack(t)

	j1 := joinPlayer(t, c, hub, "conn1", "Ana", "")
	joinPlayer(t, c, hub, "conn2", "Ben", j1.RoomID)
	c.HandleMessage(ws.IncomingMessage{From: "conn1", Event: ws.EventStartGame, Data: raw(t, StartGamePayload{})})

	r, ok := games.Runner(j1.RoomID)
	assert.True(t, ok)

	// figure out who is NOT on turn and have them act
	conn := "conn1"
	if r.Sess.CurrentPlayerID() == j1.ID {
		conn = "conn2"
	}
	c.HandleMessage(ws.IncomingMessage{From: conn, Event: ws.EventPlayCard, Seq: 4, Data: raw(t, PlayCardPayload{CardIndices: []int{0}, Zone: "hand"})})

	assert.Eventually(t, func() bool {
		msg, ok := hub.lastEvent(conn, ws.EventAck)
		if !ok {
			return false
		}
		ack := msg.Data.(ws.AckPayload)
		return !ack.Success && ack.Code == CodeNotYourTurn
	}, time.Second, 5*time.Millisecond)
}

func TestController_PickupAdvancesTurn(t *testing.T) {
	c, hub, _, games := newStack(t)

	j1 := joinPlayer(t, c, hub, "conn1", "Ana", "")
	joinPlayer(t, c, hub, "conn2", "Ben", j1.RoomID)
	c.HandleMessage(ws.IncomingMessage{From: "conn1", Event: ws.EventStartGame, Data: raw(t, StartGamePayload{})})

	r, ok := games.Runner(j1.RoomID)
	assert.True(t, ok)
	actorConn := "conn1"
	if r.Sess.CurrentPlayerID() != j1.ID {
		actorConn = "conn2"
	}

	c.HandleMessage(ws.IncomingMessage{From: actorConn, Event: ws.EventPickupPile, Seq: 5})

	assert.Eventually(t, func() bool {
		return hub.countEvent(actorConn, ws.EventPilePickedUp) > 0
	}, time.Second, 5*time.Millisecond)

	msg, ok := hub.lastEvent(actorConn, ws.EventAck)
	assert.True(t, ok)
	assert.True(t, msg.Data.(ws.AckPayload).Success)
}

func TestController_SoloHumanWithComputerSeat(t *testing.T) {
	c, hub, _, games := newStack(t)

	payload := JoinGamePayload{PlayerName: "Ana", NumHumans: 1, NumCPUs: 1}
	c.HandleMessage(ws.IncomingMessage{From: "conn1", Event: ws.EventJoinGame, Seq: 1, Data: raw(t, payload)})
	msg, ok := hub.lastEvent("conn1", ws.EventJoined)
	assert.True(t, ok)
	joined := msg.Data.(JoinedPayload)

	c.HandleMessage(ws.IncomingMessage{From: "conn1", Event: ws.EventStartGame, Seq: 2, Data: raw(t, StartGamePayload{})})

	r, ok := games.Runner(joined.RoomID)
	assert.True(t, ok)
	assert.Len(t, r.Sess.Players(), 2)

	assert.Eventually(t, func() bool {
		stateMsg, ok := hub.lastEvent("conn1", ws.EventStateUpdate)
		if !ok {
			return false
		}
		snap := stateMsg.Data.(session.Snapshot)
		return len(snap.Players) == 2 && snap.CurrentPlayerID != ""
	}, time.Second, 5*time.Millisecond, "deal snapshot lists both seats with a current player")

	// the computer seat eventually acts on its own
	assert.Eventually(t, func() bool {
		return hub.countEvent("conn1", ws.EventNextTurn) > 0 ||
			hub.countEvent("conn1", ws.EventCardPlayed) > 0 ||
			hub.countEvent("conn1", ws.EventPilePickedUp) > 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestController_RejoinRebindsConnection(t *testing.T) {
	c, hub, _, _ := newStack(t)

	j1 := joinPlayer(t, c, hub, "conn1", "Ana", "")
	joinPlayer(t, c, hub, "conn2", "Ben", j1.RoomID)
	c.HandleMessage(ws.IncomingMessage{From: "conn1", Event: ws.EventStartGame, Data: raw(t, StartGamePayload{})})

	assert.Eventually(t, func() bool {
		return hub.countEvent("conn1", ws.EventStateUpdate) > 0
	}, time.Second, 5*time.Millisecond)

	// socket dies mid-game, a fresh connection presents the token
	c.HandleDisconnect("conn1")
	c.HandleMessage(ws.IncomingMessage{From: "conn9", Event: ws.EventRejoin, Seq: 6, Data: raw(t, RejoinPayload{
		PlayerID: j1.ID, RoomID: j1.RoomID, Token: j1.Token,
	})})

	assert.Eventually(t, func() bool {
		msg, ok := hub.lastEvent("conn9", ws.EventAck)
		return ok && msg.Data.(ws.AckPayload).Success
	}, time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return hub.countEvent("conn9", ws.EventStateUpdate) > 0
	}, time.Second, 5*time.Millisecond, "rejoined connection receives state again")
}

func TestController_RejoinWithWrongTokenFails(t *testing.T) {
	c, hub, _, _ := newStack(t)

	j1 := joinPlayer(t, c, hub, "conn1", "Ana", "")
	joinPlayer(t, c, hub, "conn2", "Ben", j1.RoomID)
	c.HandleMessage(ws.IncomingMessage{From: "conn1", Event: ws.EventStartGame, Data: raw(t, StartGamePayload{})})

	c.HandleMessage(ws.IncomingMessage{From: "conn9", Event: ws.EventRejoin, Seq: 8, Data: raw(t, RejoinPayload{
		PlayerID: j1.ID, RoomID: j1.RoomID, Token: "forged",
	})})

	msg, ok := hub.lastEvent("conn9", ws.EventAck)
	assert.True(t, ok)
	ack := msg.Data.(ws.AckPayload)
	assert.False(t, ack.Success)
	assert.Equal(t, CodeRejoinFailed, ack.Code)
}

func TestController_SecondJoinFromSameConnectionRejected(t *testing.T) {
	c, hub, _, _ := newStack(t)

	joinPlayer(t, c, hub, "conn1", "Ana", "")
	c.HandleMessage(ws.IncomingMessage{From: "conn1", Event: ws.EventJoinGame, Seq: 2, Data: raw(t, JoinGamePayload{
		PlayerName: "Ana", NumHumans: 2,
	})})

	msg, ok := hub.lastEvent("conn1", ws.EventAck)
	assert.True(t, ok)
	ack := msg.Data.(ws.AckPayload)
	assert.False(t, ack.Success)
	assert.Equal(t, CodeDuplicateJoin, ack.Code)
}

func TestController_RejoinBindsPreStartSeat(t *testing.T) {
	c, hub, svc, _ := newStack(t)

	j1 := joinPlayer(t, c, hub, "conn1", "Ana", "")
	// a seat created over the REST fallback has no live socket yet
	_, rest, err := svc.Join(context.Background(), lobby.JoinRequest{
		ConnectionID: "rest-uuid", Name: "Ben", RoomCode: j1.RoomID,
	})
	assert.NoError(t, err)

	c.HandleMessage(ws.IncomingMessage{From: "conn2", Event: ws.EventRejoin, Seq: 5, Data: raw(t, RejoinPayload{
		PlayerID: rest.ID, RoomID: j1.RoomID,
	})})

	msg, ok := hub.lastEvent("conn2", ws.EventAck)
	assert.True(t, ok)
	ack := msg.Data.(ws.AckPayload)
	assert.True(t, ack.Success)
	joined := ack.Data.(JoinedPayload)
	assert.Equal(t, rest.ID, joined.ID)
	assert.NotEmpty(t, joined.Token)
	assert.Equal(t, "conn2", rest.ConnectionID)

	_, ok = hub.lastEvent("conn2", ws.EventLobbyState)
	assert.True(t, ok, "the bound socket gets the lobby snapshot")

	// the seat is fully live: the host starts and the seat gets state
	c.HandleMessage(ws.IncomingMessage{From: "conn1", Event: ws.EventStartGame, Data: raw(t, StartGamePayload{})})
	assert.Eventually(t, func() bool {
		return hub.countEvent("conn2", ws.EventStateUpdate) > 0
	}, time.Second, 5*time.Millisecond)
}

func TestController_RejoinTokenForOtherRoom(t *testing.T) {
	c, hub, _, _ := newStack(t)

	j1 := joinPlayer(t, c, hub, "conn1", "Ana", "")
	j2 := joinPlayer(t, c, hub, "conn2", "Ben", "")

	c.HandleMessage(ws.IncomingMessage{From: "conn9", Event: ws.EventRejoin, Seq: 7, Data: raw(t, RejoinPayload{
		PlayerID: j1.ID, RoomID: j2.RoomID, Token: j1.Token,
	})})

	msg, ok := hub.lastEvent("conn9", ws.EventAck)
	assert.True(t, ok)
	ack := msg.Data.(ws.AckPayload)
	assert.False(t, ack.Success)
	assert.Equal(t, CodeInvalidRoomForRejoin, ack.Code)
}

func TestController_RejoinUnknownRoom(t *testing.T) {
	c, hub, _, _ := newStack(t)

	c.HandleMessage(ws.IncomingMessage{From: "conn9", Event: ws.EventRejoin, Seq: 9, Data: raw(t, RejoinPayload{
		PlayerID: "someone", RoomID: "ZZZZZZ",
	})})

	msg, ok := hub.lastEvent("conn9", ws.EventAck)
	assert.True(t, ok)
	ack := msg.Data.(ws.AckPayload)
	assert.False(t, ack.Success)
	assert.Equal(t, CodeRoomNotFound, ack.Code)
}

func TestController_DisconnectBeforeStartLeavesLobby(t *testing.T) {
	c, hub, svc, _ := newStack(t)

	j1 := joinPlayer(t, c, hub, "conn1", "Ana", "")
	joinPlayer(t, c, hub, "conn2", "Ben", j1.RoomID)

	c.HandleDisconnect("conn2")
	room, ok := svc.Room(j1.RoomID)
	assert.True(t, ok)
	assert.Len(t, room.Players, 1)

	c.HandleDisconnect("conn1")
	_, ok = svc.Room(j1.RoomID)
	assert.False(t, ok, "last leaver destroys the room")
}

func TestController_GameOverTearsDownRoom(t *testing.T) {
	c, hub, svc, games := newStack(t)

	j1 := joinPlayer(t, c, hub, "conn1", "Ana", "")
	joinPlayer(t, c, hub, "conn2", "Ben", j1.RoomID)
	c.HandleMessage(ws.IncomingMessage{From: "conn1", Event: ws.EventStartGame, Data: raw(t, StartGamePayload{})})

	r, ok := games.Runner(j1.RoomID)
	assert.True(t, ok)

	// shed every card of the current player so their next play ends it
	winner := r.Sess.CurrentPlayerID()
	for _, p := range r.Sess.Players() {
		if p.ID == winner {
			p.SetHand(p.Hand()[:1])
			p.SetUpCards(nil)
			p.SetDownCards(nil)
		}
	}
	winnerConn := "conn1"
	if winner != j1.ID {
		winnerConn = "conn2"
	}
	c.HandleMessage(ws.IncomingMessage{From: winnerConn, Event: ws.EventPlayCard, Seq: 10, Data: raw(t, PlayCardPayload{CardIndices: []int{0}, Zone: "hand"})})

	assert.Eventually(t, func() bool {
		return hub.countEvent(winnerConn, ws.EventGameOver) > 0
	}, 2*time.Second, 5*time.Millisecond, "winner is told the game is over")

	assert.Eventually(t, func() bool {
		_, stillRunning := games.Runner(j1.RoomID)
		_, stillLobby := svc.Room(j1.RoomID)
		return !stillRunning && !stillLobby
	}, 2*time.Second, 5*time.Millisecond, "room is torn down after game over")
}
