package controller

import (
	"context"
	"strings"
	"sync"

	"topthat/internal/auth"
	"topthat/internal/game/manager"
	"topthat/internal/game/session"
	"topthat/internal/lobby"
	"topthat/internal/utils"
	ws "topthat/internal/websocket"
)

// identity binds a transient connection to a stable player. The two ids
// are decoupled on purpose: the connection id dies with the socket, the
// player id survives and is rebound on rejoin.
type identity struct {
	PlayerID string
	RoomCode string
}

// Controller is the network-facing layer. It owns the connection-to-player
// mapping and is the only place where lobby and game state meet the hub;
// neither of those ever reaches outward to the transport.
type Controller struct {
	hub    ws.HubInterface
	lobby  *lobby.Service
	games  *manager.GameManager
	tokens *auth.Tokens

	mu           sync.RWMutex
	connToPlayer map[string]identity
	playerToConn map[string]string
}

func New(hub ws.HubInterface, lobbySvc *lobby.Service, games *manager.GameManager, tokens *auth.Tokens) *Controller {
	c := &Controller{
		hub:          hub,
		lobby:        lobbySvc,
		games:        games,
		tokens:       tokens,
		connToPlayer: make(map[string]identity),
		playerToConn: make(map[string]string),
	}
	lobbySvc.OnRoomStart = games.StartRoom
	games.SetHooks(manager.Hooks{
		OnChange:   c.broadcastGame,
		OnGameOver: c.finishRoom,
	})
	return c
}

// HandleMessage is the single entry point for client events (wired to
// Hub.OnIncoming). Everything mutating is dispatched onto the room's own
// loop, so per-room processing stays strictly serial.
func (c *Controller) HandleMessage(msg ws.IncomingMessage) {
	switch msg.Event {
	case ws.EventJoinGame:
		c.handleJoin(msg)
	case ws.EventPlayerReady:
		c.handleReady(msg)
	case ws.EventStartGame:
		c.handleStart(msg)
	case ws.EventPlayCard:
		c.handlePlay(msg)
	case ws.EventPickupPile:
		c.handlePickup(msg)
	case ws.EventRejoin:
		c.handleRejoin(msg)
	default:
		c.sendError(msg.From, "unknown event: "+msg.Event)
	}
}

// HandleDisconnect is wired to Hub.OnDisconnect. Pre-game it is a lobby
// leave; mid-game the seat is only marked disconnected and skipped in turn
// order, with everything kept for rejoin.
func (c *Controller) HandleDisconnect(connID string) {
	c.mu.Lock()
	id, known := c.connToPlayer[connID]
	delete(c.connToPlayer, connID)
	if known && c.playerToConn[id.PlayerID] == connID {
		delete(c.playerToConn, id.PlayerID)
	}
	c.mu.Unlock()

	if !known {
		return
	}

	if r, ok := c.games.Runner(id.RoomCode); ok {
		r.SubmitDisconnect(id.PlayerID)
		return
	}

	if room, changed := c.lobby.Leave(context.Background(), connID); changed && room != nil {
		c.broadcastLobby(room)
	}
}

func (c *Controller) handleJoin(msg ws.IncomingMessage) {
	payload, err := decode[JoinGamePayload](msg.Data)
	if err != nil {
		c.reject(msg, CodeInvalidPayload, "malformed join-game payload")
		return
	}
	if code, verr := payload.validate(c.lobby.MaxPlayers()); verr != nil {
		c.reject(msg, code, verr.Error())
		return
	}

	room, p, err := c.lobby.Join(context.Background(), lobby.JoinRequest{
		ConnectionID: msg.From,
		Name:         payload.PlayerName,
		RoomCode:     strings.ToUpper(strings.TrimSpace(payload.RoomID)),
		NumCPUs:      payload.NumCPUs,
	})
	if err != nil {
		c.reject(msg, codeFor(err), err.Error())
		return
	}

	c.mu.Lock()
	c.connToPlayer[msg.From] = identity{PlayerID: p.ID, RoomCode: room.Code}
	c.playerToConn[p.ID] = msg.From
	c.mu.Unlock()

	token, err := c.tokens.Issue(p.ID, room.Code)
	if err != nil {
		utils.Error.Printf("issue rejoin token for %s: %v", p.ID, err)
	}
	joined := JoinedPayload{ID: p.ID, RoomID: room.Code, Token: token}
	c.ack(msg.From, msg.Seq, true, joined, "", "")
	c.hub.SendToPlayer(msg.From, ws.OutgoingMessage{Event: ws.EventJoined, Data: joined})

	names := make([]string, 0, len(room.Players))
	for _, rp := range room.Players {
		names = append(names, rp.Name)
	}
	conns := c.lobbyConns(room)
	c.hub.BroadcastToPlayers(conns, ws.OutgoingMessage{Event: ws.EventPlayerJoined, Data: names})
	c.hub.BroadcastToPlayers(conns, ws.OutgoingMessage{Event: ws.EventLobby, Data: c.lobby.State(room)})
}

func (c *Controller) handleReady(msg ws.IncomingMessage) {
	payload, err := decode[PlayerReadyPayload](msg.Data)
	if err != nil {
		c.reject(msg, CodeInvalidPayload, "malformed player-ready payload")
		return
	}
	room, err := c.lobby.SetReady(context.Background(), msg.From, payload.Ready)
	if err != nil {
		c.reject(msg, codeFor(err), err.Error())
		return
	}
	c.ack(msg.From, msg.Seq, true, nil, "", "")
	c.broadcastLobby(room)
}

func (c *Controller) handleStart(msg ws.IncomingMessage) {
	payload, err := decode[StartGamePayload](msg.Data)
	if err != nil {
		// start-game with an empty body is fine; the lobby default applies
		payload = StartGamePayload{}
	}

	cpuCount := 0
	if room, ok := c.lobby.RoomByConnection(msg.From); ok {
		cpuCount = room.RequestedCPUs
	}
	if payload.ComputerCount != nil {
		cpuCount = *payload.ComputerCount
	}

	if _, err := c.lobby.Start(context.Background(), msg.From, cpuCount); err != nil {
		c.reject(msg, codeFor(err), err.Error())
		return
	}
	c.ack(msg.From, msg.Seq, true, nil, "", "")
}

func (c *Controller) handlePlay(msg ws.IncomingMessage) {
	id, ok := c.identityOf(msg.From)
	if !ok {
		c.reject(msg, CodePlayerNotFound, "join a game first")
		return
	}
	payload, err := decode[PlayCardPayload](msg.Data)
	if err != nil {
		c.reject(msg, CodeInvalidPayload, "malformed play-card payload")
		return
	}
	if err := payload.validate(); err != nil {
		c.reject(msg, CodeInvalidPayload, err.Error())
		return
	}
	r, ok := c.games.Runner(id.RoomCode)
	if !ok {
		c.reject(msg, CodeRoomNotFound, "no game in progress for this room")
		return
	}

	zone := session.Zone(payload.Zone)
	r.SubmitPlay(id.PlayerID, payload.CardIndices, zone, func(res *session.PlayResult, err error) {
		if err != nil {
			// rejection reaches the acting client only; state is untouched
			c.reject(msg, codeFor(err), err.Error())
			return
		}
		c.ack(msg.From, msg.Seq, true, nil, "", "")
	})
}

func (c *Controller) handlePickup(msg ws.IncomingMessage) {
	id, ok := c.identityOf(msg.From)
	if !ok {
		c.reject(msg, CodePlayerNotFound, "join a game first")
		return
	}
	r, ok := c.games.Runner(id.RoomCode)
	if !ok {
		c.reject(msg, CodeRoomNotFound, "no game in progress for this room")
		return
	}
	r.SubmitPickup(id.PlayerID, func(res *session.PlayResult, err error) {
		if err != nil {
			c.reject(msg, codeFor(err), err.Error())
			return
		}
		c.ack(msg.From, msg.Seq, true, nil, "", "")
	})
}

func (c *Controller) handleRejoin(msg ws.IncomingMessage) {
	payload, err := decode[RejoinPayload](msg.Data)
	if err != nil {
		c.reject(msg, CodeInvalidRejoinData, "malformed rejoin payload")
		return
	}
	if err := payload.validate(); err != nil {
		c.reject(msg, CodeInvalidRejoinData, err.Error())
		return
	}
	if payload.Token != "" {
		pid, room, terr := c.tokens.Verify(payload.Token)
		if terr != nil || pid != payload.PlayerID {
			c.reject(msg, CodeRejoinFailed, "rejoin token does not match")
			return
		}
		if room != payload.RoomID {
			c.reject(msg, CodeInvalidRoomForRejoin, "token was issued for a different room")
			return
		}
	}

	r, ok := c.games.Runner(payload.RoomID)
	if !ok {
		// no game yet; this may still be a valid pre-start seat (REST
		// fallback, or a socket that dropped before the host started)
		c.rejoinLobby(msg, payload)
		return
	}

	c.mu.Lock()
	// Rebind: an old mapping for this player (stale socket) gives way.
	if old, ok := c.playerToConn[payload.PlayerID]; ok {
		delete(c.connToPlayer, old)
	}
	c.connToPlayer[msg.From] = identity{PlayerID: payload.PlayerID, RoomCode: payload.RoomID}
	c.playerToConn[payload.PlayerID] = msg.From
	c.mu.Unlock()

	r.SubmitReconnect(payload.PlayerID, func(err error) {
		if err != nil {
			c.mu.Lock()
			delete(c.connToPlayer, msg.From)
			delete(c.playerToConn, payload.PlayerID)
			c.mu.Unlock()
			c.reject(msg, CodePlayerNotFound, "player has no seat in this room")
			return
		}
		c.ack(msg.From, msg.Seq, true, nil, "", "")
	})
}

// rejoinLobby binds a live socket to a pre-start lobby seat. The seat may
// have been created over REST with no socket at all, so this is the only
// way such a player ever reaches the room.
func (c *Controller) rejoinLobby(msg ws.IncomingMessage, payload RejoinPayload) {
	room, p, err := c.lobby.Rebind(context.Background(), payload.PlayerID, payload.RoomID, msg.From)
	if err != nil {
		c.reject(msg, codeFor(err), err.Error())
		return
	}

	c.mu.Lock()
	if old, ok := c.playerToConn[p.ID]; ok {
		delete(c.connToPlayer, old)
	}
	c.connToPlayer[msg.From] = identity{PlayerID: p.ID, RoomCode: room.Code}
	c.playerToConn[p.ID] = msg.From
	c.mu.Unlock()

	token, terr := c.tokens.Issue(p.ID, room.Code)
	if terr != nil {
		utils.Error.Printf("issue rejoin token for %s: %v", p.ID, terr)
	}
	c.ack(msg.From, msg.Seq, true, JoinedPayload{ID: p.ID, RoomID: room.Code, Token: token}, "", "")
	c.broadcastLobby(room)
}

// broadcastGame pushes per-viewer snapshots plus the event trail for one
// completed operation. Nothing here is sent mid-mutation; the runner calls
// it only between operations.
func (c *Controller) broadcastGame(sess *session.Session, res *session.PlayResult, actorID string) {
	conns := c.gameConns(sess)

	if res != nil {
		if len(res.PlayedCards) > 0 {
			c.hub.BroadcastToPlayers(conns, ws.OutgoingMessage{
				Event: ws.EventCardPlayed,
				Data:  CardPlayedPayload{PlayerID: actorID, Cards: res.PlayedCards},
			})
		}
		for _, eff := range res.Effects {
			c.hub.BroadcastToPlayers(conns, ws.OutgoingMessage{
				Event: ws.EventSpecialCard,
				Data:  SpecialCardPayload{CardValue: eff.Value, Type: eff.Type},
			})
		}
		if res.PickedUp {
			c.hub.BroadcastToPlayers(conns, ws.OutgoingMessage{
				Event: ws.EventPilePickedUp,
				Data:  PilePickedUpPayload{PlayerID: actorID, Forced: res.FailedDown != nil},
			})
		}
	}

	c.mu.RLock()
	for _, p := range sess.Players() {
		connID, ok := c.playerToConn[p.ID]
		if !ok {
			continue
		}
		c.hub.SendToPlayer(connID, ws.OutgoingMessage{
			Event: ws.EventStateUpdate,
			Data:  sess.SnapshotFor(p.ID),
		})
	}
	c.mu.RUnlock()

	if sess.Phase() == session.InProgress {
		c.hub.BroadcastToPlayers(conns, ws.OutgoingMessage{
			Event: ws.EventNextTurn,
			Data:  sess.CurrentPlayerID(),
		})
	}
}

// finishRoom announces the result and tears the room down. The game-over
// notice goes out with an acknowledged send per client; each wait runs on
// its own goroutine so the teardown never blocks on a slow client.
func (c *Controller) finishRoom(sess *session.Session) {
	winnerID := sess.Winner()
	winnerName := winnerID
	for _, p := range sess.Players() {
		if p.ID == winnerID {
			winnerName = p.Name
		}
	}
	over := ws.OutgoingMessage{
		Event: ws.EventGameOver,
		Data:  GameOverPayload{WinnerID: winnerID, WinnerName: winnerName},
	}
	for _, connID := range c.gameConns(sess) {
		go func(id string) {
			if err := c.hub.SendWithAck(context.Background(), id, over); err != nil {
				utils.Print.Warn("game-over not acknowledged", "conn", id, "err", err)
			}
		}(connID)
	}

	roomCode := sess.RoomCode
	c.mu.Lock()
	for _, p := range sess.Players() {
		if connID, ok := c.playerToConn[p.ID]; ok {
			delete(c.connToPlayer, connID)
			delete(c.playerToConn, p.ID)
		}
	}
	c.mu.Unlock()

	go func() {
		c.games.EndRoom(roomCode)
		c.lobby.Forget(context.Background(), roomCode)
	}()
}

func (c *Controller) broadcastLobby(room *lobby.Room) {
	c.hub.BroadcastToPlayers(c.lobbyConns(room), ws.OutgoingMessage{
		Event: ws.EventLobbyState,
		Data:  c.lobby.State(room),
	})
}

func (c *Controller) lobbyConns(room *lobby.Room) []string {
	conns := make([]string, 0, len(room.Players))
	for _, p := range room.Players {
		if p.ConnectionID != "" {
			conns = append(conns, p.ConnectionID)
		}
	}
	return conns
}

func (c *Controller) gameConns(sess *session.Session) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	conns := make([]string, 0, len(sess.Players()))
	for _, p := range sess.Players() {
		if connID, ok := c.playerToConn[p.ID]; ok {
			conns = append(conns, connID)
		}
	}
	return conns
}

func (c *Controller) identityOf(connID string) (identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.connToPlayer[connID]
	return id, ok
}

// reject acknowledges a failed request and mirrors the message on the err
// channel for clients that only listen there.
func (c *Controller) reject(msg ws.IncomingMessage, code, reason string) {
	c.ack(msg.From, msg.Seq, false, nil, reason, code)
	c.sendError(msg.From, reason)
}

func (c *Controller) ack(connID string, seq uint64, success bool, data any, errMsg, code string) {
	if seq == 0 {
		return
	}
	c.hub.SendToPlayer(connID, ws.OutgoingMessage{
		Event: ws.EventAck,
		Data: ws.AckPayload{
			Seq:     seq,
			Success: success,
			Data:    data,
			Error:   errMsg,
			Code:    code,
		},
	})
}

func (c *Controller) sendError(connID, message string) {
	c.hub.SendToPlayer(connID, ws.OutgoingMessage{Event: ws.EventError, Data: message})
}
