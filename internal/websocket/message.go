package websocket

import "encoding/json"

// Event names shared with the browser client.
const (
	EventJoinGame		= "join-game"
	EventJoined		= "joined"
	EventPlayerJoined	= "player-joined"
	EventLobby		= "lobby"
	EventLobbyState		= "lobby-state-update"
	EventPlayerReady	= "player-ready"
	EventStartGame		= "start-game"
	EventStateUpdate	= "state-update"
	EventRejoin		= "rejoin"
	EventPlayCard		= "play-card"
	EventPickupPile		= "pickup-pile"
	EventCardPlayed		= "card-played"
	EventPilePickedUp	= "pile-picked-up"
	EventSpecialCard	= "special-card"
	EventNextTurn		= "next-turn"
	EventGameOver		= "game-over"
	EventError		= "err"
	EventAck		= "ack"
)

// OutgoingMessage is the server→client envelope. Seq is non-zero when the
// server expects an acknowledgment back.
type OutgoingMessage struct {
	Event string `json:"event"`
	Seq   uint64 `json:"seq,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// IncomingMessage is the client→server envelope. Data stays raw until the
// controller decodes it into the typed payload for the event. From is the
// transient connection id, stamped by the hub, never trusted from payload.
type IncomingMessage struct {
	From  string          `json:"-"`
	Event string          `json:"event"`
	Seq   uint64          `json:"seq,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// AckPayload is the uniform {success, data|error, code} response attached
// to every mutating client request, and the body clients echo back for
// server-initiated acknowledged sends.
type AckPayload struct {
	Seq     uint64 `json:"seq"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}
