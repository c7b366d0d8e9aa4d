package lobby

import (
	"regexp"
	"strings"
	"time"
)

// Player statuses inside a lobby. The host is implicitly always ready.
const (
	StatusHost   = "host"
	StatusJoined = "joined"
	StatusReady  = "ready"
)

type LobbyPlayer struct {
	ID           string    `json:"id"`
	ConnectionID string    `json:"-"`
	Name         string    `json:"name"`
	Ready        bool      `json:"ready"`
	Status       string    `json:"status"`
	IsCPU        bool      `json:"isCpu,omitempty"`
	JoinedAt     time.Time `json:"-"`
}

// Room is a pre-game lobby. Player order is join order, which doubles as
// the host re-election priority and the eventual turn order.
type Room struct {
	Code    string         `json:"roomId"`
	Players []*LobbyPlayer `json:"players"`
	HostID  string         `json:"hostId"`
	Started bool           `json:"started"`
	// RequestedCPUs is the computer-seat count asked for at room creation;
	// the host's start request can override it.
	RequestedCPUs int       `json:"-"`
	CreatedAt     time.Time `json:"-"`
}

// State is the lobby snapshot broadcast to the room on every change.
type State struct {
	RoomCode   string         `json:"roomId"`
	Players    []*LobbyPlayer `json:"players"`
	HostID     string         `json:"hostId"`
	MaxPlayers int            `json:"maxPlayers"`
}

// JoinRequest carries a validated join-game payload into the coordinator.
type JoinRequest struct {
	ConnectionID string
	Name         string
	RoomCode     string // empty means create a new room
	NumCPUs      int    // only meaningful when creating
}

var roomCodeRe = regexp.MustCompile(`^[A-Z0-9]{6}$`)

func IsValidRoomCode(code string) bool {
	return roomCodeRe.MatchString(strings.TrimSpace(code))
}

func IsValidPlayerName(name string) bool {
	trimmed := strings.TrimSpace(name)
	return len(trimmed) >= 1 && len(trimmed) <= 20
}

func (r *Room) Player(id string) *LobbyPlayer {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) PlayerByConnection(connID string) *LobbyPlayer {
	for _, p := range r.Players {
		if p.ConnectionID == connID && connID != "" {
			return p
		}
	}
	return nil
}

func (r *Room) HumanCount() int {
	n := 0
	for _, p := range r.Players {
		if !p.IsCPU {
			n++
		}
	}
	return n
}
