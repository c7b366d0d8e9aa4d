package controller

import (
	"encoding/json"
	"errors"
	"strings"
)

// Every inbound event decodes into exactly one of these payload structs
// and is validated here, before any game logic sees it. Client-computed
// counts and ids are re-checked server-side regardless of what the client
// claims to have validated.

type JoinGamePayload struct {
	PlayerName string `json:"playerName"`
	NumHumans  int    `json:"numHumans"`
	NumCPUs    int    `json:"numCPUs"`
	RoomID     string `json:"roomId,omitempty"`
}

type StartGamePayload struct {
	ComputerCount *int `json:"computerCount,omitempty"`
}

type PlayCardPayload struct {
	CardIndices []int  `json:"cardIndices"`
	Zone        string `json:"zone"`
}

type RejoinPayload struct {
	PlayerID string `json:"playerId"`
	RoomID   string `json:"roomId"`
	Token    string `json:"token,omitempty"`
}

type PlayerReadyPayload struct {
	Ready bool `json:"ready"`
}

// JoinedPayload confirms a join and hands the client its identity plus the
// rejoin token it will need after a disconnect.
type JoinedPayload struct {
	ID     string `json:"id"`
	RoomID string `json:"roomId"`
	Token  string `json:"token"`
}

type SpecialCardPayload struct {
	CardValue string `json:"cardValue"`
	Type      string `json:"type"`
}

type GameOverPayload struct {
	WinnerID   string `json:"winnerId"`
	WinnerName string `json:"winnerName"`
}

type CardPlayedPayload struct {
	PlayerID string `json:"playerId"`
	Cards    any    `json:"cards"`
}

type PilePickedUpPayload struct {
	PlayerID string `json:"playerId"`
	Forced   bool   `json:"forced"`
}

var errBadPayload = errors.New("malformed event payload")

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, errBadPayload
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, errBadPayload
	}
	return v, nil
}

func (p JoinGamePayload) validate(maxPlayers int) (code string, err error) {
	if strings.TrimSpace(p.PlayerName) == "" || len(p.PlayerName) > 20 {
		return CodeInvalidPlayerName, errors.New("player name must be 1-20 characters")
	}
	creating := p.RoomID == ""
	if creating {
		if p.NumHumans < 1 || p.NumCPUs < 0 {
			return CodeInvalidPlayerCount, errors.New("invalid player counts")
		}
		if p.NumHumans+p.NumCPUs < 2 || p.NumHumans+p.NumCPUs > maxPlayers {
			return CodeInvalidPlayerCount, errors.New("a game needs 2 to 4 players")
		}
	}
	return "", nil
}

func (p PlayCardPayload) validate() error {
	switch p.Zone {
	case "hand", "up":
		if len(p.CardIndices) == 0 || len(p.CardIndices) > 4 {
			return errors.New("cardIndices must name 1-4 cards")
		}
		for _, i := range p.CardIndices {
			if i < 0 {
				return errors.New("negative card index")
			}
		}
	case "down":
		// blind play, indices ignored
	default:
		return errors.New("zone must be hand, up, or down")
	}
	return nil
}

func (p RejoinPayload) validate() error {
	if strings.TrimSpace(p.PlayerID) == "" || strings.TrimSpace(p.RoomID) == "" {
		return errors.New("playerId and roomId are required")
	}
	return nil
}
