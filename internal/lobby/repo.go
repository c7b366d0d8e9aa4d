package lobby

import (
	"context"
	"time"
)

// RoomRecord is the slim index entry persisted per room. The live Room with
// connection bindings lives in the Service; the record exists so rejoin
// lookups and room-code collisions can be answered cheaply.
type RoomRecord struct {
	Code      string    `json:"code"`
	PlayerIDs []string  `json:"playerIds"`
	Started   bool      `json:"started"`
	CreatedAt time.Time `json:"createdAt"`
}

// Repo indexes rooms and the player->room mapping used for rejoin.
type Repo interface {
	SaveRoom(ctx context.Context, rec *RoomRecord, ttlSeconds int) error
	GetRoom(ctx context.Context, code string) (*RoomRecord, error)
	DeleteRoom(ctx context.Context, code string) error
	SetPlayerRoom(ctx context.Context, playerID, code string, ttlSeconds int) error
	GetPlayerRoom(ctx context.Context, playerID string) (string, error)
	ClearPlayerRoom(ctx context.Context, playerID string) error
}
