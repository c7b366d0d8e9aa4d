package storage

import (
	"context"
	"database/sql"
	"time"
)

// GameResult is the archive row written when a game finishes. Live game
// state is never persisted; this is history only.
type GameResult struct {
	RoomCode    string
	WinnerID    string
	WinnerName  string
	PlayerCount int
	StartedAt   time.Time
	FinishedAt  time.Time
}

func ensureResultsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS game_results (
			id           BIGSERIAL PRIMARY KEY,
			room_code    TEXT NOT NULL,
			winner_id    TEXT NOT NULL,
			winner_name  TEXT NOT NULL,
			player_count INT  NOT NULL,
			started_at   TIMESTAMPTZ NOT NULL,
			finished_at  TIMESTAMPTZ NOT NULL
		)`)
	return err
}

// ResultStore archives finished games. A nil store (no DSN configured)
// skips archiving silently.
type ResultStore struct {
	db *sql.DB
}

func NewResultStore(db *sql.DB) *ResultStore {
	if db == nil {
		return nil
	}
	return &ResultStore{db: db}
}

func (s *ResultStore) Save(ctx context.Context, r GameResult) error {
	if s == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO game_results (room_code, winner_id, winner_name, player_count, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.RoomCode, r.WinnerID, r.WinnerName, r.PlayerCount, r.StartedAt, r.FinishedAt)
	return err
}
