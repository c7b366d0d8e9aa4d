package controller

import (
	"errors"

	"topthat/internal/game/player"
	"topthat/internal/game/session"
	"topthat/internal/lobby"
)

// Stable error codes shared with the client. Kept as plain strings so the
// browser can switch on them without another mapping layer.
const (
	CodeInvalidPayload       = "INVALID_PAYLOAD"
	CodeGameFull             = "GAME_FULL"
	CodeGameAlreadyStarted   = "GAME_ALREADY_STARTED"
	CodeDuplicateJoin        = "DUPLICATE_JOIN"
	CodeRoomNotFound         = "ROOM_NOT_FOUND"
	CodePlayerNotFound       = "PLAYER_NOT_FOUND"
	CodeInvalidPlayerName    = "INVALID_PLAYER_NAME"
	CodeInvalidRejoinData    = "INVALID_REJOIN_DATA"
	CodeRejoinFailed         = "REJOIN_FAILED"
	CodeInvalidRoomForRejoin = "INVALID_ROOM_FOR_REJOIN"
	CodeTimeout              = "TIMEOUT"
	CodeInvalidPlayerCount   = "INVALID_PLAYER_COUNT"
	CodeInvalidRoomCode      = "INVALID_ROOM_CODE"
	CodeNotYourTurn          = "NOT_YOUR_TURN"
	CodeInvalidPlay          = "INVALID_PLAY"
)

// codeFor maps internal errors onto the stable client-facing codes.
func codeFor(err error) string {
	switch {
	case errors.Is(err, lobby.ErrRoomNotFound):
		return CodeRoomNotFound
	case errors.Is(err, lobby.ErrRoomFull):
		return CodeGameFull
	case errors.Is(err, lobby.ErrAlreadyStarted):
		return CodeGameAlreadyStarted
	case errors.Is(err, lobby.ErrDuplicateJoin):
		return CodeDuplicateJoin
	case errors.Is(err, lobby.ErrInvalidName):
		return CodeInvalidPlayerName
	case errors.Is(err, lobby.ErrInvalidRoomCode):
		return CodeInvalidRoomCode
	case errors.Is(err, lobby.ErrInvalidPlayerCount):
		return CodeInvalidPlayerCount
	case errors.Is(err, lobby.ErrNotHost):
		return CodeInvalidPayload
	case errors.Is(err, lobby.ErrPlayerNotFound):
		return CodePlayerNotFound
	case errors.Is(err, session.ErrNotYourTurn):
		return CodeNotYourTurn
	case errors.Is(err, session.ErrInvalidPlay),
		errors.Is(err, session.ErrInvalidZone),
		errors.Is(err, player.ErrEmptyZone),
		errors.Is(err, player.ErrZoneNotActive):
		return CodeInvalidPlay
	case errors.Is(err, session.ErrPlayerNotFound):
		return CodePlayerNotFound
	default:
		return CodeInvalidPayload
	}
}
