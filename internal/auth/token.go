package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Tokens issues the ephemeral rejoin credentials handed out on join. The
// claims bind a stable player id to one room, so a reconnecting client can
// prove it owns a seat without any account system behind it.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

var ErrInvalidToken = errors.New("invalid or expired rejoin token")

func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Tokens{secret: []byte(secret), ttl: ttl}
}

func (t *Tokens) Issue(playerID, roomCode string) (string, error) {
	claims := jwt.MapClaims{
		"sub":  playerID,
		"room": roomCode,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(t.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign rejoin token: %w", err)
	}
	return signed, nil
}

// Verify returns the player id and room code carried by the token.
func (t *Tokens) Verify(tokenStr string) (playerID, roomCode string, err error) {
	token, err := jwt.Parse(tokenStr, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return "", "", ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", ErrInvalidToken
	}
	playerID, _ = claims["sub"].(string)
	roomCode, _ = claims["room"].(string)
	if playerID == "" || roomCode == "" {
		return "", "", ErrInvalidToken
	}
	return playerID, roomCode, nil
}
