package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokens_RoundTrip(t *testing.T) {
	tk := NewTokens("secret", time.Hour)
	signed, err := tk.Issue("player-1", "AB12CD")
	assert.NoError(t, err)

	pid, room, err := tk.Verify(signed)
	assert.NoError(t, err)
	assert.Equal(t, "player-1", pid)
	assert.Equal(t, "AB12CD", room)
}

func TestTokens_WrongSecretRejected(t *testing.T) {
	signed, err := NewTokens("secret-a", time.Hour).Issue("player-1", "AB12CD")
	assert.NoError(t, err)

	_, _, err = NewTokens("secret-b", time.Hour).Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokens_GarbageRejected(t *testing.T) {
	tk := NewTokens("secret", time.Hour)
	for _, tok := range []string{"", "not-a-jwt", "aaa.bbb.ccc"} {
		_, _, err := tk.Verify(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", tok)
	}
}

func TestTokens_ExpiredRejected(t *testing.T) {
	tk := &Tokens{secret: []byte("secret"), ttl: -time.Minute}
	signed, err := tk.Issue("player-1", "AB12CD")
	assert.NoError(t, err)

	_, _, err = tk.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
