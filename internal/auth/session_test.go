// internal/auth/session_test.go
package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	require.NoError(t, Init())

	ident := NewGuest("alice")
	token, err := CreateToken(ident)
	require.NoError(t, err)

	got, err := VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, ident, got)
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	require.NoError(t, Init())

	_, err := VerifyToken("not-a-token")
	assert.Error(t, err)
}

func TestNewGuestDefaultsName(t *testing.T) {
	g := NewGuest("")
	assert.NotEmpty(t, g.UserID)
	assert.Contains(t, g.Name, "guest-")

	named := NewGuest("bob")
	assert.Equal(t, "bob", named.Name)
	assert.NotEqual(t, g.UserID, named.UserID)
}
