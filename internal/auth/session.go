// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Signing keys for session tokens. Generated fresh at startup; a restart
// invalidates outstanding tokens, which simply makes clients reconnect as
// guests again.
var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	tokenExpireSec int
)

// Init generates the ed25519 key pair and reads TOKEN_EXPIRE_TIME
// ("never", "0", empty, or a Go duration string).
func Init() error {
	var err error
	publicKey, privateKey, err = ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("generate ed25519 key pair: %w", err)
	}
	raw := os.Getenv("TOKEN_EXPIRE_TIME")
	if raw == "" || raw == "never" || raw == "0" {
		tokenExpireSec = 0
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse TOKEN_EXPIRE_TIME: %w", err)
	}
	tokenExpireSec = int(d.Seconds())
	return nil
}

// Identity is the authenticated user attached to a connection before the
// game core runs: a stable id plus a display name.
type Identity struct {
	UserID string
	Name   string
}

// NewGuest mints an ephemeral identity for an unauthenticated connection.
func NewGuest(name string) Identity {
	id := uuid.NewString()
	if name == "" {
		name = "guest-" + id[:8]
	}
	return Identity{UserID: id, Name: name}
}

// CreateToken signs a session token carrying the identity. Clients present
// it on reconnect so the same seat can be resumed.
func CreateToken(ident Identity) (string, error) {
	claims := jwt.MapClaims{
		"sub":  ident.UserID,
		"name": ident.Name,
	}
	if tokenExpireSec > 0 {
		claims["exp"] = time.Now().Add(time.Duration(tokenExpireSec) * time.Second).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// VerifyToken validates a session token and returns the embedded identity.
func VerifyToken(tokenString string) (Identity, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("parse session token: %w", err)
	}
	if !t.Valid {
		return Identity{}, fmt.Errorf("invalid session token")
	}
	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, fmt.Errorf("invalid session claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return Identity{}, fmt.Errorf("missing sub in session token")
	}
	name, _ := claims["name"].(string)
	return Identity{UserID: sub, Name: name}, nil
}
