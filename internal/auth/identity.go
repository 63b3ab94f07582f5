// Package auth parses the identity token the hosting page injects into the
// client. The token carries the numeric account id and the role the client
// acts as; without both, no channel is ever opened.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/real-rm/counselbox/internal/envelope"
)

var (
	// ErrInvalidToken is returned when the token is malformed or invalid
	ErrInvalidToken = errors.New("invalid identity token")
	// ErrExpiredToken is returned when the token has expired
	ErrExpiredToken = errors.New("identity token has expired")
	// ErrMissingClaims is returned when required claims are missing
	ErrMissingClaims = errors.New("missing required identity claims")
)

// Verifier validates identity tokens.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier with the given HMAC secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// ParseIdentity validates a token and extracts the local identity.
// It verifies the signature and expiration, and requires the account_id and
// role claims.
func (v *Verifier) ParseIdentity(tokenString string) (envelope.Identity, error) {
	if tokenString == "" {
		return envelope.Identity{}, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method: %v", ErrInvalidToken, token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return envelope.Identity{}, fmt.Errorf("%w: %v", ErrExpiredToken, err)
		}
		return envelope.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return envelope.Identity{}, fmt.Errorf("%w: token is not valid", ErrInvalidToken)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return envelope.Identity{}, fmt.Errorf("%w: unable to parse claims", ErrInvalidToken)
	}

	// account_id arrives as a JSON number
	accountID, ok := mapClaims["account_id"].(float64)
	if !ok || accountID == 0 {
		return envelope.Identity{}, fmt.Errorf("%w: account_id claim missing or invalid", ErrMissingClaims)
	}

	roleStr, _ := mapClaims["role"].(string)
	role := envelope.SenderType(roleStr)
	if role != envelope.SenderAgent && role != envelope.SenderUser {
		return envelope.Identity{}, fmt.Errorf("%w: role claim missing or invalid", ErrMissingClaims)
	}

	name, _ := mapClaims["name"].(string)

	id := envelope.Identity{
		ID:   int64(accountID),
		Role: role,
		Name: name,
	}
	if !id.Valid() {
		return envelope.Identity{}, fmt.Errorf("%w: identity incomplete", ErrMissingClaims)
	}
	return id, nil
}

// SignIdentity mints a token for the given identity. Used by the simulator's
// login surface and by tests; production tokens come from the hosting page.
func SignIdentity(id envelope.Identity, secret string, ttl time.Duration) (string, error) {
	if !id.Valid() {
		return "", fmt.Errorf("%w: identity incomplete", ErrMissingClaims)
	}
	claims := jwt.MapClaims{
		"account_id": id.ID,
		"role":       string(id.Role),
		"exp":        time.Now().Add(ttl).Unix(),
	}
	if id.Name != "" {
		claims["name"] = id.Name
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
