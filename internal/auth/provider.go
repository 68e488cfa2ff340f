// Package auth verifies who is calling. The engine never sees tokens; the
// HTTP layer resolves a player id here and passes only the id inward.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/coder/quartz"
	jwtgo "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer is the iss claim on every token.
const Issuer = "holdemtable"

var ErrUnauthorized = errors.New("unauthorized")

// Provider resolves a bearer token to a player id.
type Provider interface {
	Verify(token string) (string, error)
}

// JWTProvider issues and verifies HS256 tokens whose subject is the player id.
type JWTProvider struct {
	secret []byte
	ttl    time.Duration
	clock  quartz.Clock
}

func NewJWTProvider(secret string, ttl time.Duration, clock quartz.Clock) (*JWTProvider, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTProvider{secret: []byte(secret), ttl: ttl, clock: clock}, nil
}

func (p *JWTProvider) Issue(playerID string) (string, error) {
	now := p.clock.Now()
	token := jwtgo.NewWithClaims(jwtgo.SigningMethodHS256, jwtgo.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    Issuer,
		Subject:   playerID,
		IssuedAt:  jwtgo.NewNumericDate(now),
		ExpiresAt: jwtgo.NewNumericDate(now.Add(p.ttl)),
	})
	return token.SignedString(p.secret)
}

// Verify returns ErrUnauthorized, wrapping the parse failure, for any token
// that is malformed, expired, foreign or signed with another method.
func (p *JWTProvider) Verify(signed string) (string, error) {
	claims := &jwtgo.RegisteredClaims{}
	token, err := jwtgo.ParseWithClaims(signed, claims, func(token *jwtgo.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwtgo.SigningMethodHMAC); !ok {
			return nil, errors.New("expected HS256 signing method")
		}
		return p.secret, nil
	},
		jwtgo.WithIssuer(Issuer),
		jwtgo.WithExpirationRequired(),
		jwtgo.WithTimeFunc(func() time.Time { return p.clock.Now() }),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrUnauthorized
	}
	return claims.Subject, nil
}
