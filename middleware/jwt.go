package middleware

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Service tokens are only accepted by the cache service they were minted for.
const (
	tokenIssuer   = "mmocache-gateway"
	tokenAudience = "mmocache"
)

// clockSkew tolerates drift between game server and cache service clocks.
const clockSkew = 5 * time.Second

// ErrInvalidToken is returned by ParseToken for every rejected token.
var ErrInvalidToken = errors.New("middleware: invalid service token")

// Claims is the JWT payload a game server presents to the cache service.
type Claims struct {
	Service string `json:"service"`
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 service token for service, valid for ttl.
func GenerateToken(service, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Service: service,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   service,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken validates a service token and returns its claims. Any failure
// wraps ErrInvalidToken.
func ParseToken(tokenStr, secret string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims,
		func(*jwt.Token) (interface{}, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Service == "" || claims.Subject != claims.Service {
		return nil, fmt.Errorf("%w: no service", ErrInvalidToken)
	}
	return claims, nil
}
