// Package auth issues and verifies the bearer tokens that bind a client of
// the document server to a user id.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/HarshGadhecha/SpendWise/internal/common"
	"github.com/HarshGadhecha/SpendWise/internal/service"
)

// DefaultIssuer is the iss claim used when none is configured.
const DefaultIssuer = "spendwise"

// ErrInvalidToken is returned for tokens that fail verification.
var ErrInvalidToken = errors.New("invalid token")

// Claims carries the identity fields alongside the registered claims.
type Claims struct {
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"name,omitempty"`
	PhotoURL    string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager signs and parses HS256 tokens.
type TokenManager struct {
	now    func() time.Time
	issuer string
	secret []byte
	ttl    time.Duration
}

// NewTokenManager creates a token manager. The secret must not be empty.
func NewTokenManager(secret, issuer string, ttl time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: jwt secret", common.ErrMissingConfig)
	}
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue signs a token for id that expires after the manager's TTL.
func (m *TokenManager) Issue(id service.Identity) (string, time.Time, error) {
	if id.UserID == "" {
		return "", time.Time{}, fmt.Errorf("%w: user id", common.ErrMissingField)
	}
	now := m.now()
	expiresAt := now.Add(m.ttl)

	claims := Claims{
		Email:       id.Email,
		DisplayName: id.DisplayName,
		PhotoURL:    id.PhotoURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   id.UserID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Authenticate implements service.Authenticator.
func (m *TokenManager) Authenticate(_ context.Context, tokenString string) (service.Identity, error) {
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return service.Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return service.Identity{}, ErrInvalidToken
	}

	return service.Identity{
		UserID:      claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
		PhotoURL:    claims.PhotoURL,
	}, nil
}
