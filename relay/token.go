package main

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenUseAccess  = "access"
	tokenUseRefresh = "refresh"
)

// relayClaims are the JWT claims minted for extension clients. The relay
// is stateless about issued tokens: possession of a valid signature is
// the whole session.
type relayClaims struct {
	Email    string `json:"email,omitempty"`
	TokenUse string `json:"token_use"`
	jwt.RegisteredClaims
}

// TokenMinter signs and verifies the relay's own bearer tokens.
type TokenMinter struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenMinter(cfg *Config) *TokenMinter {
	return &TokenMinter{
		secret:     []byte(cfg.JWTSecret),
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
	}
}

// Mint issues an access/refresh token pair for the user.
func (m *TokenMinter) Mint(user *userIdentity) (*clientTokens, error) {
	access, err := m.sign(user, tokenUseAccess, m.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	refresh, err := m.sign(user, tokenUseRefresh, m.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &clientTokens{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(m.accessTTL.Seconds()),
		User:         user,
	}, nil
}

// VerifyAccess validates an access token and returns the user it was
// minted for.
func (m *TokenMinter) VerifyAccess(token string) (*userIdentity, error) {
	return m.verify(token, tokenUseAccess)
}

// VerifyRefresh validates a refresh token for the refresh endpoint.
func (m *TokenMinter) VerifyRefresh(token string) (*userIdentity, error) {
	return m.verify(token, tokenUseRefresh)
}

func (m *TokenMinter) sign(user *userIdentity, use string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := relayClaims{
		Email:    user.Email,
		TokenUse: use,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "add-to-calendar-relay",
			Subject:   user.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *TokenMinter) verify(tokenString, expectedUse string) (*userIdentity, error) {
	var claims relayClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer("add-to-calendar-relay"), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.TokenUse != expectedUse {
		return nil, fmt.Errorf("wrong token use: %s", claims.TokenUse)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token missing subject")
	}

	return &userIdentity{ID: claims.Subject, Email: claims.Email}, nil
}
