package backend

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

type claims struct {
	Type string `json:"type"`
	CSRF string `json:"csrf,omitempty"`
	Gen  int    `json:"gen"`
	jwt.RegisteredClaims
}

var errWrongTokenType = errors.New("wrong token type")

func (b *Backend) sign(userID, tokenType, csrf string, ttl time.Duration, gen int) (string, error) {
	now := b.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Type: tokenType,
		CSRF: csrf,
		Gen:  gen,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(b.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

func (b *Backend) parse(raw, tokenType string) (*claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return b.signingKey, nil
	}, jwt.WithTimeFunc(b.now))
	if err != nil {
		return nil, err
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if c.Type != tokenType {
		return nil, errWrongTokenType
	}
	return c, nil
}
