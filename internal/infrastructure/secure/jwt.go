package secure

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

type TokenCodec struct {
	JWTSecret []byte
}

func NewTokenCodec(secret []byte) *TokenCodec {
	if len(secret) == 0 {
		panic("TokenCodec: secret is empty")
	}
	return &TokenCodec{
		JWTSecret: secret,
	}
}

// DecodeToken parses and validates the token but returns the underlying jwt
// error unwrapped, so callers can classify failures (expired vs malformed)
// with errors.Is.
func (c *TokenCodec) DecodeToken(tokenStr string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		method, ok := t.Method.(*jwt.SigningMethodHMAC)
		if !ok || method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return c.JWTSecret, nil
	})
	if err != nil {
		return fmt.Errorf("TokenCodec.DecodeToken: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("TokenCodec.DecodeToken: %w", jwt.ErrTokenUnverifiable)
	}

	return nil
}

func (c *TokenCodec) GenerateToken(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(c.JWTSecret)
	if err != nil {
		return "", fmt.Errorf("TokenCodec.GenerateToken: %w", err)
	}
	return tokenStr, nil
}
