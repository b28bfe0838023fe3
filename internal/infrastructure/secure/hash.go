package secure

import (
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
)

var ErrMismatchedHashAndToken = fmt.Errorf("mismatched hash and token")

func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

// TokenHasher hashes refresh tokens before they hit storage, so a leaked
// session table does not yield usable credentials.
type TokenHasher struct{}

func NewTokenHasher() *TokenHasher {
	return &TokenHasher{}
}

func (h *TokenHasher) HashRefreshToken(token []byte) ([]byte, error) {
	defer ZeroBytes(token)
	hash, err := bcrypt.GenerateFromPassword(token, bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("secure.HashRefreshToken: %w", err)
	}

	return hash, nil
}

func (h *TokenHasher) CheckRefreshToken(token []byte, hash string) error {
	defer ZeroBytes(token)
	if err := bcrypt.CompareHashAndPassword([]byte(hash), token); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("secure.CheckRefreshToken: %w", ErrMismatchedHashAndToken)
		}
		return fmt.Errorf("secure.CheckRefreshToken: %w", err)
	}

	return nil
}
