// Package auth implements the shared-password gate and the session token it issues.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidPassword = errors.New("wrong password")
	ErrEmptyPassword   = errors.New("password must not be empty")
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes")
)

// Gate checks submissions against the one shared password. Only a bcrypt hash
// is kept in memory.
type Gate struct {
	hash []byte
}

// NewGate hashes password once at startup.
func NewGate(password string) (*Gate, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	if len(password) > 72 {
		return nil, ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return &Gate{hash: hash}, nil
}

// Check returns ErrInvalidPassword unless candidate matches.
func (g *Gate) Check(candidate string) error {
	if len(candidate) == 0 || len(candidate) > 72 {
		return ErrInvalidPassword
	}
	if err := bcrypt.CompareHashAndPassword(g.hash, []byte(candidate)); err != nil {
		return ErrInvalidPassword
	}
	return nil
}
