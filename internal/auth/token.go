// Package auth verifies the bearer token clients present to the server.
// Only a bcrypt hash of the token is kept in the config file.
package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"
)

// ErrTokenInvalid is returned when a token does not match the stored hash.
var ErrTokenInvalid = errors.New("token does not match")

// ErrNoTokenHash is returned when no token hash is configured.
var ErrNoTokenHash = errors.New("no token hash configured")

// TokenValidator checks bearer tokens against one bcrypt hash.
type TokenValidator struct {
	hash []byte
}

// NewTokenValidator creates a validator for the given bcrypt hash.
func NewTokenValidator(hash string) *TokenValidator {
	return &TokenValidator{hash: []byte(hash)}
}

// ValidateToken returns nil when token matches the configured hash.
func (tv *TokenValidator) ValidateToken(token string) error {
	if len(tv.hash) == 0 {
		return ErrNoTokenHash
	}
	// bcrypt.CompareHashAndPassword handles timing-safe comparison
	if err := bcrypt.CompareHashAndPassword(tv.hash, []byte(token)); err != nil {
		log.Printf("auth: token validation failed")
		return ErrTokenInvalid
	}
	return nil
}

// GenerateToken returns a new random token and its bcrypt hash.
func GenerateToken() (token, hash string, err error) {
	token, err = generateSecureToken()
	if err != nil {
		return "", "", err
	}
	h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("hash token: %w", err)
	}
	return token, string(h), nil
}

// generateSecureToken returns 32 random bytes, hex encoded.
func generateSecureToken() (string, error) {
	const tokenBytes = 32

	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return fmt.Sprintf("%x", b), nil
}
