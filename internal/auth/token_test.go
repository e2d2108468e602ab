package auth

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestTokenValidator(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-token"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt hash failed: %v", err)
	}
	validator := NewTokenValidator(string(hash))

	if err := validator.ValidateToken("correct-token"); err != nil {
		t.Errorf("valid token rejected: %v", err)
	}
	if err := validator.ValidateToken("wrong-token"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestTokenValidator_NoHash(t *testing.T) {
	if err := NewTokenValidator("").ValidateToken("anything"); !errors.Is(err, ErrNoTokenHash) {
		t.Errorf("expected ErrNoTokenHash, got %v", err)
	}
}

func TestGenerateToken(t *testing.T) {
	token, hash, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("token length = %d, want 64", len(token))
	}
	if err := NewTokenValidator(hash).ValidateToken(token); err != nil {
		t.Errorf("generated token does not match its hash: %v", err)
	}

	other, _, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if other == token {
		t.Error("tokens should be random")
	}
}
