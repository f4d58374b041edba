package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User owns photos and authenticates with an API key
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	APIKey      string    `json:"api_key,omitempty"`
	APIKeyHash  string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	IsActive    bool      `json:"is_active"`
}

// NewUser creates an active user; an empty apiKey generates one
func NewUser(email, displayName, apiKey string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, &ValidationError{Field: "email", Message: "can't be blank"}
	}
	if strings.TrimSpace(displayName) == "" {
		displayName = email
	}
	if apiKey == "" {
		generated, err := GenerateAPIKey()
		if err != nil {
			return nil, err
		}
		apiKey = generated
	}

	return &User{
		ID:          uuid.New().String(),
		Email:       email,
		DisplayName: strings.TrimSpace(displayName),
		APIKey:      apiKey,
		APIKeyHash:  HashAPIKey(apiKey),
		CreatedAt:   time.Now().UTC(),
		IsActive:    true,
	}, nil
}

// GenerateAPIKey creates a secure random API key
func GenerateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashAPIKey creates a SHA256 hash of an API key
func HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}
