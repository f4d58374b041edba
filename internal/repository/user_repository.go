package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/ravin1227/photonix-sub000/internal/models"
)

// UserRepository handles user persistence
type UserRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *sql.DB, dialect Dialect) *UserRepository {
	return &UserRepository{db: db, dialect: dialect}
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	query := `SELECT id, email, display_name, api_key_hash, created_at, is_active FROM users WHERE ` + where

	var user models.User
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), arg).Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.APIKeyHash,
		&user.CreatedAt,
		&user.IsActive,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByAPIKeyHash retrieves a user by the hash of their API key
func (r *UserRepository) GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*models.User, error) {
	return r.getOne(ctx, "api_key_hash = ?", apiKeyHash)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

// Add inserts a new user
func (r *UserRepository) Add(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (id, email, display_name, api_key_hash, created_at, is_active)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		user.ID,
		user.Email,
		user.DisplayName,
		user.APIKeyHash,
		user.CreatedAt,
		user.IsActive,
	)
	return err
}

// EnsureUser returns the user holding apiKey, creating it under email when missing
func EnsureUser(ctx context.Context, repo UserRepo, email, apiKey string) (*models.User, error) {
	existing, err := repo.GetByAPIKeyHash(ctx, models.HashAPIKey(apiKey))
	if err != nil || existing != nil {
		return existing, err
	}

	user, err := models.NewUser(email, "", apiKey)
	if err != nil {
		return nil, err
	}
	if err := repo.Add(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
