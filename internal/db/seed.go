package db

import (
	"context"
	"errors"
	"fmt"

	"natours/internal/models"
	"natours/internal/repo"
)

// SeedUser is an account created at start-up when no active user holds its email.
type SeedUser struct {
	Name     string
	Email    string
	Password string
	Role     models.Role
}

type seedDirectory interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, params repo.CreateUserParams) (*models.User, error)
}

type passwordHasher interface {
	Hash(plaintext string) (string, error)
}

// EnsureSeedUsers creates the missing seed accounts and reports how many it created.
func EnsureSeedUsers(ctx context.Context, users seedDirectory, hasher passwordHasher, seeds ...SeedUser) (int, error) {
	created := 0
	for _, seed := range seeds {
		_, err := users.GetByEmail(ctx, seed.Email)
		if err == nil {
			continue
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return created, fmt.Errorf("check seed user %s: %w", seed.Email, err)
		}

		hash, err := hasher.Hash(seed.Password)
		if err != nil {
			return created, fmt.Errorf("hash seed password: %w", err)
		}

		_, err = users.Create(ctx, repo.CreateUserParams{
			Name:         seed.Name,
			Email:        seed.Email,
			Role:         seed.Role,
			PasswordHash: hash,
		})
		// An inactive account still owns the email.
		if errors.Is(err, repo.ErrDuplicate) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("insert seed user %s: %w", seed.Email, err)
		}
		created++
	}

	return created, nil
}
