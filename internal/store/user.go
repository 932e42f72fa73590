package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/phrazzld/taskd/internal/domain"
)

// UserStore defines the interface for task-owner persistence.
// Version: 1.0
type UserStore interface {
	// Create saves a new user.
	// Returns ErrEmailExists if the email is already registered.
	Create(ctx context.Context, user *domain.User) error

	// GetByEmail retrieves a user by email.
	// Returns ErrUserNotFound if no user has that email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Exists reports whether a user with the given ID exists.
	Exists(ctx context.Context, id uuid.UUID) (bool, error)

	// WithTx returns a new UserStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) UserStore
}

// EnsureUser returns the user registered under email, creating it first if
// necessary.
func EnsureUser(ctx context.Context, users UserStore, email string) (*domain.User, error) {
	existing, err := users.GetByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	user, err := domain.NewUser(email)
	if err != nil {
		return nil, err
	}
	if err := users.Create(ctx, user); err != nil {
		// Lost a race with a concurrent creator.
		if errors.Is(err, ErrEmailExists) {
			return users.GetByEmail(ctx, email)
		}
		return nil, err
	}
	return user, nil
}
