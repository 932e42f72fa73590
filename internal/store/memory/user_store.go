package memory

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/taskd/internal/domain"
	"github.com/phrazzld/taskd/internal/store"
)

// UserStore implements store.UserStore in memory.
type UserStore struct {
	s *Store
}

// Compile-time check
var _ store.UserStore = (*UserStore)(nil)

// WithTx implements store.UserStore.
func (us *UserStore) WithTx(_ *sql.Tx) store.UserStore {
	return us
}

// Create implements store.UserStore.
func (us *UserStore) Create(ctx context.Context, user *domain.User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	return us.s.write(ctx, func(st *state) error {
		for _, u := range st.users {
			if strings.EqualFold(u.Email, user.Email) {
				return store.ErrEmailExists
			}
		}
		c := *user
		st.users[user.ID] = &c
		return nil
	})
}

// GetByEmail implements store.UserStore.
func (us *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var out *domain.User
	err := us.s.read(ctx, func(st *state) error {
		for _, u := range st.users {
			if strings.EqualFold(u.Email, email) {
				c := *u
				out = &c
				return nil
			}
		}
		return store.ErrUserNotFound
	})
	return out, err
}

// Exists implements store.UserStore.
func (us *UserStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	err := us.s.read(ctx, func(st *state) error {
		_, ok = st.users[id]
		return nil
	})
	return ok, err
}
