package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User validation errors
var (
	ErrEmptyUserID  = errors.New("user ID cannot be empty")
	ErrEmptyEmail   = errors.New("email cannot be empty")
	ErrInvalidEmail = errors.New("invalid email format")
)

// User is the owner of tasks. Credentials and token issuance live outside
// this service; only identity is kept here.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUser creates a new User with a fresh ID.
func NewUser(email string) (*User, error) {
	user := &User{
		ID:        uuid.New(),
		Email:     strings.TrimSpace(email),
		CreatedAt: Now(),
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	return user, nil
}

// Validate checks if the User has valid data.
func (u *User) Validate() error {
	if u.ID == uuid.Nil {
		return ErrEmptyUserID
	}
	if u.Email == "" {
		return ErrEmptyEmail
	}
	at := strings.Index(u.Email, "@")
	if at <= 0 || at == len(u.Email)-1 || strings.Count(u.Email, "@") != 1 {
		return ErrInvalidEmail
	}
	return nil
}
