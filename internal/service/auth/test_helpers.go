package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskd/internal/config"
)

// DefaultJWTConfig returns a standard configuration for JWT authentication
// suitable for tests and local development.
func DefaultJWTConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:            "test-jwt-secret-that-is-32-chars-long",
		TokenLifetimeMinutes: 60,
		Issuer:               "taskd",
	}
}

// NewTestJWTService creates a JWT service with a fixed secret, lifetime and clock.
func NewTestJWTService(secret string, lifetime time.Duration, now func() time.Time) JWTService {
	if now == nil {
		now = time.Now
	}
	return &hmacJWTService{
		signingKey:    []byte(secret),
		tokenLifetime: lifetime,
		timeFunc:      now,
		clockSkew:     2 * time.Minute,
	}
}

// GenerateAuthHeaderForTesting returns an Authorization header value carrying
// a valid token for userID under DefaultJWTConfig.
func GenerateAuthHeaderForTesting(userID uuid.UUID) (string, error) {
	svc, err := NewJWTService(DefaultJWTConfig())
	if err != nil {
		return "", fmt.Errorf("failed to create JWT service: %w", err)
	}
	token, err := svc.GenerateToken(context.Background(), userID)
	if err != nil {
		return "", err
	}
	return "Bearer " + token, nil
}

// GenerateTokenWithExpiry signs a token for userID that expires at expiresAt.
// It lets tests build expired tokens.
func GenerateTokenWithExpiry(svc JWTService, userID uuid.UUID, expiresAt time.Time) (string, error) {
	h, ok := svc.(*hmacJWTService)
	if !ok {
		return "", fmt.Errorf("unsupported JWT service %T", svc)
	}
	return h.sign(context.Background(), userID, expiresAt)
}
