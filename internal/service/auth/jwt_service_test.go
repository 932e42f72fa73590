package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-long-enough-for-testing"

var issuedAt = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func at(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	svc := NewTestJWTService(testSecret, time.Hour, at(issuedAt))

	token, err := svc.GenerateToken(context.Background(), owner)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, owner, claims.UserID)
	assert.Equal(t, owner.String(), claims.Subject)
	assert.Equal(t, issuedAt.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, issuedAt.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
	assert.NotEmpty(t, claims.ID)
}

func TestValidateToken(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	token, err := NewTestJWTService(testSecret, time.Hour, at(issuedAt)).GenerateToken(context.Background(), owner)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   owner.String(),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: owner.String(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name    string
		secret  string
		now     time.Time
		token   string
		wantErr error
	}{
		{"valid", testSecret, issuedAt.Add(time.Minute), token, nil},
		{"within clock skew after expiry", testSecret, issuedAt.Add(time.Hour + time.Minute), token, nil},
		{"expired", testSecret, issuedAt.Add(2 * time.Hour), token, ErrExpiredToken},
		{"wrong secret", "another-secret-that-is-long-enough-too", issuedAt, token, ErrInvalidToken},
		{"wrong algorithm", testSecret, issuedAt, hs512, ErrInvalidToken},
		{"missing expiry", testSecret, issuedAt, noExpiry, ErrInvalidToken},
		{"garbage", testSecret, issuedAt, "not-a-jwt", ErrInvalidToken},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := NewTestJWTService(tc.secret, time.Hour, at(tc.now))
			claims, err := svc.ValidateToken(context.Background(), tc.token)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, owner, claims.UserID)
		})
	}
}

func TestNewJWTService_Config(t *testing.T) {
	t.Parallel()

	cfg := DefaultJWTConfig()
	svc, err := NewJWTService(cfg)
	require.NoError(t, err)
	require.NotNil(t, svc)

	short := cfg
	short.JWTSecret = "too-short"
	_, err = NewJWTService(short)
	assert.Error(t, err)

	noLifetime := cfg
	noLifetime.TokenLifetimeMinutes = 0
	_, err = NewJWTService(noLifetime)
	assert.Error(t, err)
}

func TestValidateToken_IssuerAndMissing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	userID := uuid.New()

	svc, err := NewJWTService(DefaultJWTConfig())
	require.NoError(t, err)

	_, err = svc.ValidateToken(ctx, "")
	assert.ErrorIs(t, err, ErrMissingToken)

	token, err := svc.GenerateToken(ctx, userID)
	require.NoError(t, err)
	claims, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "taskd", claims.Issuer)
	assert.Equal(t, userID, claims.UserID)

	other := DefaultJWTConfig()
	other.Issuer = "someone-else"
	otherSvc, err := NewJWTService(other)
	require.NoError(t, err)
	_, err = otherSvc.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGenerateTokenWithExpiry(t *testing.T) {
	t.Parallel()

	svc := NewTestJWTService(testSecret, time.Hour, nil)
	token, err := GenerateTokenWithExpiry(svc, uuid.New(), time.Now().Add(-time.Hour))
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrExpiredToken)

	header, err := GenerateAuthHeaderForTesting(uuid.New())
	require.NoError(t, err)
	assert.Contains(t, header, "Bearer ")
}
