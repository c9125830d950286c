package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-supabase-jwt-secret-for-unit-tests"

func TestSupabaseTokenService_IssueAndValidate(t *testing.T) {
	svc := NewSupabaseTokenService(testJWTSecret)
	userID := uuid.New()

	token, err := svc.Issue(userID, "buyer@example.com", "", time.Hour)
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "buyer@example.com", claims.Email)
	assert.False(t, claims.IsAdmin())
}

func TestSupabaseTokenService_AdminRoleFromAppMetadata(t *testing.T) {
	svc := NewSupabaseTokenService(testJWTSecret)

	token, err := svc.Issue(uuid.New(), "ops@example.com", "admin", time.Hour)
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())
}

func TestSupabaseTokenService_Expired(t *testing.T) {
	svc := NewSupabaseTokenService(testJWTSecret)
	token, err := svc.Issue(uuid.New(), "a@b.co", "", time.Minute)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = svc.Validate(token)
	assert.Error(t, err)
}

func TestSupabaseTokenService_WrongSecret(t *testing.T) {
	token, err := NewSupabaseTokenService("other-secret").Issue(uuid.New(), "a@b.co", "", time.Hour)
	require.NoError(t, err)

	_, err = NewSupabaseTokenService(testJWTSecret).Validate(token)
	assert.Error(t, err)
}

func TestSupabaseTokenService_RejectsWrongAudienceAndSubject(t *testing.T) {
	secret := []byte(testJWTSecret)
	sign := func(claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
		require.NoError(t, err)
		return s
	}
	exp := time.Now().Add(time.Hour).Unix()
	svc := NewSupabaseTokenService(testJWTSecret)

	_, err := svc.Validate(sign(jwt.MapClaims{"sub": uuid.NewString(), "aud": "anon", "exp": exp}))
	assert.Error(t, err, "wrong audience")

	_, err = svc.Validate(sign(jwt.MapClaims{"sub": "not-a-uuid", "aud": "authenticated", "exp": exp}))
	assert.Error(t, err, "bad subject")

	_, err = svc.Validate(sign(jwt.MapClaims{"sub": uuid.NewString(), "aud": "authenticated"}))
	assert.Error(t, err, "missing exp")
}

func TestSupabaseTokenService_RejectsOtherAlgorithms(t *testing.T) {
	claims := jwt.MapClaims{"sub": uuid.NewString(), "aud": "authenticated", "exp": time.Now().Add(time.Hour).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	_, err = NewSupabaseTokenService(testJWTSecret).Validate(token)
	assert.Error(t, err)
}

func TestSupabaseTokenService_Unconfigured(t *testing.T) {
	_, err := NewSupabaseTokenService("").Validate("anything")
	assert.Error(t, err)
}
