package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nclime/roomcast/internal/core"
	"github.com/nclime/roomcast/internal/domain"
	"github.com/nclime/roomcast/internal/store"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func testService() (*Service, *store.Memory) {
	mem := store.NewMemory()
	mem.AddUser(domain.Author{ID: 7, Email: "a@b.com", Name: "A"})
	return New(testSecret, "", mem), mem
}

func TestAuthenticateValidToken(t *testing.T) {
	svc, _ := testService()
	token := signToken(t, testSecret, jwt.MapClaims{
		"user_id": 7,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	p, err := svc.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, p.Authenticated)
	assert.Equal(t, domain.UserID(7), p.ID)
	assert.Equal(t, "a@b.com", p.Email)
	assert.Equal(t, "A", p.Name)
}

func TestAuthenticateNoCredential(t *testing.T) {
	svc, _ := testService()

	p, err := svc.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, core.ErrAuthentication)
	assert.False(t, p.Authenticated)
}

func TestAuthenticateExpiredToken(t *testing.T) {
	svc, _ := testService()
	token := signToken(t, testSecret, jwt.MapClaims{
		"user_id": 7,
		"exp":     time.Now().Add(-time.Minute).Unix(),
	})

	_, err := svc.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, core.ErrAuthentication)
}

func TestAuthenticateWrongSecret(t *testing.T) {
	svc, _ := testService()
	token := signToken(t, "other-secret", jwt.MapClaims{
		"user_id": 7,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	_, err := svc.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, core.ErrAuthentication)
}

func TestAuthenticateMissingExpiry(t *testing.T) {
	svc, _ := testService()
	token := signToken(t, testSecret, jwt.MapClaims{"user_id": 7})

	_, err := svc.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, core.ErrAuthentication)
}

func TestAuthenticateUnknownSubject(t *testing.T) {
	svc, _ := testService()
	token := signToken(t, testSecret, jwt.MapClaims{
		"user_id": 42,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	_, err := svc.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, core.ErrAuthentication)
}

func TestAuthenticateIssuerChecked(t *testing.T) {
	mem := store.NewMemory()
	mem.AddUser(domain.Author{ID: 7, Email: "a@b.com", Name: "A"})
	svc := New(testSecret, "roomcast", mem)

	good := signToken(t, testSecret, jwt.MapClaims{
		"user_id": 7,
		"iss":     "roomcast",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	_, err := svc.Authenticate(context.Background(), good)
	assert.NoError(t, err)

	bad := signToken(t, testSecret, jwt.MapClaims{
		"user_id": 7,
		"iss":     "someone-else",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	_, err = svc.Authenticate(context.Background(), bad)
	assert.ErrorIs(t, err, core.ErrAuthentication)
}
