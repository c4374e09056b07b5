package service

import (
	"testing"
	"time"

	"github.com/ikkim/vintage-store-backend/internal/app/model"
	"github.com/ikkim/vintage-store-backend/internal/app/repository"
	"github.com/ikkim/vintage-store-backend/internal/db"
	"github.com/ikkim/vintage-store-backend/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-secret"

func setupAuthServiceTest(t *testing.T, admins ...string) AuthService {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})
	return NewAuthService(repository.NewUserRepository(testDB), testJWTSecret, admins)
}

func TestAuthService_Authenticate_CreatesUserOnce(t *testing.T) {
	authService := setupAuthServiceTest(t)
	token, err := util.GenerateIdentityToken("auth0|ana", "ana@example.com", testJWTSecret, time.Hour)
	require.NoError(t, err)

	first, err := authService.Authenticate(token)
	require.NoError(t, err)
	assert.NotZero(t, first.ID)
	assert.Equal(t, "auth0|ana", first.ExternalID)
	assert.Equal(t, "ana@example.com", first.Email)
	assert.Equal(t, model.RoleUser, first.Role)

	second, err := authService.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestAuthService_Authenticate_AdminSubject(t *testing.T) {
	authService := setupAuthServiceTest(t, " auth0|seller ", "")
	token, err := util.GenerateIdentityToken("auth0|seller", "seller@example.com", testJWTSecret, time.Hour)
	require.NoError(t, err)

	user, err := authService.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, user.Role)
}

func TestAuthService_Authenticate_RejectsBadTokens(t *testing.T) {
	authService := setupAuthServiceTest(t)

	wrongKey, err := util.GenerateIdentityToken("auth0|ana", "", "other-secret", time.Hour)
	require.NoError(t, err)
	_, err = authService.Authenticate(wrongKey)
	assert.ErrorIs(t, err, util.ErrInvalidToken)

	expired, err := util.GenerateIdentityToken("auth0|ana", "", testJWTSecret, -time.Minute)
	require.NoError(t, err)
	_, err = authService.Authenticate(expired)
	assert.ErrorIs(t, err, util.ErrExpiredToken)

	_, err = authService.Authenticate("not-a-token")
	assert.ErrorIs(t, err, util.ErrInvalidToken)
}

func TestAuthService_GetUserByID(t *testing.T) {
	authService := setupAuthServiceTest(t)
	user, err := authService.FindOrCreateUser("auth0|bruno", "")
	require.NoError(t, err)

	found, err := authService.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "auth0|bruno", found.ExternalID)

	_, err = authService.GetUserByID(999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
