package repository

import (
	"testing"

	"github.com/ikkim/vintage-store-backend/internal/app/model"
	"github.com/ikkim/vintage-store-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUserRepository(t *testing.T) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	defer db.CleanupTestDB(testDB)

	repo := NewUserRepository(testDB)

	user := &model.User{ExternalID: "idp|ana", Email: "ana@example.com", Role: model.RoleAdmin}
	require.NoError(t, repo.Create(user))
	assert.NotZero(t, user.ID)

	found, err := repo.FindByExternalID("idp|ana")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, model.RoleAdmin, found.Role)

	byID, err := repo.FindByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", byID.Email)

	_, err = repo.FindByExternalID("idp|nobody")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	duplicate := &model.User{ExternalID: "idp|ana"}
	assert.Error(t, repo.Create(duplicate))
}
