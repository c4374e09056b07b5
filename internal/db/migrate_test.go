package db

import (
	"testing"

	"github.com/ikkim/vintage-store-backend/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedProducts_OnlyWhenEmpty(t *testing.T) {
	testDB, err := SetupTestDB()
	require.NoError(t, err)
	defer CleanupTestDB(testDB)

	require.NoError(t, seedProducts(testDB))
	require.NoError(t, seedProducts(testDB))

	var count int64
	require.NoError(t, testDB.Model(&model.Product{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)

	var p model.Product
	require.NoError(t, testDB.First(&p).Error)
	assert.Equal(t, model.StateAvailable, p.State)
	assert.Equal(t, "18500", p.Price.String())
}

func TestTruncateAllTables(t *testing.T) {
	testDB, err := SetupTestDB()
	require.NoError(t, err)
	defer CleanupTestDB(testDB)

	require.NoError(t, seedProducts(testDB))
	require.NoError(t, TruncateAllTables(testDB))

	var count int64
	require.NoError(t, testDB.Model(&model.Product{}).Count(&count).Error)
	assert.Zero(t, count)
}
