package service

import (
	"testing"

	"github.com/ikkim/vintage-store-backend/internal/app/model"
	"github.com/ikkim/vintage-store-backend/internal/app/repository"
	"github.com/ikkim/vintage-store-backend/internal/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupCartServiceTest(t *testing.T) (CartService, repository.ProductRepository, *gorm.DB) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	productRepo := repository.NewProductRepository(testDB)
	cartService := NewCartService(repository.NewCartRepository(testDB), productRepo)
	return cartService, productRepo, testDB
}

func seedProduct(t *testing.T, repo repository.ProductRepository, name string, price int64, stock int) *model.Product {
	t.Helper()
	product := &model.Product{
		Name:  name,
		Price: decimal.NewFromInt(price),
		Stock: stock,
		State: model.StateAvailable,
	}
	require.NoError(t, repo.Create(product))
	return product
}

func seedUser(t *testing.T, testDB *gorm.DB, externalID string) *model.User {
	t.Helper()
	user := &model.User{ExternalID: externalID, Role: model.RoleUser}
	require.NoError(t, testDB.Create(user).Error)
	return user
}

func TestCartService_AddToCart_Success(t *testing.T) {
	cartService, productRepo, _ := setupCartServiceTest(t)
	product := seedProduct(t, productRepo, "Campera de jean", 18500, 1)
	guest := model.GuestOwner("sess-1")

	item, err := cartService.AddToCart(guest, product.ID, 1)
	require.NoError(t, err)
	assert.NotZero(t, item.ID)
	assert.Equal(t, "sess-1", *item.SessionID)
	assert.Nil(t, item.UserID)

	items, err := cartService.GetCart(guest)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, product.ID, items[0].ProductID)
}

func TestCartService_AddToCart_RejectsReservedProduct(t *testing.T) {
	cartService, productRepo, _ := setupCartServiceTest(t)
	product := seedProduct(t, productRepo, "Campera", 18500, 1)
	_, err := productRepo.Reserve([]uint{product.ID}, "Ana", model.GuestOwner("sess-ana"), fixedNow)
	require.NoError(t, err)

	_, err = cartService.AddToCart(model.GuestOwner("sess-1"), product.ID, 1)
	assert.ErrorIs(t, err, ErrCartConflict)
}

func TestCartService_AddToCart_OutOfStock(t *testing.T) {
	cartService, productRepo, _ := setupCartServiceTest(t)
	product := seedProduct(t, productRepo, "Campera", 18500, 1)
	guest := model.GuestOwner("sess-1")

	_, err := cartService.AddToCart(guest, product.ID, 2)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	_, err = cartService.AddToCart(guest, product.ID, 1)
	require.NoError(t, err)

	// the merged quantity is checked against stock too
	_, err = cartService.AddToCart(guest, product.ID, 1)
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestCartService_AddToCart_MergesQuantity(t *testing.T) {
	cartService, productRepo, _ := setupCartServiceTest(t)
	product := seedProduct(t, productRepo, "Medias", 2000, 5)
	guest := model.GuestOwner("sess-1")

	_, err := cartService.AddToCart(guest, product.ID, 2)
	require.NoError(t, err)
	merged, err := cartService.AddToCart(guest, product.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, merged.Quantity)

	items, err := cartService.GetCart(guest)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
}

func TestCartService_AddToCart_Validation(t *testing.T) {
	cartService, productRepo, _ := setupCartServiceTest(t)
	product := seedProduct(t, productRepo, "Campera", 18500, 1)

	_, err := cartService.AddToCart(model.CartOwner{}, product.ID, 1)
	assert.ErrorIs(t, err, ErrOwnerRequired)

	_, err = cartService.AddToCart(model.GuestOwner("sess-1"), product.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = cartService.AddToCart(model.GuestOwner("sess-1"), 999, 1)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCartService_OwnerIsolation(t *testing.T) {
	cartService, productRepo, testDB := setupCartServiceTest(t)
	product := seedProduct(t, productRepo, "Campera", 18500, 1)
	user := seedUser(t, testDB, "idp|ana")

	item, err := cartService.AddToCart(model.UserOwner(user.ID), product.ID, 1)
	require.NoError(t, err)

	stranger := model.GuestOwner("sess-x")
	_, err = cartService.UpdateQuantity(stranger, item.ID, 1)
	assert.ErrorIs(t, err, ErrCartItemNotFound)
	assert.ErrorIs(t, cartService.RemoveItem(stranger, item.ID), ErrCartItemNotFound)

	items, err := cartService.GetCart(stranger)
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, cartService.RemoveItem(model.UserOwner(user.ID), item.ID))
	assert.ErrorIs(t, cartService.RemoveItem(model.UserOwner(user.ID), item.ID), ErrCartItemNotFound)
}

func TestCartService_UpdateQuantity(t *testing.T) {
	cartService, productRepo, _ := setupCartServiceTest(t)
	product := seedProduct(t, productRepo, "Medias", 2000, 3)
	guest := model.GuestOwner("sess-1")

	item, err := cartService.AddToCart(guest, product.ID, 1)
	require.NoError(t, err)

	updated, err := cartService.UpdateQuantity(guest, item.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Quantity)

	_, err = cartService.UpdateQuantity(guest, item.ID, 4)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	_, err = cartService.UpdateQuantity(guest, item.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestCartService_ClearCart(t *testing.T) {
	cartService, productRepo, _ := setupCartServiceTest(t)
	p1 := seedProduct(t, productRepo, "Campera", 18500, 1)
	p2 := seedProduct(t, productRepo, "Pollera", 9000, 1)
	guest := model.GuestOwner("sess-1")

	_, err := cartService.AddToCart(guest, p1.ID, 1)
	require.NoError(t, err)
	_, err = cartService.AddToCart(guest, p2.ID, 1)
	require.NoError(t, err)

	require.NoError(t, cartService.ClearCart(guest))
	items, err := cartService.GetCart(guest)
	require.NoError(t, err)
	assert.Empty(t, items)

	assert.ErrorIs(t, cartService.ClearCart(model.CartOwner{}), ErrOwnerRequired)
}

func TestCartService_OnReservationResolved(t *testing.T) {
	cartService, productRepo, testDB := setupCartServiceTest(t)
	product := seedProduct(t, productRepo, "Campera", 18500, 1)
	other := seedProduct(t, productRepo, "Pollera", 9000, 1)
	user := seedUser(t, testDB, "idp|bruno")

	_, err := cartService.AddToCart(model.GuestOwner("sess-1"), product.ID, 1)
	require.NoError(t, err)
	_, err = cartService.AddToCart(model.UserOwner(user.ID), product.ID, 1)
	require.NoError(t, err)
	_, err = cartService.AddToCart(model.UserOwner(user.ID), other.ID, 1)
	require.NoError(t, err)

	require.NoError(t, cartService.OnReservationResolved(product.ID))

	var count int64
	require.NoError(t, testDB.Model(&model.CartItem{}).Where("product_id = ?", product.ID).Count(&count).Error)
	assert.Zero(t, count)

	items, err := cartService.GetCart(model.UserOwner(user.ID))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, other.ID, items[0].ProductID)
}

func TestCartService_MigrateGuestCart_Idempotent(t *testing.T) {
	cartService, productRepo, testDB := setupCartServiceTest(t)
	p1 := seedProduct(t, productRepo, "Campera", 18500, 1)
	p2 := seedProduct(t, productRepo, "Pollera", 9000, 1)
	user := seedUser(t, testDB, "idp|ana")

	guest := model.GuestOwner("sess-1")
	_, err := cartService.AddToCart(guest, p1.ID, 1)
	require.NoError(t, err)
	_, err = cartService.AddToCart(guest, p2.ID, 1)
	require.NoError(t, err)
	_, err = cartService.AddToCart(model.UserOwner(user.ID), p2.ID, 1)
	require.NoError(t, err)

	result, err := cartService.MigrateGuestCart("sess-1", user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Migrated)
	assert.Equal(t, 1, result.DroppedDuplicates)

	items, err := cartService.GetCart(model.UserOwner(user.ID))
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, item := range items {
		assert.Equal(t, 1, item.Quantity, "quantities are never merged")
	}

	again, err := cartService.MigrateGuestCart("sess-1", user.ID)
	require.NoError(t, err)
	assert.Equal(t, &MigrationResult{}, again)

	_, err = cartService.MigrateGuestCart("", user.ID)
	assert.ErrorIs(t, err, ErrOwnerRequired)
}
