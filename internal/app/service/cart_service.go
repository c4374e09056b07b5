package service

import (
	"errors"

	"github.com/ikkim/vintage-store-backend/internal/app/model"
	"github.com/ikkim/vintage-store-backend/internal/app/repository"
	"github.com/ikkim/vintage-store-backend/pkg/logger"
	"gorm.io/gorm"
)

// MigrationResult reports what MigrateGuestCart did.
type MigrationResult struct {
	Migrated          int `json:"migrated"`
	DroppedDuplicates int `json:"dropped"`
}

type CartService interface {
	GetCart(owner model.CartOwner) ([]model.CartItem, error)
	AddToCart(owner model.CartOwner, productID uint, quantity int) (*model.CartItem, error)
	UpdateQuantity(owner model.CartOwner, cartItemID uint, quantity int) (*model.CartItem, error)
	RemoveItem(owner model.CartOwner, cartItemID uint) error
	ClearCart(owner model.CartOwner) error

	// OnReservationResolved removes the product from every cart. It must run
	// after the product write has committed.
	OnReservationResolved(productID uint) error
	MigrateGuestCart(sessionID string, userID uint) (*MigrationResult, error)
}

type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
}

func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository) CartService {
	return &cartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
	}
}

func (s *cartService) GetCart(owner model.CartOwner) ([]model.CartItem, error) {
	if !owner.Valid() {
		return nil, ErrOwnerRequired
	}

	logger.Debug("Fetching cart", owner.LogFields())

	cartItems, err := s.cartRepo.FindByOwner(owner)
	if err != nil {
		logger.Error("Failed to fetch cart", err, owner.LogFields())
		return nil, err
	}
	return cartItems, nil
}

func (s *cartService) AddToCart(owner model.CartOwner, productID uint, quantity int) (*model.CartItem, error) {
	if !owner.Valid() {
		return nil, ErrOwnerRequired
	}
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	fields := owner.LogFields()
	fields["product_id"] = productID
	fields["quantity"] = quantity
	logger.Info("Adding item to cart", fields)

	product, err := s.productRepo.FindByID(productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Cannot add to cart: product not found", fields)
			return nil, ErrProductNotFound
		}
		logger.Error("Failed to fetch product", err, fields)
		return nil, err
	}

	if !product.IsAvailable() {
		logger.Warn("Cannot add to cart: product not available", map[string]interface{}{
			"product_id": productID,
			"state":      product.State,
		})
		return nil, ErrCartConflict
	}

	existingItem, err := s.cartRepo.FindByOwnerAndProduct(owner, productID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("Failed to check existing cart item", err, fields)
		return nil, err
	}

	requestedQuantity := quantity
	if existingItem != nil {
		requestedQuantity = existingItem.Quantity + quantity
	}

	if product.Stock < requestedQuantity {
		logger.Warn("Cannot add to cart: insufficient stock", map[string]interface{}{
			"product_id": productID,
			"requested":  requestedQuantity,
			"available":  product.Stock,
		})
		return nil, ErrInsufficientStock
	}

	if existingItem != nil {
		logger.Debug("Merging into existing cart item", map[string]interface{}{
			"cart_item_id": existingItem.ID,
			"old_qty":      existingItem.Quantity,
			"new_qty":      requestedQuantity,
		})
		existingItem.Quantity = requestedQuantity
		if err := s.cartRepo.Update(existingItem); err != nil {
			logger.Error("Failed to update cart item", err, map[string]interface{}{
				"cart_item_id": existingItem.ID,
			})
			return nil, err
		}
		return existingItem, nil
	}

	cartItem := &model.CartItem{
		ProductID: productID,
		Quantity:  quantity,
		SessionID: owner.SessionID,
		UserID:    owner.UserID,
	}
	if owner.UserID != nil {
		cartItem.SessionID = nil
	}

	if err := s.cartRepo.Create(cartItem); err != nil {
		logger.Error("Failed to create cart item", err, fields)
		return nil, err
	}

	logger.Info("Cart item added successfully", map[string]interface{}{
		"cart_item_id": cartItem.ID,
	})
	return cartItem, nil
}

func (s *cartService) UpdateQuantity(owner model.CartOwner, cartItemID uint, quantity int) (*model.CartItem, error) {
	if !owner.Valid() {
		return nil, ErrOwnerRequired
	}
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	logger.Info("Updating cart item", map[string]interface{}{
		"cart_item_id": cartItemID,
		"quantity":     quantity,
	})

	cartItem, err := s.findOwnedItem(owner, cartItemID)
	if err != nil {
		return nil, err
	}

	if !cartItem.Product.IsAvailable() {
		logger.Warn("Cannot update cart item: product not available", map[string]interface{}{
			"cart_item_id": cartItemID,
			"state":        cartItem.Product.State,
		})
		return nil, ErrCartConflict
	}

	if cartItem.Product.Stock < quantity {
		logger.Warn("Cannot update cart item: insufficient stock", map[string]interface{}{
			"cart_item_id": cartItemID,
			"requested":    quantity,
			"available":    cartItem.Product.Stock,
		})
		return nil, ErrInsufficientStock
	}

	cartItem.Quantity = quantity
	if err := s.cartRepo.Update(cartItem); err != nil {
		logger.Error("Failed to update cart item", err, map[string]interface{}{
			"cart_item_id": cartItemID,
		})
		return nil, err
	}
	return cartItem, nil
}

func (s *cartService) RemoveItem(owner model.CartOwner, cartItemID uint) error {
	if !owner.Valid() {
		return ErrOwnerRequired
	}

	logger.Info("Removing cart item", map[string]interface{}{
		"cart_item_id": cartItemID,
	})

	if _, err := s.findOwnedItem(owner, cartItemID); err != nil {
		return err
	}

	if err := s.cartRepo.Delete(cartItemID); err != nil {
		logger.Error("Failed to delete cart item", err, map[string]interface{}{
			"cart_item_id": cartItemID,
		})
		return err
	}
	return nil
}

func (s *cartService) ClearCart(owner model.CartOwner) error {
	if !owner.Valid() {
		return ErrOwnerRequired
	}

	logger.Info("Clearing cart", owner.LogFields())

	if err := s.cartRepo.DeleteByOwner(owner); err != nil {
		logger.Error("Failed to clear cart", err, owner.LogFields())
		return err
	}
	return nil
}

func (s *cartService) OnReservationResolved(productID uint) error {
	removed, err := s.cartRepo.DeleteByProductID(productID)
	if err != nil {
		logger.Error("Failed to remove resolved product from carts", err, map[string]interface{}{
			"product_id": productID,
		})
		return err
	}

	if removed > 0 {
		logger.Info("Resolved product removed from carts", map[string]interface{}{
			"product_id": productID,
			"removed":    removed,
		})
	}
	return nil
}

func (s *cartService) MigrateGuestCart(sessionID string, userID uint) (*MigrationResult, error) {
	if sessionID == "" || userID == 0 {
		return nil, ErrOwnerRequired
	}

	migrated, dropped, err := s.cartRepo.MigrateGuestItems(sessionID, userID)
	if err != nil {
		return nil, err
	}

	if migrated > 0 || dropped > 0 {
		logger.Info("Guest cart migrated", map[string]interface{}{
			"session_id": sessionID,
			"user_id":    userID,
			"migrated":   migrated,
			"dropped":    dropped,
		})
	}
	return &MigrationResult{Migrated: migrated, DroppedDuplicates: dropped}, nil
}

// findOwnedItem hides items owned by someone else behind ErrCartItemNotFound.
func (s *cartService) findOwnedItem(owner model.CartOwner, cartItemID uint) (*model.CartItem, error) {
	cartItem, err := s.cartRepo.FindByID(cartItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Cart item not found", map[string]interface{}{
				"cart_item_id": cartItemID,
			})
			return nil, ErrCartItemNotFound
		}
		logger.Error("Failed to fetch cart item", err, map[string]interface{}{
			"cart_item_id": cartItemID,
		})
		return nil, err
	}

	if !ownsItem(owner, cartItem) {
		fields := owner.LogFields()
		fields["cart_item_id"] = cartItemID
		logger.Warn("Cart item access denied: ownership mismatch", fields)
		return nil, ErrCartItemNotFound
	}
	return cartItem, nil
}

func ownsItem(owner model.CartOwner, item *model.CartItem) bool {
	if owner.UserID != nil {
		return item.UserID != nil && *item.UserID == *owner.UserID
	}
	return item.UserID == nil && item.SessionID != nil && owner.SessionID != nil && *item.SessionID == *owner.SessionID
}
