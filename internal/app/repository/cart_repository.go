package repository

import (
	"github.com/ikkim/vintage-store-backend/internal/app/model"
	"github.com/ikkim/vintage-store-backend/pkg/logger"
	"gorm.io/gorm"
)

type CartRepository interface {
	Create(cartItem *model.CartItem) error
	FindByOwner(owner model.CartOwner) ([]model.CartItem, error)
	FindByID(id uint) (*model.CartItem, error)
	FindByOwnerAndProduct(owner model.CartOwner, productID uint) (*model.CartItem, error)
	Update(cartItem *model.CartItem) error
	Delete(id uint) error
	DeleteByOwner(owner model.CartOwner) error
	DeleteByProductID(productID uint) (int64, error)
	MigrateGuestItems(sessionID string, userID uint) (migrated int, dropped int, err error)
}

type cartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepository{db: db}
}

// ownedBy scopes a query to one cart. Guest carts never match rows that were
// already claimed by a user.
func ownedBy(owner model.CartOwner) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if owner.UserID != nil {
			return db.Where("user_id = ?", *owner.UserID)
		}
		if owner.SessionID != nil {
			return db.Where("session_id = ? AND user_id IS NULL", *owner.SessionID)
		}
		return db.Where("1 = 0")
	}
}

func (r *cartRepository) Create(cartItem *model.CartItem) error {
	logger.Debug("Creating cart item in database", map[string]interface{}{
		"product_id": cartItem.ProductID,
		"quantity":   cartItem.Quantity,
	})

	if err := r.db.Create(cartItem).Error; err != nil {
		logger.Error("Failed to create cart item in database", err, map[string]interface{}{
			"product_id": cartItem.ProductID,
			"quantity":   cartItem.Quantity,
		})
		return err
	}

	logger.Debug("Cart item created in database", map[string]interface{}{
		"cart_item_id": cartItem.ID,
		"product_id":   cartItem.ProductID,
	})
	return nil
}

func (r *cartRepository) FindByOwner(owner model.CartOwner) ([]model.CartItem, error) {
	logger.Debug("Finding cart items by owner in database", owner.LogFields())

	var cartItems []model.CartItem
	err := r.db.Scopes(ownedBy(owner)).
		Preload("Product").
		Order("created_at ASC, id ASC").
		Find(&cartItems).Error
	if err != nil {
		logger.Error("Failed to find cart items by owner in database", err, owner.LogFields())
		return nil, err
	}

	logger.Debug("Cart items found by owner in database", map[string]interface{}{
		"count": len(cartItems),
	})
	return cartItems, nil
}

func (r *cartRepository) FindByID(id uint) (*model.CartItem, error) {
	logger.Debug("Finding cart item by ID in database", map[string]interface{}{
		"cart_item_id": id,
	})

	var cartItem model.CartItem
	if err := r.db.Preload("Product").First(&cartItem, id).Error; err != nil {
		logger.Debug("Cart item lookup failed", map[string]interface{}{
			"cart_item_id": id,
			"error":        err.Error(),
		})
		return nil, err
	}
	return &cartItem, nil
}

func (r *cartRepository) FindByOwnerAndProduct(owner model.CartOwner, productID uint) (*model.CartItem, error) {
	var cartItem model.CartItem
	err := r.db.Scopes(ownedBy(owner)).
		Where("product_id = ?", productID).
		First(&cartItem).Error
	if err != nil {
		return nil, err
	}
	return &cartItem, nil
}

func (r *cartRepository) Update(cartItem *model.CartItem) error {
	logger.Debug("Updating cart item in database", map[string]interface{}{
		"cart_item_id": cartItem.ID,
		"quantity":     cartItem.Quantity,
	})

	if err := r.db.Model(cartItem).Update("quantity", cartItem.Quantity).Error; err != nil {
		logger.Error("Failed to update cart item in database", err, map[string]interface{}{
			"cart_item_id": cartItem.ID,
		})
		return err
	}
	return nil
}

func (r *cartRepository) Delete(id uint) error {
	logger.Debug("Deleting cart item from database", map[string]interface{}{
		"cart_item_id": id,
	})

	if err := r.db.Delete(&model.CartItem{}, id).Error; err != nil {
		logger.Error("Failed to delete cart item from database", err, map[string]interface{}{
			"cart_item_id": id,
		})
		return err
	}
	return nil
}

func (r *cartRepository) DeleteByOwner(owner model.CartOwner) error {
	logger.Debug("Deleting cart items by owner from database", owner.LogFields())

	if err := r.db.Scopes(ownedBy(owner)).Delete(&model.CartItem{}).Error; err != nil {
		logger.Error("Failed to delete cart items by owner from database", err, owner.LogFields())
		return err
	}
	return nil
}

// DeleteByProductID drops the product from every cart, whoever owns it.
func (r *cartRepository) DeleteByProductID(productID uint) (int64, error) {
	res := r.db.Where("product_id = ?", productID).Delete(&model.CartItem{})
	if res.Error != nil {
		logger.Error("Failed to delete cart items by product from database", res.Error, map[string]interface{}{
			"product_id": productID,
		})
		return 0, res.Error
	}

	logger.Debug("Cart items deleted by product from database", map[string]interface{}{
		"product_id": productID,
		"deleted":    res.RowsAffected,
	})
	return res.RowsAffected, nil
}

// MigrateGuestItems hands a guest cart to the user who just signed in. A guest
// line for a product the user already has is dropped rather than merged.
func (r *cartRepository) MigrateGuestItems(sessionID string, userID uint) (int, int, error) {
	migrated, dropped := 0, 0
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var guestItems []model.CartItem
		if err := tx.Where("session_id = ? AND user_id IS NULL", sessionID).
			Order("id ASC").
			Find(&guestItems).Error; err != nil {
			return err
		}

		for _, item := range guestItems {
			var existing int64
			if err := tx.Model(&model.CartItem{}).
				Where("user_id = ? AND product_id = ?", userID, item.ProductID).
				Count(&existing).Error; err != nil {
				return err
			}

			if existing > 0 {
				if err := tx.Delete(&model.CartItem{}, item.ID).Error; err != nil {
					return err
				}
				dropped++
				continue
			}

			if err := tx.Model(&model.CartItem{}).Where("id = ?", item.ID).Updates(map[string]interface{}{
				"user_id":    userID,
				"session_id": nil,
			}).Error; err != nil {
				return err
			}
			migrated++
		}
		return nil
	})
	if err != nil {
		logger.Error("Failed to migrate guest cart in database", err, map[string]interface{}{
			"session_id": sessionID,
			"user_id":    userID,
		})
		return 0, 0, err
	}
	return migrated, dropped, nil
}
