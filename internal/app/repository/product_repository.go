package repository

import (
	"fmt"
	"sort"
	"time"

	"github.com/ikkim/vintage-store-backend/internal/app/model"
	"github.com/ikkim/vintage-store-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReserveResult describes a committed reservation group.
type ReserveResult struct {
	Products []model.Product
	Reserved int // products that moved from available to reserved
	Extended int // products already held by the buyer whose window restarted
}

type PauseResult struct {
	Paused   bool
	Products []model.Product
}

// ProductRepository is the reservation store. It only touches the
// reservation columns of products created by the catalog.
type ProductRepository interface {
	Create(product *model.Product) error
	FindByID(id uint) (*model.Product, error)
	FindReserved() ([]model.Product, error)
	FindReservedBefore(cutoff time.Time) ([]model.Product, error)
	FindReservationGroup(buyerInfo string) ([]model.Product, error)

	Reserve(productIDs []uint, buyerInfo string, owner model.CartOwner, now time.Time) (*ReserveResult, error)
	Confirm(id uint) (*model.Product, error)
	Cancel(id uint) (*model.Product, error)
	CancelIfReservedBefore(id uint, cutoff time.Time) (bool, error)
	ReleaseIfCurrent(id uint, version int64) (*model.Product, error)
	TogglePause(id uint, now time.Time) (*PauseResult, error)
	MarkSold(id uint) (*model.Product, error)
	RevertToAvailable(id uint) (*model.Product, error)
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

var forUpdate = clause.Locking{Strength: "UPDATE"}

func bumpVersion() clause.Expr {
	return gorm.Expr("reservation_version + ?", 1)
}

// availableColumns resets every reservation column to its available value.
func availableColumns() map[string]interface{} {
	return map[string]interface{}{
		"state":                  model.StateAvailable,
		"reserved_at":            nil,
		"buyer_info":             nil,
		"reserved_by_session_id": nil,
		"reserved_by_user_id":    nil,
		"reservation_paused":     false,
		"paused_at":              nil,
		"reservation_version":    bumpVersion(),
	}
}

func (r *productRepository) Create(product *model.Product) error {
	logger.Debug("Creating product in database", map[string]interface{}{
		"name":  product.Name,
		"stock": product.Stock,
	})

	if err := r.db.Create(product).Error; err != nil {
		logger.Error("Failed to create product in database", err, map[string]interface{}{
			"name": product.Name,
		})
		return err
	}
	return nil
}

func (r *productRepository) FindByID(id uint) (*model.Product, error) {
	logger.Debug("Finding product by ID in database", map[string]interface{}{
		"product_id": id,
	})

	var product model.Product
	if err := r.db.First(&product, id).Error; err != nil {
		logger.Debug("Product lookup failed", map[string]interface{}{
			"product_id": id,
			"error":      err.Error(),
		})
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) FindReserved() ([]model.Product, error) {
	var products []model.Product
	err := r.db.Where("state = ?", model.StateReserved).
		Order("buyer_info ASC, reserved_at ASC, id ASC").
		Find(&products).Error
	if err != nil {
		logger.Error("Failed to find reserved products in database", err)
		return nil, err
	}
	return products, nil
}

func (r *productRepository) FindReservedBefore(cutoff time.Time) ([]model.Product, error) {
	logger.Debug("Finding stale reservations in database", map[string]interface{}{
		"cutoff": cutoff,
	})

	var products []model.Product
	err := r.db.Where("state = ? AND reserved_at IS NOT NULL AND reserved_at < ?", model.StateReserved, cutoff).
		Order("id ASC").
		Find(&products).Error
	if err != nil {
		logger.Error("Failed to find stale reservations in database", err, map[string]interface{}{
			"cutoff": cutoff,
		})
		return nil, err
	}
	return products, nil
}

func (r *productRepository) FindReservationGroup(buyerInfo string) ([]model.Product, error) {
	var products []model.Product
	err := r.db.Where("state = ? AND buyer_info = ?", model.StateReserved, buyerInfo).
		Order("id ASC").
		Find(&products).Error
	if err != nil {
		logger.Error("Failed to find reservation group in database", err, map[string]interface{}{
			"buyer_info": buyerInfo,
		})
		return nil, err
	}
	return products, nil
}

// Reserve holds the requested products plus every product the buyer already
// holds, restarting the whole group's window at now. The state check and the
// write share one transaction and the write is conditional on the state that
// was checked, so two buyers racing for the same product cannot both win.
func (r *productRepository) Reserve(productIDs []uint, buyerInfo string, owner model.CartOwner, now time.Time) (*ReserveResult, error) {
	ids := uniqueIDs(productIDs)

	logger.Debug("Reserving products in database", map[string]interface{}{
		"product_ids": ids,
		"buyer_info":  buyerInfo,
	})

	result := &ReserveResult{}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var targets []model.Product
		if err := tx.Clauses(forUpdate).Where("id IN ?", ids).Find(&targets).Error; err != nil {
			return err
		}
		if missing := missingIDs(ids, targets); len(missing) > 0 {
			return fmt.Errorf("products %v: %w", missing, gorm.ErrRecordNotFound)
		}

		var blocked []uint
		for _, p := range targets {
			switch {
			case p.IsAvailable():
				result.Reserved++
			case p.HeldBy(buyerInfo):
				result.Extended++
			default:
				blocked = append(blocked, p.ID)
			}
		}
		if len(blocked) > 0 {
			return &ConflictError{ProductIDs: blocked}
		}

		var held []model.Product
		if err := tx.Clauses(forUpdate).
			Where("state = ? AND buyer_info = ? AND id NOT IN ?", model.StateReserved, buyerInfo, ids).
			Find(&held).Error; err != nil {
			return err
		}
		result.Extended += len(held)

		groupIDs := append([]uint{}, ids...)
		for _, p := range held {
			groupIDs = append(groupIDs, p.ID)
		}

		res := tx.Model(&model.Product{}).
			Where("id IN ?", groupIDs).
			Where("state = ? OR (state = ? AND buyer_info = ?)", model.StateAvailable, model.StateReserved, buyerInfo).
			Updates(map[string]interface{}{
				"state":                  model.StateReserved,
				"reserved_at":            now,
				"buyer_info":             buyerInfo,
				"reserved_by_session_id": owner.SessionID,
				"reserved_by_user_id":    owner.UserID,
				"reservation_paused":     false,
				"paused_at":              nil,
				"reservation_version":    bumpVersion(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(groupIDs)) {
			return &ConflictError{ProductIDs: ids}
		}

		return tx.Where("id IN ?", groupIDs).Order("id ASC").Find(&result.Products).Error
	})
	if err != nil {
		logger.Debug("Reservation transaction rolled back", map[string]interface{}{
			"product_ids": ids,
			"buyer_info":  buyerInfo,
			"error":       err.Error(),
		})
		return nil, err
	}

	logger.Debug("Products reserved in database", map[string]interface{}{
		"buyer_info": buyerInfo,
		"reserved":   result.Reserved,
		"extended":   result.Extended,
	})
	return result, nil
}

func (r *productRepository) Confirm(id uint) (*model.Product, error) {
	logger.Debug("Confirming reservation in database", map[string]interface{}{
		"product_id": id,
	})

	var product model.Product
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(forUpdate).First(&product, id).Error; err != nil {
			return err
		}
		if !product.IsReserved() {
			return ErrInvalidState
		}

		stock := product.Stock - 1
		if stock < 0 {
			stock = 0
		}

		res := tx.Model(&model.Product{}).
			Where("id = ? AND state = ?", id, model.StateReserved).
			Updates(map[string]interface{}{
				"state":               model.StateSold,
				"stock":               stock,
				"reservation_paused":  false,
				"paused_at":           nil,
				"reservation_version": bumpVersion(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidState
		}
		return tx.First(&product, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) Cancel(id uint) (*model.Product, error) {
	logger.Debug("Cancelling reservation in database", map[string]interface{}{
		"product_id": id,
	})

	var product model.Product
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(forUpdate).First(&product, id).Error; err != nil {
			return err
		}
		if !product.IsReserved() {
			return ErrInvalidState
		}

		res := tx.Model(&model.Product{}).
			Where("id = ? AND state = ?", id, model.StateReserved).
			Updates(availableColumns())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidState
		}
		return tx.First(&product, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// CancelIfReservedBefore frees the product only if it is still reserved with a
// window that started before cutoff. It reports whether a row changed.
func (r *productRepository) CancelIfReservedBefore(id uint, cutoff time.Time) (bool, error) {
	res := r.db.Model(&model.Product{}).
		Where("id = ? AND state = ? AND reserved_at < ?", id, model.StateReserved, cutoff).
		Updates(availableColumns())
	if res.Error != nil {
		logger.Error("Failed to cancel stale reservation in database", res.Error, map[string]interface{}{
			"product_id": id,
		})
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReleaseIfCurrent frees the product when it is still reserved, unpaused and
// stamped with version. It returns the product as it was before the release,
// or nil when the stamp no longer matches.
func (r *productRepository) ReleaseIfCurrent(id uint, version int64) (*model.Product, error) {
	var before model.Product
	released := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(forUpdate).First(&before, id).Error; err != nil {
			return err
		}

		res := tx.Model(&model.Product{}).
			Where("id = ? AND state = ? AND reservation_version = ? AND reservation_paused = ?", id, model.StateReserved, version, false).
			Updates(availableColumns())
		if res.Error != nil {
			return res.Error
		}
		released = res.RowsAffected == 1
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !released {
		return nil, nil
	}
	return &before, nil
}

// TogglePause freezes or resumes the expiry clock of the whole group that
// shares the product's buyer info. Resuming moves reserved_at forward by the
// time each member spent paused.
func (r *productRepository) TogglePause(id uint, now time.Time) (*PauseResult, error) {
	logger.Debug("Toggling reservation pause in database", map[string]interface{}{
		"product_id": id,
	})

	result := &PauseResult{}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var product model.Product
		if err := tx.Clauses(forUpdate).First(&product, id).Error; err != nil {
			return err
		}
		if !product.IsReserved() || product.BuyerInfo == nil {
			return ErrInvalidState
		}
		buyerInfo := *product.BuyerInfo

		var group []model.Product
		if err := tx.Clauses(forUpdate).
			Where("state = ? AND buyer_info = ?", model.StateReserved, buyerInfo).
			Order("id ASC").
			Find(&group).Error; err != nil {
			return err
		}

		if !product.ReservationPaused {
			result.Paused = true
			if err := tx.Model(&model.Product{}).
				Where("state = ? AND buyer_info = ? AND reservation_paused = ?", model.StateReserved, buyerInfo, false).
				Updates(map[string]interface{}{
					"reservation_paused":  true,
					"paused_at":           now,
					"reservation_version": bumpVersion(),
				}).Error; err != nil {
				return err
			}
		} else {
			for _, member := range group {
				updates := map[string]interface{}{
					"reservation_paused":  false,
					"paused_at":           nil,
					"reservation_version": bumpVersion(),
				}
				if member.ReservationPaused && member.PausedAt != nil && member.ReservedAt != nil {
					updates["reserved_at"] = member.ReservedAt.Add(now.Sub(*member.PausedAt))
				}
				if err := tx.Model(&model.Product{}).Where("id = ?", member.ID).Updates(updates).Error; err != nil {
					return err
				}
			}
		}

		return tx.Where("state = ? AND buyer_info = ?", model.StateReserved, buyerInfo).
			Order("id ASC").
			Find(&result.Products).Error
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkSold records a sale regardless of the current state, such as an item
// sold in person. Stock is left to the catalog.
func (r *productRepository) MarkSold(id uint) (*model.Product, error) {
	logger.Debug("Marking product sold in database", map[string]interface{}{
		"product_id": id,
	})

	var product model.Product
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(forUpdate).First(&product, id).Error; err != nil {
			return err
		}

		buyerInfo := model.ExternalSaleMarker
		if product.BuyerInfo != nil && *product.BuyerInfo != "" {
			buyerInfo = *product.BuyerInfo
		}

		if err := tx.Model(&model.Product{}).Where("id = ?", id).Updates(map[string]interface{}{
			"state":                  model.StateSold,
			"buyer_info":             buyerInfo,
			"reserved_at":            nil,
			"reserved_by_session_id": nil,
			"reserved_by_user_id":    nil,
			"reservation_paused":     false,
			"paused_at":              nil,
			"reservation_version":    bumpVersion(),
		}).Error; err != nil {
			return err
		}
		return tx.First(&product, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) RevertToAvailable(id uint) (*model.Product, error) {
	logger.Debug("Reverting product to available in database", map[string]interface{}{
		"product_id": id,
	})

	var product model.Product
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(forUpdate).First(&product, id).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Product{}).Where("id = ?", id).Updates(availableColumns()).Error; err != nil {
			return err
		}
		return tx.First(&product, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func missingIDs(want []uint, found []model.Product) []uint {
	present := make(map[uint]struct{}, len(found))
	for _, p := range found {
		present[p.ID] = struct{}{}
	}
	var missing []uint
	for _, id := range want {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
