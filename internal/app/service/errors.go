package service

import (
	"errors"

	"github.com/ikkim/vintage-store-backend/internal/app/repository"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrCartItemNotFound = errors.New("cart item not found")
	ErrUserNotFound     = errors.New("user not found")

	// ErrInvalidState and ErrReservationConflict come from the store so that
	// errors.Is matches whichever layer produced them.
	ErrInvalidState        = repository.ErrInvalidState
	ErrReservationConflict = repository.ErrReservationConflict

	ErrCartConflict      = errors.New("product is not available")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrOwnerRequired     = errors.New("a guest session or signed-in user is required")
	ErrBuyerInfoRequired = errors.New("buyer info is required")
	ErrNoProducts        = errors.New("at least one product id is required")
)

// ConflictError carries the ids of the products held by another buyer.
type ConflictError = repository.ConflictError
