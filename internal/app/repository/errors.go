package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned when a product is not in the state an operation requires.
	ErrInvalidState = errors.New("product is not in the required state")

	// ErrReservationConflict is returned when a product is held by another buyer
	// or its state changed under a concurrent writer.
	ErrReservationConflict = errors.New("product reserved by another buyer")
)

// ConflictError lists the products that blocked a reservation.
type ConflictError struct {
	ProductIDs []uint
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %v", ErrReservationConflict.Error(), e.ProductIDs)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrReservationConflict
}
