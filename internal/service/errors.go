package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation              = errors.New("validation failed")
	ErrNotFound                = errors.New("not found")
	ErrOrderNotFound           = fmt.Errorf("order %w", ErrNotFound)
	ErrProductUnavailable      = errors.New("product unavailable")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrNoItemsProvided         = errors.New("no items provided and cart is empty")
	ErrShippingAddressRequired = errors.New("shipping address is required")
	ErrInvalidAddress          = errors.New("invalid shipping address")
	ErrForbidden               = errors.New("forbidden")
	ErrInvalidTransition       = errors.New("invalid order status transition")
	ErrUnauthenticated         = errors.New("unauthenticated")
	ErrIdempotencyConflict     = errors.New("request with this idempotency key is already in progress")
)

// ProductUnavailableError reports a product that is missing or retired.
type ProductUnavailableError struct {
	ProductID string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %s is unavailable", e.ProductID)
}

func (e *ProductUnavailableError) Is(target error) bool {
	return target == ErrProductUnavailable || target == ErrNotFound
}

type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
