package service

import (
	"fmt"
	"strings"

	"github.com/Bassamalsaqqa/delivery-app-backend/internal/domain"
)

// AddressInput names a stored address or carries one inline.
// AddressID wins when both are set.
type AddressInput struct {
	AddressID string
	Inline    *domain.ShippingAddress
}

// ResolveShippingAddress returns a copy of the address to ship to. The copy
// shares nothing with the principal's stored addresses.
func ResolveShippingAddress(principal *domain.Principal, input AddressInput) (domain.ShippingAddress, error) {
	if id := strings.TrimSpace(input.AddressID); id != "" {
		stored, ok := principal.FindAddress(id)
		if !ok {
			return domain.ShippingAddress{}, fmt.Errorf("%w: address %s not found", ErrInvalidAddress, id)
		}
		return domain.ShippingAddress{
			Street:      stored.Street,
			City:        stored.City,
			Coordinates: copyCoordinates(stored.Coordinates),
		}, nil
	}

	if input.Inline == nil {
		return domain.ShippingAddress{}, ErrShippingAddressRequired
	}

	street := strings.TrimSpace(input.Inline.Street)
	city := strings.TrimSpace(input.Inline.City)
	if street == "" || city == "" {
		return domain.ShippingAddress{}, fmt.Errorf("%w: street and city are required", ErrInvalidAddress)
	}
	return domain.ShippingAddress{
		Street:      street,
		City:        city,
		Coordinates: copyCoordinates(input.Inline.Coordinates),
	}, nil
}

func copyCoordinates(c *domain.Coordinates) *domain.Coordinates {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
