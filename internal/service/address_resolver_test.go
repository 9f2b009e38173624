package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bassamalsaqqa/delivery-app-backend/internal/domain"
)

func testPrincipal() *domain.Principal {
	return &domain.Principal{
		ID:   "u1",
		Role: domain.RoleUser,
		Addresses: []domain.Address{
			{ID: "home", Street: "1 Main St", City: "Gaza", Coordinates: &domain.Coordinates{Lat: 31.5, Lng: 34.46}},
			{ID: "work", Street: "9 Office Rd", City: "Khan Younis"},
		},
	}
}

func TestResolveShippingAddress_StoredReference(t *testing.T) {
	principal := testPrincipal()

	addr, err := ResolveShippingAddress(principal, AddressInput{AddressID: "home"})
	require.NoError(t, err)
	assert.Equal(t, "1 Main St", addr.Street)
	assert.Equal(t, "Gaza", addr.City)
	require.NotNil(t, addr.Coordinates)

	// later edits to the stored address must not leak into the snapshot
	principal.Addresses[0].Street = "changed"
	principal.Addresses[0].Coordinates.Lat = 0
	assert.Equal(t, "1 Main St", addr.Street)
	assert.Equal(t, 31.5, addr.Coordinates.Lat)
}

func TestResolveShippingAddress_ReferenceWinsOverInline(t *testing.T) {
	addr, err := ResolveShippingAddress(testPrincipal(), AddressInput{
		AddressID: "work",
		Inline:    &domain.ShippingAddress{Street: "x", City: "y"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Khan Younis", addr.City)
	assert.Nil(t, addr.Coordinates)
}

func TestResolveShippingAddress_UnknownReference(t *testing.T) {
	_, err := ResolveShippingAddress(testPrincipal(), AddressInput{AddressID: "nope"})
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestResolveShippingAddress_Inline(t *testing.T) {
	coords := &domain.Coordinates{Lat: 1, Lng: 2}
	addr, err := ResolveShippingAddress(testPrincipal(), AddressInput{
		Inline: &domain.ShippingAddress{Street: " 5 Beach Rd ", City: "Rafah", Coordinates: coords},
	})
	require.NoError(t, err)
	assert.Equal(t, "5 Beach Rd", addr.Street)
	require.NotNil(t, addr.Coordinates)

	coords.Lat = 99
	assert.Equal(t, 1.0, addr.Coordinates.Lat)
}

func TestResolveShippingAddress_InlineMissingFields(t *testing.T) {
	_, err := ResolveShippingAddress(testPrincipal(), AddressInput{
		Inline: &domain.ShippingAddress{Street: "5 Beach Rd"},
	})
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestResolveShippingAddress_Required(t *testing.T) {
	_, err := ResolveShippingAddress(testPrincipal(), AddressInput{})
	assert.ErrorIs(t, err, ErrShippingAddressRequired)

	_, err = ResolveShippingAddress(testPrincipal(), AddressInput{AddressID: "   "})
	assert.ErrorIs(t, err, ErrShippingAddressRequired)
}
