package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductState string

const (
	ProductStateActive  ProductState = "active"
	ProductStateRetired ProductState = "retired"
)

// Product is the catalog entry the inventory ledger reserves against.
// Only Stock is ever mutated by order workflows.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	State       ProductState
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (p *Product) IsActive() bool {
	return p.State == ProductStateActive
}
