package catalog

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound          = errors.New("product not found")
	ErrUnavailable       = errors.New("product unavailable")
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInconsistent means a restore would drive soldCount negative.
	// That is a bookkeeping bug, never a normal caller error.
	ErrInconsistent = errors.New("inventory inconsistent")
)

type Product struct {
	ID         int64     `json:"id"`
	SellerID   string    `json:"seller_id"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
	Stock      int       `json:"stock"`
	Available  bool      `json:"available"`
	SoldCount  int       `json:"sold_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Validate checks creation input only; lifecycle invariants live in
// Reserve/Restore.
func (p *Product) Validate() error {
	if p.SellerID == "" {
		return fmt.Errorf("missing seller")
	}
	if p.Name == "" {
		return fmt.Errorf("empty product name")
	}
	if p.PriceCents <= 0 {
		return fmt.Errorf("price must be positive")
	}
	if p.Stock < 0 {
		return fmt.Errorf("negative stock")
	}
	return nil
}

// Reserve takes qty units off the shelf for an order being created.
// autoUnlist flips Available off when the last unit goes.
func (p *Product) Reserve(qty int, autoUnlist bool) error {
	if qty <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	if !p.Available {
		return ErrUnavailable
	}
	if p.Stock < qty {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientStock, p.Stock, qty)
	}
	p.Stock -= qty
	p.SoldCount += qty
	if autoUnlist && p.Stock == 0 {
		p.Available = false
	}
	return nil
}

// Restore puts qty units back after a cancellation or refund.
// It never flips Available back on; relisting is the seller's call.
func (p *Product) Restore(qty int) error {
	if qty <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	if p.SoldCount < qty {
		return fmt.Errorf("%w: sold_count %d < restore %d", ErrInconsistent, p.SoldCount, qty)
	}
	p.Stock += qty
	p.SoldCount -= qty
	return nil
}

func (p *Product) Restock(qty int) error {
	if qty <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	p.Stock += qty
	return nil
}
