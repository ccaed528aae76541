package orders

import "errors"

var (
	ErrNotFound          = errors.New("order not found")
	ErrForbidden         = errors.New("actor not allowed for this transition")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPaused            = errors.New("marketplace is paused")
	ErrPaymentMismatch   = errors.New("payment does not match order total")
	ErrMixedSellers      = errors.New("all line items must share one seller")
	ErrSellerUnknown     = errors.New("seller is not registered")
	ErrAlreadyDisputed   = errors.New("order already disputed")
	ErrCooldownActive    = errors.New("auto-release cooldown has not elapsed")
)
