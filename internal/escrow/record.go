package escrow

import (
	"errors"
	"time"
)

var (
	// ErrAlreadyProcessed guards the one-and-only-one disbursement rule:
	// once a record is released or refunded, no further fund movement.
	ErrAlreadyProcessed = errors.New("escrow already processed")
	ErrNotFound         = errors.New("escrow record not found")
	ErrExists           = errors.New("escrow record already exists")
	ErrNotClaimable     = errors.New("escrow not claimable")
)

// Record is the fund-accounting entry for one order. Amount excludes the
// shipping fee; the shipping fee travels alongside and is settled with the
// same terminal transition.
type Record struct {
	OrderID           int64     `json:"order_id"`
	AmountCents       int64     `json:"amount_cents"`
	DeveloperFeeCents int64     `json:"developer_fee_cents"`
	SellerAmountCents int64     `json:"seller_amount_cents"`
	Claimable         bool      `json:"claimable"`
	Claimed           bool      `json:"claimed"`
	Released          bool      `json:"released"`
	Refunded          bool      `json:"refunded"`
	CreatedAt         time.Time `json:"created_at"`
	ReleasedAt        time.Time `json:"released_at,omitempty"`
}

// Split computes the fee cut. Integer division truncates, so the rounding
// unit (at most 1 cent) stays with the seller side of the remainder math:
// fee + seller == amount always.
func Split(amountCents int64, feeRateBps int) (feeCents, sellerCents int64) {
	feeCents = amountCents * int64(feeRateBps) / 10000
	sellerCents = amountCents - feeCents
	return feeCents, sellerCents
}

func New(orderID, amountCents int64, feeRateBps int, now time.Time) *Record {
	fee, seller := Split(amountCents, feeRateBps)
	return &Record{
		OrderID:           orderID,
		AmountCents:       amountCents,
		DeveloperFeeCents: fee,
		SellerAmountCents: seller,
		CreatedAt:         now,
	}
}

// Terminal reports whether any further fund movement is forbidden.
func (r *Record) Terminal() bool { return r.Released || r.Refunded }

// MarkClaimable finalizes the entitlement: developer fee goes out now,
// seller principal becomes pullable via MarkClaimed.
func (r *Record) MarkClaimable() error {
	if r.Terminal() || r.Claimable {
		return ErrAlreadyProcessed
	}
	r.Claimable = true
	return nil
}

// MarkClaimed settles a claimable record as released.
func (r *Record) MarkClaimed(now time.Time) error {
	if r.Terminal() {
		return ErrAlreadyProcessed
	}
	if !r.Claimable {
		return ErrNotClaimable
	}
	r.Claimed = true
	r.Released = true
	r.ReleasedAt = now
	return nil
}

// MarkReleased settles the record directly, without the claim step. Used by
// admin dispute resolution where all legs are pushed in one call.
func (r *Record) MarkReleased(now time.Time) error {
	if r.Terminal() || r.Claimable {
		return ErrAlreadyProcessed
	}
	r.Released = true
	r.ReleasedAt = now
	return nil
}

func (r *Record) MarkRefunded(now time.Time) error {
	if r.Terminal() || r.Claimable {
		return ErrAlreadyProcessed
	}
	r.Refunded = true
	r.ReleasedAt = now
	return nil
}
