package escrow

import (
	"errors"
	"fmt"
	"time"
)

var ErrDisputeNotFound = errors.New("no unresolved dispute for order")

type Resolution string

const (
	ResolutionRefundBuyer   Resolution = "REFUND_BUYER"
	ResolutionReleaseSeller Resolution = "RELEASE_SELLER"
	ResolutionPartialSplit  Resolution = "PARTIAL_SPLIT"
)

func ParseResolution(s string) (Resolution, error) {
	switch Resolution(s) {
	case ResolutionRefundBuyer, ResolutionReleaseSeller, ResolutionPartialSplit:
		return Resolution(s), nil
	}
	return "", fmt.Errorf("unknown resolution %q", s)
}

// Dispute is a side record gating which disbursement path an admin may
// trigger. It holds no funds itself.
type Dispute struct {
	ID         int64      `json:"id"`
	OrderID    int64      `json:"order_id"`
	Initiator  string     `json:"initiator"`
	Reason     string     `json:"reason"`
	Resolution Resolution `json:"resolution,omitempty"`
	Resolved   bool       `json:"resolved"`
	ResolvedBy string     `json:"resolved_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt time.Time  `json:"resolved_at,omitempty"`
}
