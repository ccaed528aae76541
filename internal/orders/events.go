package orders

import (
	"encoding/json"
	"time"

	"github.com/ariefcatur/go-escrow-market.git/internal/escrow"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderProcessing    = "OrderProcessing"
	EventOrderShipped       = "OrderShipped"
	EventOrderInDelivery    = "OrderInDelivery"
	EventOrderDelivered     = "OrderDelivered"
	EventOrderCompleted     = "OrderCompleted"
	EventOrderCancelled     = "OrderCancelled"
	EventOrderDisputed      = "OrderDisputed"
	EventDisputeResolved    = "DisputeResolved"
	EventEscrowClaimable    = "EscrowClaimable"
	EventEscrowClaimed      = "EscrowClaimed"
	EventEscrowRefunded     = "EscrowRefunded"
	EventEmergencyWithdrawn = "EmergencyWithdrawn"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- payload per event ----

type OrderCreatedPayload struct {
	OrderID    int64      `json:"order_id"`
	ExternalID string     `json:"external_id,omitempty"`
	BuyerID    string     `json:"buyer_id"`
	SellerID   string     `json:"seller_id"`
	Items      []LineItem `json:"items"`
	TotalCents int64      `json:"total_cents"`
	HeldCents  int64      `json:"held_cents"`
}

type OrderStatusPayload struct {
	OrderID      int64  `json:"order_id"`
	Status       Status `json:"status"`
	TrackingInfo string `json:"tracking_info,omitempty"`
}

type OrderCancelledPayload struct {
	OrderID      int64  `json:"order_id"`
	CancelledBy  string `json:"cancelled_by"`
	RefundCents  int64  `json:"refund_cents"`
}

type OrderDisputedPayload struct {
	OrderID   int64  `json:"order_id"`
	Initiator string `json:"initiator"`
	Reason    string `json:"reason"`
}

type DisputeResolvedPayload struct {
	OrderID          int64             `json:"order_id"`
	Resolution       escrow.Resolution `json:"resolution"`
	ResolvedBy       string            `json:"resolved_by"`
	BuyerRefundCents int64             `json:"buyer_refund_cents"`
	SellerPaidCents  int64             `json:"seller_paid_cents"`
	FeeCents         int64             `json:"fee_cents"`
}

type EscrowSettledPayload struct {
	OrderID           int64 `json:"order_id"`
	AmountCents       int64 `json:"amount_cents"`
	DeveloperFeeCents int64 `json:"developer_fee_cents"`
	SellerAmountCents int64 `json:"seller_amount_cents"`
}

type EmergencyWithdrawnPayload struct {
	AmountCents int64 `json:"amount_cents"`
}
