package orders

import "time"

type LineItem struct {
	ProductID  int64 `json:"product_id"`
	Qty        int   `json:"qty"`
	PriceCents int64 `json:"price_cents"`
}

type Order struct {
	ID                int64      `json:"id"`
	ExternalID        string     `json:"external_id,omitempty"`
	BuyerID           string     `json:"buyer_id"`
	SellerID          string     `json:"seller_id"`
	Items             []LineItem `json:"items"`
	TotalCents        int64      `json:"total_cents"`
	ShippingFeeCents  int64      `json:"shipping_fee_cents"`
	Status            Status     `json:"status"`
	ShippingAddress   string     `json:"shipping_address"`
	TrackingInfo      string     `json:"tracking_info,omitempty"`
	Disputed          bool       `json:"disputed"`
	DisputeReason     string     `json:"dispute_reason,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// HeldCents is the full amount sitting in escrow for this order.
func (o *Order) HeldCents() int64 { return o.TotalCents + o.ShippingFeeCents }

type ItemInput struct {
	ProductID int64 `json:"product_id"`
	Qty       int   `json:"qty"`
}

// Settings is the mutable admin surface persisted alongside the records.
type Settings struct {
	Paused           bool   `json:"paused"`
	DeveloperAccount string `json:"developer_account"`
}
