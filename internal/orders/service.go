package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-escrow-market.git/internal/catalog"
	"github.com/ariefcatur/go-escrow-market.git/internal/escrow"
	kafkax "github.com/ariefcatur/go-escrow-market.git/internal/kafka"
	"github.com/ariefcatur/go-escrow-market.git/internal/ledger"
)

// EventSink receives lifecycle events after a transition has committed.
type EventSink interface {
	Publish(topic, eventType string, key, value []byte)
}

// Service is the order state machine. Every state-changing method runs as
// one Store transaction: status update, escrow flags, stock mutation and
// ledger postings commit together or not at all. Events go out only after
// commit.
type Service struct {
	Store  Store
	Events EventSink
	Log    *zap.Logger
	Name   string // producer name stamped into event envelopes

	FeeRateBps       int
	ShippingFeeCents int64
	AutoReleaseAfter time.Duration
	AutoUnlist       bool

	// Now is swappable in tests.
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) emit(topic, eventType string, orderID int64, payload any) {
	if s.Events == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    s.now(),
		Producer:      s.Name,
		CorrelationID: fmt.Sprintf("%d", orderID),
		Payload:       kafkax.MustMarshal(payload),
	}
	s.Events.Publish(topic, eventType, PartitionKey(orderID), kafkax.MustMarshal(ev))
}

func (s *Service) requireRunning(ctx context.Context, tx Tx) error {
	st, err := tx.Settings(ctx)
	if err != nil {
		return err
	}
	if st.Paused {
		return ErrPaused
	}
	return nil
}

// ---- catalog surface ----

func (s *Service) RegisterSeller(ctx context.Context, sellerID string) error {
	if sellerID == "" {
		return fmt.Errorf("missing seller id")
	}
	return s.Store.Within(ctx, func(tx Tx) error {
		return tx.RegisterSeller(ctx, sellerID)
	})
}

func (s *Service) CreateProduct(ctx context.Context, sellerID, name string, priceCents int64, stock int) (*catalog.Product, error) {
	p := &catalog.Product{
		SellerID:   sellerID,
		Name:       name,
		PriceCents: priceCents,
		Stock:      stock,
		Available:  stock > 0,
		CreatedAt:  s.now(),
		UpdatedAt:  s.now(),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	err := s.Store.Within(ctx, func(tx Tx) error {
		if err := s.requireRunning(ctx, tx); err != nil {
			return err
		}
		ok, err := tx.IsRegisteredSeller(ctx, sellerID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrSellerUnknown
		}
		id, err := tx.CreateProduct(ctx, p)
		if err != nil {
			return err
		}
		p.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Restock(ctx context.Context, sellerID string, productID int64, qty int) (*catalog.Product, error) {
	var out *catalog.Product
	err := s.Store.Within(ctx, func(tx Tx) error {
		if err := s.requireRunning(ctx, tx); err != nil {
			return err
		}
		p, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		if p.SellerID != sellerID {
			return ErrForbidden
		}
		if err := p.Restock(qty); err != nil {
			return err
		}
		p.UpdatedAt = s.now()
		out = p
		return tx.PutProduct(ctx, p)
	})
	return out, err
}

func (s *Service) SetAvailability(ctx context.Context, sellerID string, productID int64, available bool) error {
	return s.Store.Within(ctx, func(tx Tx) error {
		if err := s.requireRunning(ctx, tx); err != nil {
			return err
		}
		p, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		if p.SellerID != sellerID {
			return ErrForbidden
		}
		p.Available = available
		p.UpdatedAt = s.now()
		return tx.PutProduct(ctx, p)
	})
}

// ---- order creation ----

// CreateOrder is the payment-bearing entry point: validates the payment
// against the priced line items, reserves stock, creates the order and its
// escrow record, and posts the buyer's funds into the escrow account, all
// atomically. externalID is an optional idempotency handle.
func (s *Service) CreateOrder(ctx context.Context, buyerID, externalID string, items []ItemInput, shippingAddress string, paymentCents int64) (*Order, error) {
	if buyerID == "" {
		return nil, fmt.Errorf("missing buyer id")
	}
	if shippingAddress == "" {
		return nil, fmt.Errorf("missing shipping address")
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("order needs at least one line item")
	}
	for _, it := range items {
		if it.Qty <= 0 {
			return nil, fmt.Errorf("quantity must be positive for product %d", it.ProductID)
		}
	}

	var out *Order
	err := s.Store.Within(ctx, func(tx Tx) error {
		if err := s.requireRunning(ctx, tx); err != nil {
			return err
		}

		if externalID != "" {
			existing, err := tx.GetOrderByExternalID(ctx, externalID)
			if err == nil {
				out = existing
				return nil
			}
			if !errors.Is(err, ErrNotFound) {
				return err
			}
		}

		now := s.now()
		o := &Order{
			ExternalID:       externalID,
			BuyerID:          buyerID,
			ShippingFeeCents: s.ShippingFeeCents,
			Status:           StatusPaid,
			ShippingAddress:  shippingAddress,
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		for _, it := range items {
			p, err := tx.GetProduct(ctx, it.ProductID)
			if err != nil {
				return err
			}
			if o.SellerID == "" {
				o.SellerID = p.SellerID
			} else if o.SellerID != p.SellerID {
				return ErrMixedSellers
			}
			if err := p.Reserve(it.Qty, s.AutoUnlist); err != nil {
				return err
			}
			p.UpdatedAt = now
			if err := tx.PutProduct(ctx, p); err != nil {
				return err
			}
			o.Items = append(o.Items, LineItem{ProductID: p.ID, Qty: it.Qty, PriceCents: p.PriceCents})
			o.TotalCents += p.PriceCents * int64(it.Qty)
		}

		if ok, err := tx.IsRegisteredSeller(ctx, o.SellerID); err != nil {
			return err
		} else if !ok {
			return ErrSellerUnknown
		}
		if paymentCents != o.HeldCents() {
			return fmt.Errorf("%w: need %d, got %d", ErrPaymentMismatch, o.HeldCents(), paymentCents)
		}

		id, err := tx.CreateOrder(ctx, o)
		if err != nil {
			return err
		}
		o.ID = id

		if err := tx.CreateEscrow(ctx, escrow.New(id, o.TotalCents, s.FeeRateBps, now)); err != nil {
			return err
		}
		if err := tx.Post(ctx, ledger.Posting{
			FromAccount: ledger.AccountExternal,
			ToAccount:   ledger.AccountEscrow,
			AmountCents: o.HeldCents(),
			Memo:        fmt.Sprintf("order:%d hold", id),
			CreatedAt:   now,
		}); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(TopicOrderCreated, EventOrderCreated, out.ID, OrderCreatedPayload{
		OrderID:    out.ID,
		ExternalID: out.ExternalID,
		BuyerID:    out.BuyerID,
		SellerID:   out.SellerID,
		Items:      out.Items,
		TotalCents: out.TotalCents,
		HeldCents:  out.HeldCents(),
	})
	return out, nil
}

// ---- fulfillment transitions (seller) ----

func (s *Service) StartProcessing(ctx context.Context, sellerID string, orderID int64) error {
	return s.sellerStep(ctx, sellerID, orderID, StatusProcessing, "", EventOrderProcessing)
}

func (s *Service) Ship(ctx context.Context, sellerID string, orderID int64, trackingInfo string) error {
	if trackingInfo == "" {
		return fmt.Errorf("missing tracking info")
	}
	return s.sellerStep(ctx, sellerID, orderID, StatusShipped, trackingInfo, EventOrderShipped)
}

func (s *Service) MarkInDelivery(ctx context.Context, sellerID string, orderID int64) error {
	return s.sellerStep(ctx, sellerID, orderID, StatusInDelivery, "", EventOrderInDelivery)
}

func (s *Service) MarkDelivered(ctx context.Context, sellerID string, orderID int64) error {
	return s.sellerStep(ctx, sellerID, orderID, StatusDelivered, "", EventOrderDelivered)
}

func (s *Service) sellerStep(ctx context.Context, sellerID string, orderID int64, to Status, tracking, eventType string) error {
	var o *Order
	err := s.Store.Within(ctx, func(tx Tx) error {
		if err := s.requireRunning(ctx, tx); err != nil {
			return err
		}
		var err error
		o, err = tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.SellerID != sellerID {
			return ErrForbidden
		}
		if !CanTransition(o.Status, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
		}
		o.Status = to
		if tracking != "" {
			o.TrackingInfo = tracking
		}
		o.UpdatedAt = s.now()
		return tx.PutOrder(ctx, o)
	})
	if err != nil {
		return err
	}
	s.emit(TopicOrderFulfillment, eventType, orderID, OrderStatusPayload{
		OrderID: orderID, Status: o.Status, TrackingInfo: o.TrackingInfo,
	})
	return nil
}

// ---- completion / release path ----

// Confirm is the buyer acknowledging delivery: DELIVERED -> COMPLETED, the
// escrow becomes claimable and the developer fee plus shipping fee are paid
// out in the same transaction.
func (s *Service) Confirm(ctx context.Context, buyerID string, orderID int64) error {
	return s.complete(ctx, orderID, func(o *Order) error {
		if o.BuyerID != buyerID {
			return ErrForbidden
		}
		return nil
	})
}

// AutoRelease is the permissionless time-gated fallback: anyone may drive a
// DELIVERED order to COMPLETED once the cooldown has elapsed. It shares the
// completion path with Confirm; only the gate differs.
func (s *Service) AutoRelease(ctx context.Context, orderID int64) error {
	return s.complete(ctx, orderID, func(o *Order) error {
		if elapsed := s.now().Sub(o.UpdatedAt); elapsed < s.AutoReleaseAfter {
			return fmt.Errorf("%w: %s remaining", ErrCooldownActive, s.AutoReleaseAfter-elapsed)
		}
		return nil
	})
}

func (s *Service) complete(ctx context.Context, orderID int64, gate func(o *Order) error) error {
	var rec *escrow.Record
	err := s.Store.Within(ctx, func(tx Tx) error {
		if err := s.requireRunning(ctx, tx); err != nil {
			return err
		}
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status == StatusCompleted {
			return escrow.ErrAlreadyProcessed
		}
		if o.Status != StatusDelivered {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, StatusCompleted)
		}
		if err := gate(o); err != nil {
			return err
		}
		rec, err = tx.GetEscrow(ctx, orderID)
		if err != nil {
			return err
		}
		if err := rec.MarkClaimable(); err != nil {
			return err
		}
		// Fee legs must clear before the transition is observable; a failed
		// posting aborts the whole call.
		if err := s.payClaimableFees(ctx, tx, o, rec); err != nil {
			return err
		}
		if err := tx.PutEscrow(ctx, rec); err != nil {
			return err
		}
		o.Status = StatusCompleted
		o.UpdatedAt = s.now()
		return tx.PutOrder(ctx, o)
	})
	if err != nil {
		return err
	}
	s.emit(TopicOrderCompleted, EventOrderCompleted, orderID, OrderStatusPayload{OrderID: orderID, Status: StatusCompleted})
	s.emit(TopicEscrowSettled, EventEscrowClaimable, orderID, EscrowSettledPayload{
		OrderID:           orderID,
		AmountCents:       rec.AmountCents,
		DeveloperFeeCents: rec.DeveloperFeeCents,
		SellerAmountCents: rec.SellerAmountCents,
	})
	return nil
}

// payClaimableFees pushes the developer fee and the shipping fee; the seller
// principal stays in escrow until Claim pulls it.
func (s *Service) payClaimableFees(ctx context.Context, tx Tx, o *Order, rec *escrow.Record) error {
	st, err := tx.Settings(ctx)
	if err != nil {
		return err
	}
	now := s.now()
	if rec.DeveloperFeeCents > 0 {
		if err := tx.Post(ctx, ledger.Posting{
			FromAccount: ledger.AccountEscrow,
			ToAccount:   st.DeveloperAccount,
			AmountCents: rec.DeveloperFeeCents,
			Memo:        fmt.Sprintf("order:%d developer fee", o.ID),
			CreatedAt:   now,
		}); err != nil {
			return err
		}
	}
	if o.ShippingFeeCents > 0 {
		if err := tx.Post(ctx, ledger.Posting{
			FromAccount: ledger.AccountEscrow,
			ToAccount:   ledger.SellerAccount(o.SellerID),
			AmountCents: o.ShippingFeeCents,
			Memo:        fmt.Sprintf("order:%d shipping fee", o.ID),
			CreatedAt:   now,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Claim is the seller pulling the principal of a claimable escrow. Pays
// exactly sellerAmount and finalizes the record as released.
func (s *Service) Claim(ctx context.Context, sellerID string, orderID int64) (*escrow.Record, error) {
	var rec *escrow.Record
	err := s.Store.Within(ctx, func(tx Tx) error {
		if err := s.requireRunning(ctx, tx); err != nil {
			return err
		}
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.SellerID != sellerID {
			return ErrForbidden
		}
		rec, err = tx.GetEscrow(ctx, orderID)
		if err != nil {
			return err
		}
		now := s.now()
		if err := rec.MarkClaimed(now); err != nil {
			return err
		}
		if rec.SellerAmountCents > 0 {
			if err := tx.Post(ctx, ledger.Posting{
				FromAccount: ledger.AccountEscrow,
				ToAccount:   ledger.SellerAccount(sellerID),
				AmountCents: rec.SellerAmountCents,
				Memo:        fmt.Sprintf("order:%d seller claim", orderID),
				CreatedAt:   now,
			}); err != nil {
				return err
			}
		}
		return tx.PutEscrow(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	s.emit(TopicEscrowSettled, EventEscrowClaimed, orderID, EscrowSettledPayload{
		OrderID:           orderID,
		AmountCents:       rec.AmountCents,
		DeveloperFeeCents: rec.DeveloperFeeCents,
		SellerAmountCents: rec.SellerAmountCents,
	})
	return rec, nil
}

// ---- cancellation / refund ----

// Cancel refunds the buyer in full (amount + shipping fee) and restores
// stock. Buyers may cancel only from PAID; sellers from PAID or PROCESSING.
func (s *Service) Cancel(ctx context.Context, actorID string, orderID int64) error {
	var refund int64
	err := s.Store.Within(ctx, func(tx Tx) error {
		if err := s.requireRunning(ctx, tx); err != nil {
			return err
		}
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		switch actorID {
		case o.BuyerID:
			if o.Status != StatusPaid {
				return fmt.Errorf("%w: buyer may cancel only from %s", ErrInvalidTransition, StatusPaid)
			}
		case o.SellerID:
			if o.Status != StatusPaid && o.Status != StatusProcessing {
				return fmt.Errorf("%w: seller may cancel only from %s/%s", ErrInvalidTransition, StatusPaid, StatusProcessing)
			}
		default:
			return ErrForbidden
		}
		refund, err = s.refund(ctx, tx, o, true)
		if err != nil {
			return err
		}
		o.Status = StatusCancelled
		o.UpdatedAt = s.now()
		return tx.PutOrder(ctx, o)
	})
	if err != nil {
		return err
	}
	s.emit(TopicOrderCancelled, EventOrderCancelled, orderID, OrderCancelledPayload{
		OrderID: orderID, CancelledBy: actorID, RefundCents: refund,
	})
	s.emit(TopicEscrowSettled, EventEscrowRefunded, orderID, EscrowSettledPayload{OrderID: orderID, AmountCents: refund})
	return nil
}

// refund marks the escrow refunded, pays the buyer back amount + shipping
// and, when restock is set, puts all reserved units back on the shelf.
func (s *Service) refund(ctx context.Context, tx Tx, o *Order, restock bool) (int64, error) {
	rec, err := tx.GetEscrow(ctx, o.ID)
	if err != nil {
		return 0, err
	}
	now := s.now()
	if err := rec.MarkRefunded(now); err != nil {
		return 0, err
	}
	if err := tx.PutEscrow(ctx, rec); err != nil {
		return 0, err
	}
	refund := o.HeldCents()
	if err := tx.Post(ctx, ledger.Posting{
		FromAccount: ledger.AccountEscrow,
		ToAccount:   ledger.BuyerAccount(o.BuyerID),
		AmountCents: refund,
		Memo:        fmt.Sprintf("order:%d refund", o.ID),
		CreatedAt:   now,
	}); err != nil {
		return 0, err
	}
	if restock {
		if err := s.restoreStock(ctx, tx, o); err != nil {
			return 0, err
		}
	}
	return refund, nil
}

func (s *Service) restoreStock(ctx context.Context, tx Tx, o *Order) error {
	now := s.now()
	for _, it := range o.Items {
		p, err := tx.GetProduct(ctx, it.ProductID)
		if err != nil {
			return err
		}
		if err := p.Restore(it.Qty); err != nil {
			return err
		}
		p.UpdatedAt = now
		if err := tx.PutProduct(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// ---- disputes ----

func (s *Service) OpenDispute(ctx context.Context, actorID string, orderID int64, reason string) error {
	if reason == "" {
		return fmt.Errorf("missing dispute reason")
	}
	err := s.Store.Within(ctx, func(tx Tx) error {
		if err := s.requireRunning(ctx, tx); err != nil {
			return err
		}
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if actorID != o.BuyerID && actorID != o.SellerID {
			return ErrForbidden
		}
		if o.Disputed {
			return ErrAlreadyDisputed
		}
		if !o.Status.Disputable() {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, StatusDisputed)
		}
		now := s.now()
		if err := tx.CreateDispute(ctx, &escrow.Dispute{
			OrderID:   orderID,
			Initiator: actorID,
			Reason:    reason,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		o.Status = StatusDisputed
		o.Disputed = true
		o.DisputeReason = reason
		o.UpdatedAt = now
		return tx.PutOrder(ctx, o)
	})
	if err != nil {
		return err
	}
	s.emit(TopicOrderDisputed, EventOrderDisputed, orderID, OrderDisputedPayload{
		OrderID: orderID, Initiator: actorID, Reason: reason,
	})
	return nil
}

// ResolveDispute is the admin-only settlement of a disputed order. Every
// disbursement leg of the chosen resolution runs in the one transaction;
// any failing leg aborts the whole resolution.
func (s *Service) ResolveDispute(ctx context.Context, resolvedBy string, orderID int64, resolution escrow.Resolution) error {
	var payload DisputeResolvedPayload
	err := s.Store.Within(ctx, func(tx Tx) error {
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != StatusDisputed {
			return fmt.Errorf("%w: order is %s, not %s", ErrInvalidTransition, o.Status, StatusDisputed)
		}
		d, err := tx.GetOpenDispute(ctx, orderID)
		if err != nil {
			return err
		}
		rec, err := tx.GetEscrow(ctx, orderID)
		if err != nil {
			return err
		}
		now := s.now()
		payload = DisputeResolvedPayload{OrderID: orderID, Resolution: resolution, ResolvedBy: resolvedBy}

		switch resolution {
		case escrow.ResolutionRefundBuyer:
			refund, err := s.refund(ctx, tx, o, true)
			if err != nil {
				return err
			}
			payload.BuyerRefundCents = refund
			o.Status = StatusCancelled

		case escrow.ResolutionReleaseSeller:
			if err := rec.MarkClaimable(); err != nil {
				return err
			}
			if err := s.payClaimableFees(ctx, tx, o, rec); err != nil {
				return err
			}
			if err := tx.PutEscrow(ctx, rec); err != nil {
				return err
			}
			payload.FeeCents = rec.DeveloperFeeCents
			o.Status = StatusCompleted

		case escrow.ResolutionPartialSplit:
			// Split the seller share (not the gross amount): buyer gets half
			// plus the shipping fee back, seller keeps the other half, the
			// developer fee is paid in full.
			if err := rec.MarkReleased(now); err != nil {
				return err
			}
			buyerHalf := rec.SellerAmountCents / 2
			sellerHalf := rec.SellerAmountCents - buyerHalf
			st, err := tx.Settings(ctx)
			if err != nil {
				return err
			}
			legs := []ledger.Posting{
				{FromAccount: ledger.AccountEscrow, ToAccount: ledger.BuyerAccount(o.BuyerID),
					AmountCents: buyerHalf + o.ShippingFeeCents, Memo: fmt.Sprintf("order:%d split refund", orderID), CreatedAt: now},
				{FromAccount: ledger.AccountEscrow, ToAccount: ledger.SellerAccount(o.SellerID),
					AmountCents: sellerHalf, Memo: fmt.Sprintf("order:%d split payout", orderID), CreatedAt: now},
				{FromAccount: ledger.AccountEscrow, ToAccount: st.DeveloperAccount,
					AmountCents: rec.DeveloperFeeCents, Memo: fmt.Sprintf("order:%d developer fee", orderID), CreatedAt: now},
			}
			for _, leg := range legs {
				if leg.AmountCents == 0 {
					continue
				}
				if err := tx.Post(ctx, leg); err != nil {
					return err
				}
			}
			if err := tx.PutEscrow(ctx, rec); err != nil {
				return err
			}
			payload.BuyerRefundCents = buyerHalf + o.ShippingFeeCents
			payload.SellerPaidCents = sellerHalf
			payload.FeeCents = rec.DeveloperFeeCents
			o.Status = StatusCompleted

		default:
			return fmt.Errorf("unknown resolution %q", resolution)
		}

		d.Resolved = true
		d.Resolution = resolution
		d.ResolvedBy = resolvedBy
		d.ResolvedAt = now
		if err := tx.PutDispute(ctx, d); err != nil {
			return err
		}
		o.UpdatedAt = now
		return tx.PutOrder(ctx, o)
	})
	if err != nil {
		return err
	}
	s.emit(TopicOrderDisputed, EventDisputeResolved, orderID, payload)
	return nil
}

// ---- admin surface ----

func (s *Service) SetPaused(ctx context.Context, paused bool) error {
	return s.Store.Within(ctx, func(tx Tx) error {
		st, err := tx.Settings(ctx)
		if err != nil {
			return err
		}
		st.Paused = paused
		return tx.PutSettings(ctx, st)
	})
}

func (s *Service) SetDeveloperAccount(ctx context.Context, account string) error {
	if account == "" {
		return fmt.Errorf("missing developer account")
	}
	return s.Store.Within(ctx, func(tx Tx) error {
		st, err := tx.Settings(ctx)
		if err != nil {
			return err
		}
		st.DeveloperAccount = account
		return tx.PutSettings(ctx, st)
	})
}

// EmergencyWithdraw sweeps the whole escrow account to the owner, bypassing
// per-order records. Break-glass only; per-order escrows become unpayable.
func (s *Service) EmergencyWithdraw(ctx context.Context) (int64, error) {
	var swept int64
	err := s.Store.Within(ctx, func(tx Tx) error {
		bal, err := tx.AccountBalance(ctx, ledger.AccountEscrow)
		if err != nil {
			return err
		}
		if bal == 0 {
			return nil
		}
		swept = bal
		return tx.Post(ctx, ledger.Posting{
			FromAccount: ledger.AccountEscrow,
			ToAccount:   ledger.AccountOwner,
			AmountCents: bal,
			Memo:        "emergency withdraw",
			CreatedAt:   s.now(),
		})
	})
	if err != nil {
		return 0, err
	}
	if swept > 0 {
		s.emit(TopicEscrowSettled, EventEmergencyWithdrawn, 0, EmergencyWithdrawnPayload{AmountCents: swept})
		if s.Log != nil {
			s.Log.Warn("emergency withdraw executed", zap.Int64("amount_cents", swept))
		}
	}
	return swept, nil
}

// ---- reads ----

func (s *Service) GetOrder(ctx context.Context, id int64) (*Order, error) {
	return s.Store.FindOrder(ctx, id)
}

func (s *Service) GetEscrow(ctx context.Context, orderID int64) (*escrow.Record, error) {
	var rec *escrow.Record
	err := s.Store.Within(ctx, func(tx Tx) error {
		var err error
		rec, err = tx.GetEscrow(ctx, orderID)
		return err
	})
	return rec, err
}

func (s *Service) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	return s.Store.ListProducts(ctx)
}
