package orders_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/ariefcatur/go-escrow-market.git/internal/catalog"
	"github.com/ariefcatur/go-escrow-market.git/internal/escrow"
	"github.com/ariefcatur/go-escrow-market.git/internal/ledger"
	"github.com/ariefcatur/go-escrow-market.git/internal/orders"
	"github.com/ariefcatur/go-escrow-market.git/internal/storetest"
)

const (
	buyer  = "b1"
	seller = "s1"
)

type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingSink) Publish(topic, eventType string, key, value []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
}

func (r *recordingSink) has(eventType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == eventType {
			return true
		}
	}
	return false
}

type fixture struct {
	store *storetest.Mem
	sink  *recordingSink
	svc   *orders.Service
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: storetest.New(),
		sink:  &recordingSink{},
		clock: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = &orders.Service{
		Store:            f.store,
		Events:           f.sink,
		Log:              zaptest.NewLogger(t),
		Name:             "market-api-test",
		FeeRateBps:       100, // 1%
		ShippingFeeCents: 500,
		AutoReleaseAfter: 14 * 24 * time.Hour,
		AutoUnlist:       true,
		Now:              func() time.Time { return f.clock },
	}
	ctx := context.Background()
	if err := f.svc.RegisterSeller(ctx, seller); err != nil {
		t.Fatalf("register seller: %v", err)
	}
	return f
}

func (f *fixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

// seedProduct lists a 1.00 widget with 5 units.
func (f *fixture) seedProduct(t *testing.T) *catalog.Product {
	t.Helper()
	p, err := f.svc.CreateProduct(context.Background(), seller, "widget", 100, 5)
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

// seedOrder places the standard order: 5 widgets, 5.00 total, 5.00 shipping.
func (f *fixture) seedOrder(t *testing.T) *orders.Order {
	t.Helper()
	p := f.seedProduct(t)
	o, err := f.svc.CreateOrder(context.Background(), buyer, "",
		[]orders.ItemInput{{ProductID: p.ID, Qty: 5}}, "12 Main St", 1000)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

// deliver walks the order through the full fulfillment path.
func (f *fixture) deliver(t *testing.T, orderID int64) {
	t.Helper()
	ctx := context.Background()
	if err := f.svc.StartProcessing(ctx, seller, orderID); err != nil {
		t.Fatalf("processing: %v", err)
	}
	if err := f.svc.Ship(ctx, seller, orderID, "TRK-1"); err != nil {
		t.Fatalf("ship: %v", err)
	}
	if err := f.svc.MarkInDelivery(ctx, seller, orderID); err != nil {
		t.Fatalf("in delivery: %v", err)
	}
	if err := f.svc.MarkDelivered(ctx, seller, orderID); err != nil {
		t.Fatalf("delivered: %v", err)
	}
}

func TestCreateOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	o := f.seedOrder(t)

	if o.ID != 1 {
		t.Errorf("order id = %d, want 1", o.ID)
	}
	if o.TotalCents != 500 || o.HeldCents() != 1000 {
		t.Errorf("total = %d, held = %d, want 500/1000", o.TotalCents, o.HeldCents())
	}
	if o.Status != orders.StatusPaid {
		t.Errorf("status = %s, want PAID", o.Status)
	}

	rec, err := f.svc.GetEscrow(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("get escrow: %v", err)
	}
	if rec.DeveloperFeeCents != 5 || rec.SellerAmountCents != 495 {
		t.Errorf("split = (%d, %d), want (5, 495)", rec.DeveloperFeeCents, rec.SellerAmountCents)
	}
	if rec.DeveloperFeeCents+rec.SellerAmountCents != rec.AmountCents {
		t.Errorf("fee + seller != amount")
	}

	if got := f.store.Balance(ledger.AccountEscrow); got != 1000 {
		t.Errorf("escrow balance = %d, want 1000", got)
	}

	ps, _ := f.svc.ListProducts(context.Background())
	if ps[0].Stock != 0 || ps[0].SoldCount != 5 {
		t.Errorf("stock = %d sold = %d, want 0/5", ps[0].Stock, ps[0].SoldCount)
	}
	if ps[0].Available {
		t.Errorf("auto-unlist should have cleared availability at zero stock")
	}
	if !f.sink.has(orders.EventOrderCreated) {
		t.Errorf("OrderCreated not emitted")
	}
}

func TestCreateOrderValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	p := f.seedProduct(t)
	ctx := context.Background()

	if _, err := f.svc.CreateOrder(ctx, buyer, "", []orders.ItemInput{{ProductID: p.ID, Qty: 5}}, "addr", 999); !errors.Is(err, orders.ErrPaymentMismatch) {
		t.Errorf("short payment: want ErrPaymentMismatch, got %v", err)
	}
	if _, err := f.svc.CreateOrder(ctx, buyer, "", []orders.ItemInput{{ProductID: p.ID, Qty: 6}}, "addr", 1100); !errors.Is(err, catalog.ErrInsufficientStock) {
		t.Errorf("oversell: want ErrInsufficientStock, got %v", err)
	}
	if _, err := f.svc.CreateOrder(ctx, buyer, "", []orders.ItemInput{{ProductID: p.ID, Qty: 0}}, "addr", 500); err == nil {
		t.Errorf("zero quantity accepted")
	}
	if _, err := f.svc.CreateOrder(ctx, buyer, "", nil, "addr", 500); err == nil {
		t.Errorf("empty order accepted")
	}
	if _, err := f.svc.CreateOrder(ctx, buyer, "", []orders.ItemInput{{ProductID: 99, Qty: 1}}, "addr", 600); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("unknown product: want ErrNotFound, got %v", err)
	}

	// nothing above may have moved stock or money
	ps, _ := f.svc.ListProducts(ctx)
	if ps[0].Stock != 5 || ps[0].SoldCount != 0 {
		t.Errorf("failed creates mutated stock: %d/%d", ps[0].Stock, ps[0].SoldCount)
	}
	if got := f.store.Balance(ledger.AccountEscrow); got != 0 {
		t.Errorf("failed creates moved money: %d", got)
	}
}

func TestCreateOrderMixedSellers(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	p1 := f.seedProduct(t)
	if err := f.svc.RegisterSeller(ctx, "s2"); err != nil {
		t.Fatal(err)
	}
	p2, err := f.svc.CreateProduct(ctx, "s2", "gadget", 200, 3)
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.CreateOrder(ctx, buyer, "",
		[]orders.ItemInput{{ProductID: p1.ID, Qty: 1}, {ProductID: p2.ID, Qty: 1}}, "addr", 800)
	if !errors.Is(err, orders.ErrMixedSellers) {
		t.Fatalf("want ErrMixedSellers, got %v", err)
	}
}

func TestCreateOrderUnregisteredSeller(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.CreateProduct(ctx, "ghost", "thing", 100, 1); !errors.Is(err, orders.ErrSellerUnknown) {
		t.Fatalf("want ErrSellerUnknown, got %v", err)
	}
}

func TestCreateOrderIdempotentByExternalID(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProduct(t)

	o1, err := f.svc.CreateOrder(ctx, buyer, "ext-1", []orders.ItemInput{{ProductID: p.ID, Qty: 2}}, "addr", 700)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	o2, err := f.svc.CreateOrder(ctx, buyer, "ext-1", []orders.ItemInput{{ProductID: p.ID, Qty: 2}}, "addr", 700)
	if err != nil {
		t.Fatalf("replay create: %v", err)
	}
	if o1.ID != o2.ID {
		t.Fatalf("replay created a new order: %d vs %d", o1.ID, o2.ID)
	}
	ps, _ := f.svc.ListProducts(ctx)
	if ps[0].Stock != 3 {
		t.Fatalf("replay reserved stock twice: stock=%d", ps[0].Stock)
	}
	if got := f.store.Balance(ledger.AccountEscrow); got != 700 {
		t.Fatalf("replay held funds twice: %d", got)
	}
}

func TestBuyerCancelRefundsAndRestores(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	o := f.seedOrder(t)

	if err := f.svc.Cancel(ctx, buyer, o.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	got, _ := f.svc.GetOrder(ctx, o.ID)
	if got.Status != orders.StatusCancelled {
		t.Errorf("status = %s, want CANCELLED", got.Status)
	}
	if bal := f.store.Balance(ledger.BuyerAccount(buyer)); bal != 1000 {
		t.Errorf("buyer refund = %d, want 1000 (total + shipping)", bal)
	}
	if bal := f.store.Balance(ledger.AccountEscrow); bal != 0 {
		t.Errorf("escrow balance = %d after refund, want 0", bal)
	}
	ps, _ := f.svc.ListProducts(ctx)
	if ps[0].Stock != 5 || ps[0].SoldCount != 0 {
		t.Errorf("stock not conserved: stock=%d sold=%d", ps[0].Stock, ps[0].SoldCount)
	}

	rec, _ := f.svc.GetEscrow(ctx, o.ID)
	if !rec.Refunded || rec.Released {
		t.Errorf("escrow flags wrong after refund: %+v", rec)
	}
	if err := f.svc.Cancel(ctx, buyer, o.ID); !errors.Is(err, orders.ErrInvalidTransition) {
		t.Errorf("second cancel: want ErrInvalidTransition, got %v", err)
	}
	if !f.sink.has(orders.EventEscrowRefunded) {
		t.Errorf("EscrowRefunded not emitted")
	}
}

func TestCancelActorGating(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	o := f.seedOrder(t)

	if err := f.svc.Cancel(ctx, "stranger", o.ID); !errors.Is(err, orders.ErrForbidden) {
		t.Errorf("stranger cancel: want ErrForbidden, got %v", err)
	}
	if err := f.svc.StartProcessing(ctx, seller, o.ID); err != nil {
		t.Fatal(err)
	}
	// buyer may only cancel from PAID
	if err := f.svc.Cancel(ctx, buyer, o.ID); !errors.Is(err, orders.ErrInvalidTransition) {
		t.Errorf("buyer cancel from PROCESSING: want ErrInvalidTransition, got %v", err)
	}
	// seller still may
	if err := f.svc.Cancel(ctx, seller, o.ID); err != nil {
		t.Errorf("seller cancel from PROCESSING: %v", err)
	}
}

func TestCancelAfterShipRejected(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	o := f.seedOrder(t)
	if err := f.svc.Ship(ctx, seller, o.ID, "TRK-9"); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Cancel(ctx, seller, o.ID); !errors.Is(err, orders.ErrInvalidTransition) {
		t.Fatalf("cancel after ship: want ErrInvalidTransition, got %v", err)
	}
}

func TestFulfillmentGating(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	o := f.seedOrder(t)

	if err := f.svc.Ship(ctx, buyer, o.ID, "TRK-1"); !errors.Is(err, orders.ErrForbidden) {
		t.Errorf("buyer ship: want ErrForbidden, got %v", err)
	}
	if err := f.svc.MarkDelivered(ctx, seller, o.ID); !errors.Is(err, orders.ErrInvalidTransition) {
		t.Errorf("delivered from PAID: want ErrInvalidTransition, got %v", err)
	}
	if err := f.svc.Ship(ctx, seller, o.ID, ""); err == nil {
		t.Errorf("ship without tracking accepted")
	}
	if err := f.svc.Ship(ctx, seller, o.ID, "TRK-1"); err != nil {
		t.Fatalf("ship: %v", err)
	}
	got, _ := f.svc.GetOrder(ctx, o.ID)
	if got.TrackingInfo != "TRK-1" {
		t.Errorf("tracking not set: %q", got.TrackingInfo)
	}
}

func TestConfirmReleasesClaim(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	o := f.seedOrder(t)
	f.deliver(t, o.ID)

	if err := f.svc.Confirm(ctx, seller, o.ID); !errors.Is(err, orders.ErrForbidden) {
		t.Fatalf("seller confirm: want ErrForbidden, got %v", err)
	}
	if err := f.svc.Confirm(ctx, buyer, o.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	got, _ := f.svc.GetOrder(ctx, o.ID)
	if got.Status != orders.StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", got.Status)
	}
	// fee and shipping pushed at claimable-transition
	if bal := f.store.Balance("developer"); bal != 5 {
		t.Errorf("developer balance = %d, want 5", bal)
	}
	if bal := f.store.Balance(ledger.SellerAccount(seller)); bal != 500 {
		t.Errorf("seller balance = %d, want 500 (shipping only, principal unclaimed)", bal)
	}
	rec, _ := f.svc.GetEscrow(ctx, o.ID)
	if !rec.Claimable || rec.Claimed || rec.Released {
		t.Errorf("escrow flags after confirm: %+v", rec)
	}

	// seller pulls the principal
	if _, err := f.svc.Claim(ctx, buyer, o.ID); !errors.Is(err, orders.ErrForbidden) {
		t.Errorf("buyer claim: want ErrForbidden, got %v", err)
	}
	rec, err := f.svc.Claim(ctx, seller, o.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !rec.Claimed || !rec.Released || rec.ReleasedAt.IsZero() {
		t.Errorf("claim flags: %+v", rec)
	}
	if bal := f.store.Balance(ledger.SellerAccount(seller)); bal != 995 {
		t.Errorf("seller balance = %d, want 995", bal)
	}
	if bal := f.store.Balance(ledger.AccountEscrow); bal != 0 {
		t.Errorf("escrow drained to %d, want 0", bal)
	}
	if _, err := f.svc.Claim(ctx, seller, o.ID); !errors.Is(err, escrow.ErrAlreadyProcessed) {
		t.Errorf("second claim: want ErrAlreadyProcessed, got %v", err)
	}
	if !f.sink.has(orders.EventEscrowClaimable) || !f.sink.has(orders.EventEscrowClaimed) {
		t.Errorf("escrow events missing: %v", f.sink.events)
	}
}

func TestConfirmTooEarly(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	o := f.seedOrder(t)
	if err := f.svc.Confirm(ctx, buyer, o.ID); !errors.Is(err, orders.ErrInvalidTransition) {
		t.Fatalf("confirm from PAID: want ErrInvalidTransition, got %v", err)
	}
}

func TestAutoRelease(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	o := f.seedOrder(t)
	f.deliver(t, o.ID)

	f.advance(14*24*time.Hour - time.Second)
	if err := f.svc.AutoRelease(ctx, o.ID); !errors.Is(err, orders.ErrCooldownActive) {
		t.Fatalf("before cooldown: want ErrCooldownActive, got %v", err)
	}

	f.advance(2 * time.Second)
	if err := f.svc.AutoRelease(ctx, o.ID); err != nil {
		t.Fatalf("auto release: %v", err)
	}
	got, _ := f.svc.GetOrder(ctx, o.ID)
	if got.Status != orders.StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", got.Status)
	}
	rec, _ := f.svc.GetEscrow(ctx, o.ID)
	if !rec.Claimable {
		t.Errorf("escrow not claimable after auto-release")
	}
	// same disbursement as the buyer-confirm path
	if bal := f.store.Balance("developer"); bal != 5 {
		t.Errorf("developer balance = %d, want 5", bal)
	}

	if err := f.svc.AutoRelease(ctx, o.ID); !errors.Is(err, escrow.ErrAlreadyProcessed) {
		t.Fatalf("second auto release: want ErrAlreadyProcessed, got %v", err)
	}
}

func TestAutoReleaseBlockedByDispute(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	o := f.seedOrder(t)
	f.deliver(t, o.ID)
	if err := f.svc.OpenDispute(ctx, buyer, o.ID, "damaged goods"); err != nil {
		t.Fatal(err)
	}
	f.advance(15 * 24 * time.Hour)
	if err := f.svc.AutoRelease(ctx, o.ID); !errors.Is(err, orders.ErrInvalidTransition) {
		t.Fatalf("auto release of disputed order: want ErrInvalidTransition, got %v", err)
	}
}

func TestDisputeGating(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	o := f.seedOrder(t)

	if err := f.svc.OpenDispute(ctx, "stranger", o.ID, "reason"); !errors.Is(err, orders.ErrForbidden) {
		t.Errorf("stranger dispute: want ErrForbidden, got %v", err)
	}
	if err := f.svc.OpenDispute(ctx, buyer, o.ID, ""); err == nil {
		t.Errorf("empty reason accepted")
	}
	if err := f.svc.OpenDispute(ctx, buyer, o.ID, "never arrived"); err != nil {
		t.Fatalf("dispute: %v", err)
	}
	if err := f.svc.OpenDispute(ctx, seller, o.ID, "counter"); !errors.Is(err, orders.ErrAlreadyDisputed) {
		t.Errorf("double dispute: want ErrAlreadyDisputed, got %v", err)
	}
	// normal transitions blocked while disputed
	if err := f.svc.Ship(ctx, seller, o.ID, "TRK"); !errors.Is(err, orders.ErrInvalidTransition) {
		t.Errorf("ship while disputed: want ErrInvalidTransition, got %v", err)
	}
	if err := f.svc.Cancel(ctx, buyer, o.ID); !errors.Is(err, orders.ErrInvalidTransition) {
		t.Errorf("cancel while disputed: want ErrInvalidTransition, got %v", err)
	}
}

func TestResolveDisputeRefund(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	o := f.seedOrder(t)
	if err := f.svc.OpenDispute(ctx, buyer, o.ID, "changed mind, seller agrees"); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.ResolveDispute(ctx, "admin", o.ID, escrow.ResolutionRefundBuyer); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	got, _ := f.svc.GetOrder(ctx, o.ID)
	if got.Status != orders.StatusCancelled {
		t.Errorf("status = %s, want CANCELLED", got.Status)
	}
	if bal := f.store.Balance(ledger.BuyerAccount(buyer)); bal != 1000 {
		t.Errorf("buyer refund = %d, want 1000", bal)
	}
	ps, _ := f.svc.ListProducts(ctx)
	if ps[0].Stock != 5 {
		t.Errorf("stock not restored: %d", ps[0].Stock)
	}
	if err := f.svc.ResolveDispute(ctx, "admin", o.ID, escrow.ResolutionRefundBuyer); !errors.Is(err, orders.ErrInvalidTransition) {
		t.Errorf("second resolve: want ErrInvalidTransition, got %v", err)
	}
}

func TestResolveDisputeReleaseSeller(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	o := f.seedOrder(t)
	f.deliver(t, o.ID)
	if err := f.svc.OpenDispute(ctx, buyer, o.ID, "claims not delivered"); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.ResolveDispute(ctx, "admin", o.ID, escrow.ResolutionReleaseSeller); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	got, _ := f.svc.GetOrder(ctx, o.ID)
	if got.Status != orders.StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", got.Status)
	}
	if bal := f.store.Balance("developer"); bal != 5 {
		t.Errorf("developer fee = %d, want 5", bal)
	}
	// seller pulls the principal exactly as in the normal path
	if _, err := f.svc.Claim(ctx, seller, o.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if bal := f.store.Balance(ledger.SellerAccount(seller)); bal != 995 {
		t.Errorf("seller balance = %d, want 995", bal)
	}
}

func TestResolveDisputePartialSplit(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	o := f.seedOrder(t)
	f.deliver(t, o.ID)
	if err := f.svc.OpenDispute(ctx, buyer, o.ID, "half the goods damaged"); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.ResolveDispute(ctx, "admin", o.ID, escrow.ResolutionPartialSplit); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// sellerAmount 495: buyer half 247 + shipping 500, seller 248, fee 5
	buyerBal := f.store.Balance(ledger.BuyerAccount(buyer))
	sellerBal := f.store.Balance(ledger.SellerAccount(seller))
	devBal := f.store.Balance("developer")
	if buyerBal != 747 {
		t.Errorf("buyer = %d, want 747", buyerBal)
	}
	if sellerBal != 248 {
		t.Errorf("seller = %d, want 248", sellerBal)
	}
	if devBal != 5 {
		t.Errorf("developer = %d, want 5", devBal)
	}
	if sum := buyerBal + sellerBal + devBal; sum != o.HeldCents() {
		t.Errorf("split legs sum to %d, want %d", sum, o.HeldCents())
	}
	if bal := f.store.Balance(ledger.AccountEscrow); bal != 0 {
		t.Errorf("escrow balance = %d after split, want 0", bal)
	}

	rec, _ := f.svc.GetEscrow(ctx, o.ID)
	if !rec.Released || rec.Refunded {
		t.Errorf("escrow flags after split: %+v", rec)
	}
	if _, err := f.svc.Claim(ctx, seller, o.ID); !errors.Is(err, escrow.ErrAlreadyProcessed) {
		t.Errorf("claim after split: want ErrAlreadyProcessed, got %v", err)
	}
	got, _ := f.svc.GetOrder(ctx, o.ID)
	if got.Status != orders.StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", got.Status)
	}
}

func TestResolveWithoutDispute(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	o := f.seedOrder(t)
	if err := f.svc.ResolveDispute(ctx, "admin", o.ID, escrow.ResolutionRefundBuyer); !errors.Is(err, orders.ErrInvalidTransition) {
		t.Fatalf("resolve undisputed: want ErrInvalidTransition, got %v", err)
	}
}

func TestPauseGate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProduct(t)

	if err := f.svc.SetPaused(ctx, true); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.CreateOrder(ctx, buyer, "", []orders.ItemInput{{ProductID: p.ID, Qty: 1}}, "addr", 600); !errors.Is(err, orders.ErrPaused) {
		t.Errorf("create while paused: want ErrPaused, got %v", err)
	}
	if _, err := f.svc.CreateProduct(ctx, seller, "another", 100, 1); !errors.Is(err, orders.ErrPaused) {
		t.Errorf("product create while paused: want ErrPaused, got %v", err)
	}
	if err := f.svc.SetPaused(ctx, false); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.CreateOrder(ctx, buyer, "", []orders.ItemInput{{ProductID: p.ID, Qty: 1}}, "addr", 600); err != nil {
		t.Errorf("create after unpause: %v", err)
	}
}

// A transition whose payout leg fails must leave no trace: we drain the
// escrow account out from under a delivered order and check that confirm
// fails without flipping any flag.
func TestFailedPayoutRollsBackWholeTransition(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	o := f.seedOrder(t)
	f.deliver(t, o.ID)

	swept, err := f.svc.EmergencyWithdraw(ctx)
	if err != nil {
		t.Fatalf("emergency withdraw: %v", err)
	}
	if swept != 1000 {
		t.Fatalf("swept = %d, want 1000", swept)
	}
	if bal := f.store.Balance(ledger.AccountOwner); bal != 1000 {
		t.Fatalf("owner balance = %d, want 1000", bal)
	}

	err = f.svc.Confirm(ctx, buyer, o.ID)
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("confirm against drained escrow: want ErrInsufficientFunds, got %v", err)
	}
	got, _ := f.svc.GetOrder(ctx, o.ID)
	if got.Status != orders.StatusDelivered {
		t.Errorf("status mutated by failed confirm: %s", got.Status)
	}
	rec, _ := f.svc.GetEscrow(ctx, o.ID)
	if rec.Claimable || rec.Released {
		t.Errorf("escrow flags mutated by failed confirm: %+v", rec)
	}
	if bal := f.store.Balance("developer"); bal != 0 {
		t.Errorf("partial payout persisted: developer = %d", bal)
	}
}

func TestListAutoReleasable(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	o := f.seedOrder(t)
	f.deliver(t, o.ID)
	deliveredAt := f.clock

	ids, err := f.store.ListAutoReleasable(ctx, deliveredAt.Add(-time.Second), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Fatalf("order not yet eligible, got %v", ids)
	}
	ids, err = f.store.ListAutoReleasable(ctx, deliveredAt, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != o.ID {
		t.Fatalf("want [%d], got %v", o.ID, ids)
	}
}
