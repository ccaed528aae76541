// Package storetest provides an in-memory orders.Store with the same
// transactional contract as the pg store: every Within call either commits
// all of its writes or none of them. Used by unit tests in place of
// Postgres.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-escrow-market.git/internal/catalog"
	"github.com/ariefcatur/go-escrow-market.git/internal/escrow"
	"github.com/ariefcatur/go-escrow-market.git/internal/ledger"
	"github.com/ariefcatur/go-escrow-market.git/internal/orders"
)

type state struct {
	products    map[int64]catalog.Product
	sellers     map[string]bool
	orders      map[int64]orders.Order
	ordersByExt map[string]int64
	escrows     map[int64]escrow.Record
	disputes    map[int64]escrow.Dispute
	book        *ledger.Book
	settings    orders.Settings

	productSeq int64
	orderSeq   int64
	disputeSeq int64
}

func (s *state) clone() *state {
	ns := &state{
		products:    make(map[int64]catalog.Product, len(s.products)),
		sellers:     make(map[string]bool, len(s.sellers)),
		orders:      make(map[int64]orders.Order, len(s.orders)),
		ordersByExt: make(map[string]int64, len(s.ordersByExt)),
		escrows:     make(map[int64]escrow.Record, len(s.escrows)),
		disputes:    make(map[int64]escrow.Dispute, len(s.disputes)),
		book:        s.book.Clone(),
		settings:    s.settings,
		productSeq:  s.productSeq,
		orderSeq:    s.orderSeq,
		disputeSeq:  s.disputeSeq,
	}
	for k, v := range s.products {
		ns.products[k] = v
	}
	for k, v := range s.sellers {
		ns.sellers[k] = v
	}
	for k, v := range s.orders {
		v.Items = append([]orders.LineItem(nil), v.Items...)
		ns.orders[k] = v
	}
	for k, v := range s.ordersByExt {
		ns.ordersByExt[k] = v
	}
	for k, v := range s.escrows {
		ns.escrows[k] = v
	}
	for k, v := range s.disputes {
		ns.disputes[k] = v
	}
	return ns
}

// Mem is the in-memory store. The single mutex is the stand-in for the
// serialized execution model.
type Mem struct {
	mu sync.Mutex
	st *state
}

func New() *Mem {
	return &Mem{st: &state{
		products:    map[int64]catalog.Product{},
		sellers:     map[string]bool{},
		orders:      map[int64]orders.Order{},
		ordersByExt: map[string]int64{},
		escrows:     map[int64]escrow.Record{},
		disputes:    map[int64]escrow.Dispute{},
		book:        ledger.NewBook(),
		settings:    orders.Settings{DeveloperAccount: "developer"},
	}}
}

func (m *Mem) Within(ctx context.Context, fn func(tx orders.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	work := m.st.clone()
	if err := fn(&memTx{st: work}); err != nil {
		return err
	}
	m.st = work
	return nil
}

func (m *Mem) FindOrder(ctx context.Context, id int64) (*orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.st.orders[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	o.Items = append([]orders.LineItem(nil), o.Items...)
	return &o, nil
}

func (m *Mem) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]catalog.Product, 0, len(m.st.products))
	for _, p := range m.st.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Mem) ListAutoReleasable(ctx context.Context, cutoff time.Time, limit int) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id, o := range m.st.orders {
		if o.Status == orders.StatusDelivered && !o.UpdatedAt.After(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// Balance exposes ledger balances to test assertions.
func (m *Mem) Balance(account string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.book.Balance(account)
}

// Postings exposes the posting journal to test assertions.
func (m *Mem) Postings() []ledger.Posting {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ledger.Posting(nil), m.st.book.Postings...)
}

type memTx struct{ st *state }

func (t *memTx) CreateProduct(ctx context.Context, p *catalog.Product) (int64, error) {
	t.st.productSeq++
	p.ID = t.st.productSeq
	t.st.products[p.ID] = *p
	return p.ID, nil
}

func (t *memTx) GetProduct(ctx context.Context, id int64) (*catalog.Product, error) {
	p, ok := t.st.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &p, nil
}

func (t *memTx) PutProduct(ctx context.Context, p *catalog.Product) error {
	if _, ok := t.st.products[p.ID]; !ok {
		return catalog.ErrNotFound
	}
	t.st.products[p.ID] = *p
	return nil
}

func (t *memTx) RegisterSeller(ctx context.Context, sellerID string) error {
	t.st.sellers[sellerID] = true
	return nil
}

func (t *memTx) IsRegisteredSeller(ctx context.Context, sellerID string) (bool, error) {
	return t.st.sellers[sellerID], nil
}

func (t *memTx) CreateOrder(ctx context.Context, o *orders.Order) (int64, error) {
	t.st.orderSeq++
	o.ID = t.st.orderSeq
	cp := *o
	cp.Items = append([]orders.LineItem(nil), o.Items...)
	t.st.orders[o.ID] = cp
	if o.ExternalID != "" {
		t.st.ordersByExt[o.ExternalID] = o.ID
	}
	return o.ID, nil
}

func (t *memTx) GetOrder(ctx context.Context, id int64) (*orders.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	o.Items = append([]orders.LineItem(nil), o.Items...)
	return &o, nil
}

func (t *memTx) GetOrderByExternalID(ctx context.Context, externalID string) (*orders.Order, error) {
	id, ok := t.st.ordersByExt[externalID]
	if !ok {
		return nil, orders.ErrNotFound
	}
	return t.GetOrder(ctx, id)
}

func (t *memTx) PutOrder(ctx context.Context, o *orders.Order) error {
	if _, ok := t.st.orders[o.ID]; !ok {
		return orders.ErrNotFound
	}
	cp := *o
	cp.Items = append([]orders.LineItem(nil), o.Items...)
	t.st.orders[o.ID] = cp
	return nil
}

func (t *memTx) CreateEscrow(ctx context.Context, r *escrow.Record) error {
	if _, ok := t.st.escrows[r.OrderID]; ok {
		return escrow.ErrExists
	}
	t.st.escrows[r.OrderID] = *r
	return nil
}

func (t *memTx) GetEscrow(ctx context.Context, orderID int64) (*escrow.Record, error) {
	r, ok := t.st.escrows[orderID]
	if !ok {
		return nil, escrow.ErrNotFound
	}
	return &r, nil
}

func (t *memTx) PutEscrow(ctx context.Context, r *escrow.Record) error {
	if _, ok := t.st.escrows[r.OrderID]; !ok {
		return escrow.ErrNotFound
	}
	t.st.escrows[r.OrderID] = *r
	return nil
}

func (t *memTx) CreateDispute(ctx context.Context, d *escrow.Dispute) error {
	t.st.disputeSeq++
	d.ID = t.st.disputeSeq
	t.st.disputes[d.ID] = *d
	return nil
}

func (t *memTx) GetOpenDispute(ctx context.Context, orderID int64) (*escrow.Dispute, error) {
	for _, d := range t.st.disputes {
		if d.OrderID == orderID && !d.Resolved {
			d := d
			return &d, nil
		}
	}
	return nil, escrow.ErrDisputeNotFound
}

func (t *memTx) PutDispute(ctx context.Context, d *escrow.Dispute) error {
	if _, ok := t.st.disputes[d.ID]; !ok {
		return escrow.ErrDisputeNotFound
	}
	t.st.disputes[d.ID] = *d
	return nil
}

func (t *memTx) Post(ctx context.Context, p ledger.Posting) error {
	return t.st.book.Post(p)
}

func (t *memTx) AccountBalance(ctx context.Context, account string) (int64, error) {
	return t.st.book.Balance(account), nil
}

func (t *memTx) Settings(ctx context.Context) (*orders.Settings, error) {
	s := t.st.settings
	return &s, nil
}

func (t *memTx) PutSettings(ctx context.Context, s *orders.Settings) error {
	t.st.settings = *s
	return nil
}
