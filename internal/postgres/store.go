package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-escrow-market.git/internal/catalog"
	"github.com/ariefcatur/go-escrow-market.git/internal/escrow"
	"github.com/ariefcatur/go-escrow-market.git/internal/ledger"
	"github.com/ariefcatur/go-escrow-market.git/internal/orders"
)

// Store backs orders.Store with Postgres. Every Within call is one
// database transaction; GetOrder/GetProduct lock their rows FOR UPDATE so
// concurrent transitions on the same order serialize.
type Store struct{ DB *pgxpool.Pool }

func NewStore(db *pgxpool.Pool) *Store { return &Store{DB: db} }

func (s *Store) Within(ctx context.Context, fn func(tx orders.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) FindOrder(ctx context.Context, id int64) (*orders.Order, error) {
	var out *orders.Order
	err := s.Within(ctx, func(tx orders.Tx) error {
		var err error
		out, err = tx.GetOrder(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	rows, err := s.DB.Query(ctx, `SELECT id, seller_id, name, price_cents, stock, available, sold_count, created_at, updated_at
	                              FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Product
	for rows.Next() {
		var p catalog.Product
		if err := rows.Scan(&p.ID, &p.SellerID, &p.Name, &p.PriceCents, &p.Stock, &p.Available, &p.SoldCount, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ListAutoReleasable(ctx context.Context, cutoff time.Time, limit int) ([]int64, error) {
	rows, err := s.DB.Query(ctx, `SELECT id FROM orders
	                              WHERE status = $1 AND updated_at <= $2
	                              ORDER BY id LIMIT $3`, orders.StatusDelivered, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type pgTx struct{ tx pgx.Tx }

// ---- products ----

func (t *pgTx) CreateProduct(ctx context.Context, p *catalog.Product) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO products (seller_id, name, price_cents, stock, available, sold_count, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		p.SellerID, p.Name, p.PriceCents, p.Stock, p.Available, p.SoldCount, p.CreatedAt, p.UpdatedAt).Scan(&id)
	return id, err
}

func (t *pgTx) GetProduct(ctx context.Context, id int64) (*catalog.Product, error) {
	var p catalog.Product
	err := t.tx.QueryRow(ctx, `SELECT id, seller_id, name, price_cents, stock, available, sold_count, created_at, updated_at
	                           FROM products WHERE id=$1 FOR UPDATE`, id).
		Scan(&p.ID, &p.SellerID, &p.Name, &p.PriceCents, &p.Stock, &p.Available, &p.SoldCount, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *pgTx) PutProduct(ctx context.Context, p *catalog.Product) error {
	ct, err := t.tx.Exec(ctx, `UPDATE products SET price_cents=$2, stock=$3, available=$4, sold_count=$5, updated_at=$6 WHERE id=$1`,
		p.ID, p.PriceCents, p.Stock, p.Available, p.SoldCount, p.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return catalog.ErrNotFound
	}
	return nil
}

// ---- sellers ----

func (t *pgTx) RegisterSeller(ctx context.Context, sellerID string) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO sellers (id) VALUES ($1) ON CONFLICT DO NOTHING`, sellerID)
	return err
}

func (t *pgTx) IsRegisteredSeller(ctx context.Context, sellerID string) (bool, error) {
	var n int
	if err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM sellers WHERE id=$1`, sellerID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ---- orders ----

func (t *pgTx) CreateOrder(ctx context.Context, o *orders.Order) (int64, error) {
	var id int64
	var ext any
	if o.ExternalID != "" {
		ext = o.ExternalID
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders (external_id, buyer_id, seller_id, total_cents, shipping_fee_cents, status,
		                    shipping_address, tracking_info, disputed, dispute_reason, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING id`,
		ext, o.BuyerID, o.SellerID, o.TotalCents, o.ShippingFeeCents, o.Status,
		o.ShippingAddress, o.TrackingInfo, o.Disputed, o.DisputeReason, o.CreatedAt, o.UpdatedAt).Scan(&id)
	if err != nil {
		return 0, err
	}
	for _, it := range o.Items {
		if _, err := t.tx.Exec(ctx, `INSERT INTO order_items (order_id, product_id, qty, price_cents)
		                             VALUES ($1,$2,$3,$4)`, id, it.ProductID, it.Qty, it.PriceCents); err != nil {
			return 0, err
		}
	}
	return id, nil
}

func (t *pgTx) scanOrder(ctx context.Context, row pgx.Row) (*orders.Order, error) {
	var o orders.Order
	var ext *string
	err := row.Scan(&o.ID, &ext, &o.BuyerID, &o.SellerID, &o.TotalCents, &o.ShippingFeeCents,
		&o.Status, &o.ShippingAddress, &o.TrackingInfo, &o.Disputed, &o.DisputeReason, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if ext != nil {
		o.ExternalID = *ext
	}
	rows, err := t.tx.Query(ctx, `SELECT product_id, qty, price_cents FROM order_items WHERE order_id=$1 ORDER BY product_id`, o.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it orders.LineItem
		if err := rows.Scan(&it.ProductID, &it.Qty, &it.PriceCents); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	return &o, rows.Err()
}

const orderCols = `id, external_id, buyer_id, seller_id, total_cents, shipping_fee_cents,
	status, shipping_address, tracking_info, disputed, dispute_reason, created_at, updated_at`

func (t *pgTx) GetOrder(ctx context.Context, id int64) (*orders.Order, error) {
	return t.scanOrder(ctx, t.tx.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1 FOR UPDATE`, id))
}

func (t *pgTx) GetOrderByExternalID(ctx context.Context, externalID string) (*orders.Order, error) {
	return t.scanOrder(ctx, t.tx.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE external_id=$1 FOR UPDATE`, externalID))
}

func (t *pgTx) PutOrder(ctx context.Context, o *orders.Order) error {
	ct, err := t.tx.Exec(ctx, `UPDATE orders SET status=$2, tracking_info=$3, disputed=$4, dispute_reason=$5, updated_at=$6 WHERE id=$1`,
		o.ID, o.Status, o.TrackingInfo, o.Disputed, o.DisputeReason, o.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return orders.ErrNotFound
	}
	return nil
}

// ---- escrows ----

func (t *pgTx) CreateEscrow(ctx context.Context, r *escrow.Record) error {
	ct, err := t.tx.Exec(ctx, `
		INSERT INTO escrows (order_id, amount_cents, developer_fee_cents, seller_amount_cents,
		                     claimable, claimed, released, refunded, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) ON CONFLICT (order_id) DO NOTHING`,
		r.OrderID, r.AmountCents, r.DeveloperFeeCents, r.SellerAmountCents,
		r.Claimable, r.Claimed, r.Released, r.Refunded, r.CreatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return escrow.ErrExists
	}
	return nil
}

func (t *pgTx) GetEscrow(ctx context.Context, orderID int64) (*escrow.Record, error) {
	var r escrow.Record
	var releasedAt *time.Time
	err := t.tx.QueryRow(ctx, `SELECT order_id, amount_cents, developer_fee_cents, seller_amount_cents,
	                                  claimable, claimed, released, refunded, created_at, released_at
	                           FROM escrows WHERE order_id=$1 FOR UPDATE`, orderID).
		Scan(&r.OrderID, &r.AmountCents, &r.DeveloperFeeCents, &r.SellerAmountCents,
			&r.Claimable, &r.Claimed, &r.Released, &r.Refunded, &r.CreatedAt, &releasedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, escrow.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if releasedAt != nil {
		r.ReleasedAt = *releasedAt
	}
	return &r, nil
}

func (t *pgTx) PutEscrow(ctx context.Context, r *escrow.Record) error {
	var releasedAt any
	if !r.ReleasedAt.IsZero() {
		releasedAt = r.ReleasedAt
	}
	ct, err := t.tx.Exec(ctx, `UPDATE escrows SET claimable=$2, claimed=$3, released=$4, refunded=$5, released_at=$6 WHERE order_id=$1`,
		r.OrderID, r.Claimable, r.Claimed, r.Released, r.Refunded, releasedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return escrow.ErrNotFound
	}
	return nil
}

// ---- disputes ----

func (t *pgTx) CreateDispute(ctx context.Context, d *escrow.Dispute) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO disputes (order_id, initiator, reason, resolution, resolved, resolved_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		d.OrderID, d.Initiator, d.Reason, string(d.Resolution), d.Resolved, d.ResolvedBy, d.CreatedAt).Scan(&d.ID)
}

func (t *pgTx) GetOpenDispute(ctx context.Context, orderID int64) (*escrow.Dispute, error) {
	var d escrow.Dispute
	var res string
	var resolvedAt *time.Time
	err := t.tx.QueryRow(ctx, `SELECT id, order_id, initiator, reason, resolution, resolved, resolved_by, created_at, resolved_at
	                           FROM disputes WHERE order_id=$1 AND NOT resolved ORDER BY id DESC LIMIT 1 FOR UPDATE`, orderID).
		Scan(&d.ID, &d.OrderID, &d.Initiator, &d.Reason, &res, &d.Resolved, &d.ResolvedBy, &d.CreatedAt, &resolvedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, escrow.ErrDisputeNotFound
	}
	if err != nil {
		return nil, err
	}
	d.Resolution = escrow.Resolution(res)
	if resolvedAt != nil {
		d.ResolvedAt = *resolvedAt
	}
	return &d, nil
}

func (t *pgTx) PutDispute(ctx context.Context, d *escrow.Dispute) error {
	var resolvedAt any
	if !d.ResolvedAt.IsZero() {
		resolvedAt = d.ResolvedAt
	}
	ct, err := t.tx.Exec(ctx, `UPDATE disputes SET resolution=$2, resolved=$3, resolved_by=$4, resolved_at=$5 WHERE id=$1`,
		d.ID, string(d.Resolution), d.Resolved, d.ResolvedBy, resolvedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return escrow.ErrDisputeNotFound
	}
	return nil
}

// ---- ledger ----

func (t *pgTx) Post(ctx context.Context, p ledger.Posting) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.FromAccount != ledger.AccountExternal {
		// lock the row so balance check-then-debit is atomic
		var bal int64
		err := t.tx.QueryRow(ctx, `SELECT balance_cents FROM ledger_accounts WHERE account=$1 FOR UPDATE`, p.FromAccount).Scan(&bal)
		if errors.Is(err, pgx.ErrNoRows) {
			bal = 0
		} else if err != nil {
			return err
		}
		if bal < p.AmountCents {
			return fmt.Errorf("%w: %s has %d, needs %d", ledger.ErrInsufficientFunds, p.FromAccount, bal, p.AmountCents)
		}
		if _, err := t.tx.Exec(ctx, `UPDATE ledger_accounts SET balance_cents = balance_cents - $2 WHERE account=$1`,
			p.FromAccount, p.AmountCents); err != nil {
			return err
		}
	}
	if _, err := t.tx.Exec(ctx, `INSERT INTO ledger_accounts (account, balance_cents) VALUES ($1,$2)
	                             ON CONFLICT (account) DO UPDATE SET balance_cents = ledger_accounts.balance_cents + $2`,
		p.ToAccount, p.AmountCents); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO ledger_postings (from_account, to_account, amount_cents, memo, created_at)
	                          VALUES ($1,$2,$3,$4,$5)`,
		p.FromAccount, p.ToAccount, p.AmountCents, p.Memo, p.CreatedAt)
	return err
}

func (t *pgTx) AccountBalance(ctx context.Context, account string) (int64, error) {
	var bal int64
	err := t.tx.QueryRow(ctx, `SELECT balance_cents FROM ledger_accounts WHERE account=$1 FOR UPDATE`, account).Scan(&bal)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return bal, err
}

// ---- settings ----

func (t *pgTx) Settings(ctx context.Context) (*orders.Settings, error) {
	var s orders.Settings
	err := t.tx.QueryRow(ctx, `SELECT paused, developer_account FROM settings WHERE id=1`).
		Scan(&s.Paused, &s.DeveloperAccount)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (t *pgTx) PutSettings(ctx context.Context, s *orders.Settings) error {
	_, err := t.tx.Exec(ctx, `UPDATE settings SET paused=$1, developer_account=$2 WHERE id=1`,
		s.Paused, s.DeveloperAccount)
	return err
}
