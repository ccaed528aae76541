package orders

import (
	"context"
	"time"

	"github.com/ariefcatur/go-escrow-market.git/internal/catalog"
	"github.com/ariefcatur/go-escrow-market.git/internal/escrow"
	"github.com/ariefcatur/go-escrow-market.git/internal/ledger"
)

// Tx is one serialized state-changing unit of work. The pg implementation
// backs it with a database transaction and locks touched rows FOR UPDATE;
// the in-memory implementation holds a store-wide mutex. Either way a
// returned error rolls every write back.
type Tx interface {
	CreateProduct(ctx context.Context, p *catalog.Product) (int64, error)
	// GetProduct locks the product row for the rest of the transaction.
	GetProduct(ctx context.Context, id int64) (*catalog.Product, error)
	PutProduct(ctx context.Context, p *catalog.Product) error

	RegisterSeller(ctx context.Context, sellerID string) error
	IsRegisteredSeller(ctx context.Context, sellerID string) (bool, error)

	CreateOrder(ctx context.Context, o *Order) (int64, error)
	// GetOrder locks the order row; this is the per-order serialization and
	// re-entrancy guard for every transition.
	GetOrder(ctx context.Context, id int64) (*Order, error)
	GetOrderByExternalID(ctx context.Context, externalID string) (*Order, error)
	PutOrder(ctx context.Context, o *Order) error

	CreateEscrow(ctx context.Context, r *escrow.Record) error
	GetEscrow(ctx context.Context, orderID int64) (*escrow.Record, error)
	PutEscrow(ctx context.Context, r *escrow.Record) error

	CreateDispute(ctx context.Context, d *escrow.Dispute) error
	GetOpenDispute(ctx context.Context, orderID int64) (*escrow.Dispute, error)
	PutDispute(ctx context.Context, d *escrow.Dispute) error

	Post(ctx context.Context, p ledger.Posting) error
	AccountBalance(ctx context.Context, account string) (int64, error)

	Settings(ctx context.Context) (*Settings, error)
	PutSettings(ctx context.Context, s *Settings) error
}

type Store interface {
	// Within runs fn in one transaction; fn's error aborts every write.
	Within(ctx context.Context, fn func(tx Tx) error) error

	// Read-only surface outside transactions.
	FindOrder(ctx context.Context, id int64) (*Order, error)
	ListProducts(ctx context.Context) ([]catalog.Product, error)
	// ListAutoReleasable returns ids of DELIVERED orders untouched since
	// cutoff, for the auto-release sweeper.
	ListAutoReleasable(ctx context.Context, cutoff time.Time, limit int) ([]int64, error)
}
