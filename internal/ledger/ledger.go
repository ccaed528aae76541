// Package ledger holds the internal value-transfer primitive. Payouts are
// postings between named accounts executed inside the same store transaction
// as the escrow flag updates, so a failed leg aborts the whole transition.
// Cashing balances out of the ledger is a separate concern outside the core.
package ledger

import (
	"errors"
	"fmt"
	"time"
)

var ErrInsufficientFunds = errors.New("insufficient account funds")

const (
	// AccountEscrow pools held order funds; per-order amounts are tracked by
	// the escrow records, not by per-order accounts.
	AccountEscrow = "escrow"
	AccountOwner  = "owner"
	// AccountExternal is the source of incoming buyer payments. Its balance
	// is not tracked.
	AccountExternal = "external"
)

func BuyerAccount(id string) string  { return "buyer:" + id }
func SellerAccount(id string) string { return "seller:" + id }

type Posting struct {
	ID          int64     `json:"id"`
	FromAccount string    `json:"from_account"`
	ToAccount   string    `json:"to_account"`
	AmountCents int64     `json:"amount_cents"`
	Memo        string    `json:"memo"`
	CreatedAt   time.Time `json:"created_at"`
}

func (p Posting) Validate() error {
	if p.AmountCents <= 0 {
		return fmt.Errorf("posting amount must be positive")
	}
	if p.FromAccount == "" || p.ToAccount == "" {
		return fmt.Errorf("posting needs both accounts")
	}
	if p.FromAccount == p.ToAccount {
		return fmt.Errorf("posting to self")
	}
	return nil
}

// Book is a simple in-memory balance book. The pg store keeps the same
// shape in ledger_accounts/ledger_postings tables.
type Book struct {
	Balances map[string]int64
	Postings []Posting
}

func NewBook() *Book {
	return &Book{Balances: map[string]int64{}}
}

// Post applies one transfer. External deposits skip the balance check.
func (b *Book) Post(p Posting) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.FromAccount != AccountExternal && b.Balances[p.FromAccount] < p.AmountCents {
		return fmt.Errorf("%w: %s has %d, needs %d",
			ErrInsufficientFunds, p.FromAccount, b.Balances[p.FromAccount], p.AmountCents)
	}
	if p.FromAccount != AccountExternal {
		b.Balances[p.FromAccount] -= p.AmountCents
	}
	b.Balances[p.ToAccount] += p.AmountCents
	p.ID = int64(len(b.Postings) + 1)
	b.Postings = append(b.Postings, p)
	return nil
}

func (b *Book) Balance(account string) int64 { return b.Balances[account] }

// Clone deep-copies the book; used by transactional wrappers for rollback.
func (b *Book) Clone() *Book {
	nb := &Book{
		Balances: make(map[string]int64, len(b.Balances)),
		Postings: make([]Posting, len(b.Postings)),
	}
	for k, v := range b.Balances {
		nb.Balances[k] = v
	}
	copy(nb.Postings, b.Postings)
	return nb
}
