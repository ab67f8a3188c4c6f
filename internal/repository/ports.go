// Package repository defines the transaction store contract and the layered
// store that combines an authoritative local backend with a best-effort
// remote mirror.
package repository

import (
	"context"
	"sort"

	"uangku/internal/core"
)

type (
	// Store is the primitive contract every backend implements. ListByUser
	// returns transactions ordered by date, then by insertion.
	Store interface {
		Save(ctx context.Context, tx core.Transaction) error
		ListByUser(ctx context.Context, userID string) ([]core.Transaction, error)
		Update(ctx context.Context, id string, tx core.Transaction) error
		Delete(ctx context.Context, id string) error
	}

	// Repository adds the derived filters on top of Store.
	Repository interface {
		Store
		ListByCategory(ctx context.Context, userID, categoryID string) ([]core.Transaction, error)
		ListByDateRange(ctx context.Context, userID, from, to string) ([]core.Transaction, error)
	}

	RemoteReader interface {
		ListByUser(ctx context.Context, userID string) ([]core.Transaction, error)
	}

	RemoteWriter interface {
		Save(ctx context.Context, tx core.Transaction) error
		Update(ctx context.Context, id string, tx core.Transaction) error
		Delete(ctx context.Context, id string) error
	}
)

type combined struct {
	RemoteReader
	RemoteWriter
}

// CombineRemote builds a Store that reads from r and writes through w, e.g.
// Sheets reads with queued writes.
func CombineRemote(r RemoteReader, w RemoteWriter) Store {
	return combined{RemoteReader: r, RemoteWriter: w}
}

// Filter selects transactions. Empty fields match everything; From and To
// are inclusive YYYY-MM-DD bounds.
type Filter struct {
	CategoryID string
	From       string
	To         string
}

func (f Filter) Match(tx core.Transaction) bool {
	if f.CategoryID != "" && tx.CategoryID != f.CategoryID {
		return false
	}
	d := tx.Date.String()
	if f.From != "" && d < f.From {
		return false
	}
	if f.To != "" && d > f.To {
		return false
	}
	return true
}

// Apply returns the matching transactions, keeping their order.
func (f Filter) Apply(txs []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if f.Match(tx) {
			out = append(out, tx)
		}
	}
	return out
}

// SortStable orders txs by date keeping the existing order among equal dates.
func SortStable(txs []core.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Date.Before(txs[j].Date.Time)
	})
}

// CheckUpdate validates the payload of an update against its target id.
func CheckUpdate(id string, tx core.Transaction) error {
	if id == "" {
		return core.ErrEmptyID
	}
	if tx.ID != id {
		return core.ErrIDMismatch
	}
	return tx.Validate()
}
