package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CategoryAmount represents an amount aggregated by category and kind.
type CategoryAmount struct {
	CategoryID string          `json:"category_id"`
	Kind       Kind            `json:"kind"`
	Amount     decimal.Decimal `json:"amount"`
}

// Summary is a compact overview of a user's transactions within a date range.
type Summary struct {
	UserID     string           `json:"user_id"`
	From       string           `json:"from,omitempty"`
	To         string           `json:"to,omitempty"`
	Income     decimal.Decimal  `json:"income"`
	Expense    decimal.Decimal  `json:"expense"`
	Net        decimal.Decimal  `json:"net"`
	Count      int              `json:"count"`
	ByCategory []CategoryAmount `json:"by_category"`
}

// Summarize aggregates txs. Categories are ordered by kind, then by amount
// descending, then by id.
func Summarize(userID, from, to string, txs []Transaction) Summary {
	s := Summary{
		UserID:  userID,
		From:    from,
		To:      to,
		Income:  decimal.Zero,
		Expense: decimal.Zero,
		Count:   len(txs),
	}

	type key struct {
		category string
		kind     Kind
	}
	totals := map[key]decimal.Decimal{}
	for _, tx := range txs {
		switch tx.Kind {
		case Income:
			s.Income = s.Income.Add(tx.Amount)
		case Expense:
			s.Expense = s.Expense.Add(tx.Amount)
		}
		k := key{tx.CategoryID, tx.Kind}
		totals[k] = totals[k].Add(tx.Amount)
	}
	s.Net = s.Income.Sub(s.Expense)

	s.ByCategory = make([]CategoryAmount, 0, len(totals))
	for k, v := range totals {
		s.ByCategory = append(s.ByCategory, CategoryAmount{CategoryID: k.category, Kind: k.kind, Amount: v})
	}
	sort.Slice(s.ByCategory, func(i, j int) bool {
		a, b := s.ByCategory[i], s.ByCategory[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if !a.Amount.Equal(b.Amount) {
			return a.Amount.GreaterThan(b.Amount)
		}
		return a.CategoryID < b.CategoryID
	})
	return s
}

// Balance returns sum(income) - sum(expense).
func Balance(txs []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Signed())
	}
	return total
}
