package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	TierSilent        Tier = "silent"
	TierInformational Tier = "informational"
	TierNearLimit     Tier = "near_limit"
	TierOverLimit     Tier = "over_limit"
)

var (
	hundred = decimal.NewFromInt(100)

	overLimitPercent     = decimal.NewFromInt(100)
	nearLimitPercent     = decimal.NewFromInt(80)
	informationalPercent = decimal.NewFromInt(50)
)

type (
	// Tier classifies how much of a budget has been consumed.
	Tier string

	// Budget is a read-only spending limit. An empty CategoryID covers all
	// categories. Period "YYYY" or "YYYY-MM" restricts evaluation to that
	// period; any other value does not filter by date.
	Budget struct {
		ID         string          `json:"id"`
		Period     string          `json:"period"`
		Limit      decimal.Decimal `json:"limit"`
		CategoryID string          `json:"category_id,omitempty"`
		UserID     string          `json:"user_id"`
	}

	// BudgetStatus is the result of evaluating a Budget against a snapshot.
	BudgetStatus struct {
		Budget  Budget          `json:"budget"`
		Spent   decimal.Decimal `json:"spent"`
		Percent decimal.Decimal `json:"percent"`
		Tier    Tier            `json:"tier"`
	}
)

func (b Budget) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(b.Period) == "" {
		return ErrEmptyPeriod
	}
	if !b.Limit.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// Covers reports whether tx counts against the budget.
func (b Budget) Covers(tx Transaction) bool {
	if tx.Kind != Expense {
		return false
	}
	if b.UserID != "" && tx.UserID != b.UserID {
		return false
	}
	if b.CategoryID != "" && tx.CategoryID != b.CategoryID {
		return false
	}
	if prefix, ok := b.periodPrefix(); ok {
		return strings.HasPrefix(tx.Date.String(), prefix)
	}
	return true
}

func (b Budget) periodPrefix() (string, bool) {
	p := strings.TrimSpace(b.Period)
	switch len(p) {
	case 4:
		if allDigits(p) {
			return p, true
		}
	case 7:
		if allDigits(p[:4]) && p[4] == '-' && allDigits(p[5:]) {
			return p, true
		}
	}
	return "", false
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// Evaluate sums the covered expenses in txs and classifies the result.
// The budget itself is never modified.
func (b Budget) Evaluate(txs []Transaction) BudgetStatus {
	spent := decimal.Zero
	for _, tx := range txs {
		if b.Covers(tx) {
			spent = spent.Add(tx.Amount)
		}
	}
	percent := decimal.Zero
	tier := TierSilent
	if b.Limit.IsPositive() {
		percent = spent.Div(b.Limit).Mul(hundred)
		tier = tierOf(spent, b.Limit)
	}
	return BudgetStatus{
		Budget:  b,
		Spent:   spent,
		Percent: percent,
		Tier:    tier,
	}
}

// TierFor maps a consumed percentage to its tier.
func TierFor(percent decimal.Decimal) Tier {
	return tierOf(percent, hundred)
}

// tierOf classifies spent against limit as spent*100 >= limit*threshold.
// Percent is rounded by the division; the tier never is.
func tierOf(spent, limit decimal.Decimal) Tier {
	scaled := spent.Mul(hundred)
	switch {
	case scaled.Cmp(limit.Mul(overLimitPercent)) >= 0:
		return TierOverLimit
	case scaled.Cmp(limit.Mul(nearLimitPercent)) >= 0:
		return TierNearLimit
	case scaled.Cmp(limit.Mul(informationalPercent)) >= 0:
		return TierInformational
	default:
		return TierSilent
	}
}
