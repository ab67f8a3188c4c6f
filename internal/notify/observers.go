package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"uangku/internal/core"
	"uangku/internal/log"
)

// BalanceObserver tracks income, expense and the running balance.
type BalanceObserver struct {
	mu      sync.RWMutex
	income  decimal.Decimal
	expense decimal.Decimal
}

func NewBalanceObserver() *BalanceObserver {
	return &BalanceObserver{income: decimal.Zero, expense: decimal.Zero}
}

func (o *BalanceObserver) Update(snapshot []core.Transaction) {
	income, expense := decimal.Zero, decimal.Zero
	for _, tx := range snapshot {
		switch tx.Kind {
		case core.Income:
			income = income.Add(tx.Amount)
		case core.Expense:
			expense = expense.Add(tx.Amount)
		}
	}
	o.mu.Lock()
	o.income, o.expense = income, expense
	o.mu.Unlock()
}

// Balance returns income minus expense.
func (o *BalanceObserver) Balance() decimal.Decimal {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.income.Sub(o.expense)
}

func (o *BalanceObserver) Totals() (income, expense decimal.Decimal) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.income, o.expense
}

// BudgetObserver evaluates one budget on every snapshot and logs
// non-silent tiers.
type BudgetObserver struct {
	budget core.Budget
	logger *log.Logger

	mu     sync.RWMutex
	status core.BudgetStatus
}

func NewBudgetObserver(b core.Budget, logger *log.Logger) *BudgetObserver {
	if logger == nil {
		logger = log.Discard()
	}
	return &BudgetObserver{
		budget: b,
		logger: logger.WithComponent(log.ComponentNotify),
		status: b.Evaluate(nil),
	}
}

func (o *BudgetObserver) Update(snapshot []core.Transaction) {
	st := o.budget.Evaluate(snapshot)
	o.mu.Lock()
	o.status = st
	o.mu.Unlock()

	level := slog.LevelInfo
	switch st.Tier {
	case core.TierSilent:
		return
	case core.TierNearLimit, core.TierOverLimit:
		level = slog.LevelWarn
	}
	o.logger.Log(context.Background(), level, "Budget threshold reached", log.NewFields().WithBudget(st).ToSlice()...)
}

func (o *BudgetObserver) Budget() core.Budget {
	return o.budget
}

func (o *BudgetObserver) Status() core.BudgetStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status
}

func (o *BudgetObserver) Tier() core.Tier {
	return o.Status().Tier
}
