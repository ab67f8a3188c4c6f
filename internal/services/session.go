package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"uangku/internal/cache"
	"uangku/internal/command"
	"uangku/internal/core"
	"uangku/internal/log"
	"uangku/internal/notify"
	"uangku/internal/repository"
)

var (
	ErrUserMismatch    = fmt.Errorf("%w: transaction belongs to another user", core.ErrValidation)
	ErrEmptyBatch      = fmt.Errorf("%w: batch update needs at least one transaction", core.ErrValidation)
	ErrDuplicateBudget = fmt.Errorf("%w: budget already watched", core.ErrValidation)
)

// Session is one user's ledger: a bounded undo history, a live snapshot
// with balance and budget observers, and cached summaries. All operations
// are serialized.
type Session struct {
	mu sync.Mutex

	userID    string
	repo      repository.Repository
	local     repository.Store
	history   *command.History
	bus       *notify.Bus
	balance   *notify.BalanceObserver
	budgets   []*notify.BudgetObserver
	summaries *cache.LRUCache[core.Summary]
	logger    *log.Logger
}

func newSession(userID string, repo repository.Repository, local repository.Store, limit int, summaries *cache.LRUCache[core.Summary], logger *log.Logger) *Session {
	s := &Session{
		userID:    userID,
		repo:      repo,
		local:     local,
		history:   command.NewHistory(limit, logger),
		bus:       notify.NewBus(),
		balance:   notify.NewBalanceObserver(),
		summaries: summaries,
		logger:    logger,
	}
	s.bus.AddObserver(s.balance)
	return s
}

func (s *Session) UserID() string { return s.userID }

// AddIncome records a new income with a generated id.
func (s *Session) AddIncome(ctx context.Context, description string, amount decimal.Decimal, date core.Date, categoryID, source string) (core.Transaction, error) {
	tx := core.NewIncome("", description, amount, date, categoryID, s.userID, source)
	return tx, s.Add(ctx, tx)
}

// AddExpense records a new expense with a generated id.
func (s *Session) AddExpense(ctx context.Context, description string, amount decimal.Decimal, date core.Date, categoryID, paymentMethod string) (core.Transaction, error) {
	tx := core.NewExpense("", description, amount, date, categoryID, s.userID, paymentMethod)
	return tx, s.Add(ctx, tx)
}

// Add saves tx through the history. The id must be set and the owner must
// be the session user.
func (s *Session) Add(ctx context.Context, tx core.Transaction) error {
	if err := s.own(tx); err != nil {
		return err
	}
	if err := tx.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.execute(ctx, log.OpSave, command.NewAdd(s.repo, s.bus, tx), tx)
}

// Update replaces the stored transaction with the same id. The value it
// replaces is read from the local store and restored on undo.
func (s *Session) Update(ctx context.Context, tx core.Transaction) error {
	if err := s.own(tx); err != nil {
		return err
	}
	if err := repository.CheckUpdate(tx.ID, tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, err := s.lookup(ctx, tx.ID)
	if err != nil {
		return err
	}
	return s.execute(ctx, log.OpUpdate, command.NewUpdate(s.repo, s.bus, old, tx), tx)
}

// Delete removes the transaction with id and returns its last value.
func (s *Session) Delete(ctx context.Context, id string) (core.Transaction, error) {
	if id == "" {
		return core.Transaction{}, core.ErrEmptyID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, err := s.lookup(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	return old, s.execute(ctx, log.OpDelete, command.NewDelete(s.repo, s.bus, old), old)
}

// BatchUpdate applies every update or none of them, as one history entry.
func (s *Session) BatchUpdate(ctx context.Context, txs []core.Transaction) error {
	if len(txs) == 0 {
		return ErrEmptyBatch
	}
	for _, tx := range txs {
		if err := s.own(tx); err != nil {
			return err
		}
		if err := repository.CheckUpdate(tx.ID, tx); err != nil {
			return fmt.Errorf("batch %s: %w", tx.ID, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cmds := make([]command.Command, 0, len(txs))
	for _, tx := range txs {
		old, err := s.lookup(ctx, tx.ID)
		if err != nil {
			return fmt.Errorf("batch %s: %w", tx.ID, err)
		}
		cmds = append(cmds, command.NewUpdate(s.repo, s.bus, old, tx))
	}

	batch := command.NewBatch(s.logger, cmds...)
	if err := s.history.Execute(ctx, batch); err != nil {
		s.logger.WarnContext(ctx, "Batch update failed",
			log.NewFields().WithOperation(log.OpBatch).WithUser(s.userID).WithError(err).ToSlice()...)
		return err
	}
	s.invalidate()
	s.logger.InfoContext(ctx, "Batch update applied",
		log.FieldOperation, log.OpBatch,
		log.FieldUserID, s.userID,
		"count", batch.Len())
	return nil
}

func (s *Session) Undo(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step(ctx, log.OpUndo, s.history.Undo)
}

func (s *Session) Redo(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step(ctx, log.OpRedo, s.history.Redo)
}

func (s *Session) step(ctx context.Context, op string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		return err
	}
	s.invalidate()
	s.logger.InfoContext(ctx, "History step applied",
		log.FieldOperation, op,
		log.FieldUserID, s.userID,
		log.FieldPosition, s.history.Position(),
		log.FieldHistorySize, s.history.Size())
	return nil
}

func (s *Session) CanUndo() bool { return s.history.CanUndo() }

func (s *Session) CanRedo() bool { return s.history.CanRedo() }

func (s *Session) HistorySize() int { return s.history.Size() }

// HistoryEntries lists command names, oldest first.
func (s *Session) HistoryEntries() []string { return s.history.Entries() }

func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Clear()
}

// Balance is income minus expense over the session snapshot.
func (s *Session) Balance() decimal.Decimal { return s.balance.Balance() }

func (s *Session) Totals() (income, expense decimal.Decimal) { return s.balance.Totals() }

// Budgets returns the current status of every watched budget.
func (s *Session) Budgets() []core.BudgetStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.BudgetStatus, len(s.budgets))
	for i, o := range s.budgets {
		out[i] = o.Status()
	}
	return out
}

// WatchBudget starts evaluating b on every change and returns its status
// against the current snapshot.
func (s *Session) WatchBudget(b core.Budget) (core.BudgetStatus, error) {
	if b.UserID != "" && b.UserID != s.userID {
		return core.BudgetStatus{}, ErrUserMismatch
	}
	if err := b.Validate(); err != nil {
		return core.BudgetStatus{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.budgets {
		if o.Budget().ID == b.ID {
			return core.BudgetStatus{}, ErrDuplicateBudget
		}
	}
	o := s.watchLocked(b)
	o.Update(s.bus.Snapshot())
	return o.Status(), nil
}

func (s *Session) watchLocked(b core.Budget) *notify.BudgetObserver {
	b.UserID = s.userID
	o := notify.NewBudgetObserver(b, s.logger)
	s.budgets = append(s.budgets, o)
	s.bus.AddObserver(o)
	return o
}

// Transactions lists the user's transactions from the repository.
func (s *Session) Transactions(ctx context.Context, f repository.Filter) ([]core.Transaction, error) {
	txs, err := s.repo.ListByUser(ctx, s.userID)
	if err != nil {
		return nil, err
	}
	return f.Apply(txs), nil
}

// Summary aggregates transactions between from and to, inclusive. Either
// bound may be empty. It holds the session lock so no write can slip in
// between the read and the cache fill.
func (s *Session) Summary(ctx context.Context, from, to string) (core.Summary, error) {
	for _, d := range []string{from, to} {
		if d == "" {
			continue
		}
		if _, err := core.ParseDate(d); err != nil {
			return core.Summary{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.userID + "|" + from + "|" + to
	if sum, ok := s.summaries.Get(key); ok {
		return sum, nil
	}

	txs, err := s.Transactions(ctx, repository.Filter{From: from, To: to})
	if err != nil {
		return core.Summary{}, err
	}
	sum := core.Summarize(s.userID, from, to, txs)
	s.summaries.Set(key, sum)
	return sum, nil
}

// Snapshot returns the session's live view of the user's transactions.
func (s *Session) Snapshot() []core.Transaction { return s.bus.Snapshot() }

func (s *Session) own(tx core.Transaction) error {
	if tx.UserID != s.userID {
		return ErrUserMismatch
	}
	return nil
}

// lookup reads the current value of id from the local store. Remote
// copies may lag, so they never feed an inverse command.
func (s *Session) lookup(ctx context.Context, id string) (core.Transaction, error) {
	txs, err := readLocal(ctx, s.local, s.userID)
	if err != nil {
		return core.Transaction{}, err
	}
	for _, tx := range txs {
		if tx.ID == id {
			return tx, nil
		}
	}
	return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
}

func (s *Session) execute(ctx context.Context, op string, cmd command.Command, tx core.Transaction) error {
	if err := s.history.Execute(ctx, cmd); err != nil {
		s.logger.WarnContext(ctx, "Ledger write failed",
			log.NewFields().WithOperation(op).WithTransaction(tx).WithError(err).ToSlice()...)
		return err
	}
	s.invalidate()
	s.logger.InfoContext(ctx, "Ledger write applied",
		log.NewFields().WithOperation(op).WithTransaction(tx).ToSlice()...)
	return nil
}

func (s *Session) invalidate() {
	s.summaries.DeletePrefix(s.userID + "|")
}
