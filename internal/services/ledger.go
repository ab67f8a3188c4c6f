// Package services ties the repository, the undo/redo history and the
// notification bus together into per-user ledger sessions.
package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"uangku/internal/cache"
	"uangku/internal/command"
	"uangku/internal/core"
	"uangku/internal/log"
	"uangku/internal/repository"
)

const (
	defaultSummaryCacheSize = 256
	defaultSummaryTTL       = 5 * time.Minute
	defaultSessionLimit     = 1024
	defaultSessionIdle      = 30 * time.Minute
)

// Ledger owns one Session per user. Sessions are created on first use and
// dropped when idle or when the session cap is exceeded; a dropped session
// is reseeded from the local store on its next use.
type Ledger struct {
	repo         repository.Repository
	local        repository.Store
	budgets      []core.Budget
	historyLimit int
	summaries    *cache.LRUCache[core.Summary]
	logger       *log.Logger

	sessionLimit int
	sessionIdle  time.Duration
	sessions     *cache.LRUCache[*Session]
	seeding      singleflight.Group
}

type Option func(*Ledger)

// WithHistoryLimit bounds each session's undo history.
func WithHistoryLimit(limit int) Option {
	return func(l *Ledger) { l.historyLimit = limit }
}

// WithBudgets registers budgets watched by every matching session.
func WithBudgets(budgets ...core.Budget) Option {
	return func(l *Ledger) { l.budgets = append(l.budgets, budgets...) }
}

func WithSummaryCache(c *cache.LRUCache[core.Summary]) Option {
	return func(l *Ledger) {
		if c != nil {
			l.summaries = c
		}
	}
}

// WithSessionLimit caps the number of open sessions and drops sessions
// unused for longer than idle.
func WithSessionLimit(limit int, idle time.Duration) Option {
	return func(l *Ledger) {
		if limit > 0 {
			l.sessionLimit = limit
		}
		if idle > 0 {
			l.sessionIdle = idle
		}
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLedger serves sessions over repo. Sessions are seeded from, and undo
// payloads resolved against, the local layer of repo.
func NewLedger(repo repository.Repository, opts ...Option) *Ledger {
	l := &Ledger{
		repo:         repo,
		local:        repository.LocalOf(repo),
		historyLimit: command.DefaultLimit,
		summaries:    cache.NewLRUCache[core.Summary](defaultSummaryCacheSize, defaultSummaryTTL),
		logger:       log.Discard(),
		sessionLimit: defaultSessionLimit,
		sessionIdle:  defaultSessionIdle,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.WithComponent(log.ComponentLedger)
	l.sessions = cache.NewLRUCache[*Session](l.sessionLimit, l.sessionIdle)
	return l
}

// Session returns the user's session, seeding a new one from the local
// store. Concurrent first calls for one user share a single seed read;
// other users are never blocked by it.
func (l *Ledger) Session(ctx context.Context, userID string) (*Session, error) {
	if userID == "" {
		return nil, core.ErrEmptyUser
	}
	if s, ok := l.touch(userID); ok {
		return s, nil
	}

	v, err, _ := l.seeding.Do(userID, func() (any, error) {
		if s, ok := l.touch(userID); ok {
			return s, nil
		}
		s, err := l.open(ctx, userID)
		if err != nil {
			return nil, err
		}
		l.sessions.Set(userID, s)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// touch returns a live session and restarts its idle timer.
func (l *Ledger) touch(userID string) (*Session, bool) {
	s, ok := l.sessions.Get(userID)
	if ok {
		l.sessions.Set(userID, s)
	}
	return s, ok
}

func (l *Ledger) open(ctx context.Context, userID string) (*Session, error) {
	txs, err := readLocal(ctx, l.local, userID)
	if err != nil {
		return nil, fmt.Errorf("load transactions for %s: %w", userID, err)
	}

	s := newSession(userID, l.repo, l.local, l.historyLimit, l.summaries, l.logger)
	for _, b := range l.budgets {
		if b.UserID != "" && b.UserID != userID {
			continue
		}
		s.watchLocked(b)
	}
	s.bus.Load(txs)

	l.logger.InfoContext(ctx, "Session started",
		log.FieldUserID, userID,
		"transactions", len(txs),
		"budgets", len(s.budgets))
	return s, nil
}

// readLocal lists userID's transactions from the authoritative store.
func readLocal(ctx context.Context, local repository.Store, userID string) ([]core.Transaction, error) {
	var txs []core.Transaction
	err := core.StorageFailure("list transactions", core.Guard("list transactions", func() error {
		var err error
		txs, err = local.ListByUser(ctx, userID)
		return err
	}))
	return txs, err
}

// SummaryCache exposes the shared summary cache so it can be registered
// for periodic cleanup.
func (l *Ledger) SummaryCache() *cache.LRUCache[core.Summary] {
	return l.summaries
}

// SessionCache exposes the session cache so idle sessions can be swept.
func (l *Ledger) SessionCache() *cache.LRUCache[*Session] {
	return l.sessions
}

// Sessions returns the number of open sessions.
func (l *Ledger) Sessions() int {
	return l.sessions.Size()
}
