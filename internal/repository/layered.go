package repository

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"uangku/internal/core"
	"uangku/internal/log"
)

// DefaultRemoteTimeout bounds every remote call made by Layered.
const DefaultRemoteTimeout = 3 * time.Second

// Layered writes to local first and mirrors to remote; reads try remote
// first and fall back to local on any remote failure.
type Layered struct {
	local         Store
	remote        Store
	timeout       time.Duration
	mirrorDeletes bool
	logger        *log.Logger
	reads         singleflight.Group
}

type Option func(*Layered)

func WithRemoteTimeout(d time.Duration) Option {
	return func(l *Layered) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithMirrorDeletes controls whether deletes are propagated to the remote.
func WithMirrorDeletes(enabled bool) Option {
	return func(l *Layered) { l.mirrorDeletes = enabled }
}

func WithLogger(logger *log.Logger) Option {
	return func(l *Layered) {
		if logger != nil {
			l.logger = logger.WithComponent(log.ComponentRemote)
		}
	}
}

// NewLayered composes local and remote. A nil remote yields a plain local store.
func NewLayered(local, remote Store, opts ...Option) *Layered {
	l := &Layered{
		local:         local,
		remote:        remote,
		timeout:       DefaultRemoteTimeout,
		mirrorDeletes: true,
		logger:        log.Discard(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Local returns the authoritative store.
func (l *Layered) Local() Store { return l.local }

// LocalOf returns the authoritative store behind repo: the local layer of a
// Layered, otherwise repo itself.
func LocalOf(repo Store) Store {
	if l, ok := repo.(*Layered); ok {
		return l.Local()
	}
	return repo
}

func (l *Layered) Save(ctx context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	if err := l.callLocal("save transaction", func() error { return l.local.Save(ctx, tx) }); err != nil {
		return err
	}
	l.mirror(ctx, log.OpSave, tx.ID, func(ctx context.Context) error { return l.remote.Save(ctx, tx) })
	return nil
}

func (l *Layered) Update(ctx context.Context, id string, tx core.Transaction) error {
	if err := CheckUpdate(id, tx); err != nil {
		return err
	}
	if err := l.callLocal("update transaction", func() error { return l.local.Update(ctx, id, tx) }); err != nil {
		return err
	}
	l.mirror(ctx, log.OpUpdate, id, func(ctx context.Context) error { return l.remote.Update(ctx, id, tx) })
	return nil
}

func (l *Layered) Delete(ctx context.Context, id string) error {
	if id == "" {
		return core.ErrEmptyID
	}
	if err := l.callLocal("delete transaction", func() error { return l.local.Delete(ctx, id) }); err != nil {
		return err
	}
	if l.mirrorDeletes {
		l.mirror(ctx, log.OpDelete, id, func(ctx context.Context) error { return l.remote.Delete(ctx, id) })
	}
	return nil
}

func (l *Layered) ListByUser(ctx context.Context, userID string) ([]core.Transaction, error) {
	if l.remote != nil {
		v, err, _ := l.reads.Do(userID, func() (any, error) {
			var txs []core.Transaction
			err := l.callRemote(ctx, func(ctx context.Context) error {
				var err error
				txs, err = l.remote.ListByUser(ctx, userID)
				return err
			})
			return txs, err
		})
		if err == nil {
			shared := v.([]core.Transaction)
			return append([]core.Transaction(nil), shared...), nil
		}
		l.logger.WarnContext(ctx, "Remote read failed, falling back to local",
			log.FieldUserID, userID, log.FieldError, err.Error())
	}

	var txs []core.Transaction
	err := l.callLocal("list transactions", func() error {
		var err error
		txs, err = l.local.ListByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txs, nil
}

func (l *Layered) ListByCategory(ctx context.Context, userID, categoryID string) ([]core.Transaction, error) {
	txs, err := l.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Filter{CategoryID: categoryID}.Apply(txs), nil
}

func (l *Layered) ListByDateRange(ctx context.Context, userID, from, to string) ([]core.Transaction, error) {
	txs, err := l.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Filter{From: from, To: to}.Apply(txs), nil
}

func (l *Layered) callLocal(op string, fn func() error) error {
	return core.StorageFailure(op, core.Guard(op, fn))
}

// mirror runs a remote write and swallows its failure.
func (l *Layered) mirror(ctx context.Context, op, id string, fn func(context.Context) error) {
	if l.remote == nil {
		return
	}
	if err := l.callRemote(ctx, fn); err != nil {
		l.logger.WarnContext(ctx, "Remote mirror failed",
			log.FieldOperation, op, log.FieldTxID, id, log.FieldError, err.Error())
	}
}

// callRemote runs fn under the remote timeout. A call that ignores its
// context is abandoned once the deadline passes.
func (l *Layered) callRemote(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- core.Guard("remote call", func() error { return fn(ctx) })
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %v", core.ErrRemoteUnavailable, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", core.ErrRemoteUnavailable, ctx.Err())
	}
}
