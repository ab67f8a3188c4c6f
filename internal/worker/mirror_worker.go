// Package worker applies queued mirror messages to the remote store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"uangku/internal/amqp"
	"uangku/internal/cache"
	"uangku/internal/core"
	"uangku/internal/log"
	"uangku/internal/repository"
)

// Source delivers mirror messages to a handler until its context ends.
type Source interface {
	Consume(ctx context.Context, handler amqp.Handler) error
}

const (
	orderWindowSize = 10000
	orderWindowTTL  = 24 * time.Hour
)

// Stats counts handled messages. Stale messages were superseded by a newer
// write for the same id and skipped.
type Stats struct {
	Applied int64
	Dropped int64
	Failed  int64
	Stale   int64
}

type MirrorWorker struct {
	target     repository.RemoteWriter
	logger     *log.Logger
	newBackOff func() backoff.BackOff
	// latest holds the timestamp of the newest message applied per id.
	latest *cache.LRUCache[time.Time]

	applied atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
	stale   atomic.Int64
}

type Option func(*MirrorWorker)

// WithBackOff replaces the per-message retry policy.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(w *MirrorWorker) { w.newBackOff = fn }
}

func NewMirrorWorker(target repository.RemoteWriter, logger *log.Logger, opts ...Option) *MirrorWorker {
	if logger == nil {
		logger = log.Discard()
	}
	w := &MirrorWorker{
		target: target,
		logger: logger.WithComponent(log.ComponentWorker),
		latest: cache.NewLRUCache[time.Time](orderWindowSize, orderWindowTTL),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxElapsedTime = 2 * time.Minute
			return backoff.WithMaxRetries(b, 5)
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Handle applies msg with bounded retries. Validation failures are wrapped
// with amqp.ErrMalformed so the consumer drops the message instead of
// requeueing it. A message older than the last one applied for its id was
// overtaken after a requeue and is acknowledged without being applied.
func (w *MirrorWorker) Handle(ctx context.Context, msg *amqp.MirrorMessage) error {
	if w.superseded(msg) {
		w.stale.Add(1)
		w.logger.InfoContext(ctx, "Skipping superseded mirror message",
			log.FieldOperation, string(msg.Op), log.FieldTxID, msg.ID,
			"timestamp", msg.Timestamp.Format(time.RFC3339Nano))
		return nil
	}

	attempt := 0
	op := func() error {
		attempt++
		err := w.apply(ctx, msg)
		switch {
		case errors.Is(err, amqp.ErrMalformed):
			return backoff.Permanent(err)
		case errors.Is(err, core.ErrValidation):
			return backoff.Permanent(fmt.Errorf("%w: %v", amqp.ErrMalformed, err))
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		w.logger.WarnContext(ctx, "Mirror apply failed, retrying",
			log.FieldOperation, string(msg.Op),
			log.FieldTxID, msg.ID,
			log.FieldAttempt, attempt,
			log.FieldError, err.Error(),
			"wait", wait.String())
	}

	err := backoff.RetryNotify(op, backoff.WithContext(w.newBackOff(), ctx), notify)
	switch {
	case err == nil:
		w.applied.Add(1)
		w.record(msg)
		w.logger.InfoContext(ctx, "Mirror message applied",
			log.FieldOperation, string(msg.Op), log.FieldTxID, msg.ID, log.FieldAttempt, attempt)
		return nil
	case errors.Is(err, amqp.ErrMalformed):
		w.dropped.Add(1)
	default:
		w.failed.Add(1)
	}
	return fmt.Errorf("apply %s %s: %w", msg.Op, msg.ID, err)
}

func (w *MirrorWorker) superseded(msg *amqp.MirrorMessage) bool {
	if msg.Timestamp.IsZero() {
		return false
	}
	last, ok := w.latest.Get(msg.ID)
	return ok && msg.Timestamp.Before(last)
}

func (w *MirrorWorker) record(msg *amqp.MirrorMessage) {
	if msg.Timestamp.IsZero() {
		return
	}
	if last, ok := w.latest.Get(msg.ID); ok && last.After(msg.Timestamp) {
		return
	}
	w.latest.Set(msg.ID, msg.Timestamp)
}

// apply makes save and update idempotent upserts so redelivery never
// duplicates a row. A delete of a missing row counts as done.
func (w *MirrorWorker) apply(ctx context.Context, msg *amqp.MirrorMessage) error {
	switch msg.Op {
	case amqp.OpSave, amqp.OpUpdate:
		err := w.target.Update(ctx, msg.ID, *msg.Transaction)
		if errors.Is(err, core.ErrNotFound) {
			return w.target.Save(ctx, *msg.Transaction)
		}
		return err
	case amqp.OpDelete:
		err := w.target.Delete(ctx, msg.ID)
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return err
	default:
		return fmt.Errorf("%w: unknown op %q", amqp.ErrMalformed, msg.Op)
	}
}

// Run consumes from src until ctx ends, reconnecting with backoff when the
// consumer stops unexpectedly.
func (w *MirrorWorker) Run(ctx context.Context, src Source) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0
	b.MaxInterval = 30 * time.Second

	for {
		err := src.Consume(ctx, w.Handle)
		if ctx.Err() != nil {
			return nil
		}
		wait := b.NextBackOff()
		w.logger.WarnContext(ctx, "Consumer stopped, reconnecting", log.FieldError, fmt.Sprint(err), "wait", wait.String())
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (w *MirrorWorker) Stats() Stats {
	return Stats{
		Applied: w.applied.Load(),
		Dropped: w.dropped.Load(),
		Failed:  w.failed.Load(),
		Stale:   w.stale.Load(),
	}
}
