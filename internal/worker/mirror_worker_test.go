package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uangku/internal/amqp"
	"uangku/internal/core"
	"uangku/internal/repository/memory"
)

// flakyTarget fails the first n calls with a transient error.
type flakyTarget struct {
	*memory.Store
	failures int
	calls    int
}

func (f *flakyTarget) Update(ctx context.Context, id string, tx core.Transaction) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("503 backend error")
	}
	return f.Store.Update(ctx, id, tx)
}

func fastBackOff(retries uint64) Option {
	return WithBackOff(func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, retries)
	})
}

func expense(id, desc string) core.Transaction {
	return core.NewExpense(id, desc, core.MustAmount("10"), core.NewDate(2025, 6, 1), "FOOD", "u1", "Cash")
}

func TestHandleSaveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	target := memory.New()
	w := NewMirrorWorker(target, nil, fastBackOff(0))
	tx := expense("a", "lunch")

	require.NoError(t, w.Handle(ctx, amqp.NewMirrorMessage(amqp.OpSave, "a", &tx)))
	require.NoError(t, w.Handle(ctx, amqp.NewMirrorMessage(amqp.OpSave, "a", &tx)))
	assert.Equal(t, 1, target.Len())
}

func TestHandleUpdateFallsBackToAppend(t *testing.T) {
	ctx := context.Background()
	target := memory.New()
	w := NewMirrorWorker(target, nil, fastBackOff(0))
	tx := expense("a", "dinner")

	require.NoError(t, w.Handle(ctx, amqp.NewMirrorMessage(amqp.OpUpdate, "a", &tx)))
	got, _ := target.ListByUser(ctx, "u1")
	require.Len(t, got, 1)
	assert.Equal(t, "dinner", got[0].Description)
}

func TestHandleDeleteMissingIsDone(t *testing.T) {
	w := NewMirrorWorker(memory.New(), nil, fastBackOff(0))
	assert.NoError(t, w.Handle(context.Background(), amqp.NewMirrorMessage(amqp.OpDelete, "ghost", nil)))
	assert.Equal(t, int64(1), w.Stats().Applied)
}

func TestHandleRetriesTransientFailures(t *testing.T) {
	ctx := context.Background()
	tx := expense("a", "lunch")
	target := &flakyTarget{Store: memory.New(tx), failures: 2}
	w := NewMirrorWorker(target, nil, fastBackOff(3))

	changed := expense("a", "brunch")
	require.NoError(t, w.Handle(ctx, amqp.NewMirrorMessage(amqp.OpUpdate, "a", &changed)))
	assert.Equal(t, 3, target.calls)
}

func TestHandleGivesUpAfterRetries(t *testing.T) {
	tx := expense("a", "lunch")
	target := &flakyTarget{Store: memory.New(tx), failures: 10}
	w := NewMirrorWorker(target, nil, fastBackOff(2))

	err := w.Handle(context.Background(), amqp.NewMirrorMessage(amqp.OpUpdate, "a", &tx))
	require.Error(t, err)
	assert.False(t, errors.Is(err, amqp.ErrMalformed), "transient failures must be requeued")
	assert.Equal(t, int64(1), w.Stats().Failed)
}

func TestHandleValidationFailureIsDropped(t *testing.T) {
	bad := expense("a", "")
	w := NewMirrorWorker(memory.New(), nil, fastBackOff(5))

	err := w.Handle(context.Background(), &amqp.MirrorMessage{Op: amqp.OpSave, ID: "a", Transaction: &bad})
	assert.ErrorIs(t, err, amqp.ErrMalformed)
	assert.Equal(t, int64(1), w.Stats().Dropped)
}

type stubSource struct {
	msgs  []*amqp.MirrorMessage
	calls int
}

func (s *stubSource) Consume(ctx context.Context, handler amqp.Handler) error {
	s.calls++
	for _, m := range s.msgs {
		_ = handler(ctx, m)
	}
	s.msgs = nil
	<-ctx.Done()
	return ctx.Err()
}

func TestRunStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tx := expense("a", "lunch")
	target := memory.New()
	src := &stubSource{msgs: []*amqp.MirrorMessage{amqp.NewMirrorMessage(amqp.OpSave, "a", &tx)}}
	w := NewMirrorWorker(target, nil, fastBackOff(0))

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, src) }()
	require.Eventually(t, func() bool { return w.Stats().Applied == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
	assert.Equal(t, 1, target.Len())
}

func TestHandleSkipsSaveOvertakenByDelete(t *testing.T) {
	ctx := context.Background()
	tx := expense("a", "lunch")
	target := memory.New(tx)
	w := NewMirrorWorker(target, nil, fastBackOff(0))

	save := amqp.NewMirrorMessage(amqp.OpSave, "a", &tx)
	del := amqp.NewMirrorMessage(amqp.OpDelete, "a", nil)
	del.Timestamp = save.Timestamp.Add(time.Second)

	// The save was requeued after failing and is redelivered after the delete.
	require.NoError(t, w.Handle(ctx, del))
	require.NoError(t, w.Handle(ctx, save))

	assert.Equal(t, 0, target.Len(), "a requeued save must not resurrect a deleted row")
	st := w.Stats()
	assert.Equal(t, int64(1), st.Applied)
	assert.Equal(t, int64(1), st.Stale)
}

func TestHandleAppliesNewerWriteAfterDelete(t *testing.T) {
	ctx := context.Background()
	tx := expense("a", "lunch")
	target := memory.New(tx)
	w := NewMirrorWorker(target, nil, fastBackOff(0))

	del := amqp.NewMirrorMessage(amqp.OpDelete, "a", nil)
	again := amqp.NewMirrorMessage(amqp.OpSave, "a", &tx)
	again.Timestamp = del.Timestamp.Add(time.Second)

	require.NoError(t, w.Handle(ctx, del))
	require.NoError(t, w.Handle(ctx, again))
	assert.Equal(t, 1, target.Len())
	assert.Equal(t, int64(0), w.Stats().Stale)
}
