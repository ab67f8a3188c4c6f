package repository_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uangku/internal/core"
	"uangku/internal/repository"
	"uangku/internal/repository/memory"
)

// faultyStore wraps a memory store and injects failures per operation.
type faultyStore struct {
	*memory.Store
	failList  error
	failWrite error
	panicList bool
	blockList chan struct{}
	deletes   atomic.Int32
	listCalls atomic.Int32
}

func (f *faultyStore) ListByUser(ctx context.Context, userID string) ([]core.Transaction, error) {
	f.listCalls.Add(1)
	if f.blockList != nil {
		<-f.blockList
	}
	if f.panicList {
		panic("remote exploded")
	}
	if f.failList != nil {
		return nil, f.failList
	}
	return f.Store.ListByUser(ctx, userID)
}

func (f *faultyStore) Save(ctx context.Context, tx core.Transaction) error {
	if f.failWrite != nil {
		return f.failWrite
	}
	return f.Store.Save(ctx, tx)
}

func (f *faultyStore) Delete(ctx context.Context, id string) error {
	f.deletes.Add(1)
	return f.Store.Delete(ctx, id)
}

type panickingLocal struct{ *memory.Store }

func (panickingLocal) Save(context.Context, core.Transaction) error { panic("disk on fire") }

func tx(id string) core.Transaction {
	return core.NewExpense(id, "lunch", core.MustAmount("12"), core.NewDate(2025, 6, 2), "FOOD", "u1", "Card")
}

func TestLayeredReadFallsBackToLocalOnRemoteError(t *testing.T) {
	ctx := context.Background()
	local := memory.New(tx("a"))
	remote := &faultyStore{Store: memory.New(), failList: errors.New("503")}
	repo := repository.NewLayered(local, remote)

	got, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestLayeredReadFallsBackOnRemotePanic(t *testing.T) {
	local := memory.New(tx("a"))
	remote := &faultyStore{Store: memory.New(), panicList: true}
	repo := repository.NewLayered(local, remote)

	got, err := repo.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestLayeredReadFallsBackOnRemoteTimeout(t *testing.T) {
	local := memory.New(tx("a"))
	block := make(chan struct{})
	defer close(block)
	remote := &faultyStore{Store: memory.New(tx("remote-only")), blockList: block}
	repo := repository.NewLayered(local, remote, repository.WithRemoteTimeout(20*time.Millisecond))

	start := time.Now()
	got, err := repo.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
	assert.Less(t, time.Since(start), time.Second)
}

func TestLayeredReadPrefersRemote(t *testing.T) {
	local := memory.New(tx("a"))
	remote := &faultyStore{Store: memory.New(tx("a"), tx("b"))}
	repo := repository.NewLayered(local, remote)

	got, err := repo.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestLayeredConcurrentReadsShareRemoteCall(t *testing.T) {
	block := make(chan struct{})
	remote := &faultyStore{Store: memory.New(tx("a")), blockList: block}
	repo := repository.NewLayered(memory.New(), remote)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := repo.ListByUser(context.Background(), "u1")
			assert.NoError(t, err)
			assert.Len(t, got, 1)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(block)
	wg.Wait()
	assert.Less(t, int(remote.listCalls.Load()), 5)
}

func TestLayeredWriteSwallowsRemoteFailure(t *testing.T) {
	ctx := context.Background()
	local := memory.New()
	remote := &faultyStore{Store: memory.New(), failWrite: errors.New("quota exceeded")}
	repo := repository.NewLayered(local, remote)

	require.NoError(t, repo.Save(ctx, tx("a")))
	assert.Equal(t, 1, local.Len())
	assert.Equal(t, 0, remote.Len())
}

func TestLayeredWriteMirrorsToRemote(t *testing.T) {
	ctx := context.Background()
	local, remoteStore := memory.New(), memory.New()
	repo := repository.NewLayered(local, &faultyStore{Store: remoteStore})

	require.NoError(t, repo.Save(ctx, tx("a")))
	updated := tx("a")
	updated.Description = "dinner"
	require.NoError(t, repo.Update(ctx, "a", updated))

	got, err := remoteStore.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "dinner", got[0].Description)
}

func TestLayeredLocalFailureIsReturned(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewLayered(memory.New(tx("a")), nil)

	err := repo.Save(ctx, tx("a"))
	assert.ErrorIs(t, err, core.ErrDuplicateID)
	assert.ErrorIs(t, repo.Delete(ctx, "missing"), core.ErrNotFound)
	assert.ErrorIs(t, repo.Update(ctx, "missing", tx("missing")), core.ErrNotFound)
}

func TestLayeredLocalPanicBecomesStorageFailure(t *testing.T) {
	repo := repository.NewLayered(panickingLocal{memory.New()}, nil)
	err := repo.Save(context.Background(), tx("a"))
	assert.ErrorIs(t, err, core.ErrStorage)
}

func TestLayeredDeleteMirroringToggle(t *testing.T) {
	ctx := context.Background()
	for _, mirror := range []bool{true, false} {
		remote := &faultyStore{Store: memory.New()}
		repo := repository.NewLayered(memory.New(), remote, repository.WithMirrorDeletes(mirror))
		require.NoError(t, repo.Save(ctx, tx("a")))
		require.NoError(t, repo.Delete(ctx, "a"))

		if mirror {
			assert.Equal(t, int32(1), remote.deletes.Load())
			assert.Equal(t, 0, remote.Len())
		} else {
			assert.Equal(t, int32(0), remote.deletes.Load())
			assert.Equal(t, 1, remote.Len(), "remote copy lingers when deletes are not mirrored")
		}
	}
}

func TestLayeredDerivedFilters(t *testing.T) {
	ctx := context.Background()
	food := tx("a")
	rent := core.NewExpense("b", "rent", core.MustAmount("900"), core.NewDate(2025, 7, 1), "RENT", "u1", "Transfer")
	repo := repository.NewLayered(memory.New(food, rent), nil)

	byCat, err := repo.ListByCategory(ctx, "u1", "RENT")
	require.NoError(t, err)
	require.Len(t, byCat, 1)
	assert.Equal(t, "b", byCat[0].ID)

	byRange, err := repo.ListByDateRange(ctx, "u1", "2025-06-01", "2025-06-30")
	require.NoError(t, err)
	require.Len(t, byRange, 1)
	assert.Equal(t, "a", byRange[0].ID)

	open, err := repo.ListByDateRange(ctx, "u1", "", "")
	require.NoError(t, err)
	assert.Len(t, open, 2)
}

func TestCombineRemote(t *testing.T) {
	ctx := context.Background()
	reads, writes := memory.New(tx("r")), memory.New()
	store := repository.CombineRemote(reads, writes)

	require.NoError(t, store.Save(ctx, tx("w")))
	got, err := store.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r", got[0].ID)
	assert.Equal(t, 1, writes.Len())
}
