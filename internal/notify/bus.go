// Package notify fans transaction snapshot changes out to observers.
package notify

import (
	"sync"

	"uangku/internal/core"
)

// Observer receives the full snapshot after every change. Implementations
// must be comparable (pointer types) so they can be removed.
type Observer interface {
	Update(snapshot []core.Transaction)
}

// ObserverFunc adapts a function. Use a pointer to it with AddObserver so
// that RemoveObserver can find it again.
type ObserverFunc func(snapshot []core.Transaction)

func (f *ObserverFunc) Update(snapshot []core.Transaction) { (*f)(snapshot) }

// Bus holds a transient snapshot of a user's transactions. It is not the
// system of record. Observers run synchronously, in registration order,
// outside the bus lock.
type Bus struct {
	mu        sync.Mutex
	txs       []core.Transaction
	observers []Observer
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) AddObserver(o Observer) {
	if o == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, o)
}

// RemoveObserver removes the first registration of o.
func (b *Bus) RemoveObserver(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, cur := range b.observers {
		if cur == o {
			b.observers = append(b.observers[:i:i], b.observers[i+1:]...)
			return
		}
	}
}

// Load replaces the whole snapshot, e.g. when seeding from the repository.
func (b *Bus) Load(txs []core.Transaction) {
	b.mu.Lock()
	b.txs = append([]core.Transaction(nil), txs...)
	b.dispatch(b.changedLocked())
}

// AddTransaction appends tx. An entry with the same id is replaced in place
// so redelivered adds never duplicate.
func (b *Bus) AddTransaction(tx core.Transaction) {
	b.mu.Lock()
	if i := b.indexLocked(tx.ID); i >= 0 {
		b.txs[i] = tx
	} else {
		b.txs = append(b.txs, tx)
	}
	b.dispatch(b.changedLocked())
}

// UpdateTransaction replaces the entry with tx.ID. Unknown ids notify nobody.
func (b *Bus) UpdateTransaction(tx core.Transaction) {
	b.mu.Lock()
	i := b.indexLocked(tx.ID)
	if i < 0 {
		b.mu.Unlock()
		return
	}
	b.txs[i] = tx
	b.dispatch(b.changedLocked())
}

// RemoveTransaction drops the entry with id. Unknown ids notify nobody.
func (b *Bus) RemoveTransaction(id string) {
	b.mu.Lock()
	i := b.indexLocked(id)
	if i < 0 {
		b.mu.Unlock()
		return
	}
	b.txs = append(b.txs[:i], b.txs[i+1:]...)
	b.dispatch(b.changedLocked())
}

// Snapshot returns a copy of the current transactions.
func (b *Bus) Snapshot() []core.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]core.Transaction(nil), b.txs...)
}

func (b *Bus) indexLocked(id string) int {
	for i, tx := range b.txs {
		if tx.ID == id {
			return i
		}
	}
	return -1
}

// changedLocked captures the observers and the snapshot of one change and
// releases the lock.
func (b *Bus) changedLocked() ([]Observer, []core.Transaction) {
	observers := append([]Observer(nil), b.observers...)
	snap := append([]core.Transaction(nil), b.txs...)
	b.mu.Unlock()
	return observers, snap
}

func (b *Bus) dispatch(observers []Observer, snap []core.Transaction) {
	for _, o := range observers {
		o.Update(append([]core.Transaction(nil), snap...))
	}
}
