// Package memory provides an in-process transaction store. It backs tests
// and the "memory" local and remote backends.
package memory

import (
	"context"
	"sync"

	"uangku/internal/core"
	"uangku/internal/repository"
)

type Store struct {
	mu    sync.Mutex
	items []core.Transaction
	index map[string]int
}

var _ repository.Store = (*Store)(nil)

func New(seed ...core.Transaction) *Store {
	s := &Store{index: map[string]int{}}
	for _, tx := range seed {
		_ = s.Save(context.Background(), tx)
	}
	return s
}

func (s *Store) Save(_ context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[tx.ID]; ok {
		return core.ErrDuplicateID
	}
	s.index[tx.ID] = len(s.items)
	s.items = append(s.items, tx)
	return nil
}

func (s *Store) ListByUser(_ context.Context, userID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0)
	for _, tx := range s.items {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	repository.SortStable(out)
	return out, nil
}

func (s *Store) Update(_ context.Context, id string, tx core.Transaction) error {
	if err := repository.CheckUpdate(id, tx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return core.ErrNotFound
	}
	s.items[i] = tx
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return core.ErrNotFound
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.items); j++ {
		s.index[s.items[j].ID] = j
	}
	return nil
}

// Len returns the number of stored transactions across all users.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
