// Package boltdb stores transactions in a bbolt file, one JSON record per id.
package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	bolt "go.etcd.io/bbolt"

	"uangku/internal/core"
	"uangku/internal/repository"
)

// Bucket names.
const (
	BucketTransactions = "transactions"
)

// record is the on-disk form. Seq preserves insertion order across updates.
type record struct {
	Seq           uint64 `json:"seq"`
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	Kind          string `json:"kind"`
	Description   string `json:"description"`
	Amount        string `json:"amount"`
	Date          string `json:"date"`
	CategoryID    string `json:"category_id"`
	Source        string `json:"source,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
}

type Store struct {
	db *bolt.DB
}

var _ repository.Store = (*Store)(nil)

// New opens dbPath and initializes buckets.
func New(dbPath string) (*Store, error) {
	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(BucketTransactions)); err != nil {
			return fmt.Errorf("create bucket %s: %w", BucketTransactions, err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func toRecord(tx core.Transaction, seq uint64) record {
	return record{
		Seq:           seq,
		ID:            tx.ID,
		UserID:        tx.UserID,
		Kind:          string(tx.Kind),
		Description:   tx.Description,
		Amount:        tx.Amount.String(),
		Date:          tx.Date.String(),
		CategoryID:    tx.CategoryID,
		Source:        tx.Source,
		PaymentMethod: tx.PaymentMethod,
	}
}

func (r record) transaction() (core.Transaction, error) {
	date, err := core.ParseDate(r.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse date of %s: %w", r.ID, err)
	}
	amount, err := core.ParseAmount(r.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount of %s: %w", r.ID, err)
	}
	return core.Transaction{
		ID:            r.ID,
		UserID:        r.UserID,
		Kind:          core.Kind(r.Kind),
		Description:   r.Description,
		Amount:        amount,
		Date:          date,
		CategoryID:    r.CategoryID,
		Source:        r.Source,
		PaymentMethod: r.PaymentMethod,
	}, nil
}

func (s *Store) Save(_ context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	err := s.db.Update(func(btx *bolt.Tx) error {
		b := btx.Bucket([]byte(BucketTransactions))
		if b.Get([]byte(tx.ID)) != nil {
			return core.ErrDuplicateID
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return put(b, toRecord(tx, seq))
	})
	return core.StorageFailure("save transaction", err)
}

func (s *Store) ListByUser(_ context.Context, userID string) ([]core.Transaction, error) {
	var recs []record
	err := s.db.View(func(btx *bolt.Tx) error {
		return btx.Bucket([]byte(BucketTransactions)).ForEach(func(_, v []byte) error {
			var r record
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unmarshal record: %w", err)
			}
			if r.UserID == userID {
				recs = append(recs, r)
			}
			return nil
		})
	})
	if err != nil {
		return nil, core.StorageFailure("list transactions", err)
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Date != recs[j].Date {
			return recs[i].Date < recs[j].Date
		}
		return recs[i].Seq < recs[j].Seq
	})

	out := make([]core.Transaction, 0, len(recs))
	for _, r := range recs {
		tx, err := r.transaction()
		if err != nil {
			return nil, core.StorageFailure("decode transaction", err)
		}
		out = append(out, tx)
	}
	return out, nil
}

func (s *Store) Update(_ context.Context, id string, tx core.Transaction) error {
	if err := repository.CheckUpdate(id, tx); err != nil {
		return err
	}
	err := s.db.Update(func(btx *bolt.Tx) error {
		b := btx.Bucket([]byte(BucketTransactions))
		data := b.Get([]byte(id))
		if data == nil {
			return core.ErrNotFound
		}
		var old record
		if err := json.Unmarshal(data, &old); err != nil {
			return fmt.Errorf("unmarshal record: %w", err)
		}
		return put(b, toRecord(tx, old.Seq))
	})
	return core.StorageFailure("update transaction", err)
}

func (s *Store) Delete(_ context.Context, id string) error {
	err := s.db.Update(func(btx *bolt.Tx) error {
		b := btx.Bucket([]byte(BucketTransactions))
		if b.Get([]byte(id)) == nil {
			return core.ErrNotFound
		}
		return b.Delete([]byte(id))
	})
	return core.StorageFailure("delete transaction", err)
}

func put(b *bolt.Bucket, r record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return b.Put([]byte(r.ID), data)
}
