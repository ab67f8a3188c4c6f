package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"uangku/internal/core"
	"uangku/internal/log"
	"uangku/internal/repository"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the SQLite-backed local store.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
}

var _ repository.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// a single writer avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func toParams(tx core.Transaction) InsertTransactionParams {
	return InsertTransactionParams{
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

func fromRow(row TransactionRow) (core.Transaction, error) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse date of %s: %w", row.ID, err)
	}
	amount, err := core.ParseAmount(row.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount of %s: %w", row.ID, err)
	}
	return core.Transaction{
		ID:            row.ID,
		UserID:        row.UserID,
		Kind:          core.Kind(row.Kind),
		Description:   row.Description,
		Amount:        amount,
		Date:          date,
		CategoryID:    row.CategoryID,
		Source:        row.Source,
		PaymentMethod: row.PaymentMethod,
	}, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	exists, err := r.queries.TransactionExists(ctx, tx.ID)
	if err != nil {
		return core.StorageFailure("check transaction", err)
	}
	if exists {
		return core.ErrDuplicateID
	}
	if err := r.queries.InsertTransaction(ctx, toParams(tx)); err != nil {
		return core.StorageFailure("insert transaction", err)
	}

	r.logger.DebugContext(ctx, "Transaction saved to SQLite", log.NewFields().WithTransaction(tx).ToSlice()...)
	return nil
}

func (r *SQLiteRepository) ListByUser(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactionsByUser(ctx, userID)
	if err != nil {
		return nil, core.StorageFailure("list transactions", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := fromRow(row)
		if err != nil {
			return nil, core.StorageFailure("decode transaction", err)
		}
		out = append(out, tx)
	}
	return out, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, id string, tx core.Transaction) error {
	if err := repository.CheckUpdate(id, tx); err != nil {
		return err
	}
	n, err := r.queries.UpdateTransaction(ctx, toParams(tx))
	if err != nil {
		return core.StorageFailure("update transaction", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	n, err := r.queries.DeleteTransaction(ctx, id)
	if err != nil {
		return core.StorageFailure("delete transaction", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
