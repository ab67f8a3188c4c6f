package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// TransactionRow mirrors the transactions table.
type TransactionRow struct {
	Seq           int64
	ID            string
	UserID        string
	Kind          string
	Description   string
	Amount        string
	Date          string
	CategoryID    string
	Source        string
	PaymentMethod string
}

const insertTransaction = `INSERT INTO transactions (
    id, user_id, kind, description, amount, date, category_id, source, payment_method
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

type InsertTransactionParams struct {
	ID            string
	UserID        string
	Kind          string
	Description   string
	Amount        string
	Date          string
	CategoryID    string
	Source        string
	PaymentMethod string
}

func (q *Queries) InsertTransaction(ctx context.Context, arg InsertTransactionParams) error {
	_, err := q.db.ExecContext(ctx, insertTransaction,
		arg.ID,
		arg.UserID,
		arg.Kind,
		arg.Description,
		arg.Amount,
		arg.Date,
		arg.CategoryID,
		arg.Source,
		arg.PaymentMethod,
	)
	return err
}

const listTransactionsByUser = `SELECT seq, id, user_id, kind, description, amount, date, category_id, source, payment_method
FROM transactions
WHERE user_id = ?
ORDER BY date ASC, seq ASC`

func (q *Queries) ListTransactionsByUser(ctx context.Context, userID string) ([]TransactionRow, error) {
	rows, err := q.db.QueryContext(ctx, listTransactionsByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TransactionRow
	for rows.Next() {
		var i TransactionRow
		if err := rows.Scan(
			&i.Seq,
			&i.ID,
			&i.UserID,
			&i.Kind,
			&i.Description,
			&i.Amount,
			&i.Date,
			&i.CategoryID,
			&i.Source,
			&i.PaymentMethod,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateTransaction = `UPDATE transactions
SET user_id = ?, kind = ?, description = ?, amount = ?, date = ?, category_id = ?,
    source = ?, payment_method = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?`

func (q *Queries) UpdateTransaction(ctx context.Context, arg InsertTransactionParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateTransaction,
		arg.UserID,
		arg.Kind,
		arg.Description,
		arg.Amount,
		arg.Date,
		arg.CategoryID,
		arg.Source,
		arg.PaymentMethod,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteTransaction = `DELETE FROM transactions WHERE id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteTransaction, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const transactionExists = `SELECT COUNT(1) FROM transactions WHERE id = ?`

func (q *Queries) TransactionExists(ctx context.Context, id string) (bool, error) {
	row := q.db.QueryRowContext(ctx, transactionExists, id)
	var n int64
	err := row.Scan(&n)
	return n > 0, err
}
