package google

import (
	"fmt"
	"strings"

	"uangku/internal/core"
)

const (
	colID = iota
	colUser
	colDate
	colKind
	colDescription
	colAmount
	colCategory
	colSource
	colPaymentMethod
	columns
)

func toRow(tx core.Transaction) []any {
	return []any{
		tx.ID,
		tx.UserID,
		tx.Date.String(),
		string(tx.Kind),
		tx.Description,
		tx.Amount.String(),
		tx.CategoryID,
		tx.Source,
		tx.PaymentMethod,
	}
}

func toStrings(in []interface{}) []string {
	out := make([]string, columns)
	for i, v := range in {
		if i >= columns {
			break
		}
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// parseRow converts one sheet row. Missing trailing cells are treated as empty.
func parseRow(row []interface{}) (core.Transaction, error) {
	cols := toStrings(row)
	date, err := core.ParseDate(cols[colDate])
	if err != nil {
		return core.Transaction{}, fmt.Errorf("row %q: %w", cols[colID], err)
	}
	amount, err := core.ParseAmount(cols[colAmount])
	if err != nil {
		return core.Transaction{}, fmt.Errorf("row %q: %w", cols[colID], err)
	}
	tx := core.Transaction{
		ID:            cols[colID],
		UserID:        cols[colUser],
		Date:          date,
		Kind:          core.Kind(strings.ToLower(cols[colKind])),
		Description:   cols[colDescription],
		Amount:        amount,
		CategoryID:    cols[colCategory],
		Source:        cols[colSource],
		PaymentMethod: cols[colPaymentMethod],
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("row %q: %w", cols[colID], err)
	}
	return tx, nil
}

// parseRows parses every data row, skipping the header and blank rows. It
// returns the number of malformed rows it dropped.
func parseRows(values [][]interface{}) ([]core.Transaction, int) {
	var out []core.Transaction
	skipped := 0
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		first := strings.TrimSpace(fmt.Sprint(row[0]))
		if first == "" {
			continue
		}
		if i == 0 && strings.EqualFold(first, "ID") {
			continue
		}
		tx, err := parseRow(row)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, tx)
	}
	return out, skipped
}
