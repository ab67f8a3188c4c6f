package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"uangku/internal/core"
)

// ErrBadRequestBody is returned for bodies that are not valid JSON.
var ErrBadRequestBody = fmt.Errorf("%w: malformed request body", core.ErrValidation)

// transactionRequest is the JSON body of add and update calls. Amounts may
// be sent as JSON numbers or numeric strings.
type transactionRequest struct {
	ID            string      `json:"id"`
	Kind          core.Kind   `json:"kind"`
	Description   string      `json:"description"`
	Amount        json.Number `json:"amount"`
	Date          string      `json:"date"`
	CategoryID    string      `json:"category_id"`
	Source        string      `json:"source"`
	PaymentMethod string      `json:"payment_method"`
}

type batchRequest struct {
	Transactions []transactionRequest `json:"transactions"`
}

type budgetRequest struct {
	ID         string      `json:"id"`
	Period     string      `json:"period"`
	Limit      json.Number `json:"limit"`
	CategoryID string      `json:"category_id"`
}

// decodeJSON reads a single JSON document into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequestBody, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data", ErrBadRequestBody)
	}
	return nil
}

// toTransaction builds the transaction for userID. Kind-specific fields of
// the other kind are dropped.
func (req transactionRequest) toTransaction(userID string) (core.Transaction, error) {
	amount, err := core.ParseAmount(req.Amount.String())
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	id := strings.TrimSpace(req.ID)
	desc := sanitizeInput(req.Description)

	switch core.Kind(strings.ToLower(string(req.Kind))) {
	case core.Income:
		return core.NewIncome(id, desc, amount, date, req.CategoryID, userID, sanitizeInput(req.Source)), nil
	case core.Expense:
		return core.NewExpense(id, desc, amount, date, req.CategoryID, userID, sanitizeInput(req.PaymentMethod)), nil
	default:
		return core.Transaction{}, core.ErrInvalidKind
	}
}

func (req budgetRequest) toBudget(userID string) (core.Budget, error) {
	limit, err := core.ParseAmount(req.Limit.String())
	if err != nil {
		return core.Budget{}, err
	}
	return core.Budget{
		ID:         strings.TrimSpace(req.ID),
		Period:     strings.TrimSpace(req.Period),
		Limit:      limit,
		CategoryID: req.CategoryID,
		UserID:     userID,
	}, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
