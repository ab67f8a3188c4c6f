package http

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"uangku/internal/core"
)

func TestTransactionRequestToTransaction(t *testing.T) {
	tests := []struct {
		name    string
		req     transactionRequest
		wantErr error
		check   func(t *testing.T, tx core.Transaction)
	}{
		{
			name: "income keeps source and drops payment method",
			req: transactionRequest{
				Kind: "Income", Description: "Gaji", Amount: "5000000", Date: "2025-06-01",
				CategoryID: "salary", Source: "ACME", PaymentMethod: "cash",
			},
			check: func(t *testing.T, tx core.Transaction) {
				if tx.Kind != core.Income || tx.Source != "ACME" || tx.PaymentMethod != "" {
					t.Fatalf("unexpected income: %+v", tx)
				}
				if tx.ID == "" {
					t.Fatal("expected generated id")
				}
			},
		},
		{
			name: "expense with comma amount",
			req: transactionRequest{
				ID: " tx-1 ", Kind: "expense", Description: "Makan\x07", Amount: "12,50", Date: "2025-06-02",
				CategoryID: "food", PaymentMethod: "card",
			},
			check: func(t *testing.T, tx core.Transaction) {
				if tx.ID != "tx-1" {
					t.Fatalf("id = %q, want tx-1", tx.ID)
				}
				if tx.Description != "Makan" {
					t.Fatalf("description = %q, want control characters removed", tx.Description)
				}
				if !tx.Amount.Equal(core.MustAmount("12.5")) {
					t.Fatalf("amount = %s, want 12.5", tx.Amount)
				}
				if tx.UserID != "alice" {
					t.Fatalf("user = %q, want alice", tx.UserID)
				}
			},
		},
		{
			name:    "unknown kind",
			req:     transactionRequest{Kind: "transfer", Description: "x", Amount: "1", Date: "2025-06-01", CategoryID: "c"},
			wantErr: core.ErrInvalidKind,
		},
		{
			name:    "negative amount",
			req:     transactionRequest{Kind: "expense", Description: "x", Amount: "-1", Date: "2025-06-01", CategoryID: "c"},
			wantErr: core.ErrInvalidAmount,
		},
		{
			name:    "bad date",
			req:     transactionRequest{Kind: "expense", Description: "x", Amount: "1", Date: "01/06/2025", CategoryID: "c"},
			wantErr: core.ErrInvalidDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := tt.req.toTransaction("alice")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, tx)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"id":"b1","period":"2025-06","limit":"100"}`},
		{name: "numeric limit", body: `{"id":"b1","period":"2025-06","limit":100}`},
		{name: "unknown field", body: `{"id":"b1","colour":"red"}`, wantErr: true},
		{name: "trailing document", body: `{"id":"b1"}{"id":"b2"}`, wantErr: true},
		{name: "not json", body: `id=b1`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			var req budgetRequest
			err := decodeJSON(w, r, &req)
			if tt.wantErr {
				if !errors.Is(err, ErrBadRequestBody) {
					t.Fatalf("err = %v, want ErrBadRequestBody", err)
				}
				if core.ErrorKind(err) != "validation_failed" {
					t.Fatalf("kind = %q, want validation_failed", core.ErrorKind(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if req.ID != "b1" {
				t.Fatalf("id = %q, want b1", req.ID)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  kopi  ", "kopi"},
		{"a\x00b", "ab"},
		{"line\nbreak", "line\nbreak"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
