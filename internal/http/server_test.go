package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uangku/internal/core"
	"uangku/internal/repository"
	"uangku/internal/repository/memory"
	"uangku/internal/services"
)

// brokenStore fails every call with an opaque error.
type brokenStore struct{}

func (brokenStore) Save(context.Context, core.Transaction) error { return errors.New("disk gone") }
func (brokenStore) ListByUser(context.Context, string) ([]core.Transaction, error) {
	return nil, nil
}
func (brokenStore) Update(context.Context, string, core.Transaction) error { return errors.New("disk gone") }
func (brokenStore) Delete(context.Context, string) error                   { return errors.New("disk gone") }

func newTestServer(t *testing.T, store repository.Store, opts ...services.Option) *Server {
	t.Helper()
	ledger := services.NewLedger(repository.NewLayered(store, nil), opts...)
	srv := NewServer(":0", ledger, nil, Options{RateLimitPerMinute: -1})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, memory.New())
	rr := do(t, srv, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestTransactionLifecycle(t *testing.T) {
	srv := newTestServer(t, memory.New())

	rr := do(t, srv, http.MethodPost, "/api/users/alice/transactions",
		`{"kind":"income","description":"salary","amount":"5000000","date":"2025-06-01","category_id":"salary","source":"employer"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	income := decode[core.Transaction](t, rr)
	assert.NotEmpty(t, income.ID)
	assert.Equal(t, "alice", income.UserID)

	rr = do(t, srv, http.MethodPost, "/api/users/alice/transactions",
		`{"id":"e1","kind":"expense","description":"groceries","amount":350000,"date":"2025-06-02","category_id":"food","payment_method":"card"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, srv, http.MethodGet, "/api/users/alice/balance", "")
	require.Equal(t, http.StatusOK, rr.Code)
	bal := decode[map[string]string](t, rr)
	assert.Equal(t, "4650000", bal["balance"])

	rr = do(t, srv, http.MethodPut, "/api/users/alice/transactions/e1",
		`{"kind":"expense","description":"groceries","amount":"400000","date":"2025-06-02","category_id":"food"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, srv, http.MethodGet, "/api/users/alice/transactions?category=food", "")
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[struct {
		Transactions []core.Transaction `json:"transactions"`
		Count        int                `json:"count"`
	}](t, rr)
	require.Equal(t, 1, list.Count)
	assert.True(t, list.Transactions[0].Amount.Equal(core.MustAmount("400000")))

	rr = do(t, srv, http.MethodPost, "/api/users/alice/undo", "")
	require.Equal(t, http.StatusOK, rr.Code)
	hist := decode[historyResponse](t, rr)
	assert.Equal(t, 3, hist.Size)
	assert.True(t, hist.CanRedo)

	rr = do(t, srv, http.MethodDelete, "/api/users/alice/transactions/e1", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/users/alice/history", "")
	hist = decode[historyResponse](t, rr)
	assert.Equal(t, 3, hist.Size, "the delete replaced the undone update")
	assert.False(t, hist.CanRedo)

	rr = do(t, srv, http.MethodDelete, "/api/users/alice/history", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/users/alice/summary?from=2025-06-01&to=2025-06-30", "")
	require.Equal(t, http.StatusOK, rr.Code)
	sum := decode[core.Summary](t, rr)
	assert.Equal(t, 1, sum.Count)
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t, memory.New())

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		kind   string
	}{
		{"invalid amount", http.MethodPost, "/api/users/alice/transactions",
			`{"kind":"expense","description":"x","amount":"-1","date":"2025-06-01","category_id":"food"}`, http.StatusBadRequest, "validation_failed"},
		{"invalid kind", http.MethodPost, "/api/users/alice/transactions",
			`{"kind":"transfer","description":"x","amount":"1","date":"2025-06-01","category_id":"food"}`, http.StatusBadRequest, "validation_failed"},
		{"malformed body", http.MethodPost, "/api/users/alice/transactions", `{"kind":`, http.StatusBadRequest, "validation_failed"},
		{"unknown field", http.MethodPost, "/api/users/alice/transactions", `{"colour":"red"}`, http.StatusBadRequest, "validation_failed"},
		{"id mismatch", http.MethodPut, "/api/users/alice/transactions/a",
			`{"id":"b","kind":"expense","description":"x","amount":"1","date":"2025-06-01","category_id":"food"}`, http.StatusBadRequest, "validation_failed"},
		{"update unknown", http.MethodPut, "/api/users/alice/transactions/missing",
			`{"kind":"expense","description":"x","amount":"1","date":"2025-06-01","category_id":"food"}`, http.StatusNotFound, "not_found"},
		{"delete unknown", http.MethodDelete, "/api/users/alice/transactions/missing", "", http.StatusNotFound, "not_found"},
		{"undo empty history", http.MethodPost, "/api/users/alice/undo", "", http.StatusConflict, "no_history"},
		{"redo empty history", http.MethodPost, "/api/users/alice/redo", "", http.StatusConflict, "no_history"},
		{"bad summary date", http.MethodGet, "/api/users/alice/summary?from=june", "", http.StatusBadRequest, "validation_failed"},
		{"bad list date", http.MethodGet, "/api/users/alice/transactions?to=2025-13-01", "", http.StatusBadRequest, "validation_failed"},
		{"empty batch", http.MethodPost, "/api/users/alice/transactions/batch", `{"transactions":[]}`, http.StatusBadRequest, "validation_failed"},
		{"unknown route", http.MethodGet, "/api/nothing", "", http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, rr.Code, rr.Body.String())
			body := decode[errorBody](t, rr)
			assert.Equal(t, tt.kind, body.Error)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestStorageFailureIs500(t *testing.T) {
	srv := newTestServer(t, brokenStore{})
	rr := do(t, srv, http.MethodPost, "/api/users/alice/transactions",
		`{"kind":"expense","description":"x","amount":"1","date":"2025-06-01","category_id":"food"}`)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "storage_failure", decode[errorBody](t, rr).Error)
}

func TestBatchUpdate(t *testing.T) {
	store := memory.New(
		core.NewExpense("a", "a", core.MustAmount("10"), core.MustDate("2025-06-01"), "food", "alice", ""),
		core.NewExpense("b", "b", core.MustAmount("20"), core.MustDate("2025-06-01"), "food", "alice", ""),
	)
	srv := newTestServer(t, store)

	rr := do(t, srv, http.MethodPost, "/api/users/alice/transactions/batch", `{"transactions":[
		{"id":"a","kind":"expense","description":"a","amount":"15","date":"2025-06-01","category_id":"food"},
		{"id":"b","kind":"expense","description":"b","amount":"25","date":"2025-06-01","category_id":"food"}]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, srv, http.MethodGet, "/api/users/alice/history", "")
	hist := decode[historyResponse](t, rr)
	assert.Equal(t, 1, hist.Size)
	assert.Equal(t, []string{"batch of 2"}, hist.Entries)

	rr = do(t, srv, http.MethodPost, "/api/users/alice/transactions/batch", `{"transactions":[
		{"kind":"expense","description":"a","amount":"15","date":"2025-06-01","category_id":"food"}]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBudgets(t *testing.T) {
	srv := newTestServer(t, memory.New(), services.WithBudgets(core.Budget{ID: "monthly", Period: "2025-06", Limit: core.MustAmount("2000000")}))

	rr := do(t, srv, http.MethodPost, "/api/users/alice/transactions",
		`{"kind":"expense","description":"rent","amount":"1700000","date":"2025-06-01","category_id":"home"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/users/alice/budgets", "")
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[struct {
		Budgets []core.BudgetStatus `json:"budgets"`
	}](t, rr)
	require.Len(t, got.Budgets, 1)
	assert.Equal(t, core.TierNearLimit, got.Budgets[0].Tier)

	rr = do(t, srv, http.MethodPost, "/api/users/alice/budgets", `{"id":"home","period":"2025","limit":"1000000","category_id":"home"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, core.TierOverLimit, decode[core.BudgetStatus](t, rr).Tier)

	rr = do(t, srv, http.MethodPost, "/api/users/alice/budgets", `{"id":"home","period":"2025","limit":"5"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRateLimit(t *testing.T) {
	ledger := services.NewLedger(repository.NewLayered(memory.New(), nil))
	srv := NewServer(":0", ledger, nil, Options{RateLimitPerMinute: 1})
	defer srv.Shutdown(context.Background())

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/healthz", "").Code)
	rr := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "rate_limited", decode[errorBody](t, rr).Error)
}
