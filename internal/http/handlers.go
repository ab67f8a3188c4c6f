package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"uangku/internal/core"
	"uangku/internal/repository"
	"uangku/internal/services"
)

type historyResponse struct {
	Size    int      `json:"size"`
	CanUndo bool     `json:"can_undo"`
	CanRedo bool     `json:"can_redo"`
	Entries []string `json:"entries"`
}

type balanceResponse struct {
	UserID  string          `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.ledger.Sessions(),
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}

// session resolves the {user} path parameter and writes the error itself.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*services.Session, bool) {
	sess, err := s.ledger.Session(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		writeError(r.Context(), w, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := repository.Filter{CategoryID: q.Get("category"), From: q.Get("from"), To: q.Get("to")}
	for _, d := range []string{f.From, f.To} {
		if d == "" {
			continue
		}
		if _, err := core.ParseDate(d); err != nil {
			writeError(r.Context(), w, err)
			return
		}
	}

	txs, err := sess.Transactions(r.Context(), f)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs, "count": len(txs)})
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	tx, err := req.toTransaction(sess.UserID())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if err := sess.Add(r.Context(), tx); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if req.ID == "" {
		req.ID = id
	} else if req.ID != id {
		writeError(r.Context(), w, core.ErrIDMismatch)
		return
	}
	tx, err := req.toTransaction(sess.UserID())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if err := sess.Update(r.Context(), tx); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	removed, err := sess.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, removed)
}

func (s *Server) handleBatchUpdate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	txs := make([]core.Transaction, 0, len(req.Transactions))
	for _, item := range req.Transactions {
		if item.ID == "" {
			writeError(r.Context(), w, core.ErrEmptyID)
			return
		}
		tx, err := item.toTransaction(sess.UserID())
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		txs = append(txs, tx)
	}
	if err := sess.BatchUpdate(r.Context(), txs); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": len(txs), "transactions": txs})
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.historyStep(w, r, (*services.Session).Undo)
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	s.historyStep(w, r, (*services.Session).Redo)
}

func (s *Server) historyStep(w http.ResponseWriter, r *http.Request, step func(*services.Session, context.Context) error) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := step(sess, r.Context()); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, historyOf(sess))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, historyOf(sess))
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.ClearHistory()
	w.WriteHeader(http.StatusNoContent)
}

func historyOf(sess *services.Session) historyResponse {
	return historyResponse{
		Size:    sess.HistorySize(),
		CanUndo: sess.CanUndo(),
		CanRedo: sess.CanRedo(),
		Entries: sess.HistoryEntries(),
	}
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	income, expense := sess.Totals()
	writeJSON(w, http.StatusOK, balanceResponse{
		UserID:  sess.UserID(),
		Balance: income.Sub(expense),
		Income:  income,
		Expense: expense,
	})
}

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"budgets": sess.Budgets()})
}

func (s *Server) handleWatchBudget(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	b, err := req.toBudget(sess.UserID())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	st, err := sess.WatchBudget(b)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sum, err := sess.Summary(r.Context(), r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
