package http

import (
	"errors"
	"net/http"
	"strings"

	"budget/internal/core"
	"budget/internal/export"
	"budget/internal/ledger"
	applog "budget/internal/log"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready once the ledger answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.Budgets(r.Context()); err != nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ledger.Filter{Search: sanitizeInput(q.Get("q"))}
	if v := strings.TrimSpace(q.Get("type")); v != "" {
		t, err := core.ParseTransactionType(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Type = t
	}

	txs, err := s.store.Query(r.Context(), f)
	if err != nil {
		writeStoreError(w, r, applog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.normalize()
	if err := validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}
	in, err := req.toInput(s.store.Currency())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tx, err := s.store.AddTransaction(r.Context(), in)
	if err != nil {
		writeStoreError(w, r, applog.OpCreate, err)
		return
	}

	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogTransaction(r.Context(), applog.OpCreate, tx.ID, string(tx.Type), string(tx.Category), tx.Amount.String())
	w.Header().Set("Location", "/api/transactions/"+tx.ID)
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, ok, err := s.store.Transaction(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, r, applog.OpRead, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req transactionPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.normalize()
	if err := validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if patch.IsEmpty() {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	found, err := s.store.UpdateTransaction(r.Context(), id, patch)
	if err != nil {
		writeStoreError(w, r, applog.OpUpdate, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}

	tx, _, err := s.store.Transaction(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, applog.OpRead, err)
		return
	}
	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogTransaction(r.Context(), applog.OpUpdate, tx.ID, string(tx.Type), string(tx.Category), tx.Amount.String())
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	found, err := s.store.DeleteTransaction(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, applog.OpDelete, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Transaction deleted", applog.FieldTxID, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.store.Budgets(r.Context())
	if err != nil {
		writeStoreError(w, r, applog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, budgets)
}

func (s *Server) handleUpsertBudget(w http.ResponseWriter, r *http.Request) {
	category, err := core.ParseCategory(r.PathValue("category"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.normalize()
	if err := validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.store.UpdateBudget(r.Context(), category, patch)
	if err != nil {
		writeStoreError(w, r, applog.OpUpdate, err)
		return
	}

	budgets, err := s.store.Budgets(r.Context())
	if err != nil {
		writeStoreError(w, r, applog.OpRead, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	for _, b := range budgets {
		if b.Category == category {
			writeJSON(w, status, b)
			return
		}
	}
	writeStoreError(w, r, applog.OpRead, errors.New("budget missing after upsert"))
}

// summaryResponse adds display strings to the summary.
type summaryResponse struct {
	core.Summary
	Formatted formattedTotals `json:"formatted"`
}

type formattedTotals struct {
	TotalIncome   string `json:"totalIncome"`
	TotalExpenses string `json:"totalExpenses"`
	Balance       string `json:"balance"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.store.Summary(r.Context())
	if err != nil {
		writeStoreError(w, r, applog.OpSummary, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		Summary: sum,
		Formatted: formattedTotals{
			TotalIncome:   core.FormatAmount(sum.TotalIncome, sum.Currency),
			TotalExpenses: core.FormatAmount(sum.TotalExpenses, sum.Currency),
			Balance:       core.FormatAmount(sum.Balance, sum.Currency),
		},
	})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	txs, err := s.store.Transactions(r.Context())
	if err != nil {
		writeStoreError(w, r, applog.OpExport, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(s.now())+`"`)
	if err := export.WriteCSV(w, txs); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "CSV export failed", applog.FieldError, err)
	}
}
