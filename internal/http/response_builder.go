package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"budget/internal/ledger"
	applog "budget/internal/log"
)

// errorResponse is the body of every non-2xx JSON response.
type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeValidationError reports a 400 with one entry per failing field when
// err comes from the validator.
func writeValidationError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = validationErrorToText(fe)
	}
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: fields})
}

func validationErrorToText(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "datetime":
		return "must be a date formatted as YYYY-MM-DD"
	case "amount":
		return "must be a positive amount"
	case "threshold":
		return "must be between 0 and 100"
	case "currency":
		return "must be an ISO 4217 currency code"
	case "category":
		return "must be one of groceries, utilities, rent, salary, other"
	case "txtype":
		return "must be income or expense"
	default:
		return "is invalid"
	}
}

// writeStoreError maps ledger failures to status codes and logs them.
func writeStoreError(w http.ResponseWriter, r *http.Request, op string, err error) {
	logger := applog.FromContext(r.Context())
	applog.NewStructuredLogger(logger).LogError(r.Context(), "Ledger operation failed", err, applog.ComponentLedger, op, nil)

	if errors.Is(err, ledger.ErrNotOpen) {
		writeError(w, http.StatusServiceUnavailable, "ledger unavailable")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}
