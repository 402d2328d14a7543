package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"budget/internal/core"
)

const maxBodyBytes = 1 << 20

// flexAmount accepts a JSON number or string and keeps its text form so the
// validator and core.ParseAmount see exactly what the client sent.
type flexAmount string

func (a *flexAmount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = flexAmount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount must be a number or string")
	}
	*a = flexAmount(n.String())
	return nil
}

type transactionRequest struct {
	Type        string     `json:"type" validate:"required,txtype"`
	Category    string     `json:"category" validate:"required,category"`
	Amount      flexAmount `json:"amount" validate:"required,amount"`
	Description string     `json:"description" validate:"required,min=3,max=200"`
	Date        string     `json:"date" validate:"required,datetime=2006-01-02"`
	Currency    string     `json:"currency" validate:"omitempty,currency"`
}

type transactionPatchRequest struct {
	Type        *string     `json:"type" validate:"omitempty,txtype"`
	Category    *string     `json:"category" validate:"omitempty,category"`
	Amount      *flexAmount `json:"amount" validate:"omitempty,amount"`
	Description *string     `json:"description" validate:"omitempty,min=3,max=200"`
	Date        *string     `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Currency    *string     `json:"currency" validate:"omitempty,currency"`
}

type budgetRequest struct {
	Limit          *flexAmount `json:"limit" validate:"omitempty,amount"`
	Currency       *string     `json:"currency" validate:"omitempty,currency"`
	AlertThreshold *flexAmount `json:"alertThreshold" validate:"omitempty,threshold"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("txtype", func(fl validator.FieldLevel) bool {
		return core.TransactionType(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return core.Category(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		return core.IsCurrency(fl.Field().String())
	})
	_ = v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		_, err := core.ParseAmount(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("threshold", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
		return err == nil && !d.IsNegative() && d.LessThanOrEqual(decimal.NewFromInt(100))
	})
	return v
}

// decodeJSON reads a single JSON object from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("invalid JSON body: trailing data")
	}
	return nil
}

func (req *transactionRequest) normalize() {
	lowerPtr(&req.Type)
	lowerPtr(&req.Category)
	upperPtr(&req.Currency)
	req.Description = sanitizeInput(req.Description)
	req.Date = strings.TrimSpace(req.Date)
}

// toInput converts a validated request. Currency defaults to currency.
func (req transactionRequest) toInput(currency string) (core.TransactionInput, error) {
	amount, err := core.ParseAmount(string(req.Amount))
	if err != nil {
		return core.TransactionInput{}, err
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.TransactionInput{}, err
	}
	if req.Currency == "" {
		req.Currency = currency
	}
	in := core.TransactionInput{
		Type:        core.TransactionType(req.Type),
		Category:    core.Category(req.Category),
		Amount:      amount,
		Description: req.Description,
		Date:        date,
		Currency:    req.Currency,
	}
	return in, in.Validate()
}

func (req *transactionPatchRequest) normalize() {
	lowerPtr(req.Type)
	lowerPtr(req.Category)
	upperPtr(req.Currency)
	sanitizePtr(req.Description)
	if req.Date != nil {
		*req.Date = strings.TrimSpace(*req.Date)
	}
}

func (req transactionPatchRequest) toPatch() (core.TransactionPatch, error) {
	var p core.TransactionPatch
	if req.Type != nil {
		t := core.TransactionType(*req.Type)
		p.Type = &t
	}
	if req.Category != nil {
		c := core.Category(*req.Category)
		p.Category = &c
	}
	if req.Amount != nil {
		a, err := core.ParseAmount(string(*req.Amount))
		if err != nil {
			return p, err
		}
		p.Amount = &a
	}
	if req.Description != nil {
		d := *req.Description
		p.Description = &d
	}
	if req.Date != nil {
		d, err := core.ParseDate(*req.Date)
		if err != nil {
			return p, err
		}
		p.Date = &d
	}
	if req.Currency != nil {
		c := *req.Currency
		p.Currency = &c
	}
	return p, nil
}

func (req *budgetRequest) normalize() {
	upperPtr(req.Currency)
}

func (req budgetRequest) toPatch() (core.BudgetPatch, error) {
	var p core.BudgetPatch
	if req.Limit != nil {
		l, err := core.ParseAmount(string(*req.Limit))
		if err != nil {
			return p, err
		}
		p.Limit = &l
	}
	if req.Currency != nil {
		c := *req.Currency
		p.Currency = &c
	}
	if req.AlertThreshold != nil {
		t, err := decimal.NewFromString(strings.TrimSpace(string(*req.AlertThreshold)))
		if err != nil {
			return p, fmt.Errorf("%w: %v", core.ErrInvalidThreshold, err)
		}
		p.AlertThreshold = &t
	}
	return p, p.Validate()
}
