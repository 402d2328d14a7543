package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	Groceries Category = "groceries"
	Utilities Category = "utilities"
	Rent      Category = "rent"
	Salary    Category = "salary"
	Other     Category = "other"
)

// DateLayout is the ISO 8601 calendar date layout used for persistence and exports.
const DateLayout = "2006-01-02"

type (
	TransactionType string

	Category string

	// Date is a calendar date without time zone semantics.
	Date struct {
		time.Time
	}

	Transaction struct {
		ID          string          `json:"id"`
		Type        TransactionType `json:"type"`
		Category    Category        `json:"category"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
		Date        Date            `json:"date"`
		Currency    string          `json:"currency"`
	}

	// TransactionInput is a transaction that has not been assigned an id yet.
	TransactionInput struct {
		Type        TransactionType `json:"type"`
		Category    Category        `json:"category"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
		Date        Date            `json:"date"`
		Currency    string          `json:"currency"`
	}

	// TransactionPatch holds the fields of a partial update. Nil fields keep
	// their previous value.
	TransactionPatch struct {
		Type        *TransactionType `json:"type,omitempty"`
		Category    *Category        `json:"category,omitempty"`
		Amount      *decimal.Decimal `json:"amount,omitempty"`
		Description *string          `json:"description,omitempty"`
		Date        *Date            `json:"date,omitempty"`
		Currency    *string          `json:"currency,omitempty"`
	}

	// Budget is a spending ceiling for one category. Spent is derived from
	// the transactions and never set by callers.
	Budget struct {
		Category       Category        `json:"category"`
		Limit          decimal.Decimal `json:"limit"`
		Spent          decimal.Decimal `json:"spent"`
		Currency       string          `json:"currency"`
		AlertThreshold decimal.Decimal `json:"alertThreshold"`
	}

	BudgetPatch struct {
		Limit          *decimal.Decimal `json:"limit,omitempty"`
		Currency       *string          `json:"currency,omitempty"`
		AlertThreshold *decimal.Decimal `json:"alertThreshold,omitempty"`
	}
)

var (
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidCurrency  = errors.New("invalid currency")
	ErrShortDescription = errors.New("description must be at least 3 characters")
	ErrLongDescription  = errors.New("description must be at most 200 characters")
	ErrInvalidLimit     = errors.New("budget limit must be positive")
	ErrInvalidThreshold = errors.New("alert threshold must be between 0 and 100")
)

const (
	minDescriptionRunes = 3
	maxDescriptionRunes = 200
)

var hundred = decimal.NewFromInt(100)

// Categories returns every known category in display order.
func Categories() []Category {
	return []Category{Groceries, Utilities, Rent, Salary, Other}
}

func (t TransactionType) IsValid() bool {
	return t == Income || t == Expense
}

func (c Category) IsValid() bool {
	switch c {
	case Groceries, Utilities, Rent, Salary, Other:
		return true
	default:
		return false
	}
}

// ParseCategory normalizes s and checks it against the known categories.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
	return c, nil
}

// ParseTransactionType normalizes s and checks it against income/expense.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	return t, nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts a YYYY-MM-DD date. Full RFC 3339 timestamps are
// truncated to their literal date part.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) && s[len(DateLayout)] == 'T' {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, b)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// WithID turns the input into a stored transaction.
func (in TransactionInput) WithID(id string) Transaction {
	return Transaction{
		ID:          id,
		Type:        in.Type,
		Category:    in.Category,
		Amount:      in.Amount,
		Description: in.Description,
		Date:        in.Date,
		Currency:    in.Currency,
	}
}

// Validate applies the entry form rules. The ledger itself
// accepts any well-typed transaction; consumers call this before adding.
func (in TransactionInput) Validate() error {
	if !in.Type.IsValid() {
		return ErrInvalidType
	}
	if !in.Category.IsValid() {
		return ErrInvalidCategory
	}
	if !in.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := ValidateDescription(in.Description); err != nil {
		return err
	}
	if in.Date.IsZero() {
		return ErrInvalidDate
	}
	if !IsCurrency(in.Currency) {
		return ErrInvalidCurrency
	}
	return nil
}

// ValidateDescription checks the length of d in characters. Surrounding
// whitespace does not count towards the minimum.
func ValidateDescription(d string) error {
	if utf8.RuneCountInString(strings.TrimSpace(d)) < minDescriptionRunes {
		return ErrShortDescription
	}
	if utf8.RuneCountInString(d) > maxDescriptionRunes {
		return ErrLongDescription
	}
	return nil
}

// Apply merges the non-nil patch fields into t. The id never changes.
func (t Transaction) Apply(p TransactionPatch) Transaction {
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Currency != nil {
		t.Currency = *p.Currency
	}
	return t
}

// IsEmpty reports whether the patch would leave a transaction unchanged.
func (p TransactionPatch) IsEmpty() bool {
	return p.Type == nil && p.Category == nil && p.Amount == nil &&
		p.Description == nil && p.Date == nil && p.Currency == nil
}

// Apply merges the non-nil patch fields into b. Spent is left untouched.
func (b Budget) Apply(p BudgetPatch) Budget {
	if p.Limit != nil {
		b.Limit = *p.Limit
	}
	if p.Currency != nil {
		b.Currency = *p.Currency
	}
	if p.AlertThreshold != nil {
		b.AlertThreshold = *p.AlertThreshold
	}
	return b
}

func (p BudgetPatch) Validate() error {
	if p.Limit != nil && !p.Limit.IsPositive() {
		return ErrInvalidLimit
	}
	if p.AlertThreshold != nil && (p.AlertThreshold.IsNegative() || p.AlertThreshold.GreaterThan(hundred)) {
		return ErrInvalidThreshold
	}
	if p.Currency != nil && !IsCurrency(*p.Currency) {
		return ErrInvalidCurrency
	}
	return nil
}

// IsCurrency reports whether code is an ISO 4217 code known to go-money.
func IsCurrency(code string) bool {
	return code != "" && money.GetCurrency(code) != nil
}
