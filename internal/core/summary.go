package core

import "github.com/shopspring/decimal"

// BudgetStatus is a budget together with the values derived from its spend.
type BudgetStatus struct {
	Budget
	// Ratio is Spent as a percentage of Limit, rounded to two decimals.
	Ratio decimal.Decimal `json:"ratio"`
	// Progress is Ratio capped at 100, suitable for a progress bar.
	Progress      decimal.Decimal `json:"progress"`
	Remaining     decimal.Decimal `json:"remaining"`
	OverThreshold bool            `json:"overThreshold"`
}

// CategoryShare is one slice of the spending distribution.
type CategoryShare struct {
	Category Category        `json:"category"`
	Spent    decimal.Decimal `json:"spent"`
	Share    decimal.Decimal `json:"share"`
}

// Summary is the aggregate view over a ledger. It is rebuilt from scratch
// on every observation and never patched.
type Summary struct {
	TotalIncome   decimal.Decimal `json:"totalIncome"`
	TotalExpenses decimal.Decimal `json:"totalExpenses"`
	Balance       decimal.Decimal `json:"balance"`
	Budgets       []BudgetStatus  `json:"budgets"`
	Transactions  []Transaction   `json:"transactions"`
	Distribution  []CategoryShare `json:"distribution"`
	Currency      string          `json:"currency"`
}

// Budget returns the status for category c, if a budget exists for it.
func (s Summary) Budget(c Category) (BudgetStatus, bool) {
	for _, b := range s.Budgets {
		if b.Category == c {
			return b, true
		}
	}
	return BudgetStatus{}, false
}

// Alerts returns the budgets whose spend reached their alert threshold.
func (s Summary) Alerts() []BudgetStatus {
	var out []BudgetStatus
	for _, b := range s.Budgets {
		if b.OverThreshold {
			out = append(out, b)
		}
	}
	return out
}
