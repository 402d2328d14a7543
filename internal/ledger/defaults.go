package ledger

import (
	"github.com/shopspring/decimal"

	"budget/internal/core"
)

// DefaultBudgets returns the budgets a fresh ledger starts with. Salary has
// no budget.
func DefaultBudgets(currency string) []core.Budget {
	mk := func(c core.Category, limit, threshold int64) core.Budget {
		return core.Budget{
			Category:       c,
			Limit:          decimal.NewFromInt(limit),
			Spent:          decimal.Zero,
			Currency:       currency,
			AlertThreshold: decimal.NewFromInt(threshold),
		}
	}
	return []core.Budget{
		mk(core.Groceries, 500, 80),
		mk(core.Utilities, 300, 80),
		mk(core.Rent, 1500, 90),
		mk(core.Other, 400, 80),
	}
}
