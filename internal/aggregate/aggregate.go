// Package aggregate derives summaries from a ledger snapshot.
//
// Every function here is pure: inputs are never modified and nothing is
// retained between calls, so the same inputs always produce equal outputs.
package aggregate

import (
	"github.com/shopspring/decimal"

	"budget/internal/core"
)

var hundred = decimal.NewFromInt(100)

// Summarize builds the full summary for transactions and budgets, reported
// in currency. Budget Spent values in the input are ignored and recomputed.
func Summarize(transactions []core.Transaction, budgets []core.Budget, currency string) core.Summary {
	income, expenses := Totals(transactions)

	statuses := make([]core.BudgetStatus, 0, len(budgets))
	for _, b := range WithSpent(budgets, transactions) {
		statuses = append(statuses, Status(b))
	}

	txs := make([]core.Transaction, len(transactions))
	copy(txs, transactions)

	return core.Summary{
		TotalIncome:   income,
		TotalExpenses: expenses,
		Balance:       income.Sub(expenses),
		Budgets:       statuses,
		Transactions:  txs,
		Distribution:  Distribution(statuses),
		Currency:      currency,
	}
}

// Totals sums income and expense amounts. A zero value amount counts as 0.
func Totals(transactions []core.Transaction) (income, expenses decimal.Decimal) {
	income, expenses = decimal.Zero, decimal.Zero
	for _, t := range transactions {
		switch t.Type {
		case core.Income:
			income = income.Add(t.Amount)
		case core.Expense:
			expenses = expenses.Add(t.Amount)
		}
	}
	return income, expenses
}

// SpentByCategory sums expense amounts per category.
func SpentByCategory(transactions []core.Transaction) map[core.Category]decimal.Decimal {
	spent := make(map[core.Category]decimal.Decimal)
	for _, t := range transactions {
		if t.Type != core.Expense {
			continue
		}
		spent[t.Category] = spent[t.Category].Add(t.Amount)
	}
	return spent
}

// WithSpent returns a copy of budgets with Spent recomputed from
// transactions. Categories without expenses get zero.
func WithSpent(budgets []core.Budget, transactions []core.Transaction) []core.Budget {
	spent := SpentByCategory(transactions)
	out := make([]core.Budget, len(budgets))
	for i, b := range budgets {
		b.Spent = decimal.Zero
		if s, ok := spent[b.Category]; ok {
			b.Spent = s
		}
		out[i] = b
	}
	return out
}

// Status derives ratio, progress, remaining and the alert flag for b.
// A budget without a positive limit has a zero ratio and never alerts.
func Status(b core.Budget) core.BudgetStatus {
	st := core.BudgetStatus{
		Budget:    b,
		Ratio:     decimal.Zero,
		Progress:  decimal.Zero,
		Remaining: b.Limit.Sub(b.Spent),
	}
	if !b.Limit.IsPositive() {
		return st
	}
	ratio := b.Spent.Mul(hundred).Div(b.Limit)
	st.Ratio = ratio.Round(2)
	st.Progress = decimal.Min(st.Ratio, hundred)
	st.OverThreshold = ratio.GreaterThanOrEqual(b.AlertThreshold)
	return st
}

// Distribution splits the total budgeted spend into per-category shares.
// Budgets without spend are left out, in budget order otherwise.
func Distribution(statuses []core.BudgetStatus) []core.CategoryShare {
	total := decimal.Zero
	for _, st := range statuses {
		if st.Spent.IsPositive() {
			total = total.Add(st.Spent)
		}
	}
	shares := []core.CategoryShare{}
	if !total.IsPositive() {
		return shares
	}
	for _, st := range statuses {
		if !st.Spent.IsPositive() {
			continue
		}
		shares = append(shares, core.CategoryShare{
			Category: st.Category,
			Spent:    st.Spent,
			Share:    st.Spent.Mul(hundred).Div(total).Round(2),
		})
	}
	return shares
}
