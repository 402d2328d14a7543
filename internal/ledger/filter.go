package ledger

import (
	"sort"
	"strings"

	"budget/internal/core"
)

// Filter narrows the transaction list. The zero value matches everything.
type Filter struct {
	// Search is matched case-insensitively against description and category.
	Search string
	// Type restricts results to one transaction type when set.
	Type core.TransactionType
}

func (f Filter) match(t core.Transaction) bool {
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Search))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Description), q) ||
		strings.Contains(strings.ToLower(string(t.Category)), q)
}

// Apply returns the matching transactions, newest date first. Transactions
// sharing a date keep their insertion order.
func (f Filter) Apply(txs []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if f.match(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date.Time)
	})
	return out
}
