package commands

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"budget/internal/core"
)

type budgetCmd struct {
	env       *Env
	limit     string
	threshold string
	currency  string
}

func (*budgetCmd) Name() string     { return "budget" }
func (*budgetCmd) Synopsis() string { return "show budgets or set a category budget" }
func (*budgetCmd) Usage() string {
	return `budget
budget [-limit <amount>] [-threshold <percent>] [-currency <code>] <category>

  Without arguments, prints every budget with its current spend. With a
  category, updates that budget, creating it when it does not exist.
`
}

func (c *budgetCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.limit, "limit", "", "Spending limit")
	f.StringVar(&c.threshold, "threshold", "", "Alert threshold as a percentage of the limit (0-100)")
	f.StringVar(&c.currency, "currency", "", "ISO 4217 currency code")
}

func (c *budgetCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	switch f.NArg() {
	case 0:
		return c.env.withLedger(ctx, func(l Ledger) subcommands.ExitStatus { return c.show(ctx, l) })
	case 1:
	default:
		f.Usage()
		return subcommands.ExitUsageError
	}

	category, err := core.ParseCategory(f.Arg(0))
	if err != nil {
		c.env.errorf("%v", err)
		return subcommands.ExitUsageError
	}
	patch, err := c.patch(setFlags(f))
	if err != nil {
		c.env.errorf("%v", err)
		return subcommands.ExitUsageError
	}

	return c.env.withLedger(ctx, func(l Ledger) subcommands.ExitStatus {
		created, err := l.UpdateBudget(ctx, category, patch)
		if err != nil {
			c.env.errorf("updating budget: %v", err)
			return subcommands.ExitFailure
		}
		verb := "Updated"
		if created {
			verb = "Created"
		}
		fmt.Fprintf(c.env.out(), "%s budget %s\n", verb, category)
		return subcommands.ExitSuccess
	})
}

func (c *budgetCmd) patch(set map[string]bool) (core.BudgetPatch, error) {
	var p core.BudgetPatch
	if set["limit"] {
		l, err := core.ParseAmount(c.limit)
		if err != nil {
			return p, fmt.Errorf("%w: %q", core.ErrInvalidLimit, c.limit)
		}
		p.Limit = &l
	}
	if set["threshold"] {
		t, err := decimal.NewFromString(strings.TrimSpace(c.threshold))
		if err != nil {
			return p, fmt.Errorf("%w: %q", core.ErrInvalidThreshold, c.threshold)
		}
		p.AlertThreshold = &t
	}
	if set["currency"] {
		cur := strings.ToUpper(strings.TrimSpace(c.currency))
		p.Currency = &cur
	}
	if p == (core.BudgetPatch{}) {
		return p, fmt.Errorf("nothing to update")
	}
	return p, p.Validate()
}

func (c *budgetCmd) show(ctx context.Context, l Ledger) subcommands.ExitStatus {
	budgets, err := l.Budgets(ctx)
	if err != nil {
		c.env.errorf("reading budgets: %v", err)
		return subcommands.ExitFailure
	}
	w := tabwriter.NewWriter(c.env.out(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tSPENT\tLIMIT\tALERT AT")
	for _, b := range budgets {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s%%\n", b.Category,
			core.FormatAmount(b.Spent, b.Currency), core.FormatAmount(b.Limit, b.Currency), b.AlertThreshold)
	}
	if err := w.Flush(); err != nil {
		c.env.errorf("%v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
