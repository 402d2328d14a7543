package commands

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"

	"budget/internal/core"
	"budget/internal/ledger"
)

// txFlags are the transaction fields shared by add and update.
type txFlags struct {
	txType      string
	category    string
	amount      string
	description string
	date        string
	currency    string
}

// --- Add Command ---

type addCmd struct {
	env *Env
	txFlags
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "record an income or expense" }
func (*addCmd) Usage() string {
	return `add [-t income|expense] -c <category> -a <amount> -m <description> [-d <date>] [-currency <code>]

  Records a transaction. The date defaults to today and the currency to the
  reporting currency.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.txType, "t", string(core.Expense), "Transaction type (income or expense)")
	f.StringVar(&c.category, "c", "", "Category: groceries, utilities, rent, salary or other")
	f.StringVar(&c.amount, "a", "", "Amount, e.g. 12.50")
	f.StringVar(&c.description, "m", "", "Description (at least 3 characters)")
	f.StringVar(&c.date, "d", "", "Transaction date (YYYY-MM-DD), defaults to today")
	f.StringVar(&c.currency, "currency", "", "ISO 4217 currency code")
}

func (c *addCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.category == "" || c.amount == "" || c.description == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	if c.date == "" {
		c.date = c.env.now().Format(core.DateLayout)
	}

	return c.env.withLedger(ctx, func(l Ledger) subcommands.ExitStatus {
		in, err := c.input(l.Currency())
		if err != nil {
			c.env.errorf("%v", err)
			return subcommands.ExitUsageError
		}
		tx, err := l.AddTransaction(ctx, in)
		if err != nil {
			c.env.errorf("adding transaction: %v", err)
			return subcommands.ExitFailure
		}
		fmt.Fprintf(c.env.out(), "Added %s %s %s (%s)\n",
			tx.Type, tx.Category, core.FormatAmount(tx.Amount, tx.Currency), tx.ID)
		return subcommands.ExitSuccess
	})
}

func (c *addCmd) input(defaultCurrency string) (core.TransactionInput, error) {
	var in core.TransactionInput
	var err error
	if in.Type, err = core.ParseTransactionType(c.txType); err != nil {
		return in, err
	}
	if in.Category, err = core.ParseCategory(c.category); err != nil {
		return in, err
	}
	if in.Amount, err = core.ParseAmount(c.amount); err != nil {
		return in, fmt.Errorf("%w: %q", err, c.amount)
	}
	if in.Date, err = core.ParseDate(c.date); err != nil {
		return in, err
	}
	in.Description = strings.TrimSpace(c.description)
	in.Currency = strings.ToUpper(strings.TrimSpace(c.currency))
	if in.Currency == "" {
		in.Currency = defaultCurrency
	}
	return in, in.Validate()
}

// --- Update Command ---

type updateCmd struct {
	env *Env
	txFlags
}

func (*updateCmd) Name() string     { return "update" }
func (*updateCmd) Synopsis() string { return "change fields of a transaction" }
func (*updateCmd) Usage() string {
	return `update [-t <type>] [-c <category>] [-a <amount>] [-m <description>] [-d <date>] [-currency <code>] <id>

  Changes only the fields given as flags. The id never changes.
`
}

func (c *updateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.txType, "t", "", "Transaction type (income or expense)")
	f.StringVar(&c.category, "c", "", "Category")
	f.StringVar(&c.amount, "a", "", "Amount")
	f.StringVar(&c.description, "m", "", "Description")
	f.StringVar(&c.date, "d", "", "Transaction date (YYYY-MM-DD)")
	f.StringVar(&c.currency, "currency", "", "ISO 4217 currency code")
}

func (c *updateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	id := f.Arg(0)

	patch, err := c.patch(setFlags(f))
	if err != nil {
		c.env.errorf("%v", err)
		return subcommands.ExitUsageError
	}
	if patch.IsEmpty() {
		c.env.errorf("nothing to update")
		return subcommands.ExitUsageError
	}

	return c.env.withLedger(ctx, func(l Ledger) subcommands.ExitStatus {
		found, err := l.UpdateTransaction(ctx, id, patch)
		if err != nil {
			c.env.errorf("updating transaction: %v", err)
			return subcommands.ExitFailure
		}
		if !found {
			c.env.errorf("transaction %s not found", id)
			return subcommands.ExitFailure
		}
		fmt.Fprintf(c.env.out(), "Updated %s\n", id)
		return subcommands.ExitSuccess
	})
}

func (c *updateCmd) patch(set map[string]bool) (core.TransactionPatch, error) {
	var p core.TransactionPatch
	if set["t"] {
		t, err := core.ParseTransactionType(c.txType)
		if err != nil {
			return p, err
		}
		p.Type = &t
	}
	if set["c"] {
		cat, err := core.ParseCategory(c.category)
		if err != nil {
			return p, err
		}
		p.Category = &cat
	}
	if set["a"] {
		a, err := core.ParseAmount(c.amount)
		if err != nil {
			return p, fmt.Errorf("%w: %q", err, c.amount)
		}
		p.Amount = &a
	}
	if set["m"] {
		d := strings.TrimSpace(c.description)
		if err := core.ValidateDescription(d); err != nil {
			return p, err
		}
		p.Description = &d
	}
	if set["d"] {
		d, err := core.ParseDate(c.date)
		if err != nil {
			return p, err
		}
		p.Date = &d
	}
	if set["currency"] {
		cur := strings.ToUpper(strings.TrimSpace(c.currency))
		if !core.IsCurrency(cur) {
			return p, fmt.Errorf("%w: %q", core.ErrInvalidCurrency, c.currency)
		}
		p.Currency = &cur
	}
	return p, nil
}

// --- Delete Command ---

type deleteCmd struct {
	env *Env
}

func (*deleteCmd) Name() string             { return "delete" }
func (*deleteCmd) Synopsis() string         { return "remove a transaction" }
func (*deleteCmd) Usage() string            { return "delete <id>\n" }
func (*deleteCmd) SetFlags(_ *flag.FlagSet) {}

func (c *deleteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	id := f.Arg(0)

	return c.env.withLedger(ctx, func(l Ledger) subcommands.ExitStatus {
		found, err := l.DeleteTransaction(ctx, id)
		if err != nil {
			c.env.errorf("deleting transaction: %v", err)
			return subcommands.ExitFailure
		}
		if !found {
			c.env.errorf("transaction %s not found", id)
			return subcommands.ExitFailure
		}
		fmt.Fprintf(c.env.out(), "Deleted %s\n", id)
		return subcommands.ExitSuccess
	})
}

// --- List Command ---

type listCmd struct {
	env    *Env
	search string
	txType string
	asJSON bool
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list transactions, newest first" }
func (*listCmd) Usage() string {
	return `list [-q <text>] [-t income|expense] [-json]
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.search, "q", "", "Only show transactions whose description or category contains this text")
	f.StringVar(&c.txType, "t", "", "Only show this transaction type")
	f.BoolVar(&c.asJSON, "json", false, "Print JSON instead of a table")
}

func (c *listCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	filter := ledger.Filter{Search: c.search}
	if c.txType != "" {
		t, err := core.ParseTransactionType(c.txType)
		if err != nil {
			c.env.errorf("%v", err)
			return subcommands.ExitUsageError
		}
		filter.Type = t
	}

	return c.env.withLedger(ctx, func(l Ledger) subcommands.ExitStatus {
		txs, err := l.Query(ctx, filter)
		if err != nil {
			c.env.errorf("listing transactions: %v", err)
			return subcommands.ExitFailure
		}
		if c.asJSON {
			enc := json.NewEncoder(c.env.out())
			enc.SetIndent("", "  ")
			if err := enc.Encode(txs); err != nil {
				c.env.errorf("%v", err)
				return subcommands.ExitFailure
			}
			return subcommands.ExitSuccess
		}

		w := tabwriter.NewWriter(c.env.out(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DATE\tTYPE\tCATEGORY\tAMOUNT\tDESCRIPTION\tID")
		for _, t := range txs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				t.Date, t.Type, t.Category, core.FormatAmount(t.Amount, t.Currency), t.Description, t.ID)
		}
		if err := w.Flush(); err != nil {
			c.env.errorf("%v", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	})
}
