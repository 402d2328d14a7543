package commands

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/google/subcommands"

	"budget/internal/core"
	"budget/internal/export"
)

// --- Summary Command ---

type summaryCmd struct {
	env    *Env
	asJSON bool
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "print totals, budget status and spending distribution" }
func (*summaryCmd) Usage() string {
	return `summary [-json]
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.asJSON, "json", false, "Print JSON instead of text")
}

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.withLedger(ctx, func(l Ledger) subcommands.ExitStatus {
		sum, err := l.Summary(ctx)
		if err != nil {
			c.env.errorf("computing summary: %v", err)
			return subcommands.ExitFailure
		}
		if c.asJSON {
			enc := json.NewEncoder(c.env.out())
			enc.SetIndent("", "  ")
			err = enc.Encode(sum)
		} else {
			err = writeSummary(c.env.out(), sum)
		}
		if err != nil {
			c.env.errorf("%v", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	})
}

func writeSummary(out io.Writer, sum core.Summary) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Income:\t%s\n", core.FormatAmount(sum.TotalIncome, sum.Currency))
	fmt.Fprintf(w, "Expenses:\t%s\n", core.FormatAmount(sum.TotalExpenses, sum.Currency))
	fmt.Fprintf(w, "Balance:\t%s\n", core.FormatAmount(sum.Balance, sum.Currency))
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BUDGET\tSPENT\tLIMIT\tUSED\tREMAINING\t")
	for _, b := range sum.Budgets {
		alert := ""
		if b.OverThreshold {
			alert = "ALERT"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s%%\t%s\t%s\n", b.Category,
			core.FormatAmount(b.Spent, b.Currency), core.FormatAmount(b.Limit, b.Currency),
			b.Ratio, core.FormatAmount(b.Remaining, b.Currency), alert)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(sum.Distribution) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tSPENT\tSHARE")
	for _, d := range sum.Distribution {
		fmt.Fprintf(w, "%s\t%s\t%s%%\n", d.Category, core.FormatAmount(d.Spent, sum.Currency), d.Share)
	}
	return w.Flush()
}

// --- Export Command ---

type exportCmd struct {
	env *Env
	out string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export transactions as CSV" }
func (*exportCmd) Usage() string {
	return `export [-o <file or directory>]

  Writes every transaction as CSV to standard output, or to the given file.
  When the target is a directory the file is named transactions-<date>.csv.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.out, "o", "", "Output file or directory (default standard output)")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.withLedger(ctx, func(l Ledger) subcommands.ExitStatus {
		txs, err := l.Transactions(ctx)
		if err != nil {
			c.env.errorf("reading transactions: %v", err)
			return subcommands.ExitFailure
		}

		if c.out == "" {
			if err := export.WriteCSV(c.env.out(), txs); err != nil {
				c.env.errorf("writing CSV: %v", err)
				return subcommands.ExitFailure
			}
			fmt.Fprintln(c.env.out())
			return subcommands.ExitSuccess
		}

		path := c.out
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			path = filepath.Join(path, export.FileName(c.env.now()))
		}
		if err := writeCSVFile(path, txs); err != nil {
			c.env.errorf("%v", err)
			return subcommands.ExitFailure
		}
		fmt.Fprintf(c.env.out(), "Exported %d transactions to %s\n", len(txs), path)
		return subcommands.ExitSuccess
	})
}

func writeCSVFile(path string, txs []core.Transaction) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()
	if err := export.WriteCSV(f, txs); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
