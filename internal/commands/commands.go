// Package commands implements the subcommands of the budget CLI.
package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"

	"budget/internal/core"
	"budget/internal/ledger"
)

// Ledger is the part of the ledger store the commands use.
type Ledger interface {
	AddTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, patch core.TransactionPatch) (bool, error)
	DeleteTransaction(ctx context.Context, id string) (bool, error)
	UpdateBudget(ctx context.Context, category core.Category, patch core.BudgetPatch) (bool, error)
	Transactions(ctx context.Context) ([]core.Transaction, error)
	Budgets(ctx context.Context) ([]core.Budget, error)
	Query(ctx context.Context, f ledger.Filter) ([]core.Transaction, error)
	Summary(ctx context.Context) (core.Summary, error)
	Currency() string
}

// Env holds what every command shares. Open is called once per command
// execution and its cleanup runs when the command returns.
type Env struct {
	Open func(ctx context.Context) (Ledger, func() error, error)
	Out  io.Writer
	Err  io.Writer
	Now  func() time.Time
}

func (e *Env) out() io.Writer {
	if e.Out == nil {
		return os.Stdout
	}
	return e.Out
}

func (e *Env) errOut() io.Writer {
	if e.Err == nil {
		return os.Stderr
	}
	return e.Err
}

func (e *Env) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *Env) errorf(format string, args ...any) {
	fmt.Fprintf(e.errOut(), "Error: "+format+"\n", args...)
}

// withLedger opens the ledger, runs fn and closes the ledger again.
func (e *Env) withLedger(ctx context.Context, fn func(Ledger) subcommands.ExitStatus) subcommands.ExitStatus {
	l, cleanup, err := e.Open(ctx)
	if err != nil {
		e.errorf("opening ledger: %v", err)
		return subcommands.ExitFailure
	}
	status := fn(l)
	if cleanup != nil {
		if err := cleanup(); err != nil {
			e.errorf("closing ledger: %v", err)
			if status == subcommands.ExitSuccess {
				status = subcommands.ExitFailure
			}
		}
	}
	return status
}

// Register adds every budget command to c.
func Register(c *subcommands.Commander, env *Env) {
	c.Register(&addCmd{env: env}, "transactions")
	c.Register(&updateCmd{env: env}, "transactions")
	c.Register(&deleteCmd{env: env}, "transactions")
	c.Register(&listCmd{env: env}, "transactions")

	c.Register(&budgetCmd{env: env}, "budgets")

	c.Register(&summaryCmd{env: env}, "reports")
	c.Register(&exportCmd{env: env}, "reports")
}

// setFlags returns the names of the flags given on the command line.
func setFlags(f *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	f.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return set
}
