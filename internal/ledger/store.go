// Package ledger owns the transactions and budgets of a single user and
// keeps them in a storage.KV.
//
// The store holds the authoritative in-memory copy. Every mutation is
// computed on a copy, written to storage and only then committed, so the
// in-memory state never runs ahead of what was last persisted. Budget spend
// is derived from the transactions on every read; every write of either
// document also rewrites the budgets with the spend of that moment.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"budget/internal/aggregate"
	"budget/internal/core"
	"budget/internal/storage"
)

// Storage keys of the persisted documents.
const (
	KeyTransactions = "transactions"
	KeyBudgets      = "budgets"
)

// ErrNotOpen is returned when a nil or closed Store is used.
var ErrNotOpen = errors.New("ledger: store is not open")

// Options configures a Store. The zero value is usable.
type Options struct {
	// Currency is the reporting currency of summaries and the currency of
	// default budgets. Defaults to core.DefaultCurrency.
	Currency string
	// Logger is used as given. The default is slog.Default tagged with
	// component=ledger.
	Logger *slog.Logger
	// NewID generates transaction ids. Defaults to random UUIDs.
	NewID func() string
}

type Store struct {
	mu       sync.Mutex
	kv       storage.KV
	currency string
	logger   *slog.Logger
	newID    func() string
	open     bool

	txs     []core.Transaction
	budgets []core.Budget
}

// Open loads the ledger from kv. Missing documents start as an empty
// transaction list and the default budgets; documents that are not valid
// JSON are discarded with a warning. Read failures of kv are returned.
func Open(ctx context.Context, kv storage.KV, opts Options) (*Store, error) {
	if kv == nil {
		return nil, errors.New("ledger: nil storage")
	}
	if opts.Currency == "" {
		opts.Currency = core.DefaultCurrency
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default().With("component", "ledger")
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	s := &Store{
		kv:       kv,
		currency: opts.Currency,
		logger:   opts.Logger,
		newID:    opts.NewID,
	}

	txs, err := load(ctx, s, KeyTransactions, func() []core.Transaction { return []core.Transaction{} })
	if err != nil {
		return nil, err
	}
	budgets, err := load(ctx, s, KeyBudgets, func() []core.Budget { return DefaultBudgets(s.currency) })
	if err != nil {
		return nil, err
	}

	s.txs = txs
	s.budgets = budgets
	s.open = true
	s.logger.InfoContext(ctx, "Ledger opened",
		"transactions", len(txs),
		"budgets", len(budgets),
		"currency", s.currency)
	return s, nil
}

func load[T any](ctx context.Context, s *Store, key string, fallback func() T) (T, error) {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return fallback(), nil
	}
	if err != nil {
		var zero T
		return zero, fmt.Errorf("load %s: %w", key, err)
	}

	// a stored null decodes without error; treat it like a missing key
	var v *T
	if err := json.Unmarshal(raw, &v); err != nil {
		s.logger.WarnContext(ctx, "Discarding corrupt stored value", "key", key, "error", err)
		return fallback(), nil
	}
	if v == nil {
		s.logger.WarnContext(ctx, "Discarding null stored value", "key", key)
		return fallback(), nil
	}
	return *v, nil
}

func (s *Store) lock() error {
	if s == nil {
		return ErrNotOpen
	}
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return ErrNotOpen
	}
	return nil
}

// Currency returns the reporting currency.
func (s *Store) Currency() string {
	if s == nil {
		return ""
	}
	return s.currency
}

func (s *Store) persist(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Put(ctx, key, b); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist ledger", "key", key, "error", err)
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}

func (s *Store) persistBudgets(ctx context.Context, budgets []core.Budget, txs []core.Transaction) error {
	return s.persist(ctx, KeyBudgets, aggregate.WithSpent(budgets, txs))
}

// writeTransactions persists next and the budgets document whose spent it
// changes. If the budgets write fails the previous transaction list is
// written back, so both documents still describe the committed state.
func (s *Store) writeTransactions(ctx context.Context, next []core.Transaction) error {
	if err := s.persist(ctx, KeyTransactions, next); err != nil {
		return err
	}
	if err := s.persistBudgets(ctx, s.budgets, next); err != nil {
		if rerr := s.persist(ctx, KeyTransactions, s.txs); rerr != nil {
			return errors.Join(err, fmt.Errorf("restore %s: %w", KeyTransactions, rerr))
		}
		return err
	}
	return nil
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.txs, func(t core.Transaction) bool { return t.ID == id })
}

// AddTransaction stores in under a fresh id and returns the stored record.
// Field values are not validated here; callers use core.TransactionInput.Validate.
func (s *Store) AddTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	if err := s.lock(); err != nil {
		return core.Transaction{}, err
	}
	defer s.mu.Unlock()

	t := in.WithID(s.newID())
	next := append(slices.Clone(s.txs), t)
	if err := s.writeTransactions(ctx, next); err != nil {
		return core.Transaction{}, err
	}
	s.txs = next

	s.logger.DebugContext(ctx, "Transaction added",
		"id", t.ID, "type", t.Type, "category", t.Category, "amount", t.Amount.String())
	return t, nil
}

// UpdateTransaction merges patch into the transaction with the given id.
// It reports false, without writing, when no such transaction exists.
func (s *Store) UpdateTransaction(ctx context.Context, id string, patch core.TransactionPatch) (bool, error) {
	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false, nil
	}
	next := slices.Clone(s.txs)
	next[i] = next[i].Apply(patch)
	if err := s.writeTransactions(ctx, next); err != nil {
		return true, err
	}
	s.txs = next

	s.logger.DebugContext(ctx, "Transaction updated", "id", id)
	return true, nil
}

// DeleteTransaction removes the transaction with the given id. A missing id
// reports false and is not an error.
func (s *Store) DeleteTransaction(ctx context.Context, id string) (bool, error) {
	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false, nil
	}
	next := slices.Delete(slices.Clone(s.txs), i, i+1)
	if err := s.writeTransactions(ctx, next); err != nil {
		return true, err
	}
	s.txs = next

	s.logger.DebugContext(ctx, "Transaction deleted", "id", id)
	return true, nil
}

// UpdateBudget merges patch into the budget for category, inserting a new
// budget when none exists. created reports whether a budget was inserted.
// Limits are not validated here; callers use core.BudgetPatch.Validate.
func (s *Store) UpdateBudget(ctx context.Context, category core.Category, patch core.BudgetPatch) (created bool, err error) {
	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	next := slices.Clone(s.budgets)
	i := slices.IndexFunc(next, func(b core.Budget) bool { return b.Category == category })
	if i >= 0 {
		next[i] = next[i].Apply(patch)
	} else {
		created = true
		next = append(next, core.Budget{
			Category:       category,
			Limit:          decimal.Zero,
			Spent:          decimal.Zero,
			Currency:       s.currency,
			AlertThreshold: decimal.Zero,
		}.Apply(patch))
	}

	if err := s.persistBudgets(ctx, next, s.txs); err != nil {
		return created, err
	}
	s.budgets = next

	s.logger.DebugContext(ctx, "Budget updated", "category", category, "created", created)
	return created, nil
}

// Transactions returns a copy of every transaction in insertion order.
func (s *Store) Transactions(ctx context.Context) ([]core.Transaction, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return slices.Clone(s.txs), nil
}

// Transaction returns the transaction with the given id.
func (s *Store) Transaction(ctx context.Context, id string) (core.Transaction, bool, error) {
	if err := s.lock(); err != nil {
		return core.Transaction{}, false, err
	}
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return core.Transaction{}, false, nil
	}
	return s.txs[i], true, nil
}

// Budgets returns a copy of the budgets with Spent derived from the current
// transactions.
func (s *Store) Budgets(ctx context.Context) ([]core.Budget, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return aggregate.WithSpent(s.budgets, s.txs), nil
}

// Query returns the transactions matching f, newest first.
func (s *Store) Query(ctx context.Context, f Filter) ([]core.Transaction, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return f.Apply(s.txs), nil
}

// Summary recomputes the summary of the current ledger.
func (s *Store) Summary(ctx context.Context) (core.Summary, error) {
	if err := s.lock(); err != nil {
		return core.Summary{}, err
	}
	defer s.mu.Unlock()
	return aggregate.Summarize(s.txs, s.budgets, s.currency), nil
}

// Close detaches the store. Later calls return ErrNotOpen. The underlying
// storage is owned by the caller and is not closed.
func (s *Store) Close() error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.open = false
	s.logger.Info("Ledger closed")
	return nil
}
