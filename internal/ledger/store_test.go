package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/core"
	"budget/internal/storage"
)

// flakyKV wraps a storage.KV and fails on demand.
type flakyKV struct {
	storage.KV
	failGet bool
	failPut bool
	// failKey fails only puts of this key
	failKey string
	puts    int
}

var errBoom = errors.New("boom")

func (f *flakyKV) Get(ctx context.Context, key string) ([]byte, error) {
	if f.failGet {
		return nil, errBoom
	}
	return f.KV.Get(ctx, key)
}

func (f *flakyKV) Put(ctx context.Context, key string, value []byte) error {
	if f.failPut || key == f.failKey {
		return errBoom
	}
	f.puts++
	return f.KV.Put(ctx, key, value)
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("tx-%d", n)
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openStore(t *testing.T, kv storage.KV) *Store {
	t.Helper()
	s, err := Open(context.Background(), kv, Options{Logger: quietLogger(), NewID: sequentialIDs()})
	require.NoError(t, err)
	return s
}

func input(typ core.TransactionType, cat core.Category, amount int64, desc string) core.TransactionInput {
	return core.TransactionInput{
		Type:        typ,
		Category:    cat,
		Amount:      decimal.NewFromInt(amount),
		Description: desc,
		Date:        core.NewDate(2024, 1, 5),
		Currency:    "USD",
	}
}

func toJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func spentOf(t *testing.T, s *Store, c core.Category) string {
	t.Helper()
	budgets, err := s.Budgets(context.Background())
	require.NoError(t, err)
	for _, b := range budgets {
		if b.Category == c {
			return b.Spent.String()
		}
	}
	t.Fatalf("no budget for %s", c)
	return ""
}

func TestOpenEmptyStorageUsesDefaults(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, storage.NewMemory())

	txs, err := s.Transactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, txs)

	budgets, err := s.Budgets(ctx)
	require.NoError(t, err)
	require.Len(t, budgets, 4)

	want := map[core.Category][2]string{
		core.Groceries: {"500", "80"},
		core.Utilities: {"300", "80"},
		core.Rent:      {"1500", "90"},
		core.Other:     {"400", "80"},
	}
	for _, b := range budgets {
		w, ok := want[b.Category]
		require.True(t, ok, "unexpected budget %s", b.Category)
		assert.Equal(t, w[0], b.Limit.String())
		assert.Equal(t, w[1], b.AlertThreshold.String())
		assert.Equal(t, "USD", b.Currency)
		assert.True(t, b.Spent.IsZero())
	}
}

func TestOpenCorruptValuesFallBack(t *testing.T) {
	kv := storage.NewMemoryFrom(map[string][]byte{
		KeyTransactions: []byte("{not json"),
		KeyBudgets:      []byte("[{"),
	})
	s := openStore(t, kv)

	txs, err := s.Transactions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, txs)

	budgets, err := s.Budgets(context.Background())
	require.NoError(t, err)
	assert.Len(t, budgets, 4)
}

func TestOpenReadFailure(t *testing.T) {
	_, err := Open(context.Background(), &flakyKV{KV: storage.NewMemory(), failGet: true}, Options{Logger: quietLogger()})
	assert.ErrorIs(t, err, errBoom)

	_, err = Open(context.Background(), nil, Options{})
	assert.Error(t, err)
}

func TestAddTransaction(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, storage.NewMemory())

	got, err := s.AddTransaction(ctx, input(core.Expense, core.Groceries, 120, "Weekly shop"))
	require.NoError(t, err)
	assert.Equal(t, "tx-1", got.ID)
	assert.Equal(t, "Weekly shop", got.Description)

	txs, _ := s.Transactions(ctx)
	require.Len(t, txs, 1)
	assert.Equal(t, got, txs[0])
	assert.Equal(t, "120", spentOf(t, s, core.Groceries))

	sum, err := s.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, "120", sum.TotalExpenses.String())
	assert.Equal(t, "-120", sum.Balance.String())
	g, _ := sum.Budget(core.Groceries)
	assert.Equal(t, "24", g.Ratio.String())
	assert.False(t, g.OverThreshold)
}

func TestDefaultIDsAreUnique(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, storage.NewMemory(), Options{Logger: quietLogger()})
	require.NoError(t, err)

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		tx, err := s.AddTransaction(ctx, input(core.Income, core.Salary, 1, "pay"))
		require.NoError(t, err)
		assert.False(t, seen[tx.ID], "duplicate id %s", tx.ID)
		seen[tx.ID] = true
	}
}

func TestAddDoesNotValidate(t *testing.T) {
	s := openStore(t, storage.NewMemory())
	in := input(core.Expense, core.Other, 0, "")
	in.Amount = decimal.NewFromInt(-5)

	_, err := s.AddTransaction(context.Background(), in)
	assert.NoError(t, err)
}

func TestOverThresholdAcrossAdds(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, storage.NewMemory())

	_, err := s.AddTransaction(ctx, input(core.Expense, core.Groceries, 300, "Big shop"))
	require.NoError(t, err)
	_, err = s.AddTransaction(ctx, input(core.Expense, core.Groceries, 250, "Party"))
	require.NoError(t, err)

	sum, err := s.Summary(ctx)
	require.NoError(t, err)
	g, _ := sum.Budget(core.Groceries)
	assert.Equal(t, "550", g.Spent.String())
	assert.Equal(t, "110", g.Ratio.String())
	assert.True(t, g.OverThreshold)
}

func TestUpdateTransaction(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, storage.NewMemory())
	tx, err := s.AddTransaction(ctx, input(core.Expense, core.Groceries, 200, "Market"))
	require.NoError(t, err)

	rent := core.Rent
	found, err := s.UpdateTransaction(ctx, tx.ID, core.TransactionPatch{Category: &rent})
	require.NoError(t, err)
	assert.True(t, found)

	assert.Equal(t, "0", spentOf(t, s, core.Groceries))
	assert.Equal(t, "200", spentOf(t, s, core.Rent))

	got, ok, err := s.Transaction(ctx, tx.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tx.ID, got.ID)
	assert.Equal(t, core.Rent, got.Category)
	assert.Equal(t, "Market", got.Description)
}

func TestUpdateUnknownTransactionDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	kv := &flakyKV{KV: storage.NewMemory()}
	s := openStore(t, kv)

	desc := "nope"
	found, err := s.UpdateTransaction(ctx, "missing", core.TransactionPatch{Description: &desc})
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, kv.puts)
}

func TestDeleteTransaction(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, storage.NewMemory())
	a, _ := s.AddTransaction(ctx, input(core.Expense, core.Utilities, 40, "Power"))
	b, _ := s.AddTransaction(ctx, input(core.Expense, core.Utilities, 60, "Water"))

	found, err := s.DeleteTransaction(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
	txs, _ := s.Transactions(ctx)
	assert.Len(t, txs, 2)

	found, err = s.DeleteTransaction(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, found)

	txs, _ = s.Transactions(ctx)
	require.Len(t, txs, 1)
	assert.Equal(t, b.ID, txs[0].ID)
	assert.Equal(t, "60", spentOf(t, s, core.Utilities))
}

func TestUpdateBudgetUpsert(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, storage.NewMemory())

	limit := decimal.NewFromInt(2000)
	created, err := s.UpdateBudget(ctx, core.Rent, core.BudgetPatch{Limit: &limit})
	require.NoError(t, err)
	assert.False(t, created)

	budgets, _ := s.Budgets(ctx)
	require.Len(t, budgets, 4)
	for _, b := range budgets {
		if b.Category == core.Rent {
			assert.Equal(t, "2000", b.Limit.String())
			assert.Equal(t, "90", b.AlertThreshold.String())
		}
	}

	salary := decimal.NewFromInt(100)
	created, err = s.UpdateBudget(ctx, core.Salary, core.BudgetPatch{Limit: &salary})
	require.NoError(t, err)
	assert.True(t, created)

	budgets, _ = s.Budgets(ctx)
	require.Len(t, budgets, 5)
	last := budgets[4]
	assert.Equal(t, core.Salary, last.Category)
	assert.Equal(t, "100", last.Limit.String())
	assert.Equal(t, "USD", last.Currency)
	assert.True(t, last.AlertThreshold.IsZero())
}

func TestUpsertCreatesMissingBudgetWithFreshSpent(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryFrom(map[string][]byte{
		KeyBudgets:      []byte(`[{"category":"groceries","limit":"500","spent":"999","currency":"USD","alertThreshold":"80"}]`),
		KeyTransactions: []byte(`[{"id":"a","type":"expense","category":"rent","amount":"700","description":"January rent","date":"2024-01-01","currency":"USD"}]`),
	})
	s := openStore(t, kv)

	assert.Equal(t, "0", spentOf(t, s, core.Groceries))

	limit := decimal.NewFromInt(2000)
	created, err := s.UpdateBudget(ctx, core.Rent, core.BudgetPatch{Limit: &limit})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "700", spentOf(t, s, core.Rent))

	sum, err := s.Summary(ctx)
	require.NoError(t, err)
	rent, ok := sum.Budget(core.Rent)
	require.True(t, ok)
	assert.Equal(t, "2000", rent.Limit.String())
	assert.Equal(t, "35", rent.Ratio.String())
}

func TestBudgetsReturnCopies(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, storage.NewMemory())
	_, _ = s.AddTransaction(ctx, input(core.Expense, core.Groceries, 10, "Bread"))

	budgets, _ := s.Budgets(ctx)
	budgets[0].Limit = decimal.NewFromInt(1)
	budgets[0].Spent = decimal.NewFromInt(999)
	txs, _ := s.Transactions(ctx)
	txs[0].Description = "changed"

	again, _ := s.Budgets(ctx)
	assert.Equal(t, "500", again[0].Limit.String())
	assert.Equal(t, "10", again[0].Spent.String())
	txs, _ = s.Transactions(ctx)
	assert.Equal(t, "Bread", txs[0].Description)
}

func TestPersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	s := openStore(t, kv)

	_, err := s.AddTransaction(ctx, input(core.Income, core.Salary, 3000, "Salary"))
	require.NoError(t, err)
	tx, err := s.AddTransaction(ctx, input(core.Expense, core.Rent, 1200, "January rent"))
	require.NoError(t, err)
	threshold := decimal.NewFromInt(95)
	_, err = s.UpdateBudget(ctx, core.Rent, core.BudgetPatch{AlertThreshold: &threshold})
	require.NoError(t, err)
	// the transaction change after the budget write rewrites the stored spend
	amount := decimal.NewFromInt(1250)
	_, err = s.UpdateTransaction(ctx, tx.ID, core.TransactionPatch{Amount: &amount})
	require.NoError(t, err)

	wantTxs, _ := s.Transactions(ctx)
	wantBudgets, _ := s.Budgets(ctx)
	wantSummary, _ := s.Summary(ctx)
	require.NoError(t, s.Close())

	reopened := openStore(t, kv)
	gotTxs, _ := reopened.Transactions(ctx)
	gotBudgets, _ := reopened.Budgets(ctx)
	gotSummary, _ := reopened.Summary(ctx)

	assert.JSONEq(t, toJSON(t, wantTxs), toJSON(t, gotTxs))
	assert.JSONEq(t, toJSON(t, wantBudgets), toJSON(t, gotBudgets))
	assert.JSONEq(t, toJSON(t, wantSummary), toJSON(t, gotSummary))
	assert.Equal(t, "1250", spentOf(t, reopened, core.Rent))
}

func TestPersistedLayout(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	s := openStore(t, kv)
	_, err := s.AddTransaction(ctx, input(core.Expense, core.Groceries, 120, "Weekly shop"))
	require.NoError(t, err)
	limit := decimal.NewFromInt(600)
	_, err = s.UpdateBudget(ctx, core.Groceries, core.BudgetPatch{Limit: &limit})
	require.NoError(t, err)

	raw, err := kv.Get(ctx, KeyTransactions)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"tx-1","type":"expense","category":"groceries","amount":"120",
		"description":"Weekly shop","date":"2024-01-05","currency":"USD"}]`, string(raw))

	raw, err = kv.Get(ctx, KeyBudgets)
	require.NoError(t, err)
	var stored []map[string]any
	require.NoError(t, json.Unmarshal(raw, &stored))
	require.Len(t, stored, 4)
	assert.Equal(t, "groceries", stored[0]["category"])
	assert.Equal(t, "600", stored[0]["limit"])
	assert.Equal(t, "120", stored[0]["spent"])
	assert.Equal(t, "80", stored[0]["alertThreshold"])
}

func storedSpent(t *testing.T, kv storage.KV, c core.Category) string {
	t.Helper()
	raw, err := kv.Get(context.Background(), KeyBudgets)
	require.NoError(t, err)
	var stored []core.Budget
	require.NoError(t, json.Unmarshal(raw, &stored))
	for _, b := range stored {
		if b.Category == c {
			return b.Spent.String()
		}
	}
	t.Fatalf("no stored budget for %s", c)
	return ""
}

func TestTransactionChangesRewriteStoredSpent(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	s := openStore(t, kv)

	tx, err := s.AddTransaction(ctx, input(core.Expense, core.Groceries, 120, "Weekly shop"))
	require.NoError(t, err)
	assert.Equal(t, "120", storedSpent(t, kv, core.Groceries))

	amount := decimal.NewFromInt(80)
	_, err = s.UpdateTransaction(ctx, tx.ID, core.TransactionPatch{Amount: &amount})
	require.NoError(t, err)
	assert.Equal(t, "80", storedSpent(t, kv, core.Groceries))

	rent := core.Rent
	_, err = s.UpdateTransaction(ctx, tx.ID, core.TransactionPatch{Category: &rent})
	require.NoError(t, err)
	assert.Equal(t, "0", storedSpent(t, kv, core.Groceries))
	assert.Equal(t, "80", storedSpent(t, kv, core.Rent))

	_, err = s.DeleteTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "0", storedSpent(t, kv, core.Rent))
}

func TestBudgetsWriteFailureRestoresTransactions(t *testing.T) {
	ctx := context.Background()
	kv := &flakyKV{KV: storage.NewMemory()}
	s := openStore(t, kv)
	_, err := s.AddTransaction(ctx, input(core.Expense, core.Groceries, 50, "Veg"))
	require.NoError(t, err)
	before, err := kv.Get(ctx, KeyTransactions)
	require.NoError(t, err)

	kv.failKey = KeyBudgets
	_, err = s.AddTransaction(ctx, input(core.Expense, core.Groceries, 70, "Fruit"))
	assert.ErrorIs(t, err, errBoom)

	txs, _ := s.Transactions(ctx)
	assert.Len(t, txs, 1)
	after, err := kv.Get(ctx, KeyTransactions)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
	assert.Equal(t, "50", storedSpent(t, kv, core.Groceries))
}

func TestOpenNullDocumentsFallBack(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryFrom(map[string][]byte{
		KeyTransactions: []byte("null"),
		KeyBudgets:      []byte(" null "),
	})
	s := openStore(t, kv)

	budgets, err := s.Budgets(ctx)
	require.NoError(t, err)
	assert.Len(t, budgets, 4)

	txs, err := s.Transactions(ctx)
	require.NoError(t, err)
	assert.NotNil(t, txs)
	assert.Equal(t, "[]", toJSON(t, txs))
}

func TestNumericAmountsLoad(t *testing.T) {
	kv := storage.NewMemoryFrom(map[string][]byte{
		KeyTransactions: []byte(`[{"id":"a","type":"expense","category":"other","amount":12.5,"description":"x","date":"2024-02-01","currency":"USD"}]`),
	})
	s := openStore(t, kv)
	assert.Equal(t, "12.5", spentOf(t, s, core.Other))
}

func TestPersistFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	kv := &flakyKV{KV: storage.NewMemory()}
	s := openStore(t, kv)
	tx, err := s.AddTransaction(ctx, input(core.Expense, core.Groceries, 50, "Veg"))
	require.NoError(t, err)

	kv.failPut = true
	_, err = s.AddTransaction(ctx, input(core.Expense, core.Groceries, 70, "Fruit"))
	assert.ErrorIs(t, err, errBoom)

	amount := decimal.NewFromInt(1)
	found, err := s.UpdateTransaction(ctx, tx.ID, core.TransactionPatch{Amount: &amount})
	assert.True(t, found)
	assert.ErrorIs(t, err, errBoom)

	found, err = s.DeleteTransaction(ctx, tx.ID)
	assert.True(t, found)
	assert.ErrorIs(t, err, errBoom)

	limit := decimal.NewFromInt(1)
	_, err = s.UpdateBudget(ctx, core.Groceries, core.BudgetPatch{Limit: &limit})
	assert.ErrorIs(t, err, errBoom)

	txs, _ := s.Transactions(ctx)
	require.Len(t, txs, 1)
	assert.Equal(t, "50", txs[0].Amount.String())
	budgets, _ := s.Budgets(ctx)
	assert.Equal(t, "500", budgets[0].Limit.String())
}

func TestQuery(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, storage.NewMemory())

	add := func(typ core.TransactionType, cat core.Category, desc string, day int) {
		in := input(typ, cat, 10, desc)
		in.Date = core.NewDate(2024, 3, day)
		_, err := s.AddTransaction(ctx, in)
		require.NoError(t, err)
	}
	add(core.Expense, core.Groceries, "Corner shop", 1)
	add(core.Income, core.Salary, "March pay", 3)
	add(core.Expense, core.Rent, "Flat", 2)
	add(core.Expense, core.Other, "Gift shop", 3)

	all, err := s.Query(ctx, Filter{})
	require.NoError(t, err)
	var descs []string
	for _, tx := range all {
		descs = append(descs, tx.Description)
	}
	assert.Equal(t, []string{"March pay", "Gift shop", "Flat", "Corner shop"}, descs)

	shops, _ := s.Query(ctx, Filter{Search: "SHOP"})
	assert.Len(t, shops, 2)

	byCategory, _ := s.Query(ctx, Filter{Search: "rent"})
	require.Len(t, byCategory, 1)
	assert.Equal(t, "Flat", byCategory[0].Description)

	income, _ := s.Query(ctx, Filter{Type: core.Income})
	require.Len(t, income, 1)
	assert.Equal(t, "March pay", income[0].Description)

	none, _ := s.Query(ctx, Filter{Search: "shop", Type: core.Income})
	assert.Empty(t, none)
}

func TestClosedStore(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, storage.NewMemory())
	require.NoError(t, s.Close())

	_, err := s.Transactions(ctx)
	assert.ErrorIs(t, err, ErrNotOpen)
	_, err = s.AddTransaction(ctx, input(core.Expense, core.Other, 1, "late"))
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.ErrorIs(t, s.Close(), ErrNotOpen)

	var nilStore *Store
	_, err = nilStore.Summary(ctx)
	assert.ErrorIs(t, err, ErrNotOpen)
	_, err = nilStore.DeleteTransaction(ctx, "x")
	assert.ErrorIs(t, err, ErrNotOpen)
}
