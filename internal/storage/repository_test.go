package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"zlotowka/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedUser(t *testing.T, repo *SQLiteRepository, iso, budget string) (core.User, core.Currency) {
	t.Helper()
	ctx := context.Background()

	cur, err := repo.CreateCurrency(ctx, iso)
	if err != nil {
		t.Fatalf("CreateCurrency: %v", err)
	}
	user := core.User{
		Name:     "Ala",
		Currency: cur,
		Budget:   decimal.RequireFromString(budget),
	}
	user.ID, err = repo.CreateUser(ctx, user)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return user, cur
}

func TestUserRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user, cur := seedUser(t, repo, "PLN", "1234.50")

	got, err := repo.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Name != "Ala" || got.Currency.IsoCode != "PLN" || got.Currency.ID != cur.ID {
		t.Errorf("GetUser = %+v", got)
	}
	if !got.Budget.Equal(decimal.RequireFromString("1234.50")) {
		t.Errorf("budget = %s, want 1234.50", got.Budget)
	}

	code, err := repo.GetUserHomeCurrencyCode(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserHomeCurrencyCode: %v", err)
	}
	if code != "PLN" {
		t.Errorf("home currency = %q, want PLN", code)
	}
}

func TestGetUserNotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.GetUser(context.Background(), 42)
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveBudget(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user, _ := seedUser(t, repo, "PLN", "100")

	if err := repo.SaveBudget(ctx, user.ID, decimal.RequireFromString("250.75")); err != nil {
		t.Fatalf("SaveBudget: %v", err)
	}
	budget, err := repo.GetUserBudget(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserBudget: %v", err)
	}
	if !budget.Equal(decimal.RequireFromString("250.75")) {
		t.Errorf("budget = %s, want 250.75", budget)
	}

	if err := repo.SaveBudget(ctx, 42, decimal.Zero); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound for unknown user", err)
	}
}

func TestOneTimeTransactionQueries(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user, cur := seedUser(t, repo, "PLN", "1000")

	insert := func(name string, date core.Date, amount string, income bool) int64 {
		t.Helper()
		id, err := repo.CreateOneTimeTransaction(ctx, core.OneTimeTransaction{
			UserID:   user.ID,
			Name:     name,
			Date:     date,
			Amount:   decimal.RequireFromString(amount),
			Currency: cur,
			IsIncome: income,
		})
		if err != nil {
			t.Fatalf("CreateOneTimeTransaction(%s): %v", name, err)
		}
		return id
	}

	insert("salary", core.NewDate(2025, 6, 1), "3000", true)
	insert("rent", core.NewDate(2025, 6, 5), "1500", false)
	insert("bonus", core.NewDate(2025, 7, 1), "500", true)

	got, err := repo.GetOneTimeTransactionsInRange(ctx, user.ID, core.NewDate(2025, 6, 1), core.NewDate(2025, 6, 30))
	if err != nil {
		t.Fatalf("GetOneTimeTransactionsInRange: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d transactions, want 2", len(got))
	}
	if got[0].Name != "salary" || got[1].Name != "rent" {
		t.Errorf("order = [%s, %s], want [salary, rent]", got[0].Name, got[1].Name)
	}
	if !got[0].Amount.Equal(decimal.RequireFromString("3000")) {
		t.Errorf("amount = %s, want 3000", got[0].Amount)
	}

	next, err := repo.GetNextOneTimeTransaction(ctx, user.ID, core.NewDate(2025, 6, 10), true)
	if err != nil {
		t.Fatalf("GetNextOneTimeTransaction: %v", err)
	}
	if next == nil || next.Name != "bonus" {
		t.Fatalf("next = %+v, want bonus", next)
	}

	none, err := repo.GetNextOneTimeTransaction(ctx, user.ID, core.NewDate(2025, 8, 1), true)
	if err != nil {
		t.Fatalf("GetNextOneTimeTransaction: %v", err)
	}
	if none != nil {
		t.Fatalf("next = %+v, want nil past last transaction", none)
	}

	sum, err := repo.SumOneTimeAmounts(ctx, user.ID, core.NewDate(2025, 6, 1), core.NewDate(2025, 7, 31), true)
	if err != nil {
		t.Fatalf("SumOneTimeAmounts: %v", err)
	}
	if !sum.Equal(decimal.RequireFromString("3500")) {
		t.Errorf("income sum = %s, want 3500", sum)
	}
}

func TestCreateOneTimeTransactionRejectsInvalid(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user, cur := seedUser(t, repo, "PLN", "1000")

	_, err := repo.CreateOneTimeTransaction(ctx, core.OneTimeTransaction{
		UserID:   user.ID,
		Name:     "   ",
		Date:     core.NewDate(2025, 6, 1),
		Amount:   decimal.RequireFromString("10"),
		Currency: cur,
	})
	if !errors.Is(err, core.ErrEmptyName) {
		t.Fatalf("err = %v, want ErrEmptyName", err)
	}

	_, err = repo.CreateOneTimeTransaction(ctx, core.OneTimeTransaction{
		UserID:   user.ID,
		Name:     "bad",
		Date:     core.NewDate(2025, 6, 1),
		Amount:   decimal.RequireFromString("-5"),
		Currency: cur,
	})
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
}

func TestRecurringTransactionQueries(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user, cur := seedUser(t, repo, "PLN", "1000")

	id, err := repo.CreateRecurringTransaction(ctx, core.RecurringTransaction{
		UserID:           user.ID,
		Name:             "netflix",
		Amount:           decimal.RequireFromString("29.99"),
		Currency:         cur,
		IsIncome:         false,
		Interval:         core.Monthly,
		FirstPaymentDate: core.NewDate(2025, 6, 10),
		FinalPaymentDate: core.NewDate(2026, 6, 10),
	})
	if err != nil {
		t.Fatalf("CreateRecurringTransaction: %v", err)
	}

	// Zero next payment date starts the cursor at the first payment date.
	active, err := repo.GetActiveRecurringTransactions(ctx, user.ID, core.NewDate(2025, 6, 1), core.NewDate(2025, 12, 31))
	if err != nil {
		t.Fatalf("GetActiveRecurringTransactions: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("got %d templates, want 1", len(active))
	}
	if !active[0].NextPaymentDate.Equal(core.NewDate(2025, 6, 10)) {
		t.Errorf("cursor = %s, want 2025-06-10", active[0].NextPaymentDate)
	}

	due, err := repo.GetDueRecurringTransactions(ctx, core.NewDate(2025, 6, 15))
	if err != nil {
		t.Fatalf("GetDueRecurringTransactions: %v", err)
	}
	if len(due) != 1 || due[0].ID != id {
		t.Fatalf("due = %+v, want the seeded template", due)
	}

	next, err := repo.GetNextRecurringTransaction(ctx, user.ID, core.NewDate(2025, 6, 1), false)
	if err != nil {
		t.Fatalf("GetNextRecurringTransaction: %v", err)
	}
	if next == nil || next.Name != "netflix" {
		t.Fatalf("next = %+v, want netflix", next)
	}

	// Past the final payment date the template is dormant.
	if err := repo.AdvanceRecurringCursor(ctx, id, core.NewDate(2026, 7, 10)); err != nil {
		t.Fatalf("AdvanceRecurringCursor: %v", err)
	}
	due, err = repo.GetDueRecurringTransactions(ctx, core.NewDate(2026, 8, 1))
	if err != nil {
		t.Fatalf("GetDueRecurringTransactions: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("due = %+v, want empty for dormant template", due)
	}
}

func TestApplySettlement(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user, cur := seedUser(t, repo, "PLN", "1000")

	id, err := repo.CreateRecurringTransaction(ctx, core.RecurringTransaction{
		UserID:           user.ID,
		Name:             "rent",
		Amount:           decimal.RequireFromString("800"),
		Currency:         cur,
		Interval:         core.Monthly,
		FirstPaymentDate: core.NewDate(2025, 6, 1),
		FinalPaymentDate: core.NewDate(2026, 6, 1),
	})
	if err != nil {
		t.Fatalf("CreateRecurringTransaction: %v", err)
	}

	newBudget := decimal.RequireFromString("200")
	cursors := []core.CursorAdvance{{TransactionID: id, NextPaymentDate: core.NewDate(2025, 7, 1)}}
	if err := repo.ApplySettlement(ctx, user.ID, newBudget, cursors); err != nil {
		t.Fatalf("ApplySettlement: %v", err)
	}

	budget, err := repo.GetUserBudget(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserBudget: %v", err)
	}
	if !budget.Equal(newBudget) {
		t.Errorf("budget = %s, want 200", budget)
	}

	active, err := repo.GetActiveRecurringTransactions(ctx, user.ID, core.NewDate(2025, 6, 1), core.NewDate(2025, 12, 31))
	if err != nil {
		t.Fatalf("GetActiveRecurringTransactions: %v", err)
	}
	if len(active) != 1 || !active[0].NextPaymentDate.Equal(core.NewDate(2025, 7, 1)) {
		t.Fatalf("cursor after settlement = %+v, want 2025-07-01", active)
	}

	if err := repo.ApplySettlement(ctx, 42, decimal.Zero, nil); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound for unknown user", err)
	}
}
