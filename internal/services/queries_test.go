package services

import (
	"context"
	"errors"
	"testing"

	"zlotowka/internal/core"
)

func boolPtr(b bool) *bool { return &b }

func TestNextTransactionPicksEarliest(t *testing.T) {
	today := core.NewDate(2025, 6, 15)
	store := &fakeStore{
		user: testUser("1000"),
		oneTime: []core.OneTimeTransaction{
			oneTime(1, today.AddDays(10), "50", true, "PLN"),
		},
		recurring: []core.RecurringTransaction{
			{
				ID: 1, UserID: 1, Name: "salary",
				Amount:   dec("5000"),
				Currency: core.Currency{IsoCode: "PLN"},
				IsIncome: true,
				Interval: core.Monthly,
				FirstPaymentDate: core.NewDate(2025, 1, 1),
				NextPaymentDate:  today.AddDays(3),
				FinalPaymentDate: core.NewDate(2026, 1, 1),
			},
		},
	}
	svc := newTestService(store, &identityConverter{}, today)

	next, err := svc.NextTransaction(context.Background(), 1, boolPtr(true))
	if err != nil {
		t.Fatalf("NextTransaction: %v", err)
	}
	if next.Name != "salary" {
		t.Errorf("name = %q, want salary", next.Name)
	}
	if !next.Date.Equal(today.AddDays(3)) {
		t.Errorf("date = %s, want %s", next.Date, today.AddDays(3))
	}
}

func TestNextTransactionSentinel(t *testing.T) {
	today := core.NewDate(2025, 6, 15)
	store := &fakeStore{user: testUser("1000")}
	svc := newTestService(store, &identityConverter{}, today)

	next, err := svc.NextTransaction(context.Background(), 1, boolPtr(false))
	if err != nil {
		t.Fatalf("NextTransaction: %v", err)
	}
	if next.Name != NextTransactionName {
		t.Errorf("name = %q, want %q", next.Name, NextTransactionName)
	}
	if !next.Date.Equal(today) {
		t.Errorf("date = %s, want today", next.Date)
	}
	if !next.Amount.IsZero() {
		t.Errorf("amount = %s, want 0", next.Amount)
	}
	if next.Currency != "PLN" {
		t.Errorf("currency = %q, want home currency PLN", next.Currency)
	}
}

func TestNextTransactionRequiresFlag(t *testing.T) {
	today := core.NewDate(2025, 6, 15)
	store := &fakeStore{user: testUser("1000")}
	svc := newTestService(store, &identityConverter{}, today)

	_, err := svc.NextTransaction(context.Background(), 1, nil)
	if !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestNextTransactionUnknownUser(t *testing.T) {
	today := core.NewDate(2025, 6, 15)
	store := &fakeStore{user: testUser("1000")}
	svc := newTestService(store, &identityConverter{}, today)

	_, err := svc.NextTransaction(context.Background(), 42, boolPtr(true))
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestEstimatedBalanceAtEndOfMonth(t *testing.T) {
	today := core.NewDate(2025, 6, 15)
	store := &fakeStore{
		user: testUser("1000"),
		oneTime: []core.OneTimeTransaction{
			oneTime(1, core.NewDate(2025, 6, 20), "250", false, "PLN"),
			oneTime(2, core.NewDate(2025, 7, 2), "9999", false, "PLN"), // outside month
		},
	}
	svc := newTestService(store, &identityConverter{}, today)

	balance, err := svc.EstimatedBalanceAtEndOfMonth(context.Background(), 1)
	if err != nil {
		t.Fatalf("EstimatedBalanceAtEndOfMonth: %v", err)
	}
	if !balance.Equal(dec("750")) {
		t.Errorf("balance = %s, want 750", balance)
	}
}

func TestMonthlySummaryForUser(t *testing.T) {
	today := core.NewDate(2025, 6, 15)
	store := &fakeStore{
		user: testUser("1000"),
		oneTime: []core.OneTimeTransaction{
			oneTime(1, core.NewDate(2025, 6, 2), "3000", true, "PLN"),
			oneTime(2, core.NewDate(2025, 6, 10), "450", false, "PLN"),
			oneTime(3, core.NewDate(2025, 6, 20), "100", false, "PLN"), // after today
			oneTime(4, core.NewDate(2025, 5, 30), "777", true, "PLN"),  // last month
		},
	}
	svc := newTestService(store, &identityConverter{}, today)

	summary, err := svc.MonthlySummaryForUser(context.Background(), 1)
	if err != nil {
		t.Fatalf("MonthlySummaryForUser: %v", err)
	}
	if !summary.Income.Equal(dec("3000")) {
		t.Errorf("income = %s, want 3000", summary.Income)
	}
	if !summary.Expenses.Equal(dec("450")) {
		t.Errorf("expenses = %s, want 450", summary.Expenses)
	}
	if !summary.Net.Equal(dec("2550")) {
		t.Errorf("net = %s, want 2550", summary.Net)
	}
}

func TestRevenuesAndExpensesInRange(t *testing.T) {
	today := core.NewDate(2025, 6, 15)
	store := &fakeStore{
		user: testUser("1000"),
		oneTime: []core.OneTimeTransaction{
			oneTime(1, today.AddDays(-5), "200", true, "PLN"),
			oneTime(2, today.AddDays(-1), "60", false, "PLN"),
			oneTime(3, today.AddDays(4), "40", false, "PLN"),
		},
	}
	svc := newTestService(store, &identityConverter{}, today)

	got, err := svc.RevenuesAndExpensesInRange(context.Background(), 1, today.AddDays(-10), today.AddDays(10))
	if err != nil {
		t.Fatalf("RevenuesAndExpensesInRange: %v", err)
	}
	if !got.Revenues.Equal(dec("200")) {
		t.Errorf("revenues = %s, want 200", got.Revenues)
	}
	// Expenses accumulate signed (negative) amounts.
	if !got.Expenses.Equal(dec("-100")) {
		t.Errorf("expenses = %s, want -100", got.Expenses)
	}
}

func TestCurrentBalance(t *testing.T) {
	today := core.NewDate(2025, 6, 15)
	store := &fakeStore{user: testUser("1234.56")}
	svc := newTestService(store, &identityConverter{}, today)

	balance, err := svc.CurrentBalance(context.Background(), 1)
	if err != nil {
		t.Fatalf("CurrentBalance: %v", err)
	}
	if !balance.Equal(dec("1234.56")) {
		t.Errorf("balance = %s, want 1234.56", balance)
	}
}
