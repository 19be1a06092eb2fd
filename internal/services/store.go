// Package services holds the business logic: the budget projection engine,
// the derived queries built on top of it, and the daily settlement job.
package services

import (
	"context"

	"github.com/shopspring/decimal"

	"zlotowka/internal/core"
)

// Store is the read-side query contract the projection engine and derived
// queries consume. *storage.SQLiteRepository satisfies it.
type Store interface {
	GetUser(ctx context.Context, id int64) (core.User, error)
	GetUserBudget(ctx context.Context, id int64) (decimal.Decimal, error)
	GetUserHomeCurrencyCode(ctx context.Context, id int64) (string, error)
	GetOneTimeTransactionsInRange(ctx context.Context, userID int64, start, end core.Date) ([]core.OneTimeTransaction, error)
	GetActiveRecurringTransactions(ctx context.Context, userID int64, start, end core.Date) ([]core.RecurringTransaction, error)
	GetNextOneTimeTransaction(ctx context.Context, userID int64, after core.Date, isIncome bool) (*core.OneTimeTransaction, error)
	GetNextRecurringTransaction(ctx context.Context, userID int64, after core.Date, isIncome bool) (*core.RecurringTransaction, error)
	SumOneTimeAmounts(ctx context.Context, userID int64, start, end core.Date, isIncome bool) (decimal.Decimal, error)
}

// SettlementStore adds the write side used only by the settlement job.
type SettlementStore interface {
	GetUserBudget(ctx context.Context, id int64) (decimal.Decimal, error)
	GetUserHomeCurrencyCode(ctx context.Context, id int64) (string, error)
	GetTransactionsDueOn(ctx context.Context, day core.Date) ([]core.OneTimeTransaction, error)
	GetDueRecurringTransactions(ctx context.Context, day core.Date) ([]core.RecurringTransaction, error)
	ApplySettlement(ctx context.Context, userID int64, budget decimal.Decimal, cursors []core.CursorAdvance) error
}
