package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"zlotowka/internal/core"
)

// MonthlySummary aggregates a user's stored one-time amounts from the first
// of the current month through today, in the home currency.
type MonthlySummary struct {
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Net      decimal.Decimal `json:"net"`
}

// RevenuesAndExpenses holds signed totals over a range: revenues accumulate
// income entries (positive), expenses accumulate expense entries (negative).
type RevenuesAndExpenses struct {
	Revenues decimal.Decimal `json:"revenues"`
	Expenses decimal.Decimal `json:"expenses"`
}

// NextTransactionName is the sentinel name returned when no matching future
// transaction exists.
const NextTransactionName = "No transaction"

// NextTransaction returns the user's earliest future transaction with the
// given income flag, looking at both one-time transactions and recurring
// cursors. With no match it returns a zero-amount sentinel dated today in
// the user's home currency.
func (s *ProjectionService) NextTransaction(ctx context.Context, userID int64, isIncome *bool) (core.TransactionBudgetInfo, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return core.TransactionBudgetInfo{}, err
	}
	if isIncome == nil {
		return core.TransactionBudgetInfo{}, fmt.Errorf("income flag is required: %w", core.ErrInvalidArgument)
	}

	today := s.today()
	oneTime, err := s.store.GetNextOneTimeTransaction(ctx, userID, today, *isIncome)
	if err != nil {
		return core.TransactionBudgetInfo{}, fmt.Errorf("next one-time transaction: %w", err)
	}
	recurring, err := s.store.GetNextRecurringTransaction(ctx, userID, today, *isIncome)
	if err != nil {
		return core.TransactionBudgetInfo{}, fmt.Errorf("next recurring transaction: %w", err)
	}

	var candidates []core.TransactionBudgetInfo
	if oneTime != nil {
		candidates = append(candidates, core.TransactionBudgetInfo{
			Name:     oneTime.Name,
			Date:     oneTime.Date,
			Amount:   oneTime.Amount,
			IsIncome: oneTime.IsIncome,
			Currency: oneTime.Currency.IsoCode,
		})
	}
	if recurring != nil {
		candidates = append(candidates, core.TransactionBudgetInfo{
			Name:     recurring.Name,
			Date:     recurring.NextPaymentDate,
			Amount:   recurring.Amount,
			IsIncome: recurring.IsIncome,
			Currency: recurring.Currency.IsoCode,
		})
	}

	switch len(candidates) {
	case 0:
		return core.TransactionBudgetInfo{
			Name:     NextTransactionName,
			Date:     today,
			Amount:   decimal.Zero,
			IsIncome: *isIncome,
			Currency: user.Currency.IsoCode,
		}, nil
	case 1:
		return candidates[0], nil
	default:
		if candidates[0].Date.Before(candidates[1].Date) {
			return candidates[0], nil
		}
		return candidates[1], nil
	}
}

// EstimatedBalanceAtEndOfMonth projects from today through the last day of
// the current month and returns the final balance. An empty projection falls
// back to the stored budget.
func (s *ProjectionService) EstimatedBalanceAtEndOfMonth(ctx context.Context, userID int64) (decimal.Decimal, error) {
	today := s.today()
	points, err := s.EstimatedBudgetInRange(ctx, userID, today, today.LastOfMonth())
	if err != nil {
		return decimal.Zero, err
	}
	if len(points) == 0 {
		return s.store.GetUserBudget(ctx, userID)
	}
	return points[len(points)-1].Balance, nil
}

// MonthlySummaryForUser sums stored one-time income and expenses from the
// first of the current month through today. Amounts are taken as stored,
// without conversion.
func (s *ProjectionService) MonthlySummaryForUser(ctx context.Context, userID int64) (MonthlySummary, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return MonthlySummary{}, err
	}

	today := s.today()
	income, err := s.store.SumOneTimeAmounts(ctx, userID, today.FirstOfMonth(), today, true)
	if err != nil {
		return MonthlySummary{}, fmt.Errorf("monthly income: %w", err)
	}
	expenses, err := s.store.SumOneTimeAmounts(ctx, userID, today.FirstOfMonth(), today, false)
	if err != nil {
		return MonthlySummary{}, fmt.Errorf("monthly expenses: %w", err)
	}

	return MonthlySummary{
		Income:   income,
		Expenses: expenses,
		Net:      income.Sub(expenses),
	}, nil
}

// RevenuesAndExpensesInRange normalizes every transaction in range and sums
// income and expense entries separately. Unconvertible transactions are
// skipped, consistent with the projection.
func (s *ProjectionService) RevenuesAndExpensesInRange(ctx context.Context, userID int64, start, end core.Date) (RevenuesAndExpenses, error) {
	homeCurrency, err := s.store.GetUserHomeCurrencyCode(ctx, userID)
	if err != nil {
		return RevenuesAndExpenses{}, err
	}

	today := s.today()
	future, past, err := s.normalizeOneTime(ctx, userID, start, end, homeCurrency, today)
	if err != nil {
		return RevenuesAndExpenses{}, err
	}
	all := append(future, past...)

	if end.After(today) {
		occurrences, err := s.normalizeRecurring(ctx, userID, start, end, homeCurrency)
		if err != nil {
			return RevenuesAndExpenses{}, err
		}
		all = append(all, occurrences...)
	}

	var result RevenuesAndExpenses
	for _, t := range all {
		if t.IsIncome {
			result.Revenues = result.Revenues.Add(t.Amount)
		} else {
			result.Expenses = result.Expenses.Add(t.Amount)
		}
	}
	return result, nil
}

// CurrentBalance returns the stored budget as-is.
func (s *ProjectionService) CurrentBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	return s.store.GetUserBudget(ctx, userID)
}
