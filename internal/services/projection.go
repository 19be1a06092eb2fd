package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"zlotowka/internal/core"
	"zlotowka/internal/currency"
)

// ProjectionService computes the projected balance time series and the
// derived queries built on it. It only reads; stored budgets are never
// touched from here.
type ProjectionService struct {
	store     Store
	converter currency.Converter
	today     func() core.Date
}

func NewProjectionService(store Store, converter currency.Converter) *ProjectionService {
	return &ProjectionService{
		store:     store,
		converter: converter,
		today:     core.Today,
	}
}

// EstimatedBudgetInRange materializes every transaction in [start, end] into
// the user's home currency and returns the running-balance series: one point
// per distinct date, ascending, anchored at today with the stored budget.
//
// Past points are reconstructed by walking back from the stored budget
// (undoing each signed amount); future points accrue forward from it.
func (s *ProjectionService) EstimatedBudgetInRange(ctx context.Context, userID int64, start, end core.Date) ([]core.SinglePlotData, error) {
	budget, err := s.store.GetUserBudget(ctx, userID)
	if err != nil {
		return nil, err
	}
	homeCurrency, err := s.store.GetUserHomeCurrencyCode(ctx, userID)
	if err != nil {
		return nil, err
	}

	today := s.today()
	future, past, err := s.normalizeOneTime(ctx, userID, start, end, homeCurrency, today)
	if err != nil {
		return nil, err
	}

	if end.After(today) {
		occurrences, err := s.normalizeRecurring(ctx, userID, start, end, homeCurrency)
		if err != nil {
			return nil, err
		}
		future = append(future, occurrences...)
	}

	sort.SliceStable(future, func(i, j int) bool { return future[i].Date.Before(future[j].Date) })
	sort.SliceStable(past, func(i, j int) bool { return past[j].Date.Before(past[i].Date) })

	var points []core.SinglePlotData

	running := budget
	for _, t := range past {
		running = running.Sub(t.Amount)
		points = append(points, core.SinglePlotData{Date: t.Date, Balance: running})
	}

	points = append(points, core.SinglePlotData{Date: today, Balance: budget})

	running = budget
	for _, t := range future {
		running = running.Add(t.Amount)
		points = append(points, core.SinglePlotData{Date: t.Date, Balance: running})
	}

	return dedupeByDate(points), nil
}

// normalizeOneTime converts the user's one-time transactions in range into
// signed home-currency entries, split into future and past relative to today.
// A transaction that fails conversion is logged and skipped; the projection
// is best-effort, never all-or-nothing.
func (s *ProjectionService) normalizeOneTime(ctx context.Context, userID int64, start, end core.Date, homeCurrency string, today core.Date) (future, past []core.TransactionBudgetInfo, err error) {
	transactions, err := s.store.GetOneTimeTransactionsInRange(ctx, userID, start, end)
	if err != nil {
		return nil, nil, fmt.Errorf("load one-time transactions: %w", err)
	}

	skipped := 0
	for _, t := range transactions {
		info, ok := s.convertSigned(ctx, t.Name, t.Date, t.Amount, t.Currency.IsoCode, homeCurrency, t.IsIncome)
		if !ok {
			skipped++
			continue
		}
		if t.Date.After(today) {
			future = append(future, info)
		} else {
			past = append(past, info)
		}
	}

	if skipped > 0 {
		slog.WarnContext(ctx, "Skipped unconvertible one-time transactions",
			"user_id", userID,
			"skipped", skipped,
			"total", len(transactions))
	}
	return future, past, nil
}

// normalizeRecurring expands each active template from its cursor through
// min(end, final payment date) and normalizes every occurrence. Only called
// for windows reaching past today; settled occurrences are already reflected
// in the stored budget.
func (s *ProjectionService) normalizeRecurring(ctx context.Context, userID int64, start, end core.Date, homeCurrency string) ([]core.TransactionBudgetInfo, error) {
	templates, err := s.store.GetActiveRecurringTransactions(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load recurring transactions: %w", err)
	}

	var out []core.TransactionBudgetInfo
	skipped := 0
	for _, t := range templates {
		for _, date := range t.Occurrences(end) {
			info, ok := s.convertSigned(ctx, t.Name, date, t.Amount, t.Currency.IsoCode, homeCurrency, t.IsIncome)
			if !ok {
				skipped++
				continue
			}
			out = append(out, info)
		}
	}

	if skipped > 0 {
		slog.WarnContext(ctx, "Skipped unconvertible recurring occurrences",
			"user_id", userID,
			"skipped", skipped,
			"templates", len(templates))
	}
	return out, nil
}

// convertSigned converts one amount into the home currency and signs it
// (expenses negative). Returns ok=false when conversion fails.
func (s *ProjectionService) convertSigned(ctx context.Context, name string, date core.Date, amount decimal.Decimal, from, to string, isIncome bool) (core.TransactionBudgetInfo, bool) {
	converted, err := s.converter.Convert(ctx, amount, from, to)
	if err != nil {
		slog.ErrorContext(ctx, "Currency conversion failed",
			"transaction", name,
			"date", date.String(),
			"from", from,
			"to", to,
			"error", err)
		return core.TransactionBudgetInfo{}, false
	}

	if !isIncome {
		converted = converted.Neg()
	}
	return core.TransactionBudgetInfo{
		Name:     name,
		Date:     date,
		Amount:   converted,
		IsIncome: isIncome,
		Currency: to,
	}, true
}

// dedupeByDate keeps the last point emitted for each calendar day and
// returns the series ordered by date ascending.
func dedupeByDate(points []core.SinglePlotData) []core.SinglePlotData {
	byDate := make(map[string]core.SinglePlotData, len(points))
	for _, p := range points {
		byDate[p.Date.String()] = p
	}

	out := make([]core.SinglePlotData, 0, len(byDate))
	for _, p := range byDate {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
