package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"zlotowka/internal/amqp"
	"zlotowka/internal/core"
	"zlotowka/internal/currency"
)

// SettlementPublisher emits one event per transaction applied to a stored
// budget. Delivery is best-effort; settlement never fails on publish errors.
type SettlementPublisher interface {
	PublishSettlement(ctx context.Context, msg amqp.SettlementMessage) error
}

// SettlementService is the once-a-day batch step that permanently applies
// due transactions to stored budgets and advances recurrence cursors. It is
// the only writer of user budgets in this system.
//
// A full re-run on the same day would re-apply one-time transactions dated
// that day; recurring templates are safe because the cursor advance removes
// them from the due set. Partial re-runs are therefore not idempotent.
type SettlementService struct {
	store     SettlementStore
	converter currency.Converter
	publisher SettlementPublisher
}

func NewSettlementService(store SettlementStore, converter currency.Converter, publisher SettlementPublisher) *SettlementService {
	return &SettlementService{
		store:     store,
		converter: converter,
		publisher: publisher,
	}
}

// SettlementStats summarizes one settlement run.
type SettlementStats struct {
	UsersSettled int
	Applied      int
	Skipped      int
	Failed       int
}

// Run settles every transaction due on day. Users are processed
// concurrently; each user's budget update and cursor advances commit in one
// atomic storage transaction, so two runs never interleave within a user.
func (s *SettlementService) Run(ctx context.Context, day core.Date) (SettlementStats, error) {
	oneTime, err := s.store.GetTransactionsDueOn(ctx, day)
	if err != nil {
		return SettlementStats{}, fmt.Errorf("load due one-time transactions: %w", err)
	}
	recurring, err := s.store.GetDueRecurringTransactions(ctx, day)
	if err != nil {
		return SettlementStats{}, fmt.Errorf("load due recurring transactions: %w", err)
	}

	users := groupByUser(oneTime, recurring)
	slog.InfoContext(ctx, "Settlement run starting",
		"day", day.String(),
		"users", len(users),
		"one_time_due", len(oneTime),
		"recurring_due", len(recurring))

	results := make([]SettlementStats, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for i, u := range users {
		g.Go(func() error {
			stats, err := s.settleUser(gctx, day, u)
			if err != nil {
				// One user's failure must not block the others.
				slog.ErrorContext(gctx, "User settlement failed",
					"user_id", u.userID,
					"error", err)
				results[i] = SettlementStats{Failed: 1}
				return nil
			}
			results[i] = stats
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return SettlementStats{}, err
	}

	var total SettlementStats
	for _, r := range results {
		if r.Failed == 0 {
			total.UsersSettled++
		}
		total.Applied += r.Applied
		total.Skipped += r.Skipped
		total.Failed += r.Failed
	}

	slog.InfoContext(ctx, "Settlement run complete",
		"day", day.String(),
		"users_settled", total.UsersSettled,
		"applied", total.Applied,
		"skipped", total.Skipped,
		"failed_users", total.Failed)
	return total, nil
}

type userDue struct {
	userID    int64
	oneTime   []core.OneTimeTransaction
	recurring []core.RecurringTransaction
}

func groupByUser(oneTime []core.OneTimeTransaction, recurring []core.RecurringTransaction) []userDue {
	byUser := make(map[int64]*userDue)
	get := func(id int64) *userDue {
		if u, ok := byUser[id]; ok {
			return u
		}
		u := &userDue{userID: id}
		byUser[id] = u
		return u
	}
	for _, t := range oneTime {
		u := get(t.UserID)
		u.oneTime = append(u.oneTime, t)
	}
	for _, t := range recurring {
		u := get(t.UserID)
		u.recurring = append(u.recurring, t)
	}

	users := make([]userDue, 0, len(byUser))
	for _, u := range byUser {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].userID < users[j].userID })
	return users
}

// settleUser computes one user's new budget in memory, then commits it with
// all cursor advances in a single storage transaction.
func (s *SettlementService) settleUser(ctx context.Context, day core.Date, due userDue) (SettlementStats, error) {
	budget, err := s.store.GetUserBudget(ctx, due.userID)
	if err != nil {
		return SettlementStats{}, err
	}
	homeCurrency, err := s.store.GetUserHomeCurrencyCode(ctx, due.userID)
	if err != nil {
		return SettlementStats{}, err
	}

	var stats SettlementStats
	var applied []amqp.SettlementMessage

	for _, t := range due.oneTime {
		amount, err := s.converter.Convert(ctx, t.Amount, t.Currency.IsoCode, homeCurrency)
		if err != nil {
			slog.ErrorContext(ctx, "Skipping unconvertible due transaction",
				"transaction_id", t.ID,
				"user_id", t.UserID,
				"error", err)
			stats.Skipped++
			continue
		}
		if t.IsIncome {
			budget = budget.Add(amount)
		} else {
			budget = budget.Sub(amount)
		}
		stats.Applied++
		applied = append(applied, amqp.NewSettlementMessage(
			amqp.KindOneTime, t.ID, t.UserID, t.Name, amount, homeCurrency, day, t.IsIncome))
	}

	var cursors []core.CursorAdvance
	for _, t := range due.recurring {
		cursor := t.NextPaymentDate
		advanced := false
		for !cursor.After(day) && !cursor.After(t.FinalPaymentDate) {
			amount, err := s.converter.Convert(ctx, t.Amount, t.Currency.IsoCode, homeCurrency)
			if err != nil {
				// Leave the cursor where it stopped so the next run retries
				// this occurrence instead of silently dropping it.
				slog.ErrorContext(ctx, "Skipping unconvertible recurring occurrence",
					"transaction_id", t.ID,
					"user_id", t.UserID,
					"occurrence", cursor.String(),
					"error", err)
				stats.Skipped++
				break
			}
			if t.IsIncome {
				budget = budget.Add(amount)
			} else {
				budget = budget.Sub(amount)
			}
			stats.Applied++
			applied = append(applied, amqp.NewSettlementMessage(
				amqp.KindRecurring, t.ID, t.UserID, t.Name, amount, homeCurrency, cursor, t.IsIncome))

			cursor = t.Interval.AddTo(cursor, t.FirstPaymentDate)
			advanced = true
		}
		if advanced {
			cursors = append(cursors, core.CursorAdvance{TransactionID: t.ID, NextPaymentDate: cursor})
		}
	}

	if err := s.store.ApplySettlement(ctx, due.userID, budget, cursors); err != nil {
		return SettlementStats{}, err
	}

	s.publishApplied(ctx, applied)
	return stats, nil
}

func (s *SettlementService) publishApplied(ctx context.Context, msgs []amqp.SettlementMessage) {
	if s.publisher == nil {
		return
	}
	for _, msg := range msgs {
		if err := s.publisher.PublishSettlement(ctx, msg); err != nil {
			slog.WarnContext(ctx, "Failed to publish settlement event",
				"transaction_id", msg.TransactionID,
				"user_id", msg.UserID,
				"error", err)
		}
	}
}
