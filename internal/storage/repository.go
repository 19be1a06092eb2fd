// Package storage persists users, currencies and transactions in SQLite and
// exposes the query surface the projection engine and settlement job consume.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"zlotowka/internal/core"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports database reachability, used by the readiness probe.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const oneTimeColumns = `t.id, t.user_id, t.name, t.date, t.amount, t.is_income, t.description, c.id, c.iso_code`

const recurringColumns = `t.id, t.user_id, t.name, t.amount, t.is_income, t.interval,
	t.first_payment_date, t.next_payment_date, t.final_payment_date, t.description, c.id, c.iso_code`

// CreateCurrency inserts a currency and returns it with its assigned ID.
func (r *SQLiteRepository) CreateCurrency(ctx context.Context, isoCode string) (core.Currency, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO currencies (iso_code) VALUES (?)`, isoCode)
	if err != nil {
		return core.Currency{}, fmt.Errorf("create currency: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Currency{}, fmt.Errorf("currency insert id: %w", err)
	}
	return core.Currency{ID: id, IsoCode: isoCode}, nil
}

// CreateUser inserts a user and returns the assigned ID.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (name, currency_id, budget) VALUES (?, ?, ?)`,
		u.Name, u.Currency.ID, u.Budget.String())
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user insert id: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (core.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT u.id, u.name, u.budget, c.id, c.iso_code
		FROM users u JOIN currencies c ON c.id = u.currency_id
		WHERE u.id = ?`, id)

	var u core.User
	var budget string
	if err := row.Scan(&u.ID, &u.Name, &budget, &u.Currency.ID, &u.Currency.IsoCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.User{}, fmt.Errorf("user %d: %w", id, core.ErrNotFound)
		}
		return core.User{}, fmt.Errorf("get user %d: %w", id, err)
	}

	var err error
	if u.Budget, err = decimal.NewFromString(budget); err != nil {
		return core.User{}, fmt.Errorf("user %d budget %q: %w", id, budget, err)
	}
	return u, nil
}

func (r *SQLiteRepository) GetUserBudget(ctx context.Context, id int64) (decimal.Decimal, error) {
	u, err := r.GetUser(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return u.Budget, nil
}

func (r *SQLiteRepository) GetUserHomeCurrencyCode(ctx context.Context, id int64) (string, error) {
	u, err := r.GetUser(ctx, id)
	if err != nil {
		return "", err
	}
	return u.Currency.IsoCode, nil
}

// SaveBudget overwrites a user's stored budget.
func (r *SQLiteRepository) SaveBudget(ctx context.Context, userID int64, budget decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET budget = ? WHERE id = ?`, budget.String(), userID)
	if err != nil {
		return fmt.Errorf("save budget for user %d: %w", userID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("user %d: %w", userID, core.ErrNotFound)
	}
	return nil
}

// CreateOneTimeTransaction inserts a one-time transaction.
func (r *SQLiteRepository) CreateOneTimeTransaction(ctx context.Context, t core.OneTimeTransaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, fmt.Errorf("validate transaction: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO one_time_transactions (user_id, name, date, amount, currency_id, is_income, description)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.Name, t.Date.String(), t.Amount.String(), t.Currency.ID, t.IsIncome, t.Description)
	if err != nil {
		return 0, fmt.Errorf("create one-time transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("one-time transaction insert id: %w", err)
	}
	return id, nil
}

// CreateRecurringTransaction inserts a recurring template. A zero
// NextPaymentDate starts the cursor at the first payment date.
func (r *SQLiteRepository) CreateRecurringTransaction(ctx context.Context, t core.RecurringTransaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, fmt.Errorf("validate recurring transaction: %w", err)
	}
	if t.NextPaymentDate.IsZero() {
		t.NextPaymentDate = t.FirstPaymentDate
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_transactions
			(user_id, name, amount, currency_id, is_income, interval,
			 first_payment_date, next_payment_date, final_payment_date, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.Name, t.Amount.String(), t.Currency.ID, t.IsIncome, string(t.Interval),
		t.FirstPaymentDate.String(), t.NextPaymentDate.String(), t.FinalPaymentDate.String(), t.Description)
	if err != nil {
		return 0, fmt.Errorf("create recurring transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("recurring transaction insert id: %w", err)
	}
	return id, nil
}

// GetOneTimeTransactionsInRange returns a user's one-time transactions with
// dates in [start, end], ordered by date.
func (r *SQLiteRepository) GetOneTimeTransactionsInRange(ctx context.Context, userID int64, start, end core.Date) ([]core.OneTimeTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+oneTimeColumns+`
		FROM one_time_transactions t JOIN currencies c ON c.id = t.currency_id
		WHERE t.user_id = ? AND t.date >= ? AND t.date <= ?
		ORDER BY t.date`,
		userID, start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("one-time transactions in range: %w", err)
	}
	defer rows.Close()
	return scanOneTimeRows(rows)
}

// GetActiveRecurringTransactions returns a user's templates whose cursor can
// still produce occurrences no later than end.
func (r *SQLiteRepository) GetActiveRecurringTransactions(ctx context.Context, userID int64, start, end core.Date) ([]core.RecurringTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recurringColumns+`
		FROM recurring_transactions t JOIN currencies c ON c.id = t.currency_id
		WHERE t.user_id = ?
		  AND t.next_payment_date <= ?
		  AND t.next_payment_date <= t.final_payment_date
		ORDER BY t.next_payment_date`,
		userID, end.String())
	if err != nil {
		return nil, fmt.Errorf("active recurring transactions: %w", err)
	}
	defer rows.Close()
	return scanRecurringRows(rows)
}

// GetNextOneTimeTransaction returns the user's earliest one-time transaction
// strictly after the given date with the matching income flag, or nil.
func (r *SQLiteRepository) GetNextOneTimeTransaction(ctx context.Context, userID int64, after core.Date, isIncome bool) (*core.OneTimeTransaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+oneTimeColumns+`
		FROM one_time_transactions t JOIN currencies c ON c.id = t.currency_id
		WHERE t.user_id = ? AND t.date > ? AND t.is_income = ?
		ORDER BY t.date LIMIT 1`,
		userID, after.String(), isIncome)

	t, err := scanOneTimeRow(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("next one-time transaction: %w", err)
	}
	return &t, nil
}

// GetNextRecurringTransaction returns the user's active template with the
// earliest next payment strictly after the given date and the matching
// income flag, or nil.
func (r *SQLiteRepository) GetNextRecurringTransaction(ctx context.Context, userID int64, after core.Date, isIncome bool) (*core.RecurringTransaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recurringColumns+`
		FROM recurring_transactions t JOIN currencies c ON c.id = t.currency_id
		WHERE t.user_id = ? AND t.next_payment_date > ? AND t.is_income = ?
		  AND t.next_payment_date <= t.final_payment_date
		ORDER BY t.next_payment_date LIMIT 1`,
		userID, after.String(), isIncome)

	t, err := scanRecurringRow(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("next recurring transaction: %w", err)
	}
	return &t, nil
}

// SumOneTimeAmounts totals a user's stored one-time amounts with the given
// income flag over [start, end]. Amounts are summed as stored, without
// currency conversion.
func (r *SQLiteRepository) SumOneTimeAmounts(ctx context.Context, userID int64, start, end core.Date, isIncome bool) (decimal.Decimal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT amount FROM one_time_transactions
		WHERE user_id = ? AND date >= ? AND date <= ? AND is_income = ?`,
		userID, start.String(), end.String(), isIncome)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum one-time amounts: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, fmt.Errorf("scan amount: %w", err)
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("amount %q: %w", raw, err)
		}
		total = total.Add(amount)
	}
	return total, rows.Err()
}

// GetTransactionsDueOn returns every one-time transaction dated exactly day,
// across all users.
func (r *SQLiteRepository) GetTransactionsDueOn(ctx context.Context, day core.Date) ([]core.OneTimeTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+oneTimeColumns+`
		FROM one_time_transactions t JOIN currencies c ON c.id = t.currency_id
		WHERE t.date = ?
		ORDER BY t.user_id, t.id`,
		day.String())
	if err != nil {
		return nil, fmt.Errorf("transactions due on %s: %w", day, err)
	}
	defer rows.Close()
	return scanOneTimeRows(rows)
}

// GetDueRecurringTransactions returns every template whose cursor is due on
// or before day and has not passed its final payment date.
func (r *SQLiteRepository) GetDueRecurringTransactions(ctx context.Context, day core.Date) ([]core.RecurringTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recurringColumns+`
		FROM recurring_transactions t JOIN currencies c ON c.id = t.currency_id
		WHERE t.next_payment_date <= ?
		  AND t.next_payment_date <= t.final_payment_date
		ORDER BY t.user_id, t.id`,
		day.String())
	if err != nil {
		return nil, fmt.Errorf("due recurring transactions: %w", err)
	}
	defer rows.Close()
	return scanRecurringRows(rows)
}

// AdvanceRecurringCursor persists a template's new next-payment date.
func (r *SQLiteRepository) AdvanceRecurringCursor(ctx context.Context, id int64, next core.Date) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_transactions SET next_payment_date = ? WHERE id = ?`,
		next.String(), id)
	if err != nil {
		return fmt.Errorf("advance cursor for transaction %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("recurring transaction %d: %w", id, core.ErrNotFound)
	}
	return nil
}

// ApplySettlement writes one user's settlement outcome atomically: the new
// budget and every advanced recurrence cursor commit together or not at all.
func (r *SQLiteRepository) ApplySettlement(ctx context.Context, userID int64, budget decimal.Decimal, cursors []core.CursorAdvance) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settlement tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE users SET budget = ? WHERE id = ?`, budget.String(), userID)
	if err != nil {
		return fmt.Errorf("settle budget for user %d: %w", userID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("user %d: %w", userID, core.ErrNotFound)
	}

	for _, c := range cursors {
		if _, err := tx.ExecContext(ctx,
			`UPDATE recurring_transactions SET next_payment_date = ? WHERE id = ? AND user_id = ?`,
			c.NextPaymentDate.String(), c.TransactionID, userID); err != nil {
			return fmt.Errorf("advance cursor for transaction %d: %w", c.TransactionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settlement for user %d: %w", userID, err)
	}

	slog.DebugContext(ctx, "Settlement committed",
		"user_id", userID,
		"budget", budget.String(),
		"cursors_advanced", len(cursors))
	return nil
}

type scanFunc func(dest ...any) error

func scanOneTimeRow(scan scanFunc) (core.OneTimeTransaction, error) {
	var t core.OneTimeTransaction
	var date, amount string
	if err := scan(&t.ID, &t.UserID, &t.Name, &date, &amount, &t.IsIncome, &t.Description,
		&t.Currency.ID, &t.Currency.IsoCode); err != nil {
		return core.OneTimeTransaction{}, err
	}
	var err error
	if t.Date, err = core.ParseDate(date); err != nil {
		return core.OneTimeTransaction{}, fmt.Errorf("date %q: %w", date, err)
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.OneTimeTransaction{}, fmt.Errorf("amount %q: %w", amount, err)
	}
	return t, nil
}

func scanOneTimeRows(rows *sql.Rows) ([]core.OneTimeTransaction, error) {
	var out []core.OneTimeTransaction
	for rows.Next() {
		t, err := scanOneTimeRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanRecurringRow(scan scanFunc) (core.RecurringTransaction, error) {
	var t core.RecurringTransaction
	var amount, interval, first, next, final string
	if err := scan(&t.ID, &t.UserID, &t.Name, &amount, &t.IsIncome, &interval,
		&first, &next, &final, &t.Description, &t.Currency.ID, &t.Currency.IsoCode); err != nil {
		return core.RecurringTransaction{}, err
	}
	var err error
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("amount %q: %w", amount, err)
	}
	t.Interval = core.Period(interval)
	if t.FirstPaymentDate, err = core.ParseDate(first); err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("first payment date %q: %w", first, err)
	}
	if t.NextPaymentDate, err = core.ParseDate(next); err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("next payment date %q: %w", next, err)
	}
	if t.FinalPaymentDate, err = core.ParseDate(final); err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("final payment date %q: %w", final, err)
	}
	return t, nil
}

func scanRecurringRows(rows *sql.Rows) ([]core.RecurringTransaction, error) {
	var out []core.RecurringTransaction
	for rows.Next() {
		t, err := scanRecurringRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
