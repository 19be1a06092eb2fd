package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
	Yearly  Period = "yearly"
)

type (
	// Period is the recurrence rule of a recurring transaction.
	Period string

	// Currency is immutable reference data shared by users and transactions.
	Currency struct {
		ID      int64
		IsoCode string // 3-letter ISO 4217 code
	}

	// User owns transactions and a stored budget denominated in the home
	// currency. Budget is mutated only by the settlement job and explicit
	// adjustments, never by the projection path.
	User struct {
		ID       int64
		Name     string
		Currency Currency
		Budget   decimal.Decimal
	}

	// OneTimeTransaction is a single money movement on one calendar day.
	OneTimeTransaction struct {
		ID          int64
		UserID      int64
		Name        string
		Date        Date
		Amount      decimal.Decimal // positive, at most 2 fractional digits
		Currency    Currency
		IsIncome    bool
		Description string
	}

	// RecurringTransaction is a template that materializes into occurrences.
	// NextPaymentDate is a cursor advanced only by the settlement job.
	RecurringTransaction struct {
		ID               int64
		UserID           int64
		Name             string
		Amount           decimal.Decimal
		Currency         Currency
		IsIncome         bool
		Interval         Period
		FirstPaymentDate Date
		NextPaymentDate  Date
		FinalPaymentDate Date
		Description      string
	}

	// TransactionBudgetInfo is a normalized transaction: signed amount in the
	// user's home currency. Transient, never persisted.
	TransactionBudgetInfo struct {
		Name     string          `json:"name"`
		Date     Date            `json:"date"`
		Amount   decimal.Decimal `json:"amount"`
		IsIncome bool            `json:"isIncome"`
		Currency string          `json:"currency"`
	}

	// SinglePlotData is one point of the projected balance series.
	SinglePlotData struct {
		Date    Date            `json:"date"`
		Balance decimal.Decimal `json:"balance"`
	}

	// CursorAdvance records a settled template's new next-payment date,
	// persisted together with the owner's budget update.
	CursorAdvance struct {
		TransactionID   int64
		NextPaymentDate Date
	}
)

var (
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyName       = errors.New("empty name")
	ErrInvalidPeriod   = errors.New("invalid period")
)

func (p Period) Validate() error {
	switch p {
	case Daily, Weekly, Monthly, Yearly:
		return nil
	default:
		return ErrInvalidPeriod
	}
}

func (t OneTimeTransaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Name)) == 0 {
		return ErrEmptyName
	}
	return ValidateAmount(t.Amount)
}

func (t RecurringTransaction) Validate() error {
	if len(strings.TrimSpace(t.Name)) == 0 {
		return ErrEmptyName
	}
	if err := ValidateAmount(t.Amount); err != nil {
		return err
	}
	if err := t.Interval.Validate(); err != nil {
		return err
	}
	if err := t.FirstPaymentDate.Validate(); err != nil {
		return errors.New("invalid first payment date: " + err.Error())
	}
	if err := t.FinalPaymentDate.Validate(); err != nil {
		return errors.New("invalid final payment date: " + err.Error())
	}
	if t.FinalPaymentDate.Before(t.FirstPaymentDate) {
		return errors.New("final payment date must not precede first payment date")
	}
	if !t.NextPaymentDate.IsZero() && t.NextPaymentDate.Before(t.FirstPaymentDate) {
		return errors.New("next payment date must not precede first payment date")
	}
	return nil
}

// Active reports whether the template can still produce occurrences.
// Once the cursor passes the final payment date the template is dormant.
func (t RecurringTransaction) Active() bool {
	return !t.NextPaymentDate.After(t.FinalPaymentDate)
}

// Occurrences returns the ordered occurrence dates from the template's current
// cursor up to and including min(until, FinalPaymentDate). The advance rule is
// anchored at FirstPaymentDate so variable-length periods do not drift.
func (t RecurringTransaction) Occurrences(until Date) []Date {
	var dates []Date
	d := t.NextPaymentDate
	for !d.After(until) && !d.After(t.FinalPaymentDate) {
		dates = append(dates, d)
		d = t.Interval.AddTo(d, t.FirstPaymentDate)
	}
	return dates
}
