package core

import (
	"errors"
	"time"
)

// Date is a calendar day. The embedded time is always midnight UTC so dates
// compare and map cleanly regardless of where they were produced.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// Today returns the current calendar day.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (d Date) Equal(o Date) bool  { return d.Time.Equal(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }
func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

// AddDays returns the date n days later.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time.AddDate(0, 0, n))
}

// FirstOfMonth returns the first day of the date's month.
func (d Date) FirstOfMonth() Date {
	return NewDate(d.Year(), int(d.Month()), 1)
}

// LastOfMonth returns the last day of the date's month.
func (d Date) LastOfMonth() Date {
	return NewDate(d.Year(), int(d.Month())+1, 0)
}

func (d Date) String() string {
	return d.Time.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return errors.New("date must be a JSON string")
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
