package core

import "time"

// AddTo returns the occurrence date following d for this period. The advance
// is anchored at the first payment date rather than accumulated from d: for
// month- and year-based periods the result is anchor + n whole periods, with
// the day-of-month clamped to the target month's length. Advancing a monthly
// template anchored at Jan 31 therefore yields Feb 28 (or 29), Mar 31, Apr 30
// instead of drifting to the 28th forever.
func (p Period) AddTo(d, anchor Date) Date {
	switch p {
	case Daily:
		return d.AddDays(1)
	case Weekly:
		return d.AddDays(7)
	case Monthly:
		return addMonthsClamped(anchor, monthsBetween(anchor, d)+1)
	case Yearly:
		years := d.Year() - anchor.Year() + 1
		return addMonthsClamped(anchor, years*12)
	default:
		return d
	}
}

// monthsBetween counts whole calendar months from a to d, ignoring days.
// With a clamped occurrence date (anchor Jan 31, occurrence Feb 28) the day
// component would otherwise undercount the elapsed periods.
func monthsBetween(a, d Date) int {
	return (d.Year()-a.Year())*12 + int(d.Month()) - int(a.Month())
}

func addMonthsClamped(anchor Date, months int) Date {
	first := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	day := anchor.Day()
	if last := NewDate(first.Year(), int(first.Month()), 1).LastOfMonth().Day(); day > last {
		day = last
	}
	return NewDate(first.Year(), int(first.Month()), day)
}
