// Package currency converts transaction amounts between currencies using
// exchange rates from the NBP (Narodowy Bank Polski) public API.
//
// Rate lookups are blocking I/O and can fail; callers treat a ConversionError
// as recoverable and skip the affected transaction rather than aborting.
package currency

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrRateUnavailable signals that no exchange rate could be obtained for a
// currency code.
var ErrRateUnavailable = errors.New("exchange rate unavailable")

// ConversionError is the typed, recoverable failure of a single conversion.
type ConversionError struct {
	From string
	To   string
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s to %s: %v", e.From, e.To, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Converter converts an amount between two ISO currency codes. The result is
// rounded to two fractional digits.
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}
