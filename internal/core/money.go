// Package core holds the domain model: users, currencies, transactions,
// calendar dates and the recurrence period rules.
//
// Amounts are decimal.Decimal throughout. Stored transaction amounts are
// positive with at most two fractional digits; the sign is applied during
// normalization (expenses negative) and conversion results are rounded back
// to two digits.
package core

import "github.com/shopspring/decimal"

// ValidateAmount checks the stored-amount invariant: strictly positive with
// at most two fractional digits.
func ValidateAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return ErrInvalidAmount
	}
	if d.Exponent() < -2 {
		return ErrInvalidAmount
	}
	return nil
}
