package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultToleranceMinorUnits absorbs rounding noise in source spreadsheets.
const DefaultToleranceMinorUnits = 0.5

// DiscrepancyWarning reports a computed balance that does not match the one
// stated by the source document. It never blocks an import or a close.
type DiscrepancyWarning struct {
	Computed decimal.Decimal
	Expected decimal.Decimal
	Delta    decimal.Decimal // Computed - Expected
}

func (w *DiscrepancyWarning) Error() string {
	return fmt.Sprintf("balance discrepancy: computed %s, expected %s (delta %s)",
		w.Computed.StringFixed(2), w.Expected.StringFixed(2), w.Delta.StringFixed(2))
}

// Validator compares computed balances with externally supplied ones.
type Validator struct {
	epsilon decimal.Decimal
}

// NewValidator builds a validator tolerating differences up to the given
// number of minor units of a currency with the given number of decimals.
func NewValidator(toleranceMinorUnits float64, decimals int32) Validator {
	return Validator{
		epsilon: decimal.NewFromFloat(toleranceMinorUnits).Shift(-decimals),
	}
}

// DefaultValidator tolerates half a cent.
func DefaultValidator() Validator {
	return NewValidator(DefaultToleranceMinorUnits, 2)
}

// Epsilon is the largest tolerated absolute difference, in major units.
func (v Validator) Epsilon() decimal.Decimal {
	return v.epsilon
}

// Validate returns nil when the balances agree within epsilon.
func (v Validator) Validate(computed, expected decimal.Decimal) *DiscrepancyWarning {
	delta := computed.Sub(expected)
	if delta.Abs().LessThanOrEqual(v.epsilon) {
		return nil
	}

	return &DiscrepancyWarning{Computed: computed, Expected: expected, Delta: delta}
}
