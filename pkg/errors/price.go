package errors

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PriceLimitError reports an asked price above the markup ceiling. It carries the
// reference value and the computed maximum so callers can show the limit.
type PriceLimitError struct {
	FaceValue  decimal.Decimal
	Ceiling    decimal.Decimal
	MaxAllowed decimal.Decimal
	Asked      decimal.Decimal
}

func (e *PriceLimitError) Error() string {
	return fmt.Sprintf(
		"asked price %s exceeds the allowed limit: face value %s, maximum allowed (%s%%) %s",
		e.Asked.StringFixed(2),
		e.FaceValue.StringFixed(2),
		e.Ceiling.Mul(decimal.NewFromInt(100)).StringFixed(0),
		e.MaxAllowed.StringFixed(2),
	)
}
