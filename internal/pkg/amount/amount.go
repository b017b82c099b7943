// Package amount converts between smallest-unit ledger integers and their
// decimal text form. Conversions are exact: nothing is ever rounded.
package amount

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/archon-research/stl-market/internal/domain/entity"
)

// DefaultMinDisplay is the smallest amount rendered for a positive value.
var DefaultMinDisplay = decimal.New(1, -6)

// Format renders value, expressed in units of 10^-decimals, as a decimal
// string with trailing zeros removed.
//
// Zero renders as "0". Any non-zero magnitude at or below minDisplay renders
// as minDisplay so that a tiny positive price never reads as free.
func Format(value *big.Int, decimals int32, minDisplay decimal.Decimal) string {
	if value == nil || value.Sign() == 0 {
		return "0"
	}
	d := decimal.NewFromBigInt(value, -decimals)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	if minDisplay.IsPositive() && d.LessThanOrEqual(minDisplay) {
		return sign + minDisplay.String()
	}
	return sign + d.String()
}

// Parse converts decimal text into smallest units. Negative amounts and
// amounts with more than decimals fractional digits are rejected with
// entity.ErrOutOfRange.
func Parse(text string, decimals int32) (*big.Int, error) {
	text = strings.TrimSpace(text)
	d, err := decimal.NewFromString(text)
	if err != nil {
		return nil, fmt.Errorf("parsing amount %q: %w", text, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount %s is negative: %w", text, entity.ErrOutOfRange)
	}
	units := d.Shift(decimals)
	if !units.IsInteger() {
		return nil, fmt.Errorf("amount %s has more than %d decimal places: %w", text, decimals, entity.ErrOutOfRange)
	}
	return units.BigInt(), nil
}

// Units returns one whole token in smallest units.
func Units(decimals int32) *big.Int {
	return decimal.New(1, decimals).BigInt()
}
