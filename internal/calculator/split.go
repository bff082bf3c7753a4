package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Share is one member's computed portion of an expense.
type Share struct {
	UserID     string
	Amount     decimal.Decimal
	Percentage decimal.NullDecimal
}

// PercentageInput is a caller-supplied percentage for one member.
type PercentageInput struct {
	UserID     string
	Percentage decimal.Decimal
}

// EqualSplit divides amount across members in their given order.
//
// Each share is amount/len(members) rounded down to places fractional
// digits; the leftover minor units are handed out one at a time starting
// from the first member. Every share is therefore within one minor unit of
// the exact quotient and the shares sum to amount exactly.
func EqualSplit(amount decimal.Decimal, members []string, places int32) ([]Share, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("must have at least one member")
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive")
	}

	n := decimal.NewFromInt(int64(len(members)))
	base := amount.Div(n).RoundDown(places)
	unit := decimal.New(1, -places)

	// Remainder in minor units; always < len(members).
	remainder := amount.Sub(base.Mul(n)).Div(unit).IntPart()

	shares := make([]Share, len(members))
	for i, userID := range members {
		share := base
		if int64(i) < remainder {
			share = share.Add(unit)
		}
		shares[i] = Share{UserID: userID, Amount: share}
	}
	return shares, nil
}

// PercentageSplit computes each member's amount as amount × pct / 100,
// rounded to places digits. Percentages must each be positive and sum to 100.
// Rounding drift is absorbed by the last share so the shares sum to amount.
func PercentageSplit(amount decimal.Decimal, inputs []PercentageInput, places int32) ([]Share, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("must have at least one member")
	}

	total := decimal.Zero
	for _, in := range inputs {
		if !in.Percentage.IsPositive() {
			return nil, fmt.Errorf("percentage for %s must be positive", in.UserID)
		}
		total = total.Add(in.Percentage)
	}
	if !total.Equal(hundred) {
		return nil, fmt.Errorf("percentages must sum to 100, got %s", total)
	}

	shares := make([]Share, len(inputs))
	allocated := decimal.Zero
	for i, in := range inputs {
		share := amount.Mul(in.Percentage).Div(hundred).Round(places)
		if i == len(inputs)-1 {
			share = amount.Sub(allocated)
		}
		allocated = allocated.Add(share)
		shares[i] = Share{
			UserID:     in.UserID,
			Amount:     share,
			Percentage: decimal.NewNullDecimal(in.Percentage),
		}
	}
	return shares, nil
}
