package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Currency is the only currency the service moves money in.
const Currency = money.GBP

var ErrInvalidAmount = errors.New("invalid amount")

// Pence is an amount in minor units of Currency
type Pence int64

func (p Pence) ToMoney() *money.Money {
	return money.New(int64(p), Currency)
}

func (p Pence) String() string {
	return p.ToMoney().Display()
}

// ParsePounds parses a human entered amount like "25", "25.5" or "£25.50"
// into pence. Amounts with more than two decimal places are rejected rather
// than rounded.
func ParsePounds(s string) (Pence, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "£"))
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	fraction := money.GetCurrency(Currency).Fraction
	minor := d.Shift(int32(fraction))
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidAmount, s, fraction)
	}
	if !minor.IsPositive() {
		return 0, fmt.Errorf("%w: %q must be greater than zero", ErrInvalidAmount, s)
	}

	return Pence(minor.IntPart()), nil
}
