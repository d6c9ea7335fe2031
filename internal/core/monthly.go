// Package core holds the household budget domain: recurring items, money
// amounts in cents, and the pure amortization and split calculations the
// handlers and workers render from.
//
// This file projects a recurring item onto its monthly-equivalent amount.
// Everything here is a pure function of its inputs; callers run these inside
// request handling with data already in memory.
package core

// NormalizeFrequency maps a nominal amount and its charge frequency to the
// canonical monthly amount. Quarterly and annual amounts are divided with
// half-up rounding on the cent. An unrecognized frequency is an error, never
// a silent default: a coerced frequency would misstate the household's
// figures.
func NormalizeFrequency(amount Money, freq Frequency) (Money, error) {
	switch freq {
	case Monthly, Fixed:
		return amount, nil
	case Quarterly:
		return Money{Cents: divRound(amount.Cents, 3)}, nil
	case Annual:
		return Money{Cents: divRound(amount.Cents, 12)}, nil
	default:
		return Money{}, ErrUnknownFrequency
	}
}

// ResolveBase derives a provision's monthly contribution from its base
// calculation. The result is clamped at zero: a provision never displays a
// negative contribution, even when the fixed amount or the remainder base is
// negative.
func ResolveBase(base BaseCalculation, fixedAmount *Money, percentage float64, bases Bases) (Money, error) {
	var cents int64
	switch base {
	case BaseFixed:
		if fixedAmount != nil {
			cents = fixedAmount.Cents
		}
	case BasePercentIncome:
		cents = percentOf(bases.IncomeCents, percentage)
	case BasePercentRemainder:
		cents = percentOf(bases.RemainderCents, percentage)
	default:
		return Money{}, ErrUnknownBase
	}
	if cents < 0 {
		cents = 0
	}
	return Money{Cents: cents}, nil
}

// Monthly returns the item's monthly-equivalent amount: frequency
// normalization for expenses, base resolution for provisions.
func (it RecurringItem) Monthly(bases Bases) (Money, error) {
	switch it.Kind {
	case KindExpense:
		return NormalizeFrequency(it.Amount, it.Frequency)
	case KindProvision:
		return ResolveBase(it.BaseCalculation, it.FixedAmount, it.Percentage, bases)
	default:
		return Money{}, ErrUnknownKind
	}
}

// divRound divides cents by d with half-up rounding. d must be positive.
func divRound(cents, d int64) int64 {
	if cents < 0 {
		return -((-cents + d/2) / d)
	}
	return (cents + d/2) / d
}

// percentOf computes base*pct/100 in cents with half-up rounding.
func percentOf(base int64, pct float64) int64 {
	v := float64(base) * pct / 100
	if v < 0 {
		return int64(v - 0.5)
	}
	return int64(v + 0.5)
}
