package core

// Summary aggregates the active recurring items of a household.
type Summary struct {
	MonthlyTotal Money
	AnnualTotal  Money
	MemberOne    Money // member one's share of the monthly total
	MemberTwo    Money
	ActiveCount  int
	// SplitFallbacks counts items whose proportional split degraded to
	// equal because no income shares were configured.
	SplitFallbacks int
}

// Summarize filters the items to the active ones, projects each onto its
// monthly amount, and sums. The annual total is monthly*12. Empty input
// yields zero totals; whether that renders as an empty state is the
// presentation layer's decision. The sum is order-independent.
func Summarize(items []RecurringItem, bases Bases, h Household) (Summary, error) {
	var s Summary
	for _, it := range items {
		if !it.Active {
			continue
		}
		monthly, err := it.Monthly(bases)
		if err != nil {
			return Summary{}, err
		}
		split, err := Split(monthly, it.SplitMode, h)
		if err != nil {
			return Summary{}, err
		}
		s.MonthlyTotal.Cents += monthly.Cents
		s.MemberOne.Cents += split.MemberOne.Cents
		s.MemberTwo.Cents += split.MemberTwo.Cents
		if split.Fallback {
			s.SplitFallbacks++
		}
		s.ActiveCount++
	}
	s.AnnualTotal = Money{Cents: s.MonthlyTotal.Cents * 12}
	return s, nil
}

// ComputeBases derives the figures percentage-based provisions resolve
// against: the household's total declared income and what remains of it after
// the monthly cost of every active expense. The remainder never goes below
// zero. Expenses with an unrecognized frequency are skipped rather than
// poisoning the whole computation; they surface as errors where the item
// itself is evaluated.
func ComputeBases(items []RecurringItem, h Household) Bases {
	var b Bases
	for _, m := range h.Members {
		b.IncomeCents += m.IncomeCents
	}

	var committed int64
	for _, it := range items {
		if !it.Active || it.Kind != KindExpense {
			continue
		}
		monthly, err := NormalizeFrequency(it.Amount, it.Frequency)
		if err != nil {
			continue
		}
		committed += monthly.Cents
	}

	b.RemainderCents = b.IncomeCents - committed
	if b.RemainderCents < 0 {
		b.RemainderCents = 0
	}
	return b
}

// Progress returns a provision's completion ratio as a percentage clamped to
// [0,100]. Items without a target report zero.
func Progress(current Money, target *Money) float64 {
	if target == nil || target.Cents <= 0 {
		return 0
	}
	pct := float64(current.Cents) / float64(target.Cents) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
