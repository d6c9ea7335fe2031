package core

// SplitResult is the two-way breakdown of a monthly amount. MemberOne plus
// MemberTwo always reconstructs the input amount exactly: the computation
// assigns the remainder cent instead of losing it.
type SplitResult struct {
	MemberOne Money
	MemberTwo Money
	// Fallback is set when a proportional split was requested without
	// usable income shares and the equal split was applied instead. This is
	// a configuration warning for the caller, not an error: the displayed
	// figures stay correct, only the policy degraded.
	Fallback bool
}

// Total returns the reconstructed amount.
func (s SplitResult) Total() Money {
	return Money{Cents: s.MemberOne.Cents + s.MemberTwo.Cents}
}

// Split divides a monthly amount between the two household members according
// to the split mode. For SplitProportional the members' declared incomes act
// as shares; when both are zero (or unset) the split degrades to equal and
// the result is flagged. An unrecognized mode is rejected.
func Split(amount Money, mode SplitMode, h Household) (SplitResult, error) {
	switch mode {
	case SplitEqual:
		return splitEqual(amount), nil
	case SplitProportional:
		income1 := h.Members[0].IncomeCents
		income2 := h.Members[1].IncomeCents
		total := income1 + income2
		if total <= 0 {
			res := splitEqual(amount)
			res.Fallback = true
			return res, nil
		}
		// Member one gets the rounded proportional share, member two the
		// exact remainder, so the parts always sum back to the amount.
		one := divRound(amount.Cents*income1, total)
		return SplitResult{
			MemberOne: Money{Cents: one},
			MemberTwo: Money{Cents: amount.Cents - one},
		}, nil
	case SplitMemberOne:
		return SplitResult{MemberOne: amount}, nil
	case SplitMemberTwo:
		return SplitResult{MemberTwo: amount}, nil
	default:
		return SplitResult{}, ErrUnknownSplitMode
	}
}

// splitEqual halves the amount, odd cent to member one.
func splitEqual(amount Money) SplitResult {
	half := amount.Cents / 2
	return SplitResult{
		MemberOne: Money{Cents: amount.Cents - half},
		MemberTwo: Money{Cents: half},
	}
}
