package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Annual    Frequency = "annual"
	// Fixed marks a flat monthly charge whose nominal amount is already
	// the monthly amount.
	Fixed Frequency = "fixed"
)

const (
	BaseFixed            BaseCalculation = "fixed"
	BasePercentIncome    BaseCalculation = "percent_income"
	BasePercentRemainder BaseCalculation = "percent_remainder"
)

const (
	SplitEqual        SplitMode = "equal"
	SplitProportional SplitMode = "proportional"
	SplitMemberOne    SplitMode = "member1"
	SplitMemberTwo    SplitMode = "member2"
)

const (
	KindExpense   ItemKind = "expense"
	KindProvision ItemKind = "provision"
)

type (
	Frequency       string
	BaseCalculation string
	SplitMode       string
	ItemKind        string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Member is one of the two people sharing the household budget.
	Member struct {
		Name        string
		IncomeCents int64
	}

	// Household is the two-member configuration every split refers to.
	Household struct {
		Members [2]Member
	}

	// RecurringItem is a recurring household cost (rent, utility) or a
	// savings provision. The two concepts share the amortization and split
	// rules, so they live behind one type distinguished by Kind.
	RecurringItem struct {
		ID        int64 // Database ID for operations
		Kind      ItemKind
		Label     string
		Amount    Money
		Frequency Frequency // expenses: how often Amount is charged

		// Provision-only fields.
		BaseCalculation BaseCalculation
		Percentage      float64 // [0,100], percentage-based bases only
		FixedAmount     *Money  // BaseFixed only
		TargetAmount    *Money
		CurrentAmount   Money

		SplitMode SplitMode
		Active    bool
		StartDate Date // anchor for materialization
	}

	// Bases carries the caller-supplied figures percentage-based provisions
	// resolve against. How the remainder is computed is the caller's concern.
	Bases struct {
		IncomeCents    int64
		RemainderCents int64
	}

	// Transaction is a concrete charge for a month, either materialized from
	// a recurring item or imported from a bank statement.
	Transaction struct {
		ID           int64
		Date         Date
		Label        string
		Amount       Money
		MemberOne    Money
		MemberTwo    Money
		ItemID       *int64 // set when materialized from a recurring item
		ImportRef    string // set when imported from a statement
	}
)

var (
	ErrUnknownFrequency = errors.New("unknown frequency")
	ErrUnknownBase      = errors.New("unknown base calculation")
	ErrUnknownSplitMode = errors.New("unknown split mode")
	ErrUnknownKind      = errors.New("unknown item kind")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidPercent   = errors.New("percentage out of range")
	ErrEmptyLabel       = errors.New("empty label")
)

// NewDate creates a new Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (f Frequency) Validate() error {
	switch f {
	case Monthly, Quarterly, Annual, Fixed:
		return nil
	default:
		return ErrUnknownFrequency
	}
}

func (b BaseCalculation) Validate() error {
	switch b {
	case BaseFixed, BasePercentIncome, BasePercentRemainder:
		return nil
	default:
		return ErrUnknownBase
	}
}

func (m SplitMode) Validate() error {
	switch m {
	case SplitEqual, SplitProportional, SplitMemberOne, SplitMemberTwo:
		return nil
	default:
		return ErrUnknownSplitMode
	}
}

func (k ItemKind) Validate() error {
	switch k {
	case KindExpense, KindProvision:
		return nil
	default:
		return ErrUnknownKind
	}
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// IsProvision reports whether the item derives its monthly amount from a
// base calculation instead of a plain frequency.
func (it RecurringItem) IsProvision() bool {
	return it.Kind == KindProvision
}

func (it RecurringItem) Validate() error {
	if err := it.Kind.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(it.Label)) == 0 {
		return ErrEmptyLabel
	}
	if len(it.Label) > 200 {
		return errors.New("label too long (max 200 characters)")
	}
	if err := it.SplitMode.Validate(); err != nil {
		return err
	}

	switch it.Kind {
	case KindExpense:
		if err := it.Frequency.Validate(); err != nil {
			return err
		}
		if err := it.Amount.Validate(); err != nil {
			return err
		}
	case KindProvision:
		if err := it.BaseCalculation.Validate(); err != nil {
			return err
		}
		switch it.BaseCalculation {
		case BasePercentIncome, BasePercentRemainder:
			if it.Percentage < 0 || it.Percentage > 100 {
				return ErrInvalidPercent
			}
		}
	}

	if it.TargetAmount != nil {
		if err := it.TargetAmount.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects empty member names; incomes may be zero (a member without
// declared income simply cannot take part in proportional splits).
func (h Household) Validate() error {
	for _, m := range h.Members {
		if strings.TrimSpace(m.Name) == "" {
			return errors.New("member name cannot be empty")
		}
		if m.IncomeCents < 0 {
			return ErrInvalidAmount
		}
	}
	return nil
}
