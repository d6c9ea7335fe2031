// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for recurring-item dueness
// checking. Each frequency (monthly, quarterly, annual, fixed) has its own
// strategy encapsulating when an item should materialize a transaction.
package services

import (
	"fmt"
	"time"

	"bilancio/internal/core"
)

// DuenessChecker is the strategy interface for checking if a recurring item
// is due for materialization.
type DuenessChecker interface {
	// IsDue returns true if the item should materialize a transaction now,
	// given when it last did and its anchor start date.
	IsDue(lastMaterialized, now time.Time, startDate core.Date) bool
}

// MonthlyChecker materializes once per month on the anchor day.
type MonthlyChecker struct{}

func (MonthlyChecker) IsDue(lastMaterialized, now time.Time, startDate core.Date) bool {
	if lastMaterialized.IsZero() {
		return true
	}
	// Already materialized this month?
	if lastMaterialized.Year() == now.Year() && lastMaterialized.Month() == now.Month() {
		return false
	}
	return now.Day() >= clampDay(startDate.Day(), now)
}

// QuarterlyChecker materializes every third month from the anchor, on the
// anchor day. Unlike the other checkers it is anchored even on first run:
// a quarterly charge in a non-anchor month would land on the wrong month.
type QuarterlyChecker struct{}

func (QuarterlyChecker) IsDue(lastMaterialized, now time.Time, startDate core.Date) bool {
	if !lastMaterialized.IsZero() &&
		lastMaterialized.Year() == now.Year() && lastMaterialized.Month() == now.Month() {
		return false
	}
	months := (now.Year()-startDate.Year())*12 + int(now.Month()) - startDate.Month()
	if months < 0 || months%3 != 0 {
		return false
	}
	return now.Day() >= clampDay(startDate.Day(), now)
}

// AnnualChecker materializes once per year on the anchor month and day.
type AnnualChecker struct{}

func (AnnualChecker) IsDue(lastMaterialized, now time.Time, startDate core.Date) bool {
	if lastMaterialized.IsZero() {
		return true
	}
	// Already materialized this year?
	if lastMaterialized.Year() == now.Year() {
		return false
	}

	targetMonth := startDate.Month()
	if int(now.Month()) < targetMonth {
		return false
	}
	if int(now.Month()) == targetMonth {
		return now.Day() >= clampDay(startDate.Day(), now)
	}
	// Past the target month.
	return true
}

// FixedChecker materializes exactly once; the materializer deactivates the
// item afterwards.
type FixedChecker struct{}

func (FixedChecker) IsDue(lastMaterialized, _ time.Time, _ core.Date) bool {
	return lastMaterialized.IsZero()
}

// clampDay handles anchor days missing from the current month (e.g. the 31st
// in February) by clamping to the month's last day.
func clampDay(targetDay int, now time.Time) int {
	lastDayOfMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if targetDay > lastDayOfMonth {
		return lastDayOfMonth
	}
	return targetDay
}

// duenessStrategies maps frequencies to their checkers. The registry enables
// O(1) lookup and extension for new frequencies.
var duenessStrategies = map[core.Frequency]DuenessChecker{
	core.Monthly:   MonthlyChecker{},
	core.Quarterly: QuarterlyChecker{},
	core.Annual:    AnnualChecker{},
	core.Fixed:     FixedChecker{},
}

// GetDuenessChecker returns the checker for a frequency, or an error for
// unknown frequencies.
func GetDuenessChecker(frequency core.Frequency) (DuenessChecker, error) {
	checker, ok := duenessStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownFrequency, frequency)
	}
	return checker, nil
}

// RegisterDuenessChecker registers a custom checker for a frequency.
func RegisterDuenessChecker(frequency core.Frequency, checker DuenessChecker) {
	duenessStrategies[frequency] = checker
}
