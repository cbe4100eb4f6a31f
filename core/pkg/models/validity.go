package models

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

type ValidityUnit string

const (
	ValidityDays   ValidityUnit = "d"
	ValidityWeeks  ValidityUnit = "w"
	ValidityMonths ValidityUnit = "m"
	ValidityYears  ValidityUnit = "y"
)

// Validity is a calendar aware duration such as "2w" or "1y". A bare number counts days.
type Validity struct {
	Amount int
	Unit   ValidityUnit
}

var validityRegex = regexp.MustCompile(`^([0-9]+)([dwmy]?)$`)

func ParseValidity(expr string) (Validity, error) {
	matches := validityRegex.FindStringSubmatch(expr)
	if matches == nil {
		return Validity{}, fmt.Errorf("invalid validity expression '%s'", expr)
	}

	amount, err := strconv.Atoi(matches[1])
	if err != nil {
		return Validity{}, fmt.Errorf("invalid validity amount '%s': %w", matches[1], err)
	}

	if amount == 0 {
		return Validity{}, fmt.Errorf("validity must be positive")
	}

	unit := ValidityUnit(matches[2])
	if unit == "" {
		unit = ValidityDays
	}

	return Validity{Amount: amount, Unit: unit}, nil
}

// AddTo returns t moved forward by the validity, keeping the calendar day for months and years.
func (v Validity) AddTo(t time.Time) time.Time {
	switch v.Unit {
	case ValidityWeeks:
		return t.AddDate(0, 0, 7*v.Amount)
	case ValidityMonths:
		return t.AddDate(0, v.Amount, 0)
	case ValidityYears:
		return t.AddDate(v.Amount, 0, 0)
	default:
		return t.AddDate(0, 0, v.Amount)
	}
}

func (v Validity) String() string {
	return fmt.Sprintf("%d%s", v.Amount, v.Unit)
}
