package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseValidity(t *testing.T) {
	tests := []struct {
		input    string
		expected Validity
		wantErr  bool
	}{
		{input: "1d", expected: Validity{Amount: 1, Unit: ValidityDays}},
		{input: "10", expected: Validity{Amount: 10, Unit: ValidityDays}},
		{input: "2w", expected: Validity{Amount: 2, Unit: ValidityWeeks}},
		{input: "6m", expected: Validity{Amount: 6, Unit: ValidityMonths}},
		{input: "1y", expected: Validity{Amount: 1, Unit: ValidityYears}},
		{input: "2xw", wantErr: true},
		{input: "", wantErr: true},
		{input: "y", wantErr: true},
		{input: "-1d", wantErr: true},
		{input: "0y", wantErr: true},
		{input: "1h", wantErr: true},
		{input: " 1y", wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			v, err := ParseValidity(test.input)
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, test.expected, v)
		})
	}
}

func TestValidityAddTo(t *testing.T) {
	base := time.Date(2024, time.January, 31, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		validity Validity
		expected time.Time
	}{
		{validity: Validity{Amount: 3, Unit: ValidityDays}, expected: time.Date(2024, time.February, 3, 12, 0, 0, 0, time.UTC)},
		{validity: Validity{Amount: 2, Unit: ValidityWeeks}, expected: time.Date(2024, time.February, 14, 12, 0, 0, 0, time.UTC)},
		{validity: Validity{Amount: 2, Unit: ValidityMonths}, expected: time.Date(2024, time.March, 31, 12, 0, 0, 0, time.UTC)},
		{validity: Validity{Amount: 1, Unit: ValidityYears}, expected: time.Date(2025, time.January, 31, 12, 0, 0, 0, time.UTC)},
	}

	for _, test := range tests {
		t.Run(test.validity.String(), func(t *testing.T) {
			assert.Equal(t, test.expected, test.validity.AddTo(base))
		})
	}
}
