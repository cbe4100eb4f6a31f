package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ValidationLevel is the provenance of a key, weakest first.
type ValidationLevel int

const (
	WeakChain ValidationLevel = iota
	ProviderTrust
)

var validationLevelNames = map[ValidationLevel]string{
	WeakChain:     "Weak_Chain",
	ProviderTrust: "Provider_Trust",
}

func (v ValidationLevel) String() string {
	if name, ok := validationLevelNames[v]; ok {
		return name
	}
	return validationLevelNames[WeakChain]
}

// ParseValidationLevel never fails: unknown provenance is Weak_Chain.
func ParseValidationLevel(s string) ValidationLevel {
	for level, name := range validationLevelNames {
		if name == s {
			return level
		}
	}
	return WeakChain
}

func (v ValidationLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

func (v *ValidationLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*v = ParseValidationLevel(s)
	return nil
}

func (v ValidationLevel) Value() (driver.Value, error) {
	return v.String(), nil
}

func (v *ValidationLevel) Scan(src any) error {
	switch value := src.(type) {
	case nil:
		*v = WeakChain
	case string:
		*v = ParseValidationLevel(value)
	case []byte:
		*v = ParseValidationLevel(string(value))
	default:
		return fmt.Errorf("unsupported validation level type %T", src)
	}
	return nil
}
