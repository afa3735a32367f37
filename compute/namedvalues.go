package compute

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

// NamedValuesMap maps option names to values. Supported value types are string, int64, []int64, float32 and bool.
//
// It is used to configure contexts: each driver documents the options it understands and ignores the others.
type NamedValuesMap map[string]any

// Validate checks that all the values are of a supported type.
func (m NamedValuesMap) Validate() error {
	for key, anyValue := range m {
		switch anyValue.(type) {
		case string, int64, []int64, float32, bool:
		default:
			return errors.Errorf("option (NamedValuesMap) %q was set to unsupported type %T (value=%v). "+
				"Only values of type string, int64, []int64, float32 and bool are supported.",
				key, anyValue, anyValue)
		}
	}
	return nil
}

// Int64 returns the option as an int64, or defaultValue if it is not set or not an int64.
func (m NamedValuesMap) Int64(key string, defaultValue int64) int64 {
	if value, ok := m[key].(int64); ok {
		return value
	}
	return defaultValue
}

// Bool returns the option as a bool, or defaultValue if it is not set or not a bool.
func (m NamedValuesMap) Bool(key string, defaultValue bool) bool {
	if value, ok := m[key].(bool); ok {
		return value
	}
	return defaultValue
}

// String implements fmt.Stringer, with the keys sorted.
func (m NamedValuesMap) String() string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	s := "{"
	for ii, key := range keys {
		if ii > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s=%v", key, m[key])
	}
	return s + "}"
}
