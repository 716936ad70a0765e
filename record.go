package streampager

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type (
	// Record is a single row: column name to scalar value.
	Record = map[string]any

	// Page is an ordered slice of records fetched with one LIMIT/OFFSET query.
	// An empty page marks the end of a stream. Batches share the same shape.
	Page = []Record
)

// ToFloat64 converts a numeric scalar as returned by database drivers into a
// float64. DECIMAL columns commonly arrive as []byte or string.
func ToFloat64(v any) (float64, error) {
	switch vt := v.(type) {
	case float64:
		return vt, nil
	case float32:
		return float64(vt), nil
	case int:
		return float64(vt), nil
	case int8:
		return float64(vt), nil
	case int16:
		return float64(vt), nil
	case int32:
		return float64(vt), nil
	case int64:
		return float64(vt), nil
	case uint:
		return float64(vt), nil
	case uint8:
		return float64(vt), nil
	case uint16:
		return float64(vt), nil
	case uint32:
		return float64(vt), nil
	case uint64:
		return float64(vt), nil
	case []byte:
		return parseFloat(string(vt))
	case string:
		return parseFloat(vt)
	case nil:
		return 0, fmt.Errorf("cannot convert NULL to number")
	default:
		return 0, fmt.Errorf("cannot convert %T to number", v)
	}
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("cannot convert '%s' to number: %w", s, err)
	}

	return f, nil
}

// compareValues performs a three-way comparison of two scalars. Numbers are
// compared numerically, times chronologically and everything else as text.
func compareValues(a, b any) (int, error) {
	if a == nil || b == nil {
		return 0, fmt.Errorf("cannot compare NULL values")
	}

	if at, ok := a.(time.Time); ok {
		bt, ok := parseAnyValue(b).(time.Time)
		if !ok {
			return 0, fmt.Errorf("cannot compare time with %T", b)
		}
		return at.Compare(bt), nil
	}

	af, aErr := ToFloat64(a)
	bf, bErr := ToFloat64(b)
	if aErr == nil && bErr == nil {
		return cmp.Compare(af, bf), nil
	}

	return strings.Compare(scalarString(a), scalarString(b)), nil
}

func scalarString(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}

	return fmt.Sprint(v)
}
