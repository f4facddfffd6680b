package models

import (
	"math"
	"strconv"
	"strings"
)

// ParseInt coerces a raw numeric field to an integer. Decimal text is
// accepted only when it has no fractional part.
func ParseInt(field, raw string) (int, error) {
	text := strings.TrimSpace(raw)
	if n, err := strconv.Atoi(text); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, &InvalidNumericValueError{Field: field, Raw: raw}
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, &InvalidNumericValueError{Field: field, Raw: raw}
	}
	return int(f), nil
}

// ParseFloat coerces a raw numeric field to a finite real.
func ParseFloat(field, raw string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &InvalidNumericValueError{Field: field, Raw: raw}
	}
	return f, nil
}
