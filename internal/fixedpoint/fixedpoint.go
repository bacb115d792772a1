// Package fixedpoint converts decimal GPA values into the integer domain the
// proof system operates on. The circuit works over field elements, so any
// floating point mismatch between prover and verifier inputs would invalidate
// the proof; scaling by 100 and truncating keeps both sides in exact integer
// arithmetic.
package fixedpoint

import (
	"fmt"
	"math"
)

const (
	// Factor is the fixed-point scaling factor: two decimal places.
	Factor = 100
	// MaxValue is the ceiling of the supported grade scale (10-point GPA).
	MaxValue = 10.0
)

// RangeError is returned when a decimal value falls outside [0, 10].
type RangeError struct {
	Value float64
}

// Error satisfies the error interface for RangeError
func (e *RangeError) Error() string {
	return fmt.Sprintf("value %v out of range [0, %v]", e.Value, MaxValue)
}

// Scale converts a decimal score in [0.00, 10.00] to its integer representation.
// Truncation, not rounding: Scale(7.499) is 749. Boundary pass/fail outcomes
// depend on this. The epsilon compensates for binary representation error so
// that every two-decimal input maps to its exact integer (8.29 -> 829, even
// though 8.29*100 is 828.999... in float64).
func Scale(v float64) (int64, error) {
	if v < 0 || v > MaxValue {
		return 0, &RangeError{Value: v}
	}
	return int64(math.Floor(v*Factor + 1e-9)), nil
}

// Unscale converts a scaled integer back to its decimal form.
func Unscale(s int64) float64 {
	return float64(s) / Factor
}
