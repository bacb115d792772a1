package fixedpoint_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altf4-games/credshield-node/internal/fixedpoint"
)

func TestScale(t *testing.T) {
	type testcase struct {
		name     string
		value    float64
		expected int64
	}
	testcases := []testcase{
		{name: "zero", value: 0, expected: 0},
		{name: "ceiling", value: 10.0, expected: 1000},
		{name: "two decimals", value: 8.5, expected: 850},
		{name: "threshold", value: 7.0, expected: 700},
		{name: "truncates, never rounds", value: 7.499, expected: 749},
		{name: "truncates third decimal", value: 9.999, expected: 999},
		{name: "single decimal stays exact", value: 6.1, expected: 610},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := fixedpoint.Scale(tc.value)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestScaleOutOfRange(t *testing.T) {
	for _, v := range []float64{-0.01, -1, 10.01, 42} {
		_, err := fixedpoint.Scale(v)
		var rangeErr *fixedpoint.RangeError
		require.ErrorAs(t, err, &rangeErr)
		assert.Equal(t, v, rangeErr.Value)
	}
}

func TestUnscale(t *testing.T) {
	assert.Equal(t, 7.49, fixedpoint.Unscale(749))
	assert.Equal(t, 0.0, fixedpoint.Unscale(0))
	assert.Equal(t, 10.0, fixedpoint.Unscale(1000))
}

func TestScaleTwoDecimalValuesExact(t *testing.T) {
	// For every representable two-decimal value the scaled integer must be
	// exact, despite float64 representation error in the input.
	for cents := int64(0); cents <= 1000; cents++ {
		got, err := fixedpoint.Scale(float64(cents) / 100)
		require.NoError(t, err)
		assert.Equal(t, cents, got)
	}
}
