package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound(t *testing.T) {
	tests := []struct {
		v      float64
		places int32
		want   float64
	}{
		{2.65, 4, 2.65},
		{1.23456, 4, 1.2346},
		{0.125, 2, 0.12},
		{0.135, 2, 0.14},
		{-1.00049, 3, -1.0},
		{3, 3, 3},
		// Ties are decided on the stored binary value.
		{2.675, 2, 2.67},
		{1.00015, 4, 1.0001},
		{2.5, 0, 2},
		{3.5, 0, 4},
		{-0.0625, 3, -0.062},
		{1e20, 2, 1e20},
		{0, 4, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Round(tt.v, tt.places), "Round(%v, %d)", tt.v, tt.places)
	}

	assert.True(t, math.IsNaN(Round(math.NaN(), 3)))
	assert.True(t, math.IsInf(Round(math.Inf(1), 3), 1))
}

func TestExactDecimal(t *testing.T) {
	assert.Equal(t, "0.125", exactDecimal(0.125).String())
	assert.Equal(t, "2.67499999999999982236431605997495353221893310546875", exactDecimal(2.675).String())
	assert.Equal(t, "-1048576", exactDecimal(-1<<20).String())
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.99, Clamp(1.2, 0, 0.99))
	assert.Equal(t, -2.0, Clamp(-7, -2, 5))
	assert.Equal(t, 1.5, Clamp(1.5, 0, 3))
}
