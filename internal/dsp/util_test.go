package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampDBClampsToSymmetricBound(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 12.0, clampDB(20, 12))
	assert.Equal(t, -12.0, clampDB(-20, 12))
	assert.Equal(t, 5.0, clampDB(5, 12))
}

func TestDBToLinearRoundTripsWithLinearToDB(t *testing.T) {
	t.Parallel()

	for _, db := range []float64{-20, -6, 0, 6, 12} {
		linear := dbToLinear(db)
		back := linearToDB(linear)
		assert.InDelta(t, db, back, 1e-9)
	}
}

func TestLinearToDBOfZeroOrNegativeReturnsVeryLargeNegative(t *testing.T) {
	t.Parallel()

	assert.Equal(t, -math.MaxFloat64, linearToDB(0))
	assert.Equal(t, -math.MaxFloat64, linearToDB(-1))
}

func TestCos2piAtIntegerPeriodsIsOne(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, cos2pi(0), 1e-9)
	assert.InDelta(t, 1.0, cos2pi(1), 1e-9)
	assert.InDelta(t, -1.0, cos2pi(0.5), 1e-9)
}
