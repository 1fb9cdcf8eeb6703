package dsp

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFFTZeroPadsToPowerOfTwo(t *testing.T) {
	t.Parallel()

	in := make([]complex128, 10)
	out := fft(in)
	assert.Equal(t, 16, len(out), "length-10 input must be zero-padded to the next power of two (16)")
}

func TestFFTOfDCSignalConcentratesAtBinZero(t *testing.T) {
	t.Parallel()

	n := 64
	in := make([]complex128, n)
	for i := range in {
		in[i] = complex(1, 0)
	}
	out := fft(in)

	require.Len(t, out, n)
	assert.InDelta(t, float64(n), real(out[0]), 1e-6)
	for k := 1; k < n; k++ {
		assert.InDelta(t, 0, cmplx.Abs(out[k]), 1e-6, "DC input must carry zero energy outside bin 0, got bin %d", k)
	}
}

func TestFFTOfSingleToneConcentratesAtExpectedBin(t *testing.T) {
	t.Parallel()

	n := 64
	bin := 5
	in := make([]complex128, n)
	for i := range in {
		in[i] = complex(math.Cos(2*math.Pi*float64(bin)*float64(i)/float64(n)), 0)
	}
	mags := magnitudes(fft(in), n)

	maxIdx := 0
	for i, m := range mags {
		if m > mags[maxIdx] {
			maxIdx = i
		}
	}
	assert.Equal(t, bin, maxIdx, "a pure cosine at bin %d must peak at bin %d in the magnitude spectrum", bin, bin)
}

func TestNextPow2(t *testing.T) {
	t.Parallel()

	tests := map[int]int{1: 1, 2: 2, 3: 4, 4: 4, 5: 8, 1023: 1024, 1024: 1024}
	for in, want := range tests {
		assert.Equal(t, want, nextPow2(in), "nextPow2(%d)", in)
	}
}
