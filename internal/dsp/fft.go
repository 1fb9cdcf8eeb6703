package dsp

import (
	"math"
	"math/cmplx"
)

// fft computes the discrete Fourier transform of x using the iterative
// Cooley-Tukey radix-2 algorithm. Inputs not already a power of two are
// zero-padded up to the next one. No FFT library appears anywhere in the
// retrieval pack; every audio-analysis example that needs one (the
// djbot onset detector, the sidechain fingerprinter) hand-rolls this same
// routine against math/cmplx, so that is the grounded idiom here too.
func fft(x []complex128) []complex128 {
	n := len(x)
	if n&(n-1) != 0 {
		padded := make([]complex128, nextPow2(n))
		copy(padded, x)
		x = padded
		n = len(x)
	}
	if n <= 1 {
		out := make([]complex128, n)
		copy(out, x)
		return out
	}

	out := make([]complex128, n)
	copy(out, x)

	// Bit-reversal permutation.
	j := 0
	for i := 0; i < n-1; i++ {
		if i < j {
			out[i], out[j] = out[j], out[i]
		}
		m := n >> 1
		for j >= m && m > 0 {
			j -= m
			m >>= 1
		}
		j += m
	}

	for size := 2; size <= n; size <<= 1 {
		half := size >> 1
		step := -2 * math.Pi / float64(size)
		wLen := complex(math.Cos(step), math.Sin(step))
		for i := 0; i < n; i += size {
			w := complex(1, 0)
			for k := 0; k < half; k++ {
				u := out[i+k]
				v := out[i+k+half] * w
				out[i+k] = u + v
				out[i+k+half] = u - v
				w *= wLen
			}
		}
	}
	return out
}

func nextPow2(n int) int {
	v := 1
	for v < n {
		v <<= 1
	}
	return v
}

// magnitudes returns |X[k]| for k in [0, n/2] (the non-redundant half of
// the spectrum of a real-valued signal of length n).
func magnitudes(spec []complex128, n int) []float64 {
	half := n/2 + 1
	mag := make([]float64, half)
	for i := 0; i < half && i < len(spec); i++ {
		mag[i] = cmplx.Abs(spec[i])
	}
	return mag
}
