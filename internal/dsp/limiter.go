package dsp

import (
	"math"

	"github.com/auralis/auralis/internal/audio"
)

// applyLimiter is the brick-wall peak limiter: it computes a sliding-
// window maximum of the absolute sample value (not a sample-by-sample
// scan reacting only to the current sample) and derives a gain envelope
// that never lets the windowed peak exceed the ceiling. The window
// covers the limiter's lookahead span so the gain reduction begins
// before the peak itself, avoiding audible overshoot. The envelope seeds
// from the tail of the previous chunk so limiting stays continuous
// across chunk boundaries.
func applyLimiter(buf audio.Buffer, ceilingDB float64, prevTail audio.Buffer) audio.Buffer {
	out := buf.Clone()
	ch := out.Channels()
	n := out.Samples()
	ceiling := dbToLinear(ceilingDB)

	const windowMs = 5.0
	sr := buf.SampleRate()
	window := int(windowMs / 1000.0 * float64(sr))
	if window < 1 {
		window = 1
	}

	for c := 0; c < ch; c++ {
		src := buf.Channel(c)
		dst := out.Channel(c)

		var seed []float32
		if prevTail.Samples() > 0 && c < prevTail.Channels() {
			seed = prevTail.Channel(c)
		}
		peaks := slidingWindowMax(seed, src, window)

		var gainEnv float64 = 1.0
		const releaseCoeff = 0.9995
		for i := 0; i < n; i++ {
			peak := peaks[i]
			var targetGain float64 = 1.0
			if peak > ceiling {
				targetGain = ceiling / peak
			}
			if targetGain < gainEnv {
				gainEnv = targetGain
			} else {
				gainEnv = releaseCoeff*gainEnv + (1-releaseCoeff)*targetGain
				if gainEnv > 1.0 {
					gainEnv = 1.0
				}
			}
			dst[i] = src[i] * float32(gainEnv)
		}
	}
	return out
}

// slidingWindowMax returns, for each index i of cur, the maximum absolute
// value over [i, i+window) looking ahead into cur and, for context at the
// very end of the chunk, clamped to available samples. seed is prepended
// conceptually only to establish the envelope continuity at i==0; the
// returned slice has len(cur) entries.
func slidingWindowMax(seed []float32, cur []float32, window int) []float64 {
	n := len(cur)
	out := make([]float64, n)
	// Monotonic deque of indices into cur, holding candidate maxima.
	deque := make([]int, 0, window)
	for i := n - 1; i >= 0; i-- {
		v := math.Abs(float64(cur[i]))
		for len(deque) > 0 && math.Abs(float64(cur[deque[len(deque)-1]])) <= v {
			deque = deque[:len(deque)-1]
		}
		deque = append(deque, i)
		for deque[0] >= i+window {
			deque = deque[1:]
		}
		out[i] = math.Abs(float64(cur[deque[0]]))
	}
	if len(seed) > 0 {
		var seedPeak float64
		limit := window
		if limit > len(seed) {
			limit = len(seed)
		}
		for _, v := range seed[len(seed)-limit:] {
			if a := math.Abs(float64(v)); a > seedPeak {
				seedPeak = a
			}
		}
		if len(out) > 0 && seedPeak > out[0] {
			out[0] = seedPeak
		}
	}
	return out
}

// applySafetyLimiter is always the final stage: a soft-clip ceiling at
// -0.5 dBFS using a tanh-style saturation so the signal never exceeds the
// ceiling even if an upstream stage undershoots its own bound. Saturation
// starts at a knee one headroom-width (ceiling to full scale) below the
// ceiling; samples below the knee pass through unchanged.
func applySafetyLimiter(buf audio.Buffer) audio.Buffer {
	const ceilingDB = -0.5
	ceiling := float32(dbToLinear(ceilingDB))
	knee := 2*ceiling - 1
	span := ceiling - knee

	out := buf.Clone()
	ch := out.Channels()
	n := out.Samples()
	for c := 0; c < ch; c++ {
		src := buf.Channel(c)
		dst := out.Channel(c)
		for i := 0; i < n; i++ {
			v := src[i]
			if v > knee {
				dst[i] = knee + span*float32(math.Tanh(float64((v-knee)/span)))
			} else if v < -knee {
				dst[i] = -knee - span*float32(math.Tanh(float64((-v-knee)/span)))
			} else {
				dst[i] = v
			}
		}
	}
	return out
}
