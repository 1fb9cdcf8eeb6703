package dsp

import (
	"math"

	"github.com/auralis/auralis/internal/audio"
)

// applyCompressor is a soft-knee downward compressor. Gain reduction is
// computed per-sample over an envelope follower in one pass per channel,
// calling the dB-conversion and soft-knee helpers for every sample. If lookahead is
// enabled and the caller supplies a non-empty previous-chunk tail, the
// envelope is seeded from that tail so the gain curve is continuous
// across chunk boundaries instead of re-attacking at zero each chunk.
func applyCompressor(buf audio.Buffer, ratio, kneeDB, threshDB float64, lookaheadEnabled bool, lookaheadTail audio.Buffer) audio.Buffer {
	out := buf.Clone()
	ch := out.Channels()
	n := out.Samples()

	const attackMs = 5.0
	const releaseMs = 80.0
	sr := float64(buf.SampleRate())
	attackCoeff := math.Exp(-1.0 / (attackMs / 1000.0 * sr))
	releaseCoeff := math.Exp(-1.0 / (releaseMs / 1000.0 * sr))

	for c := 0; c < ch; c++ {
		src := buf.Channel(c)
		dst := out.Channel(c)

		var envelope float64
		if lookaheadEnabled && lookaheadTail.Samples() > 0 && c < lookaheadTail.Channels() {
			tail := lookaheadTail.Channel(c)
			for _, v := range tail {
				level := math.Abs(float64(v))
				if level > envelope {
					envelope = attackCoeff*envelope + (1-attackCoeff)*level
				} else {
					envelope = releaseCoeff*envelope + (1-releaseCoeff)*level
				}
			}
		}

		for i := 0; i < n; i++ {
			level := math.Abs(float64(src[i]))
			if level > envelope {
				envelope = attackCoeff*envelope + (1-attackCoeff)*level
			} else {
				envelope = releaseCoeff*envelope + (1-releaseCoeff)*level
			}

			levelDB := linearToDB(envelope)
			gainDB := softKneeGainReduction(levelDB, threshDB, kneeDB, ratio)
			dst[i] = src[i] * float32(dbToLinear(gainDB))
		}
	}
	return out
}

// softKneeGainReduction returns the (non-positive) gain reduction in dB
// for one envelope sample given a soft-knee downward-compression curve.
func softKneeGainReduction(levelDB, threshDB, kneeDB, ratio float64) float64 {
	if ratio <= 1.0 {
		return 0
	}
	overshoot := levelDB - threshDB
	half := kneeDB / 2
	switch {
	case overshoot <= -half:
		return 0
	case overshoot >= half:
		return -(overshoot - overshoot/ratio)
	default:
		// Quadratic interpolation through the knee region.
		x := overshoot + half
		reduction := (1/ratio - 1) * (x * x) / (2 * kneeDB)
		return reduction
	}
}
