package dsp

import "github.com/auralis/auralis/internal/audio"

// applyStereoWidth performs an M/S decode, widens the side signal by a
// frequency-dependent factor (more at high frequencies, less at low, to
// avoid smearing bass phase), then recodes to L/R. Constant or silent
// channels are treated as mono: width stays 0, never NaN.
func applyStereoWidth(buf audio.Buffer, widthTarget float64) audio.Buffer {
	if buf.Channels() < 2 {
		return buf.Clone()
	}
	out := buf.Clone()
	l := buf.Channel(0)
	r := buf.Channel(1)
	dl := out.Channel(0)
	dr := out.Channel(1)
	n := buf.Samples()
	sr := buf.SampleRate()

	if isConstantOrSilent(l) || isConstantOrSilent(r) {
		return out
	}

	mid := make([]float32, n)
	side := make([]float32, n)
	for i := 0; i < n; i++ {
		mid[i] = (l[i] + r[i]) / 2
		side[i] = (l[i] - r[i]) / 2
	}

	// Split the side signal into a low band (narrowed less) and high
	// band (widened more), following the "more at high, less at low"
	// requirement.
	const splitHz = 500
	sideLow := onePoleLowPass(side, sr, splitHz)
	sideHigh := make([]float32, n)
	for i := range sideHigh {
		sideHigh[i] = side[i] - sideLow[i]
	}

	lowFactor := float32(0.6 + 0.4*widthTarget)
	highFactor := float32(widthTarget)
	for i := 0; i < n; i++ {
		widened := sideLow[i]*lowFactor + sideHigh[i]*highFactor
		dl[i] = mid[i] + widened
		dr[i] = mid[i] - widened
	}
	return out
}

func isConstantOrSilent(ch []float32) bool {
	if len(ch) == 0 {
		return true
	}
	first := ch[0]
	for _, v := range ch {
		if v != first {
			return false
		}
	}
	return true
}
