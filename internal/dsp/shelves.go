package dsp

import "github.com/auralis/auralis/internal/audio"

// applyShelves realizes the preset's static band boosts (distinct from
// the EQ stage's adaptive, fingerprint-derived gains) using the same
// additive parallel pattern: output = input + band*(boost_linear-1.0),
// with each band's intermediate array independently allocated.
func applyShelves(buf audio.Buffer, boostsDB [7]float64) audio.Buffer {
	out := buf.Clone()
	ch := out.Channels()
	n := out.Samples()
	sr := out.SampleRate()

	for c := 0; c < ch; c++ {
		src := buf.Channel(c)
		dst := out.Channel(c)
		for b := 0; b < 7; b++ {
			if boostsDB[b] == 0 {
				continue
			}
			boostLinear := dbToLinear(boostsDB[b])
			band := bandpass(src, sr, bandEdges[b], bandEdges[b+1])
			for i := 0; i < n; i++ {
				dst[i] += float32(float64(band[i]) * (boostLinear - 1.0))
			}
		}
	}
	return out
}
