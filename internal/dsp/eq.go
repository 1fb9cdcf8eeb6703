package dsp

import (
	"math"

	"github.com/auralis/auralis/internal/audio"
)

// bandEdges mirrors the fingerprint package's critical-band table; kept
// as an independent copy rather than an import to keep dsp and
// fingerprint as parallel leaves with no dependency between them.
var bandEdges = [8]float64{20, 60, 250, 500, 2000, 4000, 6000, 20000}

const hannCoherentGainCompensationDB = 6.02

// eqAnalyzeGains computes one adaptive gain per critical band by comparing
// the chunk's own windowed-FFT band energies against the target curve
// derived from the fingerprint's spectral bands, clipping to +-12dB.
// Silent input yields all-zero gains, never NaN.
func eqAnalyzeGains(buf audio.Buffer, target [7]float64, windows *windowCache) [7]float64 {
	mono := monoSum(buf)
	n := len(mono)
	frameSize := nextPow2(n)
	if frameSize < 256 {
		frameSize = 256
	}
	if frameSize > 8192 {
		frameSize = 8192
	}

	window := windows.get(frameSize)
	frame := make([]complex128, frameSize)
	for i := 0; i < frameSize && i < n; i++ {
		frame[i] = complex(mono[i]*window[i], 0)
	}
	spec := fft(frame)
	mags := magnitudes(spec, frameSize)

	var bandEnergy [7]float64
	var totalEnergy float64
	sr := float64(buf.SampleRate())
	for b := 0; b < 7; b++ {
		loBin := int(bandEdges[b] / sr * float64(frameSize))
		hiBin := int(bandEdges[b+1] / sr * float64(frameSize))
		if hiBin > len(mags) {
			hiBin = len(mags)
		}
		for bin := loBin; bin < hiBin; bin++ {
			// Compensate for the Hann window's coherent gain loss before
			// comparing against the target curve.
			m := mags[bin] * dbToLinear(hannCoherentGainCompensationDB)
			e := m * m
			bandEnergy[b] += e
			totalEnergy += e
		}
	}

	var gains [7]float64
	if totalEnergy <= 0 {
		return gains
	}
	for b := 0; b < 7; b++ {
		current := bandEnergy[b] / totalEnergy
		if current <= 0 || target[b] <= 0 {
			gains[b] = 0
			continue
		}
		diffDB := 10 * math.Log10(target[b]/current)
		gains[b] = clampDB(diffDB, 12)
	}
	return gains
}

// applyEQ applies a parametric-shelf approximation of the per-band gains
// computed by eqAnalyzeGains, realized as the same band-extract-and-add
// pattern used by applyShelves so both stages share one spectral-split
// primitive.
func applyEQ(buf audio.Buffer, gains [7]float64) audio.Buffer {
	out := buf.Clone()
	ch := out.Channels()
	n := out.Samples()
	sr := out.SampleRate()

	for c := 0; c < ch; c++ {
		src := buf.Channel(c)
		dst := out.Channel(c)
		for b := 0; b < 7; b++ {
			if gains[b] == 0 {
				continue
			}
			boostLinear := dbToLinear(gains[b])
			band := bandpass(src, sr, bandEdges[b], bandEdges[b+1])
			for i := 0; i < n; i++ {
				dst[i] += float32(float64(band[i]) * (boostLinear - 1.0))
			}
		}
	}
	return out
}

// bandpass extracts the energy of src within [lo, hi) Hz using a simple
// one-pole high-pass followed by a one-pole low-pass, each run in a
// single forward pass (phase delay is not compensated). It always allocates a fresh output
// array, per the "never an aliased sentinel element" invariant.
func bandpass(src []float32, sr int, lo, hi float64) []float32 {
	out := make([]float32, len(src))
	copy(out, src)
	out = onePoleHighPass(out, sr, lo)
	out = onePoleLowPass(out, sr, hi)
	return out
}

func onePoleLowPass(src []float32, sr int, cutoffHz float64) []float32 {
	out := make([]float32, len(src))
	if cutoffHz <= 0 || cutoffHz >= float64(sr)/2 {
		copy(out, src)
		return out
	}
	rc := 1.0 / (2 * math.Pi * cutoffHz)
	dt := 1.0 / float64(sr)
	alpha := dt / (rc + dt)
	var prev float32
	for i, v := range src {
		prev = prev + float32(alpha)*(v-prev)
		out[i] = prev
	}
	return out
}

func onePoleHighPass(src []float32, sr int, cutoffHz float64) []float32 {
	out := make([]float32, len(src))
	if cutoffHz <= 0 {
		copy(out, src)
		return out
	}
	rc := 1.0 / (2 * math.Pi * cutoffHz)
	dt := 1.0 / float64(sr)
	alpha := float32(rc / (rc + dt))
	var prevIn, prevOut float32
	for i, v := range src {
		cur := alpha * (prevOut + v - prevIn)
		out[i] = cur
		prevIn = v
		prevOut = cur
	}
	return out
}

func monoSum(buf audio.Buffer) []float32 {
	n := buf.Samples()
	ch := buf.Channels()
	out := make([]float32, n)
	for c := 0; c < ch; c++ {
		chn := buf.Channel(c)
		for i := 0; i < n; i++ {
			out[i] += chn[i] / float32(ch)
		}
	}
	return out
}
