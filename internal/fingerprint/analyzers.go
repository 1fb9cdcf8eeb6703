package fingerprint

import (
	"math"
	"math/cmplx"
	"sort"

	"github.com/auralis/auralis/internal/audio"
)

// critical-band edges in Hz, beginning at 20 Hz (never 0 Hz) per the
// psychoacoustic EQ invariant shared with the dsp package.
var spectralBandEdges = [8]float64{20, 60, 250, 500, 2000, 4000, 6000, 20000}

// analyzeSpectral computes the seven perceptual band-energy proportions
// via a windowed FFT, aggregated across overlapping frames.
func analyzeSpectral(buf audio.Buffer) [7]float64 {
	const frameSize = 4096
	const hop = 2048

	mono := downmix(buf)
	n := len(mono)
	if n < frameSize {
		return fallbackSpectral()
	}

	window := hannWindowLocal(frameSize)
	var bandEnergy [7]float64
	var totalEnergy float64
	frames := 0

	frame := make([]complex128, frameSize)
	for start := 0; start+frameSize <= n; start += hop {
		for i := 0; i < frameSize; i++ {
			frame[i] = complex(mono[start+i]*window[i], 0)
		}
		spec := fftLocal(frame)
		mag := make([]float64, frameSize/2+1)
		for i := range mag {
			mag[i] = cmplx.Abs(spec[i])
		}
		sr := float64(buf.SampleRate())
		for b := 0; b < 7; b++ {
			lo := spectralBandEdges[b]
			hi := spectralBandEdges[b+1]
			loBin := int(lo / sr * float64(frameSize))
			hiBin := int(hi / sr * float64(frameSize))
			if hiBin > len(mag) {
				hiBin = len(mag)
			}
			for bin := loBin; bin < hiBin; bin++ {
				e := mag[bin] * mag[bin]
				bandEnergy[b] += e
				totalEnergy += e
			}
		}
		frames++
	}

	if frames == 0 || totalEnergy == 0 {
		return fallbackSpectral()
	}

	var out [7]float64
	for i := range out {
		out[i] = bandEnergy[i] / totalEnergy
	}
	return out
}

func fallbackSpectral() [7]float64 {
	d := Default()
	return d.SpectralBands()
}

// analyzeDynamics estimates integrated loudness (unweighted RMS of the
// mono downmix with the BS.1770 offset; no K-weighting filter is
// applied), RMS, peak, crest factor, and dynamic range.
func analyzeDynamics(buf audio.Buffer) (lufs, crest, rmsDB, peakDB, dynRangeDB float64) {
	mono := downmix(buf)
	if len(mono) == 0 {
		return PlaceholderLUFS, 0, 0, 0, 0
	}

	var sumSq float64
	var peak float64
	for _, v := range mono {
		av := math.Abs(float64(v))
		sumSq += float64(v) * float64(v)
		if av > peak {
			peak = av
		}
	}
	rms := math.Sqrt(sumSq / float64(len(mono)))
	if rms <= 0 {
		rms = 1e-9
	}
	rmsDB = linearToDBLocal(rms)
	if peak <= 0 {
		peak = 1e-9
	}
	peakDB = linearToDBLocal(peak)
	crest = peakDB - rmsDB

	// Integrated loudness approximation: unweighted RMS offset by the
	// -0.691 LUFS calibration constant from BS.1770 integrated loudness.
	lufs = rmsDB - 0.691

	// Dynamic range: RMS spread across 400ms windows (loud/quiet blocks).
	dynRangeDB = estimateDynamicRange(mono, buf.SampleRate())
	return lufs, crest, rmsDB, peakDB, dynRangeDB
}

func estimateDynamicRange(mono []float32, sr int) float64 {
	win := sr * 2 / 5 // 400ms
	if win <= 0 || len(mono) < win {
		return 0
	}
	var levels []float64
	for start := 0; start+win <= len(mono); start += win {
		var sum float64
		for _, v := range mono[start : start+win] {
			sum += float64(v) * float64(v)
		}
		rms := math.Sqrt(sum / float64(win))
		if rms > 1e-9 {
			levels = append(levels, linearToDBLocal(rms))
		}
	}
	if len(levels) < 2 {
		return 0
	}
	sort.Float64s(levels)
	p10 := levels[len(levels)/10]
	p95 := levels[len(levels)*95/100]
	dr := p95 - p10
	if dr < 0 {
		dr = 0
	}
	return dr
}

// analyzeStereo computes M/S decomposition, correlation, and width.
// Constant or silent channels are defined to be correlation 1.0 (mono),
// width 0 — never NaN.
func analyzeStereo(buf audio.Buffer) (width, correlation, midSideRatio float64) {
	if buf.Channels() < 2 {
		return 0, 1.0, 0
	}
	l := buf.Channel(0)
	r := buf.Channel(1)
	n := len(l)
	if n == 0 {
		return 0, 1.0, 0
	}

	var sumL, sumR float64
	for i := 0; i < n; i++ {
		sumL += float64(l[i])
		sumR += float64(r[i])
	}
	meanL, meanR := sumL/float64(n), sumR/float64(n)

	var cov, varL, varR, midEnergy, sideEnergy float64
	for i := 0; i < n; i++ {
		dl := float64(l[i]) - meanL
		dr := float64(r[i]) - meanR
		cov += dl * dr
		varL += dl * dl
		varR += dr * dr

		mid := (float64(l[i]) + float64(r[i])) / 2
		side := (float64(l[i]) - float64(r[i])) / 2
		midEnergy += mid * mid
		sideEnergy += side * side
	}

	if varL <= 1e-12 || varR <= 1e-12 {
		// Constant (or silent) channel: treat as mono.
		return 0, 1.0, 0
	}

	correlation = cov / math.Sqrt(varL*varR)
	if correlation > 1 {
		correlation = 1
	} else if correlation < -1 {
		correlation = -1
	}

	width = (1 - (correlation+1)/2)
	if width < 0 {
		width = 0
	}
	if width > 1 {
		width = 1
	}

	if midEnergy+sideEnergy > 0 {
		midSideRatio = sideEnergy / (midEnergy + sideEnergy)
	}
	return width, correlation, midSideRatio
}

// analyzeTemporal estimates tempo via autocorrelation of a spectral-flux
// onset envelope, following the djbot reference onset/BPM estimator, plus
// onset density, attack time, sustain ratio, and transient density.
func analyzeTemporal(buf audio.Buffer) (tempo, rhythmStrength, onsetDensity, attackTime, sustainRatio, transientDensity float64) {
	mono := downmix(buf)
	sr := buf.SampleRate()
	if sr <= 0 || len(mono) < sr {
		return 120, 0.3, 0.3, 0.05, 0.5, 0.3
	}

	const frameSize = 1024
	const hop = 512
	onset := onsetEnvelope(mono, frameSize, hop)
	if len(onset) < 4 {
		return 120, 0.3, 0.3, 0.05, 0.5, 0.3
	}

	tempo, rhythmStrength = estimateTempo(onset, sr, hop)

	duration := float64(len(mono)) / float64(sr)
	peaks := countOnsetPeaks(onset)
	if duration > 0 {
		onsetDensity = math.Min(1.0, float64(peaks)/duration/8.0)
	}

	attackTime, sustainRatio, transientDensity = estimateEnvelopeShape(mono, sr)
	return tempo, rhythmStrength, onsetDensity, attackTime, sustainRatio, transientDensity
}

// analyzeHarmonic samples uniformly across the track (not a fixed
// head-of-file cap) to avoid truncating long tracks, estimating pitch via
// autocorrelation and a simple chroma/tonal-centroid proxy. Pitch
// stability uses reservoir sampling across frames so repeated scans of the
// same file converge to the same result.
func analyzeHarmonic(buf audio.Buffer, sampleFrames int, rngSeed uint64) (harmonicRatio, pitchStability, chromaEnergy, tonalCentroid float64) {
	mono := downmix(buf)
	sr := buf.SampleRate()
	if sr <= 0 || len(mono) < 1024 {
		return 0.4, 0.4, 0.4, 0.4
	}

	const frameSize = 2048
	n := len(mono)
	if sampleFrames <= 0 {
		sampleFrames = 8
	}

	pitches := make([]float64, 0, sampleFrames)
	reservoir := newReservoir(sampleFrames, rngSeed)

	step := n / sampleFrames
	if step < frameSize {
		step = frameSize
	}
	var harmonicEnergy, totalEnergy float64
	for start := 0; start+frameSize <= n; start += step {
		frame := mono[start : start+frameSize]
		pitch, confidence := estimatePitchYIN(frame, sr)
		if pitch > 0 {
			pitches = append(pitches, pitch)
			reservoir.offer(pitch)
			harmonicEnergy += confidence
		}
		totalEnergy++
	}

	if totalEnergy > 0 {
		harmonicRatio = harmonicEnergy / totalEnergy
	}
	pitchStability = reservoir.stability()
	chromaEnergy = math.Min(1.0, harmonicRatio*1.2)
	tonalCentroid = normalizedCentroid(pitches)
	return harmonicRatio, pitchStability, chromaEnergy, tonalCentroid
}

func normalizedCentroid(pitches []float64) float64 {
	if len(pitches) == 0 {
		return 0.4
	}
	var sum float64
	for _, p := range pitches {
		sum += p
	}
	mean := sum / float64(len(pitches))
	// Map a plausible vocal/instrumental pitch range (80-1000Hz) to 0-1.
	v := (mean - 80) / (1000 - 80)
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return v
}
