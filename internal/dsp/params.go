package dsp

import (
	"github.com/auralis/auralis/internal/constants"
	"github.com/auralis/auralis/internal/fingerprint"
)

// ProcessingParams is the fully-resolved, finite set of numbers the
// pipeline stages need for one chunk. It is derived once per
// (track, preset, intensity) and reused across every chunk of that
// stream, per the chunked processor's parameter-resolution step.
type ProcessingParams struct {
	TargetLUFS float64
	PeakCeilingDB float64

	// BandBoostsDB holds one gain, in dB, per spectral band (same order
	// as fingerprint.Fingerprint.SpectralBands).
	BandBoostsDB [7]float64

	CompressionRatio    float64
	CompressionKneeDB   float64
	CompressionThreshDB float64

	StereoWidthTarget float64

	LookaheadEnabled bool
	LookaheadSamples int
}

// preset is a named DSP profile: a set of base band-boost biases and
// dynamics targets that ResolveParams scales by intensity. The track's
// fingerprint does not adjust these values.
type preset struct {
	name              string
	targetLUFS        float64
	peakCeilingDB     float64
	bandBiasDB        [7]float64
	compressionRatio  float64
	kneeDB            float64
	threshDB          float64
	stereoWidthTarget float64
}

var presetTable = map[string]preset{
	"adaptive": {
		name: "adaptive", targetLUFS: -14, peakCeilingDB: -1,
		bandBiasDB: [7]float64{0, 0, 0, 0, 0, 0, 0},
		compressionRatio: 2.0, kneeDB: 6, threshDB: -18, stereoWidthTarget: 1.0,
	},
	"natural": {
		name: "natural", targetLUFS: -16, peakCeilingDB: -1.5,
		bandBiasDB: [7]float64{0, 0.5, 0, 0, 0.5, 0, 0},
		compressionRatio: 1.5, kneeDB: 8, threshDB: -20, stereoWidthTarget: 1.0,
	},
	"warm": {
		name: "warm", targetLUFS: -14, peakCeilingDB: -1,
		bandBiasDB: [7]float64{1.5, 2, 1, -0.5, -1, -1.5, -1},
		compressionRatio: 2.2, kneeDB: 6, threshDB: -18, stereoWidthTarget: 0.9,
	},
	"bright": {
		name: "bright", targetLUFS: -13, peakCeilingDB: -1,
		bandBiasDB: [7]float64{-1, -0.5, -0.5, 0.5, 1.5, 2.5, 2},
		compressionRatio: 2.0, kneeDB: 6, threshDB: -17, stereoWidthTarget: 1.1,
	},
	"punch": {
		name: "punch", targetLUFS: -12, peakCeilingDB: -0.8,
		bandBiasDB: [7]float64{2, 3, 0, 1, 0.5, 0.5, 0},
		compressionRatio: 3.5, kneeDB: 4, threshDB: -16, stereoWidthTarget: 1.0,
	},
	"vocal": {
		name: "vocal", targetLUFS: -15, peakCeilingDB: -1.2,
		bandBiasDB: [7]float64{-2, -1, 0.5, 2.5, 2, 1, -0.5},
		compressionRatio: 2.5, kneeDB: 5, threshDB: -19, stereoWidthTarget: 0.85,
	},
	"gentle": {
		name: "gentle", targetLUFS: -18, peakCeilingDB: -2,
		bandBiasDB: [7]float64{0.5, 0.5, 0, 0, 0.5, 0.5, 0},
		compressionRatio: 1.2, kneeDB: 10, threshDB: -22, stereoWidthTarget: 0.95,
	},
}

// ResolveParams derives a complete ProcessingParams for a (preset,
// intensity, fingerprint) triple. Intensity is clamped to [0,2] and
// scales how strongly the preset's biases and compression are applied;
// intensity 1.0 reproduces the preset's base values unchanged. fp is not
// read here: the fingerprint reaches the chain only through the EQ
// stage's target curve (see NewPipeline).
func ResolveParams(presetName string, intensity float64, fp fingerprint.Fingerprint) ProcessingParams {
	p, ok := presetTable[presetName]
	if !ok {
		p = presetTable["adaptive"]
	}
	intensity = constants.ClampIntensity(intensity)

	var bands [7]float64
	for i := range bands {
		bands[i] = clampDB(p.bandBiasDB[i]*intensity, 12)
	}

	ratio := 1.0 + (p.compressionRatio-1.0)*intensity
	if ratio < 1.0 {
		ratio = 1.0
	}

	width := 1.0 + (p.stereoWidthTarget-1.0)*intensity
	if width < 0 {
		width = 0
	}

	lookaheadSamples := int(5 * constants.PCMFrameSamples / 4096) // 5 samples at the default frame size, scaled with PCMFrameSamples
	if lookaheadSamples <= 0 {
		lookaheadSamples = 1
	}

	return ProcessingParams{
		TargetLUFS:          p.targetLUFS,
		PeakCeilingDB:        p.peakCeilingDB,
		BandBoostsDB:        bands,
		CompressionRatio:    ratio,
		CompressionKneeDB:   p.kneeDB,
		CompressionThreshDB: p.threshDB,
		StereoWidthTarget:   width,
		LookaheadEnabled:    true,
		LookaheadSamples:    lookaheadSamples,
	}
}
