// Package fingerprint computes the 25-dimensional audio descriptor used to
// parameterize the DSP pipeline and to seed similarity lookups, following
// the spectral/dynamics/stereo/harmonic/temporal breakdown in the design
// doc. The analyzer stages are grounded on the teacher's
// internal/audiocore/analyzer_manager.go dispatch pattern and on the
// hand-rolled FFT/onset/BPM analysis in the djbot and sidechain reference
// repos.
package fingerprint

import "github.com/auralis/auralis/internal/constants"

// PlaceholderLUFS is re-exported for callers that only import fingerprint.
const PlaceholderLUFS = constants.PlaceholderLUFS

// Fingerprint is the fixed 25-dimensional descriptor of a track.
type Fingerprint struct {
	// Spectral band energy proportions, summing to ~1.0.
	SubBassPct  float64
	BassPct     float64
	LowMidPct   float64
	MidPct      float64
	UpperMidPct float64
	PresencePct float64
	AirPct      float64

	// Dynamics.
	LUFS            float64
	CrestFactor     float64
	RMSDB           float64
	PeakDB          float64
	DynamicRangeDB  float64

	// Stereo.
	StereoWidth       float64
	StereoCorrelation float64
	MidSideRatio      float64

	// Harmonic.
	HarmonicRatio  float64
	PitchStability float64
	ChromaEnergy   float64
	TonalCentroid  float64

	// Temporal.
	TempoBPM         float64
	RhythmStrength   float64
	OnsetDensity     float64
	AttackTime       float64
	SustainRatio     float64
	TransientDensity float64
}

// SpectralBands returns the seven spectral dimensions in documented order,
// used by the EQ analyzer to build its target curve and by tests to check
// the sum-to-one invariant.
func (f Fingerprint) SpectralBands() [7]float64 {
	return [7]float64{f.SubBassPct, f.BassPct, f.LowMidPct, f.MidPct, f.UpperMidPct, f.PresencePct, f.AirPct}
}

// IsPlaceholder reports whether f is the "incomplete fingerprint" sentinel.
func (f Fingerprint) IsPlaceholder() bool {
	return f.LUFS == constants.PlaceholderLUFS
}

// SpectralSum returns the sum of the seven spectral bands, which a valid
// fingerprint keeps within [0.99, 1.01] of 1.0.
func (f Fingerprint) SpectralSum() float64 {
	var sum float64
	for _, v := range f.SpectralBands() {
		sum += v
	}
	return sum
}

// Default returns the error-fallback fingerprint: the placeholder LUFS
// sentinel, but spectral bands on the same 0-1 scale as real values and
// summing to 1.0, per the data model's "default fingerprint" clause.
func Default() Fingerprint {
	return Fingerprint{
		SubBassPct: 0.10, BassPct: 0.15, LowMidPct: 0.15, MidPct: 0.25,
		UpperMidPct: 0.15, PresencePct: 0.12, AirPct: 0.08,
		LUFS: constants.PlaceholderLUFS, CrestFactor: 10, RMSDB: -20, PeakDB: -6, DynamicRangeDB: 10,
		StereoWidth: 0.5, StereoCorrelation: 1.0, MidSideRatio: 0.5,
		HarmonicRatio: 0.5, PitchStability: 0.5, ChromaEnergy: 0.5, TonalCentroid: 0.5,
		TempoBPM: 120, RhythmStrength: 0.5, OnsetDensity: 0.5, AttackTime: 0.1, SustainRatio: 0.5, TransientDensity: 0.5,
	}
}
