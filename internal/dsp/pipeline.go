// Package dsp implements the per-chunk audio mastering chain: a
// psychoacoustic EQ, parallel band shelves, multiband stereo width, a
// lookahead compressor, a brick-wall limiter, bidirectional LUFS
// normalization, and a final safety limiter. Every stage preserves
// sample count and is checked for finiteness at its boundary, following
// the stage-chain-with-per-stage-error-category discipline the teacher
// uses in its audiocore processing pipeline, adapted here from a
// streaming/analyzer chain to a pure value-in-value-out mastering chain.
package dsp

import (
	"github.com/auralis/auralis/internal/apperrors"
	"github.com/auralis/auralis/internal/audio"
	"github.com/auralis/auralis/internal/constants"
	"github.com/auralis/auralis/internal/fingerprint"
)

// stageName identifies a pipeline stage for error context and for the
// stream-level NonFinite{stage} error the spec requires.
type stageName string

const (
	StageEQ         stageName = "eq"
	StageShelves    stageName = "shelves"
	StageStereo     stageName = "stereo_width"
	StageCompressor stageName = "compressor"
	StageLimiter    stageName = "limiter"
	StageNormalize  stageName = "normalize"
	StageSafety     stageName = "safety_limiter"
)

// windowCacheSingleton is the process-wide FFT window cache shared by
// every pipeline invocation, bounded per the constants package. A
// per-call cache would defeat its purpose (windows are reallocated every
// chunk); a cache without a bound would grow unboundedly across the many
// distinct frame sizes chunk boundaries can produce.
var windowCacheSingleton = newWindowCache(constants.FFTWindowCacheMaxEntries)

// Pipeline applies the mastering chain to one chunk, carrying lookahead
// and limiter continuity state from the previous chunk of the same
// session.
type Pipeline struct {
	params ProcessingParams
	fp     fingerprint.Fingerprint
}

// NewPipeline builds a pipeline bound to one set of resolved parameters
// and the track's fingerprint (used by the EQ stage's target curve).
func NewPipeline(params ProcessingParams, fp fingerprint.Fingerprint) *Pipeline {
	return &Pipeline{params: params, fp: fp}
}

// Process runs every stage in the fixed order mandated by the mastering
// chain: EQ, shelves, stereo width, compressor, limiter, normalization,
// safety limiter. prevTail carries the previous chunk's trailing samples
// for lookahead/limiter continuity; it may be the zero Buffer for the
// first chunk of a session.
func (p *Pipeline) Process(input audio.Buffer, prevTail audio.Buffer) (audio.Buffer, error) {
	if err := input.ValidateFinite("pipeline_entry"); err != nil {
		return audio.Buffer{}, err
	}

	target := p.fp.SpectralBands()
	gains := eqAnalyzeGains(input, target, windowCacheSingleton)
	buf, err := p.runStage(StageEQ, input, func(b audio.Buffer) audio.Buffer {
		return applyEQ(b, gains)
	})
	if err != nil {
		return audio.Buffer{}, err
	}

	buf, err = p.runStage(StageShelves, buf, func(b audio.Buffer) audio.Buffer {
		return applyShelves(b, p.params.BandBoostsDB)
	})
	if err != nil {
		return audio.Buffer{}, err
	}

	buf, err = p.runStage(StageStereo, buf, func(b audio.Buffer) audio.Buffer {
		return applyStereoWidth(b, p.params.StereoWidthTarget)
	})
	if err != nil {
		return audio.Buffer{}, err
	}

	buf, err = p.runStage(StageCompressor, buf, func(b audio.Buffer) audio.Buffer {
		return applyCompressor(b, p.params.CompressionRatio, p.params.CompressionKneeDB, p.params.CompressionThreshDB, p.params.LookaheadEnabled && p.params.LookaheadSamples > 0, prevTail)
	})
	if err != nil {
		return audio.Buffer{}, err
	}

	buf, err = p.runStage(StageLimiter, buf, func(b audio.Buffer) audio.Buffer {
		return applyLimiter(b, p.params.PeakCeilingDB, prevTail)
	})
	if err != nil {
		return audio.Buffer{}, err
	}

	currentLUFS := measureLUFS(buf)
	buf, err = p.runStage(StageNormalize, buf, func(b audio.Buffer) audio.Buffer {
		return normalizeLUFS(b, currentLUFS, p.params.TargetLUFS)
	})
	if err != nil {
		return audio.Buffer{}, err
	}

	buf, err = p.runStage(StageSafety, buf, func(b audio.Buffer) audio.Buffer {
		return applySafetyLimiter(b)
	})
	if err != nil {
		return audio.Buffer{}, err
	}

	return buf, nil
}

// runStage applies fn and checks the documented invariants: shape
// preservation and finiteness. A violation fails the whole chunk with an
// error naming the offending stage (Internal-categorized for a shape
// change, NonFinite-categorized for a NaN/Inf sample), never a silent
// substitution of zeros.
func (p *Pipeline) runStage(name stageName, input audio.Buffer, fn func(audio.Buffer) audio.Buffer) (audio.Buffer, error) {
	output := fn(input)
	if !audio.SameShape(input, output) {
		return audio.Buffer{}, apperrors.Newf("dsp stage %s changed buffer shape", name).
			Category(apperrors.CategoryInternal).
			Context("stage", string(name)).
			Build()
	}
	if err := output.ValidateFinite(string(name)); err != nil {
		return audio.Buffer{}, apperrors.New(err).
			Category(apperrors.CategoryNonFinite).
			Context("stage", string(name)).
			Build()
	}
	return output, nil
}
