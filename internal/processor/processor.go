// Package processor maps a (track, preset, intensity) triple to an
// ordered sequence of processed, crossfaded audio chunks, consulting a
// process-wide cache before invoking the DSP pipeline. It is the
// direct analogue of the teacher's audiocore.ProcessingPipeline chunk
// loop, rebuilt around a pull-based chunk index instead of a live
// capture source.
package processor

import (
	"time"

	"github.com/auralis/auralis/internal/apperrors"
	"github.com/auralis/auralis/internal/audio"
	"github.com/auralis/auralis/internal/constants"
	"github.com/auralis/auralis/internal/dsp"
	"github.com/auralis/auralis/internal/fingerprint"
)

// Chunk is one fully processed, crossfade-applied unit of audio ready
// to be framed and sent by the stream controller.
type Chunk struct {
	Audio              audio.Buffer
	ChunkIndex         int
	ActualLengthSamples int
}

// Processor turns chunk requests into processed Chunks for one track.
// It holds no per-session state itself; prev_tail lives in the caller's
// session state, since fast_start and crossfade continuity are
// per-session, never global, per the chunked-processor contract.
type Processor struct {
	loader *audio.Loader
	cache  *chunkCache
}

// New constructs a Processor backed by the singleton process-wide chunk
// cache. Constructing a private cache per processor would defeat
// cross-request reuse, so this deliberately always binds to the
// package-level singleton rather than accepting one as a parameter.
func New(loader *audio.Loader) *Processor {
	return &Processor{loader: loader, cache: getChunkCache()}
}

// Request describes one chunk to produce.
type Request struct {
	TrackID    string
	FilePath   string
	Preset     string
	Intensity  float64
	ChunkIndex int
	SampleRate int
	TotalSamples int
	Fingerprint fingerprint.Fingerprint
	PrevTail    audio.Buffer
	FastStart   bool
}

// Produce returns the processed chunk for req, consulting the cache
// first. On a cache miss it loads the chunk's sample range, runs the DSP
// pipeline, and applies the equal-power crossfade against req.PrevTail.
// The returned newTail is the caller's responsibility to commit only
// after the chunk has been successfully staged for send (transactional
// crossfade state per the chunked-processor contract).
func (p *Processor) Produce(req Request) (Chunk, audio.Buffer, error) {
	startSample := int(float64(req.ChunkIndex) * constants.ChunkIntervalS * float64(req.SampleRate))
	endSample := startSample + int(constants.ChunkDurationS*float64(req.SampleRate))
	if endSample > req.TotalSamples {
		endSample = req.TotalSamples
	}
	if startSample >= endSample {
		return Chunk{}, audio.Buffer{}, apperrors.Newf("chunk index %d past end of track", req.ChunkIndex).
			Category(apperrors.CategoryInvalid).
			Context("chunk_index", req.ChunkIndex).
			Build()
	}
	length := endSample - startSample

	key := cacheKey{
		trackID:    req.TrackID,
		preset:     req.Preset,
		intensityQ: quantizeIntensity(req.Intensity),
		chunkIndex: req.ChunkIndex,
	}

	processed, ok := p.cache.get(key)
	if !ok {
		raw, err := p.loader.ReadRange(req.FilePath, startSample, length)
		if err != nil {
			return Chunk{}, audio.Buffer{}, err
		}

		fp := req.Fingerprint
		if req.FastStart && req.ChunkIndex == 0 {
			fp = fingerprint.Default()
		}

		params := dsp.ResolveParams(req.Preset, req.Intensity, fp)
		pipeline := dsp.NewPipeline(params, fp)
		processed, err = runPipelineWithBudget(pipeline, raw, req.PrevTail)
		if err != nil {
			return Chunk{}, audio.Buffer{}, err
		}
		p.cache.put(key, processed)
	}

	outbound, newTail := equalPowerCrossfade(req.PrevTail, processed)

	return Chunk{
		Audio:               outbound,
		ChunkIndex:          req.ChunkIndex,
		ActualLengthSamples: outbound.Samples(),
	}, newTail, nil
}

// dspStageTimeout is a var, not the constants.DSPStageTimeout constant
// directly, so tests can shrink it and exercise the timeout branch without
// a multi-second sleep.
var dspStageTimeout = constants.DSPStageTimeout

// runPipelineWithBudget runs pipeline.Process on its own goroutine and
// bounds it by dspStageTimeout, so a runaway analyzer or DSP stage fails
// the chunk with the timeout error kind instead of hanging the session
// indefinitely.
func runPipelineWithBudget(pipeline *dsp.Pipeline, raw, prevTail audio.Buffer) (audio.Buffer, error) {
	type result struct {
		buf audio.Buffer
		err error
	}
	resCh := make(chan result, 1)
	go func() {
		buf, err := pipeline.Process(raw, prevTail)
		resCh <- result{buf: buf, err: err}
	}()

	select {
	case res := <-resCh:
		return res.buf, res.err
	case <-time.After(dspStageTimeout):
		return audio.Buffer{}, apperrors.Newf("dsp stage exceeded its processing budget").
			Category(apperrors.CategoryTimeout).
			Build()
	}
}

// CacheStats exposes the singleton chunk cache's hit/miss/size counters
// for metrics and admin endpoints.
func CacheStats() (hits, misses int64, entries int, bytes int64) {
	return getChunkCache().stats()
}
