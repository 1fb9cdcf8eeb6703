// Package constants is the single source of truth for the sizing and
// concurrency numbers shared across the DSP pipeline, the chunked
// processor, and the stream controller. Importing a local copy of any of
// these in another package is a bug: it silently desynchronizes chunk
// boundaries or the concurrency cap across packages.
package constants

import "time"

const (
	// ChunkDurationS is the nominal duration, in seconds, of one processed
	// chunk. Equal to ChunkIntervalS so that chunks tile the source file
	// without overlap beyond the crossfade tail.
	ChunkDurationS = 15.0

	// ChunkIntervalS is the spacing, in seconds, between consecutive chunk
	// start times. Kept numerically equal to ChunkDurationS; the two are
	// named separately because they represent distinct concepts.
	ChunkIntervalS = 15.0

	// CrossfadeSamples is the maximum number of samples crossfaded at a
	// chunk boundary. The effective overlap is min(CrossfadeSamples, len).
	CrossfadeSamples = 1024

	// MaxConcurrentStreams bounds the number of stream sessions that may
	// hold a driver permit at once, process-wide.
	MaxConcurrentStreams = 10

	// MaxChunkFrameBytes bounds a single outbound PCM frame so it stays
	// comfortably under common transport message-size limits.
	MaxChunkFrameBytes = 256 * 1024

	// PCMFrameSamples is the number of interleaved sample-frames packed
	// into one outbound PCM message frame.
	PCMFrameSamples = 4096

	// ChunkCacheMaxEntries bounds the chunk cache by item count.
	ChunkCacheMaxEntries = 512

	// ChunkCacheMaxBytes bounds the chunk cache by total payload size.
	ChunkCacheMaxBytes = 256 * 1024 * 1024

	// FFTWindowCacheMaxEntries bounds the Hann-window cache used by the
	// psychoacoustic EQ analyzer.
	FFTWindowCacheMaxEntries = 32

	// PlaceholderLUFS is the canonical "fingerprint not yet computed"
	// sentinel value for the lufs dimension.
	PlaceholderLUFS = -100.0

	// MinIntensity and MaxIntensity bound the accepted enhancement
	// intensity for play_enhanced / update_settings requests.
	MinIntensity = 0.0
	MaxIntensity = 2.0
)

// ChunkConstructTimeout bounds how long chunked-processor construction
// (which touches the filesystem) may take before the session fails with
// the timeout error kind.
const ChunkConstructTimeout = 30 * time.Second

// DSPStageTimeout bounds how long one chunk's DSP pipeline run may take
// before it is treated as a runaway stage and fails with the timeout
// error kind, independent of ChunkConstructTimeout's filesystem-read budget.
const DSPStageTimeout = 10 * time.Second

// RateLimitPerSecond is the per-connection inbound message rate limit for
// the stream transport.
const RateLimitPerSecond = 10

// Presets is the fixed closed enumeration of DSP presets. Any preset string
// outside this set is Invalid.
var Presets = []string{
	"adaptive",
	"natural",
	"warm",
	"bright",
	"punch",
	"vocal",
	"gentle",
}

// IsValidPreset reports whether p is one of the closed preset enumeration.
func IsValidPreset(p string) bool {
	for _, v := range Presets {
		if v == p {
			return true
		}
	}
	return false
}

// ClampIntensity clamps an intensity value into [MinIntensity, MaxIntensity].
func ClampIntensity(v float64) float64 {
	if v < MinIntensity {
		return MinIntensity
	}
	if v > MaxIntensity {
		return MaxIntensity
	}
	return v
}
