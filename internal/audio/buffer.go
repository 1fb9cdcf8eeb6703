// Package audio defines the immutable audio buffer value used by every DSP
// stage, and a file loader that reads chunk-sized sample ranges without
// pulling a whole track into memory. The buffer shape follows
// internal/audiocore/buffer.go in the teacher codebase, adapted from a
// pooled byte buffer to an immutable (channels, samples) float32 value —
// the DSP contract in this system needs ownership, not reuse.
package audio

import (
	"math"

	"github.com/auralis/auralis/internal/apperrors"
)

// Buffer is an immutable (channels, samples) 32-bit float PCM value,
// normalized to [-1, 1]. Every DSP stage receives a Buffer and returns a
// freshly allocated Buffer of identical shape; callers never observe a
// mutation of the input.
type Buffer struct {
	sampleRate int
	// data[c] holds Samples() float32 values for channel c.
	data [][]float32
}

// NewBuffer constructs a Buffer from per-channel sample slices. The slices
// are copied so the caller's backing arrays may be reused afterward.
func NewBuffer(sampleRate int, channels [][]float32) Buffer {
	data := make([][]float32, len(channels))
	for i, ch := range channels {
		cp := make([]float32, len(ch))
		copy(cp, ch)
		data[i] = cp
	}
	return Buffer{sampleRate: sampleRate, data: data}
}

// NewSilentBuffer returns an all-zero buffer of the given shape.
func NewSilentBuffer(sampleRate, channels, samples int) Buffer {
	data := make([][]float32, channels)
	for i := range data {
		data[i] = make([]float32, samples)
	}
	return Buffer{sampleRate: sampleRate, data: data}
}

// Channels returns the channel count.
func (b Buffer) Channels() int { return len(b.data) }

// Samples returns the per-channel sample count.
func (b Buffer) Samples() int {
	if len(b.data) == 0 {
		return 0
	}
	return len(b.data[0])
}

// SampleRate returns the buffer's sample rate in Hz.
func (b Buffer) SampleRate() int { return b.sampleRate }

// Channel returns a read-only view of one channel. Callers that need to
// mutate must copy first — this is a view into the buffer's own storage.
func (b Buffer) Channel(i int) []float32 { return b.data[i] }

// Clone returns a deep copy of b, safe for in-place mutation by the caller.
func (b Buffer) Clone() Buffer {
	return NewBuffer(b.sampleRate, b.data)
}

// Slice returns a new Buffer covering samples [start, end) of every
// channel. Panics if the range is out of bounds; callers are expected to
// clamp against Samples() first (every call site in this codebase does).
func (b Buffer) Slice(start, end int) Buffer {
	out := make([][]float32, len(b.data))
	for i, ch := range b.data {
		out[i] = append([]float32(nil), ch[start:end]...)
	}
	return Buffer{sampleRate: b.sampleRate, data: out}
}

// Concat appends tail after b along the sample axis. Both must share
// channel count and sample rate.
func Concat(b, tail Buffer) Buffer {
	out := make([][]float32, b.Channels())
	for i := range out {
		combined := make([]float32, 0, len(b.data[i])+len(tail.data[i]))
		combined = append(combined, b.data[i]...)
		combined = append(combined, tail.data[i]...)
		out[i] = combined
	}
	return Buffer{sampleRate: b.sampleRate, data: out}
}

// ValidateFinite returns a NonFinite error naming stage if any sample in b
// is NaN or infinite. Called at pipeline entry (fail-fast) and after
// every stage (see dsp.Pipeline.runStage).
func (b Buffer) ValidateFinite(stage string) error {
	for c, ch := range b.data {
		for i, v := range ch {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				return apperrors.Newf("non-finite sample at stage %s channel %d index %d", stage, c, i).
					Category(apperrors.CategoryNonFinite).
					Context("stage", stage).
					Build()
			}
		}
	}
	return nil
}

// SameShape reports whether a and b share channel count and sample count.
func SameShape(a, b Buffer) bool {
	return a.Channels() == b.Channels() && a.Samples() == b.Samples()
}

// RMS computes the root-mean-square level across all channels, used by
// tests and by the fast-start heuristic to detect near-silent chunks.
func (b Buffer) RMS() float64 {
	var sum float64
	var n int
	for _, ch := range b.data {
		for _, v := range ch {
			sum += float64(v) * float64(v)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(n))
}
