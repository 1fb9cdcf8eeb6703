package processor

import (
	"math"

	"github.com/auralis/auralis/internal/audio"
	"github.com/auralis/auralis/internal/constants"
)

// equalPowerCrossfade blends prevTail into the head of processed using
// sin^2/cos^2 envelopes, the one canonical crossfade shape this system
// allows — a linear or sin/cos (non-squared) fade is forbidden because it
// dips below unit power where the two regions overlap.
//
// It returns the outbound chunk (crossfaded head plus the untouched
// body) and the new prev_tail candidate (the trailing CROSSFADE_SAMPLES
// of processed). Callers only commit the new tail after the outbound
// chunk has been successfully staged for send — this function itself is
// pure and makes no side effect, so the transactional behavior is the
// caller's responsibility.
func equalPowerCrossfade(prevTail, processed audio.Buffer) (outbound audio.Buffer, newTail audio.Buffer) {
	headLen := processed.Samples()
	if prevTail.Samples() < headLen {
		headLen = prevTail.Samples()
	}
	overlap := constants.CrossfadeSamples
	if overlap > headLen {
		overlap = headLen
	}

	newTail = tailOf(processed, constants.CrossfadeSamples)

	if overlap == 0 {
		return processed, newTail
	}

	ch := processed.Channels()
	n := processed.Samples()
	out := make([][]float32, ch)
	for c := 0; c < ch; c++ {
		out[c] = make([]float32, n)
	}

	for i := 0; i < overlap; i++ {
		t := float64(i) / float64(overlap-1+boolToInt(overlap == 1)) * (math.Pi / 2)
		fadeIn := math.Sin(t) * math.Sin(t)
		fadeOut := math.Cos(t) * math.Cos(t)
		for c := 0; c < ch; c++ {
			prevV := prevTail.Channel(c)[i]
			curV := processed.Channel(c)[i]
			out[c][i] = float32(float64(prevV)*fadeOut + float64(curV)*fadeIn)
		}
	}
	for c := 0; c < ch; c++ {
		copy(out[c][overlap:], processed.Channel(c)[overlap:])
	}

	return audio.NewBuffer(processed.SampleRate(), out), newTail
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// tailOf returns the trailing n samples of buf (or all of buf if it has
// fewer than n samples), used both to seed the next crossfade and to
// feed lookahead/limiter continuity into the DSP pipeline.
func tailOf(buf audio.Buffer, n int) audio.Buffer {
	total := buf.Samples()
	if n > total {
		n = total
	}
	if n == 0 {
		return audio.Buffer{}
	}
	return buf.Slice(total-n, total)
}
