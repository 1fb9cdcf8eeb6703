package dsp

import (
	"math"

	"github.com/auralis/auralis/internal/audio"
)

// normalizeLUFS applies a single broadband gain so the buffer's measured
// loudness moves toward targetLUFS. Unlike a naive "only boost quiet
// material" normalizer, this brings loud material down as well: the
// computed gain can be negative in dB.
func normalizeLUFS(buf audio.Buffer, currentLUFS, targetLUFS float64) audio.Buffer {
	if currentLUFS <= -100 {
		// Placeholder/unmeasurable loudness: don't normalize blind.
		return buf.Clone()
	}
	gainDB := targetLUFS - currentLUFS
	gainDB = clampDB(gainDB, 24)
	gainLinear := dbToLinear(gainDB)

	out := buf.Clone()
	ch := out.Channels()
	n := out.Samples()
	for c := 0; c < ch; c++ {
		src := buf.Channel(c)
		dst := out.Channel(c)
		for i := 0; i < n; i++ {
			dst[i] = float32(float64(src[i]) * gainLinear)
		}
	}
	return out
}

// measureLUFS is a lightweight RMS-based loudness estimate used between
// pipeline stages, consistent with the calibration used by the
// fingerprint analyzer's dynamics stage.
func measureLUFS(buf audio.Buffer) float64 {
	n := buf.Samples()
	ch := buf.Channels()
	if n == 0 || ch == 0 {
		return -100
	}
	var sumSq float64
	count := 0
	for c := 0; c < ch; c++ {
		for _, v := range buf.Channel(c) {
			sumSq += float64(v) * float64(v)
			count++
		}
	}
	if count == 0 {
		return -100
	}
	rms := math.Sqrt(sumSq / float64(count))
	if rms <= 0 {
		return -100
	}
	return linearToDB(rms) - 0.691
}
