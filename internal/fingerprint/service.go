package fingerprint

import (
	"context"
	"runtime"
	"sync"

	"github.com/auralis/auralis/internal/audio"
)

// workerCount implements max(1, min(k, cpu_count/2)): a naive
// cpu_count/2 formula is wrong on a single-core machine (integer
// division yields 0 workers), so the floor of 1 is load-bearing, not
// decorative.
func workerCount(k int) int {
	half := runtime.NumCPU() / 2
	n := k
	if half < n {
		n = half
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Service computes fingerprints by dispatching the five analyzer stages
// concurrently across a bounded worker pool. A stage that panics does not
// abort the others: its dimensions keep the values of Default(), which
// are not the analyzers' own short/silent-input fallbacks. Because
// Default() carries the `lufs = -100.0` placeholder, a panic in the
// dynamics stage leaves the result marked as a placeholder; an empty
// buffer or a non-positive sample rate returns Default() outright.
type Service struct {
	sem chan struct{}
}

// NewService builds a fingerprint service whose analyzer stages share a
// worker pool sized by workerCount(k).
func NewService(k int) *Service {
	return &Service{sem: make(chan struct{}, workerCount(k))}
}

// Compute runs all five analyzer stages over buf and assembles the
// 25-dimensional Fingerprint. sampleFrames controls the harmonic
// analyzer's uniform-across-track sampling density; rngSeed makes
// reservoir-based pitch stability deterministic across repeated scans of
// the same file.
func (s *Service) Compute(ctx context.Context, buf audio.Buffer, sampleFrames int, rngSeed uint64) Fingerprint {
	if buf.Samples() == 0 || buf.SampleRate() <= 0 {
		return Default()
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	out := Default()

	run := func(fn func()) {
		wg.Add(1)
		s.sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-s.sem }()
			defer func() {
				// A stage that panics is treated the same as a stage
				// that returns a fallback value: it must not take the
				// whole fingerprint computation down with it.
				recover()
			}()
			select {
			case <-ctx.Done():
				return
			default:
			}
			fn()
		}()
	}

	run(func() {
		spectral := analyzeSpectral(buf)
		mu.Lock()
		out.SubBassPct, out.BassPct, out.LowMidPct, out.MidPct, out.UpperMidPct, out.PresencePct, out.AirPct =
			spectral[0], spectral[1], spectral[2], spectral[3], spectral[4], spectral[5], spectral[6]
		mu.Unlock()
	})

	run(func() {
		lufs, crest, rmsDB, peakDB, dynRangeDB := analyzeDynamics(buf)
		mu.Lock()
		out.LUFS, out.CrestFactor, out.RMSDB, out.PeakDB, out.DynamicRangeDB = lufs, crest, rmsDB, peakDB, dynRangeDB
		mu.Unlock()
	})

	run(func() {
		width, correlation, midSideRatio := analyzeStereo(buf)
		mu.Lock()
		out.StereoWidth, out.StereoCorrelation, out.MidSideRatio = width, correlation, midSideRatio
		mu.Unlock()
	})

	run(func() {
		harmonicRatio, pitchStability, chromaEnergy, tonalCentroid := analyzeHarmonic(buf, sampleFrames, rngSeed)
		mu.Lock()
		out.HarmonicRatio, out.PitchStability, out.ChromaEnergy, out.TonalCentroid =
			harmonicRatio, pitchStability, chromaEnergy, tonalCentroid
		mu.Unlock()
	})

	run(func() {
		tempo, rhythmStrength, onsetDensity, attackTime, sustainRatio, transientDensity := analyzeTemporal(buf)
		mu.Lock()
		out.TempoBPM, out.RhythmStrength, out.OnsetDensity, out.AttackTime, out.SustainRatio, out.TransientDensity =
			tempo, rhythmStrength, onsetDensity, attackTime, sustainRatio, transientDensity
		mu.Unlock()
	})

	wg.Wait()
	return out
}
