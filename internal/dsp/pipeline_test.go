package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auralis/auralis/internal/audio"
	"github.com/auralis/auralis/internal/constants"
	"github.com/auralis/auralis/internal/fingerprint"
)

func sineBuffer(sampleRate, channels, samples int, freq float64) audio.Buffer {
	chans := make([][]float32, channels)
	for c := range chans {
		data := make([]float32, samples)
		for i := range data {
			data[i] = float32(0.3 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
		}
		chans[c] = data
	}
	return audio.NewBuffer(sampleRate, chans)
}

func TestPipelineProcessPreservesShapeForEveryPreset(t *testing.T) {
	t.Parallel()

	fp := fingerprint.Default()
	input := sineBuffer(48000, 2, 4096, 440)

	for _, preset := range constants.Presets {
		t.Run(preset, func(t *testing.T) {
			t.Parallel()
			params := ResolveParams(preset, 1.0, fp)
			pipeline := NewPipeline(params, fp)

			out, err := pipeline.Process(input, audio.Buffer{})
			require.NoError(t, err)
			assert.True(t, audio.SameShape(input, out), "preset %s must preserve buffer shape", preset)
			assert.NoError(t, out.ValidateFinite("test"))
		})
	}
}

func TestPipelineProcessRejectsNonFiniteInput(t *testing.T) {
	t.Parallel()

	fp := fingerprint.Default()
	params := ResolveParams("adaptive", 1.0, fp)
	pipeline := NewPipeline(params, fp)

	bad := audio.NewBuffer(48000, [][]float32{{0, float32(math.NaN()), 0}})
	_, err := pipeline.Process(bad, audio.Buffer{})
	require.Error(t, err)
}

func TestPipelineCarriesContinuityAcrossChunks(t *testing.T) {
	t.Parallel()

	fp := fingerprint.Default()
	params := ResolveParams("adaptive", 1.0, fp)
	pipeline := NewPipeline(params, fp)

	chunk1 := sineBuffer(48000, 2, 4096, 440)
	out1, err := pipeline.Process(chunk1, audio.Buffer{})
	require.NoError(t, err)

	tail := tailOf(out1, constants.CrossfadeSamples)
	chunk2 := sineBuffer(48000, 2, 4096, 440)
	out2, err := pipeline.Process(chunk2, tail)
	require.NoError(t, err)

	assert.True(t, audio.SameShape(chunk2, out2))
}

func TestPipelineOutputNeverExceedsSafetyCeiling(t *testing.T) {
	t.Parallel()

	fp := fingerprint.Default()
	params := ResolveParams("punch", 2.0, fp)
	pipeline := NewPipeline(params, fp)

	loud := audio.NewBuffer(48000, [][]float32{make([]float32, 2048), make([]float32, 2048)})
	ch0 := loud.Channel(0)
	ch1 := loud.Channel(1)
	for i := range ch0 {
		ch0[i] = 0.99
		ch1[i] = -0.99
	}

	out, err := pipeline.Process(loud, audio.Buffer{})
	require.NoError(t, err)

	ceiling := dbToLinear(-0.5)
	for c := 0; c < out.Channels(); c++ {
		for _, v := range out.Channel(c) {
			assert.LessOrEqual(t, math.Abs(float64(v)), ceiling+1e-3, "safety limiter must keep samples within the ceiling")
		}
	}
}
