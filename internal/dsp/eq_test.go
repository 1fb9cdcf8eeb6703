package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auralis/auralis/internal/audio"
)

func toneBuffer(freq float64, sr, n int) audio.Buffer {
	ch := make([]float32, n)
	for i := 0; i < n; i++ {
		ch[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sr)))
	}
	return audio.NewBuffer(sr, [][]float32{ch})
}

func TestEqAnalyzeGainsOnSilenceIsAllZero(t *testing.T) {
	t.Parallel()

	buf := audio.NewSilentBuffer(44100, 1, 2048)
	windows := newWindowCache(8)
	var target [7]float64
	for i := range target {
		target[i] = 1.0 / 7
	}

	gains := eqAnalyzeGains(buf, target, windows)
	for i, g := range gains {
		assert.Equal(t, 0.0, g, "band %d", i)
	}
}

func TestEqAnalyzeGainsNeverProducesNaN(t *testing.T) {
	t.Parallel()

	buf := toneBuffer(1000, 44100, 2048)
	windows := newWindowCache(8)
	target := [7]float64{0.3, 0.3, 0.1, 0.1, 0.1, 0.05, 0.05}

	gains := eqAnalyzeGains(buf, target, windows)
	for i, g := range gains {
		require.False(t, math.IsNaN(g), "band %d", i)
		assert.LessOrEqual(t, math.Abs(g), 12.0001, "band %d must stay within the +-12dB clip", i)
	}
}

func TestApplyEQWithAllZeroGainsReturnsUnchangedSamples(t *testing.T) {
	t.Parallel()

	buf := toneBuffer(500, 44100, 512)
	var gains [7]float64

	out := applyEQ(buf, gains)
	require.Equal(t, buf.Samples(), out.Samples())
	for i := 0; i < buf.Samples(); i++ {
		assert.InDelta(t, buf.Channel(0)[i], out.Channel(0)[i], 1e-6)
	}
}

func TestApplyEQPreservesShape(t *testing.T) {
	t.Parallel()

	buf := toneBuffer(500, 44100, 512)
	gains := [7]float64{3, -3, 0, 0, 0, 0, 0}

	out := applyEQ(buf, gains)
	assert.True(t, audio.SameShape(buf, out))
	require.NoError(t, out.ValidateFinite("eq"))
}

func TestBandpassAllocatesFreshArrayEachCall(t *testing.T) {
	t.Parallel()

	src := []float32{1, 0, -1, 0, 1, 0, -1, 0}
	out1 := bandpass(src, 8000, 500, 2000)
	out2 := bandpass(src, 8000, 500, 2000)

	require.Len(t, out1, len(src))
	out1[0] = 999
	assert.NotEqual(t, out1[0], out2[0], "bandpass must not return an aliased shared buffer across calls")
}

func TestOnePoleLowPassAtCutoffAboveNyquistIsPassthrough(t *testing.T) {
	t.Parallel()

	src := []float32{0.1, 0.2, -0.3, 0.4}
	out := onePoleLowPass(src, 1000, 10000)
	assert.Equal(t, src, out)
}

func TestOnePoleHighPassWithZeroCutoffIsPassthrough(t *testing.T) {
	t.Parallel()

	src := []float32{0.1, 0.2, -0.3, 0.4}
	out := onePoleHighPass(src, 1000, 0)
	assert.Equal(t, src, out)
}

func TestMonoSumAveragesChannelsEqually(t *testing.T) {
	t.Parallel()

	buf := audio.NewBuffer(44100, [][]float32{{1, 1}, {-1, -1}})
	mono := monoSum(buf)
	for _, v := range mono {
		assert.InDelta(t, 0.0, v, 1e-6)
	}
}
