package dsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auralis/auralis/internal/audio"
)

func TestApplyStereoWidthOnMonoBufferIsNoop(t *testing.T) {
	t.Parallel()

	buf := audio.NewBuffer(44100, [][]float32{{0.1, 0.2, 0.3}})
	out := applyStereoWidth(buf, 1.5)
	assert.Equal(t, buf.Channel(0), out.Channel(0))
}

func TestApplyStereoWidthOnSilentChannelIsUnchanged(t *testing.T) {
	t.Parallel()

	n := 512
	l := make([]float32, n)
	r := make([]float32, n)
	buf := audio.NewBuffer(44100, [][]float32{l, r})

	out := applyStereoWidth(buf, 1.8)
	assert.Equal(t, buf.Channel(0), out.Channel(0))
	assert.Equal(t, buf.Channel(1), out.Channel(1))
}

func TestApplyStereoWidthPreservesMidSignalAtUnityWidth(t *testing.T) {
	t.Parallel()

	n := 1024
	l := make([]float32, n)
	r := make([]float32, n)
	for i := 0; i < n; i++ {
		l[i] = float32(0.3)
		r[i] = float32(-0.2)
	}
	buf := audio.NewBuffer(44100, [][]float32{l, r})

	out := applyStereoWidth(buf, 1.0)
	require.NoError(t, out.ValidateFinite("stereo"))
	assert.True(t, audio.SameShape(buf, out))

	for i := 0; i < n; i++ {
		mid := (out.Channel(0)[i] + out.Channel(1)[i]) / 2
		wantMid := (l[i] + r[i]) / 2
		assert.InDelta(t, wantMid, mid, 1e-3)
	}
}

func TestApplyStereoWidthNeverProducesNaN(t *testing.T) {
	t.Parallel()

	n := 2048
	l := make([]float32, n)
	r := make([]float32, n)
	for i := 0; i < n; i++ {
		l[i] = float32(i%7) * 0.1
		r[i] = float32(i%5) * -0.1
	}
	buf := audio.NewBuffer(44100, [][]float32{l, r})

	out := applyStereoWidth(buf, 2.0)
	require.NoError(t, out.ValidateFinite("stereo"))
}

func TestIsConstantOrSilentDetectsConstantSignal(t *testing.T) {
	t.Parallel()

	assert.True(t, isConstantOrSilent([]float32{0.5, 0.5, 0.5}))
	assert.True(t, isConstantOrSilent(nil))
	assert.False(t, isConstantOrSilent([]float32{0.5, 0.6, 0.5}))
}
