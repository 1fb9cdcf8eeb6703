package dsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auralis/auralis/internal/audio"
)

func TestNormalizeLUFSWithPlaceholderLoudnessIsNoop(t *testing.T) {
	t.Parallel()

	buf := toneBuffer(500, 44100, 512)
	out := normalizeLUFS(buf, -200, -14)
	assert.Equal(t, buf.Channel(0), out.Channel(0))
}

func TestNormalizeLUFSBringsLoudMaterialDown(t *testing.T) {
	t.Parallel()

	n := 4096
	ch := make([]float32, n)
	for i := range ch {
		ch[i] = 0.9
	}
	buf := audio.NewBuffer(44100, [][]float32{ch})

	out := normalizeLUFS(buf, -3, -14)
	for _, v := range out.Channel(0) {
		assert.Less(t, v, ch[0], "a buffer measured louder than target must be attenuated")
	}
}

func TestNormalizeLUFSBringsQuietMaterialUp(t *testing.T) {
	t.Parallel()

	n := 4096
	ch := make([]float32, n)
	for i := range ch {
		ch[i] = 0.01
	}
	buf := audio.NewBuffer(44100, [][]float32{ch})

	out := normalizeLUFS(buf, -40, -14)
	for _, v := range out.Channel(0) {
		assert.Greater(t, v, ch[0])
	}
}

func TestNormalizeLUFSClampsExtremeGainTo24dB(t *testing.T) {
	t.Parallel()

	n := 1024
	ch := make([]float32, n)
	for i := range ch {
		ch[i] = 0.001
	}
	buf := audio.NewBuffer(44100, [][]float32{ch})

	out := normalizeLUFS(buf, -90, 0)
	require.NoError(t, out.ValidateFinite("normalize"))
	maxRatio := float32(dbToLinear(24)) + 0.01
	for i, v := range out.Channel(0) {
		if ch[i] == 0 {
			continue
		}
		ratio := v / ch[i]
		assert.LessOrEqual(t, ratio, maxRatio)
	}
}

func TestMeasureLUFSOfSilenceReturnsFloorValue(t *testing.T) {
	t.Parallel()

	buf := audio.NewSilentBuffer(44100, 2, 1024)
	assert.Equal(t, -100.0, measureLUFS(buf))
}

func TestMeasureLUFSOfLouderSignalIsHigherThanQuieter(t *testing.T) {
	t.Parallel()

	n := 1024
	loud := make([]float32, n)
	quiet := make([]float32, n)
	for i := range loud {
		loud[i] = 0.8
		quiet[i] = 0.05
	}
	loudBuf := audio.NewBuffer(44100, [][]float32{loud})
	quietBuf := audio.NewBuffer(44100, [][]float32{quiet})

	assert.Greater(t, measureLUFS(loudBuf), measureLUFS(quietBuf))
}
