package audio

import (
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/auralis/auralis/internal/apperrors"
)

// FileInfo describes the decodable properties of a source file, resolved
// once so the chunked processor can compute chunk boundaries without
// re-opening the file.
type FileInfo struct {
	SampleRate   int
	Channels     int
	TotalSamples int
}

// Loader reads fixed sample ranges out of a WAV file, following the
// teacher's audiocore/sources pattern of streaming reads rather than
// decoding a whole file into memory.
type Loader struct{}

// NewLoader constructs a Loader. Stateless; safe to share.
func NewLoader() *Loader { return &Loader{} }

// Probe opens path just far enough to report its format and sample count.
func (l *Loader) Probe(path string) (FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileInfo{}, apperrors.Newf("open %s", "audio file").
			Category(apperrors.CategoryNotFound).Build()
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return FileInfo{}, apperrors.Newf("not a valid wav file").
			Category(apperrors.CategoryInvalid).Build()
	}
	dec.ReadInfo()
	duration, err := dec.Duration()
	if err != nil {
		return FileInfo{}, apperrors.Newf("read wav duration: %w", err).
			Category(apperrors.CategoryInvalid).Build()
	}
	sr := int(dec.SampleRate)
	total := int(duration.Seconds() * float64(sr))
	return FileInfo{
		SampleRate:   sr,
		Channels:     int(dec.NumChans),
		TotalSamples: total,
	}, nil
}

// ReadRange decodes samples [startSample, startSample+length) from path.
// Frames before startSample are decoded and discarded (there is no seek),
// and decoding stops once length frames are collected, so the file is
// never read past the end of the requested range.
func (l *Loader) ReadRange(path string, startSample, length int) (Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return Buffer{}, apperrors.Newf("open audio file").
			Category(apperrors.CategoryNotFound).Build()
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Buffer{}, apperrors.Newf("not a valid wav file").
			Category(apperrors.CategoryInvalid).Build()
	}
	dec.ReadInfo()
	channels := int(dec.NumChans)
	sampleRate := int(dec.SampleRate)

	pcm := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: int(dec.BitDepth),
	}

	frames := make([][]float32, channels)
	for i := range frames {
		frames[i] = make([]float32, 0, length)
	}

	const readFrameChunk = 4096
	buf := &audio.IntBuffer{
		Format: pcm.Format,
		Data:   make([]int, readFrameChunk*channels),
	}

	framesSkipped := 0
	framesRead := 0
	maxVal := float32(int(1)<<(dec.BitDepth-1)) - 1
	if maxVal <= 0 {
		maxVal = 1
	}

	for framesRead < length {
		n, err := dec.PCMBuffer(buf)
		if err != nil && err != io.EOF {
			return Buffer{}, apperrors.Newf("decode wav: %w", err).
				Category(apperrors.CategoryInternal).Build()
		}
		if n == 0 {
			break
		}
		nFrames := n / channels
		for fi := 0; fi < nFrames; fi++ {
			if framesSkipped < startSample {
				framesSkipped++
				continue
			}
			if framesRead >= length {
				break
			}
			for c := 0; c < channels; c++ {
				v := float32(buf.Data[fi*channels+c]) / maxVal
				frames[c] = append(frames[c], v)
			}
			framesRead++
		}
		if err == io.EOF {
			break
		}
	}

	return NewBuffer(sampleRate, frames), nil
}
