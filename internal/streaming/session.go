package streaming

import (
	"context"
	"encoding/binary"
	"log/slog"
	"math"
	"sync"

	"github.com/auralis/auralis/internal/apperrors"
	"github.com/auralis/auralis/internal/audio"
	"github.com/auralis/auralis/internal/constants"
	"github.com/auralis/auralis/internal/fingerprint"
	"github.com/auralis/auralis/internal/processor"
)

// chunkProduceResult carries a produceChunk outcome across the goroutine
// boundary used to bound the first chunk's construction with a timeout.
type chunkProduceResult struct {
	chunk processor.Chunk
	tail  audio.Buffer
	err   error
}

type sessionState string

const (
	stateInit      sessionState = "init"
	stateStreaming sessionState = "streaming"
	statePaused    sessionState = "paused"
	stateEnded     sessionState = "ended"
	stateAborted   sessionState = "aborted"
	stateErrored   sessionState = "errored"
)

// controlMessage is one entry in a session's inbox.
type controlMessage struct {
	kind      string
	seekPos   float64
	preset    string
	intensity float64
}

const (
	ctrlPause  = "pause"
	ctrlResume = "resume"
	ctrlSeek   = "seek"
	ctrlAbort  = "abort"
	ctrlUpdateSettings = "update_settings"
)

// Sender abstracts the transport so Session has no direct gorilla/
// websocket dependency in its control-flow logic; Transport (in
// transport.go) is the only file that imports gorilla/websocket.
type Sender interface {
	SendJSON(envelope Envelope) error
	SendBinary(frame []byte) error
}

// TrackSource supplies everything a session needs to know about the
// track it's streaming, decoupling Session from the library package.
type TrackSource struct {
	TrackID      string
	FilePath     string
	SampleRate   int
	Channels     int
	TotalSamples int
	Fingerprint  fingerprint.Fingerprint
}

// Session is the single-writer driver for one active stream. Only the
// driver goroutine mutates state directly; every other actor
// (control messages from the transport's read loop) posts to inbox.
type Session struct {
	id     string
	sender Sender
	proc   *processor.Processor
	logger *slog.Logger

	inbox chan controlMessage

	mu          sync.Mutex
	state       sessionState
	preset      string
	intensity   float64
	nextIndex   int
	prevTail    audio.Buffer
	fastStart   bool
}

// NewSession constructs a session ready to Run. fastStart is per-session
// and resets for every new session, never a global singleton flag.
func NewSession(id string, sender Sender, proc *processor.Processor, preset string, intensity float64, logger *slog.Logger) *Session {
	return &Session{
		id:        id,
		sender:    sender,
		proc:      proc,
		logger:    logger.With("session_id", id),
		inbox:     make(chan controlMessage, 16),
		state:     stateInit,
		preset:    preset,
		intensity: intensity,
		fastStart: true,
	}
}

// Post enqueues a control message. Pause/resume/seek/abort never block
// the caller and are safe to call from the transport's read goroutine.
func (s *Session) Post(kind string, seekPos float64, preset string, intensity float64) {
	select {
	case s.inbox <- controlMessage{kind: kind, seekPos: seekPos, preset: preset, intensity: intensity}:
	default:
		// Inbox full: control messages are idempotent enough (pause,
		// seek) that dropping under extreme backlog is acceptable; the
		// alternative (blocking the reader) would stall the connection.
	}
}

// Run acquires a stream permit, sends stream_init, and drives chunks
// until end-of-track, abort, or an unrecoverable error. The permit is
// always released on return, even on panic recovery higher up the call
// stack, via the semaphore.Release deferred immediately after Acquire
// succeeds.
func (s *Session) Run(ctx context.Context, track TrackSource) {
	permits := getStreamPermits()
	if err := permits.Acquire(ctx, 1); err != nil {
		s.sendStreamError("backpressure", -1)
		return
	}
	defer permits.Release(1)

	activeStreams.Inc()
	defer activeStreams.Dec()

	s.mu.Lock()
	s.state = stateStreaming
	s.mu.Unlock()

	if err := s.sender.SendJSON(Envelope{Type: ServerStreamInit, Data: mustJSON(StreamInitPayload{
		SampleRate: track.SampleRate,
		Channels:   track.Channels,
		TrackID:    track.TrackID,
	})}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			s.finish(stateAborted)
			return
		case msg := <-s.inbox:
			if !s.applyControl(msg) {
				s.finish(stateAborted)
				return
			}
			continue
		default:
		}

		s.mu.Lock()
		paused := s.state == statePaused
		aborted := s.state == stateAborted
		s.mu.Unlock()
		if aborted {
			return
		}
		if paused {
			select {
			case <-ctx.Done():
				s.finish(stateAborted)
				return
			case msg := <-s.inbox:
				s.applyControl(msg)
				continue
			}
		}

		s.mu.Lock()
		idx := s.nextIndex
		preset := s.preset
		intensity := s.intensity
		prevTail := s.prevTail
		fastStart := s.fastStart
		s.mu.Unlock()

		chunk, newTail, err := s.produceChunk(ctx, processor.Request{
			TrackID:      track.TrackID,
			FilePath:     track.FilePath,
			Preset:       preset,
			Intensity:    intensity,
			ChunkIndex:   idx,
			SampleRate:   track.SampleRate,
			TotalSamples: track.TotalSamples,
			Fingerprint:  track.Fingerprint,
			PrevTail:     prevTail,
			FastStart:    fastStart,
		}, idx)
		if err != nil {
			if apperrors.CategoryOf(err) == apperrors.CategoryInvalid {
				// Past end of track: clean end, not an error.
				s.sendEnd()
				s.finish(stateEnded)
				return
			}
			s.handleChunkError(err, idx)
			return
		}

		if err := s.sendChunk(chunk); err != nil {
			s.handleChunkError(err, idx)
			return
		}
		chunksServed.WithLabelValues(preset).Inc()

		// prev_tail only advances after a successfully staged send
		// (transactional crossfade state).
		s.mu.Lock()
		s.prevTail = newTail
		s.nextIndex = idx + 1
		s.fastStart = false
		s.mu.Unlock()
	}
}

// chunkConstructTimeout is a var, not the constants.ChunkConstructTimeout
// constant directly, so tests can shrink it and exercise the timeout
// branch without a 30-second sleep.
var chunkConstructTimeout = constants.ChunkConstructTimeout

// produceChunk runs the chunk build, bounding only chunk 0 by
// chunkConstructTimeout. Later chunks call Produce directly with no
// deadline; on a cache miss their read also touches the filesystem and
// decodes the source from its start (see audio.Loader.ReadRange).
func (s *Session) produceChunk(ctx context.Context, req processor.Request, idx int) (processor.Chunk, audio.Buffer, error) {
	if idx != 0 {
		return s.proc.Produce(req)
	}

	resCh := make(chan chunkProduceResult, 1)
	go func() {
		chunk, tail, err := s.proc.Produce(req)
		resCh <- chunkProduceResult{chunk: chunk, tail: tail, err: err}
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, chunkConstructTimeout)
	defer cancel()
	select {
	case res := <-resCh:
		return res.chunk, res.tail, res.err
	case <-timeoutCtx.Done():
		return processor.Chunk{}, audio.Buffer{}, apperrors.Newf("chunk construction timed out after %s", chunkConstructTimeout).
			Category(apperrors.CategoryTimeout).
			Context("chunk_index", idx).
			Build()
	}
}

func (s *Session) applyControl(msg controlMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch msg.kind {
	case ctrlPause:
		s.state = statePaused
	case ctrlResume:
		if s.state == statePaused {
			s.state = stateStreaming
		}
	case ctrlSeek:
		s.nextIndex = int(msg.seekPos / constants.ChunkIntervalS)
		s.prevTail = audio.Buffer{}
		if s.state == statePaused {
			s.state = stateStreaming
		}
	case ctrlUpdateSettings:
		if constants.IsValidPreset(msg.preset) {
			s.preset = msg.preset
		}
		s.intensity = constants.ClampIntensity(msg.intensity)
	case ctrlAbort:
		s.state = stateAborted
		return false
	}
	return true
}

func (s *Session) sendChunk(chunk processor.Chunk) error {
	if err := s.sender.SendJSON(Envelope{Type: ServerAudioChunk, Data: mustJSON(AudioChunkPayload{
		ChunkIndex:       chunk.ChunkIndex,
		SampleCount:      chunk.ActualLengthSamples,
		CrossfadeSamples: 0,
	})}); err != nil {
		return err
	}
	for _, frame := range framePCM(chunk.Audio, constants.PCMFrameSamples) {
		if err := s.sender.SendBinary(frame); err != nil {
			return err
		}
	}
	return nil
}

// framePCM splits buf into fixed-size, stereo-interleaved, little-endian
// float32 frames, each at most PCMFrameSamples per channel so outbound
// messages stay well under the transport's size limit.
func framePCM(buf audio.Buffer, frameSamples int) [][]byte {
	n := buf.Samples()
	ch := buf.Channels()
	if n == 0 {
		return nil
	}
	var frames [][]byte
	for start := 0; start < n; start += frameSamples {
		end := start + frameSamples
		if end > n {
			end = n
		}
		count := end - start
		out := make([]byte, count*ch*4)
		for i := 0; i < count; i++ {
			for c := 0; c < ch; c++ {
				bits := math.Float32bits(buf.Channel(c)[start+i])
				off := (i*ch + c) * 4
				binary.LittleEndian.PutUint32(out[off:off+4], bits)
			}
		}
		frames = append(frames, out)
	}
	return frames
}

func (s *Session) handleChunkError(err error, chunkIndex int) {
	kind := string(apperrors.CategoryOf(err))
	streamErrors.WithLabelValues(kind).Inc()
	s.sendStreamError(kind, chunkIndex)
	s.finish(stateErrored)
}

func (s *Session) sendStreamError(kind string, chunkIndex int) {
	_ = s.sender.SendJSON(Envelope{Type: ServerStreamError, Data: mustJSON(StreamErrorPayload{
		Kind: kind, ChunkIndex: chunkIndex,
	})})
}

func (s *Session) sendEnd() {
	_ = s.sender.SendJSON(Envelope{Type: ServerStreamEnd})
}

func (s *Session) finish(final sessionState) {
	s.mu.Lock()
	s.state = final
	s.mu.Unlock()
}
