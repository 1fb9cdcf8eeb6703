package library

import (
	"context"

	"github.com/auralis/auralis/internal/fingerprint"
	"github.com/auralis/auralis/internal/streaming"
)

// StreamingLookup implements streaming.TrackLookup against the catalog,
// the seam the stream controller uses to go from a client-supplied
// track_id to the file path and fingerprint it needs, without the
// streaming package importing the library package directly.
type StreamingLookup struct {
	tracks       TrackRepository
	fingerprints FingerprintRepository
}

// NewStreamingLookup constructs the adapter.
func NewStreamingLookup(tracks TrackRepository, fingerprints FingerprintRepository) *StreamingLookup {
	return &StreamingLookup{tracks: tracks, fingerprints: fingerprints}
}

// Resolve looks up track metadata and its fingerprint, falling back to
// the default fingerprint if analysis has not completed yet so a
// stream can still start at reduced quality rather than failing.
func (l *StreamingLookup) Resolve(ctx context.Context, trackID string) (streaming.TrackSource, error) {
	t, err := l.tracks.Get(ctx, trackID)
	if err != nil {
		return streaming.TrackSource{}, err
	}

	fp, err := l.fingerprints.Get(ctx, trackID)
	if err != nil {
		fp = fingerprint.Default()
	}

	return streaming.TrackSource{
		TrackID:      t.ID,
		FilePath:     t.FilePath,
		SampleRate:   t.SampleRate,
		Channels:     t.Channels,
		TotalSamples: int(t.DurationS * float64(t.SampleRate)),
		Fingerprint:  fp,
	}, nil
}
