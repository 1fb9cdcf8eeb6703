// Package streaming drives one WebSocket session per connected client:
// accepting the connection, running the single-writer driver loop that
// pulls processed chunks and frames them for send, honoring pause/seek
// /abort control messages, and enforcing the process-wide concurrency
// cap. Modeled on the teacher's AudioStreamManager connection lifecycle
// (internal/httpcontroller/handlers/websocket.go), adapted from a
// fan-out broadcast of a single audio source to a per-session pull-based
// driver over a synthesized chunk sequence.
package streaming

import "encoding/json"

// Envelope is the JSON shape of every message in both directions: a
// type tag, optional correlation id, and a payload. Extra fields found
// on an inbound envelope are preserved by round-tripping through
// json.RawMessage rather than a fixed struct.
type Envelope struct {
	Type          string          `json:"type"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
}

// Client message types (closed enum). Anything else is logged and
// answered with a sanitized error, never silently dropped.
const (
	ClientPing                 = "ping"
	ClientPlayEnhanced         = "play_enhanced"
	ClientPlayNormal           = "play_normal"
	ClientPause                = "pause"
	ClientResume               = "resume"
	ClientSeek                 = "seek"
	ClientStop                 = "stop"
	ClientSetPresetIntensity   = "set_preset_intensity"
	ClientSubscribeJobProgress = "subscribe_job_progress"
	ClientABTrackLoaded        = "ab_track_loaded"
)

var validClientTypes = map[string]bool{
	ClientPing: true, ClientPlayEnhanced: true, ClientPlayNormal: true,
	ClientPause: true, ClientResume: true, ClientSeek: true, ClientStop: true,
	ClientSetPresetIntensity: true, ClientSubscribeJobProgress: true, ClientABTrackLoaded: true,
}

// IsValidClientType reports whether t is one of the closed enum of
// client message types this server understands.
func IsValidClientType(t string) bool { return validClientTypes[t] }

// Server message types.
const (
	ServerStreamInit                = "stream_init"
	ServerAudioChunk                = "audio_chunk"
	ServerStreamEnd                 = "stream_end"
	ServerStreamError               = "stream_error"
	ServerPositionChanged            = "position_changed"
	ServerPlayerState                = "player_state"
	ServerEnhancementSettingsChanged = "enhancement_settings_changed"
	ServerPong                       = "pong"
	ServerError                      = "error"
)

type PlayEnhancedPayload struct {
	TrackID   string  `json:"track_id"`
	Preset    string  `json:"preset"`
	Intensity float64 `json:"intensity"`
}

type SeekPayload struct {
	PositionS float64 `json:"position_s"`
}

type SetPresetIntensityPayload struct {
	Preset    string  `json:"preset"`
	Intensity float64 `json:"intensity"`
}

type StreamInitPayload struct {
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	TrackID    string `json:"track_id"`
}

// AudioChunkPayload is the metadata envelope sent immediately before the
// chunk's raw PCM frames, which travel as separate binary WebSocket
// messages rather than being embedded/base64'd into this JSON payload.
type AudioChunkPayload struct {
	ChunkIndex       int `json:"chunk_index"`
	SampleCount      int `json:"sample_count"`
	CrossfadeSamples int `json:"crossfade_samples"`
}

type StreamErrorPayload struct {
	Kind       string `json:"kind"`
	ChunkIndex int    `json:"chunk_index"`
}

type PositionChangedPayload struct {
	PositionS float64 `json:"position_s"`
}
