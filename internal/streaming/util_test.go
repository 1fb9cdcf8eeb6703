package streaming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMustJSONMarshalsPlainStruct(t *testing.T) {
	t.Parallel()

	raw := mustJSON(StreamInitPayload{SampleRate: 44100, Channels: 2, TrackID: "t1"})
	assert.JSONEq(t, `{"sample_rate":44100,"channels":2,"track_id":"t1"}`, string(raw))
}

func TestMustJSONMarshalsZeroValueStruct(t *testing.T) {
	t.Parallel()

	raw := mustJSON(StreamErrorPayload{})
	assert.JSONEq(t, `{"kind":"","chunk_index":0}`, string(raw))
}
