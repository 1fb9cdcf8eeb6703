package streaming

import "encoding/json"

// mustJSON marshals v into a json.RawMessage. Every payload type in this
// package is a plain struct of primitives, so marshaling cannot fail;
// a failure here would indicate a programming error, not a runtime
// condition callers should handle.
func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
