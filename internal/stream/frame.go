// Package stream implements the consumer side of the document-chat
// streaming protocol: it splits the raw response feed into typed frames,
// dispatches them in arrival order onto a per-request session, and
// coordinates user-initiated cancellation with a best-effort notice to
// the server.
package stream

import "encoding/json"

// Frame types carried on the wire. Unknown types are skipped by the
// dispatcher so the server can add new ones without breaking old clients.
const (
	FrameStart = "start"
	FrameChunk = "chunk"
	FrameDone  = "done"
	FrameError = "error"
)

// SourceRef points at the document chunk a finalized answer was grounded on.
type SourceRef struct {
	DocumentID string `json:"document_id"`
	ChunkIndex int    `json:"chunk_index"`
	Preview    string `json:"preview"`
}

// Frame is one decoded event from the streaming feed. Which fields are
// populated depends on Type. Frames are transient: they are consumed by
// the dispatcher and never stored.
type Frame struct {
	Type string `json:"type"`

	// start
	StreamID  string `json:"stream_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	// chunk
	Content string `json:"content,omitempty"`

	// done. CreatedAt is kept as the raw server string; the backend does
	// not guarantee RFC 3339, so parsing is left to the consumer.
	MessageID string      `json:"message_id,omitempty"`
	CreatedAt string      `json:"created_at,omitempty"`
	Sources   []SourceRef `json:"sources,omitempty"`

	// error
	Message string `json:"message,omitempty"`
}

// decodeFrame parses one frame payload.
func decodeFrame(payload []byte) (Frame, error) {
	var f Frame
	err := json.Unmarshal(payload, &f)
	return f, err
}
