package conversation

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/youruser/docchat/internal/api"
	"github.com/youruser/docchat/internal/stream"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation turn. While an assistant message is
// streaming its ID is locally generated and Content grows in place; on
// finalization the server id and sources are adopted and Content becomes
// immutable.
type Message struct {
	ID          string             `json:"id"`
	Role        string             `json:"role"`
	Content     string             `json:"content"`
	Attachments []api.Attachment   `json:"attachments,omitempty"`
	Sources     []stream.SourceRef `json:"sources,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
	Streaming   bool               `json:"streaming"`
	Cancelled   bool               `json:"cancelled,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// Failed reports whether this message is the inline representation of a
// failed generation.
func (m *Message) Failed() bool {
	return m.Error != ""
}

func newUserMessage(content string, attachments []api.Attachment) *Message {
	return &Message{
		ID:          uuid.NewString(),
		Role:        RoleUser,
		Content:     content,
		Attachments: attachments,
		Timestamp:   time.Now().UTC(),
	}
}

func newPlaceholder() *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Timestamp: time.Now().UTC(),
		Streaming: true,
	}
}

// FromHistory converts persisted server messages into conversation
// messages, e.g. when resuming a server-side session. Unreadable source
// metadata is dropped rather than failing the resume.
func FromHistory(history []api.MessageResponse) []*Message {
	messages := make([]*Message, 0, len(history))
	for _, h := range history {
		m := &Message{
			ID:        h.ID,
			Role:      h.Role,
			Content:   h.Content,
			Timestamp: parseServerTime(h.CreatedAt),
		}
		if h.SourcesJSON != "" {
			var sources []stream.SourceRef
			if err := json.Unmarshal([]byte(h.SourcesJSON), &sources); err == nil {
				m.Sources = sources
			}
		}
		messages = append(messages, m)
	}
	return messages
}

// serverTimeLayouts covers the timestamp shapes the backend has been seen
// to emit (RFC 3339 and naive ISO 8601 without a zone).
var serverTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// parseServerTime parses a server timestamp, falling back to the local
// clock when the value is empty or unrecognized.
func parseServerTime(s string) time.Time {
	for _, layout := range serverTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}
