// Package conversation reconciles streamed events into the durable
// message list the rest of the application displays. One submission is
// one Exchange: an optimistic user message plus a placeholder assistant
// message bound 1:1 to a stream session.
package conversation

import (
	"context"
	"errors"

	"github.com/youruser/docchat/internal/api"
	"github.com/youruser/docchat/internal/logging"
	"github.com/youruser/docchat/internal/stream"
)

var (
	// ErrStreamInProgress is returned when a submission is attempted
	// while another one is still streaming for this conversation.
	ErrStreamInProgress = errors.New("a response is still streaming")

	log = logging.Get()
)

// Streamer opens a streaming request. Implemented by api.Client.
type Streamer interface {
	StreamMessage(ctx context.Context, req api.MessageRequest, sessionKnown bool) (*stream.Session, error)
}

// Exchange binds one submitted user message to its streaming reply.
type Exchange struct {
	User      *Message
	Assistant *Message
	Session   *stream.Session
}

// Cancel aborts the exchange's stream. Safe to call at any time.
func (ex *Exchange) Cancel() {
	ex.Session.Cancel()
}

// Conversation is an ordered message list plus the server session it is
// attached to. At most one exchange streams at a time; Send refuses a new
// submission until the previous one is terminal.
type Conversation struct {
	sessionID string
	messages  []*Message
	active    *stream.Session
}

// New returns an empty conversation. sessionID may be "" for a brand-new
// conversation; it is then adopted from the first start frame.
func New(sessionID string) *Conversation {
	return &Conversation{sessionID: sessionID}
}

// NewFromTranscript rebuilds a conversation from previously stored
// messages, e.g. when resuming a saved transcript.
func NewFromTranscript(sessionID string, messages []*Message) *Conversation {
	c := &Conversation{sessionID: sessionID}
	c.messages = append(c.messages, messages...)
	return c
}

// SessionID returns the adopted server session id, or "".
func (c *Conversation) SessionID() string {
	return c.sessionID
}

// Messages returns the conversation's messages in order. The returned
// slice is a snapshot; the messages themselves are shared.
func (c *Conversation) Messages() []*Message {
	out := make([]*Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Streaming reports whether an exchange is currently in flight.
func (c *Conversation) Streaming() bool {
	return c.active != nil && !c.active.Status().Terminal()
}

// TokenEstimate approximates the token footprint of the transcript.
func (c *Conversation) TokenEstimate() int {
	total := 0
	for _, m := range c.messages {
		total += api.EstimateTokensSimple(m.Content)
	}
	return total
}

// Send submits a message. The user message is appended synchronously,
// before any network activity, then the placeholder assistant message is
// created and the stream opened. The caller drives the exchange to a
// terminal state with Reconcile.
func (c *Conversation) Send(ctx context.Context, client Streamer, content string, attachments []api.Attachment) (*Exchange, error) {
	if c.Streaming() {
		return nil, ErrStreamInProgress
	}

	user := newUserMessage(content, attachments)
	c.messages = append(c.messages, user)

	placeholder := newPlaceholder()
	c.messages = append(c.messages, placeholder)

	sess, err := client.StreamMessage(ctx, api.MessageRequest{
		Content:   content,
		SessionID: c.sessionID,
		Files:     attachments,
	}, c.sessionID != "")
	if err != nil {
		// Connection failed before streaming began.
		placeholder.Streaming = false
		placeholder.Error = err.Error()
		return nil, err
	}

	c.active = sess
	return &Exchange{User: user, Assistant: placeholder, Session: sess}, nil
}

// Reconcile consumes the exchange's events until its session is terminal,
// mutating the placeholder in place so its identity is preserved for the
// display layer. onDelta, if non-nil, is invoked for each chunk as it
// arrives.
//
// The returned error fires exactly once per failed exchange (server error
// frame or transport failure). A user cancellation returns nil: the
// initiator already knows it cancelled.
func (c *Conversation) Reconcile(ex *Exchange, onDelta func(delta string)) error {
	var failure error

	for ev := range ex.Session.Events() {
		switch ev.Type {
		case stream.EventSession:
			c.adoptSessionID(ev.SessionID)

		case stream.EventChunk:
			ex.Assistant.Content += ev.Delta
			if onDelta != nil {
				onDelta(ev.Delta)
			}

		case stream.EventDone:
			c.finalize(ex.Assistant, ex.Session, ev.Done)

		case stream.EventError:
			ex.Assistant.Streaming = false
			ex.Assistant.Error = ev.Err.Error()
			failure = ev.Err

		case stream.EventCancelled:
			// Keep whatever partial content arrived; mark it so the
			// display layer can label the turn as stopped by the user.
			ex.Assistant.Streaming = false
			ex.Assistant.Cancelled = true
			log.Info("exchange cancelled with %d bytes of partial content", len(ex.Assistant.Content))
		}
	}

	c.active = nil
	return failure
}

// adoptSessionID records the server session id. First adoption wins; the
// id is immutable afterwards.
func (c *Conversation) adoptSessionID(id string) {
	if c.sessionID != "" || id == "" {
		return
	}
	c.sessionID = id
	log.Debug("adopted session id %s", id)
}

// finalize turns the placeholder into the durable assistant message. The
// final content is the session's accumulated content, which matches the
// deltas already applied in arrival order.
func (c *Conversation) finalize(m *Message, sess *stream.Session, fin *stream.Finalization) {
	m.Content = sess.Content()
	if fin.MessageID != "" {
		m.ID = fin.MessageID
	}
	if fin.CreatedAt != "" {
		m.Timestamp = parseServerTime(fin.CreatedAt)
	}
	m.Sources = fin.Sources
	m.Streaming = false
}
