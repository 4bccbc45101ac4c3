package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

var (
	// ErrTransport marks connection failures before or during streaming.
	ErrTransport = errors.New("stream transport failed")
	// ErrServer marks an explicit error frame from the server.
	ErrServer = errors.New("server error")
)

// Status is the lifecycle state of a Session.
type Status int

const (
	StatusPending Status = iota
	StatusActive
	StatusCancelling
	StatusCompleted
	StatusErrored
	StatusCancelled
)

var statusNames = map[Status]string{
	StatusPending:    "pending",
	StatusActive:     "active",
	StatusCancelling: "cancelling",
	StatusCompleted:  "completed",
	StatusErrored:    "errored",
	StatusCancelled:  "cancelled",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Terminal reports whether no further frame processing occurs in this state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusErrored || s == StatusCancelled
}

// accepting reports whether chunk content may still grow.
func (s Status) accepting() bool {
	return s == StatusPending || s == StatusActive
}

// EventType discriminates the events a Session delivers to its consumer.
type EventType int

const (
	// EventSession carries the server-assigned session id for a brand-new
	// conversation. Emitted at most once, before any chunk.
	EventSession EventType = iota
	// EventChunk carries one text delta for incremental display.
	EventChunk
	// EventDone carries the finalization metadata. Terminal.
	EventDone
	// EventError carries a server or transport failure. Terminal.
	EventError
	// EventCancelled confirms a user-requested abort. Terminal, and never
	// delivered through the error path.
	EventCancelled
)

// Event is the single typed unit delivered on the session's channel.
// Which fields are set depends on Type.
type Event struct {
	Type      EventType
	SessionID string        // EventSession
	Delta     string        // EventChunk
	Done      *Finalization // EventDone
	Err       error         // EventError
}

// Finalization is the metadata from a done frame.
type Finalization struct {
	MessageID string
	CreatedAt string
	Sources   []SourceRef
}

// NotifyFunc sends the out-of-band cancellation notice for a captured
// stream handle. Implementations are fire-and-forget: they log failures
// and never retry.
type NotifyFunc func(streamID string)

// Config wires a Session to its transport and conversation.
type Config struct {
	// Abort stops the transport read immediately (typically the cancel
	// func of the request context). Required for cancellation to take
	// effect while the read loop is blocked awaiting the next fragment.
	Abort context.CancelFunc
	// Notify is the best-effort remote cancellation notice. May be nil.
	Notify NotifyFunc
	// SessionKnown suppresses the session-identity event when the
	// conversation already adopted a server session id.
	SessionKnown bool
}

// Session owns one streaming request from submission to a terminal state.
// Frames are dispatched strictly in arrival order; the consumer receives
// them as Events on a single channel. Cancel may be called from any
// goroutine at any point in the lifecycle.
type Session struct {
	mu          sync.Mutex
	status      Status
	streamID    string
	content     strings.Builder
	sessionSent bool

	abort    context.CancelFunc
	notify   NotifyFunc
	notified bool

	events chan Event
}

// NewSession creates a session in the pending state. The caller runs the
// read loop via Run, usually on its own goroutine.
func NewSession(cfg Config) *Session {
	return &Session{
		status:      StatusPending,
		sessionSent: cfg.SessionKnown,
		abort:       cfg.Abort,
		notify:      cfg.Notify,
		events:      make(chan Event, 16),
	}
}

// Events returns the session's event channel. It is closed once the
// session reaches a terminal state and the read loop has exited.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// StreamID returns the server's stream handle, or "" before the start
// frame has been observed.
func (s *Session) StreamID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamID
}

// Content returns the concatenation of all chunk deltas received so far,
// in arrival order.
func (s *Session) Content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content.String()
}

// Run consumes the transport until end-of-stream or abort, feeding every
// fragment through the session's own parser. It closes the body and the
// event channel on exit. Run must be called exactly once.
func (s *Session) Run(body io.ReadCloser) {
	defer close(s.events)
	defer body.Close()

	parser := NewParser()
	buf := make([]byte, 16*1024)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			for _, frame := range parser.Feed(buf[:n]) {
				s.dispatch(frame)
			}
		}
		if err != nil {
			if parser.Pending() {
				log.Debug("discarding incomplete trailing segment at end of stream")
			}
			s.finish(err)
			return
		}
	}
}

// dispatch routes one frame. Handlers run sequentially on the read loop:
// frame N+1 is not looked at until frame N's event has been delivered.
func (s *Session) dispatch(frame Frame) {
	switch frame.Type {
	case FrameStart:
		s.mu.Lock()
		if s.status != StatusPending {
			s.mu.Unlock()
			return
		}
		s.status = StatusActive
		s.streamID = frame.StreamID
		emitSession := frame.SessionID != "" && !s.sessionSent
		if emitSession {
			s.sessionSent = true
		}
		s.mu.Unlock()
		if emitSession {
			s.events <- Event{Type: EventSession, SessionID: frame.SessionID}
		}

	case FrameChunk:
		s.mu.Lock()
		if !s.status.accepting() {
			// Late frame after cancellation or termination.
			s.mu.Unlock()
			return
		}
		s.content.WriteString(frame.Content)
		s.mu.Unlock()
		s.events <- Event{Type: EventChunk, Delta: frame.Content}

	case FrameDone:
		s.mu.Lock()
		if !s.status.accepting() {
			s.mu.Unlock()
			return
		}
		s.status = StatusCompleted
		s.mu.Unlock()
		s.events <- Event{Type: EventDone, Done: &Finalization{
			MessageID: frame.MessageID,
			CreatedAt: frame.CreatedAt,
			Sources:   frame.Sources,
		}}

	case FrameError:
		s.mu.Lock()
		if !s.status.accepting() {
			s.mu.Unlock()
			return
		}
		s.status = StatusErrored
		s.mu.Unlock()
		s.events <- Event{Type: EventError, Err: fmt.Errorf("%w: %s", ErrServer, frame.Message)}

	default:
		// Unknown discriminant: skip for forward compatibility.
		log.Debug("ignoring unknown frame type %q", frame.Type)
	}
}

// finish classifies the end of the read loop. A transport failure caused
// by our own abort is a confirmed cancellation, never an error.
func (s *Session) finish(readErr error) {
	s.mu.Lock()
	switch {
	case s.status.Terminal():
		// done or error frame already handled; trailing bytes and the
		// read error (if any) are irrelevant.
		s.mu.Unlock()
		return
	case s.status == StatusCancelling:
		s.status = StatusCancelled
		s.mu.Unlock()
		s.events <- Event{Type: EventCancelled}
		return
	}
	// Still pending/active: the transport ended before a terminal frame.
	s.status = StatusErrored
	s.mu.Unlock()

	if readErr == nil || errors.Is(readErr, io.EOF) {
		s.events <- Event{Type: EventError, Err: fmt.Errorf("%w: stream ended before completion", ErrTransport)}
		return
	}
	s.events <- Event{Type: EventError, Err: fmt.Errorf("%w: %v", ErrTransport, readErr)}
}

// Cancel aborts the session. It is idempotent, safe before the start
// frame has arrived, and a no-op once the session is terminal (including
// the race where the server completes just as the user cancels).
//
// The local abort always takes effect before the remote notice is
// attempted; the notice is sent at most once and only when a stream
// handle was captured.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.status.Terminal() || s.status == StatusCancelling {
		s.mu.Unlock()
		return
	}
	s.status = StatusCancelling
	streamID := s.streamID
	doNotify := streamID != "" && s.notify != nil && !s.notified
	if doNotify {
		s.notified = true
	}
	abort := s.abort
	notify := s.notify
	s.mu.Unlock()

	if abort != nil {
		abort()
	}
	if doNotify {
		notify(streamID)
	}
}
