package stream

import (
	"bytes"
	"strings"

	"github.com/youruser/docchat/internal/logging"
)

var log = logging.Get()

const dataPrefix = "data: "

// frameDelim separates frames on the wire: a blank line.
var frameDelim = []byte("\n\n")

// Parser splits the raw response feed into frames. Fragments may arrive
// at arbitrary boundaries (mid-delimiter, mid-JSON, even mid-rune); the
// parser carries the incomplete tail across calls and only decodes a
// segment once its closing blank line has been seen, so the same byte
// stream always yields the same frame sequence regardless of how it was
// fragmented.
//
// Each parser owns its buffer. Sessions must not share one.
type Parser struct {
	buf []byte
}

// NewParser returns a parser with an empty carry-over buffer.
func NewParser() *Parser {
	return &Parser{}
}

// Feed appends a fragment and returns every frame completed by it, in
// arrival order. A segment whose payload fails to decode is logged and
// dropped; parsing continues with the next segment.
func (p *Parser) Feed(fragment []byte) []Frame {
	p.buf = append(p.buf, fragment...)

	var frames []Frame
	for {
		idx := bytes.Index(p.buf, frameDelim)
		if idx < 0 {
			break
		}
		segment := p.buf[:idx]
		p.buf = p.buf[idx+len(frameDelim):]

		frame, ok := parseSegment(segment)
		if !ok {
			continue
		}
		log.Frame(frame.Type, frame.Content+frame.Message)
		frames = append(frames, frame)
	}
	return frames
}

// Pending reports whether undelivered bytes remain in the carry-over
// buffer. At end of stream a well-behaved server leaves nothing behind;
// whatever does remain is discarded, not parsed.
func (p *Parser) Pending() bool {
	return len(bytes.TrimSpace(p.buf)) > 0
}

// parseSegment extracts the data payload from one delimited segment and
// decodes it. Lines without the data prefix (comments, keep-alives) are
// skipped; multiple data lines are joined with a newline per the SSE
// convention. Returns false for empty segments and undecodable payloads.
func parseSegment(segment []byte) (Frame, bool) {
	var payload []string
	for _, line := range strings.Split(string(segment), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		payload = append(payload, strings.TrimPrefix(line, dataPrefix))
	}
	if len(payload) == 0 {
		return Frame{}, false
	}

	frame, err := decodeFrame([]byte(strings.Join(payload, "\n")))
	if err != nil {
		// Protocol error: one bad frame never kills the stream.
		log.Info("dropping malformed frame: %v", err)
		return Frame{}, false
	}
	return frame, true
}
