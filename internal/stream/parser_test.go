package stream

import (
	"reflect"
	"testing"
)

// feedInPieces delivers raw to a fresh parser in fragments of at most
// size bytes and returns every frame produced.
func feedInPieces(raw []byte, size int) []Frame {
	p := NewParser()
	var frames []Frame
	for start := 0; start < len(raw); start += size {
		end := start + size
		if end > len(raw) {
			end = len(raw)
		}
		frames = append(frames, p.Feed(raw[start:end])...)
	}
	return frames
}

func TestParserFragmentation(t *testing.T) {
	// Includes multi-byte runes so fragment boundaries can land inside a
	// character, and a keep-alive comment line between frames.
	raw := []byte("data: {\"type\":\"start\",\"stream_id\":\"s1\",\"session_id\":\"sess-9\"}\n\n" +
		"data: {\"type\":\"chunk\",\"content\":\"héllo \"}\n\n" +
		": keep-alive\n\n" +
		"data: {\"type\":\"chunk\",\"content\":\"wörld 🌍\"}\n\n" +
		"data: {\"type\":\"done\",\"message_id\":\"m1\"}\n\n")

	whole := NewParser().Feed(raw)
	if len(whole) != 4 {
		t.Fatalf("len(frames) = %d, want 4", len(whole))
	}
	if whole[0].Type != FrameStart || whole[0].StreamID != "s1" || whole[0].SessionID != "sess-9" {
		t.Errorf("start frame = %+v", whole[0])
	}
	if whole[1].Content != "héllo " || whole[2].Content != "wörld 🌍" {
		t.Errorf("chunk contents = %q, %q", whole[1].Content, whole[2].Content)
	}
	if whole[3].Type != FrameDone || whole[3].MessageID != "m1" {
		t.Errorf("done frame = %+v", whole[3])
	}

	// Any fragmentation must yield the identical sequence, including
	// one-byte deliveries that split delimiters, JSON, and runes.
	for _, size := range []int{1, 2, 3, 5, 7, 16, 64} {
		got := feedInPieces(raw, size)
		if !reflect.DeepEqual(got, whole) {
			t.Errorf("fragment size %d: frames differ from single delivery\ngot:  %+v\nwant: %+v", size, got, whole)
		}
	}
}

func TestParserMalformedFrame(t *testing.T) {
	raw := []byte("data: {\"type\":\"chunk\",\"content\":\"one\"}\n\n" +
		"data: {not valid json\n\n" +
		"data: {\"type\":\"chunk\",\"content\":\"two\"}\n\n")

	frames := NewParser().Feed(raw)
	if len(frames) != 2 {
		t.Fatalf("len(frames) = %d, want 2 (malformed frame dropped)", len(frames))
	}
	if frames[0].Content != "one" || frames[1].Content != "two" {
		t.Errorf("contents = %q, %q, want \"one\", \"two\"", frames[0].Content, frames[1].Content)
	}
}

func TestParserNonDataLines(t *testing.T) {
	t.Run("comment only segment", func(t *testing.T) {
		frames := NewParser().Feed([]byte(": ping\n\n"))
		if len(frames) != 0 {
			t.Errorf("len(frames) = %d, want 0", len(frames))
		}
	})

	t.Run("comment mixed with data", func(t *testing.T) {
		frames := NewParser().Feed([]byte("event: noise\ndata: {\"type\":\"chunk\",\"content\":\"hi\"}\n\n"))
		if len(frames) != 1 || frames[0].Content != "hi" {
			t.Errorf("frames = %+v, want one chunk \"hi\"", frames)
		}
	})
}

func TestParserMultilineData(t *testing.T) {
	// A payload transmitted as two data lines is joined with a newline.
	raw := []byte("data: {\"type\":\"chunk\",\n" + "data: \"content\":\"hi\"}\n\n")
	frames := NewParser().Feed(raw)
	if len(frames) != 1 {
		t.Fatalf("len(frames) = %d, want 1", len(frames))
	}
	if frames[0].Content != "hi" {
		t.Errorf("content = %q, want %q", frames[0].Content, "hi")
	}
}

func TestParserCRLF(t *testing.T) {
	raw := []byte("data: {\"type\":\"chunk\",\"content\":\"hi\"}\r\n\n")
	frames := NewParser().Feed(raw)
	if len(frames) != 1 || frames[0].Content != "hi" {
		t.Errorf("frames = %+v, want one chunk \"hi\"", frames)
	}
}

func TestParserTrailingRemainder(t *testing.T) {
	p := NewParser()
	frames := p.Feed([]byte("data: {\"type\":\"chunk\",\"content\":\"partial\"}"))
	if len(frames) != 0 {
		t.Fatalf("incomplete segment produced %d frames", len(frames))
	}
	if !p.Pending() {
		t.Error("Pending() = false, want true for undelivered tail")
	}

	// Completing the segment later still yields the frame.
	frames = p.Feed([]byte("\n\n"))
	if len(frames) != 1 || frames[0].Content != "partial" {
		t.Errorf("frames = %+v, want one chunk \"partial\"", frames)
	}
	if p.Pending() {
		t.Error("Pending() = true after delimiter, want false")
	}
}

func TestParserUnknownType(t *testing.T) {
	// Unknown discriminants are parsed and passed through; the
	// dispatcher is responsible for skipping them.
	frames := NewParser().Feed([]byte("data: {\"type\":\"heartbeat\"}\n\n"))
	if len(frames) != 1 || frames[0].Type != "heartbeat" {
		t.Errorf("frames = %+v, want one heartbeat frame", frames)
	}
}
