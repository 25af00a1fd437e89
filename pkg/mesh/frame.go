package mesh

import (
	"encoding/json"
	"fmt"

	"github.com/emberfield/meshrota/pkg/core/eventlog"
	"github.com/emberfield/meshrota/pkg/core/model"
)

// FrameType distinguishes the three things devices say to each other.
type FrameType string

const (
	// FrameEvent carries one event envelope.
	FrameEvent FrameType = "event"
	// FrameDigest advertises the sender's per-origin log summary.
	FrameDigest FrameType = "digest"
	// FramePull asks peers to resend events above the vector's watermarks.
	// An empty vector requests the full log.
	FramePull FrameType = "pull"
)

const frameVersion = 1

// Frame is the wire envelope for everything on the mesh. Exactly one of
// Event, Digest and Vector is populated, per Type.
type Frame struct {
	V      int               `json:"v"`
	Type   FrameType         `json:"type"`
	From   string            `json:"from"`
	Event  json.RawMessage   `json:"event,omitempty"`
	Digest eventlog.Digest   `json:"digest,omitempty"`
	Vector map[string]uint64 `json:"vector,omitempty"`
}

// EncodeEventFrame wraps one event for broadcast.
func EncodeEventFrame(from string, ev model.Event) ([]byte, error) {
	raw, err := model.EncodeEvent(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event %s: %w", ev.ID, err)
	}
	return json.Marshal(Frame{V: frameVersion, Type: FrameEvent, From: from, Event: raw})
}

// EncodeDigestFrame wraps a log summary for broadcast.
func EncodeDigestFrame(from string, digest eventlog.Digest) ([]byte, error) {
	return json.Marshal(Frame{V: frameVersion, Type: FrameDigest, From: from, Digest: digest})
}

// EncodePullFrame wraps a resend request.
func EncodePullFrame(from string, vector map[string]uint64) ([]byte, error) {
	return json.Marshal(Frame{V: frameVersion, Type: FramePull, From: from, Vector: vector})
}

// DecodeFrame parses and sanity-checks a frame. Frames from future
// protocol versions are rejected rather than half-understood.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("failed to decode frame: %w", err)
	}
	if f.V != frameVersion {
		return Frame{}, fmt.Errorf("unsupported frame version %d", f.V)
	}
	if f.From == "" {
		return Frame{}, fmt.Errorf("frame has no sender")
	}
	switch f.Type {
	case FrameEvent:
		if len(f.Event) == 0 {
			return Frame{}, fmt.Errorf("event frame has no event")
		}
	case FrameDigest, FramePull:
	default:
		return Frame{}, fmt.Errorf("unknown frame type %q", f.Type)
	}
	return f, nil
}
