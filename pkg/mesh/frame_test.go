package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberfield/meshrota/pkg/core/eventlog"
	"github.com/emberfield/meshrota/pkg/core/model"
)

func TestEventFrameRoundTrip(t *testing.T) {
	ev := model.Event{
		ID:     "ev-1",
		Origin: "device-alice",
		TS:     7,
		Kind:   model.KindClaim,
		Payload: model.ClaimPayload{
			ClaimID: "claim-1",
			ShiftID: "shift-kitchen",
		},
	}

	raw, err := EncodeEventFrame("device-alice", ev)
	require.NoError(t, err)

	frame, err := DecodeFrame(raw)
	require.NoError(t, err)
	assert.Equal(t, FrameEvent, frame.Type)
	assert.Equal(t, "device-alice", frame.From)

	decoded, err := model.DecodeEvent(frame.Event)
	require.NoError(t, err)
	assert.Equal(t, ev, decoded)
}

func TestDigestFrameRoundTrip(t *testing.T) {
	digest := eventlog.Digest{
		"device-alice": {MaxTS: 9, Count: 4},
		"device-bob":   {MaxTS: 3, Count: 3},
	}

	raw, err := EncodeDigestFrame("device-bob", digest)
	require.NoError(t, err)

	frame, err := DecodeFrame(raw)
	require.NoError(t, err)
	assert.Equal(t, FrameDigest, frame.Type)
	assert.Equal(t, "device-bob", frame.From)
	assert.Equal(t, digest, frame.Digest)
}

func TestPullFrameRoundTrip(t *testing.T) {
	vector := map[string]uint64{"device-alice": 9}

	raw, err := EncodePullFrame("device-carol", vector)
	require.NoError(t, err)

	frame, err := DecodeFrame(raw)
	require.NoError(t, err)
	assert.Equal(t, FramePull, frame.Type)
	assert.Equal(t, vector, frame.Vector)
}

func TestPullFrameEmptyVectorSurvives(t *testing.T) {
	// An empty vector is the full-resend request; it must not be
	// confused with a malformed frame.
	raw, err := EncodePullFrame("device-carol", nil)
	require.NoError(t, err)

	frame, err := DecodeFrame(raw)
	require.NoError(t, err)
	assert.Equal(t, FramePull, frame.Type)
	assert.Empty(t, frame.Vector)
}

func TestDecodeFrameRejects(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{
			name:    "not json",
			raw:     `{"v":1,`,
			wantErr: "failed to decode frame",
		},
		{
			name:    "future version",
			raw:     `{"v":2,"type":"event","from":"device-alice","event":{}}`,
			wantErr: "unsupported frame version 2",
		},
		{
			name:    "missing sender",
			raw:     `{"v":1,"type":"digest"}`,
			wantErr: "frame has no sender",
		},
		{
			name:    "event frame without event",
			raw:     `{"v":1,"type":"event","from":"device-alice"}`,
			wantErr: "event frame has no event",
		},
		{
			name:    "unknown type",
			raw:     `{"v":1,"type":"ping","from":"device-alice"}`,
			wantErr: `unknown frame type "ping"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFrame([]byte(tt.raw))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
