package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectFrames(p *Port) *[][]byte {
	var got [][]byte
	p.OnReceive(func(frame []byte) {
		got = append(got, frame)
	})
	return &got
}

func TestHubBroadcastSkipsSender(t *testing.T) {
	hub := NewHub()
	alice := hub.Join("device-alice")
	bob := hub.Join("device-bob")
	carol := hub.Join("device-carol")

	aliceGot := collectFrames(alice)
	bobGot := collectFrames(bob)
	carolGot := collectFrames(carol)

	require.NoError(t, alice.Send([]byte(`{"v":1}`)))

	assert.Empty(t, *aliceGot)
	require.Len(t, *bobGot, 1)
	require.Len(t, *carolGot, 1)
	assert.Equal(t, []byte(`{"v":1}`), (*bobGot)[0])
}

func TestHubOfflinePortsDropTraffic(t *testing.T) {
	hub := NewHub()
	alice := hub.Join("device-alice")
	bob := hub.Join("device-bob")
	bobGot := collectFrames(bob)

	hub.SetOnline("device-bob", false)
	require.NoError(t, alice.Send([]byte(`one`)))
	assert.Empty(t, *bobGot, "offline port should not receive")

	hub.SetOnline("device-bob", true)
	require.NoError(t, alice.Send([]byte(`two`)))
	require.Len(t, *bobGot, 1, "frames sent while offline stay lost")
	assert.Equal(t, []byte(`two`), (*bobGot)[0])
}

func TestHubOfflineSenderTransmitsNothing(t *testing.T) {
	hub := NewHub()
	alice := hub.Join("device-alice")
	bob := hub.Join("device-bob")
	bobGot := collectFrames(bob)

	hub.SetOnline("device-alice", false)
	require.NoError(t, alice.Send([]byte(`lost`)))
	assert.Empty(t, *bobGot)
}

func TestHubDeliveryIsACopy(t *testing.T) {
	hub := NewHub()
	alice := hub.Join("device-alice")
	bob := hub.Join("device-bob")

	var got []byte
	bob.OnReceive(func(frame []byte) { got = frame })

	original := []byte(`stable`)
	require.NoError(t, alice.Send(original))
	original[0] = 'X'

	assert.Equal(t, []byte(`stable`), got)
}

func TestHubPortWithoutHandlerIsSkipped(t *testing.T) {
	hub := NewHub()
	alice := hub.Join("device-alice")
	hub.Join("device-bob")

	assert.NoError(t, alice.Send([]byte(`noop`)))
}
