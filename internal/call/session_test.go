package call

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallerLifecycle(t *testing.T) {
	session := NewSession("1-2-99", 1, 2, "video")
	assert.Equal(t, StateIdle, session.State())

	require.NoError(t, session.Dial())
	assert.Equal(t, StateCalling, session.State())

	require.NoError(t, session.Connect())
	require.NoError(t, session.Established())
	assert.Equal(t, StateConnected, session.State())

	require.NoError(t, session.End())
	assert.Equal(t, StateEnded, session.State())
	assert.True(t, session.Terminal())
}

func TestReceiverLifecycle(t *testing.T) {
	session := NewSession("1-2-99", 1, 2, "audio")

	require.NoError(t, session.Ring())
	assert.Equal(t, StateRinging, session.State())

	require.NoError(t, session.Connect())
	require.NoError(t, session.Established())
	assert.Equal(t, StateConnected, session.State())
}

func TestInvalidTransitionsRejected(t *testing.T) {
	session := NewSession("1-2-99", 1, 2, "video")

	err := session.Established()
	require.ErrorIs(t, err, ErrInvalidTransition)

	// Idle sessions cannot be terminated; there is nothing to tear down.
	require.ErrorIs(t, session.End(), ErrInvalidTransition)

	require.NoError(t, session.Dial())
	require.ErrorIs(t, session.Ring(), ErrInvalidTransition)
}

func TestTerminalStatesAreFinal(t *testing.T) {
	session := NewSession("1-2-99", 1, 2, "video")
	require.NoError(t, session.Dial())
	require.NoError(t, session.Reject())

	assert.ErrorIs(t, session.Connect(), ErrInvalidTransition)
	assert.ErrorIs(t, session.End(), ErrInvalidTransition)
	assert.Equal(t, StateRejected, session.State())
}

func TestRejectAndFailReachableFromAnyActiveState(t *testing.T) {
	ringing := NewSession("a", 1, 2, "video")
	require.NoError(t, ringing.Ring())
	require.NoError(t, ringing.Reject())
	assert.Equal(t, StateRejected, ringing.State())

	connecting := NewSession("b", 1, 2, "video")
	require.NoError(t, connecting.Dial())
	require.NoError(t, connecting.Connect())
	require.NoError(t, connecting.Fail())
	assert.Equal(t, StateFailed, connecting.State())
}

func TestStateChangeCallbackFires(t *testing.T) {
	session := NewSession("1-2-99", 1, 2, "video")

	var seen []State
	session.OnStateChange(func(state State) { seen = append(seen, state) })

	require.NoError(t, session.Dial())
	require.NoError(t, session.Connect())
	require.NoError(t, session.End())

	assert.Equal(t, []State{StateCalling, StateConnecting, StateEnded}, seen)
}

func TestCandidatesBufferedUntilRemoteDescription(t *testing.T) {
	session := NewSession("1-2-99", 1, 2, "video")
	require.NoError(t, session.Dial())

	var delivered []string
	session.OnCandidate(func(candidate json.RawMessage) {
		delivered = append(delivered, string(candidate))
	})

	for i := 0; i < 3; i++ {
		session.AddRemoteCandidate(json.RawMessage(fmt.Sprintf(`{"n":%d}`, i)))
	}
	assert.Empty(t, delivered)

	session.SetRemoteDescription()

	// Drained in arrival order.
	require.Equal(t, []string{`{"n":0}`, `{"n":1}`, `{"n":2}`}, delivered)

	// Candidates after the description flow straight through.
	session.AddRemoteCandidate(json.RawMessage(`{"n":3}`))
	assert.Equal(t, `{"n":3}`, delivered[len(delivered)-1])
}

func TestDrainHappensExactlyOnce(t *testing.T) {
	session := NewSession("1-2-99", 1, 2, "video")
	require.NoError(t, session.Dial())

	count := 0
	session.OnCandidate(func(json.RawMessage) { count++ })

	session.AddRemoteCandidate(json.RawMessage(`{}`))
	session.SetRemoteDescription()
	session.SetRemoteDescription()

	assert.Equal(t, 1, count)
}

func TestTerminalSessionDropsCandidates(t *testing.T) {
	session := NewSession("1-2-99", 1, 2, "video")
	require.NoError(t, session.Dial())

	count := 0
	session.OnCandidate(func(json.RawMessage) { count++ })
	require.NoError(t, session.End())

	session.AddRemoteCandidate(json.RawMessage(`{}`))
	session.SetRemoteDescription()

	assert.Zero(t, count)
}

func TestCloseDetachesCallbacks(t *testing.T) {
	session := NewSession("1-2-99", 1, 2, "video")
	require.NoError(t, session.Dial())

	fired := false
	session.OnCandidate(func(json.RawMessage) { fired = true })
	session.OnStateChange(func(State) { fired = true })

	session.Close()

	session.SetRemoteDescription()
	session.AddRemoteCandidate(json.RawMessage(`{}`))
	assert.False(t, fired)
}
