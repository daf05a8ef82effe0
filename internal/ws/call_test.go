package ws

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedBroker(hub *Hub, at time.Time) *CallBroker {
	broker := NewCallBroker(hub)
	broker.now = func() time.Time { return at }
	return broker
}

func singleEnvelope(t *testing.T, conn *fakeConn) Envelope {
	t.Helper()
	envs := conn.envelopes(t)
	require.Len(t, envs, 1)
	return envs[0]
}

func TestInitiateCallOfflineReceiverFailsCallerOnly(t *testing.T) {
	hub := NewHub()
	_, callerConn := bindClient(hub, 1)
	broker := fixedBroker(hub, time.Now())

	broker.Initiate(1, InitiateCallPayload{ReceiverID: 2, CallType: CallTypeVideo})

	env := singleEnvelope(t, callerConn)
	assert.Equal(t, EventCallFailed, env.Event)

	var payload CallFailedPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, "user is offline", payload.Reason)
}

func TestInitiateCallRingsReceiver(t *testing.T) {
	hub := NewHub()
	_, callerConn := bindClient(hub, 1)
	_, receiverConn := bindClient(hub, 2)
	at := time.UnixMilli(1700000000000)
	broker := fixedBroker(hub, at)

	broker.Initiate(1, InitiateCallPayload{
		ReceiverID: 2,
		CallType:   CallTypeAudio,
		CallerInfo: ContactInfo{Username: "alice", Avatar: "a.png"},
	})

	env := singleEnvelope(t, receiverConn)
	require.Equal(t, EventIncomingCall, env.Event)

	var payload IncomingCallPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, 1, payload.CallerID)
	assert.Equal(t, fmt.Sprintf("1-2-%d", at.UnixMilli()), payload.CallID)
	assert.Equal(t, CallTypeAudio, payload.CallType)
	assert.Equal(t, "alice", payload.CallerName)
	assert.Equal(t, "a.png", payload.CallerAvatar)

	// The caller hears nothing until the receiver answers.
	assert.Empty(t, callerConn.envelopes(t))
}

func TestAcceptCallNotifiesCaller(t *testing.T) {
	hub := NewHub()
	_, callerConn := bindClient(hub, 1)
	bindClient(hub, 2)
	broker := fixedBroker(hub, time.Now())

	broker.Accept(2, AcceptCallPayload{
		CallerID:     1,
		CallID:       "1-2-99",
		ReceiverInfo: ContactInfo{Username: "bob"},
	})

	env := singleEnvelope(t, callerConn)
	require.Equal(t, EventCallAccepted, env.Event)

	var payload CallAcceptedPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, "1-2-99", payload.CallID)
	assert.Equal(t, "bob", payload.ReceiverName)
}

func TestAcceptCallCallerGoneFailsReceiver(t *testing.T) {
	hub := NewHub()
	_, receiverConn := bindClient(hub, 2)
	broker := fixedBroker(hub, time.Now())

	broker.Accept(2, AcceptCallPayload{CallerID: 1, CallID: "1-2-99"})

	env := singleEnvelope(t, receiverConn)
	assert.Equal(t, EventCallFailed, env.Event)
}

func TestRejectCallRelaysToCaller(t *testing.T) {
	hub := NewHub()
	_, callerConn := bindClient(hub, 1)
	broker := fixedBroker(hub, time.Now())

	broker.Reject(RejectCallPayload{CallerID: 1, CallID: "1-2-99"})

	env := singleEnvelope(t, callerConn)
	require.Equal(t, EventCallRejected, env.Event)

	var payload CallIDPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, "1-2-99", payload.CallID)
}

func TestEndCallRelaysToParticipant(t *testing.T) {
	hub := NewHub()
	_, participantConn := bindClient(hub, 2)
	broker := fixedBroker(hub, time.Now())

	broker.End(EndCallPayload{CallID: "1-2-99", ParticipantID: 2})

	env := singleEnvelope(t, participantConn)
	assert.Equal(t, EventCallEnded, env.Event)
}

func TestRelayTagsSenderAndStripsReceiver(t *testing.T) {
	hub := NewHub()
	_, receiverConn := bindClient(hub, 2)
	broker := fixedBroker(hub, time.Now())

	broker.Relay(1, EventWebRTCOffer, WebRTCPayload{
		CallID:     "1-2-99",
		ReceiverID: 2,
		Offer:      json.RawMessage(`{"sdp":"x"}`),
	})

	env := singleEnvelope(t, receiverConn)
	require.Equal(t, EventWebRTCOffer, env.Event)

	var payload WebRTCPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, 1, payload.SenderID)
	assert.Zero(t, payload.ReceiverID)
	assert.JSONEq(t, `{"sdp":"x"}`, string(payload.Offer))
}

func TestRelayOfflineDestinationDrops(t *testing.T) {
	hub := NewHub()
	broker := fixedBroker(hub, time.Now())

	// Must not panic or queue anything.
	broker.Relay(1, EventWebRTCICECandidate, WebRTCPayload{
		CallID:     "1-2-99",
		ReceiverID: 2,
		Candidate:  json.RawMessage(`{"candidate":"c"}`),
	})
}
