package ws

import (
	"fmt"
	"time"
)

// Call types.
const (
	CallTypeAudio = "audio"
	CallTypeVideo = "video"
)

const reasonOffline = "user is offline"

// CallBroker mediates the call lifecycle and relays WebRTC negotiation
// payloads between exactly two peers. It is a stateless relay: session
// state lives in the two clients.
type CallBroker struct {
	hub *Hub
	now func() time.Time
}

// NewCallBroker builds a broker over the hub.
func NewCallBroker(hub *Hub) *CallBroker {
	return &CallBroker{hub: hub, now: time.Now}
}

// Initiate starts a call attempt. When the receiver is offline only the
// caller hears about it; no session is created.
func (b *CallBroker) Initiate(callerID int, p InitiateCallPayload) {
	if !b.hub.IsOnline(p.ReceiverID) {
		b.hub.EmitToUser(callerID, EventCallFailed, CallFailedPayload{Reason: reasonOffline})
		return
	}

	// Composite id: unique per attempt.
	callID := fmt.Sprintf("%d-%d-%d", callerID, p.ReceiverID, b.now().UnixMilli())
	b.hub.EmitToUser(p.ReceiverID, EventIncomingCall, IncomingCallPayload{
		CallerID:     callerID,
		CallID:       callID,
		CallType:     p.CallType,
		CallerName:   p.CallerInfo.Username,
		CallerAvatar: p.CallerInfo.Avatar,
	})
}

// Accept relays acceptance to the caller. If the caller vanished in the
// meantime the accepting receiver gets a failure instead.
func (b *CallBroker) Accept(receiverID int, p AcceptCallPayload) {
	delivered := b.hub.EmitToUser(p.CallerID, EventCallAccepted, CallAcceptedPayload{
		CallID:         p.CallID,
		ReceiverName:   p.ReceiverInfo.Username,
		ReceiverAvatar: p.ReceiverInfo.Avatar,
	})
	if !delivered {
		b.hub.EmitToUser(receiverID, EventCallFailed, CallFailedPayload{Reason: reasonOffline})
	}
}

// Reject relays a rejection to the caller; silently dropped when offline.
func (b *CallBroker) Reject(p RejectCallPayload) {
	b.hub.EmitToUser(p.CallerID, EventCallRejected, CallIDPayload{CallID: p.CallID})
}

// End relays a hang-up to the other participant; silently dropped when
// offline — the local party tears down regardless.
func (b *CallBroker) End(p EndCallPayload) {
	b.hub.EmitToUser(p.ParticipantID, EventCallEnded, CallIDPayload{CallID: p.CallID})
}

// Relay forwards a WebRTC negotiation payload to its receiver, tagging the
// sender so the far end can correlate. Content is not inspected; offline
// destinations drop the payload.
func (b *CallBroker) Relay(senderID int, event string, p WebRTCPayload) {
	receiverID := p.ReceiverID
	p.SenderID = senderID
	p.ReceiverID = 0
	b.hub.EmitToUser(receiverID, event, p)
}
