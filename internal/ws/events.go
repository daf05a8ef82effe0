package ws

import (
	"encoding/json"
	"time"

	"messenger-service/internal/models"
)

// Event names are stable contract strings shared with clients.
const (
	EventUserConnected       = "user_connected"
	EventGetUserStatus       = "get_user_status"
	EventUserStatus          = "user_status"
	EventSendMessage         = "send_message"
	EventReceiveMessage      = "receive_message"
	EventMessageRead         = "message_read"
	EventMessageStatusUpdate = "message_status_update"
	EventMessageDeleted      = "message_deleted"
	EventTypingStart         = "typing_start"
	EventTypingStop          = "typing_stop"
	EventUserTyping          = "user_typing"
	EventAddReaction         = "add_reaction"
	EventReactionUpdate      = "reaction_update"
	EventNewStatus           = "new_status"
	EventStatusViewed        = "status_viewed"
	EventStatusDeleted       = "status_deleted"
	EventInitiateCall        = "initiate_call"
	EventIncomingCall        = "incoming_call"
	EventAcceptCall          = "accept_call"
	EventCallAccepted        = "call_accepted"
	EventRejectCall          = "reject_call"
	EventCallRejected        = "call_rejected"
	EventEndCall             = "end_call"
	EventCallEnded           = "call_ended"
	EventCallFailed          = "call_failed"
	EventWebRTCOffer         = "webrtc_offer"
	EventWebRTCAnswer        = "webrtc_answer"
	EventWebRTCICECandidate  = "webrtc_ice_candidate"
)

// Envelope frames every message on the wire.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type UserConnectedPayload struct {
	UserID int `json:"user_id"`
}

type UserStatusQuery struct {
	UserID int `json:"user_id"`
}

type UserStatusPayload struct {
	UserID   int        `json:"user_id"`
	IsOnline bool       `json:"is_online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

type MessageReadPayload struct {
	MessageIDs []int `json:"message_ids"`
}

type MessageStatusPayload struct {
	MessageID int    `json:"message_id"`
	Status    string `json:"status"`
}

type TypingPayload struct {
	ConversationID int `json:"conversation_id"`
	ReceiverID     int `json:"receiver_id"`
}

type UserTypingPayload struct {
	UserID         int  `json:"user_id"`
	ConversationID int  `json:"conversation_id"`
	IsTyping       bool `json:"is_typing"`
}

type ReactionPayload struct {
	MessageID int    `json:"message_id"`
	Emoji     string `json:"emoji"`
}

type ReactionUpdatePayload struct {
	MessageID int               `json:"message_id"`
	Reactions []models.Reaction `json:"reactions"`
}

type StatusViewedPayload struct {
	StatusID     int               `json:"status_id"`
	ViewerID     int               `json:"viewer_id"`
	TotalViewers int               `json:"total_viewers"`
	Viewers      []models.UserInfo `json:"viewers"`
}

// ContactInfo carries the display fields exchanged during call setup.
type ContactInfo struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

type InitiateCallPayload struct {
	ReceiverID int         `json:"receiver_id"`
	CallType   string      `json:"call_type"`
	CallerInfo ContactInfo `json:"caller_info"`
}

type IncomingCallPayload struct {
	CallerID     int    `json:"caller_id"`
	CallID       string `json:"call_id"`
	CallType     string `json:"call_type"`
	CallerName   string `json:"caller_name"`
	CallerAvatar string `json:"caller_avatar,omitempty"`
}

type AcceptCallPayload struct {
	CallerID     int         `json:"caller_id"`
	CallID       string      `json:"call_id"`
	ReceiverInfo ContactInfo `json:"receiver_info"`
}

type CallAcceptedPayload struct {
	CallID         string `json:"call_id"`
	ReceiverName   string `json:"receiver_name"`
	ReceiverAvatar string `json:"receiver_avatar,omitempty"`
}

type RejectCallPayload struct {
	CallerID int    `json:"caller_id"`
	CallID   string `json:"call_id"`
}

type EndCallPayload struct {
	CallID        string `json:"call_id"`
	ParticipantID int    `json:"participant_id"`
}

type CallIDPayload struct {
	CallID string `json:"call_id"`
}

type CallFailedPayload struct {
	Reason string `json:"reason"`
}

// WebRTCPayload is relayed verbatim between peers; the broker only tags the
// sender id so the far end can correlate.
type WebRTCPayload struct {
	CallID     string          `json:"call_id"`
	ReceiverID int             `json:"receiver_id,omitempty"`
	SenderID   int             `json:"sender_id,omitempty"`
	Offer      json.RawMessage `json:"offer,omitempty"`
	Answer     json.RawMessage `json:"answer,omitempty"`
	Candidate  json.RawMessage `json:"candidate,omitempty"`
}
