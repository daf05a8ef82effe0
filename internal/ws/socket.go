package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"messenger-service/internal/auth"
	"messenger-service/internal/observability"
	"messenger-service/internal/repositories"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SocketHandler owns the connection lifecycle: it authenticates and upgrades
// the request, binds the connection into the presence registry on
// user_connected, dispatches inbound events and tears everything down on
// disconnect.
type SocketHandler struct {
	hub         *Hub
	typing      *TypingCoordinator
	broker      *CallBroker
	userRepo    repositories.UserRepository
	messageRepo repositories.MessageRepository
}

// NewSocketHandler constructs a SocketHandler.
func NewSocketHandler(hub *Hub, typing *TypingCoordinator, broker *CallBroker, userRepo repositories.UserRepository, messageRepo repositories.MessageRepository) *SocketHandler {
	return &SocketHandler{
		hub:         hub,
		typing:      typing,
		broker:      broker,
		userRepo:    userRepo,
		messageRepo: messageRepo,
	}
}

// Handle upgrades the connection and starts the read loop.
func (h *SocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messenger-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.Query("token")
	if token == "" {
		if cookie, err := c.Cookie(auth.CookieName); err == nil {
			token = cookie
		}
	}

	userID, err := auth.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client := NewClient(userID, conn, info)

	observability.IncWSActive()
	h.publishLifecycle(ctx, client, "ws_connect", "")

	go h.readLoop(context.WithoutCancel(ctx), client, conn)
}

func (h *SocketHandler) readLoop(ctx context.Context, client *Client, conn *websocket.Conn) {
	var closeReason string
	defer func() {
		h.teardown(ctx, client, closeReason)
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.publishLifecycle(ctx, client, "ws_error", closeReason)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("websocket: malformed envelope from user %d: %v", client.UserID, err)
			continue
		}
		h.dispatch(ctx, client, env)
	}
}

// dispatch routes one inbound event to the owning component. Payloads are
// validated here, at the boundary, before any bridge logic runs.
func (h *SocketHandler) dispatch(ctx context.Context, client *Client, env Envelope) {
	observability.IncWSEvent(env.Event, "in")

	switch env.Event {
	case EventUserConnected:
		var p UserConnectedPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.UserID != client.UserID {
			log.Printf("websocket: rejected user_connected from user %d", client.UserID)
			return
		}
		h.bind(ctx, client)

	case EventGetUserStatus:
		var q UserStatusQuery
		if err := json.Unmarshal(env.Data, &q); err != nil || q.UserID == 0 {
			return
		}
		h.replyUserStatus(ctx, client, q.UserID)

	case EventSendMessage:
		var head struct {
			ReceiverID int `json:"receiver_id"`
		}
		if err := json.Unmarshal(env.Data, &head); err != nil || head.ReceiverID == 0 {
			return
		}
		h.hub.EmitToUser(head.ReceiverID, EventReceiveMessage, json.RawMessage(env.Data))

	case EventMessageRead:
		var p MessageReadPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || len(p.MessageIDs) == 0 {
			return
		}
		h.markRead(ctx, client, p.MessageIDs)

	case EventTypingStart:
		var p TypingPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.ConversationID == 0 || p.ReceiverID == 0 {
			return
		}
		h.typing.StartTyping(client.UserID, p.ConversationID, p.ReceiverID)

	case EventTypingStop:
		var p TypingPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.ConversationID == 0 || p.ReceiverID == 0 {
			return
		}
		h.typing.StopTyping(client.UserID, p.ConversationID, p.ReceiverID)

	case EventAddReaction:
		var p ReactionPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.MessageID == 0 || p.Emoji == "" {
			return
		}
		h.toggleReaction(ctx, client, p)

	case EventInitiateCall:
		var p InitiateCallPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.ReceiverID == 0 {
			return
		}
		if p.CallType != CallTypeAudio && p.CallType != CallTypeVideo {
			return
		}
		h.broker.Initiate(client.UserID, p)

	case EventAcceptCall:
		var p AcceptCallPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.CallerID == 0 || p.CallID == "" {
			return
		}
		h.broker.Accept(client.UserID, p)

	case EventRejectCall:
		var p RejectCallPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.CallerID == 0 {
			return
		}
		h.broker.Reject(p)

	case EventEndCall:
		var p EndCallPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.ParticipantID == 0 {
			return
		}
		h.broker.End(p)

	case EventWebRTCOffer, EventWebRTCAnswer, EventWebRTCICECandidate:
		var p WebRTCPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.ReceiverID == 0 {
			return
		}
		h.broker.Relay(client.UserID, env.Event, p)

	default:
		log.Printf("websocket: unknown event %q from user %d", env.Event, client.UserID)
	}
}

func (h *SocketHandler) bind(ctx context.Context, client *Client) {
	if prev := h.hub.Presence().Bind(client.UserID, client); prev != nil {
		prev.Close()
	}

	now := time.Now()
	if err := h.userRepo.SetPresence(ctx, client.UserID, true, now); err != nil {
		log.Printf("websocket: persist online state for user %d: %v", client.UserID, err)
	}

	h.hub.EmitToAll(EventUserStatus, UserStatusPayload{
		UserID:   client.UserID,
		IsOnline: true,
		LastSeen: &now,
	}, 0)
}

func (h *SocketHandler) replyUserStatus(ctx context.Context, client *Client, userID int) {
	resp := UserStatusPayload{UserID: userID, IsOnline: h.hub.IsOnline(userID)}
	if user, err := h.userRepo.GetUser(ctx, userID); err == nil {
		lastSeen := user.LastSeen
		resp.LastSeen = &lastSeen
	}
	if err := client.Send(EventUserStatus, resp); err != nil {
		log.Printf("websocket: status reply to user %d: %v", client.UserID, err)
	}
}

func (h *SocketHandler) markRead(ctx context.Context, client *Client, messageIDs []int) {
	msgs, err := h.messageRepo.MarkRead(ctx, messageIDs, client.UserID)
	if err != nil {
		log.Printf("websocket: mark read for user %d: %v", client.UserID, err)
		return
	}
	for _, msg := range msgs {
		h.hub.EmitToUser(msg.SenderID, EventMessageStatusUpdate, MessageStatusPayload{
			MessageID: msg.ID,
			Status:    msg.Status,
		})
	}
}

// toggleReaction applies the at-most-one-reaction-per-user rule: same emoji
// removes, different emoji replaces, none adds.
func (h *SocketHandler) toggleReaction(ctx context.Context, client *Client, p ReactionPayload) {
	msg, err := h.messageRepo.GetMessage(ctx, p.MessageID)
	if err != nil {
		return
	}

	existing, err := h.messageRepo.GetReaction(ctx, p.MessageID, client.UserID)
	switch {
	case err == nil && existing.Emoji == p.Emoji:
		err = h.messageRepo.RemoveReaction(ctx, p.MessageID, client.UserID)
	case err == nil || errors.Is(err, repositories.ErrReactionNotFound):
		err = h.messageRepo.SetReaction(ctx, p.MessageID, client.UserID, p.Emoji)
	}
	if err != nil {
		log.Printf("websocket: reaction on message %d: %v", p.MessageID, err)
		return
	}

	reactions, err := h.messageRepo.ListReactions(ctx, p.MessageID)
	if err != nil {
		return
	}

	update := ReactionUpdatePayload{MessageID: p.MessageID, Reactions: reactions}
	h.hub.EmitToUser(msg.SenderID, EventReactionUpdate, update)
	if msg.ReceiverID != msg.SenderID {
		h.hub.EmitToUser(msg.ReceiverID, EventReactionUpdate, update)
	}
}

// teardown runs exactly once per connection. Presence and durable state are
// only touched when this connection is still the bound handle, so a
// reconnect that replaced it is left alone.
func (h *SocketHandler) teardown(ctx context.Context, client *Client, closeReason string) {
	if h.hub.Presence().Unbind(client.UserID, client) {
		h.typing.CancelAll(client.UserID)

		now := time.Now()
		if err := h.userRepo.SetPresence(ctx, client.UserID, false, now); err != nil {
			log.Printf("websocket: persist offline state for user %d: %v", client.UserID, err)
		}
		h.hub.EmitToAll(EventUserStatus, UserStatusPayload{
			UserID:   client.UserID,
			IsOnline: false,
			LastSeen: &now,
		}, client.UserID)
	}

	observability.DecWSActive()
	h.publishLifecycle(ctx, client, "ws_disconnect", closeReason)
}

func (h *SocketHandler) publishLifecycle(ctx context.Context, client *Client, event, reason string) {
	observability.IncWSEvent(event, "internal")
	info := client.Info
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   client.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(ctx, "ws_events.connections", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   payload,
	}, headers)
}
