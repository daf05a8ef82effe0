package models

import "time"

// Message content types.
const (
	ContentTypeText  = "text"
	ContentTypeImage = "image"
	ContentTypeVideo = "video"
)

// Message delivery statuses. The only forward path is sent → delivered → read.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

// Message is a single chat message inside a conversation.
type Message struct {
	ID             int       `db:"id" json:"id"`
	ConversationID int       `db:"conversation_id" json:"conversation_id"`
	SenderID       int       `db:"sender_id" json:"sender_id"`
	ReceiverID     int       `db:"receiver_id" json:"receiver_id"`
	Content        string    `db:"content" json:"content,omitempty"`
	ContentType    string    `db:"content_type" json:"content_type"`
	MediaURL       string    `db:"media_url" json:"media_url,omitempty"`
	Status         string    `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`

	Reactions []Reaction `json:"reactions,omitempty"`
	Sender    *UserInfo  `json:"sender,omitempty"`
	Receiver  *UserInfo  `json:"receiver,omitempty"`
}

// Reaction is one user's emoji on a message. A user holds at most one
// reaction per message.
type Reaction struct {
	MessageID int    `db:"message_id" json:"message_id"`
	UserID    int    `db:"user_id" json:"user_id"`
	Emoji     string `db:"emoji" json:"emoji"`
	Username  string `db:"username" json:"username,omitempty"`
}
