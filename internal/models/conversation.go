package models

import "time"

// Conversation is a private thread between exactly two users. Participants
// are stored sorted (user1_id < user2_id) so lookup is direction-independent.
type Conversation struct {
	ID            int       `db:"id" json:"id"`
	User1ID       int       `db:"user1_id" json:"user1_id"`
	User2ID       int       `db:"user2_id" json:"user2_id"`
	LastMessageID int       `db:"last_message_id" json:"last_message_id,omitempty"`
	UnreadCount   int       `db:"unread_count" json:"unread_count"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Participant returns the counterpart of userID in the conversation.
func (c Conversation) Participant(userID int) int {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// HasParticipant reports whether userID belongs to the conversation.
func (c Conversation) HasParticipant(userID int) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// ConversationSummary is the listing view: counterpart display fields plus
// the latest message.
type ConversationSummary struct {
	Conversation
	Friend      UserInfo `json:"friend"`
	LastMessage *Message `json:"last_message,omitempty"`
}
