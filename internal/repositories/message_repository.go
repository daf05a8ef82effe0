package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

var (
	ErrMessageNotFound  = errors.New("message not found")
	ErrReactionNotFound = errors.New("reaction not found")
)

const messageColumns = `id, conversation_id, sender_id, receiver_id, content, content_type, media_url, status, created_at`

// MessageRepository defines interactions for chat messages and reactions.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	ListByConversation(ctx context.Context, conversationID int) ([]models.Message, error)
	UpdateStatus(ctx context.Context, messageID int, status string) error
	MarkConversationRead(ctx context.Context, conversationID, receiverID int) error
	MarkRead(ctx context.Context, messageIDs []int, receiverID int) ([]models.Message, error)
	DeleteMessage(ctx context.Context, messageID int) error
	GetReaction(ctx context.Context, messageID, userID int) (models.Reaction, error)
	SetReaction(ctx context.Context, messageID, userID int, emoji string) error
	RemoveReaction(ctx context.Context, messageID, userID int) error
	ListReactions(ctx context.Context, messageID int) ([]models.Reaction, error)
	ListReactionsByConversation(ctx context.Context, conversationID int) ([]models.Reaction, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	var created models.Message
	err := r.db.GetContext(ctx, &created, `INSERT INTO messages (conversation_id, sender_id, receiver_id, content, content_type, media_url, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING `+messageColumns,
		msg.ConversationID, msg.SenderID, msg.ReceiverID, msg.Content, msg.ContentType, msg.MediaURL, msg.Status)
	return created, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListByConversation returns messages ordered by creation time.
func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages WHERE conversation_id=$1 ORDER BY created_at ASC`, conversationID)
	return msgs, err
}

// UpdateStatus transitions the delivery status of one message.
func (r *MessageRepo) UpdateStatus(ctx context.Context, messageID int, status string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET status=$1 WHERE id=$2`, status, messageID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// MarkConversationRead flips every sent/delivered message addressed to the
// receiver to read. Read-marking is a read-path side effect.
func (r *MessageRepo) MarkConversationRead(ctx context.Context, conversationID, receiverID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE messages SET status='read'
        WHERE conversation_id=$1 AND receiver_id=$2 AND status IN ('sent','delivered')`, conversationID, receiverID)
	return err
}

// MarkRead bulk-transitions the given messages to read, restricted to those
// addressed to the receiver, and returns the affected rows.
func (r *MessageRepo) MarkRead(ctx context.Context, messageIDs []int, receiverID int) ([]models.Message, error) {
	if len(messageIDs) == 0 {
		return []models.Message{}, nil
	}
	query, args, err := sqlx.In(`UPDATE messages SET status='read'
        WHERE id IN (?) AND receiver_id = ? AND status IN ('sent','delivered')
        RETURNING `+messageColumns, messageIDs, receiverID)
	if err != nil {
		return nil, err
	}
	var msgs []models.Message
	err = r.db.SelectContext(ctx, &msgs, r.db.Rebind(query), args...)
	return msgs, err
}

// DeleteMessage hard-deletes a message and its reactions.
func (r *MessageRepo) DeleteMessage(ctx context.Context, messageID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id=$1`, messageID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// GetReaction returns the user's reaction on a message, if any.
func (r *MessageRepo) GetReaction(ctx context.Context, messageID, userID int) (models.Reaction, error) {
	var reaction models.Reaction
	err := r.db.GetContext(ctx, &reaction, `SELECT message_id, user_id, emoji FROM message_reactions WHERE message_id=$1 AND user_id=$2`, messageID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Reaction{}, ErrReactionNotFound
	}
	return reaction, err
}

// SetReaction inserts or replaces the user's reaction. The unique constraint
// keeps at most one reaction per user per message.
func (r *MessageRepo) SetReaction(ctx context.Context, messageID, userID int, emoji string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO message_reactions (message_id, user_id, emoji) VALUES ($1, $2, $3)
        ON CONFLICT (message_id, user_id) DO UPDATE SET emoji = EXCLUDED.emoji`, messageID, userID, emoji)
	return err
}

// RemoveReaction deletes the user's reaction on a message.
func (r *MessageRepo) RemoveReaction(ctx context.Context, messageID, userID int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM message_reactions WHERE message_id=$1 AND user_id=$2`, messageID, userID)
	return err
}

// ListReactions returns the full reaction list with reactor usernames.
func (r *MessageRepo) ListReactions(ctx context.Context, messageID int) ([]models.Reaction, error) {
	var reactions []models.Reaction
	err := r.db.SelectContext(ctx, &reactions, `SELECT mr.message_id, mr.user_id, mr.emoji, u.username
        FROM message_reactions mr JOIN users u ON u.id = mr.user_id
        WHERE mr.message_id=$1 ORDER BY mr.user_id ASC`, messageID)
	return reactions, err
}

// ListReactionsByConversation returns reactions for every message in a
// conversation in one round trip, for the message listing path.
func (r *MessageRepo) ListReactionsByConversation(ctx context.Context, conversationID int) ([]models.Reaction, error) {
	var reactions []models.Reaction
	err := r.db.SelectContext(ctx, &reactions, `SELECT mr.message_id, mr.user_id, mr.emoji, u.username
        FROM message_reactions mr
        JOIN messages m ON m.id = mr.message_id
        JOIN users u ON u.id = mr.user_id
        WHERE m.conversation_id=$1 ORDER BY mr.message_id ASC, mr.user_id ASC`, conversationID)
	return reactions, err
}
