package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrSelfConversation     = errors.New("cannot converse with self")
)

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	CreateOrGet(ctx context.Context, userID, friendID int) (models.Conversation, error)
	GetConversation(ctx context.Context, conversationID int) (models.Conversation, error)
	ListForUser(ctx context.Context, userID int) ([]models.Conversation, error)
	SetLastMessage(ctx context.Context, conversationID, messageID int) error
	IncrementUnread(ctx context.Context, conversationID int) error
	ResetUnread(ctx context.Context, conversationID int) error
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

const conversationColumns = `id, user1_id, user2_id, last_message_id, unread_count, created_at, updated_at`

// CreateOrGet finds the conversation for the sorted participant pair,
// creating it lazily on first message. Lookup is direction-independent.
func (r *ConversationRepo) CreateOrGet(ctx context.Context, userID, friendID int) (models.Conversation, error) {
	if userID == friendID {
		return models.Conversation{}, ErrSelfConversation
	}
	participants := []int{userID, friendID}
	sort.Ints(participants)
	user1, user2 := participants[0], participants[1]

	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE user1_id=$1 AND user2_id=$2`, user1, user2)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, err
	}
	err = r.db.GetContext(ctx, &conv, `INSERT INTO conversations (user1_id, user2_id) VALUES ($1, $2) RETURNING `+conversationColumns, user1, user2)
	return conv, err
}

// GetConversation fetches a conversation by id.
func (r *ConversationRepo) GetConversation(ctx context.Context, conversationID int) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// ListForUser returns the user's conversations, most recently updated first.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID int) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := r.db.SelectContext(ctx, &convs, `SELECT `+conversationColumns+` FROM conversations
        WHERE user1_id=$1 OR user2_id=$1 ORDER BY updated_at DESC`, userID)
	return convs, err
}

// SetLastMessage points the conversation at its newest message.
func (r *ConversationRepo) SetLastMessage(ctx context.Context, conversationID, messageID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversations SET last_message_id=$1, updated_at=NOW() WHERE id=$2`, messageID, conversationID)
	return err
}

// IncrementUnread bumps the unread counter on an inbound message.
func (r *ConversationRepo) IncrementUnread(ctx context.Context, conversationID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversations SET unread_count = unread_count + 1 WHERE id=$1`, conversationID)
	return err
}

// ResetUnread zeroes the unread counter when the recipient reads the thread.
func (r *ConversationRepo) ResetUnread(ctx context.Context, conversationID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversations SET unread_count = 0 WHERE id=$1`, conversationID)
	return err
}
