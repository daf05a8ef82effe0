package ws

import (
	"sync"
	"time"
)

// DefaultTypingTTL is how long a typing indicator may stay true without a
// refresh.
const DefaultTypingTTL = 3 * time.Second

type typingEntry struct {
	isTyping bool
	timer    *time.Timer
	gen      uint64
}

// TypingCoordinator tracks per-user, per-conversation typing state with
// automatic expiry. Every true entry has a live timer; expiry flips the
// state to false and notifies the receiver.
type TypingCoordinator struct {
	hub *Hub
	ttl time.Duration

	mu      sync.Mutex
	entries map[int]map[int]*typingEntry
}

// NewTypingCoordinator builds a coordinator. A zero ttl falls back to the
// default 3 seconds.
func NewTypingCoordinator(hub *Hub, ttl time.Duration) *TypingCoordinator {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	return &TypingCoordinator{
		hub:     hub,
		ttl:     ttl,
		entries: make(map[int]map[int]*typingEntry),
	}
}

// StartTyping marks the user as typing in the conversation, restarting the
// expiry timer, and notifies the receiver immediately.
func (t *TypingCoordinator) StartTyping(userID, conversationID, receiverID int) {
	t.mu.Lock()
	byConv, ok := t.entries[userID]
	if !ok {
		byConv = make(map[int]*typingEntry)
		t.entries[userID] = byConv
	}
	entry, ok := byConv[conversationID]
	if !ok {
		entry = &typingEntry{}
		byConv[conversationID] = entry
	}
	if entry.timer != nil {
		entry.timer.Stop()
	}
	entry.isTyping = true
	entry.gen++
	gen := entry.gen
	entry.timer = time.AfterFunc(t.ttl, func() {
		t.expire(userID, conversationID, receiverID, gen)
	})
	t.mu.Unlock()

	t.hub.EmitToUser(receiverID, EventUserTyping, UserTypingPayload{
		UserID:         userID,
		ConversationID: conversationID,
		IsTyping:       true,
	})
}

// StopTyping cancels the timer, clears the state and notifies immediately.
func (t *TypingCoordinator) StopTyping(userID, conversationID, receiverID int) {
	t.mu.Lock()
	if entry, ok := t.entries[userID][conversationID]; ok {
		if entry.timer != nil {
			entry.timer.Stop()
			entry.timer = nil
		}
		entry.isTyping = false
	}
	t.mu.Unlock()

	t.hub.EmitToUser(receiverID, EventUserTyping, UserTypingPayload{
		UserID:         userID,
		ConversationID: conversationID,
		IsTyping:       false,
	})
}

func (t *TypingCoordinator) expire(userID, conversationID, receiverID int, gen uint64) {
	t.mu.Lock()
	entry, ok := t.entries[userID][conversationID]
	if !ok || entry.timer == nil || entry.gen != gen {
		// Canceled or superseded between the timer firing and this callback
		// taking the lock: a stop, a disconnect, or a refresh that started a
		// newer generation. Only the live generation may flip the state.
		t.mu.Unlock()
		return
	}
	entry.isTyping = false
	entry.timer = nil
	t.mu.Unlock()

	t.hub.EmitToUser(receiverID, EventUserTyping, UserTypingPayload{
		UserID:         userID,
		ConversationID: conversationID,
		IsTyping:       false,
	})
}

// IsTyping reports the current state for a (user, conversation) pair.
func (t *TypingCoordinator) IsTyping(userID, conversationID int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[userID][conversationID]
	return ok && entry.isTyping
}

// CancelAll stops every outstanding timer for the departing user without
// emitting, so no callback fires against a torn-down connection.
func (t *TypingCoordinator) CancelAll(userID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, entry := range t.entries[userID] {
		if entry.timer != nil {
			entry.timer.Stop()
			entry.timer = nil
		}
		entry.isTyping = false
	}
	delete(t.entries, userID)
}
