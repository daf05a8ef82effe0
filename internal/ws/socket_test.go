package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/mocks"
)

func userStatusEvents(t *testing.T, conn *fakeConn) []UserStatusPayload {
	t.Helper()
	var out []UserStatusPayload
	for _, env := range conn.envelopes(t) {
		if env.Event != EventUserStatus {
			continue
		}
		var payload UserStatusPayload
		require.NoError(t, json.Unmarshal(env.Data, &payload))
		out = append(out, payload)
	}
	return out
}

func TestTeardownBroadcastsOfflineExactlyOnce(t *testing.T) {
	hub := NewHub()
	typing := NewTypingCoordinator(hub, time.Minute)
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewSocketHandler(hub, typing, NewCallBroker(hub), userRepo, new(mocks.MessageRepositoryMock))

	conn := &fakeConn{}
	client := NewClient(1, conn, ConnInfo{ConnID: "c1"})
	hub.Presence().Bind(1, client)
	_, observerConn := bindClient(hub, 2)

	typing.StartTyping(1, 10, 2)
	userRepo.On("SetPresence", mock.Anything, 1, false, mock.Anything).Return(nil).Once()

	handler.teardown(context.Background(), client, "")

	assert.False(t, hub.IsOnline(1))
	assert.False(t, typing.IsTyping(1, 10))

	statuses := userStatusEvents(t, observerConn)
	require.Len(t, statuses, 1)
	assert.Equal(t, 1, statuses[0].UserID)
	assert.False(t, statuses[0].IsOnline)

	// CancelAll emitted nothing: only the initial start notification exists.
	assert.Len(t, typingEvents(t, observerConn), 1)

	userRepo.AssertExpectations(t)
}

func TestTeardownOfReplacedSessionIsSilent(t *testing.T) {
	hub := NewHub()
	typing := NewTypingCoordinator(hub, time.Minute)
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewSocketHandler(hub, typing, NewCallBroker(hub), userRepo, new(mocks.MessageRepositoryMock))

	old := NewClient(1, &fakeConn{}, ConnInfo{ConnID: "old"})
	hub.Presence().Bind(1, old)
	fresh := NewClient(1, &fakeConn{}, ConnInfo{ConnID: "fresh"})
	hub.Presence().Bind(1, fresh)
	_, observerConn := bindClient(hub, 2)

	typing.StartTyping(1, 10, 2)

	handler.teardown(context.Background(), old, "")

	// The reconnect replaced the old session; its teardown must not mark the
	// user offline, broadcast, or cancel the live session's timers.
	assert.True(t, hub.IsOnline(1))
	assert.True(t, typing.IsTyping(1, 10))
	assert.Empty(t, userStatusEvents(t, observerConn))
	userRepo.AssertNotCalled(t, "SetPresence", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
