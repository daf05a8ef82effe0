package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu       sync.Mutex
	frames   [][]byte
	writeErr error
	closed   bool
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	f.frames = append(f.frames, buf)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) envelopes(t *testing.T) []Envelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Envelope, 0, len(f.frames))
	for _, frame := range f.frames {
		var env Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		out = append(out, env)
	}
	return out
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func bindClient(hub *Hub, userID int) (*Client, *fakeConn) {
	conn := &fakeConn{}
	client := NewClient(userID, conn, ConnInfo{ConnID: "test"})
	hub.Presence().Bind(userID, client)
	return client, conn
}

func TestEmitToUserDelivers(t *testing.T) {
	hub := NewHub()
	_, conn := bindClient(hub, 1)

	delivered := hub.EmitToUser(1, EventUserStatus, UserStatusPayload{UserID: 2, IsOnline: true})
	require.True(t, delivered)

	envs := conn.envelopes(t)
	require.Len(t, envs, 1)
	assert.Equal(t, EventUserStatus, envs[0].Event)

	var payload UserStatusPayload
	require.NoError(t, json.Unmarshal(envs[0].Data, &payload))
	assert.Equal(t, 2, payload.UserID)
	assert.True(t, payload.IsOnline)
}

func TestEmitToUserOfflineDropsSilently(t *testing.T) {
	hub := NewHub()

	delivered := hub.EmitToUser(42, EventReceiveMessage, map[string]int{"id": 1})
	assert.False(t, delivered)
}

func TestEmitToUserWriteErrorEvictsClient(t *testing.T) {
	hub := NewHub()
	_, conn := bindClient(hub, 1)
	conn.writeErr = errors.New("broken pipe")

	delivered := hub.EmitToUser(1, EventUserStatus, UserStatusPayload{UserID: 1})
	assert.False(t, delivered)
	assert.True(t, conn.isClosed())
	assert.False(t, hub.IsOnline(1))
}

func TestEmitToAllExcludesOneUser(t *testing.T) {
	hub := NewHub()
	_, conn1 := bindClient(hub, 1)
	_, conn2 := bindClient(hub, 2)
	_, conn3 := bindClient(hub, 3)

	hub.EmitToAll(EventNewStatus, map[string]int{"id": 9}, 2)

	assert.Len(t, conn1.envelopes(t), 1)
	assert.Empty(t, conn2.envelopes(t))
	assert.Len(t, conn3.envelopes(t), 1)
}

func TestEmitToAllZeroExcludesNobody(t *testing.T) {
	hub := NewHub()
	_, conn1 := bindClient(hub, 1)
	_, conn2 := bindClient(hub, 2)

	hub.EmitToAll(EventStatusDeleted, map[string]int{"status_id": 5}, 0)

	assert.Len(t, conn1.envelopes(t), 1)
	assert.Len(t, conn2.envelopes(t), 1)
}
