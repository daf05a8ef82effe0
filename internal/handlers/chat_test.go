package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
	"messenger-service/internal/ws"
)

type recordingConn struct {
	mu     sync.Mutex
	frames [][]byte
}

func (r *recordingConn) WriteMessage(messageType int, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	r.frames = append(r.frames, buf)
	return nil
}

func (r *recordingConn) Close() error { return nil }

func (r *recordingConn) envelopes(t *testing.T) []ws.Envelope {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ws.Envelope, 0, len(r.frames))
	for _, frame := range r.frames {
		var env ws.Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		out = append(out, env)
	}
	return out
}

func bindTestClient(hub *ws.Hub, userID int) *recordingConn {
	conn := &recordingConn{}
	hub.Presence().Bind(userID, ws.NewClient(userID, conn, ws.ConnInfo{}))
	return conn
}

func setupChatRouter(handler *ChatHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.POST("/messages/send-message", handler.SendMessage)
	r.GET("/messages/conversations", handler.GetConversations)
	r.GET("/messages/conversations/:conversation_id/messages", handler.GetMessages)
	r.PUT("/messages/read", handler.MarkAsRead)
	r.DELETE("/messages/:message_id", handler.DeleteMessage)
	return r
}

func postForm(router *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSendMessageTextDelivered(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	hub := ws.NewHub()
	receiverConn := bindTestClient(hub, 2)

	handler := NewChatHandler(convRepo, messageRepo, userRepo, nil, hub, nil)
	router := setupChatRouter(handler)

	userRepo.On("GetUser", mock.Anything, 2).Return(models.User{ID: 2, Username: "bob"}, nil).Once()
	userRepo.On("GetUser", mock.Anything, 1).Return(models.User{ID: 1, Username: "alice"}, nil).Once()
	convRepo.On("CreateOrGet", mock.Anything, 1, 2).Return(models.Conversation{ID: 5, User1ID: 1, User2ID: 2}, nil).Once()
	messageRepo.On("CreateMessage", mock.Anything, mock.Anything).Return(models.Message{
		ID: 9, ConversationID: 5, SenderID: 1, ReceiverID: 2,
		Content: "hi", ContentType: models.ContentTypeText, Status: models.StatusSent,
	}, nil).Once()
	convRepo.On("SetLastMessage", mock.Anything, 5, 9).Return(nil).Once()
	convRepo.On("IncrementUnread", mock.Anything, 5).Return(nil).Once()
	messageRepo.On("UpdateStatus", mock.Anything, 9, models.StatusDelivered).Return(nil).Once()

	rec := postForm(router, "/messages/send-message", url.Values{
		"receiver_id": {"2"},
		"message":     {"hi"},
	})

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, models.StatusDelivered, resp.Status)
	require.NotNil(t, resp.Sender)
	assert.Equal(t, "alice", resp.Sender.Username)

	envs := receiverConn.envelopes(t)
	require.Len(t, envs, 1)
	assert.Equal(t, ws.EventReceiveMessage, envs[0].Event)

	convRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
	userRepo.AssertExpectations(t)
}

func TestSendMessageOfflineReceiverStaysSent(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	hub := ws.NewHub()

	handler := NewChatHandler(convRepo, messageRepo, userRepo, nil, hub, nil)
	router := setupChatRouter(handler)

	userRepo.On("GetUser", mock.Anything, 2).Return(models.User{ID: 2}, nil).Once()
	userRepo.On("GetUser", mock.Anything, 1).Return(models.User{ID: 1}, nil).Once()
	convRepo.On("CreateOrGet", mock.Anything, 1, 2).Return(models.Conversation{ID: 5}, nil).Once()
	messageRepo.On("CreateMessage", mock.Anything, mock.Anything).Return(models.Message{
		ID: 9, ConversationID: 5, SenderID: 1, ReceiverID: 2, Status: models.StatusSent,
	}, nil).Once()
	convRepo.On("SetLastMessage", mock.Anything, 5, 9).Return(nil).Once()
	convRepo.On("IncrementUnread", mock.Anything, 5).Return(nil).Once()

	rec := postForm(router, "/messages/send-message", url.Values{
		"receiver_id": {"2"},
		"message":     {"hi"},
	})

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, models.StatusSent, resp.Status)

	messageRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessageReceiverNotFound(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewChatHandler(new(mocks.ConversationRepositoryMock), new(mocks.MessageRepositoryMock), userRepo, nil, ws.NewHub(), nil)
	router := setupChatRouter(handler)

	userRepo.On("GetUser", mock.Anything, 2).Return(models.User{}, repositories.ErrUserNotFound).Once()

	rec := postForm(router, "/messages/send-message", url.Values{
		"receiver_id": {"2"},
		"message":     {"hi"},
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendMessageToSelfRejected(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewChatHandler(convRepo, new(mocks.MessageRepositoryMock), userRepo, nil, ws.NewHub(), nil)
	router := setupChatRouter(handler)

	userRepo.On("GetUser", mock.Anything, 1).Return(models.User{ID: 1}, nil).Twice()
	convRepo.On("CreateOrGet", mock.Anything, 1, 1).Return(models.Conversation{}, repositories.ErrSelfConversation).Once()

	rec := postForm(router, "/messages/send-message", url.Values{
		"receiver_id": {"1"},
		"message":     {"hi"},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessageEmptyContentRejected(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewChatHandler(new(mocks.ConversationRepositoryMock), new(mocks.MessageRepositoryMock), userRepo, nil, ws.NewHub(), nil)
	router := setupChatRouter(handler)

	userRepo.On("GetUser", mock.Anything, 2).Return(models.User{ID: 2}, nil).Once()
	userRepo.On("GetUser", mock.Anything, 1).Return(models.User{ID: 1}, nil).Once()

	rec := postForm(router, "/messages/send-message", url.Values{"receiver_id": {"2"}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetConversationsIncludesFriendAndLastMessage(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)

	handler := NewChatHandler(convRepo, messageRepo, userRepo, nil, ws.NewHub(), nil)
	router := setupChatRouter(handler)

	convRepo.On("ListForUser", mock.Anything, 1).Return([]models.Conversation{
		{ID: 5, User1ID: 1, User2ID: 2, LastMessageID: 9, UnreadCount: 3},
	}, nil).Once()
	userRepo.On("GetUsers", mock.Anything, []int{2}).Return([]models.User{{ID: 2, Username: "bob"}}, nil).Once()
	messageRepo.On("GetMessage", mock.Anything, 9).Return(models.Message{ID: 9, Content: "latest"}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Conversations, 1)
	assert.Equal(t, "bob", resp.Conversations[0].Friend.Username)
	require.NotNil(t, resp.Conversations[0].LastMessage)
	assert.Equal(t, "latest", resp.Conversations[0].LastMessage.Content)
	assert.Equal(t, 3, resp.Conversations[0].UnreadCount)
}

func TestGetMessagesMarksConversationRead(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)

	handler := NewChatHandler(convRepo, messageRepo, new(mocks.UserRepositoryMock), nil, ws.NewHub(), nil)
	router := setupChatRouter(handler)

	convRepo.On("GetConversation", mock.Anything, 5).Return(models.Conversation{ID: 5, User1ID: 1, User2ID: 2}, nil).Once()
	messageRepo.On("ListByConversation", mock.Anything, 5).Return([]models.Message{{ID: 8}, {ID: 9}}, nil).Once()
	messageRepo.On("ListReactionsByConversation", mock.Anything, 5).Return([]models.Reaction{
		{MessageID: 9, UserID: 2, Emoji: "👍"},
	}, nil).Once()
	messageRepo.On("MarkConversationRead", mock.Anything, 5, 1).Return(nil).Once()
	convRepo.On("ResetUnread", mock.Anything, 5).Return(nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/conversations/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 2)
	assert.Len(t, resp.Messages[1].Reactions, 1)

	convRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestGetMessagesForbiddenForOutsider(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	handler := NewChatHandler(convRepo, new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock), nil, ws.NewHub(), nil)
	router := setupChatRouter(handler)

	convRepo.On("GetConversation", mock.Anything, 5).Return(models.Conversation{ID: 5, User1ID: 2, User2ID: 3}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/conversations/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetMessagesConversationNotFound(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	handler := NewChatHandler(convRepo, new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock), nil, ws.NewHub(), nil)
	router := setupChatRouter(handler)

	convRepo.On("GetConversation", mock.Anything, 5).Return(models.Conversation{}, repositories.ErrConversationNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/conversations/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarkAsReadNotifiesSenders(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	hub := ws.NewHub()
	senderConn := bindTestClient(hub, 2)

	handler := NewChatHandler(new(mocks.ConversationRepositoryMock), messageRepo, new(mocks.UserRepositoryMock), nil, hub, nil)
	router := setupChatRouter(handler)

	messageRepo.On("MarkRead", mock.Anything, []int{8, 9}, 1).Return([]models.Message{
		{ID: 8, SenderID: 2, Status: models.StatusRead},
		{ID: 9, SenderID: 2, Status: models.StatusRead},
	}, nil).Once()

	body, _ := json.Marshal(gin.H{"message_ids": []int{8, 9}})
	req := httptest.NewRequest(http.MethodPut, "/messages/read", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	envs := senderConn.envelopes(t)
	require.Len(t, envs, 2)
	for i, env := range envs {
		assert.Equal(t, ws.EventMessageStatusUpdate, env.Event)
		var payload ws.MessageStatusPayload
		require.NoError(t, json.Unmarshal(env.Data, &payload))
		assert.Equal(t, 8+i, payload.MessageID)
		assert.Equal(t, models.StatusRead, payload.Status)
	}
}

func TestDeleteMessageSenderOnly(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(new(mocks.ConversationRepositoryMock), messageRepo, new(mocks.UserRepositoryMock), nil, ws.NewHub(), nil)
	router := setupChatRouter(handler)

	messageRepo.On("GetMessage", mock.Anything, 9).Return(models.Message{ID: 9, SenderID: 2, ReceiverID: 1}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/messages/"+strconv.Itoa(9), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	messageRepo.AssertNotCalled(t, "DeleteMessage", mock.Anything, mock.Anything)
}

func TestDeleteMessageNotifiesReceiver(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	hub := ws.NewHub()
	receiverConn := bindTestClient(hub, 2)

	handler := NewChatHandler(new(mocks.ConversationRepositoryMock), messageRepo, new(mocks.UserRepositoryMock), nil, hub, nil)
	router := setupChatRouter(handler)

	messageRepo.On("GetMessage", mock.Anything, 9).Return(models.Message{ID: 9, ConversationID: 5, SenderID: 1, ReceiverID: 2}, nil).Once()
	messageRepo.On("DeleteMessage", mock.Anything, 9).Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/messages/9", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)

	envs := receiverConn.envelopes(t)
	require.Len(t, envs, 1)
	assert.Equal(t, ws.EventMessageDeleted, envs[0].Event)
}
