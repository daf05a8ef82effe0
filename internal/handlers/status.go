package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"messenger-service/internal/media"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
	"messenger-service/internal/ws"
)

// statusTTL is how long a status stays visible after posting.
const statusTTL = 24 * time.Hour

// StatusHandler manages ephemeral status posts.
type StatusHandler struct {
	statusRepo repositories.StatusRepository
	userRepo   repositories.UserRepository
	uploader   media.Uploader
	hub        *ws.Hub
	audit      *telemetry.AuditEmitter
}

// NewStatusHandler builds a StatusHandler.
func NewStatusHandler(statusRepo repositories.StatusRepository, userRepo repositories.UserRepository, uploader media.Uploader, hub *ws.Hub, audit *telemetry.AuditEmitter) *StatusHandler {
	return &StatusHandler{
		statusRepo: statusRepo,
		userRepo:   userRepo,
		uploader:   uploader,
		hub:        hub,
		audit:      audit,
	}
}

// CreateStatus stores a status post and broadcasts it to everyone online
// except the author.
func (h *StatusHandler) CreateStatus(c *gin.Context) {
	userID := c.GetInt("userID")

	author, err := h.userRepo.GetUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}

	content := c.PostForm("content")
	contentType := models.ContentTypeText

	file, header, err := c.Request.FormFile("file")
	if err == nil {
		defer file.Close()

		contentType, err = media.ResolveContentType(header.Header.Get("Content-Type"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported media type"})
			return
		}

		content, err = h.uploader.Upload(c.Request.Context(), uuid.NewString(), header.Header.Get("Content-Type"), file)
		if err != nil {
			h.emitAudit(c, "ERROR", "status media upload failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": "media upload failed"})
			return
		}
	} else if content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status content is empty"})
		return
	}

	now := time.Now()
	status, err := h.statusRepo.CreateStatus(c.Request.Context(), models.Status{
		UserID:      userID,
		Content:     content,
		ContentType: contentType,
		ExpiresAt:   now.Add(statusTTL),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store status"})
		return
	}

	authorInfo := author.Info()
	status.User = &authorInfo

	h.hub.EmitToAll(ws.EventNewStatus, status, userID)

	h.emitAudit(c, "INFO", "status created")
	c.JSON(http.StatusCreated, status)
}

// ListStatuses returns every unexpired status, newest first. Expiry is
// enforced here at read time.
func (h *StatusHandler) ListStatuses(c *gin.Context) {
	statuses, err := h.statusRepo.ListActive(c.Request.Context(), time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load statuses"})
		return
	}

	authorIDs := make([]int, 0, len(statuses))
	seen := map[int]struct{}{}
	for _, status := range statuses {
		if _, ok := seen[status.UserID]; !ok {
			seen[status.UserID] = struct{}{}
			authorIDs = append(authorIDs, status.UserID)
		}
	}

	if len(authorIDs) > 0 {
		users, err := h.userRepo.GetUsers(c.Request.Context(), authorIDs)
		if err == nil {
			infoByID := map[int]models.UserInfo{}
			for _, u := range users {
				infoByID[u.ID] = u.Info()
			}
			for i := range statuses {
				if info, ok := infoByID[statuses[i].UserID]; ok {
					statuses[i].User = &info
				}
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"statuses": statuses})
}

// ViewStatus records the viewer on a status. Repeat views are idempotent and
// viewing your own status is a no-op.
func (h *StatusHandler) ViewStatus(c *gin.Context) {
	statusID, err := strconv.Atoi(c.Param("status_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status id"})
		return
	}

	userID := c.GetInt("userID")
	status, err := h.statusRepo.GetStatus(c.Request.Context(), statusID)
	if err != nil {
		httpStatus := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrStatusNotFound) {
			httpStatus = http.StatusNotFound
		}
		c.JSON(httpStatus, gin.H{"error": "status not found"})
		return
	}

	if status.UserID == userID {
		c.JSON(http.StatusOK, gin.H{"viewers": status.Viewers})
		return
	}

	if err := h.statusRepo.AddViewer(c.Request.Context(), statusID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record view"})
		return
	}

	viewers, err := h.statusRepo.ListViewers(c.Request.Context(), statusID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load viewers"})
		return
	}

	h.hub.EmitToUser(status.UserID, ws.EventStatusViewed, ws.StatusViewedPayload{
		StatusID:     statusID,
		ViewerID:     userID,
		TotalViewers: len(viewers),
		Viewers:      viewers,
	})

	c.JSON(http.StatusOK, gin.H{"viewers": viewers})
}

// DeleteStatus removes a status. Only the owner may delete; everyone else
// online learns about it.
func (h *StatusHandler) DeleteStatus(c *gin.Context) {
	statusID, err := strconv.Atoi(c.Param("status_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status id"})
		return
	}

	userID := c.GetInt("userID")
	status, err := h.statusRepo.GetStatus(c.Request.Context(), statusID)
	if err != nil {
		httpStatus := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrStatusNotFound) {
			httpStatus = http.StatusNotFound
		}
		c.JSON(httpStatus, gin.H{"error": "status not found"})
		return
	}
	if status.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only owner can delete"})
		return
	}

	if err := h.statusRepo.DeleteStatus(c.Request.Context(), statusID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete status"})
		return
	}

	h.hub.EmitToAll(ws.EventStatusDeleted, gin.H{"status_id": statusID}, userID)
	h.emitAudit(c, "INFO", "status deleted")
	c.Status(http.StatusNoContent)
}

func (h *StatusHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
