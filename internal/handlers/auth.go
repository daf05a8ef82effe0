package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"messenger-service/internal/auth"
	"messenger-service/internal/media"
	"messenger-service/internal/models"
	"messenger-service/internal/otp"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
)

// cookieMaxAge matches the token lifetime.
const cookieMaxAge = int(365 * 24 * time.Hour / time.Second)

// AuthHandler manages the OTP sign-in flow and profile endpoints.
type AuthHandler struct {
	userRepo repositories.UserRepository
	emails   otp.EmailSender
	phones   otp.PhoneVerifier
	uploader media.Uploader
	audit    *telemetry.AuditEmitter
}

// NewAuthHandler builds an AuthHandler.
func NewAuthHandler(userRepo repositories.UserRepository, emails otp.EmailSender, phones otp.PhoneVerifier, uploader media.Uploader, audit *telemetry.AuditEmitter) *AuthHandler {
	return &AuthHandler{
		userRepo: userRepo,
		emails:   emails,
		phones:   phones,
		uploader: uploader,
		audit:    audit,
	}
}

// SendOTP issues a one-time code to an email address or, via the external
// verification provider, to a phone number.
func (h *AuthHandler) SendOTP(c *gin.Context) {
	var req struct {
		Email       string `json:"email"`
		PhoneSuffix string `json:"phone_suffix"`
		PhoneNumber string `json:"phone_number"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch {
	case req.Email != "":
		user, err := h.userRepo.FindOrCreateByEmail(c.Request.Context(), req.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve user"})
			return
		}

		code, err := otp.Generate()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate code"})
			return
		}
		hash, err := otp.Hash(code)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate code"})
			return
		}
		if err := h.userRepo.SetOTP(c.Request.Context(), user.ID, hash, time.Now().Add(otp.TTL)); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store code"})
			return
		}
		if err := h.emails.SendCode(c.Request.Context(), code, req.Email); err != nil {
			h.emitAudit(c, "ERROR", "otp email delivery failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to deliver code"})
			return
		}

	case req.PhoneSuffix != "" && req.PhoneNumber != "":
		if _, err := h.userRepo.FindOrCreateByPhone(c.Request.Context(), req.PhoneSuffix, req.PhoneNumber); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve user"})
			return
		}
		if err := h.phones.SendVerification(c.Request.Context(), req.PhoneSuffix+req.PhoneNumber); err != nil {
			h.emitAudit(c, "ERROR", "otp sms delivery failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to deliver code"})
			return
		}

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "email or phone required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "otp sent"})
}

// VerifyOTP checks the submitted code and issues the session cookie.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req struct {
		Email       string `json:"email"`
		PhoneSuffix string `json:"phone_suffix"`
		PhoneNumber string `json:"phone_number"`
		Code        string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	var err error
	switch {
	case req.Email != "":
		user, err = h.userRepo.FindOrCreateByEmail(c.Request.Context(), req.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve user"})
			return
		}
		if !otp.Verify(user.OTPHash, req.Code, user.OTPExpiry, time.Now()) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired code"})
			return
		}

	case req.PhoneSuffix != "" && req.PhoneNumber != "":
		user, err = h.userRepo.FindOrCreateByPhone(c.Request.Context(), req.PhoneSuffix, req.PhoneNumber)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve user"})
			return
		}
		ok, err := h.phones.CheckVerification(c.Request.Context(), req.PhoneSuffix+req.PhoneNumber, req.Code)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "verification check failed"})
			return
		}
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired code"})
			return
		}

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "email or phone required"})
		return
	}

	if err := h.userRepo.MarkVerified(c.Request.Context(), user.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify user"})
		return
	}

	token, err := auth.GenerateToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, token, cookieMaxAge, "/", "", false, true)

	user.IsVerified = true
	h.emitAudit(c, "INFO", "user verified")
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Logout clears the session cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetCookie(auth.CookieName, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

// CheckAuth returns the authenticated user's account.
func (h *AuthHandler) CheckAuth(c *gin.Context) {
	userID := c.GetInt("userID")

	user, err := h.userRepo.GetUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateProfile sets the display fields, uploading a new avatar when one is
// attached.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID := c.GetInt("userID")

	username := c.PostForm("username")
	about := c.PostForm("about")
	avatarURL := ""

	file, header, err := c.Request.FormFile("file")
	if err == nil {
		defer file.Close()

		if _, err := media.ResolveContentType(header.Header.Get("Content-Type")); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported media type"})
			return
		}
		avatarURL, err = h.uploader.Upload(c.Request.Context(), uuid.NewString(), header.Header.Get("Content-Type"), file)
		if err != nil {
			h.emitAudit(c, "ERROR", "avatar upload failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": "avatar upload failed"})
			return
		}
	}

	if err := h.userRepo.UpdateProfile(c.Request.Context(), userID, username, about, avatarURL); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update profile"})
		return
	}

	user, err := h.userRepo.GetUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// ListUsers returns every other registered account for the contact list.
func (h *AuthHandler) ListUsers(c *gin.Context) {
	userID := c.GetInt("userID")

	users, err := h.userRepo.ListUsersExcept(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load users"})
		return
	}

	infos := make([]models.UserInfo, 0, len(users))
	for _, u := range users {
		infos = append(infos, u.Info())
	}
	c.JSON(http.StatusOK, gin.H{"users": infos})
}

func (h *AuthHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
