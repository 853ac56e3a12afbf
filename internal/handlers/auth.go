package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kanhaiya5613/Backend/internal/auth"
	"github.com/kanhaiya5613/Backend/internal/media"
	"github.com/kanhaiya5613/Backend/internal/metrics"
	"github.com/kanhaiya5613/Backend/internal/session"
)

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type authResponse struct {
	User         userResponse `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) Register(c *gin.Context) {
	fullName := strings.TrimSpace(c.PostForm("fullName"))
	email := strings.TrimSpace(c.PostForm("email"))
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")

	if fullName == "" || email == "" || username == "" || password == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "all fields are required"})
		return
	}

	avatarFile, err := c.FormFile("avatar")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "avatar file is required"})
		return
	}

	avatar, ok := h.uploadFormFile(c, avatarFile)
	if !ok {
		return
	}

	var cover media.Asset
	if coverFile, err := c.FormFile("coverImage"); err == nil {
		cover, ok = h.uploadFormFile(c, coverFile)
		if !ok {
			h.discardAsset(c, avatar)
			return
		}
	}

	user, err := h.Sessions.Register(c.Request.Context(), session.RegisterInput{
		Username:           strings.ToLower(username),
		Email:              strings.ToLower(email),
		FullName:           fullName,
		Password:           password,
		AvatarURL:          avatar.URL,
		AvatarPublicID:     avatar.PublicID,
		CoverImageURL:      cover.URL,
		CoverImagePublicID: cover.PublicID,
	})
	if err != nil {
		h.discardAsset(c, avatar)
		h.discardAsset(c, cover)
		if errors.Is(err, session.ErrConflict) {
			c.JSON(http.StatusConflict, errorResponse{Code: "CONFLICT", Message: "username or email already in use"})
			return
		}
		h.Logger.Error("register failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	c.JSON(http.StatusCreated, sanitizeUser(user))
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	identifier := req.Username
	if identifier == "" {
		identifier = req.Email
	}
	if identifier == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "username or email is required"})
		return
	}

	ip := c.ClientIP()
	allowed, _, err := h.RateLimiter.Allow(c.Request.Context(), ip, h.Clock.Now())
	if err != nil {
		h.Logger.Error("rate limiter failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}
	if !allowed {
		c.JSON(http.StatusTooManyRequests, errorResponse{Code: "RATE_LIMITED", Message: "too many requests"})
		return
	}

	user, pair, err := h.Sessions.Login(c.Request.Context(), identifier, req.Password)
	if err != nil {
		// missing account and wrong password are deliberately served the
		// same response, so login cannot enumerate accounts
		if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrInvalidCredentials) {
			metrics.LoginAttempts.WithLabelValues("rejected").Inc()
			c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "invalid credentials"})
			return
		}
		h.Logger.Error("login failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	metrics.LoginAttempts.WithLabelValues("ok").Inc()
	h.setAuthCookies(c, pair)
	c.JSON(http.StatusOK, authResponse{
		User:         sanitizeUser(user),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *Handler) Refresh(c *gin.Context) {
	// cookie takes precedence over the body field when both are present
	presented, err := c.Cookie(auth.RefreshTokenCookie)
	if err != nil || presented == "" {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			presented = req.RefreshToken
		}
	}
	if presented == "" {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "unauthorized"})
		return
	}

	pair, err := h.Sessions.Refresh(c.Request.Context(), presented)
	if err != nil {
		if errors.Is(err, session.ErrUnauthorized) {
			metrics.TokenRefreshes.WithLabelValues("rejected").Inc()
			c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "refresh token is expired or used"})
			return
		}
		h.Logger.Error("refresh failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	metrics.TokenRefreshes.WithLabelValues("ok").Inc()
	h.setAuthCookies(c, pair)
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *Handler) Logout(c *gin.Context) {
	principal, ok := auth.Principal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "unauthorized"})
		return
	}

	if err := h.Sessions.Logout(c.Request.Context(), principal.ID); err != nil {
		h.Logger.Error("logout failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	h.clearAuthCookies(c)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) ChangePassword(c *gin.Context) {
	principal, ok := auth.Principal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "unauthorized"})
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.OldPassword == "" || req.NewPassword == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	if err := h.Sessions.ChangePassword(c.Request.Context(), principal.ID, req.OldPassword, req.NewPassword); err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_CREDENTIALS", Message: "invalid old password"})
			return
		}
		h.Logger.Error("change password failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) setAuthCookies(c *gin.Context, pair session.TokenPair) {
	c.SetCookie(auth.AccessTokenCookie, pair.AccessToken, int(h.AccessTTL.Seconds()), "/", "", h.CookieSecure, true)
	c.SetCookie(auth.RefreshTokenCookie, pair.RefreshToken, int(h.RefreshTTL.Seconds()), "/", "", h.CookieSecure, true)
}

func (h *Handler) clearAuthCookies(c *gin.Context) {
	c.SetCookie(auth.AccessTokenCookie, "", -1, "/", "", h.CookieSecure, true)
	c.SetCookie(auth.RefreshTokenCookie, "", -1, "/", "", h.CookieSecure, true)
}

// uploadFormFile spools the multipart upload to a temp file and hands it to
// the object store. On failure the client gets a generic upload error.
func (h *Handler) uploadFormFile(c *gin.Context, fh *multipart.FileHeader) (media.Asset, bool) {
	tmp := filepath.Join(os.TempDir(), uuid.NewString()+filepath.Ext(fh.Filename))
	if err := c.SaveUploadedFile(fh, tmp); err != nil {
		h.Logger.Error("spool upload failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return media.Asset{}, false
	}
	defer os.Remove(tmp)

	asset, err := h.Media.Upload(c.Request.Context(), tmp)
	if err != nil {
		metrics.MediaUploads.WithLabelValues("error").Inc()
		h.Logger.Error("media upload failed", "error", err)
		c.JSON(http.StatusBadGateway, errorResponse{Code: "UPLOAD_FAILED", Message: "could not store file"})
		return media.Asset{}, false
	}
	metrics.MediaUploads.WithLabelValues("ok").Inc()
	return asset, true
}

// discardAsset removes an uploaded object that ended up unused because the
// surrounding operation failed. Best effort only.
func (h *Handler) discardAsset(c *gin.Context, asset media.Asset) {
	if asset.PublicID == "" {
		return
	}
	if err := h.Media.Delete(c.Request.Context(), asset.PublicID); err != nil {
		h.Logger.Warn("orphaned media asset", "public_id", asset.PublicID, "error", err)
	}
}
