package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kanhaiya5613/Backend/internal/auth"
	"github.com/kanhaiya5613/Backend/internal/storage"
)

type updateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

type channelProfileResponse struct {
	ID                uuid.UUID `json:"id"`
	Username          string    `json:"username"`
	FullName          string    `json:"fullName"`
	Email             string    `json:"email"`
	AvatarURL         string    `json:"avatar,omitempty"`
	CoverImageURL     string    `json:"coverImage,omitempty"`
	SubscriberCount   int64     `json:"subscriberCount"`
	SubscribedToCount int64     `json:"channelsSubscribedToCount"`
	IsSubscribed      bool      `json:"isSubscribed"`
}

type watchEntryResponse struct {
	VideoID      uuid.UUID     `json:"videoId"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	ThumbnailURL string        `json:"thumbnail,omitempty"`
	VideoURL     string        `json:"videoFile"`
	Duration     float64       `json:"duration"`
	Views        int64         `json:"views"`
	WatchedAt    string        `json:"watchedAt"`
	Owner        ownerResponse `json:"owner"`
}

type ownerResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"fullName"`
	AvatarURL string    `json:"avatar,omitempty"`
}

func (h *Handler) CurrentUser(c *gin.Context) {
	principal, ok := auth.Principal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, sanitizeUser(principal))
}

func (h *Handler) UpdateAccount(c *gin.Context) {
	principal, ok := auth.Principal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "unauthorized"})
		return
	}

	var req updateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.TrimSpace(req.Email)
	if req.FullName == "" || req.Email == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "all fields are required"})
		return
	}

	user, err := h.Store.UpdateAccountDetails(c.Request.Context(), principal.ID, req.FullName, req.Email)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			c.JSON(http.StatusConflict, errorResponse{Code: "CONFLICT", Message: "email already in use"})
			return
		}
		h.Logger.Error("update account failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	c.JSON(http.StatusOK, sanitizeUser(user))
}

func (h *Handler) UpdateAvatar(c *gin.Context) {
	h.updateImage(c, "avatar",
		func(u *storage.User) string { return u.AvatarPublicID },
		h.Store.UpdateAvatar)
}

func (h *Handler) UpdateCoverImage(c *gin.Context) {
	h.updateImage(c, "coverImage",
		func(u *storage.User) string { return u.CoverImagePublicID },
		h.Store.UpdateCoverImage)
}

// updateImage replaces one profile asset. The new object is uploaded and
// persisted before the old one is deleted; a failed upload leaves the
// previous asset untouched.
func (h *Handler) updateImage(c *gin.Context, field string,
	oldPublicID func(*storage.User) string,
	persist func(ctx context.Context, id uuid.UUID, url, publicID string) (*storage.User, error)) {
	principal, ok := auth.Principal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "unauthorized"})
		return
	}

	fh, err := c.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: field + " file is missing"})
		return
	}

	asset, ok := h.uploadFormFile(c, fh)
	if !ok {
		return
	}

	user, err := persist(c.Request.Context(), principal.ID, asset.URL, asset.PublicID)
	if err != nil {
		h.discardAsset(c, asset)
		h.Logger.Error("persist "+field+" failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	// the replacement is confirmed stored and persisted, the old asset can go
	if old := oldPublicID(principal); old != "" {
		if err := h.Media.Delete(c.Request.Context(), old); err != nil {
			h.Logger.Warn("delete old "+field+" failed", "public_id", old, "error", err)
		}
	}

	c.JSON(http.StatusOK, sanitizeUser(user))
}

func (h *Handler) ChannelProfile(c *gin.Context) {
	principal, ok := auth.Principal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "unauthorized"})
		return
	}

	username := strings.TrimSpace(c.Param("username"))
	if username == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "username is missing"})
		return
	}

	profile, err := h.Store.GetChannelProfile(c.Request.Context(), username, principal.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "channel does not exist"})
			return
		}
		h.Logger.Error("channel profile failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	c.JSON(http.StatusOK, channelProfileResponse{
		ID:                profile.ID,
		Username:          profile.Username,
		FullName:          profile.FullName,
		Email:             profile.Email,
		AvatarURL:         profile.AvatarURL,
		CoverImageURL:     profile.CoverImageURL,
		SubscriberCount:   profile.SubscriberCount,
		SubscribedToCount: profile.SubscribedToCount,
		IsSubscribed:      profile.IsSubscribed,
	})
}

func (h *Handler) WatchHistory(c *gin.Context) {
	principal, ok := auth.Principal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "unauthorized"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	entries, err := h.Store.GetWatchHistory(c.Request.Context(), principal.ID, limit)
	if err != nil {
		h.Logger.Error("watch history failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	out := make([]watchEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, watchEntryResponse{
			VideoID:      e.VideoID,
			Title:        e.Title,
			Description:  e.Description,
			ThumbnailURL: e.ThumbnailURL,
			VideoURL:     e.VideoURL,
			Duration:     e.Duration,
			Views:        e.Views,
			WatchedAt:    e.WatchedAt.UTC().Format(time.RFC3339),
			Owner: ownerResponse{
				ID:        e.Owner.ID,
				Username:  e.Owner.Username,
				FullName:  e.Owner.FullName,
				AvatarURL: e.Owner.AvatarURL,
			},
		})
	}

	c.JSON(http.StatusOK, gin.H{"watchHistory": out})
}

func (h *Handler) RecordWatch(c *gin.Context) {
	principal, ok := auth.Principal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "unauthorized"})
		return
	}

	videoID, err := uuid.Parse(c.Param("videoId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid video id"})
		return
	}

	if err := h.Store.RecordWatch(c.Request.Context(), principal.ID, videoID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "video does not exist"})
			return
		}
		h.Logger.Error("record watch failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
