// Package handlers exposes the user-facing HTTP surface. All authentication
// decisions are delegated to the session manager and the gate middleware;
// handlers only translate transport to domain calls and back.
package handlers

import (
	"context"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kanhaiya5613/Backend/internal/media"
	"github.com/kanhaiya5613/Backend/internal/rate"
	"github.com/kanhaiya5613/Backend/internal/session"
	"github.com/kanhaiya5613/Backend/internal/storage"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Sessions is the session manager surface the handlers drive.
type Sessions interface {
	Register(ctx context.Context, in session.RegisterInput) (*storage.User, error)
	Login(ctx context.Context, identifier, password string) (*storage.User, session.TokenPair, error)
	Refresh(ctx context.Context, presented string) (session.TokenPair, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error
}

// Store is the non-session slice of the credential store the profile and
// reporting handlers use.
type Store interface {
	UpdateAccountDetails(ctx context.Context, id uuid.UUID, fullName, email string) (*storage.User, error)
	UpdateAvatar(ctx context.Context, id uuid.UUID, url, publicID string) (*storage.User, error)
	UpdateCoverImage(ctx context.Context, id uuid.UUID, url, publicID string) (*storage.User, error)
	GetChannelProfile(ctx context.Context, username string, viewerID uuid.UUID) (*storage.ChannelProfile, error)
	GetWatchHistory(ctx context.Context, userID uuid.UUID, limit int) ([]storage.WatchEntry, error)
	RecordWatch(ctx context.Context, userID, videoID uuid.UUID) error
}

type Handler struct {
	Sessions     Sessions
	Store        Store
	Media        media.Store
	Logger       *slog.Logger
	RateLimiter  rate.Limiter
	Clock        Clock
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	CookieSecure bool
}

func New(sessions Sessions, store Store, mediaStore media.Store, logger *slog.Logger,
	limiter rate.Limiter, accessTTL, refreshTTL time.Duration, cookieSecure bool) *Handler {
	return &Handler{
		Sessions:     sessions,
		Store:        store,
		Media:        mediaStore,
		Logger:       logger,
		RateLimiter:  limiter,
		Clock:        systemClock{},
		AccessTTL:    accessTTL,
		RefreshTTL:   refreshTTL,
		CookieSecure: cookieSecure,
	}
}

// RegisterRoutes mounts the surface under /api/v1/users. The gate middleware
// protects everything that needs a principal.
func (h *Handler) RegisterRoutes(r *gin.Engine, gate gin.HandlerFunc) {
	users := r.Group("/api/v1/users")
	users.POST("/register", h.Register)
	users.POST("/login", h.Login)
	users.POST("/refresh-token", h.Refresh)

	protected := users.Group("", gate)
	protected.POST("/logout", h.Logout)
	protected.POST("/change-password", h.ChangePassword)
	protected.GET("/current-user", h.CurrentUser)
	protected.PATCH("/update-account", h.UpdateAccount)
	protected.PATCH("/avatar", h.UpdateAvatar)
	protected.PATCH("/cover-image", h.UpdateCoverImage)
	protected.GET("/c/:username", h.ChannelProfile)
	protected.GET("/history", h.WatchHistory)
	protected.POST("/history/:videoId", h.RecordWatch)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// userResponse is the sanitized account view. The credential hash and the
// live refresh token never appear here.
type userResponse struct {
	ID            uuid.UUID `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	AvatarURL     string    `json:"avatar,omitempty"`
	CoverImageURL string    `json:"coverImage,omitempty"`
	CreatedAt     string    `json:"createdAt"`
}

func sanitizeUser(u *storage.User) userResponse {
	return userResponse{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		CreatedAt:     u.CreatedAt.UTC().Format(time.RFC3339),
	}
}
