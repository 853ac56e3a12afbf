package storage

import (
	"time"

	"github.com/google/uuid"
)

// User is the persisted account record. RefreshToken is the single live
// session slot: nil means no outstanding session.
type User struct {
	ID                 uuid.UUID
	Username           string
	Email              string
	FullName           string
	PasswordHash       string
	RefreshToken       *string
	AvatarURL          string
	AvatarPublicID     string
	CoverImageURL      string
	CoverImagePublicID string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type NewUser struct {
	Username           string
	Email              string
	FullName           string
	PasswordHash       string
	AvatarURL          string
	AvatarPublicID     string
	CoverImageURL      string
	CoverImagePublicID string
}

// ChannelProfile is the derived social-graph view of an account as seen by a
// specific viewer.
type ChannelProfile struct {
	ID                uuid.UUID
	Username          string
	FullName          string
	Email             string
	AvatarURL         string
	CoverImageURL     string
	SubscriberCount   int64
	SubscribedToCount int64
	IsSubscribed      bool
}

type OwnerSnippet struct {
	ID        uuid.UUID
	Username  string
	FullName  string
	AvatarURL string
}

type WatchEntry struct {
	VideoID      uuid.UUID
	Title        string
	Description  string
	ThumbnailURL string
	VideoURL     string
	Duration     float64
	Views        int64
	WatchedAt    time.Time
	Owner        OwnerSnippet
}
