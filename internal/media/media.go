// Package media is the object-store collaborator for profile assets. The
// core's contract: a replacement asset is uploaded and confirmed before the
// old one is deleted, never the other way round.
package media

import (
	"context"
	"errors"
)

// ErrUploadFailed is the generic upload error surfaced to callers; the
// underlying storage fault stays wrapped behind it.
var ErrUploadFailed = errors.New("media upload failed")

// Asset identifies one stored object: the public URL handed to clients and
// the storage key used for later deletion.
type Asset struct {
	URL      string
	PublicID string
}

type Store interface {
	Upload(ctx context.Context, localPath string) (Asset, error)
	Delete(ctx context.Context, publicID string) error
}
