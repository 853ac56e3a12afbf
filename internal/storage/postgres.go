package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no row matches the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint (username or email)
	// rejects an insert or update.
	ErrDuplicate = errors.New("duplicate username or email")
	// ErrRefreshTokenMismatch is returned by RotateRefreshToken when the
	// presented token no longer equals the stored slot, i.e. it was already
	// rotated away or cleared.
	ErrRefreshTokenMismatch = errors.New("refresh token mismatch")
)

const userColumns = `
	id, username, email, full_name, password_hash, refresh_token,
	avatar_url, avatar_public_id, cover_image_url, cover_image_public_id,
	created_at, updated_at`

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateUser(ctx context.Context, nu NewUser) (*User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, full_name, password_hash,
			avatar_url, avatar_public_id, cover_image_url, cover_image_public_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING`+userColumns,
		nu.Username, nu.Email, nu.FullName, nu.PasswordHash,
		nu.AvatarURL, nu.AvatarPublicID, nu.CoverImageURL, nu.CoverImagePublicID)

	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return user, nil
}

// GetUserByUsernameOrEmail matches the identifier against either identity
// column. Callers pass the login field as typed by the user; usernames are
// stored lowercase.
func (s *Store) GetUserByUsernameOrEmail(ctx context.Context, identifier string) (*User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT`+userColumns+`
		FROM users
		WHERE username = lower($1) OR email = lower($1)
	`, identifier)
	return scanUser(row)
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT`+userColumns+`
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

// SetRefreshToken overwrites the session slot unconditionally. Used on login,
// where a fresh pair always replaces whatever was live before.
func (s *Store) SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET refresh_token = $2, updated_at = now()
		WHERE id = $1
	`, id, token)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RotateRefreshToken replaces the slot only if it still holds the presented
// value. The conditional update is the serialization point for concurrent
// refreshes: of two racing calls with the same presented token, exactly one
// matches and the other gets ErrRefreshTokenMismatch.
func (s *Store) RotateRefreshToken(ctx context.Context, id uuid.UUID, presented, next string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET refresh_token = $3, updated_at = now()
		WHERE id = $1 AND refresh_token = $2
	`, id, presented, next)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRefreshTokenMismatch
	}
	return nil
}

// ClearRefreshToken empties the slot, permanently invalidating any refresh
// token issued before this call.
func (s *Store) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET refresh_token = NULL, updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now()
		WHERE id = $1
	`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpdateAccountDetails(ctx context.Context, id uuid.UUID, fullName, email string) (*User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users SET full_name = $2, email = lower($3), updated_at = now()
		WHERE id = $1
		RETURNING`+userColumns,
		id, fullName, email)

	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return user, nil
}

func (s *Store) UpdateAvatar(ctx context.Context, id uuid.UUID, url, publicID string) (*User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users SET avatar_url = $2, avatar_public_id = $3, updated_at = now()
		WHERE id = $1
		RETURNING`+userColumns,
		id, url, publicID)
	return scanUser(row)
}

func (s *Store) UpdateCoverImage(ctx context.Context, id uuid.UUID, url, publicID string) (*User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users SET cover_image_url = $2, cover_image_public_id = $3, updated_at = now()
		WHERE id = $1
		RETURNING`+userColumns,
		id, url, publicID)
	return scanUser(row)
}

// GetChannelProfile aggregates the social-graph facts for one channel as seen
// by viewerID: subscriber count, how many channels it subscribes to, and
// whether the viewer is among its subscribers.
func (s *Store) GetChannelProfile(ctx context.Context, username string, viewerID uuid.UUID) (*ChannelProfile, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT u.id, u.username, u.full_name, u.email, u.avatar_url, u.cover_image_url,
			(SELECT count(*) FROM subscriptions s WHERE s.channel_id = u.id),
			(SELECT count(*) FROM subscriptions s WHERE s.subscriber_id = u.id),
			EXISTS (SELECT 1 FROM subscriptions s WHERE s.channel_id = u.id AND s.subscriber_id = $2)
		FROM users u
		WHERE u.username = lower($1)
	`, username, viewerID)

	var p ChannelProfile
	if err := row.Scan(&p.ID, &p.Username, &p.FullName, &p.Email, &p.AvatarURL, &p.CoverImageURL,
		&p.SubscriberCount, &p.SubscribedToCount, &p.IsSubscribed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// RecordWatch appends a video to the user's watch history. Re-watching bumps
// the timestamp instead of duplicating the entry.
func (s *Store) RecordWatch(ctx context.Context, userID, videoID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO watch_history (user_id, video_id, watched_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id, video_id) DO UPDATE SET watched_at = now()
	`, userID, videoID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) GetWatchHistory(ctx context.Context, userID uuid.UUID, limit int) ([]WatchEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT v.id, v.title, v.description, v.thumbnail_url, v.video_url,
			v.duration, v.views, w.watched_at,
			o.id, o.username, o.full_name, o.avatar_url
		FROM watch_history w
		JOIN videos v ON v.id = w.video_id
		JOIN users o ON o.id = v.owner_id
		WHERE w.user_id = $1 AND v.is_published
		ORDER BY w.watched_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]WatchEntry, 0, limit)
	for rows.Next() {
		var e WatchEntry
		if err := rows.Scan(&e.VideoID, &e.Title, &e.Description, &e.ThumbnailURL, &e.VideoURL,
			&e.Duration, &e.Views, &e.WatchedAt,
			&e.Owner.ID, &e.Owner.Username, &e.Owner.FullName, &e.Owner.AvatarURL); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanUser(row pgx.Row) (*User, error) {
	var user User
	if err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.FullName, &user.PasswordHash, &user.RefreshToken,
		&user.AvatarURL, &user.AvatarPublicID, &user.CoverImageURL, &user.CoverImagePublicID,
		&user.CreatedAt, &user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}
