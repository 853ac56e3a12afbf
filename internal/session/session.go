// Package session implements the authentication state machine: login, token
// refresh with rotation, logout and password change, on top of the credential
// store and the token issuer.
package session

import (
	"context"
	"errors"
	"fmt"

	"log/slog"

	"github.com/google/uuid"

	"github.com/kanhaiya5613/Backend/internal/config"
	"github.com/kanhaiya5613/Backend/internal/security"
	"github.com/kanhaiya5613/Backend/internal/storage"
)

var (
	// ErrInvalidCredentials covers a wrong password. Handlers present it
	// identically to ErrNotFound so login cannot be used to enumerate
	// accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotFound covers a missing account.
	ErrNotFound = errors.New("account not found")
	// ErrUnauthorized covers every refresh-token failure: invalid, expired,
	// or already rotated away.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrConflict covers a duplicate username or email at registration.
	ErrConflict = errors.New("username or email already taken")
)

// Store is the slice of the credential store the session manager needs.
type Store interface {
	CreateUser(ctx context.Context, nu storage.NewUser) (*storage.User, error)
	GetUserByUsernameOrEmail(ctx context.Context, identifier string) (*storage.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*storage.User, error)
	SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error
	RotateRefreshToken(ctx context.Context, id uuid.UUID, presented, next string) error
	ClearRefreshToken(ctx context.Context, id uuid.UUID) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type RegisterInput struct {
	Username           string
	Email              string
	FullName           string
	Password           string
	AvatarURL          string
	AvatarPublicID     string
	CoverImageURL      string
	CoverImagePublicID string
}

type Manager struct {
	store  Store
	tokens *security.TokenIssuer
	argon  config.Argon2Params
	logger *slog.Logger
}

func NewManager(store Store, tokens *security.TokenIssuer, argon config.Argon2Params, logger *slog.Logger) *Manager {
	return &Manager{store: store, tokens: tokens, argon: argon, logger: logger}
}

// Register hashes the password and creates the account. Duplicate username or
// email surfaces as ErrConflict with no record created.
func (m *Manager) Register(ctx context.Context, in RegisterInput) (*storage.User, error) {
	hash, err := security.HashPassword(in.Password, m.argon)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := m.store.CreateUser(ctx, storage.NewUser{
		Username:           in.Username,
		Email:              in.Email,
		FullName:           in.FullName,
		PasswordHash:       hash,
		AvatarURL:          in.AvatarURL,
		AvatarPublicID:     in.AvatarPublicID,
		CoverImageURL:      in.CoverImageURL,
		CoverImagePublicID: in.CoverImagePublicID,
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login verifies the password and starts a fresh session: a new token pair is
// minted and the refresh slot overwritten, invalidating any previous session.
func (m *Manager) Login(ctx context.Context, identifier, password string) (*storage.User, TokenPair, error) {
	user, err := m.store.GetUserByUsernameOrEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, TokenPair{}, ErrNotFound
		}
		return nil, TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		// Corrupted stored digest. Fatal for this record, not a user error.
		m.logger.Error("credential digest unusable", "user_id", user.ID, "error", err)
		return nil, TokenPair{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, TokenPair{}, ErrInvalidCredentials
	}

	pair, err := m.issuePair(user)
	if err != nil {
		return nil, TokenPair{}, err
	}
	if err := m.store.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, TokenPair{}, fmt.Errorf("persist refresh token: %w", err)
	}
	return user, pair, nil
}

// Refresh rotates the session. The presented token must verify as
// refresh-purpose and must equal the stored slot; the compare-and-swap in the
// store guarantees that of two concurrent refreshes with the same token,
// exactly one succeeds. Every failure mode collapses to ErrUnauthorized.
func (m *Manager) Refresh(ctx context.Context, presented string) (TokenPair, error) {
	claims, err := m.tokens.Verify(presented, security.PurposeRefresh)
	if err != nil {
		m.logger.Debug("refresh token rejected", "reason", err)
		return TokenPair{}, ErrUnauthorized
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return TokenPair{}, ErrUnauthorized
	}

	user, err := m.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return TokenPair{}, ErrUnauthorized
		}
		return TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}

	pair, err := m.issuePair(user)
	if err != nil {
		return TokenPair{}, err
	}

	if err := m.store.RotateRefreshToken(ctx, user.ID, presented, pair.RefreshToken); err != nil {
		if errors.Is(err, storage.ErrRefreshTokenMismatch) {
			// Expired slot or replay of an already-rotated token.
			m.logger.Warn("refresh token reuse detected", "user_id", user.ID)
			return TokenPair{}, ErrUnauthorized
		}
		return TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
	}
	return pair, nil
}

// Logout clears the refresh slot. Previously issued refresh tokens for the
// account become permanently unusable even before their natural expiry.
func (m *Manager) Logout(ctx context.Context, userID uuid.UUID) error {
	if err := m.store.ClearRefreshToken(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

// ChangePassword re-verifies the old password before storing the new hash.
// It deliberately leaves the refresh slot and outstanding access tokens
// untouched; they age out on their own schedule.
func (m *Manager) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	user, err := m.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	ok, err := security.VerifyPassword(oldPassword, user.PasswordHash)
	if err != nil {
		m.logger.Error("credential digest unusable", "user_id", user.ID, "error", err)
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return ErrInvalidCredentials
	}

	hash, err := security.HashPassword(newPassword, m.argon)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := m.store.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("store password hash: %w", err)
	}
	return nil
}

func (m *Manager) issuePair(user *storage.User) (TokenPair, error) {
	access, err := m.tokens.IssueAccessToken(user.ID.String(), user.Username)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := m.tokens.IssueRefreshToken(user.ID.String())
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
