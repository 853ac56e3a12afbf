package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kanhaiya5613/Backend/internal/config"
)

// Purpose declares a token's role. An access token must never validate as a
// refresh token and vice versa.
type Purpose string

const (
	PurposeAccess  Purpose = "access"
	PurposeRefresh Purpose = "refresh"
)

// Verification failures, ordered from least to most trusted input: a token
// that fails an earlier check never reaches a later one. Handlers collapse
// all four to a generic unauthorized response.
var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenSignature = errors.New("token signature invalid")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenPurpose   = errors.New("token purpose mismatch")
)

type Claims struct {
	Username string  `json:"username,omitempty"`
	Purpose  Purpose `json:"purpose"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies the access/refresh pair. Each purpose is
// signed with its own secret, taken from the immutable startup config.
type TokenIssuer struct {
	access  config.TokenConfig
	refresh config.TokenConfig
	issuer  string
	now     func() time.Time
}

func NewTokenIssuer(access, refresh config.TokenConfig, issuer string) *TokenIssuer {
	return &TokenIssuer{
		access:  access,
		refresh: refresh,
		issuer:  issuer,
		now:     time.Now,
	}
}

// WithClock overrides the time source. Used by tests to mint tokens at fixed
// instants.
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	t.now = now
	return t
}

func (t *TokenIssuer) IssueAccessToken(userID, username string) (string, error) {
	return t.sign(userID, username, PurposeAccess, t.access)
}

func (t *TokenIssuer) IssueRefreshToken(userID string) (string, error) {
	return t.sign(userID, "", PurposeRefresh, t.refresh)
}

func (t *TokenIssuer) sign(userID, username string, purpose Purpose, tc config.TokenConfig) (string, error) {
	now := t.now()
	claims := Claims{
		Username: username,
		Purpose:  purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tc.TTL)),
			// Unique per mint: two tokens issued within the same second must
			// still differ, or rotation could hand back the value it replaced.
			ID: uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tc.Secret)
}

// Verify checks signature, then expiry, then purpose, and returns the claims
// only when all three hold. Library-level parse faults are reclassified into
// the package taxonomy so callers never see a raw jwt error.
func (t *TokenIssuer) Verify(tokenString string, purpose Purpose) (*Claims, error) {
	secret := t.access.Secret
	if purpose == PurposeRefresh {
		secret = t.refresh.Secret
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenSignature
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		default:
			return nil, ErrTokenMalformed
		}
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrTokenMalformed
	}
	if claims.Purpose != purpose {
		return nil, ErrTokenPurpose
	}
	return claims, nil
}
