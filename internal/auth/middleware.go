// Package auth is the single enforcement point for inbound requests: it
// extracts a bearer token, verifies it as access-purpose, loads the account
// and attaches it to the request context as the principal.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kanhaiya5613/Backend/internal/security"
	"github.com/kanhaiya5613/Backend/internal/storage"
)

// AccessTokenCookie and RefreshTokenCookie are the transport artifact names
// shared with browser clients.
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

const principalKey = "auth.principal"

// PrincipalLoader resolves a verified identity to the stored account.
type PrincipalLoader interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*storage.User, error)
}

// Middleware rejects the request before any downstream handler runs unless a
// valid access token maps to an existing account. Every internal failure kind
// collapses to the same 401 body.
func Middleware(tokens *security.TokenIssuer, store PrincipalLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c)
		if token == "" {
			unauthorized(c)
			return
		}

		claims, err := tokens.Verify(token, security.PurposeAccess)
		if err != nil {
			unauthorized(c)
			return
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			unauthorized(c)
			return
		}

		user, err := store.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			unauthorized(c)
			return
		}

		c.Set(principalKey, user)
		c.Next()
	}
}

// TokenFromRequest prefers the Authorization header and falls back to the
// accessToken cookie.
func TokenFromRequest(c *gin.Context) string {
	if token := ExtractBearer(c.GetHeader("Authorization")); token != "" {
		return token
	}
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil {
		return cookie
	}
	return ""
}

func ExtractBearer(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Principal returns the account attached by Middleware.
func Principal(c *gin.Context) (*storage.User, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*storage.User)
	return user, ok
}

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "unauthorized"})
}
