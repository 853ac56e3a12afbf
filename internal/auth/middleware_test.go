package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kanhaiya5613/Backend/internal/config"
	"github.com/kanhaiya5613/Backend/internal/security"
	"github.com/kanhaiya5613/Backend/internal/storage"
)

type fakeLoader struct {
	users map[uuid.UUID]*storage.User
}

func (f *fakeLoader) GetUserByID(ctx context.Context, id uuid.UUID) (*storage.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return u, nil
}

func newTestIssuer() *security.TokenIssuer {
	return security.NewTokenIssuer(
		config.TokenConfig{Secret: []byte("access-secret"), TTL: 15 * time.Minute},
		config.TokenConfig{Secret: []byte("refresh-secret"), TTL: time.Hour},
		"videotube-test",
	)
}

func setupRouter(t *testing.T, issuer *security.TokenIssuer, loader PrincipalLoader) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", Middleware(issuer, loader), func(c *gin.Context) {
		user, ok := Principal(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no principal"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"username": user.Username})
	})
	return router
}

func TestMiddlewareBearerHeader(t *testing.T) {
	issuer := newTestIssuer()
	user := &storage.User{ID: uuid.New(), Username: "alice"}
	loader := &fakeLoader{users: map[uuid.UUID]*storage.User{user.ID: user}}
	router := setupRouter(t, issuer, loader)

	token, err := issuer.IssueAccessToken(user.ID.String(), user.Username)
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestMiddlewareCookieFallback(t *testing.T) {
	issuer := newTestIssuer()
	user := &storage.User{ID: uuid.New(), Username: "alice"}
	loader := &fakeLoader{users: map[uuid.UUID]*storage.User{user.ID: user}}
	router := setupRouter(t, issuer, loader)

	token, err := issuer.IssueAccessToken(user.ID.String(), user.Username)
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 via cookie, got %d", w.Code)
	}
}

func TestMiddlewareMissingToken(t *testing.T) {
	issuer := newTestIssuer()
	router := setupRouter(t, issuer, &fakeLoader{users: map[uuid.UUID]*storage.User{}})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestMiddlewareRejectsRefreshToken(t *testing.T) {
	issuer := newTestIssuer()
	user := &storage.User{ID: uuid.New(), Username: "alice"}
	loader := &fakeLoader{users: map[uuid.UUID]*storage.User{user.ID: user}}
	router := setupRouter(t, issuer, loader)

	// well-formed, unexpired, but refresh-purpose
	refresh, err := issuer.IssueRefreshToken(user.ID.String())
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+refresh)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for refresh-purpose token, got %d", w.Code)
	}
}

func TestMiddlewareUnknownAccount(t *testing.T) {
	issuer := newTestIssuer()
	router := setupRouter(t, issuer, &fakeLoader{users: map[uuid.UUID]*storage.User{}})

	token, err := issuer.IssueAccessToken(uuid.NewString(), "ghost")
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown account, got %d", w.Code)
	}
}

func TestExtractBearer(t *testing.T) {
	cases := map[string]string{
		"":               "",
		"Bearer abc":     "abc",
		"bearer abc":     "abc",
		"Basic abc":      "",
		"Bearer":         "",
		"Bearer  spaced": "spaced",
	}
	for header, want := range cases {
		if got := ExtractBearer(header); got != want {
			t.Fatalf("ExtractBearer(%q) = %q, want %q", header, got, want)
		}
	}
}
