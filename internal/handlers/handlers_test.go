package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kanhaiya5613/Backend/internal/auth"
	"github.com/kanhaiya5613/Backend/internal/config"
	"github.com/kanhaiya5613/Backend/internal/media"
	"github.com/kanhaiya5613/Backend/internal/rate"
	"github.com/kanhaiya5613/Backend/internal/security"
	"github.com/kanhaiya5613/Backend/internal/session"
	"github.com/kanhaiya5613/Backend/internal/storage"
)

var testArgon = config.Argon2Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

// fakeStore backs both the session manager and the profile handlers.
type fakeStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*storage.User
	profiles map[string]*storage.ChannelProfile
	history  map[uuid.UUID][]storage.WatchEntry
	videos   map[uuid.UUID]bool
	watched  map[uuid.UUID][]uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[uuid.UUID]*storage.User{},
		profiles: map[string]*storage.ChannelProfile{},
		history:  map[uuid.UUID][]storage.WatchEntry{},
		videos:   map[uuid.UUID]bool{},
		watched:  map[uuid.UUID][]uuid.UUID{},
	}
}

func (f *fakeStore) CreateUser(ctx context.Context, nu storage.NewUser) (*storage.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == nu.Username || u.Email == nu.Email {
			return nil, storage.ErrDuplicate
		}
	}
	user := &storage.User{
		ID:                 uuid.New(),
		Username:           nu.Username,
		Email:              nu.Email,
		FullName:           nu.FullName,
		PasswordHash:       nu.PasswordHash,
		AvatarURL:          nu.AvatarURL,
		AvatarPublicID:     nu.AvatarPublicID,
		CoverImageURL:      nu.CoverImageURL,
		CoverImagePublicID: nu.CoverImagePublicID,
		CreatedAt:          time.Now(),
	}
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeStore) GetUserByUsernameOrEmail(ctx context.Context, identifier string) (*storage.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == identifier || u.Email == identifier {
			clone := *u
			return &clone, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) GetUserByID(ctx context.Context, id uuid.UUID) (*storage.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (f *fakeStore) SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.RefreshToken = &token
	return nil
}

func (f *fakeStore) RotateRefreshToken(ctx context.Context, id uuid.UUID, presented, next string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok || u.RefreshToken == nil || *u.RefreshToken != presented {
		return storage.ErrRefreshTokenMismatch
	}
	u.RefreshToken = &next
	return nil
}

func (f *fakeStore) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.RefreshToken = nil
	return nil
}

func (f *fakeStore) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeStore) UpdateAccountDetails(ctx context.Context, id uuid.UUID, fullName, email string) (*storage.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	for _, other := range f.users {
		if other.ID != id && other.Email == email {
			return nil, storage.ErrDuplicate
		}
	}
	u.FullName = fullName
	u.Email = email
	clone := *u
	return &clone, nil
}

func (f *fakeStore) UpdateAvatar(ctx context.Context, id uuid.UUID, url, publicID string) (*storage.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	u.AvatarURL = url
	u.AvatarPublicID = publicID
	clone := *u
	return &clone, nil
}

func (f *fakeStore) UpdateCoverImage(ctx context.Context, id uuid.UUID, url, publicID string) (*storage.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	u.CoverImageURL = url
	u.CoverImagePublicID = publicID
	clone := *u
	return &clone, nil
}

func (f *fakeStore) GetChannelProfile(ctx context.Context, username string, viewerID uuid.UUID) (*storage.ChannelProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[username]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (f *fakeStore) GetWatchHistory(ctx context.Context, userID uuid.UUID, limit int) ([]storage.WatchEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history[userID], nil
}

func (f *fakeStore) RecordWatch(ctx context.Context, userID, videoID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.videos[videoID] {
		return storage.ErrNotFound
	}
	f.watched[userID] = append(f.watched[userID], videoID)
	return nil
}

type fakeMedia struct {
	mu      sync.Mutex
	n       int
	fail    bool
	deleted []string
}

func (f *fakeMedia) Upload(ctx context.Context, localPath string) (media.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return media.Asset{}, media.ErrUploadFailed
	}
	f.n++
	id := fmt.Sprintf("asset-%d", f.n)
	return media.Asset{URL: "https://cdn.test/" + id, PublicID: id}, nil
}

func (f *fakeMedia) Delete(ctx context.Context, publicID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, publicID)
	return nil
}

type env struct {
	router *gin.Engine
	store  *fakeStore
	media  *fakeMedia
	issuer *security.TokenIssuer
}

func setup(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newFakeStore()
	mediaStore := &fakeMedia{}
	issuer := security.NewTokenIssuer(
		config.TokenConfig{Secret: []byte("access-secret"), TTL: 15 * time.Minute},
		config.TokenConfig{Secret: []byte("refresh-secret"), TTL: 10 * 24 * time.Hour},
		"videotube-test",
	)
	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	sessions := session.NewManager(store, issuer, testArgon, logger)

	h := New(sessions, store, mediaStore, logger,
		rate.NewMemory(100, time.Minute), 15*time.Minute, 10*24*time.Hour, false)

	router := gin.New()
	h.RegisterRoutes(router, auth.Middleware(issuer, store))

	return &env{router: router, store: store, media: mediaStore, issuer: issuer}
}

func performJSON(router *gin.Engine, method, path string, body any, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for _, m := range mutate {
		m(req)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func multipartBody(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for field, name := range files {
		fw, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write([]byte("fake image bytes")); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return buf, mw.FormDataContentType()
}

func registerUser(t *testing.T, e *env, username, email, password string) userResponse {
	t.Helper()
	body, contentType := multipartBody(t,
		map[string]string{"fullName": "Test User", "email": email, "username": username, "password": password},
		map[string]string{"avatar": "avatar.png"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	var out userResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	return out
}

func login(t *testing.T, e *env, identifier, password string) authResponse {
	t.Helper()
	w := performJSON(e.router, http.MethodPost, "/api/v1/users/login", loginRequest{Username: identifier, Password: password})
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var out authResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return out
}

func TestRegisterAndLogin(t *testing.T) {
	e := setup(t)
	user := registerUser(t, e, "alice", "alice@example.com", "s3cret")
	if user.Username != "alice" {
		t.Fatalf("expected username alice, got %q", user.Username)
	}
	if user.AvatarURL == "" {
		t.Fatalf("expected avatar url in response")
	}

	out := login(t, e, "alice", "s3cret")
	if out.AccessToken == "" || out.RefreshToken == "" {
		t.Fatalf("expected token pair")
	}
	if out.User.Username != "alice" {
		t.Fatalf("expected sanitized user in login response")
	}
}

func TestRegisterMissingAvatar(t *testing.T) {
	e := setup(t)
	body, contentType := multipartBody(t,
		map[string]string{"fullName": "X", "email": "x@example.com", "username": "x", "password": "pw"},
		nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without avatar, got %d", w.Code)
	}
}

func TestRegisterDuplicateConflict(t *testing.T) {
	e := setup(t)
	registerUser(t, e, "alice", "alice@example.com", "s3cret")

	body, contentType := multipartBody(t,
		map[string]string{"fullName": "Other", "email": "alice@example.com", "username": "other", "password": "pw"},
		map[string]string{"avatar": "avatar.png"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 duplicate, got %d (%s)", w.Code, w.Body.String())
	}
	// the orphaned upload must be cleaned up
	if len(e.media.deleted) == 0 {
		t.Fatalf("expected orphaned asset deleted after conflict")
	}
}

func TestLoginDoesNotDistinguishUnknownUser(t *testing.T) {
	e := setup(t)
	registerUser(t, e, "alice", "alice@example.com", "s3cret")

	wrongPw := performJSON(e.router, http.MethodPost, "/api/v1/users/login", loginRequest{Username: "alice", Password: "bad"})
	noUser := performJSON(e.router, http.MethodPost, "/api/v1/users/login", loginRequest{Username: "ghost", Password: "bad"})

	if wrongPw.Code != http.StatusUnauthorized || noUser.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", wrongPw.Code, noUser.Code)
	}
	if wrongPw.Body.String() != noUser.Body.String() {
		t.Fatalf("login responses must be indistinguishable: %q vs %q", wrongPw.Body.String(), noUser.Body.String())
	}
}

func TestLoginSetsCookies(t *testing.T) {
	e := setup(t)
	registerUser(t, e, "alice", "alice@example.com", "s3cret")

	w := performJSON(e.router, http.MethodPost, "/api/v1/users/login", loginRequest{Username: "alice", Password: "s3cret"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	cookies := w.Result().Cookies()
	var haveAccess, haveRefresh bool
	for _, c := range cookies {
		switch c.Name {
		case auth.AccessTokenCookie:
			haveAccess = c.Value != "" && c.HttpOnly
		case auth.RefreshTokenCookie:
			haveRefresh = c.Value != "" && c.HttpOnly
		}
	}
	if !haveAccess || !haveRefresh {
		t.Fatalf("expected both auth cookies, got %v", cookies)
	}
}

func TestRefreshFromCookieAndReplay(t *testing.T) {
	e := setup(t)
	registerUser(t, e, "alice", "alice@example.com", "s3cret")
	out := login(t, e, "alice", "s3cret")

	withCookie := func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: auth.RefreshTokenCookie, Value: out.RefreshToken})
	}

	w := performJSON(e.router, http.MethodPost, "/api/v1/users/refresh-token", nil, withCookie)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var rotated tokenResponse
	if err := json.Unmarshal(w.Body.Bytes(), &rotated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rotated.RefreshToken == out.RefreshToken {
		t.Fatalf("expected rotated refresh token")
	}

	// replay of the consumed token
	w = performJSON(e.router, http.MethodPost, "/api/v1/users/refresh-token", nil, withCookie)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on replay, got %d", w.Code)
	}
}

func TestRefreshFromBody(t *testing.T) {
	e := setup(t)
	registerUser(t, e, "alice", "alice@example.com", "s3cret")
	out := login(t, e, "alice", "s3cret")

	w := performJSON(e.router, http.MethodPost, "/api/v1/users/refresh-token", refreshRequest{RefreshToken: out.RefreshToken})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 via body, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestRefreshCookieTakesPrecedenceOverBody(t *testing.T) {
	e := setup(t)
	registerUser(t, e, "alice", "alice@example.com", "s3cret")
	out := login(t, e, "alice", "s3cret")

	// valid cookie, garbage body: the cookie must win
	w := performJSON(e.router, http.MethodPost, "/api/v1/users/refresh-token",
		refreshRequest{RefreshToken: "garbage"},
		func(req *http.Request) {
			req.AddCookie(&http.Cookie{Name: auth.RefreshTokenCookie, Value: out.RefreshToken})
		})
	if w.Code != http.StatusOK {
		t.Fatalf("expected cookie to take precedence, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestRefreshMissingToken(t *testing.T) {
	e := setup(t)
	w := performJSON(e.router, http.MethodPost, "/api/v1/users/refresh-token", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	e := setup(t)
	registerUser(t, e, "alice", "alice@example.com", "s3cret")
	out := login(t, e, "alice", "s3cret")

	bearer := func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+out.AccessToken)
	}

	w := performJSON(e.router, http.MethodPost, "/api/v1/users/logout", nil, bearer)
	if w.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	// the pre-logout refresh token is dead even though it has not expired
	w = performJSON(e.router, http.MethodPost, "/api/v1/users/refresh-token", refreshRequest{RefreshToken: out.RefreshToken})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", w.Code)
	}
}

func TestChangePasswordFlow(t *testing.T) {
	e := setup(t)
	registerUser(t, e, "alice", "alice@example.com", "oldpw")
	out := login(t, e, "alice", "oldpw")

	bearer := func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+out.AccessToken)
	}

	w := performJSON(e.router, http.MethodPost, "/api/v1/users/change-password",
		changePasswordRequest{OldPassword: "wrong", NewPassword: "newpw"}, bearer)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong old password, got %d", w.Code)
	}

	w = performJSON(e.router, http.MethodPost, "/api/v1/users/change-password",
		changePasswordRequest{OldPassword: "oldpw", NewPassword: "newpw"}, bearer)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	if w := performJSON(e.router, http.MethodPost, "/api/v1/users/login", loginRequest{Username: "alice", Password: "oldpw"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected old password rejected, got %d", w.Code)
	}
	login(t, e, "alice", "newpw")
}

func TestCurrentUserRequiresGate(t *testing.T) {
	e := setup(t)
	registerUser(t, e, "alice", "alice@example.com", "s3cret")
	out := login(t, e, "alice", "s3cret")

	w := performJSON(e.router, http.MethodGet, "/api/v1/users/current-user", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	w = performJSON(e.router, http.MethodGet, "/api/v1/users/current-user", nil, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+out.AccessToken)
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var user userResponse
	if err := json.Unmarshal(w.Body.Bytes(), &user); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("expected alice, got %q", user.Username)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("passwordHash")) || bytes.Contains(w.Body.Bytes(), []byte("refreshToken")) {
		t.Fatalf("credential material leaked into response: %s", w.Body.String())
	}
}

func TestGateRejectsRefreshPurposeToken(t *testing.T) {
	e := setup(t)
	registerUser(t, e, "alice", "alice@example.com", "s3cret")
	out := login(t, e, "alice", "s3cret")

	// refresh token presented as an access token
	w := performJSON(e.router, http.MethodGet, "/api/v1/users/current-user", nil, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+out.RefreshToken)
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for refresh-purpose token, got %d", w.Code)
	}
}

func TestUpdateAccount(t *testing.T) {
	e := setup(t)
	registerUser(t, e, "alice", "alice@example.com", "s3cret")
	out := login(t, e, "alice", "s3cret")

	bearer := func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+out.AccessToken)
	}

	w := performJSON(e.router, http.MethodPatch, "/api/v1/users/update-account",
		updateAccountRequest{FullName: "Alice Liddell", Email: "liddell@example.com"}, bearer)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var user userResponse
	if err := json.Unmarshal(w.Body.Bytes(), &user); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if user.FullName != "Alice Liddell" || user.Email != "liddell@example.com" {
		t.Fatalf("unexpected update result: %+v", user)
	}
}

func TestUpdateAvatarReplacesOldAsset(t *testing.T) {
	e := setup(t)
	registerUser(t, e, "alice", "alice@example.com", "s3cret")
	out := login(t, e, "alice", "s3cret")

	body, contentType := multipartBody(t, nil, map[string]string{"avatar": "new.png"})
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/users/avatar", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+out.AccessToken)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	// asset-1 was the registration avatar; it must be deleted after the
	// replacement is stored
	found := false
	for _, id := range e.media.deleted {
		if id == "asset-1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected old avatar deleted, deletions: %v", e.media.deleted)
	}
}

func TestUpdateAvatarUploadFailureKeepsOldAsset(t *testing.T) {
	e := setup(t)
	registerUser(t, e, "alice", "alice@example.com", "s3cret")
	out := login(t, e, "alice", "s3cret")

	e.media.fail = true
	body, contentType := multipartBody(t, nil, map[string]string{"avatar": "new.png"})
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/users/avatar", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+out.AccessToken)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 on upload failure, got %d", w.Code)
	}
	if len(e.media.deleted) != 0 {
		t.Fatalf("old asset must not be deleted when upload fails, deletions: %v", e.media.deleted)
	}
}

func TestChannelProfile(t *testing.T) {
	e := setup(t)
	registerUser(t, e, "alice", "alice@example.com", "s3cret")
	out := login(t, e, "alice", "s3cret")

	e.store.profiles["bob"] = &storage.ChannelProfile{
		ID: uuid.New(), Username: "bob", FullName: "Bob", Email: "bob@example.com",
		SubscriberCount: 42, SubscribedToCount: 7, IsSubscribed: true,
	}

	bearer := func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+out.AccessToken)
	}

	w := performJSON(e.router, http.MethodGet, "/api/v1/users/c/bob", nil, bearer)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var profile channelProfileResponse
	if err := json.Unmarshal(w.Body.Bytes(), &profile); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if profile.SubscriberCount != 42 || !profile.IsSubscribed {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	w = performJSON(e.router, http.MethodGet, "/api/v1/users/c/ghost", nil, bearer)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown channel, got %d", w.Code)
	}
}

func TestWatchHistoryAndRecord(t *testing.T) {
	e := setup(t)
	user := registerUser(t, e, "alice", "alice@example.com", "s3cret")
	out := login(t, e, "alice", "s3cret")

	videoID := uuid.New()
	e.store.videos[videoID] = true
	e.store.history[user.ID] = []storage.WatchEntry{{
		VideoID: videoID, Title: "intro", WatchedAt: time.Now(),
		Owner: storage.OwnerSnippet{ID: uuid.New(), Username: "bob"},
	}}

	bearer := func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+out.AccessToken)
	}

	w := performJSON(e.router, http.MethodPost, "/api/v1/users/history/"+videoID.String(), nil, bearer)
	if w.Code != http.StatusOK {
		t.Fatalf("record watch: expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	w = performJSON(e.router, http.MethodPost, "/api/v1/users/history/"+uuid.NewString(), nil, bearer)
	if w.Code != http.StatusNotFound {
		t.Fatalf("record watch unknown video: expected 404, got %d", w.Code)
	}

	w = performJSON(e.router, http.MethodGet, "/api/v1/users/history", nil, bearer)
	if w.Code != http.StatusOK {
		t.Fatalf("history: expected 200, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("intro")) {
		t.Fatalf("expected history entry in response: %s", w.Body.String())
	}
}

func TestLoginRateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := newFakeStore()
	issuer := security.NewTokenIssuer(
		config.TokenConfig{Secret: []byte("a"), TTL: time.Minute},
		config.TokenConfig{Secret: []byte("r"), TTL: time.Hour},
		"videotube-test",
	)
	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	sessions := session.NewManager(store, issuer, testArgon, logger)
	h := New(sessions, store, &fakeMedia{}, logger, rate.NewMemory(2, time.Minute), time.Minute, time.Hour, false)

	router := gin.New()
	h.RegisterRoutes(router, auth.Middleware(issuer, store))

	for i := 0; i < 2; i++ {
		w := performJSON(router, http.MethodPost, "/api/v1/users/login", loginRequest{Username: "x", Password: "y"})
		if w.Code == http.StatusTooManyRequests {
			t.Fatalf("attempt %d should not be limited", i+1)
		}
	}
	w := performJSON(router, http.MethodPost, "/api/v1/users/login", loginRequest{Username: "x", Password: "y"})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}
