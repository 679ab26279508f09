package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskhub/taskhub/internal/auth"
	"github.com/taskhub/taskhub/internal/authz"
	"github.com/taskhub/taskhub/internal/shared"
	_ "github.com/taskhub/taskhub/testing"
)

type stubRepo struct {
	user *auth.User
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func newAuthHandler(t *testing.T, repo auth.Repository) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", time.Hour, false)
	handler := auth.NewHandler(testLogger(), auth.NewService(repo), sessionManager)
	return handler, sessionManager
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func activeUser(t *testing.T, password string) *auth.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	return &auth.User{
		ID:           1,
		Name:         "Test User",
		Email:        "user@taskhub.local",
		PasswordHash: string(hashed),
		IsActive:     true,
	}
}

func doLogin(t *testing.T, handler *auth.Handler, sessions *shared.SessionManager, body string) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	sess, err := sessions.Load(context.Background(), req)
	require.NoError(t, err)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	res := httptest.NewRecorder()
	router := chi.NewRouter()
	router.Route("/auth", handler.MountRoutes)
	router.ServeHTTP(res, req)
	return res, sess
}

func TestLoginSuccess(t *testing.T) {
	user := activeUser(t, "correct-password")
	handler, sessions := newAuthHandler(t, &stubRepo{user: user})

	res, sess := doLogin(t, handler, sessions, `{"email":"user@taskhub.local","password":"correct-password"}`)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.True(t, sess.Authenticated())
	assert.EqualValues(t, 1, sess.User())

	var payload struct {
		User struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	assert.Equal(t, "user@taskhub.local", payload.User.Email)
}

func TestLoginWrongPassword(t *testing.T) {
	user := activeUser(t, "correct-password")
	handler, sessions := newAuthHandler(t, &stubRepo{user: user})

	res, sess := doLogin(t, handler, sessions, `{"email":"user@taskhub.local","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.False(t, sess.Authenticated())
}

func TestLoginUnknownEmail(t *testing.T) {
	handler, sessions := newAuthHandler(t, &stubRepo{})
	res, _ := doLogin(t, handler, sessions, `{"email":"ghost@taskhub.local","password":"whatever"}`)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	user := activeUser(t, "correct-password")
	user.IsActive = false
	handler, sessions := newAuthHandler(t, &stubRepo{user: user})

	res, _ := doLogin(t, handler, sessions, `{"email":"user@taskhub.local","password":"correct-password"}`)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginValidation(t *testing.T) {
	handler, sessions := newAuthHandler(t, &stubRepo{})
	res, _ := doLogin(t, handler, sessions, `{"email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestLogoutDestroysSession(t *testing.T) {
	user := activeUser(t, "correct-password")
	handler, sessions := newAuthHandler(t, &stubRepo{user: user})

	_, sess := doLogin(t, handler, sessions, `{"email":"user@taskhub.local","password":"correct-password"}`)
	require.True(t, sess.Authenticated())

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: sessions.CookieName(), Value: sess.ID})
	loaded, err := sessions.Load(context.Background(), req)
	require.NoError(t, err)
	require.True(t, loaded.Authenticated())
	req = req.WithContext(shared.ContextWithSession(req.Context(), loaded))

	res := httptest.NewRecorder()
	router := chi.NewRouter()
	router.Route("/auth", handler.MountRoutes)
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	// The session is gone from the store.
	again := httptest.NewRequest(http.MethodGet, "/auth/user", nil)
	again.AddCookie(&http.Cookie{Name: sessions.CookieName(), Value: sess.ID})
	reloaded, err := sessions.Load(context.Background(), again)
	require.NoError(t, err)
	assert.False(t, reloaded.Authenticated())
}

func TestCurrentUserRequiresPrincipal(t *testing.T) {
	handler, _ := newAuthHandler(t, &stubRepo{})

	req := httptest.NewRequest(http.MethodGet, "/auth/user", nil)
	res := httptest.NewRecorder()
	router := chi.NewRouter()
	router.Route("/auth", handler.MountRoutes)
	router.ServeHTTP(res, req)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestCurrentUserWithPrincipal(t *testing.T) {
	user := activeUser(t, "pw")
	handler, _ := newAuthHandler(t, &stubRepo{user: user})

	p := authz.NewPrincipal(1, nil, []string{shared.RoleStaff}, []string{shared.PermTasksView})
	req := httptest.NewRequest(http.MethodGet, "/auth/user", nil)
	req = req.WithContext(authz.ContextWithPrincipal(req.Context(), p))
	res := httptest.NewRecorder()
	router := chi.NewRouter()
	router.Route("/auth", handler.MountRoutes)
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	var payload struct {
		User struct {
			ID    int64    `json:"id"`
			Roles []string `json:"roles"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	assert.EqualValues(t, 1, payload.User.ID)
	assert.Equal(t, []string{shared.RoleStaff}, payload.User.Roles)
}

func TestPermissionsEndpoint(t *testing.T) {
	handler, _ := newAuthHandler(t, &stubRepo{})

	p := authz.NewPrincipal(1, nil, []string{shared.RoleStaff},
		[]string{shared.PermTasksUpdate, shared.PermTasksView})
	req := httptest.NewRequest(http.MethodGet, "/auth/permissions", nil)
	req = req.WithContext(authz.ContextWithPrincipal(req.Context(), p))
	res := httptest.NewRecorder()
	router := chi.NewRouter()
	router.Route("/auth", handler.MountRoutes)
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	var payload struct {
		Roles       []string `json:"roles"`
		Permissions []string `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	assert.Equal(t, []string{shared.RoleStaff}, payload.Roles)
	assert.Equal(t, []string{shared.PermTasksUpdate, shared.PermTasksView}, payload.Permissions)
}
