package shared_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhub/taskhub/internal/shared"
	_ "github.com/taskhub/taskhub/testing"
)

func newManager(t *testing.T) (*shared.SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return shared.NewSessionManager(client, "test_session", time.Hour, false), mr
}

func TestSessionRoundTrip(t *testing.T) {
	sm, _ := newManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	assert.False(t, sess.Authenticated())

	sess.SetUser(42)
	res := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, res, sess))

	cookies := res.Result().Cookies()
	require.NotEmpty(t, cookies)

	again := httptest.NewRequest(http.MethodGet, "/", nil)
	again.AddCookie(cookies[0])
	loaded, err := sm.Load(ctx, again)
	require.NoError(t, err)
	assert.True(t, loaded.Authenticated())
	assert.EqualValues(t, 42, loaded.User())
}

func TestSessionExpiry(t *testing.T) {
	sm, mr := newManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sess.SetUser(42)
	res := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, res, sess))

	mr.FastForward(2 * time.Hour)

	again := httptest.NewRequest(http.MethodGet, "/", nil)
	again.AddCookie(res.Result().Cookies()[0])
	loaded, err := sm.Load(ctx, again)
	require.NoError(t, err)
	assert.False(t, loaded.Authenticated(), "expired session must come back empty")
}

func TestSessionDestroy(t *testing.T) {
	sm, _ := newManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sess.SetUser(42)
	res := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, res, sess))
	cookie := res.Result().Cookies()[0]

	sm.Destroy(sess)
	cleared := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, cleared, sess))

	again := httptest.NewRequest(http.MethodGet, "/", nil)
	again.AddCookie(cookie)
	loaded, err := sm.Load(ctx, again)
	require.NoError(t, err)
	assert.False(t, loaded.Authenticated())
}
