package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/srmaas/errorreport/internal/config"
	"github.com/srmaas/errorreport/internal/model"
	"github.com/srmaas/errorreport/internal/storage"
	"github.com/srmaas/errorreport/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func whoAmI(authn Authenticator, role Role) *gin.Engine {
	r := gin.New()
	r.GET("/whoami", authn.Require(role), func(c *gin.Context) {
		user, err := authn.CurrentUser(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			return
		}
		c.JSON(http.StatusOK, user)
	})
	return r
}

func TestNewSelectsOfflineAndSeedsIdentities(t *testing.T) {
	store := storage.New(testutil.NewDB(t))
	cfg := &config.Config{OfflineMode: true, AppEnv: config.EnvDevelopment}

	authn, err := New(context.Background(), cfg, store, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, ModeOffline, authn.Mode())

	for _, id := range []string{model.OfflineUserID, model.OfflineAdminID} {
		user, err := store.GetUser(context.Background(), id)
		require.NoError(t, err)
		require.NotNil(t, user, id)
	}
}

func TestNewSelectsOIDC(t *testing.T) {
	store := storage.New(testutil.NewDB(t))
	cfg := &config.Config{OfflineMode: false, OIDCIssuerURL: "https://id.example"}

	authn, err := New(context.Background(), cfg, store, NewSessionStore(store.DB()), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, ModeOIDC, authn.Mode())
}

func TestOfflineRoles(t *testing.T) {
	store := storage.New(testutil.NewDB(t))
	offline := NewOffline(store, zap.NewNop())
	require.NoError(t, offline.EnsureIdentities(context.Background()))

	tests := []struct {
		role     Role
		expected string
		name     string
	}{
		{RoleReporter, model.OfflineUserID, "오프라인"},
		{RoleAdmin, model.OfflineAdminID, "관리자"},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		whoAmI(offline, tt.role).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/whoami", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var user model.User
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
		assert.Equal(t, tt.expected, user.ID)
		assert.Equal(t, tt.name, user.FirstName)
	}
}

func TestSessionStoreLifecycle(t *testing.T) {
	db := testutil.NewDB(t)
	now := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	sessions := NewSessionStore(db).WithClock(func() time.Time { return now })
	ctx := context.Background()

	sid, err := sessions.Create(ctx, &model.SessionData{UserID: "sub-1", ExpiresAt: 123}, time.Hour)
	require.NoError(t, err)

	data, err := sessions.Get(ctx, sid)
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, "sub-1", data.UserID)

	data.AccessToken = "new-token"
	require.NoError(t, sessions.Save(ctx, sid, data))
	data, err = sessions.Get(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, "new-token", data.AccessToken)

	_, err = sessions.Create(ctx, &model.SessionData{UserID: "sub-2"}, 3*time.Hour)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	expired, err := sessions.Get(ctx, sid)
	require.NoError(t, err)
	assert.Nil(t, expired)

	count, err := sessions.CountExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	purged, err := sessions.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)

	require.NoError(t, sessions.Delete(ctx, "missing"))
}

func TestSessionCookieRoundTrip(t *testing.T) {
	value, err := SignSessionCookie("abc", "secret", time.Hour)
	require.NoError(t, err)

	sid, err := ParseSessionCookie(value, "secret")
	require.NoError(t, err)
	assert.Equal(t, "abc", sid)

	_, err = ParseSessionCookie(value, "other-secret")
	assert.Error(t, err)

	expired, err := SignSessionCookie("abc", "secret", -time.Minute)
	require.NoError(t, err)
	_, err = ParseSessionCookie(expired, "secret")
	assert.Error(t, err)
}
