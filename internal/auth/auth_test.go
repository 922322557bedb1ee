package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/activityladdr/laddr/internal/models"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/markbates/goth"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestFromGothUser(t *testing.T) {
	expires := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)
	user, identity := fromGothUser(goth.User{
		UserID: "1234", FirstName: "Ada", LastName: "L", Location: "Perth",
		AccessToken: "a", RefreshToken: "r", ExpiresAt: expires,
	})

	require.Equal(t, "strava_1234", user.Username)
	require.Equal(t, "Perth", user.HomeCity)
	require.Equal(t, models.StartingBucks, user.Bucks)
	require.Equal(t, models.ProviderStrava, identity.Provider)
	require.Equal(t, "1234", identity.ProviderUserID)
	require.True(t, identity.TokenExpiry.Equal(expires))

	other, _ := fromGothUser(goth.User{UserID: "9", NickName: "runner9", Location: "Hobart"})
	require.Equal(t, "runner9", other.Username)
	require.Equal(t, "Brisbane", other.HomeCity)
}

func newRouter() *gin.Engine {
	r := gin.New()
	r.Use(sessions.Sessions("laddr_session", cookie.NewStore([]byte("test-secret"))))
	r.GET("/login-as/:role", func(c *gin.Context) {
		s := sessions.Default(c)
		s.Set(SessionUserID, uint(7))
		s.Set(SessionRole, c.Param("role"))
		_ = s.Save()
		c.Status(http.StatusNoContent)
	})

	api := r.Group("/", RequireAuth())
	api.GET("/me", func(c *gin.Context) {
		id, ok := UserID(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "ok": ok})
	})
	api.GET("/admin", RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func login(t *testing.T, r *gin.Engine, role string) []*http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login-as/"+role, nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	return w.Result().Cookies()
}

func get(r *gin.Engine, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	r := newRouter()

	w := get(r, "/me", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), `"kind":"unauthenticated"`)

	w = get(r, "/me", login(t, r, models.RoleUser))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"id":7,"ok":true}`, w.Body.String())
}

func TestRequireAdmin(t *testing.T) {
	r := newRouter()

	require.Equal(t, http.StatusForbidden, get(r, "/admin", login(t, r, models.RoleUser)).Code)
	require.Equal(t, http.StatusOK, get(r, "/admin", login(t, r, models.RoleAdmin)).Code)
}

func TestNewStateStore(t *testing.T) {
	local := newStateStore("secret", false)
	require.False(t, local.Options.Secure)
	require.Equal(t, oauthStateMaxAge, local.Options.MaxAge)
	require.Equal(t, http.SameSiteLaxMode, local.Options.SameSite)

	require.True(t, newStateStore("secret", true).Options.Secure)
}
