package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func whoami() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := FromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(c.Username))
	})
}

func TestAuthenticate_Cookie(t *testing.T) {
	i, _ := newTestIssuer(t)
	tok, err := i.Issue("alice", "student", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: tok})
	rec := httptest.NewRecorder()
	i.Authenticate(whoami()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", rec.Body.String())
}

func TestAuthenticate_BearerHeader(t *testing.T) {
	i, _ := newTestIssuer(t)
	tok, err := i.Issue("bob", "teacher", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	i.Authenticate(whoami()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bob", rec.Body.String())
}

func TestAuthenticate_Rejects(t *testing.T) {
	i, _ := newTestIssuer(t)

	rec := httptest.NewRecorder()
	i.Authenticate(whoami()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Not authenticated")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "forged"})
	rec = httptest.NewRecorder()
	i.Authenticate(whoami()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid token")
}

func TestRequireRole(t *testing.T) {
	i, _ := newTestIssuer(t)
	h := i.Authenticate(RequireRole("admin")(whoami()))

	for role, want := range map[string]int{"admin": http.StatusOK, "student": http.StatusForbidden} {
		tok, err := i.Issue("u", role, time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: tok})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, role)
	}
}

func TestSetCookie_Contract(t *testing.T) {
	rec := httptest.NewRecorder()
	SetCookie(rec, "tok", RememberLifetime)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "auth_token", c.Name)
	assert.Equal(t, "tok", c.Value)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, 30*24*60*60, c.MaxAge)

	rec = httptest.NewRecorder()
	SetCookie(rec, "tok", DefaultLifetime)
	assert.Equal(t, 2*60*60, rec.Result().Cookies()[0].MaxAge)
}

func TestClearCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	ClearCookie(rec)

	c := rec.Result().Cookies()[0]
	assert.Equal(t, "auth_token", c.Name)
	assert.Empty(t, c.Value)
	assert.True(t, c.MaxAge < 0)
}
