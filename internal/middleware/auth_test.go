package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionEcho() *echo.Echo {
	e := echo.New()
	e.Use(session.Middleware(sessions.NewCookieStore([]byte("test-secret"))))
	return e
}

func TestRequireUserRejectsAnonymous(t *testing.T) {
	e := newSessionEcho()
	e.GET("/api/me", func(c echo.Context) error {
		return c.String(http.StatusOK, CurrentUserID(c))
	}, RequireUser())

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireUserResolvesSessionUser(t *testing.T) {
	e := newSessionEcho()
	e.POST("/login", func(c echo.Context) error {
		if err := SaveUserSession(c, "user:alice"); err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	})
	e.GET("/api/me", func(c echo.Context) error {
		return c.String(http.StatusOK, CurrentUserID(c))
	}, RequireUser())

	loginReq := httptest.NewRequest(http.MethodPost, "/login", nil)
	loginRec := httptest.NewRecorder()
	e.ServeHTTP(loginRec, loginReq)
	require.Equal(t, http.StatusNoContent, loginRec.Code)
	cookies := loginRec.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user:alice", rec.Body.String())
}

func TestClearUserSessionSignsOut(t *testing.T) {
	e := newSessionEcho()
	e.POST("/login", func(c echo.Context) error {
		require.NoError(t, SaveUserSession(c, "user:alice"))
		return c.NoContent(http.StatusNoContent)
	})
	e.POST("/logout", func(c echo.Context) error {
		require.NoError(t, ClearUserSession(c))
		return c.NoContent(http.StatusNoContent)
	})
	e.GET("/api/me", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, RequireUser())

	loginRec := httptest.NewRecorder()
	e.ServeHTTP(loginRec, httptest.NewRequest(http.MethodPost, "/login", nil))
	cookies := loginRec.Result().Cookies()

	logoutReq := httptest.NewRequest(http.MethodPost, "/logout", nil)
	for _, ck := range cookies {
		logoutReq.AddCookie(ck)
	}
	logoutRec := httptest.NewRecorder()
	e.ServeHTTP(logoutRec, logoutReq)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	for _, ck := range logoutRec.Result().Cookies() {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
