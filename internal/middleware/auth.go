package middleware

import (
	"net/http"

	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
)

const (
	// SessionName is the cookie the session store writes.
	SessionName = "adonde_session"

	sessionUserKey = "user_id"

	// UserContextKey is where the guard stores the resolved user id.
	UserContextKey = "user_id"
)

// RequireUser guards API routes. It resolves the signed-in user id from
// the session cookie and stores it on the echo context; requests without
// a valid session get 401.
func RequireUser() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess, err := session.Get(SessionName, c)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
			}
			userID, _ := sess.Values[sessionUserKey].(string)
			if userID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			c.Set(UserContextKey, userID)
			return next(c)
		}
	}
}

// CurrentUserID returns the user id the guard resolved, or "".
func CurrentUserID(c echo.Context) string {
	id, _ := c.Get(UserContextKey).(string)
	return id
}

// SaveUserSession writes the user id into the session cookie.
func SaveUserSession(c echo.Context, userID string) error {
	sess, err := session.Get(SessionName, c)
	if err != nil {
		return err
	}
	sess.Values[sessionUserKey] = userID
	return sess.Save(c.Request(), c.Response())
}

// ClearUserSession invalidates the session cookie.
func ClearUserSession(c echo.Context) error {
	sess, err := session.Get(SessionName, c)
	if err != nil {
		return err
	}
	sess.Options.MaxAge = -1
	delete(sess.Values, sessionUserKey)
	return sess.Save(c.Request(), c.Response())
}
