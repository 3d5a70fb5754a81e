package auth

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

// userIDContextKey is where the session middleware stores the resolved user id.
const userIDContextKey = "auth.user_id"

// LoginPath is where unauthenticated browser requests are sent.
const LoginPath = "/login"

// SessionMiddleware validates the session cookie's JWT. Browser requests
// without a valid token are redirected to the login page; JSON clients get a
// 401 instead.
func SessionMiddleware(secret, cookieName string) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:  []byte(secret),
		TokenLookup: "cookie:" + cookieName,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(SessionClaims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return denySession(c)
		},
	})
}

// RequireUser checks the validated token against the session registry and
// places the resolved user id in the request context. It must run after
// SessionMiddleware.
func RequireUser(store SessionStoreInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return denySession(c)
			}
			claims, ok := token.Claims.(*SessionClaims)
			if !ok {
				return denySession(c)
			}
			userID, _, err := store.Get(c.Request().Context(), claims.ID)
			if err != nil || userID != claims.UserID {
				return denySession(c)
			}
			c.Set(userIDContextKey, claims.UserID)
			return next(c)
		}
	}
}

// UserID returns the authenticated user's id from the request context.
func UserID(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get(userIDContextKey).(uuid.UUID)
	return id, ok
}

// SetUserID places a user id in the request context. Exposed for handler tests.
func SetUserID(c echo.Context, id uuid.UUID) {
	c.Set(userIDContextKey, id)
}

func denySession(c echo.Context) error {
	accept := c.Request().Header.Get(echo.HeaderAccept)
	if strings.Contains(accept, echo.MIMEApplicationJSON) && !strings.Contains(accept, echo.MIMETextHTML) {
		return echo.NewHTTPError(http.StatusUnauthorized, "session required")
	}
	return c.Redirect(http.StatusSeeOther, LoginPath)
}
