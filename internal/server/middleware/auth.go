package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Identity headers set by the auth gateway in front of the API.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUsername = "X-Username"
)

func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := strings.TrimSpace(c.Request().Header.Get(HeaderUserID))
		if id == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		}

		c.(*AppContext).User = &AppUser{
			ID:       id,
			Username: strings.TrimSpace(c.Request().Header.Get(HeaderUsername)),
		}
		return next(c)
	}
}
