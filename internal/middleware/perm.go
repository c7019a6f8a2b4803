package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hospmaint/os-manager/internal/perm"
)

// RequireAction aborts with 403 unless the authenticated user's role is
// granted the given action. It assumes JWTAuth already stored the role
// under "role"; a missing or unknown role is denied.
func RequireAction(action perm.Action) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("role").(string)
			if !perm.Allowed(perm.Role(role), action) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
