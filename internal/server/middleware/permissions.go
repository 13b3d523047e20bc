package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ctxeco/backend/pkg/audit"
	"github.com/ctxeco/backend/pkg/common"
)

func IsAdmin(user *common.SecurityContext) bool {
	if user == nil {
		return false
	}
	return user.HasRole(common.RoleAdmin)
}

// RequireRole lets the request through when the caller holds at least
// one of the given roles. Denials land in the audit trail.
func RequireRole(roles ...common.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := c.(*AppContext)
			user := cc.User
			if user == nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			}

			for _, role := range roles {
				if user.HasRole(role) {
					return next(c)
				}
			}

			cc.App.Auditor.Record(cc.Request().Context(), *user, audit.Event{
				Type:    audit.AccessDenied,
				Outcome: audit.OutcomeDenied,
				Details: map[string]any{
					"path":   c.Path(),
					"method": c.Request().Method,
				},
				IPAddress: cc.RealIP(),
			})
			return c.JSON(http.StatusForbidden, map[string]string{"error": "Forbidden"})
		}
	}
}
