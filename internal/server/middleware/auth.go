package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/ctxeco/backend/pkg/audit"
	"github.com/ctxeco/backend/pkg/common"
)

func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		cc := c.(*AppContext)
		app := cc.App

		// Master API Key bypass
		if app.MasterAPIKey != "" && app.MasterTenantID != "" && token == app.MasterAPIKey {
			cc.User = &common.SecurityContext{
				UserID:   common.SystemOwnerID,
				TenantID: app.MasterTenantID,
				Roles:    []common.Role{common.RoleAdmin},
			}
			return next(c)
		}

		// Parse JWT token
		k := *app.Key
		parsed, err := jwt.Parse(token, k.Keyfunc)
		if err != nil || !parsed.Valid {
			recordAuthFailure(cc, "invalid token")
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			recordAuthFailure(cc, "unexpected claims format")
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		sub, _ := claims["sub"].(string)
		tenant, _ := claims["tenant_id"].(string)
		if sub == "" || tenant == "" {
			recordAuthFailure(cc, "missing subject or tenant claim")
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		user := &common.SecurityContext{
			UserID:   sub,
			TenantID: tenant,
		}

		if rolesClaim, ok := claims["roles"].([]any); ok {
			for _, r := range rolesClaim {
				if roleStr, ok := r.(string); ok {
					user.Roles = append(user.Roles, common.Role(roleStr))
				}
			}
		}
		if len(user.Roles) == 0 {
			user.Roles = []common.Role{common.RoleViewer}
		}

		if groupsClaim, ok := claims["groups"].([]any); ok {
			for _, g := range groupsClaim {
				if groupStr, ok := g.(string); ok {
					user.Groups = append(user.Groups, groupStr)
				}
			}
		}

		if project, ok := claims["project_id"].(string); ok && project != "" {
			user.ProjectID = &project
		}

		cc.User = user
		return next(c)
	}
}

func recordAuthFailure(cc *AppContext, reason string) {
	cc.App.Auditor.Record(cc.Request().Context(), common.SecurityContext{}, audit.Event{
		Type:      audit.AuthFailure,
		Outcome:   audit.OutcomeDenied,
		Details:   map[string]any{"reason": reason},
		IPAddress: cc.RealIP(),
	})
}
