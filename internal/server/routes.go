package server

import (
	"github.com/ctxeco/backend/internal/server/middleware"
	"github.com/ctxeco/backend/internal/server/routes"
	"github.com/ctxeco/backend/pkg/common"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Document routes
	apiRoutes.POST("/documents", routes.UploadDocumentHandler)
	apiRoutes.GET("/documents", routes.GetDocumentsHandler)
	apiRoutes.GET("/documents/:id", routes.GetDocumentHandler)
	apiRoutes.DELETE("/documents/:id", routes.DeleteDocumentHandler)
	apiRoutes.POST("/documents/:id/reclassify", routes.ReclassifyDocumentHandler)

	// Search routes
	apiRoutes.POST("/search", routes.SearchHandler)

	// Graph routes
	apiRoutes.GET("/graph/query", routes.QueryGraphHandler)
	apiRoutes.GET("/graph/stats", routes.GetGraphStatsHandler)

	// Connector routes
	apiRoutes.GET("/connectors/available", routes.GetAvailableConnectorsHandler)
	apiRoutes.GET("/connectors", routes.GetConnectorsHandler)
	apiRoutes.POST("/connectors", routes.CreateConnectorHandler, middleware.RequireRole(common.RoleAdmin))
	apiRoutes.DELETE("/connectors/:id", routes.DeleteConnectorHandler, middleware.RequireRole(common.RoleAdmin))
	apiRoutes.POST("/connectors/:id/test", routes.TestConnectorHandler, middleware.RequireRole(common.RoleAdmin))
	apiRoutes.POST("/connectors/:id/sync", routes.SyncConnectorHandler, middleware.RequireRole(common.RoleAdmin))
}
