package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ctxeco/backend/internal/server/middleware"
	"github.com/ctxeco/backend/pkg/common"
	"github.com/ctxeco/backend/pkg/connector"
	"github.com/ctxeco/backend/pkg/logger"
)

// GetAvailableConnectorsHandler lists every registered connector kind
// with its metadata.
func GetAvailableConnectorsHandler(c echo.Context) error {
	type availableConnectorsResponse struct {
		Connectors []connector.Metadata `json:"connectors"`
	}

	return c.JSON(http.StatusOK, availableConnectorsResponse{
		Connectors: connector.Available(),
	})
}

// GetConnectorsHandler lists the connectors visible to the caller.
func GetConnectorsHandler(c echo.Context) error {
	type getConnectorsResponse struct {
		Message    string             `json:"message,omitempty"`
		Connectors []common.Connector `json:"connectors"`
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, getConnectorsResponse{
			Message: "Unauthorized",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	conns, err := app.Store.ListConnectors(ctx, *user)
	if err != nil {
		logger.Error("[Routes][GetConnectorsHandler] Failed to list connectors", "err", err)
		return c.JSON(http.StatusInternalServerError, getConnectorsResponse{
			Message: "Internal server error",
		})
	}
	if conns == nil {
		conns = []common.Connector{}
	}

	return c.JSON(http.StatusOK, getConnectorsResponse{Connectors: conns})
}
