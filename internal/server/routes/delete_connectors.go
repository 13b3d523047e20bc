package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ctxeco/backend/internal/queue"
	"github.com/ctxeco/backend/internal/server/middleware"
	"github.com/ctxeco/backend/internal/storage"
	"github.com/ctxeco/backend/pkg/audit"
	"github.com/ctxeco/backend/pkg/common"
	"github.com/ctxeco/backend/pkg/logger"
)

// DeleteConnectorHandler removes a connector configuration and the
// staged objects from its past syncs. Documents already ingested
// through it stay in place.
func DeleteConnectorHandler(c echo.Context) error {
	type deleteConnectorResponse struct {
		Message string `json:"message"`
	}

	id := c.Param("id")

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, deleteConnectorResponse{
			Message: "Unauthorized",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	conn, err := app.Store.GetConnector(ctx, *user, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return c.JSON(http.StatusNotFound, deleteConnectorResponse{
				Message: "Connector not found",
			})
		}
		logger.Error("[Routes][DeleteConnectorHandler] Failed to load connector", "id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, deleteConnectorResponse{
			Message: "Internal server error",
		})
	}

	if err := app.Store.DeleteConnector(ctx, id); err != nil {
		logger.Error("[Routes][DeleteConnectorHandler] Failed to delete connector", "id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, deleteConnectorResponse{
			Message: "Internal server error",
		})
	}

	if err := storage.DeleteFolder(ctx, app.S3, queue.SyncPrefix(id)); err != nil {
		logger.Warn("[Routes][DeleteConnectorHandler] Failed to delete staged objects",
			"id", id, "err", err)
	}

	app.Auditor.Record(ctx, *user, audit.Event{
		Type:         audit.ResourceDelete,
		ResourceType: "connector",
		ResourceID:   id,
		Details: map[string]any{
			"name": conn.Name,
			"kind": conn.Kind,
		},
		IPAddress: c.RealIP(),
	})
	logger.Info("[Routes][DeleteConnectorHandler] Connector deleted", "id", id, "name", conn.Name)

	return c.JSON(http.StatusOK, deleteConnectorResponse{
		Message: "Connector deleted successfully",
	})
}
