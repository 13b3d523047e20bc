package routes

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ctxeco/backend/internal/queue"
	"github.com/ctxeco/backend/internal/server/middleware"
	"github.com/ctxeco/backend/internal/util"
	"github.com/ctxeco/backend/pkg/common"
	"github.com/ctxeco/backend/pkg/connector"
	"github.com/ctxeco/backend/pkg/logger"
)

// CreateConnectorHandler registers a new connector configuration.
// Documents fetched through it later inherit its default class,
// sensitivity floor and ownership.
func CreateConnectorHandler(c echo.Context) error {
	type createConnectorBody struct {
		Name             string         `json:"name" validate:"required"`
		Kind             string         `json:"kind" validate:"required"`
		Config           map[string]any `json:"config"`
		DefaultClass     string         `json:"default_class"`
		SensitivityLevel string         `json:"sensitivity_level"`
		AccessLevel      string         `json:"access_level"`
		ACLGroups        []string       `json:"acl_groups"`
		ProjectID        string         `json:"project_id"`
	}

	type createConnectorResponse struct {
		Message   string            `json:"message"`
		Connector *common.Connector `json:"connector,omitempty"`
	}

	data := new(createConnectorBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, createConnectorResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, createConnectorResponse{
			Message: "Invalid request body",
		})
	}

	if !connector.Valid(data.Kind) {
		return c.JSON(http.StatusBadRequest, createConnectorResponse{
			Message: fmt.Sprintf("Unknown connector kind %q", data.Kind),
		})
	}

	defaultClass := common.DataClass(data.DefaultClass)
	if data.DefaultClass != "" && !defaultClass.Valid() {
		return c.JSON(http.StatusBadRequest, createConnectorResponse{
			Message: fmt.Sprintf("Invalid default_class %q", data.DefaultClass),
		})
	}

	sensitivity := common.SensitivityLevel(data.SensitivityLevel)
	switch sensitivity {
	case "":
		sensitivity = common.SensitivityLow
	case common.SensitivityLow, common.SensitivityModerate, common.SensitivityHigh:
	default:
		return c.JSON(http.StatusBadRequest, createConnectorResponse{
			Message: fmt.Sprintf("Invalid sensitivity_level %q", data.SensitivityLevel),
		})
	}

	// Synced corpora are tenant-shared unless the creator narrows them.
	level := common.AccessLevel(data.AccessLevel)
	if data.AccessLevel == "" {
		level = common.AccessTenant
	} else if !level.Valid() {
		return c.JSON(http.StatusBadRequest, createConnectorResponse{
			Message: fmt.Sprintf("Invalid access_level %q", data.AccessLevel),
		})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, createConnectorResponse{
			Message: "Unauthorized",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	id, err := util.NewID()
	if err != nil {
		logger.Error("[Routes][CreateConnectorHandler] Failed to generate ID", "err", err)
		return c.JSON(http.StatusInternalServerError, createConnectorResponse{
			Message: "Internal server error",
		})
	}

	own := common.Ownership{
		TenantID:    user.TenantID,
		UserID:      user.UserID,
		AccessLevel: level,
		ACLGroups:   data.ACLGroups,
	}
	if data.ProjectID != "" {
		own.ProjectID = &data.ProjectID
	}

	conn := &common.Connector{
		ID:               id,
		Name:             data.Name,
		Kind:             data.Kind,
		Status:           common.ConnectorPending,
		Config:           data.Config,
		DefaultClass:     defaultClass,
		SensitivityLevel: sensitivity,
		Ownership:        own,
	}
	if err := app.Store.SaveConnector(ctx, conn); err != nil {
		logger.Error("[Routes][CreateConnectorHandler] Failed to save connector",
			"kind", data.Kind, "err", err)
		return c.JSON(http.StatusInternalServerError, createConnectorResponse{
			Message: "Internal server error",
		})
	}

	logger.Info("[Routes][CreateConnectorHandler] Connector created",
		"id", id, "kind", data.Kind, "name", data.Name)

	return c.JSON(http.StatusOK, createConnectorResponse{
		Message:   "Connector created successfully",
		Connector: conn,
	})
}

// TestConnectorHandler probes a connector's source and records the
// result in the connector status.
func TestConnectorHandler(c echo.Context) error {
	type testConnectorResponse struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}

	id := c.Param("id")

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, testConnectorResponse{
			Message: "Unauthorized",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	conn, err := app.Store.GetConnector(ctx, *user, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return c.JSON(http.StatusNotFound, testConnectorResponse{
				Message: "Connector not found",
			})
		}
		logger.Error("[Routes][TestConnectorHandler] Failed to load connector", "id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, testConnectorResponse{
			Message: "Internal server error",
		})
	}

	src, err := connector.New(conn.Kind, conn.Config)
	if err != nil {
		return c.JSON(http.StatusOK, testConnectorResponse{
			Success: false,
			Message: err.Error(),
		})
	}

	if err := src.Connect(ctx); err != nil {
		if uerr := app.Store.UpdateConnectorStatus(ctx, id, common.ConnectorError, err.Error()); uerr != nil {
			logger.Warn("[Routes][TestConnectorHandler] Failed to update status", "id", id, "err", uerr)
		}
		return c.JSON(http.StatusOK, testConnectorResponse{
			Success: false,
			Message: err.Error(),
		})
	}
	defer src.Disconnect(ctx)

	if err := app.Store.UpdateConnectorStatus(ctx, id, common.ConnectorHealthy, ""); err != nil {
		logger.Warn("[Routes][TestConnectorHandler] Failed to update status", "id", id, "err", err)
	}

	return c.JSON(http.StatusOK, testConnectorResponse{
		Success: true,
		Message: "Connection established",
	})
}

// SyncConnectorHandler queues a sync job for the worker. The sync
// itself runs asynchronously under a connector lease.
func SyncConnectorHandler(c echo.Context) error {
	type syncConnectorResponse struct {
		Message     string `json:"message"`
		ConnectorID string `json:"connector_id,omitempty"`
	}

	id := c.Param("id")

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, syncConnectorResponse{
			Message: "Unauthorized",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	conn, err := app.Store.GetConnector(ctx, *user, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return c.JSON(http.StatusNotFound, syncConnectorResponse{
				Message: "Connector not found",
			})
		}
		logger.Error("[Routes][SyncConnectorHandler] Failed to load connector", "id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, syncConnectorResponse{
			Message: "Internal server error",
		})
	}

	if conn.Status == common.ConnectorPaused {
		return c.JSON(http.StatusBadRequest, syncConnectorResponse{
			Message: "Connector is paused",
		})
	}

	err = queue.PublishSync(app.Queue, queue.SyncMessage{
		ConnectorID: id,
		TenantID:    user.TenantID,
		TriggeredBy: user.UserID,
	})
	if err != nil {
		logger.Error("[Routes][SyncConnectorHandler] Failed to queue sync", "id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, syncConnectorResponse{
			Message: "Internal server error",
		})
	}

	logger.Info("[Routes][SyncConnectorHandler] Sync queued", "id", id, "name", conn.Name)

	return c.JSON(http.StatusOK, syncConnectorResponse{
		Message:     "Sync queued",
		ConnectorID: id,
	})
}
