package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ctxeco/backend/internal/server/middleware"
	"github.com/ctxeco/backend/internal/timing"
	"github.com/ctxeco/backend/pkg/audit"
	"github.com/ctxeco/backend/pkg/common"
	"github.com/ctxeco/backend/pkg/logger"
)

// QueryGraphHandler walks the knowledge graph outward from the nodes
// matching the entity parameter and returns the visited subgraph.
func QueryGraphHandler(c echo.Context) error {
	type queryGraphParams struct {
		Entity string `query:"entity" validate:"required"`
		Depth  int    `query:"depth"`
		Limit  int    `query:"limit"`
	}

	type queryGraphResponse struct {
		Message string             `json:"message,omitempty"`
		Nodes   []common.GraphNode `json:"nodes"`
		Edges   []common.GraphEdge `json:"edges"`
	}

	data := new(queryGraphParams)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, queryGraphResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, queryGraphResponse{
			Message: "Invalid request body",
		})
	}
	if data.Depth <= 0 {
		data.Depth = 2
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, queryGraphResponse{
			Message: "Unauthorized",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	sub, err := app.Builder.Query(ctx, *user, data.Entity, data.Depth, data.Limit)
	if err != nil {
		logger.Error("[Routes][QueryGraphHandler] Graph query failed",
			"entity", data.Entity, "err", err)
		return c.JSON(http.StatusInternalServerError, queryGraphResponse{
			Message: "Internal server error",
		})
	}

	app.Auditor.Record(ctx, *user, audit.Event{
		Type:         audit.GraphQuery,
		ResourceType: "graph",
		Details: map[string]any{
			"entity": data.Entity,
			"depth":  data.Depth,
			"nodes":  len(sub.Nodes),
			"edges":  len(sub.Edges),
		},
		IPAddress: c.RealIP(),
	})

	return c.JSON(http.StatusOK, queryGraphResponse{
		Nodes: sub.Nodes,
		Edges: sub.Edges,
	})
}

// GetGraphStatsHandler reports tenant-wide graph totals together with
// the average ingestion stage durations.
func GetGraphStatsHandler(c echo.Context) error {
	type graphStatsResponse struct {
		Message       string             `json:"message,omitempty"`
		TotalNodes    int64              `json:"total_nodes"`
		TotalEdges    int64              `json:"total_edges"`
		EntityTypes   map[string]int64   `json:"entity_types"`
		StageAverages map[string]float64 `json:"stage_averages_ms"`
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, graphStatsResponse{
			Message: "Unauthorized",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	stats, err := app.Builder.Stats(ctx, *user)
	if err != nil {
		logger.Error("[Routes][GetGraphStatsHandler] Failed to load graph stats", "err", err)
		return c.JSON(http.StatusInternalServerError, graphStatsResponse{
			Message: "Internal server error",
		})
	}

	averages, err := timing.Averages(ctx, app.Store, user.TenantID)
	if err != nil {
		logger.Warn("[Routes][GetGraphStatsHandler] Failed to load stage averages", "err", err)
		averages = map[string]float64{}
	}

	return c.JSON(http.StatusOK, graphStatsResponse{
		TotalNodes:    stats.Nodes,
		TotalEdges:    stats.Edges,
		EntityTypes:   stats.EntityTypes,
		StageAverages: averages,
	})
}
