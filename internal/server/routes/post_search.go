package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ctxeco/backend/internal/server/middleware"
	"github.com/ctxeco/backend/pkg/audit"
	"github.com/ctxeco/backend/pkg/common"
	"github.com/ctxeco/backend/pkg/logger"
	"github.com/ctxeco/backend/pkg/search"
)

// SearchHandler runs one search request across the configured
// modalities and returns the fused ranking.
func SearchHandler(c echo.Context) error {
	type searchBody struct {
		Query     string `json:"query" validate:"required"`
		Mode      string `json:"mode"`
		Limit     int    `json:"limit"`
		TimeoutMs int    `json:"timeout_ms"`
	}

	type searchErrorResponse struct {
		Message string `json:"message"`
	}

	data := new(searchBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, searchErrorResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, searchErrorResponse{
			Message: "Invalid request body",
		})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, searchErrorResponse{
			Message: "Unauthorized",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	resp, err := app.Search.Search(ctx, *user, search.Request{
		Query:     data.Query,
		Mode:      common.SearchMode(data.Mode),
		Limit:     data.Limit,
		TimeoutMs: data.TimeoutMs,
	})
	if err != nil {
		if errors.Is(err, common.ErrValidation) {
			return c.JSON(http.StatusBadRequest, searchErrorResponse{
				Message: err.Error(),
			})
		}
		logger.Error("[Routes][SearchHandler] Search failed", "query", data.Query, "err", err)
		return c.JSON(http.StatusInternalServerError, searchErrorResponse{
			Message: "Internal server error",
		})
	}

	app.Auditor.Record(ctx, *user, audit.Event{
		Type:         audit.ResourceSearch,
		ResourceType: "search",
		Details: map[string]any{
			"query":   data.Query,
			"mode":    string(resp.Mode),
			"results": resp.Total,
		},
		IPAddress: c.RealIP(),
	})

	return c.JSON(http.StatusOK, resp)
}
