package routes

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ctxeco/backend/internal/server/middleware"
	"github.com/ctxeco/backend/pkg/common"
	"github.com/ctxeco/backend/pkg/logger"
	"github.com/ctxeco/backend/pkg/store"
)

// GetDocumentsHandler lists the documents visible to the caller.
func GetDocumentsHandler(c echo.Context) error {
	type getDocumentsParams struct {
		DataClass string `query:"data_class"`
		Limit     int    `query:"limit"`
		Offset    int    `query:"offset"`
	}

	type getDocumentsResponse struct {
		Message   string            `json:"message,omitempty"`
		Documents []common.Document `json:"documents"`
		Total     int64             `json:"total"`
	}

	data := new(getDocumentsParams)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, getDocumentsResponse{
			Message: "Invalid request body",
		})
	}

	if data.DataClass != "" && !common.DataClass(data.DataClass).Valid() {
		return c.JSON(http.StatusBadRequest, getDocumentsResponse{
			Message: fmt.Sprintf("Invalid data_class %q", data.DataClass),
		})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, getDocumentsResponse{
			Message: "Unauthorized",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	docs, total, err := app.Store.ListDocuments(ctx, *user, store.DocumentFilter{
		DataClass: common.DataClass(data.DataClass),
		Limit:     data.Limit,
		Offset:    data.Offset,
	})
	if err != nil {
		logger.Error("[Routes][GetDocumentsHandler] Failed to list documents", "err", err)
		return c.JSON(http.StatusInternalServerError, getDocumentsResponse{
			Message: "Internal server error",
		})
	}
	if docs == nil {
		docs = []common.Document{}
	}

	return c.JSON(http.StatusOK, getDocumentsResponse{
		Documents: docs,
		Total:     total,
	})
}

// GetDocumentHandler returns one document. Documents outside the
// caller's access scope look identical to missing ones.
func GetDocumentHandler(c echo.Context) error {
	type getDocumentResponse struct {
		Message  string           `json:"message,omitempty"`
		Document *common.Document `json:"document,omitempty"`
	}

	id := c.Param("id")

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, getDocumentResponse{
			Message: "Unauthorized",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	doc, err := app.Store.GetDocument(ctx, *user, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return c.JSON(http.StatusNotFound, getDocumentResponse{
				Message: "Document not found",
			})
		}
		logger.Error("[Routes][GetDocumentHandler] Failed to load document", "id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, getDocumentResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, getDocumentResponse{Document: doc})
}
