package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ctxeco/backend/internal/server/middleware"
	"github.com/ctxeco/backend/internal/storage"
	"github.com/ctxeco/backend/pkg/audit"
	"github.com/ctxeco/backend/pkg/common"
	"github.com/ctxeco/backend/pkg/logger"
	"github.com/ctxeco/backend/pkg/rap"
)

// DeleteDocumentHandler removes a document, its chunks and its stored
// object. Graph contributions from the document stay in place.
func DeleteDocumentHandler(c echo.Context) error {
	type deleteDocumentResponse struct {
		Message string `json:"message"`
	}

	id := c.Param("id")

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, deleteDocumentResponse{
			Message: "Unauthorized",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	doc, err := app.Store.GetDocument(ctx, *user, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return c.JSON(http.StatusNotFound, deleteDocumentResponse{
				Message: "Document not found",
			})
		}
		logger.Error("[Routes][DeleteDocumentHandler] Failed to load document", "id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, deleteDocumentResponse{
			Message: "Internal server error",
		})
	}

	if !rap.CanModify(*user, doc.Ownership) {
		app.Auditor.Record(ctx, *user, audit.Event{
			Type:         audit.AccessDenied,
			Outcome:      audit.OutcomeDenied,
			ResourceType: "document",
			ResourceID:   id,
			IPAddress:    c.RealIP(),
		})
		return c.JSON(http.StatusForbidden, deleteDocumentResponse{
			Message: "Forbidden",
		})
	}

	if err := app.Store.DeleteDocument(ctx, id); err != nil {
		logger.Error("[Routes][DeleteDocumentHandler] Failed to delete document", "id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, deleteDocumentResponse{
			Message: "Internal server error",
		})
	}

	if doc.StorageKey != "" {
		if err := storage.DeleteFile(ctx, app.S3, doc.StorageKey); err != nil {
			logger.Warn("[Routes][DeleteDocumentHandler] Failed to delete stored object",
				"key", doc.StorageKey, "err", err)
		}
	}

	app.Auditor.Record(ctx, *user, audit.Event{
		Type:         audit.ResourceDelete,
		ResourceType: "document",
		ResourceID:   id,
		Details: map[string]any{
			"filename": doc.Filename,
		},
		IPAddress: c.RealIP(),
	})
	logger.Info("[Routes][DeleteDocumentHandler] Document deleted", "id", id, "filename", doc.Filename)

	return c.JSON(http.StatusOK, deleteDocumentResponse{
		Message: "Document deleted successfully",
	})
}
