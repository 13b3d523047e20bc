package routes

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ctxeco/backend/internal/ingest"
	"github.com/ctxeco/backend/internal/server/middleware"
	"github.com/ctxeco/backend/internal/storage"
	"github.com/ctxeco/backend/internal/util"
	"github.com/ctxeco/backend/pkg/audit"
	"github.com/ctxeco/backend/pkg/common"
	"github.com/ctxeco/backend/pkg/logger"
	"github.com/ctxeco/backend/pkg/rap"
)

// UploadDocumentHandler ingests one multipart upload through the full
// pipeline and answers synchronously.
func UploadDocumentHandler(c echo.Context) error {
	type uploadDocumentBody struct {
		ForceClass  string `form:"force_class"`
		AccessLevel string `form:"access_level"`
		ACLGroups   string `form:"acl_groups"`
		ProjectID   string `form:"project_id"`
	}

	type uploadDocumentResponse struct {
		Message            string                       `json:"message"`
		DocumentID         string                       `json:"document_id,omitempty"`
		ChunksProcessed    int                          `json:"chunks_processed"`
		DegradedExtraction bool                         `json:"degraded_extraction"`
		Classification     *common.ClassificationResult `json:"classification,omitempty"`
	}

	data := new(uploadDocumentBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, uploadDocumentResponse{
			Message: "Invalid request body",
		})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, uploadDocumentResponse{
			Message: "Unauthorized",
		})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, uploadDocumentResponse{
			Message: "No file provided",
		})
	}

	force := common.DataClass(data.ForceClass)
	if data.ForceClass != "" && !force.Valid() {
		return c.JSON(http.StatusBadRequest, uploadDocumentResponse{
			Message: fmt.Sprintf("Invalid force_class %q", data.ForceClass),
		})
	}

	level := common.AccessLevel(data.AccessLevel)
	if data.AccessLevel != "" && !level.Valid() {
		return c.JSON(http.StatusBadRequest, uploadDocumentResponse{
			Message: fmt.Sprintf("Invalid access_level %q", data.AccessLevel),
		})
	}

	src, err := fileHeader.Open()
	if err != nil {
		logger.Error("[Routes][UploadDocumentHandler] Failed to open upload", "err", err)
		return c.JSON(http.StatusInternalServerError, uploadDocumentResponse{
			Message: "Internal server error",
		})
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		logger.Error("[Routes][UploadDocumentHandler] Failed to read upload", "err", err)
		return c.JSON(http.StatusInternalServerError, uploadDocumentResponse{
			Message: "Internal server error",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	fileID, err := util.NewID()
	if err != nil {
		logger.Error("[Routes][UploadDocumentHandler] Failed to generate file ID", "err", err)
		return c.JSON(http.StatusInternalServerError, uploadDocumentResponse{
			Message: "Internal server error",
		})
	}
	key, err := storage.PutFile(ctx, app.S3, "uploads/"+user.TenantID,
		fileHeader.Filename, fileID, bytes.NewReader(content))
	if err != nil {
		logger.Error("[Routes][UploadDocumentHandler] Failed to store upload",
			"filename", fileHeader.Filename, "err", err)
		return c.JSON(http.StatusInternalServerError, uploadDocumentResponse{
			Message: "Internal server error",
		})
	}

	var groups []string
	for _, g := range strings.Split(data.ACLGroups, ",") {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}
	own := common.Ownership{
		AccessLevel: level,
		ACLGroups:   groups,
	}
	if data.ProjectID != "" {
		own.ProjectID = &data.ProjectID
	}

	res, err := app.Ingestor.Run(ctx, *user, ingest.Request{
		Filename:   fileHeader.Filename,
		Data:       content,
		MimeType:   fileHeader.Header.Get("Content-Type"),
		StorageKey: key,
		ForceClass: force,
		Ownership:  own,
		ClientIP:   c.RealIP(),
	})
	if err != nil {
		if errors.Is(err, common.ErrValidation) {
			return c.JSON(http.StatusBadRequest, uploadDocumentResponse{
				Message: err.Error(),
			})
		}
		logger.Error("[Routes][UploadDocumentHandler] Ingestion failed",
			"filename", fileHeader.Filename, "err", err)
		return c.JSON(http.StatusInternalServerError, uploadDocumentResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, uploadDocumentResponse{
		Message:            "Document ingested successfully",
		DocumentID:         res.DocumentID,
		ChunksProcessed:    res.ChunksProcessed,
		DegradedExtraction: res.Degraded,
		Classification:     &res.Classification,
	})
}

// ReclassifyDocumentHandler overrides the stored classification of one
// document. Existing chunks keep their text and embeddings; only the
// classification columns change.
func ReclassifyDocumentHandler(c echo.Context) error {
	type reclassifyDocumentBody struct {
		ForceClass string `json:"force_class" validate:"required"`
	}

	type reclassifyDocumentResponse struct {
		Message        string                       `json:"message"`
		DocumentID     string                       `json:"document_id,omitempty"`
		Classification *common.ClassificationResult `json:"classification,omitempty"`
	}

	id := c.Param("id")

	data := new(reclassifyDocumentBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, reclassifyDocumentResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, reclassifyDocumentResponse{
			Message: "Invalid request body",
		})
	}

	force := common.DataClass(data.ForceClass)
	if !force.Valid() {
		return c.JSON(http.StatusBadRequest, reclassifyDocumentResponse{
			Message: fmt.Sprintf("Invalid force_class %q", data.ForceClass),
		})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, reclassifyDocumentResponse{
			Message: "Unauthorized",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	doc, err := app.Store.GetDocument(ctx, *user, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return c.JSON(http.StatusNotFound, reclassifyDocumentResponse{
				Message: "Document not found",
			})
		}
		logger.Error("[Routes][ReclassifyDocumentHandler] Failed to load document", "id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, reclassifyDocumentResponse{
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
		return c.JSON(http.StatusForbidden, reclassifyDocumentResponse{
			Message: "Forbidden",
		})
	}

	cls := app.Classifier.ClassifyForced(doc.Filename, force)
	if err := app.Store.UpdateDocumentClassification(ctx, id, cls); err != nil {
		logger.Error("[Routes][ReclassifyDocumentHandler] Failed to update classification", "id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, reclassifyDocumentResponse{
			Message: "Internal server error",
		})
	}

	app.Auditor.Record(ctx, *user, audit.Event{
		Type:         audit.ResourceUpdate,
		Action:       "reclassify",
		ResourceType: "document",
		ResourceID:   id,
		Details: map[string]any{
			"from": string(doc.Classification.DataClass),
			"to":   string(cls.DataClass),
		},
		IPAddress: c.RealIP(),
	})
	logger.Info("[Routes][ReclassifyDocumentHandler] Document reclassified",
		"id", id, "from", doc.Classification.DataClass, "to", cls.DataClass)

	return c.JSON(http.StatusOK, reclassifyDocumentResponse{
		Message:        "Document reclassified successfully",
		DocumentID:     id,
		Classification: &cls,
	})
}
