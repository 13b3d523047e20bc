package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ctxeco/backend/internal/ingest"
	"github.com/ctxeco/backend/internal/storage"
	"github.com/ctxeco/backend/internal/util"
	"github.com/ctxeco/backend/pkg/common"
	"github.com/ctxeco/backend/pkg/logger"
	"github.com/ctxeco/backend/pkg/store"
)

// ProcessIngestMessage runs one staged object through the pipeline.
// Objects that cannot ever ingest, such as unparseable files, are
// dropped with a warning; transient failures bubble up into the retry
// cycle.
func ProcessIngestMessage(
	ctx context.Context,
	st store.Storage,
	s3Client *awss3.Client,
	ing *ingest.Ingestor,
	body string,
) error {
	var msg IngestMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		logger.Error("[Queue][Ingest] Dropping unreadable message", "err", err)
		return nil
	}
	if msg.TenantID == "" || msg.StorageKey == "" || msg.Filename == "" {
		logger.Error("[Queue][Ingest] Dropping incomplete message",
			"storage_key", msg.StorageKey)
		return nil
	}

	sec := systemContext(msg.TenantID)

	conn, err := st.GetConnector(ctx, sec, msg.ConnectorID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			logger.Warn("[Queue][Ingest] Connector vanished, dropping object",
				"connector_id", msg.ConnectorID,
				"storage_key", msg.StorageKey,
			)
			return nil
		}
		return fmt.Errorf("failed to load connector: %w", err)
	}

	data, err := util.RetryWithContext(ctx, 3, func(ctx context.Context) ([]byte, error) {
		return storage.GetFile(ctx, s3Client, msg.StorageKey)
	})
	if err != nil {
		return fmt.Errorf("failed to load staged object: %w", err)
	}

	own := conn.Ownership
	own.UserID = common.SystemOwnerID

	res, err := ing.Run(ctx, sec, ingest.Request{
		Filename:         msg.Filename,
		Data:             data,
		MimeType:         msg.MimeType,
		StorageKey:       msg.StorageKey,
		SourceConnector:  conn.Name,
		ForceClass:       conn.DefaultClass,
		SensitivityFloor: conn.SensitivityLevel,
		Ownership:        own,
	})
	if err != nil {
		if errors.Is(err, common.ErrValidation) || errors.Is(err, common.ErrExtraction) {
			logger.Warn("[Queue][Ingest] Object cannot be ingested, dropping",
				"storage_key", msg.StorageKey,
				"err", err,
			)
			return nil
		}
		return fmt.Errorf("failed to ingest %s: %w", msg.Filename, err)
	}

	logger.Info("[Queue][Ingest] Object ingested",
		"document_id", res.DocumentID,
		"connector_id", conn.ID,
		"chunks", res.ChunksProcessed,
	)
	return nil
}
