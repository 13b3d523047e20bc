package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"time"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rabbitmq/amqp091-go"

	"github.com/ctxeco/backend/internal/storage"
	"github.com/ctxeco/backend/internal/util"
	"github.com/ctxeco/backend/pkg/audit"
	"github.com/ctxeco/backend/pkg/common"
	"github.com/ctxeco/backend/pkg/connector"
	"github.com/ctxeco/backend/pkg/leaselock"
	"github.com/ctxeco/backend/pkg/logger"
	"github.com/ctxeco/backend/pkg/store"
)

// One progress line per this many handled items.
const syncProgressEvery = 25

// systemContext is the identity background work runs under. Tenant
// scoped like any caller; the admin role lets it read the connectors it
// processes.
func systemContext(tenantID string) common.SecurityContext {
	return common.SecurityContext{
		UserID:   common.SystemOwnerID,
		TenantID: tenantID,
		Roles:    []common.Role{common.RoleAdmin},
	}
}

// ProcessSyncMessage syncs one connector: connect, list, fetch each
// item into the object store, and queue an ingest message per staged
// object. A lease serializes syncs of the same connector across
// workers; a sync finding the lease busy is dropped, not retried, since
// the running sync covers it.
func ProcessSyncMessage(
	ctx context.Context,
	st store.Storage,
	s3Client *awss3.Client,
	locks *leaselock.Client,
	rec *audit.Recorder,
	ch *amqp091.Channel,
	body string,
) error {
	var msg SyncMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		logger.Error("[Queue][Sync] Dropping unreadable message", "err", err)
		return nil
	}
	if msg.ConnectorID == "" || msg.TenantID == "" {
		logger.Error("[Queue][Sync] Dropping message without connector or tenant")
		return nil
	}

	sec := systemContext(msg.TenantID)
	conn, err := st.GetConnector(ctx, sec, msg.ConnectorID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			logger.Warn("[Queue][Sync] Connector vanished, dropping sync",
				"connector_id", msg.ConnectorID)
			return nil
		}
		return fmt.Errorf("failed to load connector: %w", err)
	}
	if conn.Status == common.ConnectorPaused {
		logger.Info("[Queue][Sync] Connector paused, skipping", "connector_id", conn.ID)
		return nil
	}

	err = locks.WithLease(ctx, leaselock.SyncKey(conn.ID), leaselock.Options{TokenPrefix: "sync:"},
		func(ctx context.Context) error {
			return runSync(ctx, st, s3Client, rec, ch, sec, conn, msg)
		})
	if errors.Is(err, leaselock.ErrBusy) {
		logger.Info("[Queue][Sync] Sync already running, skipping", "connector_id", conn.ID)
		return nil
	}
	return err
}

func runSync(
	ctx context.Context,
	st store.Storage,
	s3Client *awss3.Client,
	rec *audit.Recorder,
	ch *amqp091.Channel,
	sec common.SecurityContext,
	conn *common.Connector,
	msg SyncMessage,
) error {
	logger.Info("[Queue][Sync] Starting connector sync",
		"connector_id", conn.ID,
		"kind", conn.Kind,
	)

	if err := st.UpdateConnectorStatus(ctx, conn.ID, common.ConnectorIndexing, ""); err != nil {
		return fmt.Errorf("failed to mark connector indexing: %w", err)
	}

	src, err := connector.New(conn.Kind, conn.Config)
	if err != nil {
		permanent := errors.Is(err, connector.ErrNotImplemented) || errors.Is(err, common.ErrValidation)
		return failSync(ctx, st, rec, sec, conn, msg, err, permanent)
	}
	if err := src.Connect(ctx); err != nil {
		return failSync(ctx, st, rec, sec, conn, msg, fmt.Errorf("failed to connect: %w", err), false)
	}
	defer src.Disconnect(ctx)

	items, err := src.List(ctx)
	if err != nil {
		return failSync(ctx, st, rec, sec, conn, msg, fmt.Errorf("failed to list source: %w", err), false)
	}

	counts := util.SyncCounts{Total: len(items)}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch {
		case !syncableItem(conn.Kind, item.Name):
			counts.Skipped++
		default:
			if err := stageItem(ctx, s3Client, ch, src, conn, msg, item); err != nil {
				logger.Warn("[Queue][Sync] Failed to stage item",
					"connector_id", conn.ID,
					"item", item.Name,
					"err", err,
				)
				counts.Failed++
			} else {
				counts.Staged++
			}
		}
		if d := counts.Done(); d%syncProgressEvery == 0 && d < counts.Total {
			logger.Info("[Queue][Sync] Sync progress",
				"connector_id", conn.ID,
				"progress", counts,
				"percent", counts.Percentage(),
			)
		}
	}

	if err := st.MarkConnectorSynced(ctx, conn.ID, counts.Staged, time.Now()); err != nil {
		return fmt.Errorf("failed to record sync result: %w", err)
	}

	logger.Info("[Queue][Sync] Connector sync completed",
		"connector_id", conn.ID,
		"staged", counts.Staged,
		"skipped", counts.Skipped,
		"failed", counts.Failed,
	)
	rec.Record(ctx, sec, audit.Event{
		Type:         audit.ConnectorSync,
		ResourceType: "connector",
		ResourceID:   conn.ID,
		Details: map[string]any{
			"staged":       counts.Staged,
			"skipped":      counts.Skipped,
			"failed":       counts.Failed,
			"triggered_by": msg.TriggeredBy,
		},
	})
	return nil
}

// failSync marks the connector errored and records the failure.
// Permanent causes are acked so the message is not retried; transient
// ones bubble up into the retry cycle.
func failSync(
	ctx context.Context,
	st store.Storage,
	rec *audit.Recorder,
	sec common.SecurityContext,
	conn *common.Connector,
	msg SyncMessage,
	cause error,
	permanent bool,
) error {
	logger.Error("[Queue][Sync] Connector sync failed",
		"connector_id", conn.ID,
		"err", cause,
	)
	if err := st.UpdateConnectorStatus(ctx, conn.ID, common.ConnectorError, cause.Error()); err != nil {
		logger.Error("[Queue][Sync] Failed to record connector error",
			"connector_id", conn.ID,
			"err", err,
		)
	}
	rec.Record(ctx, sec, audit.Event{
		Type:         audit.ConnectorError,
		Outcome:      audit.OutcomeFailure,
		ResourceType: "connector",
		ResourceID:   conn.ID,
		Details: map[string]any{
			"error":        cause.Error(),
			"triggered_by": msg.TriggeredBy,
		},
	})
	if permanent {
		return nil
	}
	return cause
}

// syncableItem filters a listing against the catalog extensions of the
// connector kind. Kinds without a declared extension list sync
// everything.
func syncableItem(kind, name string) bool {
	meta, ok := connector.MetadataFor(kind)
	if !ok || len(meta.SupportedExtensions) == 0 {
		return true
	}
	ext := strings.ToLower(path.Ext(name))
	return slices.Contains(meta.SupportedExtensions, ext)
}

// stageItem fetches one item and parks it under the connector's sync
// prefix, then queues it for ingestion. The staging key is derived from
// the item ID so re-syncing an unchanged source overwrites in place
// instead of accumulating copies.
func stageItem(
	ctx context.Context,
	s3Client *awss3.Client,
	ch *amqp091.Channel,
	src connector.Source,
	conn *common.Connector,
	msg SyncMessage,
	item connector.Item,
) error {
	name, rc, err := src.Fetch(ctx, item.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("failed to read: %w", err)
	}

	keyBase := strings.TrimSuffix(item.ID, path.Ext(item.ID))
	key, err := storage.PutFile(ctx, s3Client, SyncPrefix(conn.ID), name, keyBase, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to store object: %w", err)
	}

	return PublishIngest(ch, IngestMessage{
		ConnectorID: conn.ID,
		TenantID:    msg.TenantID,
		StorageKey:  key,
		Filename:    name,
	})
}

// SyncPrefix is where a connector's staged objects live. Deleting the
// connector deletes this prefix.
func SyncPrefix(connectorID string) string {
	return "sync/" + connectorID
}
