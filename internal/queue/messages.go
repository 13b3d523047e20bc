package queue

import (
	"encoding/json"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
)

// SyncMessage asks the worker to sync one connector. TriggeredBy
// records who requested it for the audit trail; scheduled syncs use the
// system owner.
type SyncMessage struct {
	ConnectorID string `json:"connector_id"`
	TenantID    string `json:"tenant_id"`
	TriggeredBy string `json:"triggered_by"`
}

// IngestMessage points the worker at one object a sync already parked
// in the object store. Connector configuration is re-read at processing
// time so class overrides and ownership follow the connector's current
// settings, not the ones at sync time.
type IngestMessage struct {
	ConnectorID string `json:"connector_id"`
	TenantID    string `json:"tenant_id"`
	StorageKey  string `json:"storage_key"`
	Filename    string `json:"filename"`
	MimeType    string `json:"mime_type,omitempty"`
}

// PublishSync queues one sync request.
func PublishSync(ch *amqp091.Channel, msg SyncMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal sync message: %w", err)
	}
	return Publish(ch, SyncQueue, data)
}

// PublishIngest queues one fetched object for ingestion.
func PublishIngest(ch *amqp091.Channel, msg IngestMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal ingest message: %w", err)
	}
	return Publish(ch, IngestQueue, data)
}
