// Package audit records the compliance audit trail. Every event is
// emitted through the structured logger and persisted best-effort; a
// failed insert is logged and never surfaces into the request path.
package audit

import (
	"context"
	"strings"

	"github.com/ctxeco/backend/internal/util"
	"github.com/ctxeco/backend/pkg/common"
	"github.com/ctxeco/backend/pkg/logger"
	"github.com/ctxeco/backend/pkg/store"
)

// EventType categorizes an auditable event.
type EventType string

const (
	AuthSuccess  EventType = "auth.success"
	AuthFailure  EventType = "auth.failure"
	AccessDenied EventType = "auth.access_denied"

	ResourceIngest EventType = "resource.ingest"
	ResourceSearch EventType = "resource.search"
	ResourceAccess EventType = "resource.access"
	ResourceUpdate EventType = "resource.update"
	ResourceDelete EventType = "resource.delete"

	GraphQuery EventType = "graph.query"
	GraphBuild EventType = "graph.build"

	ConnectorSync  EventType = "connector.sync"
	ConnectorError EventType = "connector.error"

	SystemStartup  EventType = "system.startup"
	SystemShutdown EventType = "system.shutdown"
	SystemError    EventType = "system.error"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
)

// Sink persists audit records. The storage layer satisfies it.
type Sink interface {
	SaveAuditRecord(ctx context.Context, rec store.AuditRecord) error
}

// Event is one auditable occurrence. Action defaults to the suffix of
// the event type and Outcome to success when left empty.
type Event struct {
	Type         EventType
	Action       string
	Outcome      string
	ResourceType string
	ResourceID   string
	Details      map[string]any
	IPAddress    string
}

// Recorder writes audit events to the log and to a sink. A nil sink
// leaves the trail log-only.
type Recorder struct {
	sink Sink
}

func NewRecorder(sink Sink) *Recorder {
	return &Recorder{sink: sink}
}

// Record emits one audit event. Failure and denied outcomes log at
// warn level. Persistence errors are swallowed after logging so a
// broken audit store cannot fail the operation being audited.
func (r *Recorder) Record(ctx context.Context, sec common.SecurityContext, ev Event) {
	action := ev.Action
	if action == "" {
		action = actionFromType(ev.Type)
	}
	outcome := ev.Outcome
	if outcome == "" {
		outcome = OutcomeSuccess
	}

	kv := []any{
		"event_type", ev.Type,
		"action", action,
		"outcome", outcome,
		"user_id", sec.UserID,
		"tenant_id", sec.TenantID,
	}
	if ev.ResourceType != "" {
		kv = append(kv, "resource_type", ev.ResourceType)
	}
	if ev.ResourceID != "" {
		kv = append(kv, "resource_id", ev.ResourceID)
	}
	switch outcome {
	case OutcomeFailure, OutcomeDenied:
		logger.Warn("[Audit] Event recorded", kv...)
	default:
		logger.Info("[Audit] Event recorded", kv...)
	}

	if r == nil || r.sink == nil {
		return
	}

	id, err := util.NewID()
	if err != nil {
		logger.Error("[Audit] Failed to assign record id", "error", err)
		return
	}
	rec := store.AuditRecord{
		ID:           id,
		EventType:    string(ev.Type),
		Action:       action,
		Outcome:      outcome,
		UserID:       sec.UserID,
		TenantID:     sec.TenantID,
		ResourceType: ev.ResourceType,
		ResourceID:   ev.ResourceID,
		Details:      ev.Details,
		IPAddress:    ev.IPAddress,
	}
	if err := r.sink.SaveAuditRecord(ctx, rec); err != nil {
		logger.Error("[Audit] Failed to persist audit record",
			"event_type", ev.Type, "error", err)
	}
}

func actionFromType(t EventType) string {
	s := string(t)
	if i := strings.LastIndex(s, "."); i >= 0 {
		return s[i+1:]
	}
	return s
}
