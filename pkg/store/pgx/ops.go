package pgx

import (
	"context"
	"fmt"

	"github.com/ctxeco/backend/pkg/store"
)

func (s *DBStorage) SaveStageTiming(ctx context.Context, t store.StageTiming) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO stage_timings (stage, amount, duration_ms, tenant_id, created_at)
		VALUES ($1, $2, $3, $4, now())`,
		t.Stage, t.Amount, t.Duration.Milliseconds(), t.TenantID)
	if err != nil {
		return fmt.Errorf("failed to insert stage timing: %w", err)
	}
	return nil
}

// StageAverages returns the mean duration in milliseconds per pipeline
// stage for one tenant.
func (s *DBStorage) StageAverages(ctx context.Context, tenantID string) (map[string]float64, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT stage, avg(duration_ms)::float8
		FROM stage_timings
		WHERE tenant_id = $1
		GROUP BY stage`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stage averages: %w", err)
	}
	defer rows.Close()

	averages := make(map[string]float64)
	for rows.Next() {
		var stage string
		var avg float64
		if err := rows.Scan(&stage, &avg); err != nil {
			return nil, fmt.Errorf("failed to scan stage average row: %w", err)
		}
		averages[stage] = avg
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stage average rows: %w", err)
	}

	return averages, nil
}

func (s *DBStorage) SaveAuditRecord(ctx context.Context, rec store.AuditRecord) error {
	details := rec.Details
	if details == nil {
		details = map[string]any{}
	}

	_, err := s.conn.Exec(ctx, `
		INSERT INTO audit_logs (
			id, event_type, action, outcome, user_id, tenant_id,
			resource_type, resource_id, details, ip_address, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())`,
		rec.ID,
		rec.EventType,
		rec.Action,
		rec.Outcome,
		rec.UserID,
		rec.TenantID,
		rec.ResourceType,
		rec.ResourceID,
		details,
		rec.IPAddress,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}
