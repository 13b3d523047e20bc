package pgx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ctxeco/backend/pkg/common"
	"github.com/ctxeco/backend/pkg/rap"
	pgxv5 "github.com/jackc/pgx/v5"
)

const connectorColumns = `c.id, c.name, c.kind, c.status, c.config,
	c.default_class, c.sensitivity_level, c.tenant_id, c.user_id,
	c.project_id, c.access_level, c.acl_groups, c.last_sync,
	c.docs_ingested, c.error_message, c.created_at, c.updated_at`

func scanConnector(row rowScanner) (*common.Connector, error) {
	var c common.Connector
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Kind,
		&c.Status,
		&c.Config,
		&c.DefaultClass,
		&c.SensitivityLevel,
		&c.Ownership.TenantID,
		&c.Ownership.UserID,
		&c.Ownership.ProjectID,
		&c.Ownership.AccessLevel,
		&c.Ownership.ACLGroups,
		&c.LastSync,
		&c.DocsIngested,
		&c.ErrorMessage,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *DBStorage) SaveConnector(ctx context.Context, conn *common.Connector) error {
	now := time.Now()
	config := conn.Config
	if config == nil {
		config = map[string]any{}
	}

	_, err := s.conn.Exec(ctx, `
		INSERT INTO connectors (
			id, name, kind, status, config, default_class,
			sensitivity_level, tenant_id, user_id, project_id,
			access_level, acl_groups, last_sync, docs_ingested,
			error_message, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17
		)`,
		conn.ID,
		conn.Name,
		conn.Kind,
		conn.Status,
		config,
		conn.DefaultClass,
		conn.SensitivityLevel,
		conn.Ownership.TenantID,
		conn.Ownership.UserID,
		conn.Ownership.ProjectID,
		conn.Ownership.AccessLevel,
		conn.Ownership.ACLGroups,
		conn.LastSync,
		conn.DocsIngested,
		conn.ErrorMessage,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert connector: %w", err)
	}
	return nil
}

func (s *DBStorage) GetConnector(ctx context.Context, sec common.SecurityContext, id string) (*common.Connector, error) {
	pred, rapArgs := rap.Filter(sec, "c", 2)
	args := append([]any{id}, rapArgs...)

	query := fmt.Sprintf(`SELECT %s FROM connectors c WHERE c.id = $1 AND %s`,
		connectorColumns, pred)

	conn, err := scanConnector(s.conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get connector: %w", err)
	}
	return conn, nil
}

func (s *DBStorage) ListConnectors(ctx context.Context, sec common.SecurityContext) ([]common.Connector, error) {
	pred, args := rap.Filter(sec, "c", 1)

	query := fmt.Sprintf(`
		SELECT %s FROM connectors c
		WHERE %s
		ORDER BY c.created_at DESC, c.id`, connectorColumns, pred)

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list connectors: %w", err)
	}
	defer rows.Close()

	connectors := make([]common.Connector, 0)
	for rows.Next() {
		c, err := scanConnector(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connector row: %w", err)
		}
		connectors = append(connectors, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read connector rows: %w", err)
	}

	return connectors, nil
}

func (s *DBStorage) DeleteConnector(ctx context.Context, id string) error {
	tag, err := s.conn.Exec(ctx, `DELETE FROM connectors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete connector: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (s *DBStorage) UpdateConnectorStatus(ctx context.Context, id string, status common.ConnectorStatus, message string) error {
	tag, err := s.conn.Exec(ctx, `
		UPDATE connectors SET
			status = $2,
			error_message = $3,
			updated_at = now()
		WHERE id = $1`,
		id, status, message)
	if err != nil {
		return fmt.Errorf("failed to update connector status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

// MarkConnectorSynced records a completed sync: the connector becomes
// healthy, the sync time is stored, and docsIngested is added to the
// lifetime total.
func (s *DBStorage) MarkConnectorSynced(ctx context.Context, id string, docsIngested int, at time.Time) error {
	tag, err := s.conn.Exec(ctx, `
		UPDATE connectors SET
			status = 'healthy',
			last_sync = $2,
			docs_ingested = docs_ingested + $3,
			error_message = '',
			updated_at = now()
		WHERE id = $1`,
		id, at, docsIngested)
	if err != nil {
		return fmt.Errorf("failed to mark connector synced: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}
