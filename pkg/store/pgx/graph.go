package pgx

import (
	"context"
	"fmt"

	"github.com/ctxeco/backend/pkg/common"
	"github.com/ctxeco/backend/pkg/store"
)

const nodeColumns = `n.id, n.label, n.entity_type, n.document_ids,
	n.properties, n.tenant_id, n.created_at`

const edgeColumns = `e.id, e.source_id, e.target_id, e.relationship,
	e.weight, e.tenant_id, e.created_at`

func scanNode(row rowScanner) (common.GraphNode, error) {
	var n common.GraphNode
	err := row.Scan(
		&n.ID,
		&n.Label,
		&n.EntityType,
		&n.DocumentIDs,
		&n.Properties,
		&n.TenantID,
		&n.CreatedAt,
	)
	return n, err
}

func scanEdge(row rowScanner) (common.GraphEdge, error) {
	var e common.GraphEdge
	err := row.Scan(
		&e.ID,
		&e.SourceID,
		&e.TargetID,
		&e.Relationship,
		&e.Weight,
		&e.TenantID,
		&e.CreatedAt,
	)
	return e, err
}

// UpsertNode merges one entity observation into the graph. A new
// normalized key creates the node under n.ID; an existing one keeps its
// stored identity and label and gains the observing document in its
// document list, exactly once per document. Returns the stored id.
func (s *DBStorage) UpsertNode(ctx context.Context, n store.NodeUpsert) (string, error) {
	var id string
	err := s.conn.QueryRow(ctx, `
		INSERT INTO graph_nodes (
			id, label, norm_key, entity_type, document_ids, properties,
			tenant_id, created_at
		) VALUES ($1, $2, $3, $4, ARRAY[$5::text], '{}'::jsonb, $6, now())
		ON CONFLICT (tenant_id, norm_key) DO UPDATE SET
			document_ids = CASE
				WHEN $5 = ANY (graph_nodes.document_ids) THEN graph_nodes.document_ids
				ELSE array_append(graph_nodes.document_ids, $5)
			END
		RETURNING id`,
		n.ID, n.Label, n.NormKey, n.EntityType, n.DocumentID, n.TenantID,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert graph node: %w", err)
	}
	return id, nil
}

// UpsertEdge records one co-occurrence between two stored nodes. A new
// edge starts at weight 1.0, an existing one gains 1.0. Returns whether
// the edge was created by this call.
func (s *DBStorage) UpsertEdge(ctx context.Context, e store.EdgeUpsert) (bool, error) {
	var created bool
	err := s.conn.QueryRow(ctx, `
		INSERT INTO graph_edges (
			id, source_id, target_id, relationship, weight, tenant_id,
			created_at
		) VALUES ($1, $2, $3, $4, 1.0, $5, now())
		ON CONFLICT (tenant_id, source_id, target_id, relationship) DO UPDATE SET
			weight = graph_edges.weight + 1.0
		RETURNING (xmax = 0) AS created`,
		e.ID, e.SourceID, e.TargetID, e.Relationship, e.TenantID,
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("failed to upsert graph edge: %w", err)
	}
	return created, nil
}

// MatchNodes finds the tenant's nodes whose label trigram-matches the
// entity, best match first.
func (s *DBStorage) MatchNodes(ctx context.Context, tenantID, entity string, limit int) ([]common.GraphNode, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM graph_nodes n
		WHERE n.tenant_id = $1 AND similarity(n.label, $2) > 0.3
		ORDER BY similarity(n.label, $2) DESC, n.id
		LIMIT $3`, nodeColumns)

	rows, err := s.conn.Query(ctx, query, tenantID, entity, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to match graph nodes: %w", err)
	}
	defer rows.Close()

	nodes := make([]common.GraphNode, 0, limit)
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node row: %w", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read node rows: %w", err)
	}

	return nodes, nil
}

func (s *DBStorage) NodesByIDs(ctx context.Context, tenantID string, ids []string) ([]common.GraphNode, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM graph_nodes n
		WHERE n.tenant_id = $1 AND n.id = ANY($2)
		ORDER BY n.id`, nodeColumns)

	rows, err := s.conn.Query(ctx, query, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph nodes: %w", err)
	}
	defer rows.Close()

	nodes := make([]common.GraphNode, 0, len(ids))
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node row: %w", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read node rows: %w", err)
	}

	return nodes, nil
}

// EdgesTouching returns the tenant's edges with at least one endpoint
// in nodeIDs, strongest first.
func (s *DBStorage) EdgesTouching(ctx context.Context, tenantID string, nodeIDs []string) ([]common.GraphEdge, error) {
	if len(nodeIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM graph_edges e
		WHERE e.tenant_id = $1
			AND (e.source_id = ANY($2) OR e.target_id = ANY($2))
		ORDER BY e.weight DESC, e.id`, edgeColumns)

	rows, err := s.conn.Query(ctx, query, tenantID, nodeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph edges: %w", err)
	}
	defer rows.Close()

	edges := make([]common.GraphEdge, 0)
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan edge row: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read edge rows: %w", err)
	}

	return edges, nil
}

func (s *DBStorage) GraphStats(ctx context.Context, tenantID string) (*store.GraphStats, error) {
	stats := &store.GraphStats{EntityTypes: make(map[string]int64)}

	err := s.conn.QueryRow(ctx,
		`SELECT count(*) FROM graph_nodes WHERE tenant_id = $1`, tenantID,
	).Scan(&stats.Nodes)
	if err != nil {
		return nil, fmt.Errorf("failed to count graph nodes: %w", err)
	}

	err = s.conn.QueryRow(ctx,
		`SELECT count(*) FROM graph_edges WHERE tenant_id = $1`, tenantID,
	).Scan(&stats.Edges)
	if err != nil {
		return nil, fmt.Errorf("failed to count graph edges: %w", err)
	}

	rows, err := s.conn.Query(ctx, `
		SELECT entity_type, count(*)
		FROM graph_nodes
		WHERE tenant_id = $1
		GROUP BY entity_type`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to count entity types: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entityType string
		var count int64
		if err := rows.Scan(&entityType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan entity type row: %w", err)
		}
		stats.EntityTypes[entityType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read entity type rows: %w", err)
	}

	return stats, nil
}
