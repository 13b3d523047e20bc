package pgx

import (
	"context"
	"fmt"

	"github.com/ctxeco/backend/internal/util"
	"github.com/ctxeco/backend/pkg/common"
	"github.com/ctxeco/backend/pkg/rap"
	"github.com/pgvector/pgvector-go"
)

// resultTextLimit caps the text carried back per result; the full chunk
// stays in the database.
const resultTextLimit = 500

const resultColumns = `c.id, c.document_id, d.filename, c.text,
	c.data_class, c.provenance_id, c.element_type`

func (s *DBStorage) scanResults(ctx context.Context, query string, args ...any) ([]common.SearchResult, error) {
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]common.SearchResult, 0)
	for rows.Next() {
		var r common.SearchResult
		err := rows.Scan(
			&r.ChunkID,
			&r.DocumentID,
			&r.Filename,
			&r.Text,
			&r.DataClass,
			&r.ProvenanceID,
			&r.ElementType,
			&r.Score,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search row: %w", err)
		}
		r.Text = util.TruncateRunes(r.Text, resultTextLimit)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search rows: %w", err)
	}

	return results, nil
}

// KeywordSearch ranks chunks by full-text match against the query.
func (s *DBStorage) KeywordSearch(ctx context.Context, sec common.SecurityContext, query string, limit int) ([]common.SearchResult, error) {
	pred, rapArgs := rap.Filter(sec, "c", 2)
	args := append([]any{query}, rapArgs...)
	args = append(args, limit)

	sql := fmt.Sprintf(`
		SELECT %s,
			ts_rank(c.search_vector, plainto_tsquery('english', $1))::float8 AS score
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.search_vector @@ plainto_tsquery('english', $1)
			AND %s
		ORDER BY score DESC, c.id
		LIMIT $%d`, resultColumns, pred, len(args))

	results, err := s.scanResults(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run keyword search: %w", err)
	}
	return results, nil
}

// VectorSearch ranks chunks by cosine similarity to the query embedding.
// Chunks without an embedding never match.
func (s *DBStorage) VectorSearch(ctx context.Context, sec common.SecurityContext, embedding []float32, limit int) ([]common.SearchResult, error) {
	pred, rapArgs := rap.Filter(sec, "c", 2)
	args := append([]any{pgvector.NewVector(embedding)}, rapArgs...)
	args = append(args, limit)

	sql := fmt.Sprintf(`
		SELECT %s,
			(1 - (c.embedding <=> $1))::float8 AS score
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.embedding IS NOT NULL
			AND %s
		ORDER BY c.embedding <=> $1, c.id
		LIMIT $%d`, resultColumns, pred, len(args))

	results, err := s.scanResults(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run vector search: %w", err)
	}
	return results, nil
}

// GraphSearch finds chunks through the co-occurrence graph: entities
// whose label trigram-matches the query, plus their one-hop neighbours,
// vote in the documents they were seen in. Every hit carries the same
// fixed score; chunk id order keeps the result deterministic.
func (s *DBStorage) GraphSearch(ctx context.Context, sec common.SecurityContext, query string, limit int) ([]common.SearchResult, error) {
	pred, rapArgs := rap.Filter(sec, "c", 3)
	args := append([]any{query, sec.TenantID}, rapArgs...)
	args = append(args, limit)

	sql := fmt.Sprintf(`
		WITH matched_nodes AS (
			SELECT n.id, n.document_ids
			FROM graph_nodes n
			WHERE n.tenant_id = $2 AND similarity(n.label, $1) > 0.3
			ORDER BY similarity(n.label, $1) DESC, n.id
			LIMIT 10
		),
		connected_docs AS (
			SELECT unnest(mn.document_ids) AS document_id
			FROM matched_nodes mn
			UNION
			SELECT unnest(n2.document_ids) AS document_id
			FROM matched_nodes mn
			JOIN graph_edges e ON e.source_id = mn.id OR e.target_id = mn.id
			JOIN graph_nodes n2 ON n2.id = CASE
				WHEN e.source_id = mn.id THEN e.target_id
				ELSE e.source_id
			END
		)
		SELECT %s, 0.7::float8 AS score
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.document_id IN (SELECT document_id FROM connected_docs)
			AND %s
		ORDER BY c.id
		LIMIT $%d`, resultColumns, pred, len(args))

	results, err := s.scanResults(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run graph search: %w", err)
	}
	return results, nil
}
