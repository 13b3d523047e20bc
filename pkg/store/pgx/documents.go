package pgx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ctxeco/backend/pkg/common"
	"github.com/ctxeco/backend/pkg/logger"
	"github.com/ctxeco/backend/pkg/rap"
	"github.com/ctxeco/backend/pkg/store"
	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

const chunkBatchSize = 1000

const documentColumns = `d.id, d.filename, d.source_connector, d.data_class,
	d.sensitivity_level, d.data_categories, d.compliance_frameworks,
	d.decay_rate, d.requires_encryption, d.confidence, d.class_reason,
	d.provenance_id, d.chunk_count, d.file_size_bytes, d.mime_type,
	d.storage_key, d.degraded, d.tenant_id, d.user_id, d.project_id,
	d.access_level, d.acl_groups, d.ingested_at`

func scanDocument(row rowScanner) (*common.Document, error) {
	var doc common.Document
	err := row.Scan(
		&doc.ID,
		&doc.Filename,
		&doc.SourceConnector,
		&doc.Classification.DataClass,
		&doc.Classification.SensitivityLevel,
		&doc.Classification.DataCategories,
		&doc.Classification.ComplianceFrameworks,
		&doc.Classification.DecayRate,
		&doc.Classification.RequiresEncryption,
		&doc.Classification.Confidence,
		&doc.Classification.Reason,
		&doc.ProvenanceID,
		&doc.ChunkCount,
		&doc.FileSizeBytes,
		&doc.MimeType,
		&doc.StorageKey,
		&doc.Degraded,
		&doc.Ownership.TenantID,
		&doc.Ownership.UserID,
		&doc.Ownership.ProjectID,
		&doc.Ownership.AccessLevel,
		&doc.Ownership.ACLGroups,
		&doc.IngestedAt,
	)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *DBStorage) SaveDocument(ctx context.Context, doc *common.Document) error {
	ingestedAt := doc.IngestedAt
	if ingestedAt.IsZero() {
		ingestedAt = time.Now()
	}

	_, err := s.conn.Exec(ctx, `
		INSERT INTO documents (
			id, filename, source_connector, data_class, sensitivity_level,
			data_categories, compliance_frameworks, decay_rate,
			requires_encryption, confidence, class_reason, provenance_id,
			chunk_count, file_size_bytes, mime_type, storage_key, degraded,
			tenant_id, user_id, project_id, access_level, acl_groups,
			ingested_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23
		)`,
		doc.ID,
		doc.Filename,
		doc.SourceConnector,
		doc.Classification.DataClass,
		doc.Classification.SensitivityLevel,
		doc.Classification.DataCategories,
		doc.Classification.ComplianceFrameworks,
		doc.Classification.DecayRate,
		doc.Classification.RequiresEncryption,
		doc.Classification.Confidence,
		doc.Classification.Reason,
		doc.ProvenanceID,
		doc.ChunkCount,
		doc.FileSizeBytes,
		doc.MimeType,
		doc.StorageKey,
		doc.Degraded,
		doc.Ownership.TenantID,
		doc.Ownership.UserID,
		doc.Ownership.ProjectID,
		doc.Ownership.AccessLevel,
		doc.Ownership.ACLGroups,
		ingestedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// SaveChunks bulk-inserts extracted chunks in batches inside one
// transaction. Chunks without an embedding are stored with a NULL
// vector and stay reachable for keyword and graph retrieval.
func (s *DBStorage) SaveChunks(ctx context.Context, chunks []common.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin chunk insert: %w", err)
	}
	defer tx.Rollback(ctx)

	columns := []string{
		"id", "document_id", "ordinal", "text", "embedding", "element_type",
		"page", "row_index", "data_class", "provenance_id", "decay_rate",
		"degraded_extraction", "tenant_id", "user_id", "project_id",
		"access_level", "acl_groups", "created_at",
	}

	err = store.ChunkRange(len(chunks), chunkBatchSize, func(start, end int) error {
		part := chunks[start:end]
		logger.Debug("[Store][SaveChunks] Inserting batch", "chunks", len(part))

		_, err := tx.CopyFrom(ctx, pgxv5.Identifier{"chunks"}, columns,
			pgxv5.CopyFromSlice(len(part), func(i int) ([]any, error) {
				c := part[i]
				var embedding any
				if len(c.Embedding) > 0 {
					embedding = pgvector.NewVector(c.Embedding)
				}
				createdAt := c.CreatedAt
				if createdAt.IsZero() {
					createdAt = time.Now()
				}
				return []any{
					c.ID, c.DocumentID, c.Ordinal, c.Text, embedding,
					c.ElementType, c.Page, c.RowIndex, c.DataClass,
					c.ProvenanceID, c.DecayRate, c.Degraded,
					c.Ownership.TenantID, c.Ownership.UserID,
					c.Ownership.ProjectID, c.Ownership.AccessLevel,
					c.Ownership.ACLGroups, createdAt,
				}, nil
			}))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *DBStorage) GetDocument(ctx context.Context, sec common.SecurityContext, id string) (*common.Document, error) {
	pred, rapArgs := rap.Filter(sec, "d", 2)
	args := append([]any{id}, rapArgs...)

	query := fmt.Sprintf(`SELECT %s FROM documents d WHERE d.id = $1 AND %s`,
		documentColumns, pred)

	doc, err := scanDocument(s.conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

func (s *DBStorage) ListDocuments(ctx context.Context, sec common.SecurityContext, filter store.DocumentFilter) ([]common.Document, int64, error) {
	pred, args := rap.Filter(sec, "d", 1)
	if filter.DataClass != "" {
		args = append(args, filter.DataClass)
		pred = fmt.Sprintf("%s AND d.data_class = $%d", pred, len(args))
	}

	var total int64
	countQuery := fmt.Sprintf(`SELECT count(*) FROM documents d WHERE %s`, pred)
	if err := s.conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	limitPos := len(args)
	args = append(args, max(filter.Offset, 0))
	offsetPos := len(args)

	query := fmt.Sprintf(`
		SELECT %s FROM documents d
		WHERE %s
		ORDER BY d.ingested_at DESC, d.id
		LIMIT $%d OFFSET $%d`,
		documentColumns, pred, limitPos, offsetPos)

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]common.Document, 0, limit)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan document row: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read document rows: %w", err)
	}

	return docs, total, nil
}

func (s *DBStorage) UpdateDocumentClassification(ctx context.Context, id string, c common.ClassificationResult) error {
	tag, err := s.conn.Exec(ctx, `
		UPDATE documents SET
			data_class = $2,
			sensitivity_level = $3,
			data_categories = $4,
			compliance_frameworks = $5,
			decay_rate = $6,
			requires_encryption = $7,
			confidence = $8,
			class_reason = $9
		WHERE id = $1`,
		id,
		c.DataClass,
		c.SensitivityLevel,
		c.DataCategories,
		c.ComplianceFrameworks,
		c.DecayRate,
		c.RequiresEncryption,
		c.Confidence,
		c.Reason,
	)
	if err != nil {
		return fmt.Errorf("failed to update document classification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

// DeleteDocument removes a document; its chunks go with it through the
// foreign key cascade. Graph contributions stay.
func (s *DBStorage) DeleteDocument(ctx context.Context, id string) error {
	tag, err := s.conn.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}
