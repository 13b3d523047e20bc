// Package graph builds and queries the entity co-occurrence graph.
// Entities recognized in chunk text become nodes, unique per tenant by
// their normalized key; entities appearing near each other in the same
// chunk are joined by weighted co_occurs edges. The graph accumulates
// across documents and never crosses tenant boundaries.
package graph

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ctxeco/backend/internal/util"
	"github.com/ctxeco/backend/pkg/common"
	"github.com/ctxeco/backend/pkg/logger"
	"github.com/ctxeco/backend/pkg/store"
)

// RelationCoOccurs is the only relationship the builder writes.
const RelationCoOccurs = "co_occurs"

const (
	// maxEntityScan caps how much of a chunk is handed to the extractor.
	maxEntityScan = 5000
	// minEntityLen drops fragments too short to be a meaningful entity.
	minEntityLen = 3
	// coWindow is the width of the co-occurrence window: each entity
	// pairs with the next coWindow-1 entities of its chunk.
	coWindow = 5
	// upsertRetries bounds the internal retry on contended upserts.
	upsertRetries = 3
)

// Builder writes to and reads from the co-occurrence graph of one
// store. Safe for concurrent use; every write is a single atomic
// upsert, so parallel ingestion of documents sharing entities cannot
// lose weight increments or document references.
type Builder struct {
	store     store.Storage
	extractor EntityExtractor
}

// NewBuilder returns a Builder using the given store and extractor.
func NewBuilder(s store.Storage, e EntityExtractor) *Builder {
	return &Builder{store: s, extractor: e}
}

// NormKey is the identity of a node within its tenant: the
// lowercased, trimmed label joined with the entity type.
func NormKey(label, entityType string) string {
	return strings.ToLower(strings.TrimSpace(label)) + "|" + entityType
}

type chunkEntity struct {
	label string
	typ   string
	key   string
}

// Build extracts entities from the document's chunks and merges them
// into the tenant's graph. It returns how many node upserts and how
// many new edges the document contributed. Re-running Build for an
// already indexed document re-counts its co-occurrences; delta removal
// is not supported.
func (b *Builder) Build(
	ctx context.Context,
	documentID string,
	tenantID string,
	chunks []common.Chunk,
) (int, int, error) {
	nodes := 0
	edges := 0

	for _, chunk := range chunks {
		text := util.TruncateRunes(chunk.Text, maxEntityScan)
		mentions, err := b.extractor.ExtractEntities(ctx, text)
		if err != nil {
			return nodes, edges, fmt.Errorf("failed to extract entities: %w", err)
		}

		seen := make(map[string]struct{}, len(mentions))
		ordered := make([]chunkEntity, 0, len(mentions))
		for _, m := range mentions {
			label := strings.TrimSpace(m.Label)
			if utf8.RuneCountInString(label) < minEntityLen {
				continue
			}
			key := NormKey(label, m.Type)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			ordered = append(ordered, chunkEntity{label: label, typ: m.Type, key: key})
		}

		nodeIDs := make([]string, len(ordered))
		for idx, ent := range ordered {
			id, err := util.NewID()
			if err != nil {
				return nodes, edges, fmt.Errorf("failed to generate node ID: %w", err)
			}
			stored, err := util.Retry(upsertRetries, func() (string, error) {
				return b.store.UpsertNode(ctx, store.NodeUpsert{
					ID:         id,
					Label:      ent.label,
					NormKey:    ent.key,
					EntityType: ent.typ,
					DocumentID: documentID,
					TenantID:   tenantID,
				})
			})
			if err != nil {
				return nodes, edges, fmt.Errorf("failed to upsert node: %w", err)
			}
			nodeIDs[idx] = stored
			nodes++
		}

		for i := range nodeIDs {
			for j := i + 1; j < len(nodeIDs) && j <= i+coWindow-1; j++ {
				id, err := util.NewID()
				if err != nil {
					return nodes, edges, fmt.Errorf("failed to generate edge ID: %w", err)
				}
				created, err := util.Retry(upsertRetries, func() (bool, error) {
					return b.store.UpsertEdge(ctx, store.EdgeUpsert{
						ID:           id,
						SourceID:     nodeIDs[i],
						TargetID:     nodeIDs[j],
						Relationship: RelationCoOccurs,
						TenantID:     tenantID,
					})
				})
				if err != nil {
					return nodes, edges, fmt.Errorf("failed to upsert edge: %w", err)
				}
				if created {
					edges++
				}
			}
		}
	}

	logger.Info("[Graph] Build completed",
		"document_id", documentID,
		"nodes", nodes,
		"edges", edges,
	)

	return nodes, edges, nil
}
