package store

import (
	"context"
	"time"

	"github.com/ctxeco/backend/pkg/common"
)

// DocumentFilter narrows a document listing. The zero value lists
// everything visible to the caller; Limit falls back to a server-side
// default when unset.
type DocumentFilter struct {
	DataClass common.DataClass
	Limit     int
	Offset    int
}

// NodeUpsert is one entity observation to merge into the graph. ID is
// the identifier assigned when the node does not exist yet; when it
// does, the stored identifier wins and DocumentID is unioned into the
// node's document list.
type NodeUpsert struct {
	ID         string
	Label      string
	NormKey    string
	EntityType string
	DocumentID string
	TenantID   string
}

// EdgeUpsert is one co-occurrence observation between two stored nodes.
// An existing edge gains weight; a new one starts at 1.0.
type EdgeUpsert struct {
	ID           string
	SourceID     string
	TargetID     string
	Relationship string
	TenantID     string
}

// GraphStats summarizes one tenant's knowledge graph.
type GraphStats struct {
	Nodes       int64            `json:"total_nodes"`
	Edges       int64            `json:"total_edges"`
	EntityTypes map[string]int64 `json:"entity_types"`
}

// StageTiming is one duration sample from an ingestion stage. Amount
// counts the items the stage handled, such as chunks embedded.
type StageTiming struct {
	Stage    string
	Amount   int
	Duration time.Duration
	TenantID string
}

// AuditRecord is one row of the compliance audit trail. The store
// stamps the insertion time.
type AuditRecord struct {
	ID           string
	EventType    string
	Action       string
	Outcome      string
	UserID       string
	TenantID     string
	ResourceType string
	ResourceID   string
	Details      map[string]any
	IPAddress    string
}

// Storage defines the interface for persisting and querying ingested
// documents and their derived data. It covers document and chunk
// persistence, the three retrieval modalities, co-occurrence graph
// upserts and traversal reads, connector configuration, and the
// operational records written alongside ingestion. Every read that
// returns caller-visible rows takes the caller's SecurityContext and
// applies the access policy inside the query.
type Storage interface {
	SaveDocument(ctx context.Context, doc *common.Document) error
	SaveChunks(ctx context.Context, chunks []common.Chunk) error
	GetDocument(ctx context.Context, sec common.SecurityContext, id string) (*common.Document, error)
	ListDocuments(ctx context.Context, sec common.SecurityContext, filter DocumentFilter) ([]common.Document, int64, error)
	UpdateDocumentClassification(ctx context.Context, id string, c common.ClassificationResult) error
	DeleteDocument(ctx context.Context, id string) error

	KeywordSearch(ctx context.Context, sec common.SecurityContext, query string, limit int) ([]common.SearchResult, error)
	VectorSearch(ctx context.Context, sec common.SecurityContext, embedding []float32, limit int) ([]common.SearchResult, error)
	GraphSearch(ctx context.Context, sec common.SecurityContext, query string, limit int) ([]common.SearchResult, error)

	UpsertNode(ctx context.Context, n NodeUpsert) (string, error)
	UpsertEdge(ctx context.Context, e EdgeUpsert) (bool, error)
	MatchNodes(ctx context.Context, tenantID, entity string, limit int) ([]common.GraphNode, error)
	NodesByIDs(ctx context.Context, tenantID string, ids []string) ([]common.GraphNode, error)
	EdgesTouching(ctx context.Context, tenantID string, nodeIDs []string) ([]common.GraphEdge, error)
	GraphStats(ctx context.Context, tenantID string) (*GraphStats, error)

	SaveConnector(ctx context.Context, conn *common.Connector) error
	GetConnector(ctx context.Context, sec common.SecurityContext, id string) (*common.Connector, error)
	ListConnectors(ctx context.Context, sec common.SecurityContext) ([]common.Connector, error)
	DeleteConnector(ctx context.Context, id string) error
	UpdateConnectorStatus(ctx context.Context, id string, status common.ConnectorStatus, message string) error
	MarkConnectorSynced(ctx context.Context, id string, docsIngested int, at time.Time) error

	SaveStageTiming(ctx context.Context, t StageTiming) error
	StageAverages(ctx context.Context, tenantID string) (map[string]float64, error)
	SaveAuditRecord(ctx context.Context, rec AuditRecord) error

	Ping(ctx context.Context) error
}
