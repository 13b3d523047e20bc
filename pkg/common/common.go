package common

import "time"

// DataClass places a document into one of three truth-value tiers that
// drive extraction routing, decay metadata, and downstream ranking.
//
// The tiers are:
//   - ImmutableTruth: reference material such as standards, manuals, and
//     specifications. Slow decay, extracted with high fidelity.
//   - EphemeralStream: conversational and narrative content such as
//     meeting notes, mails, and wiki pages. Medium decay.
//   - OperationalPulse: machine-generated records such as logs, exports,
//     and telemetry tables. Fast decay, extracted row-wise.
type DataClass string

const (
	ImmutableTruth   DataClass = "immutable_truth"
	EphemeralStream  DataClass = "ephemeral_stream"
	OperationalPulse DataClass = "operational_pulse"
)

// Valid reports whether d is one of the three known classes.
func (d DataClass) Valid() bool {
	switch d {
	case ImmutableTruth, EphemeralStream, OperationalPulse:
		return true
	}
	return false
}

// Initial returns the single-letter prefix used in provenance identifiers.
func (d DataClass) Initial() string {
	if len(d) == 0 {
		return "u"
	}
	return string(d[0])
}

// SensitivityLevel grades how carefully a document has to be handled.
// High sensitivity implies encryption at rest.
type SensitivityLevel string

const (
	SensitivityLow      SensitivityLevel = "low"
	SensitivityModerate SensitivityLevel = "moderate"
	SensitivityHigh     SensitivityLevel = "high"
)

// ClassificationResult is the full verdict of the classifier for one
// document. It is persisted on the document row and stamped onto every
// chunk derived from it.
type ClassificationResult struct {
	DataClass            DataClass        `json:"data_class"`
	SensitivityLevel     SensitivityLevel `json:"sensitivity_level"`
	DataCategories       []string         `json:"data_categories"`
	ComplianceFrameworks []string         `json:"compliance_frameworks"`
	DecayRate            float64          `json:"decay_rate"`
	Confidence           float64          `json:"confidence"`
	RequiresEncryption   bool             `json:"requires_encryption"`
	Reason               string           `json:"reason"`
}

// Document is the stored record of one ingested file, carrying its
// classification verdict, its ownership for access control, and the
// provenance identifier that ties chunks back to it.
type Document struct {
	ID              string               `json:"id"`
	Filename        string               `json:"filename"`
	SourceConnector string               `json:"source_connector"`
	Classification  ClassificationResult `json:"classification"`
	ProvenanceID    string               `json:"provenance_id"`
	ChunkCount      int                  `json:"chunk_count"`
	FileSizeBytes   int64                `json:"file_size_bytes"`
	MimeType        string               `json:"mime_type"`
	StorageKey      string               `json:"storage_key"`
	Degraded        bool                 `json:"degraded"`
	Ownership       Ownership            `json:"ownership"`
	IngestedAt      time.Time            `json:"ingested_at"`
}

// Chunk is one retrievable unit of extracted text. Chunks inherit the
// classification and ownership of their document so that every search
// modality can filter on them without joining back to the document row.
type Chunk struct {
	ID           string    `json:"id"`
	DocumentID   string    `json:"document_id"`
	Ordinal      int       `json:"ordinal"`
	Text         string    `json:"text"`
	Embedding    []float32 `json:"-"`
	ElementType  string    `json:"element_type"`
	Page         *int      `json:"page,omitempty"`
	RowIndex     *int      `json:"row_index,omitempty"`
	DataClass    DataClass `json:"data_class"`
	ProvenanceID string    `json:"provenance_id"`
	DecayRate    float64   `json:"decay_rate"`
	Degraded     bool      `json:"degraded_extraction"`
	Ownership    Ownership `json:"ownership"`
	CreatedAt    time.Time `json:"created_at"`
}

// GraphNode is one entity in the co-occurrence graph. Nodes are unique
// per tenant by their normalized key and accumulate the identifiers of
// every document that mentioned them.
type GraphNode struct {
	ID          string         `json:"id"`
	Label       string         `json:"label"`
	EntityType  string         `json:"entity_type"`
	DocumentIDs []string       `json:"document_ids"`
	Properties  map[string]any `json:"properties,omitempty"`
	TenantID    string         `json:"tenant_id"`
	CreatedAt   time.Time      `json:"created_at"`
}

// GraphEdge records that two entities appeared near each other. The
// weight counts co-occurrences across all ingested documents of the
// tenant; the relationship is always "co_occurs".
type GraphEdge struct {
	ID           string    `json:"id"`
	SourceID     string    `json:"source_id"`
	TargetID     string    `json:"target_id"`
	Relationship string    `json:"relationship"`
	Weight       float64   `json:"weight"`
	TenantID     string    `json:"tenant_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// Subgraph is the result of a graph traversal: the nodes reached from
// the matched entities and the edges between them.
type Subgraph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// SearchMode selects which retrieval modalities run for a query.
type SearchMode string

const (
	ModeKeyword   SearchMode = "keyword"
	ModeVector    SearchMode = "vector"
	ModeGraph     SearchMode = "graph"
	ModeTriSearch SearchMode = "trisearch"
)

// Valid reports whether m is a known search mode.
func (m SearchMode) Valid() bool {
	switch m {
	case ModeKeyword, ModeVector, ModeGraph, ModeTriSearch:
		return true
	}
	return false
}

// SearchResult is one ranked chunk returned from a search. Score carries
// the modality score for single-modality queries and the fused
// reciprocal-rank score for trisearch.
type SearchResult struct {
	ChunkID      string    `json:"chunk_id"`
	DocumentID   string    `json:"document_id"`
	Filename     string    `json:"filename"`
	Text         string    `json:"text"`
	Score        float64   `json:"score"`
	DataClass    DataClass `json:"data_class"`
	ProvenanceID string    `json:"provenance_id"`
	ElementType  string    `json:"element_type"`
}

// SearchResponse is the full answer to a search request. The per-modality
// counts report how many candidates each modality produced before fusion,
// so a caller can tell a degraded search from an empty corpus.
type SearchResponse struct {
	Query        string         `json:"query"`
	Mode         SearchMode     `json:"mode"`
	Results      []SearchResult `json:"results"`
	Total        int            `json:"total"`
	KeywordCount int            `json:"keyword_count"`
	VectorCount  int            `json:"vector_count"`
	GraphCount   int            `json:"graph_count"`
}

// ConnectorStatus is the lifecycle state of a configured connector.
type ConnectorStatus string

const (
	ConnectorPending  ConnectorStatus = "pending"
	ConnectorHealthy  ConnectorStatus = "healthy"
	ConnectorIndexing ConnectorStatus = "indexing"
	ConnectorPaused   ConnectorStatus = "paused"
	ConnectorError    ConnectorStatus = "error"
)

// Connector is the stored configuration of one external content source.
// Documents fetched during a sync inherit DefaultClass as a forced
// classification and the connector's ownership.
type Connector struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Kind             string           `json:"kind"`
	Status           ConnectorStatus  `json:"status"`
	Config           map[string]any   `json:"config"`
	DefaultClass     DataClass        `json:"default_class"`
	SensitivityLevel SensitivityLevel `json:"sensitivity_level"`
	Ownership        Ownership        `json:"ownership"`
	LastSync         *time.Time       `json:"last_sync,omitempty"`
	DocsIngested     int              `json:"docs_ingested"`
	ErrorMessage     string           `json:"error_message,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}
