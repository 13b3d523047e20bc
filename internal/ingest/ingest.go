// Package ingest runs documents through the full pipeline shared by
// the HTTP upload route and the queue worker: classify, extract, embed,
// persist, graph. Embedding and graph construction are best effort; a
// document whose vectors or entities cannot be produced is still stored
// and findable by keyword search.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ctxeco/backend/internal/timing"
	"github.com/ctxeco/backend/internal/util"
	"github.com/ctxeco/backend/pkg/ai"
	"github.com/ctxeco/backend/pkg/audit"
	"github.com/ctxeco/backend/pkg/classify"
	"github.com/ctxeco/backend/pkg/common"
	"github.com/ctxeco/backend/pkg/extract"
	"github.com/ctxeco/backend/pkg/graph"
	"github.com/ctxeco/backend/pkg/logger"
	"github.com/ctxeco/backend/pkg/store"
)

// Option configures optional pipeline stages.
type Option func(*Ingestor)

// WithEmbedder enables the embedding stage. Without it chunks are
// stored vector-less and vector search cannot see them.
func WithEmbedder(e ai.EmbeddingClient) Option {
	return func(i *Ingestor) {
		i.embedder = e
	}
}

// WithAuditor enables persisted audit events for ingest outcomes.
func WithAuditor(a *audit.Recorder) Option {
	return func(i *Ingestor) {
		i.auditor = a
	}
}

// Ingestor executes the ingestion pipeline. Safe for concurrent use;
// every Run call is independent.
type Ingestor struct {
	store      store.Storage
	classifier *classify.Classifier
	router     *extract.Router
	builder    *graph.Builder
	embedder   ai.EmbeddingClient
	auditor    *audit.Recorder
}

// New wires the required pipeline stages. The store also receives
// per-stage timing samples.
func New(
	s store.Storage,
	c *classify.Classifier,
	r *extract.Router,
	b *graph.Builder,
	opts ...Option,
) *Ingestor {
	ing := &Ingestor{store: s, classifier: c, router: r, builder: b}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

// Request describes one document to ingest. Ownership fields left empty
// are filled from the caller's security context, with access level
// defaulting to private.
type Request struct {
	Filename        string
	Data            []byte
	MimeType        string
	StorageKey      string
	SourceConnector string
	ForceClass      common.DataClass
	// SensitivityFloor raises the classified sensitivity when the
	// source is known to carry sensitive material, such as a connector
	// configured with a high default.
	SensitivityFloor common.SensitivityLevel
	Ownership        common.Ownership
	ClientIP         string
}

// Result reports what the pipeline produced for one document.
type Result struct {
	DocumentID      string
	ChunksProcessed int
	Degraded        bool
	Classification  common.ClassificationResult
}

// Run ingests one document and returns once it is persisted. Extraction
// and persistence errors are terminal; embedding and graph failures
// degrade the document instead of failing it.
func (i *Ingestor) Run(ctx context.Context, sec common.SecurityContext, req Request) (*Result, error) {
	if strings.TrimSpace(req.Filename) == "" {
		return nil, fmt.Errorf("%w: filename is required", common.ErrValidation)
	}
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("%w: document %s is empty", common.ErrValidation, req.Filename)
	}
	if req.ForceClass != "" && !req.ForceClass.Valid() {
		return nil, fmt.Errorf("%w: unknown data class %q", common.ErrValidation, req.ForceClass)
	}

	own := req.Ownership
	if own.TenantID == "" {
		own.TenantID = sec.TenantID
	}
	if own.UserID == "" {
		own.UserID = sec.UserID
	}
	if own.AccessLevel == "" {
		own.AccessLevel = common.AccessPrivate
	}

	start := time.Now()
	var cls common.ClassificationResult
	if req.ForceClass != "" {
		cls = i.classifier.ClassifyForced(req.Filename, req.ForceClass)
	} else {
		cls = i.classifier.Classify(req.Filename)
	}
	if sensitivityRank(req.SensitivityFloor) > sensitivityRank(cls.SensitivityLevel) {
		cls.SensitivityLevel = req.SensitivityFloor
	}
	timing.Record(ctx, i.store, timing.StageClassify, own.TenantID, 1, time.Since(start))

	docID, err := util.NewDocumentID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate document ID: %w", err)
	}
	provID, err := util.NewProvenanceID(cls.DataClass)
	if err != nil {
		return nil, fmt.Errorf("failed to generate provenance ID: %w", err)
	}

	start = time.Now()
	extracted, err := i.router.Run(ctx, cls.DataClass, req.Filename, req.Data)
	if err != nil {
		i.recordOutcome(ctx, sec, req, docID, audit.OutcomeFailure, map[string]any{
			"filename": req.Filename,
			"stage":    timing.StageExtract,
			"error":    err.Error(),
		})
		return nil, err
	}
	timing.Record(ctx, i.store, timing.StageExtract, own.TenantID, len(extracted.Fragments), time.Since(start))

	chunks := make([]common.Chunk, len(extracted.Fragments))
	for idx, frag := range extracted.Fragments {
		chunks[idx] = common.Chunk{
			ID:           util.ChunkID(docID, idx),
			DocumentID:   docID,
			Ordinal:      idx,
			Text:         frag.Text,
			ElementType:  frag.ElementType,
			Page:         frag.Page,
			RowIndex:     frag.RowIndex,
			DataClass:    cls.DataClass,
			ProvenanceID: provID,
			DecayRate:    cls.DecayRate,
			Degraded:     frag.Degraded,
			Ownership:    own,
		}
	}

	if i.embedder != nil && len(chunks) > 0 {
		start = time.Now()
		texts := make([]string, len(chunks))
		for idx := range chunks {
			texts[idx] = chunks[idx].Text
		}
		embeddings, err := store.GenerateEmbeddings(ctx, i.embedder, texts)
		if err != nil {
			logger.Warn("[Ingest][Run] Embedding failed, storing chunks without vectors",
				"document_id", docID,
				"error", err,
			)
		} else if len(embeddings) == len(chunks) {
			for idx := range chunks {
				chunks[idx].Embedding = embeddings[idx]
			}
		}
		timing.Record(ctx, i.store, timing.StageEmbed, own.TenantID, len(chunks), time.Since(start))
	}

	doc := &common.Document{
		ID:              docID,
		Filename:        req.Filename,
		SourceConnector: req.SourceConnector,
		Classification:  cls,
		ProvenanceID:    provID,
		ChunkCount:      len(chunks),
		FileSizeBytes:   int64(len(req.Data)),
		MimeType:        req.MimeType,
		StorageKey:      req.StorageKey,
		Degraded:        extracted.Degraded,
		Ownership:       own,
	}

	start = time.Now()
	if err := i.store.SaveDocument(ctx, doc); err != nil {
		i.recordOutcome(ctx, sec, req, docID, audit.OutcomeFailure, map[string]any{
			"filename": req.Filename,
			"stage":    timing.StagePersist,
			"error":    err.Error(),
		})
		return nil, fmt.Errorf("failed to save document: %w", err)
	}
	if err := i.store.SaveChunks(ctx, chunks); err != nil {
		i.recordOutcome(ctx, sec, req, docID, audit.OutcomeFailure, map[string]any{
			"filename": req.Filename,
			"stage":    timing.StagePersist,
			"error":    err.Error(),
		})
		return nil, fmt.Errorf("failed to save chunks: %w", err)
	}
	timing.Record(ctx, i.store, timing.StagePersist, own.TenantID, len(chunks), time.Since(start))

	if i.builder != nil && len(chunks) > 0 {
		start = time.Now()
		nodes, edges, err := i.builder.Build(ctx, docID, own.TenantID, chunks)
		if err != nil {
			logger.Warn("[Ingest][Run] Graph build failed, document stays searchable",
				"document_id", docID,
				"error", err,
			)
			i.auditor.Record(ctx, sec, audit.Event{
				Type:         audit.GraphBuild,
				Outcome:      audit.OutcomeFailure,
				ResourceType: "document",
				ResourceID:   docID,
				Details:      map[string]any{"error": err.Error()},
				IPAddress:    req.ClientIP,
			})
		}
		timing.Record(ctx, i.store, timing.StageGraph, own.TenantID, nodes+edges, time.Since(start))
	}

	logger.Info("[Ingest][Run] Document ingested",
		"document_id", docID,
		"filename", req.Filename,
		"data_class", cls.DataClass,
		"engine", extracted.Engine,
		"chunks", len(chunks),
		"degraded", extracted.Degraded,
	)

	i.recordOutcome(ctx, sec, req, docID, audit.OutcomeSuccess, map[string]any{
		"filename":   req.Filename,
		"data_class": string(cls.DataClass),
		"chunks":     len(chunks),
		"source":     req.SourceConnector,
	})

	return &Result{
		DocumentID:      docID,
		ChunksProcessed: len(chunks),
		Degraded:        extracted.Degraded,
		Classification:  cls,
	}, nil
}

func (i *Ingestor) recordOutcome(
	ctx context.Context,
	sec common.SecurityContext,
	req Request,
	docID string,
	outcome string,
	details map[string]any,
) {
	i.auditor.Record(ctx, sec, audit.Event{
		Type:         audit.ResourceIngest,
		Outcome:      outcome,
		ResourceType: "document",
		ResourceID:   docID,
		Details:      details,
		IPAddress:    req.ClientIP,
	})
}

func sensitivityRank(s common.SensitivityLevel) int {
	switch s {
	case common.SensitivityHigh:
		return 2
	case common.SensitivityModerate:
		return 1
	default:
		return 0
	}
}
