// Package search runs retrieval across three modalities: full-text
// keyword matching, embedding similarity, and knowledge graph
// adjacency. In trisearch mode the modalities run concurrently and
// their rankings are fused with reciprocal rank fusion; a modality
// that is unavailable or fails contributes nothing instead of failing
// the request.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ctxeco/backend/pkg/ai"
	"github.com/ctxeco/backend/pkg/common"
	"github.com/ctxeco/backend/pkg/logger"
	"github.com/ctxeco/backend/pkg/store"

	"golang.org/x/sync/errgroup"
)

const (
	defaultLimit   = 20
	maxLimit       = 100
	defaultTimeout = 10 * time.Second
)

// Engine answers search requests against one store. The embedder is
// optional; without one the vector modality is omitted up front, never
// attempted and failed.
type Engine struct {
	store    store.Storage
	embedder ai.EmbeddingClient
}

// NewEngine returns an Engine over the given store. embedder may be
// nil when no embedding provider is configured.
func NewEngine(s store.Storage, embedder ai.EmbeddingClient) *Engine {
	return &Engine{store: s, embedder: embedder}
}

// Request carries one search call. Zero values fall back to trisearch
// mode, the default limit, and the default modality timeout.
type Request struct {
	Query     string
	Mode      common.SearchMode
	Limit     int
	TimeoutMs int
}

// Search runs the requested modalities concurrently and assembles the
// response. The per-modality counts report what each modality returned
// before fusion and truncation; a modality that errored or missed the
// deadline counts zero. Only invalid input produces an error.
func (e *Engine) Search(
	ctx context.Context,
	sec common.SecurityContext,
	req Request,
) (*common.SearchResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query must not be empty", common.ErrValidation)
	}

	mode := req.Mode
	if mode == "" {
		mode = common.ModeTriSearch
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: unknown search mode %q", common.ErrValidation, req.Mode)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	timeout := defaultTimeout
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}

	wantKeyword := mode == common.ModeKeyword || mode == common.ModeTriSearch
	wantVector := mode == common.ModeVector || mode == common.ModeTriSearch
	wantGraph := mode == common.ModeGraph || mode == common.ModeTriSearch
	if wantVector && e.embedder == nil {
		logger.Debug("[Search] No embedder configured, vector modality omitted")
		wantVector = false
	}

	rCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		keywordResults []common.SearchResult
		vectorResults  []common.SearchResult
		graphResults   []common.SearchResult
	)

	var eg errgroup.Group

	if wantKeyword {
		eg.Go(func() error {
			res, err := e.store.KeywordSearch(rCtx, sec, query, limit)
			if err != nil {
				logger.Warn("[Search] Keyword modality failed", "error", err)
				return nil
			}
			keywordResults = res
			return nil
		})
	}

	if wantVector {
		eg.Go(func() error {
			embedding, err := e.embedder.GenerateEmbedding(rCtx, []byte(query))
			if err != nil {
				logger.Warn("[Search] Query embedding failed", "error", err)
				return nil
			}
			res, err := e.store.VectorSearch(rCtx, sec, embedding, limit)
			if err != nil {
				logger.Warn("[Search] Vector modality failed", "error", err)
				return nil
			}
			vectorResults = res
			return nil
		})
	}

	if wantGraph {
		eg.Go(func() error {
			res, err := e.store.GraphSearch(rCtx, sec, query, limit)
			if err != nil {
				logger.Warn("[Search] Graph modality failed", "error", err)
				return nil
			}
			graphResults = res
			return nil
		})
	}

	// Modality failures degrade to empty results, so Wait never
	// reports an error here.
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	resp := &common.SearchResponse{
		Query:        query,
		Mode:         mode,
		KeywordCount: len(keywordResults),
		VectorCount:  len(vectorResults),
		GraphCount:   len(graphResults),
	}

	switch mode {
	case common.ModeKeyword:
		resp.Results = keywordResults
	case common.ModeVector:
		resp.Results = vectorResults
	case common.ModeGraph:
		resp.Results = graphResults
	default:
		resp.Results = fuseResults(keywordResults, vectorResults, graphResults, limit)
	}
	if resp.Results == nil {
		resp.Results = []common.SearchResult{}
	}
	resp.Total = len(resp.Results)

	return resp, nil
}
