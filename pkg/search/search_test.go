package search

import (
	"context"
	"errors"
	"testing"

	"github.com/ctxeco/backend/pkg/common"
	"github.com/ctxeco/backend/pkg/store"
)

// fakeSearchStore implements the three retrieval methods and panics on
// everything else through the embedded nil interface.
type fakeSearchStore struct {
	store.Storage

	keyword []common.SearchResult
	vector  []common.SearchResult
	graph   []common.SearchResult

	keywordErr error
	vectorErr  error
	graphErr   error

	keywordBlocks bool

	keywordCalled bool
	vectorCalled  bool
	graphCalled   bool
	gotLimit      int
}

func (f *fakeSearchStore) KeywordSearch(ctx context.Context, sec common.SecurityContext, query string, limit int) ([]common.SearchResult, error) {
	f.keywordCalled = true
	f.gotLimit = limit
	if f.keywordBlocks {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.keywordErr != nil {
		return nil, f.keywordErr
	}
	return f.keyword, nil
}

func (f *fakeSearchStore) VectorSearch(ctx context.Context, sec common.SecurityContext, embedding []float32, limit int) ([]common.SearchResult, error) {
	f.vectorCalled = true
	if f.vectorErr != nil {
		return nil, f.vectorErr
	}
	return f.vector, nil
}

func (f *fakeSearchStore) GraphSearch(ctx context.Context, sec common.SecurityContext, query string, limit int) ([]common.SearchResult, error) {
	f.graphCalled = true
	if f.graphErr != nil {
		return nil, f.graphErr
	}
	return f.graph, nil
}

type fakeEmbedder struct {
	err    error
	called bool
}

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	f.called = true
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func testSec() common.SecurityContext {
	return common.SecurityContext{UserID: "user-1", TenantID: "tenant-a"}
}

func TestSearch_TriFusesAllModalities(t *testing.T) {
	st := &fakeSearchStore{
		keyword: results("c-k", "c-both"),
		vector:  results("c-v", "c-both"),
		graph:   results("c-g"),
	}
	e := NewEngine(st, &fakeEmbedder{})

	resp, err := e.Search(context.Background(), testSec(), Request{Query: "acme"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if resp.Mode != common.ModeTriSearch {
		t.Fatalf("mode = %q, want trisearch", resp.Mode)
	}
	if resp.KeywordCount != 2 || resp.VectorCount != 2 || resp.GraphCount != 1 {
		t.Fatalf("counts = %d/%d/%d, want 2/2/1", resp.KeywordCount, resp.VectorCount, resp.GraphCount)
	}
	if resp.Total != 4 {
		t.Fatalf("total = %d, want 4", resp.Total)
	}

	// c-both holds rank 2 in two modalities, which outweighs any single
	// rank 1; the three singles tie and fall back to chunk ID order.
	wantOrder := []string{"c-both", "c-g", "c-k", "c-v"}
	for i, id := range wantOrder {
		if resp.Results[i].ChunkID != id {
			t.Fatalf("results[%d] = %q, want %q", i, resp.Results[i].ChunkID, id)
		}
	}
}

func TestSearch_VectorOmittedWithoutEmbedder(t *testing.T) {
	st := &fakeSearchStore{
		keyword: results("c-k"),
		vector:  results("c-v"),
	}
	e := NewEngine(st, nil)

	resp, err := e.Search(context.Background(), testSec(), Request{Query: "acme", Mode: common.ModeTriSearch})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if st.vectorCalled {
		t.Fatal("vector search ran without an embedder")
	}
	if resp.VectorCount != 0 {
		t.Fatalf("vector count = %d, want 0", resp.VectorCount)
	}
	if resp.KeywordCount != 1 {
		t.Fatalf("keyword count = %d, want 1", resp.KeywordCount)
	}
}

func TestSearch_SingleModePassthrough(t *testing.T) {
	st := &fakeSearchStore{
		keyword: []common.SearchResult{
			{ChunkID: "c-1", Score: 0.9},
			{ChunkID: "c-2", Score: 0.4},
		},
		vector: results("c-v"),
		graph:  results("c-g"),
	}
	emb := &fakeEmbedder{}
	e := NewEngine(st, emb)

	resp, err := e.Search(context.Background(), testSec(), Request{Query: "acme", Mode: common.ModeKeyword})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if st.vectorCalled || st.graphCalled || emb.called {
		t.Fatal("keyword mode ran modalities it should not")
	}
	if resp.VectorCount != 0 || resp.GraphCount != 0 {
		t.Fatalf("counts = %d/%d, want 0/0", resp.VectorCount, resp.GraphCount)
	}
	if len(resp.Results) != 2 || resp.Results[0].ChunkID != "c-1" || resp.Results[0].Score != 0.9 {
		t.Fatalf("keyword results not passed through: %+v", resp.Results)
	}
}

func TestSearch_EmptyQueryRejected(t *testing.T) {
	e := NewEngine(&fakeSearchStore{}, nil)

	for _, query := range []string{"", "   ", "\t\n"} {
		_, err := e.Search(context.Background(), testSec(), Request{Query: query})
		if !errors.Is(err, common.ErrValidation) {
			t.Fatalf("Search(%q) error = %v, want ErrValidation", query, err)
		}
	}
}

func TestSearch_InvalidModeRejected(t *testing.T) {
	e := NewEngine(&fakeSearchStore{}, nil)

	_, err := e.Search(context.Background(), testSec(), Request{Query: "acme", Mode: "psychic"})
	if !errors.Is(err, common.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestSearch_DefaultModeTriSearch(t *testing.T) {
	st := &fakeSearchStore{graph: results("c-g")}
	e := NewEngine(st, nil)

	resp, err := e.Search(context.Background(), testSec(), Request{Query: "acme"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if resp.Mode != common.ModeTriSearch {
		t.Fatalf("mode = %q, want trisearch", resp.Mode)
	}
	if !st.keywordCalled || !st.graphCalled {
		t.Fatal("default mode did not run keyword and graph modalities")
	}
}

func TestSearch_ModalityErrorDegrades(t *testing.T) {
	st := &fakeSearchStore{
		keywordErr: errors.New("tsquery syntax error"),
		vector:     results("c-v"),
		graph:      results("c-g"),
	}
	e := NewEngine(st, &fakeEmbedder{})

	resp, err := e.Search(context.Background(), testSec(), Request{Query: "acme"})
	if err != nil {
		t.Fatalf("Search() error = %v, want degraded response", err)
	}
	if resp.KeywordCount != 0 {
		t.Fatalf("keyword count = %d, want 0 after failure", resp.KeywordCount)
	}
	if resp.Total != 2 {
		t.Fatalf("total = %d, want the two surviving modalities", resp.Total)
	}
}

func TestSearch_EmbedderErrorDegrades(t *testing.T) {
	st := &fakeSearchStore{keyword: results("c-k")}
	emb := &fakeEmbedder{err: errors.New("model not loaded")}
	e := NewEngine(st, emb)

	resp, err := e.Search(context.Background(), testSec(), Request{Query: "acme"})
	if err != nil {
		t.Fatalf("Search() error = %v, want degraded response", err)
	}
	if st.vectorCalled {
		t.Fatal("vector search ran after the embedding failed")
	}
	if resp.VectorCount != 0 || resp.KeywordCount != 1 {
		t.Fatalf("counts = %d/%d, want 0/1", resp.VectorCount, resp.KeywordCount)
	}
}

func TestSearch_TimeoutDegradesSlowModality(t *testing.T) {
	st := &fakeSearchStore{
		keywordBlocks: true,
		graph:         results("c-g"),
	}
	e := NewEngine(st, nil)

	resp, err := e.Search(context.Background(), testSec(), Request{Query: "acme", TimeoutMs: 50})
	if err != nil {
		t.Fatalf("Search() error = %v, want degraded response", err)
	}
	if resp.KeywordCount != 0 {
		t.Fatalf("keyword count = %d, want 0 after timeout", resp.KeywordCount)
	}
	if resp.GraphCount != 1 {
		t.Fatalf("graph count = %d, want 1", resp.GraphCount)
	}
}

func TestSearch_LimitDefaultsAndCap(t *testing.T) {
	st := &fakeSearchStore{}
	e := NewEngine(st, nil)

	resp, err := e.Search(context.Background(), testSec(), Request{Query: "acme", Mode: common.ModeKeyword})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if st.gotLimit != defaultLimit {
		t.Fatalf("limit passed = %d, want default %d", st.gotLimit, defaultLimit)
	}
	if resp.Results == nil {
		t.Fatal("results must be an empty slice, not nil")
	}

	_, err = e.Search(context.Background(), testSec(), Request{Query: "acme", Mode: common.ModeKeyword, Limit: 100000})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if st.gotLimit != maxLimit {
		t.Fatalf("limit passed = %d, want cap %d", st.gotLimit, maxLimit)
	}
}
