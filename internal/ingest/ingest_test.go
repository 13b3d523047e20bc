package ingest

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/ctxeco/backend/pkg/audit"
	"github.com/ctxeco/backend/pkg/classify"
	"github.com/ctxeco/backend/pkg/common"
	"github.com/ctxeco/backend/pkg/extract"
	"github.com/ctxeco/backend/pkg/graph"
	"github.com/ctxeco/backend/pkg/store"
)

type fakeIngestStore struct {
	store.Storage

	doc       *common.Document
	docErr    error
	chunks    []common.Chunk
	chunksErr error
	timings   []store.StageTiming
	audits    []store.AuditRecord
	nodeCalls int
	edgeCalls int
}

func (f *fakeIngestStore) SaveDocument(ctx context.Context, d *common.Document) error {
	if f.docErr != nil {
		return f.docErr
	}
	f.doc = d
	return nil
}

func (f *fakeIngestStore) SaveChunks(ctx context.Context, cs []common.Chunk) error {
	if f.chunksErr != nil {
		return f.chunksErr
	}
	f.chunks = cs
	return nil
}

func (f *fakeIngestStore) SaveStageTiming(ctx context.Context, t store.StageTiming) error {
	f.timings = append(f.timings, t)
	return nil
}

func (f *fakeIngestStore) SaveAuditRecord(ctx context.Context, rec store.AuditRecord) error {
	f.audits = append(f.audits, rec)
	return nil
}

func (f *fakeIngestStore) UpsertNode(ctx context.Context, n store.NodeUpsert) (string, error) {
	f.nodeCalls++
	return n.ID, nil
}

func (f *fakeIngestStore) UpsertEdge(ctx context.Context, e store.EdgeUpsert) (bool, error) {
	f.edgeCalls++
	return true, nil
}

func (f *fakeIngestStore) stages() map[string]int {
	out := make(map[string]int, len(f.timings))
	for _, t := range f.timings {
		out[t.Stage] = t.Amount
	}
	return out
}

// fakeEngine stands in for one extraction engine behind the router.
type fakeEngine struct {
	name      string
	available bool
	fragments []extract.Fragment
	err       error
}

func (e *fakeEngine) Name() string    { return e.name }
func (e *fakeEngine) Available() bool { return e.available }

func (e *fakeEngine) Extract(ctx context.Context, filename string, data []byte) ([]extract.Fragment, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.fragments, nil
}

// fakeEmbedder is called concurrently by the embedding batcher.
type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(input)), 1}, nil
}

type fakeExtractor struct {
	mentions []graph.Mention
	err      error
}

func (f fakeExtractor) ExtractEntities(ctx context.Context, text string) ([]graph.Mention, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.mentions, nil
}

func narrativeFragments() []extract.Fragment {
	return []extract.Fragment{
		{Text: "alpha section", ElementType: extract.ElementText},
		{Text: "beta section", ElementType: extract.ElementNarrative},
	}
}

func testRouter(sem *fakeEngine) *extract.Router {
	hf := &fakeEngine{name: "high_fidelity", available: true}
	tab := &fakeEngine{name: "tabular", available: true}
	return extract.NewRouter(hf, sem, tab)
}

func testSec() common.SecurityContext {
	return common.SecurityContext{UserID: "user-1", TenantID: "tenant-a"}
}

func TestRun_PersistsDocumentAndChunks(t *testing.T) {
	st := &fakeIngestStore{}
	sem := &fakeEngine{name: "semantic", available: true, fragments: narrativeFragments()}
	ing := New(st, classify.New(classify.DefaultConfig()), testRouter(sem), nil,
		WithAuditor(audit.NewRecorder(st)))

	res, err := ing.Run(context.Background(), testSec(), Request{
		Filename:        "meeting-notes.md",
		Data:            []byte("irrelevant"),
		MimeType:        "text/markdown",
		StorageKey:      "uploads/meeting-notes.md",
		SourceConnector: "Local",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.DocumentID == "" {
		t.Fatal("Run() returned empty document ID")
	}
	if res.ChunksProcessed != 2 {
		t.Errorf("ChunksProcessed = %d, want 2", res.ChunksProcessed)
	}
	if res.Degraded {
		t.Error("Degraded = true, want false")
	}
	if res.Classification.DataClass != common.EphemeralStream {
		t.Errorf("DataClass = %q, want %q", res.Classification.DataClass, common.EphemeralStream)
	}

	doc := st.doc
	if doc == nil {
		t.Fatal("document was not saved")
	}
	if doc.ID != res.DocumentID {
		t.Errorf("saved document ID = %q, want %q", doc.ID, res.DocumentID)
	}
	if doc.ChunkCount != 2 || doc.FileSizeBytes != int64(len("irrelevant")) {
		t.Errorf("saved document counts = (%d, %d), want (2, %d)",
			doc.ChunkCount, doc.FileSizeBytes, len("irrelevant"))
	}
	if doc.StorageKey != "uploads/meeting-notes.md" || doc.SourceConnector != "Local" {
		t.Errorf("saved document source = (%q, %q)", doc.StorageKey, doc.SourceConnector)
	}
	if !strings.HasPrefix(doc.ProvenanceID, "e-") {
		t.Errorf("ProvenanceID = %q, want e- prefix", doc.ProvenanceID)
	}

	if len(st.chunks) != 2 {
		t.Fatalf("saved %d chunks, want 2", len(st.chunks))
	}
	for i, c := range st.chunks {
		if c.DocumentID != doc.ID || c.Ordinal != i {
			t.Errorf("chunk %d identity = (%q, %d)", i, c.DocumentID, c.Ordinal)
		}
		if c.DataClass != common.EphemeralStream || c.ProvenanceID != doc.ProvenanceID {
			t.Errorf("chunk %d inherited = (%q, %q)", i, c.DataClass, c.ProvenanceID)
		}
		if c.DecayRate != 0.50 {
			t.Errorf("chunk %d DecayRate = %v, want 0.50", i, c.DecayRate)
		}
		if c.Embedding != nil {
			t.Errorf("chunk %d has embedding without an embedder", i)
		}
	}
	if st.chunks[0].ID != doc.ID+"-0000" || st.chunks[1].ID != doc.ID+"-0001" {
		t.Errorf("chunk IDs = (%q, %q)", st.chunks[0].ID, st.chunks[1].ID)
	}
}

func TestRun_OwnershipDefaultsFromCaller(t *testing.T) {
	st := &fakeIngestStore{}
	sem := &fakeEngine{name: "semantic", available: true, fragments: narrativeFragments()}
	ing := New(st, classify.New(classify.DefaultConfig()), testRouter(sem), nil)

	_, err := ing.Run(context.Background(), testSec(), Request{
		Filename: "notes.md",
		Data:     []byte("x"),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	own := st.doc.Ownership
	if own.TenantID != "tenant-a" || own.UserID != "user-1" {
		t.Errorf("ownership = (%q, %q), want caller identity", own.TenantID, own.UserID)
	}
	if own.AccessLevel != common.AccessPrivate {
		t.Errorf("AccessLevel = %q, want %q", own.AccessLevel, common.AccessPrivate)
	}
	if !reflect.DeepEqual(st.chunks[0].Ownership, own) {
		t.Error("chunk ownership differs from document ownership")
	}
}

func TestRun_ExplicitOwnershipPreserved(t *testing.T) {
	st := &fakeIngestStore{}
	sem := &fakeEngine{name: "semantic", available: true, fragments: narrativeFragments()}
	ing := New(st, classify.New(classify.DefaultConfig()), testRouter(sem), nil)

	_, err := ing.Run(context.Background(), testSec(), Request{
		Filename: "sync.md",
		Data:     []byte("x"),
		Ownership: common.Ownership{
			UserID:      common.SystemOwnerID,
			AccessLevel: common.AccessTenant,
		},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	own := st.doc.Ownership
	if own.UserID != common.SystemOwnerID {
		t.Errorf("UserID = %q, want %q", own.UserID, common.SystemOwnerID)
	}
	if own.AccessLevel != common.AccessTenant {
		t.Errorf("AccessLevel = %q, want %q", own.AccessLevel, common.AccessTenant)
	}
	if own.TenantID != "tenant-a" {
		t.Errorf("TenantID = %q, want tenant from caller", own.TenantID)
	}
}

func TestRun_ValidationFailures(t *testing.T) {
	st := &fakeIngestStore{}
	sem := &fakeEngine{name: "semantic", available: true, fragments: narrativeFragments()}
	ing := New(st, classify.New(classify.DefaultConfig()), testRouter(sem), nil)

	tests := []struct {
		name string
		req  Request
	}{
		{"empty filename", Request{Filename: "   ", Data: []byte("x")}},
		{"empty data", Request{Filename: "a.md"}},
		{"unknown force class", Request{Filename: "a.md", Data: []byte("x"), ForceClass: "cosmic"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ing.Run(context.Background(), testSec(), tt.req)
			if !errors.Is(err, common.ErrValidation) {
				t.Fatalf("Run() error = %v, want ErrValidation", err)
			}
		})
	}
	if st.doc != nil {
		t.Error("invalid request still saved a document")
	}
}

func TestRun_ForcedClassRoutesAndStamps(t *testing.T) {
	st := &fakeIngestStore{}
	row := 0
	tab := &fakeEngine{name: "tabular", available: true, fragments: []extract.Fragment{
		{Text: "id=1 status=ok", ElementType: extract.ElementStructuredRow, RowIndex: &row},
	}}
	hf := &fakeEngine{name: "high_fidelity", available: true}
	sem := &fakeEngine{name: "semantic", available: true, err: errors.New("should not run")}
	ing := New(st, classify.New(classify.DefaultConfig()), extract.NewRouter(hf, sem, tab), nil)

	res, err := ing.Run(context.Background(), testSec(), Request{
		Filename:   "notes.md",
		Data:       []byte("x"),
		ForceClass: common.OperationalPulse,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.Classification.DataClass != common.OperationalPulse {
		t.Errorf("DataClass = %q, want %q", res.Classification.DataClass, common.OperationalPulse)
	}
	if res.Classification.Reason != "Forced classification override" {
		t.Errorf("Reason = %q", res.Classification.Reason)
	}
	if res.Classification.DecayRate != 0.90 {
		t.Errorf("DecayRate = %v, want 0.90", res.Classification.DecayRate)
	}
	if len(st.chunks) != 1 || st.chunks[0].ElementType != extract.ElementStructuredRow {
		t.Fatalf("tabular engine did not produce the chunk: %+v", st.chunks)
	}
}

func TestRun_ExtractionErrorIsTerminal(t *testing.T) {
	st := &fakeIngestStore{}
	sem := &fakeEngine{name: "semantic", available: true, err: errors.New("parser exploded")}
	ing := New(st, classify.New(classify.DefaultConfig()), testRouter(sem), nil,
		WithAuditor(audit.NewRecorder(st)))

	_, err := ing.Run(context.Background(), testSec(), Request{
		Filename: "notes.md",
		Data:     []byte("x"),
	})
	if !errors.Is(err, common.ErrExtraction) {
		t.Fatalf("Run() error = %v, want ErrExtraction", err)
	}
	if st.doc != nil {
		t.Error("document saved despite extraction failure")
	}

	if len(st.audits) != 1 {
		t.Fatalf("recorded %d audit events, want 1", len(st.audits))
	}
	if st.audits[0].EventType != "resource.ingest" || st.audits[0].Outcome != audit.OutcomeFailure {
		t.Errorf("audit = (%q, %q)", st.audits[0].EventType, st.audits[0].Outcome)
	}
}

func TestRun_EmbedderAttachesVectors(t *testing.T) {
	st := &fakeIngestStore{}
	sem := &fakeEngine{name: "semantic", available: true, fragments: narrativeFragments()}
	emb := &fakeEmbedder{}
	ing := New(st, classify.New(classify.DefaultConfig()), testRouter(sem), nil,
		WithEmbedder(emb))

	_, err := ing.Run(context.Background(), testSec(), Request{
		Filename: "notes.md",
		Data:     []byte("x"),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if emb.calls != 2 {
		t.Errorf("embedder called %d times, want 2", emb.calls)
	}
	for i, c := range st.chunks {
		if len(c.Embedding) == 0 {
			t.Errorf("chunk %d missing embedding", i)
		}
	}
	if got := st.stages()["embed"]; got != 2 {
		t.Errorf("embed stage amount = %d, want 2", got)
	}
}

func TestRun_EmbedderFailureStoresWithoutVectors(t *testing.T) {
	st := &fakeIngestStore{}
	sem := &fakeEngine{name: "semantic", available: true, fragments: narrativeFragments()}
	ing := New(st, classify.New(classify.DefaultConfig()), testRouter(sem), nil,
		WithEmbedder(&fakeEmbedder{err: errors.New("model offline")}))

	res, err := ing.Run(context.Background(), testSec(), Request{
		Filename: "notes.md",
		Data:     []byte("x"),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.ChunksProcessed != 2 {
		t.Errorf("ChunksProcessed = %d, want 2", res.ChunksProcessed)
	}
	for i, c := range st.chunks {
		if c.Embedding != nil {
			t.Errorf("chunk %d has embedding despite embedder failure", i)
		}
	}
}

func TestRun_PersistErrorSurfaces(t *testing.T) {
	st := &fakeIngestStore{docErr: errors.New("db down")}
	sem := &fakeEngine{name: "semantic", available: true, fragments: narrativeFragments()}
	ing := New(st, classify.New(classify.DefaultConfig()), testRouter(sem), nil,
		WithAuditor(audit.NewRecorder(st)))

	_, err := ing.Run(context.Background(), testSec(), Request{
		Filename: "notes.md",
		Data:     []byte("x"),
	})
	if err == nil || !strings.Contains(err.Error(), "failed to save document") {
		t.Fatalf("Run() error = %v, want save document failure", err)
	}
	if len(st.audits) != 1 || st.audits[0].Outcome != audit.OutcomeFailure {
		t.Fatalf("audit trail = %+v, want one failure", st.audits)
	}
}

func TestRun_GraphBuildFailureIsBestEffort(t *testing.T) {
	st := &fakeIngestStore{}
	sem := &fakeEngine{name: "semantic", available: true, fragments: narrativeFragments()}
	builder := graph.NewBuilder(st, fakeExtractor{err: errors.New("extractor offline")})
	ing := New(st, classify.New(classify.DefaultConfig()), testRouter(sem), builder,
		WithAuditor(audit.NewRecorder(st)))

	res, err := ing.Run(context.Background(), testSec(), Request{
		Filename: "notes.md",
		Data:     []byte("x"),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.ChunksProcessed != 2 || st.doc == nil {
		t.Fatal("document was not persisted before graph failure")
	}

	var types []string
	for _, rec := range st.audits {
		types = append(types, rec.EventType+":"+rec.Outcome)
	}
	joined := strings.Join(types, ",")
	if !strings.Contains(joined, "graph.build:failure") {
		t.Errorf("audit trail %q missing graph failure", joined)
	}
	if !strings.Contains(joined, "resource.ingest:success") {
		t.Errorf("audit trail %q missing ingest success", joined)
	}
}

func TestRun_GraphBuildWritesNodesAndEdges(t *testing.T) {
	st := &fakeIngestStore{}
	sem := &fakeEngine{name: "semantic", available: true, fragments: []extract.Fragment{
		{Text: "Alpha Corp met Beta Ltd", ElementType: extract.ElementText},
	}}
	builder := graph.NewBuilder(st, fakeExtractor{mentions: []graph.Mention{
		{Label: "Alpha Corp", Type: "organization"},
		{Label: "Beta Ltd", Type: "organization"},
	}})
	ing := New(st, classify.New(classify.DefaultConfig()), testRouter(sem), builder)

	_, err := ing.Run(context.Background(), testSec(), Request{
		Filename: "notes.md",
		Data:     []byte("x"),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if st.nodeCalls != 2 || st.edgeCalls != 1 {
		t.Errorf("graph writes = (%d nodes, %d edges), want (2, 1)", st.nodeCalls, st.edgeCalls)
	}
	if got := st.stages()["graph"]; got != 3 {
		t.Errorf("graph stage amount = %d, want 3", got)
	}
}

func TestRun_StageTimingsCoverPipeline(t *testing.T) {
	st := &fakeIngestStore{}
	sem := &fakeEngine{name: "semantic", available: true, fragments: narrativeFragments()}
	ing := New(st, classify.New(classify.DefaultConfig()), testRouter(sem), nil,
		WithEmbedder(&fakeEmbedder{}))

	_, err := ing.Run(context.Background(), testSec(), Request{
		Filename: "notes.md",
		Data:     []byte("x"),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	stages := st.stages()
	for _, want := range []string{"classify", "extract", "embed", "persist"} {
		if _, ok := stages[want]; !ok {
			t.Errorf("stage %q was not recorded", want)
		}
	}
	if _, ok := stages["graph"]; ok {
		t.Error("graph stage recorded without a builder")
	}
	for _, tm := range st.timings {
		if tm.TenantID != "tenant-a" {
			t.Errorf("timing tenant = %q, want tenant-a", tm.TenantID)
		}
	}
}

func TestRun_SensitivityFloorRaisesClassification(t *testing.T) {
	st := &fakeIngestStore{}
	sem := &fakeEngine{name: "semantic", available: true, fragments: narrativeFragments()}
	ing := New(st, classify.New(classify.DefaultConfig()), testRouter(sem), nil)

	res, err := ing.Run(context.Background(), testSec(), Request{
		Filename:         "meeting-notes.md",
		Data:             []byte("plain notes"),
		SensitivityFloor: common.SensitivityHigh,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Classification.SensitivityLevel != common.SensitivityHigh {
		t.Errorf("SensitivityLevel = %q, want %q",
			res.Classification.SensitivityLevel, common.SensitivityHigh)
	}
	if st.doc.Classification.SensitivityLevel != common.SensitivityHigh {
		t.Errorf("persisted SensitivityLevel = %q, want %q",
			st.doc.Classification.SensitivityLevel, common.SensitivityHigh)
	}
}

func TestRun_SensitivityFloorNeverLowers(t *testing.T) {
	st := &fakeIngestStore{}
	sem := &fakeEngine{name: "semantic", available: true, fragments: narrativeFragments()}
	ing := New(st, classify.New(classify.DefaultConfig()), testRouter(sem), nil)

	res, err := ing.Run(context.Background(), testSec(), Request{
		Filename:         "secret-rotation-plan.md",
		Data:             []byte("rotate the signing keys"),
		SensitivityFloor: common.SensitivityModerate,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Classification.SensitivityLevel != common.SensitivityHigh {
		t.Errorf("SensitivityLevel = %q, want %q",
			res.Classification.SensitivityLevel, common.SensitivityHigh)
	}
}
