package search

import (
	"math"
	"testing"

	"github.com/ctxeco/backend/pkg/common"
)

func results(ids ...string) []common.SearchResult {
	out := make([]common.SearchResult, 0, len(ids))
	for _, id := range ids {
		out = append(out, common.SearchResult{ChunkID: id, DocumentID: "doc-" + id})
	}
	return out
}

func TestFuseResults_SumsReciprocalContributions(t *testing.T) {
	// the shared chunk sits at rank 1, 3 and 5
	keyword := results("c-shared", "c-k2")
	vector := results("c-v1", "c-v2", "c-shared")
	graph := results("c-g1", "c-g2", "c-g3", "c-g4", "c-shared")

	fused := fuseResults(keyword, vector, graph, 20)
	if len(fused) == 0 || fused[0].ChunkID != "c-shared" {
		t.Fatalf("expected c-shared first, got %+v", fused)
	}

	want := 1.0/(rrfK+1) + 1.0/(rrfK+3) + 1.0/(rrfK+5)
	if got := fused[0].Score; math.Abs(got-want) > 1e-12 {
		t.Fatalf("fused score = %v, want %v", got, want)
	}
	// ranks 1, 3 and 5 sum to roughly 0.0477
	if math.Abs(fused[0].Score-0.04767) > 1e-4 {
		t.Fatalf("fused score = %v, want about 0.0477", fused[0].Score)
	}
}

func TestFuseResults_AgreementBeatsSingleTopRank(t *testing.T) {
	keyword := results("c-top", "c-both")
	vector := results("c-vec", "c-both")

	fused := fuseResults(keyword, vector, nil, 20)
	if fused[0].ChunkID != "c-both" {
		t.Fatalf("expected the chunk both modalities agree on first, got %q", fused[0].ChunkID)
	}

	want := 2.0 / (rrfK + 2)
	if math.Abs(fused[0].Score-want) > 1e-12 {
		t.Fatalf("score = %v, want %v", fused[0].Score, want)
	}
}

func TestFuseResults_TieBreaksOnChunkID(t *testing.T) {
	// equal single-modality scores at rank 1 each
	keyword := results("c-zulu")
	vector := results("c-alpha")
	graph := results("c-mike")

	fused := fuseResults(keyword, vector, graph, 20)
	if len(fused) != 3 {
		t.Fatalf("fused length = %d, want 3", len(fused))
	}
	wantOrder := []string{"c-alpha", "c-mike", "c-zulu"}
	for i, id := range wantOrder {
		if fused[i].ChunkID != id {
			t.Fatalf("fused[%d] = %q, want %q", i, fused[i].ChunkID, id)
		}
	}
}

func TestFuseResults_TruncatesToLimit(t *testing.T) {
	keyword := results("c-1", "c-2", "c-3", "c-4", "c-5")

	fused := fuseResults(keyword, nil, nil, 3)
	if len(fused) != 3 {
		t.Fatalf("fused length = %d, want 3", len(fused))
	}
	for i, id := range []string{"c-1", "c-2", "c-3"} {
		if fused[i].ChunkID != id {
			t.Fatalf("fused[%d] = %q, want %q (keyword order preserved)", i, fused[i].ChunkID, id)
		}
	}
}

func TestFuseResults_DuplicateInOneModalityKeepsFirstRank(t *testing.T) {
	keyword := results("c-1", "c-1", "c-2")

	fused := fuseResults(keyword, nil, nil, 20)
	if len(fused) != 2 {
		t.Fatalf("fused length = %d, want 2", len(fused))
	}
	want := 1.0 / (rrfK + 1)
	if math.Abs(fused[0].Score-want) > 1e-12 {
		t.Fatalf("score = %v, want rank-1 contribution %v", fused[0].Score, want)
	}
}

func TestRRFComponent_ZeroForAbsentRank(t *testing.T) {
	if got := rrfComponent(0, 1.0); got != 0 {
		t.Fatalf("rrfComponent(0) = %v, want 0", got)
	}
	if got := rrfComponent(-3, 1.0); got != 0 {
		t.Fatalf("rrfComponent(-3) = %v, want 0", got)
	}
	if got := rrfComponent(1, 1.0); got != 1.0/61.0 {
		t.Fatalf("rrfComponent(1) = %v, want 1/61", got)
	}
}
