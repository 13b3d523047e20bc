package graph

import (
	"context"
	"strings"
	"testing"

	"github.com/ctxeco/backend/pkg/common"
)

func addTestNode(fs *fakeGraphStore, id, label, tenantID string) *common.GraphNode {
	n := &common.GraphNode{
		ID:         id,
		Label:      label,
		EntityType: EntityConcept,
		TenantID:   tenantID,
	}
	fs.nodes[tenantID+"|"+NormKey(label, EntityConcept)] = n
	fs.byID[id] = n
	return n
}

func addTestEdge(fs *fakeGraphStore, id, src, tgt, tenantID string, weight float64) {
	key := strings.Join([]string{tenantID, src, tgt, RelationCoOccurs}, "|")
	fs.edges[key] = &common.GraphEdge{
		ID:           id,
		SourceID:     src,
		TargetID:     tgt,
		Relationship: RelationCoOccurs,
		Weight:       weight,
		TenantID:     tenantID,
	}
}

func subgraphNodeIDs(sg *common.Subgraph) map[string]bool {
	ids := make(map[string]bool, len(sg.Nodes))
	for _, n := range sg.Nodes {
		ids[n.ID] = true
	}
	return ids
}

func TestQuery_DepthBoundsTraversal(t *testing.T) {
	fs := newFakeGraphStore()
	a := addTestNode(fs, "n-a", "Alpha", "tenant-a")
	addTestNode(fs, "n-b", "Bravo", "tenant-a")
	addTestNode(fs, "n-c", "Charlie", "tenant-a")
	addTestEdge(fs, "e-1", "n-a", "n-b", "tenant-a", 2.0)
	addTestEdge(fs, "e-2", "n-b", "n-c", "tenant-a", 1.0)
	fs.matches = []common.GraphNode{*a}

	b := NewBuilder(fs, &PatternExtractor{})
	sec := common.SecurityContext{TenantID: "tenant-a", UserID: "u-1"}

	one, err := b.Query(context.Background(), sec, "alpha", 1, 50)
	if err != nil {
		t.Fatalf("Query(depth=1) error = %v", err)
	}
	ids := subgraphNodeIDs(one)
	if len(one.Nodes) != 2 || !ids["n-a"] || !ids["n-b"] {
		t.Fatalf("depth 1 nodes = %v, want n-a and n-b", ids)
	}
	if len(one.Edges) != 1 || one.Edges[0].ID != "e-1" {
		t.Fatalf("depth 1 edges = %+v, want only e-1", one.Edges)
	}

	two, err := b.Query(context.Background(), sec, "alpha", 2, 50)
	if err != nil {
		t.Fatalf("Query(depth=2) error = %v", err)
	}
	ids = subgraphNodeIDs(two)
	if len(two.Nodes) != 3 || !ids["n-c"] {
		t.Fatalf("depth 2 nodes = %v, want n-a, n-b and n-c", ids)
	}
	if len(two.Edges) != 2 {
		t.Fatalf("depth 2 edges = %d, want 2", len(two.Edges))
	}
}

func TestQuery_LimitKeepsStrongestEdges(t *testing.T) {
	fs := newFakeGraphStore()
	hub := addTestNode(fs, "n-hub", "Hub", "tenant-a")
	spokes := []struct {
		id     string
		weight float64
	}{
		{"n-1", 5.0}, {"n-2", 4.0}, {"n-3", 3.0}, {"n-4", 2.0}, {"n-5", 1.0},
	}
	for _, s := range spokes {
		addTestNode(fs, s.id, "Spoke"+s.id, "tenant-a")
		addTestEdge(fs, "e-"+s.id, "n-hub", s.id, "tenant-a", s.weight)
	}
	fs.matches = []common.GraphNode{*hub}

	b := NewBuilder(fs, &PatternExtractor{})
	sec := common.SecurityContext{TenantID: "tenant-a", UserID: "u-1"}

	sg, err := b.Query(context.Background(), sec, "hub", 3, 2)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(sg.Edges) != 2 {
		t.Fatalf("edges = %d, want limit 2", len(sg.Edges))
	}
	if sg.Edges[0].Weight != 5.0 || sg.Edges[1].Weight != 4.0 {
		t.Fatalf("edge weights = %v/%v, want the two strongest", sg.Edges[0].Weight, sg.Edges[1].Weight)
	}
}

func TestQuery_NoMatchesReturnsEmptySubgraph(t *testing.T) {
	fs := newFakeGraphStore()
	b := NewBuilder(fs, &PatternExtractor{})
	sec := common.SecurityContext{TenantID: "tenant-a", UserID: "u-1"}

	sg, err := b.Query(context.Background(), sec, "nothing", 2, 50)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if sg.Nodes == nil || sg.Edges == nil {
		t.Fatalf("empty subgraph must have non-nil slices")
	}
	if len(sg.Nodes) != 0 || len(sg.Edges) != 0 {
		t.Fatalf("subgraph = %d nodes %d edges, want empty", len(sg.Nodes), len(sg.Edges))
	}
}

func TestQuery_DropsForeignTenantRows(t *testing.T) {
	fs := newFakeGraphStore()
	a := addTestNode(fs, "n-a", "Alpha", "tenant-a")
	x := addTestNode(fs, "n-x", "Alpha", "tenant-b")
	addTestNode(fs, "n-b", "Bravo", "tenant-a")
	addTestEdge(fs, "e-1", "n-a", "n-b", "tenant-a", 1.0)
	// a fuzzy matcher gone wrong hands back a foreign row
	fs.matches = []common.GraphNode{*a, *x}

	b := NewBuilder(fs, &PatternExtractor{})
	sec := common.SecurityContext{TenantID: "tenant-a", UserID: "u-1"}

	sg, err := b.Query(context.Background(), sec, "alpha", 2, 50)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	for _, n := range sg.Nodes {
		if n.TenantID != "tenant-a" {
			t.Fatalf("foreign tenant node %q leaked into subgraph", n.ID)
		}
	}
	ids := subgraphNodeIDs(sg)
	if !ids["n-a"] || !ids["n-b"] || ids["n-x"] {
		t.Fatalf("nodes = %v, want n-a and n-b only", ids)
	}
}

func TestStats_TenantScoped(t *testing.T) {
	fs := newFakeGraphStore()
	addTestNode(fs, "n-a", "Alpha", "tenant-a")
	addTestNode(fs, "n-b", "Bravo", "tenant-a")
	addTestNode(fs, "n-x", "Xray", "tenant-b")
	addTestEdge(fs, "e-1", "n-a", "n-b", "tenant-a", 1.0)

	b := NewBuilder(fs, &PatternExtractor{})
	stats, err := b.Stats(context.Background(), common.SecurityContext{TenantID: "tenant-a", UserID: "u-1"})
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Nodes != 2 || stats.Edges != 1 {
		t.Fatalf("stats = %d nodes %d edges, want 2/1", stats.Nodes, stats.Edges)
	}
	if stats.EntityTypes[EntityConcept] != 2 {
		t.Fatalf("entity types = %v, want 2 CONCEPT", stats.EntityTypes)
	}
}
