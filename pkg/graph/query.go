package graph

import (
	"context"
	"fmt"

	"github.com/ctxeco/backend/pkg/common"
	"github.com/ctxeco/backend/pkg/store"
)

const (
	// startNodeLimit caps how many fuzzy-matched nodes seed a traversal.
	startNodeLimit = 5
	// maxTraversalDepth bounds how many hops a query may walk.
	maxTraversalDepth = 5
	// defaultQueryLimit and maxQueryLimit bound the edge count of the
	// returned subgraph.
	defaultQueryLimit = 50
	maxQueryLimit     = 200
)

// Query fuzzy-matches entity against node labels and walks the graph
// breadth-first up to depth hops from the matched nodes. The returned
// subgraph holds every node reached and the edges between the explored
// layers, capped at limit edges, strongest first.
//
// Graph records carry no per-user ownership, so the access policy for
// them is the tenant clause; the subgraph is assembled in memory and
// checked again against the caller's tenant before it is returned.
func (b *Builder) Query(
	ctx context.Context,
	sec common.SecurityContext,
	entity string,
	depth int,
	limit int,
) (*common.Subgraph, error) {
	if depth < 1 {
		depth = 1
	}
	if depth > maxTraversalDepth {
		depth = maxTraversalDepth
	}
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}

	start, err := b.store.MatchNodes(ctx, sec.TenantID, entity, startNodeLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to match nodes: %w", err)
	}
	if len(start) == 0 {
		return &common.Subgraph{
			Nodes: []common.GraphNode{},
			Edges: []common.GraphEdge{},
		}, nil
	}

	nodes := make([]common.GraphNode, 0, len(start))
	nodeSeen := make(map[string]struct{}, len(start))
	for _, n := range start {
		nodes = append(nodes, n)
		nodeSeen[n.ID] = struct{}{}
	}

	edges := make([]common.GraphEdge, 0, limit)
	edgeSeen := make(map[string]struct{}, limit)

	frontier := make([]string, 0, len(start))
	for _, n := range start {
		frontier = append(frontier, n.ID)
	}

	for hop := 0; hop < depth && len(frontier) > 0 && len(edges) < limit; hop++ {
		touching, err := b.store.EdgesTouching(ctx, sec.TenantID, frontier)
		if err != nil {
			return nil, fmt.Errorf("failed to load edges: %w", err)
		}

		next := make([]string, 0, len(touching))
		for _, e := range touching {
			if len(edges) >= limit {
				break
			}
			if _, ok := edgeSeen[e.ID]; ok {
				continue
			}
			edgeSeen[e.ID] = struct{}{}
			edges = append(edges, e)

			for _, id := range []string{e.SourceID, e.TargetID} {
				if _, ok := nodeSeen[id]; !ok {
					nodeSeen[id] = struct{}{}
					next = append(next, id)
				}
			}
		}

		if len(next) == 0 {
			break
		}
		fetched, err := b.store.NodesByIDs(ctx, sec.TenantID, next)
		if err != nil {
			return nil, fmt.Errorf("failed to load nodes: %w", err)
		}
		nodes = append(nodes, fetched...)
		frontier = next
	}

	out := &common.Subgraph{
		Nodes: make([]common.GraphNode, 0, len(nodes)),
		Edges: make([]common.GraphEdge, 0, len(edges)),
	}
	for _, n := range nodes {
		if n.TenantID == sec.TenantID {
			out.Nodes = append(out.Nodes, n)
		}
	}
	for _, e := range edges {
		if e.TenantID == sec.TenantID {
			out.Edges = append(out.Edges, e)
		}
	}
	return out, nil
}

// Stats returns the caller's tenant-wide graph totals.
func (b *Builder) Stats(ctx context.Context, sec common.SecurityContext) (*store.GraphStats, error) {
	stats, err := b.store.GraphStats(ctx, sec.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph stats: %w", err)
	}
	return stats, nil
}
