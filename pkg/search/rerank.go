package search

import (
	"sort"

	"github.com/ctxeco/backend/pkg/common"
)

// rrfK is the reciprocal rank fusion constant. With k = 60 adjacent
// ranks score nearly alike, so appearing in several modalities
// outweighs a single top rank.
const rrfK = 60.0

type fusionCandidate struct {
	result      common.SearchResult
	keywordRank int
	vectorRank  int
	graphRank   int
}

func rrfComponent(rank int, weight float64) float64 {
	if rank <= 0 {
		return 0
	}
	return weight / (rrfK + float64(rank))
}

// fuseResults merges the three modality rankings with reciprocal rank
// fusion. Each chunk scores the sum of 1/(k+rank) over the modalities
// that returned it, rank being its 1-indexed position in that
// modality's list. Equal scores order by chunk ID so the fused list is
// deterministic; the list is cut to limit after scoring.
func fuseResults(keyword, vector, graph []common.SearchResult, limit int) []common.SearchResult {
	candidates := make(map[string]*fusionCandidate, len(keyword)+len(vector)+len(graph))
	order := make([]string, 0, len(keyword)+len(vector)+len(graph))

	collect := func(results []common.SearchResult, assign func(c *fusionCandidate, rank int)) {
		for i, r := range results {
			c, ok := candidates[r.ChunkID]
			if !ok {
				c = &fusionCandidate{result: r}
				candidates[r.ChunkID] = c
				order = append(order, r.ChunkID)
			}
			assign(c, i+1)
		}
	}

	collect(keyword, func(c *fusionCandidate, rank int) {
		if c.keywordRank == 0 {
			c.keywordRank = rank
		}
	})
	collect(vector, func(c *fusionCandidate, rank int) {
		if c.vectorRank == 0 {
			c.vectorRank = rank
		}
	})
	collect(graph, func(c *fusionCandidate, rank int) {
		if c.graphRank == 0 {
			c.graphRank = rank
		}
	})

	fused := make([]common.SearchResult, 0, len(order))
	for _, id := range order {
		c := candidates[id]
		r := c.result
		r.Score = rrfComponent(c.keywordRank, 1.0) +
			rrfComponent(c.vectorRank, 1.0) +
			rrfComponent(c.graphRank, 1.0)
		fused = append(fused, r)
	}

	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].Score == fused[j].Score {
			return fused[i].ChunkID < fused[j].ChunkID
		}
		return fused[i].Score > fused[j].Score
	})

	if limit > 0 && len(fused) > limit {
		fused = fused[:limit]
	}
	return fused
}
