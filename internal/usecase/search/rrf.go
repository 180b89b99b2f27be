package search

import (
	"sort"

	"github.com/kailas-cloud/competisearch/internal/domain/route"
)

// rrfK is the rank-damping constant: larger values flatten the influence of
// top ranks.
const rrfK = 60.0

// fuseRRF merges per-route candidate lists with reciprocal rank fusion.
// Within each route candidates are ranked by raw score descending; a
// product's aggregate score accumulates 1/(rrfK+rank) over every route it
// appears in. Failed routes contribute nothing. Ties anywhere break
// lexicographically on product id so the ordering is reproducible.
func fuseRRF(outcomes []route.Outcome) ([]route.Fused, map[string][]route.Detail) {
	scores := make(map[string]float64)
	details := make(map[string][]route.Detail)

	for _, o := range outcomes {
		if !o.OK() || len(o.Candidates) == 0 {
			continue
		}
		cands := make([]route.Candidate, len(o.Candidates))
		copy(cands, o.Candidates)
		sort.SliceStable(cands, func(i, j int) bool {
			if cands[i].Score != cands[j].Score {
				return cands[i].Score > cands[j].Score
			}
			return cands[i].ProductID < cands[j].ProductID
		})
		for i, c := range cands {
			rank := i + 1
			scores[c.ProductID] += 1.0 / (rrfK + float64(rank))
			details[c.ProductID] = append(details[c.ProductID], route.Detail{
				Route:    o.Route,
				Rank:     rank,
				ScoreRaw: c.Score,
			})
		}
	}

	fused := make([]route.Fused, 0, len(scores))
	for pid, score := range scores {
		fused = append(fused, route.Fused{ProductID: pid, Score: score})
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].ProductID < fused[j].ProductID
	})
	return fused, details
}
