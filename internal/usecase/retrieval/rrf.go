package retrieval

import (
	"sort"

	"github.com/kailas-cloud/kbroute/internal/domain/search/hit"
)

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

// fuseRRF merges lexical and vector results via Reciprocal Rank Fusion.
// score(d) = sum of 1/(k + rank_i(d)) for each ranking where d appears, rank 1-indexed.
// When a document appears in both lists, the lexical hit carries its fields.
// Ties keep input order: lexical before vector, then original rank.
// When one list is empty the other is returned as is, truncated.
func fuseRRF(lexical, vector []hit.Hit, topK int) []hit.Hit {
	switch {
	case len(lexical) == 0 && len(vector) == 0:
		return nil
	case len(vector) == 0:
		return truncate(lexical, topK)
	case len(lexical) == 0:
		return truncate(vector, topK)
	}

	type scored struct {
		hit   hit.Hit
		score float64
		order int // position of first appearance across lexical++vector
	}

	merged := make(map[string]*scored, len(lexical)+len(vector))
	order := 0
	add := func(list []hit.Hit) {
		for i := range list {
			h := list[i]
			s := 1.0 / float64(rrfK+i+1)
			if existing, ok := merged[h.ID()]; ok {
				existing.score += s
				continue
			}
			merged[h.ID()] = &scored{hit: h, score: s, order: order}
			order++
		}
	}
	add(lexical)
	add(vector)

	all := make([]*scored, 0, len(merged))
	for _, s := range merged {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].order < all[j].order
	})

	if len(all) > topK {
		all = all[:topK]
	}
	results := make([]hit.Hit, len(all))
	for i, s := range all {
		results[i] = s.hit.WithScore(s.score)
	}
	return results
}

func truncate(hits []hit.Hit, topK int) []hit.Hit {
	if len(hits) > topK {
		hits = hits[:topK]
	}
	out := make([]hit.Hit, len(hits))
	copy(out, hits)
	return out
}
