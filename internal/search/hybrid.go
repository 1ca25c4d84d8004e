package search

import (
	"context"
	"sort"

	"spiralmem/internal/store"
)

// HybridOptions configures a Hybrid search call (spec.md §4.7).
type HybridOptions struct {
	Model               string
	VectorWeight        float64
	KeywordWeight       float64
	SimilarityThreshold float64 // default 0.6 for hybrid
	Limit               int
	MemoryFilter        store.MemorySearchFilter
}

// contentKey identifies a result for hybrid dedup, preferring the
// chunk id when present and falling back to the memory id.
func contentKey(r Result) string {
	if r.Chunk != nil {
		return r.Chunk.ID
	}
	return r.Memory.ID
}

// Hybrid combines vector and keyword scores per contentId, weighting
// each by VectorWeight/KeywordWeight, and degrades gracefully to
// keyword-only if vector search fails (spec.md §4.7).
func (s *Searcher) Hybrid(ctx context.Context, query string, opts HybridOptions) ([]Result, []string, error) {
	var warnings []string
	threshold := opts.SimilarityThreshold
	if threshold <= 0 {
		threshold = defaultHybridThreshold
	}

	combined := make(map[string]*Result)
	var order []string

	if opts.VectorWeight > 0 {
		vecResults, err := s.Vector(ctx, query, VectorOptions{Model: opts.Model, SimilarityThreshold: threshold, Limit: opts.Limit})
		if err != nil {
			warnings = append(warnings, "vector search failed: "+err.Error())
		}
		for _, r := range vecResults {
			key := contentKey(r)
			weighted := r
			weighted.Similarity = r.Similarity * opts.VectorWeight
			weighted.MatchType = MatchVector
			if existing, ok := combined[key]; ok {
				existing.Similarity += weighted.Similarity
				existing.MatchType = MatchHybrid
				existing.Highlights = mergeHighlights(existing.Highlights, weighted.Highlights)
			} else {
				combined[key] = &weighted
				order = append(order, key)
			}
		}
	}

	if opts.KeywordWeight > 0 {
		keyResults, err := s.Keyword(query, opts.MemoryFilter)
		if err != nil {
			return nil, warnings, err
		}
		for _, r := range keyResults {
			key := contentKey(r)
			weighted := r
			weighted.Similarity = r.Similarity * opts.KeywordWeight
			weighted.MatchType = MatchKeyword
			if existing, ok := combined[key]; ok {
				existing.Similarity += weighted.Similarity
				existing.MatchType = MatchHybrid
				existing.Highlights = mergeHighlights(existing.Highlights, weighted.Highlights)
			} else {
				combined[key] = &weighted
				order = append(order, key)
			}
		}
	}

	results := make([]Result, 0, len(order))
	for _, key := range order {
		results = append(results, *combined[key])
	}
	sortResultsBySimilarityDesc(results)
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, warnings, nil
}

func mergeHighlights(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := make([]string, 0, len(a)+len(b))
	for _, h := range a {
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	for _, h := range b {
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	if len(out) > 3 {
		out = out[:3]
	}
	return out
}

func sortResultsBySimilarityDesc(results []Result) {
	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
}
