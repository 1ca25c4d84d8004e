package search

import (
	"strings"

	"spiralmem/internal/store"
)

// WithTimestamps re-runs a keyword search and enriches every chunk
// hit with its [startMs,endMs] range and per-word sub-matches drawn
// from the owning memory's transcript (spec.md §4.7
// searchWithTimestamps). Results without a matching ProcessedContent
// row (no transcript) are returned unenriched rather than dropped.
func (s *Searcher) WithTimestamps(query string, f store.MemorySearchFilter) ([]Result, error) {
	results, err := s.Keyword(query, f)
	if err != nil {
		return nil, err
	}
	tokens := tokenize(query)

	for i := range results {
		r := &results[i]
		if r.Chunk == nil {
			continue
		}
		if r.Chunk.StartOffsetMs != nil && r.Chunk.EndOffsetMs != nil {
			r.Timestamps = &Timestamps{StartMs: *r.Chunk.StartOffsetMs, EndMs: *r.Chunk.EndOffsetMs}
		}

		pc, err := s.store.FindProcessedContentByMemoryID(r.Memory.ID)
		if err != nil {
			continue
		}
		matches := wordMatchesInRange(store.Transcript(pc.Transcript), tokens, r.Chunk.StartOffsetMs, r.Chunk.EndOffsetMs)
		if r.Timestamps == nil {
			r.Timestamps = &Timestamps{}
		}
		r.Timestamps.WordMatches = matches
	}
	return results, nil
}

// wordMatchesInRange collects every transcript word whose text
// contains a query token and whose millisecond range falls within
// [startMs,endMs] (nil bounds mean unbounded).
func wordMatchesInRange(t store.Transcript, tokens []string, startMs, endMs *int64) []WordMatch {
	var matches []WordMatch
	for _, seg := range t.Segments {
		for _, w := range seg.Words {
			if startMs != nil && w.EndMs < *startMs {
				continue
			}
			if endMs != nil && w.StartMs > *endMs {
				continue
			}
			lower := strings.ToLower(w.Word)
			for _, tok := range tokens {
				if strings.Contains(lower, tok) {
					matches = append(matches, WordMatch{Word: w.Word, StartMs: w.StartMs, EndMs: w.EndMs})
					break
				}
			}
		}
	}
	return matches
}
