package search

import (
	"spiralmem/internal/store"
)

// Keyword performs a substring match on memories.title|content and on
// chunks.chunkText, scoring each hit by token coverage (spec.md §4.7).
// An empty query matches everything up to the limit, ordered by
// createdAt desc (spec.md §8 round-trip property).
func (s *Searcher) Keyword(query string, f store.MemorySearchFilter) ([]Result, error) {
	tokens := tokenize(query)

	memories, err := s.store.SearchMemories(query, f)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(memories))
	for _, m := range memories {
		sim := tokenSimilarity(m.Title+" "+m.Content, tokens)
		results = append(results, Result{
			Memory:     m,
			Similarity: sim,
			Highlights: highlightWindows(m.Content, tokens, 3, 50),
			MatchType:  MatchKeyword,
		})
	}

	if query != "" {
		memoryIDs := make([]string, len(memories))
		for i, m := range memories {
			memoryIDs[i] = m.ID
		}
		chunks, err := s.store.SearchChunks(query, memoryIDs, f.Limit)
		if err != nil {
			return nil, err
		}
		byMemory := make(map[string]store.Memory, len(memories))
		for _, m := range memories {
			byMemory[m.ID] = m
		}
		for i := range chunks {
			c := chunks[i]
			mem, ok := byMemory[c.MemoryID]
			if !ok {
				continue
			}
			results = append(results, Result{
				Memory:     mem,
				Chunk:      &c,
				Similarity: tokenSimilarity(c.ChunkText, tokens),
				Highlights: highlightWindows(c.ChunkText, tokens, 3, 50),
				MatchType:  MatchKeyword,
			})
		}
	}

	return results, nil
}
