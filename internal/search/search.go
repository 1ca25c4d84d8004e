// Package search implements spec.md §4.7's three search modes
// (keyword, vector, hybrid) plus timestamp enrichment and compilation
// segment extraction, grounded on the teacher's gin search handlers
// generalized from a flat scenes table to spiralmem's
// memories/chunks/vector_embeddings schema.
package search

import (
	"strings"

	"spiralmem/internal/embedder"
	"spiralmem/internal/store"
)

// WordMatch is a single query-token hit with its millisecond range.
type WordMatch struct {
	Word    string
	StartMs int64
	EndMs   int64
}

// Timestamps carries a matched chunk's time range and word-level
// sub-matches (spec.md §4.7 searchWithTimestamps).
type Timestamps struct {
	StartMs     int64
	EndMs       int64
	WordMatches []WordMatch
}

// MatchType records which search mode(s) contributed a result.
type MatchType string

const (
	MatchKeyword MatchType = "keyword"
	MatchVector  MatchType = "vector"
	MatchHybrid  MatchType = "hybrid"
)

// Result is the shared shape returned by every search mode.
type Result struct {
	Memory     store.Memory
	Chunk      *store.Chunk
	Similarity float64
	Highlights []string
	Timestamps *Timestamps
	MatchType  MatchType
}

// Searcher wires the store and an optional embedder. Searcher reads
// only; it never mutates store state (spec.md §3 ownership rule).
type Searcher struct {
	store *store.Store
	embed *embedder.Embedder
}

// New builds a Searcher. embed may be nil, disabling vector search:
// Vector then returns an error, and Hybrid continues with keyword
// results only.
func New(st *store.Store, embed *embedder.Embedder) *Searcher {
	return &Searcher{store: st, embed: embed}
}

// tokenize splits a query on whitespace, lowercases, and drops tokens
// of length <= 2 (spec.md §4.7).
func tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// tokenSimilarity computes matchedQueryTokens/queryTokens against text
// (case-insensitive substring match per token).
func tokenSimilarity(text string, tokens []string) float64 {
	if len(tokens) == 0 {
		return 1
	}
	lower := strings.ToLower(text)
	matched := 0
	for _, t := range tokens {
		if strings.Contains(lower, t) {
			matched++
		}
	}
	return float64(matched) / float64(len(tokens))
}

// highlightWindows returns up to 3 windows of ±radius chars centered
// on the first occurrence of each token, in token order.
func highlightWindows(text string, tokens []string, maxWindows, radius int) []string {
	lower := strings.ToLower(text)
	var windows []string
	for _, t := range tokens {
		if len(windows) >= maxWindows {
			break
		}
		idx := strings.Index(lower, t)
		if idx < 0 {
			continue
		}
		start := idx - radius
		if start < 0 {
			start = 0
		}
		end := idx + len(t) + radius
		if end > len(text) {
			end = len(text)
		}
		windows = append(windows, text[start:end])
	}
	return windows
}
