package search

import (
	"context"
	"math"
	"sort"

	"spiralmem/internal/embedder"
	"spiralmem/internal/store"
)

const (
	defaultVectorOnlyThreshold = 0.7
	defaultHybridThreshold     = 0.6
)

// CosineSimilarity computes (a·b)/(‖a‖·‖b‖), returning 0 if either
// vector is zero (spec.md §8 testable property 2).
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// VectorOptions configures a Vector search call.
type VectorOptions struct {
	Model              string
	SimilarityThreshold float64 // default 0.7
	Limit              int
}

// Vector embeds the query, scores every stored embedding for the same
// model by cosine similarity, retains those at/above the threshold,
// and enriches hits with their chunk/memory content (spec.md §4.7).
func (s *Searcher) Vector(ctx context.Context, query string, opts VectorOptions) ([]Result, error) {
	if s.embed == nil || !s.embed.Available() {
		return nil, errEmbedderUnavailable
	}
	if opts.SimilarityThreshold <= 0 {
		opts.SimilarityThreshold = defaultVectorOnlyThreshold
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}

	embResults, _, err := s.embed.Embed(ctx, []string{query}, embedder.Options{Model: opts.Model})
	if err != nil {
		return nil, err
	}
	if len(embResults) == 0 || embResults[0].Err != nil {
		return nil, errEmbedderUnavailable
	}
	queryVec := embResults[0].Vector

	candidates, err := s.store.FindEmbeddingsByModel(opts.Model)
	if err != nil {
		return nil, err
	}

	type scored struct {
		embedding store.VectorEmbedding
		score     float64
	}
	var ranked []scored
	for _, e := range candidates {
		score := CosineSimilarity(queryVec, e.Vector)
		if score >= opts.SimilarityThreshold {
			ranked = append(ranked, scored{embedding: e, score: score})
		}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > opts.Limit {
		ranked = ranked[:opts.Limit]
	}

	results := make([]Result, 0, len(ranked))
	for _, r := range ranked {
		res, err := s.enrichEmbedding(r.embedding, r.score)
		if err != nil {
			continue
		}
		results = append(results, *res)
	}
	return results, nil
}

func (s *Searcher) enrichEmbedding(e store.VectorEmbedding, score float64) (*Result, error) {
	switch e.ContentType {
	case store.EmbeddingContentChunk:
		chunk, err := s.store.FindChunkByID(e.ContentID)
		if err != nil {
			return nil, err
		}
		memory, err := s.store.FindMemoryByID(chunk.MemoryID)
		if err != nil {
			return nil, err
		}
		return &Result{Memory: *memory, Chunk: chunk, Similarity: score, MatchType: MatchVector}, nil
	case store.EmbeddingContentMemory:
		memory, err := s.store.FindMemoryByID(e.ContentID)
		if err != nil {
			return nil, err
		}
		return &Result{Memory: *memory, Similarity: score, MatchType: MatchVector}, nil
	default:
		return nil, errUnsupportedContentType
	}
}

type searchError string

func (e searchError) Error() string { return string(e) }

const (
	errEmbedderUnavailable    = searchError("embedder unavailable")
	errUnsupportedContentType = searchError("unsupported embedding content type for enrichment")
)
