package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarityIdenticalVectors(t *testing.T) {
	v := []float32{1, 2, 3}
	assert.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-9)
}

func TestCosineSimilarityOrthogonalVectors(t *testing.T) {
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
}

func TestCosineSimilarityMismatchedLengthReturnsZero(t *testing.T) {
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1, 2}, []float32{1}))
}

func TestCosineSimilarityZeroVectorReturnsZero(t *testing.T) {
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestCosineSimilarityEmptyReturnsZero(t *testing.T) {
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
}
