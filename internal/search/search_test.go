package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeDropsShortWords(t *testing.T) {
	assert.Equal(t, []string{"hello", "world"}, tokenize("a Hello TO world"))
}

func TestTokenizeEmptyQuery(t *testing.T) {
	assert.Empty(t, tokenize("   "))
}

func TestTokenSimilarityNoTokensMatchesEverything(t *testing.T) {
	assert.Equal(t, 1.0, tokenSimilarity("anything", nil))
}

func TestTokenSimilarityPartialMatch(t *testing.T) {
	sim := tokenSimilarity("the quick brown fox", []string{"quick", "zebra"})
	assert.InDelta(t, 0.5, sim, 1e-9)
}

func TestHighlightWindowsFindsFirstOccurrence(t *testing.T) {
	windows := highlightWindows("the quick brown fox jumps", []string{"brown"}, 3, 5)
	assert.Len(t, windows, 1)
	assert.Contains(t, windows[0], "brown")
}

func TestHighlightWindowsSkipsUnmatchedTokens(t *testing.T) {
	windows := highlightWindows("the quick brown fox", []string{"zebra", "fox"}, 3, 5)
	assert.Len(t, windows, 1)
	assert.Contains(t, windows[0], "fox")
}
