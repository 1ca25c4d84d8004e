package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spiralmem/internal/store"
)

func wordsTranscript(words []store.TranscriptWord) store.Transcript {
	return store.Transcript{
		Segments: []store.TranscriptSegment{{Words: words}},
	}
}

func genWords(n int) []store.TranscriptWord {
	out := make([]store.TranscriptWord, n)
	for i := range out {
		out[i] = store.TranscriptWord{Word: "word", StartMs: int64(i * 100), EndMs: int64(i*100 + 90)}
	}
	return out
}

func TestChunkEmptyTranscript(t *testing.T) {
	result := Chunk(store.Transcript{}, DefaultConfig())
	assert.Empty(t, result.Chunks)
}

func TestChunkProducesOverlappingWindows(t *testing.T) {
	transcript := wordsTranscript(genWords(200))
	cfg := Config{ChunkSize: 40, OverlapSize: 10, PreserveTimestamps: true, SentenceBreak: false}

	result := Chunk(transcript, cfg)
	require.NotEmpty(t, result.Chunks)

	for i, c := range result.Chunks {
		assert.Equal(t, i, c.ChunkIndex, "chunk index must increment strictly")
		assert.NotEmpty(t, c.Content)
		assert.NotNil(t, c.StartTimeMs)
		assert.NotNil(t, c.EndTimeMs)
	}
}

func TestChunkFallsBackToDefaultConfig(t *testing.T) {
	transcript := wordsTranscript(genWords(50))
	result := Chunk(transcript, Config{})
	assert.NotEmpty(t, result.Chunks)
}

func TestChunkSentenceBreakStaysWithinWindow(t *testing.T) {
	words := []store.TranscriptWord{
		{Word: "Hello", StartMs: 0, EndMs: 100},
		{Word: "world.", StartMs: 100, EndMs: 200},
		{Word: "Next", StartMs: 200, EndMs: 300},
		{Word: "sentence", StartMs: 300, EndMs: 400},
	}
	cfg := Config{ChunkSize: 12, OverlapSize: 2, SentenceBreak: true, PreserveTimestamps: true}
	result := Chunk(wordsTranscript(words), cfg)
	require.NotEmpty(t, result.Chunks)
	assert.Equal(t, "Hello world.", result.Chunks[0].Content)
}
