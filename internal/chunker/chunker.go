// Package chunker splits a transcript into overlapping, sentence-aligned
// chunks that carry millisecond timestamps, grounded on the teacher's
// segment-accumulation style (internal/ffmpeg subtitle handling) and
// generalized to spec.md §4.4's chunking algorithm.
package chunker

import (
	"strings"

	"spiralmem/internal/store"
)

// Config controls chunk boundaries.
type Config struct {
	ChunkSize          int  // chars, default 400
	OverlapSize        int  // chars, default 80 (20% of size)
	PreserveTimestamps bool // default true
	SentenceBreak      bool // default true
}

// DefaultConfig matches spec.md §4.4's defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:          400,
		OverlapSize:        80,
		PreserveTimestamps: true,
		SentenceBreak:      true,
	}
}

// Chunk is one emitted piece of a transcript.
type Chunk struct {
	Content         string
	ChunkIndex      int
	StartTimeMs     *int64
	EndTimeMs       *int64
	WordCount       int
	CharacterCount  int
}

// Result is the full chunking output plus the spec-required coverage
// metric.
type Result struct {
	Chunks             []Chunk
	TimestampCoverage  float64 // fraction of chunks carrying both start and end times
}

// word is one lexical unit walked out of the transcript's segments,
// carrying the millisecond offset of the segment it came from.
type word struct {
	text       string
	startMs    int64
	endMs      int64
}

// Chunk walks transcript segments, accumulating text until ChunkSize
// is reached, backing off to a sentence boundary when SentenceBreak is
// set, and advancing by (ChunkSize - OverlapSize) so that overlapping
// text may reappear in the following chunk while chunkIndex always
// increments strictly (spec.md §4.4 steps 1-3).
func Chunk(transcript store.Transcript, cfg Config) Result {
	if cfg.ChunkSize <= 0 {
		cfg = DefaultConfig()
	}
	words := flattenWords(transcript)
	if len(words) == 0 {
		return Result{}
	}

	advance := cfg.ChunkSize - cfg.OverlapSize
	if advance <= 0 {
		advance = cfg.ChunkSize
	}

	var chunks []Chunk
	pos := 0
	index := 0
	for pos < len(words) {
		end := consumeToSize(words, pos, cfg.ChunkSize)
		if cfg.SentenceBreak {
			end = backOffToSentence(words, pos, end)
		}
		if end <= pos {
			end = pos + 1
		}
		if end > len(words) {
			end = len(words)
		}

		chunkWords := words[pos:end]
		content := joinWords(chunkWords)

		var startMs, endMs *int64
		if cfg.PreserveTimestamps {
			startMs, endMs = timeRange(chunkWords)
		}

		chunks = append(chunks, Chunk{
			Content:        content,
			ChunkIndex:     index,
			StartTimeMs:    startMs,
			EndTimeMs:      endMs,
			WordCount:      len(chunkWords),
			CharacterCount: len(content),
		})
		index++

		// Advance by (chunkSize - overlapSize) worth of characters,
		// measured in words so the next window starts inside the
		// overlap region rather than past it.
		advanced := advanceWords(words, pos, advance)
		if advanced <= pos {
			advanced = end
		}
		if advanced >= len(words) {
			break
		}
		pos = advanced
	}

	coverage := 0.0
	if len(chunks) > 0 {
		withBoth := 0
		for _, c := range chunks {
			if c.StartTimeMs != nil && c.EndTimeMs != nil {
				withBoth++
			}
		}
		coverage = float64(withBoth) / float64(len(chunks))
	}

	return Result{Chunks: chunks, TimestampCoverage: coverage}
}

// flattenWords splits every segment's text on whitespace, tagging each
// resulting word with its segment's millisecond span. Segments without
// word-level timestamps still contribute words tagged with the
// segment's own start/end (word-level timestamps may be absent per
// spec.md §4.3).
func flattenWords(t store.Transcript) []word {
	var out []word
	for _, seg := range t.Segments {
		if len(seg.Words) > 0 {
			for _, w := range seg.Words {
				out = append(out, word{text: w.Word, startMs: w.StartMs, endMs: w.EndMs})
			}
			continue
		}
		startMs := int64(seg.StartSec * 1000)
		endMs := int64(seg.EndSec * 1000)
		for _, tok := range strings.Fields(seg.Text) {
			out = append(out, word{text: tok, startMs: startMs, endMs: endMs})
		}
	}
	return out
}

// consumeToSize returns the word index at which accumulated text
// length (with single-space joins) first reaches size, starting at
// start.
func consumeToSize(words []word, start, size int) int {
	length := 0
	for i := start; i < len(words); i++ {
		add := len(words[i].text)
		if length > 0 {
			add++ // joining space
		}
		if length+add > size && length > 0 {
			return i
		}
		length += add
	}
	return len(words)
}

// backOffToSentence looks for the last sentence terminator within the
// final 25% of the [start,end) window and, if found, ends the chunk
// there instead (spec.md §4.4 step 1).
func backOffToSentence(words []word, start, end int) int {
	if end <= start {
		return end
	}
	windowLen := end - start
	lookback := start + (windowLen * 3 / 4)
	for i := end - 1; i >= lookback && i > start; i-- {
		if endsSentence(words[i].text) {
			return i + 1
		}
	}
	return end
}

func endsSentence(tok string) bool {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return false
	}
	last := tok[len(tok)-1]
	return last == '.' || last == '!' || last == '?'
}

// advanceWords finds the word index whose cumulative length from start
// first reaches advanceChars.
func advanceWords(words []word, start, advanceChars int) int {
	length := 0
	for i := start; i < len(words); i++ {
		add := len(words[i].text)
		if length > 0 {
			add++
		}
		length += add
		if length >= advanceChars {
			return i + 1
		}
	}
	return len(words)
}

func joinWords(ws []word) string {
	parts := make([]string, len(ws))
	for i, w := range ws {
		parts[i] = w.text
	}
	return strings.Join(parts, " ")
}

func timeRange(ws []word) (*int64, *int64) {
	if len(ws) == 0 {
		return nil, nil
	}
	start := ws[0].startMs
	end := ws[0].endMs
	for _, w := range ws[1:] {
		if w.startMs < start {
			start = w.startMs
		}
		if w.endMs > end {
			end = w.endMs
		}
	}
	return &start, &end
}
