package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"spiralmem/internal/platform"
	"spiralmem/internal/store"
)

// SegmentOptions bounds compilation-segment extraction (spec.md §4.7).
type SegmentOptions struct {
	MinDurationMs int64
	MaxDurationMs int64
	Limit         int
}

// Segment is one flat compilation-segment row.
type Segment struct {
	Source     string
	Title      string
	Text       string
	StartMs    int64
	EndMs      int64
	DurationMs int64
	Speaker    string
}

// CutHint renders a ffmpeg-style trim hint for this segment.
func (seg Segment) CutHint() string {
	return fmt.Sprintf("-ss %.3f -to %.3f", float64(seg.StartMs)/1000, float64(seg.EndMs)/1000)
}

// ExtractSegments enumerates every wordMatch from a timestamped search,
// groups matches from the same chunk into a single segment spanning
// its matched words, and filters by duration (spec.md §4.7
// compilation-segment extraction).
func (s *Searcher) ExtractSegments(query string, f store.MemorySearchFilter, opts SegmentOptions) ([]Segment, error) {
	results, err := s.WithTimestamps(query, f)
	if err != nil {
		return nil, err
	}

	var segments []Segment
	for _, r := range results {
		if r.Chunk == nil || r.Timestamps == nil || len(r.Timestamps.WordMatches) == 0 {
			continue
		}
		start := r.Timestamps.WordMatches[0].StartMs
		end := r.Timestamps.WordMatches[0].EndMs
		for _, wm := range r.Timestamps.WordMatches[1:] {
			if wm.StartMs < start {
				start = wm.StartMs
			}
			if wm.EndMs > end {
				end = wm.EndMs
			}
		}
		duration := end - start
		if opts.MinDurationMs > 0 && duration < opts.MinDurationMs {
			continue
		}
		if opts.MaxDurationMs > 0 && duration > opts.MaxDurationMs {
			continue
		}
		speaker, _ := r.Memory.Metadata["speaker"].(string)
		segments = append(segments, Segment{
			Source:     r.Memory.Source,
			Title:      r.Memory.Title,
			Text:       r.Chunk.ChunkText,
			StartMs:    start,
			EndMs:      end,
			DurationMs: duration,
			Speaker:    speaker,
		})
		if opts.Limit > 0 && len(segments) >= opts.Limit {
			break
		}
	}
	return segments, nil
}

// SegmentsToCSV renders segments in the spec's fixed column order:
// source,title,text,start_ms,end_ms,duration_ms,speaker.
func SegmentsToCSV(segments []Segment) string {
	var b strings.Builder
	b.WriteString("source,title,text,start_ms,end_ms,duration_ms,speaker\n")
	for _, seg := range segments {
		b.WriteString(csvField(seg.Source))
		b.WriteByte(',')
		b.WriteString(csvField(seg.Title))
		b.WriteByte(',')
		b.WriteString(csvField(seg.Text))
		b.WriteByte(',')
		b.WriteString(strconv.FormatInt(seg.StartMs, 10))
		b.WriteByte(',')
		b.WriteString(strconv.FormatInt(seg.EndMs, 10))
		b.WriteByte(',')
		b.WriteString(strconv.FormatInt(seg.DurationMs, 10))
		b.WriteByte(',')
		b.WriteString(csvField(seg.Speaker))
		b.WriteByte('\n')
	}
	return b.String()
}

func csvField(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

// DownloadSegments groups matched segments by source URL and
// dispatches the platform downloader's downloadSegments per group
// (spec.md §4.7 platform segment download).
func (s *Searcher) DownloadSegments(ctx context.Context, dl *platform.Downloader, segments []Segment, opts platform.DownloadOptions) map[string][]platform.SegmentResult {
	byURL := make(map[string][]platform.SegmentRange)
	for _, seg := range segments {
		byURL[seg.Source] = append(byURL[seg.Source], platform.SegmentRange{
			StartSec: float64(seg.StartMs) / 1000,
			EndSec:   float64(seg.EndMs) / 1000,
		})
	}

	results := make(map[string][]platform.SegmentResult, len(byURL))
	for url, ranges := range byURL {
		results[url] = dl.DownloadSegments(ctx, url, ranges, opts)
	}
	return results
}
