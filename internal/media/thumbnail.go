package media

import (
	"context"
)

// ThumbnailPosition selects where generateThumbnail derives its
// timestamp from (spec.md §4.2).
type ThumbnailPosition string

const (
	ThumbnailStart       ThumbnailPosition = "start"
	ThumbnailMiddle      ThumbnailPosition = "middle"
	ThumbnailEnd         ThumbnailPosition = "end"
	ThumbnailBestQuality ThumbnailPosition = "best-quality"
)

// GenerateThumbnailOptions configures generateThumbnail.
type GenerateThumbnailOptions struct {
	Position    ThumbnailPosition
	OutputDir   string
	MaxWidth    int
	MaxHeight   int
	JPEGQuality int
}

// ThumbnailResult is generateThumbnail's typed return value.
type ThumbnailResult struct {
	Filepath     string
	TimestampSec float64
	Width        int
	Height       int
	FileSize     int64
}

// GenerateThumbnail derives a single representative frame for path
// according to opts.Position (spec.md §4.2):
//   - start: 10% into the video (skips black-frame intros)
//   - middle: 50% into the video
//   - end: 90% into the video (skips fade-to-black outros)
//   - best-quality: samples a handful of candidates and keeps the
//     largest, the same heuristic extractQualityBasedFrames uses
func (e *Extractor) GenerateThumbnail(ctx context.Context, prober *Prober, path string, opts GenerateThumbnailOptions) (*ThumbnailResult, error) {
	if prober == nil {
		prober = NewProber("")
	}
	probeResult, err := prober.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	duration := probeResult.DurationSec

	if opts.Position == ThumbnailBestQuality {
		frames, err := e.extractQualityBasedFrames(ctx, path, opts.OutputDir, ExtractFramesOptions{
			StartTime:   duration * 0.05,
			EndTime:     duration * 0.95,
			FrameCount:  1,
			MaxWidth:    opts.MaxWidth,
			MaxHeight:   opts.MaxHeight,
			JPEGQuality: opts.JPEGQuality,
		})
		if err != nil {
			return nil, err
		}
		if len(frames) == 0 {
			return nil, errNoThumbnailCandidate
		}
		f := frames[0]
		return &ThumbnailResult{Filepath: f.Filepath, TimestampSec: f.TimestampSec, Width: f.Width, Height: f.Height, FileSize: f.FileSize}, nil
	}

	ts := thumbnailTimestamp(opts.Position, duration)
	f, err := e.extractFrameAt(ctx, path, opts.OutputDir, "thumbnail", ts, 0, ExtractFramesOptions{
		MaxWidth:    opts.MaxWidth,
		MaxHeight:   opts.MaxHeight,
		JPEGQuality: opts.JPEGQuality,
	})
	if err != nil {
		return nil, err
	}
	return &ThumbnailResult{Filepath: f.Filepath, TimestampSec: f.TimestampSec, Width: f.Width, Height: f.Height, FileSize: f.FileSize}, nil
}

func thumbnailTimestamp(position ThumbnailPosition, duration float64) float64 {
	switch position {
	case ThumbnailEnd:
		return duration * 0.9
	case ThumbnailMiddle:
		return duration * 0.5
	default: // ThumbnailStart and unset
		return duration * 0.1
	}
}

var errNoThumbnailCandidate = thumbnailError("no thumbnail candidate frame was extracted")

type thumbnailError string

func (e thumbnailError) Error() string { return string(e) }
