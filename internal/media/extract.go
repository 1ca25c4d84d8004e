package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// AudioFormat enumerates extractAudio's supported containers.
type AudioFormat string

const (
	AudioFormatWAV  AudioFormat = "wav"
	AudioFormatMP3  AudioFormat = "mp3"
	AudioFormatFLAC AudioFormat = "flac"
	AudioFormatM4A  AudioFormat = "m4a"
)

// ExtractAudioOptions configures extractAudio (spec.md §4.2).
// Transcription-optimal defaults: 16kHz mono WAV, normalize+denoise on.
type ExtractAudioOptions struct {
	Format               AudioFormat
	SampleRate           int
	Channels             int
	BitRate              string
	Normalize            bool
	Denoise              bool
	OutputDir            string
	MaxDurationSec       float64
	KeepOriginalDuration bool
	Fast                 bool // "fast" preset: disables normalize/denoise filters
}

// TranscriptionOptimalOptions returns the spec's default preset: 16kHz
// mono WAV, normalize and denoise enabled.
func TranscriptionOptimalOptions(outputDir string) ExtractAudioOptions {
	return ExtractAudioOptions{
		Format:     AudioFormatWAV,
		SampleRate: 16000,
		Channels:   1,
		Normalize:  true,
		Denoise:    true,
		OutputDir:  outputDir,
	}
}

// FastAudioOptions returns the "fast" preset, which disables filters.
func FastAudioOptions(outputDir string) ExtractAudioOptions {
	o := TranscriptionOptimalOptions(outputDir)
	o.Fast = true
	o.Normalize = false
	o.Denoise = false
	return o
}

// ExtractAudioResult is extractAudio's typed return value.
type ExtractAudioResult struct {
	OutputPath   string
	DurationSec  float64
	FileSize     int64
	SampleRate   int
	Channels     int
	ExtractionMs int64
}

// Extractor wraps ffmpeg for audio extraction, frame sampling, and
// thumbnail generation, mirroring the teacher's FFmpegClient but
// replaced with the typed adapter contract of spec.md §4.2: a timeout
// proportional to target duration (at least 5 minutes) and a killed
// process group on expiry.
type Extractor struct {
	r runner
}

// NewExtractor builds an Extractor using the given ffmpeg binary path
// (empty falls back to "ffmpeg" on PATH).
func NewExtractor(ffmpegPath string) *Extractor {
	return &Extractor{r: newRunner(ffmpegPath, "")}
}

// ExtractAudio decodes path's audio track to opts.Format, applying the
// normalize/denoise filter chain unless Fast is set. The timeout is
// max(2*targetDuration, 5min); targetDuration is opts.MaxDurationSec
// when set, otherwise the duration probed from path when prober is
// non-nil. With neither, the timeout is 5min.
func (e *Extractor) ExtractAudio(ctx context.Context, prober *Prober, path string, opts ExtractAudioOptions) (*ExtractAudioResult, error) {
	if opts.Format == "" {
		opts.Format = AudioFormatWAV
	}
	if opts.SampleRate == 0 {
		opts.SampleRate = 16000
	}
	if opts.Channels == 0 {
		opts.Channels = 1
	}
	if opts.OutputDir == "" {
		opts.OutputDir = filepath.Dir(path)
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, err
	}

	targetDuration := opts.MaxDurationSec
	if targetDuration <= 0 && prober != nil {
		if pr, err := prober.Probe(ctx, path); err == nil {
			targetDuration = pr.DurationSec
		}
	}
	timeout := 5 * time.Minute
	if 2*time.Duration(targetDuration*float64(time.Second)) > timeout {
		timeout = 2 * time.Duration(targetDuration*float64(time.Second))
	}

	outputPath := outputPathWithTimestampSuffix(opts.OutputDir, baseNameNoExt(path), string(opts.Format))

	filters := buildAudioFilterChain(opts)
	args := []string{"-i", path, "-vn", "-ar", strconv.Itoa(opts.SampleRate), "-ac", strconv.Itoa(opts.Channels)}
	if filters != "" {
		args = append(args, "-af", filters)
	}
	if opts.BitRate != "" {
		args = append(args, "-b:a", opts.BitRate)
	}
	if opts.MaxDurationSec > 0 {
		args = append(args, "-t", fmt.Sprintf("%.3f", opts.MaxDurationSec))
	}
	args = append(args, "-y", outputPath)

	start := time.Now()
	if _, err := e.r.run(ctx, timeout, e.r.ffmpegPath, args...); err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	info, statErr := os.Stat(outputPath)
	var size int64
	if statErr == nil {
		size = info.Size()
	}

	durationSec := opts.MaxDurationSec
	if !opts.KeepOriginalDuration && prober != nil {
		if pr, err := prober.Probe(ctx, outputPath); err == nil {
			durationSec = pr.DurationSec
		}
	}

	return &ExtractAudioResult{
		OutputPath:   outputPath,
		DurationSec:  durationSec,
		FileSize:     size,
		SampleRate:   opts.SampleRate,
		Channels:     opts.Channels,
		ExtractionMs: elapsed.Milliseconds(),
	}, nil
}

func buildAudioFilterChain(opts ExtractAudioOptions) string {
	if opts.Fast {
		return ""
	}
	var filters []string
	if opts.Denoise {
		filters = append(filters, "afftdn")
	}
	if opts.Normalize {
		filters = append(filters, "loudnorm")
	}
	return strings.Join(filters, ",")
}

// outputPathWithTimestampSuffix appends a unix-nano suffix to the
// output filename when a file by that name already exists, per
// spec.md §4.2 ("Output path includes a timestamp suffix on name
// collision").
func outputPathWithTimestampSuffix(dir, stem, ext string) string {
	candidate := filepath.Join(dir, stem+"."+ext)
	if _, err := os.Stat(candidate); err != nil {
		return candidate
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%d.%s", stem, time.Now().UnixNano(), ext))
}

func baseNameNoExt(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}
