package platform

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"spiralmem/internal/errs"
)

// DownloadOptions configures a single-video download (spec.md §4.6
// YouTube mode: mp4, 720p default, max 500MB, max 1 hour).
type DownloadOptions struct {
	OutputDir   string
	Quality     string // yt-dlp format selector height, default "720"
	Format      string // default "mp4"
	MaxSizeMB   int    // default 500
	MaxDuration time.Duration // default 1 hour
}

func defaultDownloadOptions(o DownloadOptions) DownloadOptions {
	if o.Quality == "" {
		o.Quality = "720"
	}
	if o.Format == "" {
		o.Format = "mp4"
	}
	if o.MaxSizeMB <= 0 {
		o.MaxSizeMB = 500
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = time.Hour
	}
	return o
}

// DownloadResult is the outcome of materializing a platform URL to a
// local file.
type DownloadResult struct {
	FilePath      string
	SuggestedTitle string
	DurationSec   float64
}

// Downloader wraps a yt-dlp-compatible binary, grounded on
// adverant-...VideoAgent's YouTubeDownloader (anti-bot flags,
// --dump-json metadata probing) generalized to
// the per-platform table in urls.go.
type Downloader struct {
	binary string
}

// New builds a Downloader using the given binary path (empty falls
// back to "yt-dlp" on PATH).
func New(binary string) *Downloader {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &Downloader{binary: binary}
}

const downloadTimeout = 30 * time.Minute

type ytdlpInfo struct {
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	ID       string  `json:"id"`
}

// Download materializes url to a local file under opts.OutputDir,
// enforcing the format/quality/size/duration ceiling. The returned
// SuggestedTitle feeds customTitle per spec.md §4.6.
func (d *Downloader) Download(ctx context.Context, url string, opts DownloadOptions) (*DownloadResult, error) {
	opts = defaultDownloadOptions(opts)
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, &errs.PlatformError{Code: errs.PlatformErrorDownloadFailed, Platform: "unknown", Reason: "create output dir", Err: err}
	}

	info, err := d.probeInfo(ctx, url)
	if err != nil {
		return nil, err
	}
	if opts.MaxDuration > 0 && info.Duration > opts.MaxDuration.Seconds() {
		return nil, &errs.PlatformError{
			Code:     errs.PlatformErrorDownloadFailed,
			Platform: "unknown",
			Reason:   fmt.Sprintf("video duration %.0fs exceeds max %s", info.Duration, opts.MaxDuration),
		}
	}

	outputTemplate := filepath.Join(opts.OutputDir, "%(id)s.%(ext)s")
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	args := []string{
		"--no-playlist",
		"--format", fmt.Sprintf("bestvideo[height<=%s]+bestaudio/best[height<=%s]", opts.Quality, opts.Quality),
		"--merge-output-format", opts.Format,
		"--max-filesize", fmt.Sprintf("%dM", opts.MaxSizeMB),
		"--user-agent", "Mozilla/5.0 (compatible; spiralmem/1.0)",
		"--no-check-certificates",
		"-o", outputTemplate,
		url,
	}

	cmd := exec.CommandContext(ctx, d.binary, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if isQuotaError(stderr.String()) {
			return nil, &errs.PlatformError{Code: errs.PlatformErrorQuotaExceeded, Platform: "unknown", Reason: errs.TruncateTail(stderr.String(), 4096), Err: err}
		}
		return nil, &errs.PlatformError{Code: errs.PlatformErrorDownloadFailed, Platform: "unknown", Reason: errs.TruncateTail(stderr.String(), 4096), Err: err}
	}

	filePath := filepath.Join(opts.OutputDir, info.ID+"."+opts.Format)
	return &DownloadResult{
		FilePath:       filePath,
		SuggestedTitle: info.Title,
		DurationSec:    info.Duration,
	}, nil
}

// SegmentResult is one requested range's download outcome (spec.md §4.7).
type SegmentResult struct {
	Success  bool
	FilePath string
	Duration float64
	Error    string
}

// SegmentRange is a [startSec,endSec] cut request.
type SegmentRange struct {
	StartSec float64
	EndSec   float64
}

// DownloadSegments dispatches one yt-dlp invocation per range using
// --download-sections, grouped by the caller under a single source
// URL (spec.md §4.7 platform segment download).
func (d *Downloader) DownloadSegments(ctx context.Context, url string, ranges []SegmentRange, opts DownloadOptions) []SegmentResult {
	opts = defaultDownloadOptions(opts)
	_ = os.MkdirAll(opts.OutputDir, 0o755)

	results := make([]SegmentResult, len(ranges))
	for i, r := range ranges {
		section := fmt.Sprintf("*%.2f-%.2f", r.StartSec, r.EndSec)
		outTemplate := filepath.Join(opts.OutputDir, fmt.Sprintf("segment_%03d_%%(id)s.%%(ext)s", i))

		args := []string{
			"--no-playlist",
			"--download-sections", section,
			"--force-keyframes-at-cuts",
			"--format", fmt.Sprintf("bestvideo[height<=%s]+bestaudio/best[height<=%s]", opts.Quality, opts.Quality),
			"--merge-output-format", opts.Format,
			"-o", outTemplate,
			url,
		}

		segCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
		cmd := exec.CommandContext(segCtx, d.binary, args...)
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		err := cmd.Run()
		cancel()
		if err != nil {
			results[i] = SegmentResult{Success: false, Error: errs.TruncateTail(stderr.String(), 4096)}
			continue
		}
		results[i] = SegmentResult{
			Success:  true,
			FilePath: outTemplate,
			Duration: r.EndSec - r.StartSec,
		}
	}
	return results
}

// ChannelVideo is one entry from a channel's flat listing (spec.md
// §4.8 discovery).
type ChannelVideo struct {
	ID          string
	URL         string
	Title       string
	DurationSec float64
	ViewCount   int64
	IsLive      bool
}

const discoverTimeout = 2 * time.Minute

// DiscoverChannel lists up to maxVideos entries for a channel URL
// using yt-dlp's flat-playlist mode, which skips per-video metadata
// fetches for speed (spec.md §4.8 step 1: "flat/metadata-only").
func (d *Downloader) DiscoverChannel(ctx context.Context, channelURL string, maxVideos int) ([]ChannelVideo, error) {
	ctx, cancel := context.WithTimeout(ctx, discoverTimeout)
	defer cancel()

	args := []string{"--flat-playlist", "--dump-json", "--no-warnings"}
	if maxVideos > 0 {
		args = append(args, "--playlist-end", fmt.Sprintf("%d", maxVideos))
	}
	args = append(args, channelURL)

	cmd := exec.CommandContext(ctx, d.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if isQuotaError(stderr.String()) {
			return nil, &errs.PlatformError{Code: errs.PlatformErrorQuotaExceeded, Platform: "unknown", Reason: errs.TruncateTail(stderr.String(), 4096), Err: err}
		}
		return nil, &errs.PlatformError{Code: errs.PlatformErrorInvalidURL, Platform: "unknown", Reason: errs.TruncateTail(stderr.String(), 4096), Err: err}
	}

	var videos []ChannelVideo
	scanner := bufio.NewScanner(&stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var entry struct {
			ID          string  `json:"id"`
			URL         string  `json:"url"`
			Title       string  `json:"title"`
			Duration    float64 `json:"duration"`
			ViewCount   int64   `json:"view_count"`
			IsLive      bool    `json:"is_live"`
			WebpageURL  string  `json:"webpage_url"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		url := entry.WebpageURL
		if url == "" {
			url = entry.URL
		}
		videos = append(videos, ChannelVideo{
			ID: entry.ID, URL: url, Title: entry.Title,
			DurationSec: entry.Duration, ViewCount: entry.ViewCount, IsLive: entry.IsLive,
		})
		if maxVideos > 0 && len(videos) >= maxVideos {
			break
		}
	}
	return videos, nil
}

func (d *Downloader) probeInfo(ctx context.Context, url string) (*ytdlpInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.binary, "--dump-json", "--no-playlist", url)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if isQuotaError(stderr.String()) {
			return nil, &errs.PlatformError{Code: errs.PlatformErrorQuotaExceeded, Platform: "unknown", Reason: errs.TruncateTail(stderr.String(), 4096), Err: err}
		}
		return nil, &errs.PlatformError{Code: errs.PlatformErrorInvalidURL, Platform: "unknown", Reason: errs.TruncateTail(stderr.String(), 4096), Err: err}
	}

	var info ytdlpInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, &errs.PlatformError{Code: errs.PlatformErrorInvalidURL, Platform: "unknown", Reason: "parse metadata JSON", Err: err}
	}
	return &info, nil
}

// isQuotaError recognizes throttling/quota phrases surfaced by
// yt-dlp's stderr, letting the channel orchestrator stop dispatching
// new work without further string matching downstream (SPEC_FULL.md
// supplement: quota-aware orchestration).
func isQuotaError(stderr string) bool {
	for _, phrase := range []string{"HTTP Error 429", "quota", "Too Many Requests", "rate-limit", "rate limit"} {
		if bytes.Contains([]byte(stderr), []byte(phrase)) {
			return true
		}
	}
	return false
}
