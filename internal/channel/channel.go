// Package channel implements the channel-processing orchestrator
// (spec.md §4.8): discover a channel's videos, filter/sort them, and
// dispatch them through internal/pipeline in bounded-concurrency
// batches, isolating per-video failures and stopping new dispatches
// on quota exhaustion.
package channel

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"spiralmem/internal/errs"
	"spiralmem/internal/pipeline"
	"spiralmem/internal/platform"
)

// PriorityMode orders discovered videos before dispatch.
type PriorityMode string

const (
	PriorityNewestFirst  PriorityMode = "newest-first"
	PriorityOldestFirst  PriorityMode = "oldest-first"
	PriorityMostPopular  PriorityMode = "most-popular"
	PriorityLongestFirst PriorityMode = "longest-first"
)

// FilterOptions narrows which discovered videos get processed.
type FilterOptions struct {
	MinDurationSec     float64
	MaxDurationSec     float64
	IncludeShorts      bool
	IncludeLiveStreams bool
	KeywordFilter      []string
	ExcludeKeywords    []string
}

// ProcessingOptions configures how filtered videos are batched and
// run through the pipeline.
type ProcessingOptions struct {
	BatchSize             int
	ConcurrentProcessing  int
	EnableTranscripts     bool
	EnableFrameExtraction bool
	PipelineOptions       pipeline.Options
}

// Options is the orchestrator's full input (spec.md §4.8).
type Options struct {
	MaxVideos        int
	Filter           FilterOptions
	Processing       ProcessingOptions
	Priority         PriorityMode
	OutputDirectory  string
	ProgressCallback func(Progress)
}

// Progress is emitted on each state change during dispatch.
type Progress struct {
	TotalToProcess           int
	SuccessfullyProcessed    int
	FailedProcessing         int
	OverallProgressPercent   float64
	EstimatedTimeRemainingMs int64
	CurrentVideo             string
	CurrentStage             string
}

// VideoResult is one video's outcome.
type VideoResult struct {
	Video  platform.ChannelVideo
	Result *pipeline.Result
	Err    error
}

// Result aggregates a channel run (spec.md §4.8 step 6).
type Result struct {
	ChannelURL        string
	DiscoveryCount    int
	ProcessingResults []VideoResult
	Errors            []string
	Recommendations   []string
}

// Orchestrator wires a downloader and a pipeline.
type Orchestrator struct {
	downloader *platform.Downloader
	pipeline   *pipeline.Pipeline
	log        *logrus.Logger
}

// New builds an Orchestrator.
func New(dl *platform.Downloader, pl *pipeline.Pipeline, log *logrus.Logger) *Orchestrator {
	return &Orchestrator{downloader: dl, pipeline: pl, log: log}
}

// Run discovers, filters, sorts, and dispatches a channel's videos
// (spec.md §4.8).
func (o *Orchestrator) Run(ctx context.Context, channelURL string, opts Options) (*Result, error) {
	discovered, err := o.downloader.DiscoverChannel(ctx, channelURL, opts.MaxVideos)
	if err != nil {
		return nil, err
	}

	result := &Result{ChannelURL: channelURL, DiscoveryCount: len(discovered)}

	filtered := filterVideos(discovered, opts.Filter)
	sortVideos(filtered, opts.Priority)

	batchSize := opts.Processing.BatchSize
	if batchSize <= 0 {
		batchSize = len(filtered)
		if batchSize == 0 {
			batchSize = 1
		}
	}
	concurrency := opts.Processing.ConcurrentProcessing
	if concurrency <= 0 {
		concurrency = 1
	}

	start := time.Now()
	total := len(filtered)
	var succeeded, failed int
	var quotaHit bool

	for batchStart := 0; batchStart < len(filtered); batchStart += batchSize {
		if quotaHit {
			break
		}
		batchEnd := batchStart + batchSize
		if batchEnd > len(filtered) {
			batchEnd = len(filtered)
		}
		batch := filtered[batchStart:batchEnd]

		sem := make(chan struct{}, concurrency)
		var mu sync.Mutex
		var wg sync.WaitGroup

		for _, video := range batch {
			if quotaHit {
				break
			}
			wg.Add(1)
			sem <- struct{}{}
			go func(v platform.ChannelVideo) {
				defer wg.Done()
				defer func() { <-sem }()

				vr := o.processOne(ctx, v, opts)

				mu.Lock()
				defer mu.Unlock()
				result.ProcessingResults = append(result.ProcessingResults, vr)
				if vr.Err != nil {
					failed++
					result.Errors = append(result.Errors, v.URL+": "+vr.Err.Error())
					if errs.IsQuotaExceeded(vr.Err) {
						quotaHit = true
					}
				} else {
					succeeded++
				}

				if opts.ProgressCallback != nil {
					elapsed := time.Since(start)
					processed := succeeded + failed
					var remaining int64
					if processed > 0 && processed < total {
						perItem := elapsed / time.Duration(processed)
						remaining = int64(perItem) * int64(total-processed) / int64(time.Millisecond)
					}
					opts.ProgressCallback(Progress{
						TotalToProcess:           total,
						SuccessfullyProcessed:    succeeded,
						FailedProcessing:         failed,
						OverallProgressPercent:   float64(processed) / float64(maxInt(total, 1)) * 100,
						EstimatedTimeRemainingMs: remaining,
						CurrentVideo:             v.URL,
						CurrentStage:             "dispatched",
					})
				}
			}(video)
		}
		wg.Wait()
	}

	if quotaHit {
		result.Recommendations = append(result.Recommendations, "platform quota exhausted; retry remaining videos later")
	}
	return result, nil
}

func (o *Orchestrator) processOne(ctx context.Context, v platform.ChannelVideo, opts Options) VideoResult {
	dl, err := o.downloader.Download(ctx, v.URL, platform.DownloadOptions{OutputDir: opts.OutputDirectory})
	if err != nil {
		return VideoResult{Video: v, Err: err}
	}

	pOpts := opts.Processing.PipelineOptions
	pOpts.CustomTitle = dl.SuggestedTitle
	pOpts.EnableTranscription = opts.Processing.EnableTranscripts
	pOpts.EnableFrameSampling = opts.Processing.EnableFrameExtraction
	if pOpts.OutputDirectory == "" {
		pOpts.OutputDirectory = opts.OutputDirectory
	}

	res, err := o.pipeline.ProcessVideo(ctx, dl.FilePath, pOpts)
	return VideoResult{Video: v, Result: res, Err: err}
}

func filterVideos(videos []platform.ChannelVideo, f FilterOptions) []platform.ChannelVideo {
	var out []platform.ChannelVideo
	for _, v := range videos {
		if !f.IncludeLiveStreams && v.IsLive {
			continue
		}
		if !f.IncludeShorts && v.DurationSec > 0 && v.DurationSec < 60 {
			continue
		}
		if f.MinDurationSec > 0 && v.DurationSec < f.MinDurationSec {
			continue
		}
		if f.MaxDurationSec > 0 && v.DurationSec > f.MaxDurationSec {
			continue
		}
		if len(f.KeywordFilter) > 0 && !containsAnyKeyword(v.Title, f.KeywordFilter) {
			continue
		}
		if len(f.ExcludeKeywords) > 0 && containsAnyKeyword(v.Title, f.ExcludeKeywords) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func containsAnyKeyword(title string, keywords []string) bool {
	lower := strings.ToLower(title)
	for _, k := range keywords {
		if strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

func sortVideos(videos []platform.ChannelVideo, mode PriorityMode) {
	switch mode {
	case PriorityMostPopular:
		sort.SliceStable(videos, func(i, j int) bool { return videos[i].ViewCount > videos[j].ViewCount })
	case PriorityLongestFirst:
		sort.SliceStable(videos, func(i, j int) bool { return videos[i].DurationSec > videos[j].DurationSec })
	case PriorityOldestFirst:
		// Discovery order from yt-dlp's flat-playlist is newest-first
		// by convention; oldest-first is simply the reverse.
		reverseInPlace(videos)
	default: // PriorityNewestFirst and unset: discovery order stands.
	}
}

func reverseInPlace(videos []platform.ChannelVideo) {
	for i, j := 0, len(videos)-1; i < j; i, j = i+1, j-1 {
		videos[i], videos[j] = videos[j], videos[i]
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
