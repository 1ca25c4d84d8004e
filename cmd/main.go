// Command spiralmem is the CLI entry point (spec.md §6), replacing the
// teacher's Gin HTTP API + worker-mode main() with a cobra command
// tree: every external interface the spec defines is a subcommand
// wired directly to the store/pipeline/search/channel packages rather
// than an HTTP handler.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"spiralmem/internal/channel"
	"spiralmem/internal/chunker"
	"spiralmem/internal/config"
	"spiralmem/internal/embedder"
	"spiralmem/internal/errs"
	"spiralmem/internal/logging"
	"spiralmem/internal/mcpserve"
	"spiralmem/internal/pipeline"
	"spiralmem/internal/platform"
	"spiralmem/internal/queue"
	"spiralmem/internal/search"
	"spiralmem/internal/store"
	"spiralmem/internal/transcriber"
)

var (
	cfgFile string
	verbose bool
	quiet   bool
)

// app bundles every adapter a command might need. Each command that
// needs it calls buildApp at the top of its RunE; commands that don't
// need the full set simply ignore the unused fields.
type app struct {
	cfg        *config.Config
	log        *logrus.Logger
	store      *store.Store
	embed      *embedder.Embedder
	trans      *transcriber.Transcriber
	searcher   *search.Searcher
	pipe       *pipeline.Pipeline
	downloader *platform.Downloader
	orch       *channel.Orchestrator
	progress   *queue.Queue
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "spiralmem",
		Short:         "Ingest, transcribe, and search video content",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")

	root.AddCommand(
		newInitCmd(),
		newAddVideoCmd(),
		newSearchCmd(),
		newSemanticSearchCmd(),
		newExtractSegmentsCmd(),
		newDownloadSegmentsCmd(),
		newGenerateEmbeddingsCmd(),
		newVectorStatsCmd(),
		newAddChannelCmd(),
		newSpacesCmd(),
		newCreateSpaceCmd(),
		newTagsCmd(),
		newDeleteTagCmd(),
		newDeepLinksCmd(),
		newStatsCmd(),
		newExportCmd(),
		newCheckCmd(),
		newConfigCmd(),
		newServeMCPCmd(),
	)
	return root
}

// buildApp resolves config, opens the store, and wires every adapter.
// Individual commands that don't need network adapters (the embedder,
// transcriber subprocess, downloader) still get them constructed: each
// adapter degrades gracefully when its binary/endpoint is unavailable
// rather than failing at construction time (spec.md §4.5, §4.6).
func buildApp() (*app, error) {
	v := viper.New()
	cfg, err := config.Load(cfgFile, v)
	if err != nil {
		return nil, &errs.SystemError{Reason: "load config", Err: err}
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if quiet {
		cfg.Quiet = true
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.Quiet)

	if err := cfg.EnsureDirs(); err != nil {
		return nil, &errs.SystemError{Reason: "ensure data directories", Err: err}
	}

	st, err := store.Open(cfg.DatabasePath, log)
	if err != nil {
		return nil, err
	}
	if err := st.AutoMigrate(); err != nil {
		return nil, err
	}

	embed := embedder.New(cfg.EmbedderEndpoint, cfg.EmbedderAPIKey)
	trans := transcriber.New(cfg.TranscriberBinary, cfg.TranscriberModel)
	searcher := search.New(st, embed)
	downloader := platform.New(cfg.YtDlpPath)

	var pq *queue.Queue
	if q, err := queue.New(queue.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}); err != nil {
		log.WithError(err).Debug("redis unavailable; progress events disabled for this run")
	} else {
		pq = q
	}

	pipe := pipeline.New(st, cfg.FFmpegPath, cfg.FFprobePath, trans, embed, pq, log)
	orch := channel.New(downloader, pipe, log)

	if stale, err := queue.RecoverStaleJobs(st); err != nil {
		log.WithError(err).Warn("failed to recover stale jobs from a previous run")
	} else if len(stale) > 0 {
		log.WithField("count", len(stale)).Warn("marked jobs left pending/processing by a previous run as failed; requeue to retry")
	}

	return &app{
		cfg: cfg, log: log, store: st, embed: embed, trans: trans,
		searcher: searcher, pipe: pipe, downloader: downloader, orch: orch, progress: pq,
	}, nil
}

func (a *app) Close() {
	if a.progress != nil {
		_ = a.progress.Close()
	}
	_ = a.store.Close()
}

// fail prints a one-line reason and hint (spec.md §7 user-visible
// failure contract) and returns the error so RunE propagates exit 1.
func fail(err error) error {
	fmt.Fprintf(os.Stderr, "error: %s\n", describeErr(err))
	return err
}

func describeErr(err error) string {
	switch e := err.(type) {
	case *errs.ValidationError:
		return e.Error() + " (hint: check the argument and retry)"
	case *errs.NotFound:
		return e.Error()
	case *errs.PlatformError:
		if e.Code == errs.PlatformErrorQuotaExceeded {
			return e.Error() + " (hint: wait for the platform's rate limit to reset)"
		}
		return e.Error()
	default:
		return err.Error()
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- init ---

func newInitCmd() *cobra.Command {
	var testMode, force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the store and ensure the default space exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return fail(err)
			}
			defer a.Close()

			if force {
				_ = a.store.Close()
				_ = os.Remove(a.cfg.DatabasePath)
				st, err := store.Open(a.cfg.DatabasePath, a.log)
				if err != nil {
					return fail(err)
				}
				a.store = st
				if err := a.store.AutoMigrate(); err != nil {
					return fail(err)
				}
			}
			if _, err := a.store.EnsureDefault(); err != nil {
				return fail(err)
			}
			if testMode {
				fmt.Println("initialized in test mode:", a.cfg.DatabasePath)
				return nil
			}
			fmt.Println("initialized:", a.cfg.DatabasePath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&testMode, "test-mode", false, "print a test-mode confirmation line after initializing")
	cmd.Flags().BoolVar(&force, "force", false, "drop and recreate the database file")
	return cmd
}

// --- add-video ---

func newAddVideoCmd() *cobra.Command {
	var (
		spaceID           string
		title             string
		model             string
		noTranscription   bool
		keepVideo         bool
		noKeepAudio       bool
		tags              []string
		force             bool
	)
	cmd := &cobra.Command{
		Use:   "add-video <path|url>",
		Short: "Ingest a local video file or platform URL through the pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return fail(err)
			}
			defer a.Close()

			ctx := context.Background()
			source := args[0]
			videoPath := source
			customTitle := title

			var plat store.Platform
			var platformVideoID string
			var dl *platform.DownloadResult
			if p, perr := platform.Detect(source); perr == nil {
				plat = p
				platformVideoID, _ = platform.ExtractVideoID(p, source)

				if !force && platformVideoID != "" {
					if existing, ferr := a.store.FindPlatformVideo(plat, platformVideoID); ferr == nil {
						fmt.Printf("already indexed as memory %s (use --force to re-ingest)\n", existing.MemoryID)
						return nil
					}
				}

				d, derr := a.downloader.Download(ctx, source, platform.DownloadOptions{OutputDir: a.cfg.TempDir()})
				if derr != nil {
					return fail(derr)
				}
				dl = d
				videoPath = dl.FilePath
				if customTitle == "" {
					customTitle = dl.SuggestedTitle
				}
			}

			opts := pipeline.Options{
				SpaceID:                     spaceID,
				EnableFrameSampling:         true,
				EnableTranscription:         !noTranscription,
				EnableEmbeddings:            a.embed.Available(),
				Chunking:                    chunker.DefaultConfig(),
				OutputDirectory:             a.cfg.DataDir,
				CustomTitle:                 customTitle,
				CleanupVideoAfterProcessing: !keepVideo,
				KeepAudioFiles:              !noKeepAudio,
				EmbeddingModel:              firstNonEmpty(model, a.cfg.EmbedderModel),
			}

			start := time.Now()
			result, err := a.pipe.ProcessVideo(ctx, videoPath, opts)
			if err != nil {
				return fail(err)
			}

			if platformVideoID != "" && dl != nil {
				var durationSec *float64
				if dl.DurationSec > 0 {
					d := dl.DurationSec
					durationSec = &d
				}
				pv, perr := a.store.UpsertPlatformVideo(store.PlatformVideoInput{
					MemoryID:        result.MemoryID,
					Platform:        plat,
					PlatformVideoID: platformVideoID,
					VideoURL:        source,
					DurationSec:     durationSec,
				})
				if perr != nil {
					fmt.Printf("warning: failed to index platform video: %s\n", perr)
				} else {
					if _, lerr := a.store.CreateDeepLink(&store.VideoDeepLink{
						VideoID:           result.MemoryID,
						VideoType:         store.VideoTypePlatform,
						TimestampStartSec: 0,
						DeeplinkURL:       source,
						ContextSummary:    customTitle,
					}); lerr != nil {
						fmt.Printf("warning: failed to record deep link: %s\n", lerr)
					}
					if pc, cerr := a.store.FindProcessedContentByJobID(result.JobID); cerr == nil {
						if _, terr := a.store.UpsertPlatformTranscript(pv.PlatformVideoID, pc.Transcript); terr != nil {
							fmt.Printf("warning: failed to index platform transcript: %s\n", terr)
						}
					}
				}
			}

			for _, tag := range tags {
				if err := a.store.TagMemory(result.MemoryID, tag); err != nil {
					fmt.Printf("warning: failed to tag memory with %q: %s\n", tag, err)
				}
			}

			fmt.Printf("memoryId: %s\n", result.MemoryID)
			fmt.Printf("jobId: %s\n", result.JobID)
			fmt.Printf("status: %s\n", result.Status)
			fmt.Printf("chunks: %d\n", result.ChunkCount)
			fmt.Printf("storageSaved: %d bytes\n", result.BytesFreed)
			fmt.Printf("elapsed: %s\n", time.Since(start).Round(time.Millisecond))
			for _, w := range result.Warnings {
				fmt.Printf("warning: %s\n", w)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&spaceID, "space", "s", "", "target space id (default space if empty)")
	cmd.Flags().StringVarP(&title, "title", "t", "", "custom title override")
	cmd.Flags().StringVar(&model, "model", "", "embedding model override")
	cmd.Flags().BoolVar(&noTranscription, "no-transcription", false, "skip transcription")
	cmd.Flags().BoolVar(&keepVideo, "keep-video", false, "keep the source video file after processing")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "comma-separated tags to attach to the new memory")
	cmd.Flags().BoolVar(&force, "force", false, "re-ingest a platform video that's already indexed")
	cmd.Flags().BoolVar(&noKeepAudio, "no-keep-audio", false, "mark extracted audio as not kept, which disables source-video cleanup; the audio file itself is not deleted")
	return cmd
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// --- search ---

func newSearchCmd() *cobra.Command {
	var spaceID string
	var limit int
	var timestamps, asJSON bool
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Keyword search over ingested content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return fail(err)
			}
			defer a.Close()

			filter := store.MemorySearchFilter{SpaceID: spaceID, Limit: limit}
			var results []search.Result
			if timestamps {
				results, err = a.searcher.WithTimestamps(args[0], filter)
			} else {
				results, err = a.searcher.Keyword(args[0], filter)
			}
			if err != nil {
				return fail(err)
			}
			return renderResults(results, asJSON)
		},
	}
	cmd.Flags().StringVarP(&spaceID, "space", "s", "", "restrict to a space id")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "max results")
	cmd.Flags().BoolVar(&timestamps, "timestamps", false, "include millisecond ranges and word matches")
	cmd.Flags().BoolVar(&asJSON, "json", false, "JSON output")
	return cmd
}

// --- semantic-search ---

func newSemanticSearchCmd() *cobra.Command {
	var spaceID string
	var limit int
	var threshold float64
	var timestamps, asJSON, hybrid bool
	cmd := &cobra.Command{
		Use:   "semantic-search <query>",
		Short: "Vector search via the embedder, falling back to keyword search on failure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return fail(err)
			}
			defer a.Close()

			var results []search.Result
			if hybrid {
				results, _, err = a.searcher.Hybrid(context.Background(), args[0], search.HybridOptions{
					Model:               a.cfg.EmbedderModel,
					VectorWeight:        0.6,
					KeywordWeight:       0.4,
					SimilarityThreshold: threshold,
					Limit:               limit,
					MemoryFilter:        store.MemorySearchFilter{SpaceID: spaceID, Limit: limit},
				})
				if err != nil {
					return fail(err)
				}
			} else {
				results, err = a.searcher.Vector(context.Background(), args[0], search.VectorOptions{
					Model:               a.cfg.EmbedderModel,
					SimilarityThreshold: threshold,
					Limit:               limit,
				})
				if err != nil {
					a.log.WithError(err).Warn("semantic search unavailable, falling back to keyword")
					results, err = a.searcher.Keyword(args[0], store.MemorySearchFilter{SpaceID: spaceID, Limit: limit})
					if err != nil {
						return fail(err)
					}
				}
			}
			if timestamps {
				enriched, terr := a.searcher.WithTimestamps(args[0], store.MemorySearchFilter{SpaceID: spaceID, Limit: limit})
				if terr == nil {
					results = enriched
				}
			}
			return renderResults(results, asJSON)
		},
	}
	cmd.Flags().StringVarP(&spaceID, "space", "s", "", "restrict the keyword fallback to a space id")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "max results")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "minimum cosine similarity (default 0.7)")
	cmd.Flags().BoolVar(&timestamps, "timestamps", false, "include millisecond ranges and word matches")
	cmd.Flags().BoolVar(&asJSON, "json", false, "JSON output")
	cmd.Flags().BoolVar(&hybrid, "hybrid", false, "blend vector and keyword scores instead of vector-only")
	return cmd
}

func renderResults(results []search.Result, asJSON bool) error {
	if asJSON {
		return printJSON(results)
	}
	for _, r := range results {
		fmt.Printf("[%.3f] %s — %s\n", r.Similarity, r.Memory.Title, r.Memory.Source)
		for _, h := range r.Highlights {
			fmt.Printf("    %s\n", h)
		}
		if r.Timestamps != nil {
			fmt.Printf("    %dms-%dms\n", r.Timestamps.StartMs, r.Timestamps.EndMs)
		}
	}
	fmt.Printf("%d result(s)\n", len(results))
	return nil
}

// --- extract-segments ---

func newExtractSegmentsCmd() *cobra.Command {
	var spaceID string
	var limit int
	var minDurationMs, maxDurationMs int64
	var asCSV bool
	cmd := &cobra.Command{
		Use:   "extract-segments <query>",
		Short: "Extract compilation-ready segments matching a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return fail(err)
			}
			defer a.Close()

			segments, err := a.searcher.ExtractSegments(args[0], store.MemorySearchFilter{SpaceID: spaceID, Limit: limit},
				search.SegmentOptions{MinDurationMs: minDurationMs, MaxDurationMs: maxDurationMs, Limit: limit})
			if err != nil {
				return fail(err)
			}
			if asCSV {
				fmt.Print(search.SegmentsToCSV(segments))
				return nil
			}
			return printJSON(segments)
		},
	}
	cmd.Flags().StringVarP(&spaceID, "space", "s", "", "restrict to a space id")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "max segments")
	cmd.Flags().Int64Var(&minDurationMs, "min-duration", 0, "minimum segment duration in ms")
	cmd.Flags().Int64Var(&maxDurationMs, "max-duration", 0, "maximum segment duration in ms")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "CSV output (source,title,text,start_ms,end_ms,duration_ms,speaker)")
	return cmd
}

// --- download-segments ---

func newDownloadSegmentsCmd() *cobra.Command {
	var spaceID string
	var limit int
	var minDurationMs, maxDurationMs int64
	var quality, outDir string
	cmd := &cobra.Command{
		Use:   "download-segments <query>",
		Short: "Download the platform source ranges matching a segment query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return fail(err)
			}
			defer a.Close()

			segments, err := a.searcher.ExtractSegments(args[0], store.MemorySearchFilter{SpaceID: spaceID, Limit: limit},
				search.SegmentOptions{MinDurationMs: minDurationMs, MaxDurationMs: maxDurationMs, Limit: limit})
			if err != nil {
				return fail(err)
			}
			if outDir == "" {
				outDir = filepath.Join(a.cfg.DataDir, "segments")
			}
			results := a.searcher.DownloadSegments(context.Background(), a.downloader, segments,
				platform.DownloadOptions{OutputDir: outDir, Quality: quality})
			return printJSON(results)
		},
	}
	cmd.Flags().StringVarP(&spaceID, "space", "s", "", "restrict to a space id")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "max segments")
	cmd.Flags().Int64Var(&minDurationMs, "min-duration", 0, "minimum segment duration in ms")
	cmd.Flags().Int64Var(&maxDurationMs, "max-duration", 0, "maximum segment duration in ms")
	cmd.Flags().StringVarP(&quality, "quality", "q", "", "yt-dlp height selector (default 720)")
	cmd.Flags().StringVarP(&outDir, "output", "o", "", "output directory")
	return cmd
}

// --- generate-embeddings ---

func newGenerateEmbeddingsCmd() *cobra.Command {
	var memoryIDs []string
	var force bool
	var batchSize int
	cmd := &cobra.Command{
		Use:   "generate-embeddings",
		Short: "Batch-index existing chunks that are missing an embedding",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return fail(err)
			}
			defer a.Close()

			if !a.embed.Available() {
				return fail(&errs.ValidationError{Field: "embedder_endpoint", Reason: "no embedder endpoint configured"})
			}
			if batchSize <= 0 {
				batchSize = 16
			}
			model := a.cfg.EmbedderModel

			var memIDs []string
			if len(memoryIDs) > 0 {
				memIDs = memoryIDs
			} else {
				mems, err := a.store.SearchMemories("", store.MemorySearchFilter{Limit: 10000})
				if err != nil {
					return fail(err)
				}
				for _, m := range mems {
					memIDs = append(memIDs, m.ID)
				}
			}

			chunks, err := a.store.FindChunksByMemoryIDs(memIDs)
			if err != nil {
				return fail(err)
			}

			var pending []store.Chunk
			for _, c := range chunks {
				if !force {
					if _, ferr := a.store.FindEmbedding(c.ID, store.EmbeddingContentChunk, model); ferr == nil {
						continue
					}
				}
				pending = append(pending, c)
			}

			indexed := 0
			ctx := context.Background()
			for start := 0; start < len(pending); start += batchSize {
				end := start + batchSize
				if end > len(pending) {
					end = len(pending)
				}
				batch := pending[start:end]
				texts := make([]string, len(batch))
				for i, c := range batch {
					texts[i] = c.ChunkText
				}
				results, _, err := a.embed.Embed(ctx, texts, embedder.Options{Model: model, BatchSize: batchSize})
				if err != nil {
					return fail(err)
				}
				for i, r := range results {
					if r.Err != nil {
						a.log.WithError(r.Err).Warn("skipping chunk embedding")
						continue
					}
					if _, err := a.store.UpsertEmbedding(batch[i].ID, store.EmbeddingContentChunk, model, len(r.Vector), r.Vector); err != nil {
						return fail(err)
					}
					indexed++
				}
			}

			fmt.Printf("indexed %d of %d pending chunk(s)\n", indexed, len(pending))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&memoryIDs, "memory-ids", nil, "restrict to these memory ids (default: all)")
	cmd.Flags().BoolVar(&force, "force", false, "re-embed chunks that already have an embedding")
	cmd.Flags().IntVar(&batchSize, "batch-size", 16, "embedding batch size")
	return cmd
}

// --- vector-stats ---

func newVectorStatsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "vector-stats",
		Short: "Embedding counts by model and average dimensions",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return fail(err)
			}
			defer a.Close()

			stats, err := a.store.GetStats()
			if err != nil {
				return fail(err)
			}
			if asJSON {
				return printJSON(stats)
			}
			fmt.Printf("totalEmbeddings: %d\n", stats.TotalEmbeddings)
			fmt.Printf("avgDimensions: %.1f\n", stats.AvgDimensions)
			for model, n := range stats.EmbeddingsByModel {
				fmt.Printf("  %s: %d\n", model, n)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "JSON output")
	return cmd
}

// --- add-channel ---

func newAddChannelCmd() *cobra.Command {
	var (
		maxVideos                  int
		spaceID                    string
		minDuration, maxDuration   float64
		includeShorts              bool
		excludeKeywords            []string
		includeKeywords            []string
		priority                   string
		dryRun                     bool
	)
	cmd := &cobra.Command{
		Use:   "add-channel <url>",
		Short: "Discover and ingest an entire channel's videos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return fail(err)
			}
			defer a.Close()

			opts := channel.Options{
				MaxVideos: maxVideos,
				Filter: channel.FilterOptions{
					MinDurationSec:  minDuration,
					MaxDurationSec:  maxDuration,
					IncludeShorts:   includeShorts,
					KeywordFilter:   includeKeywords,
					ExcludeKeywords: excludeKeywords,
				},
				Processing: channel.ProcessingOptions{
					BatchSize:            a.cfg.ConcurrentBatches,
					ConcurrentProcessing: a.cfg.ConcurrentProcessing,
					EnableTranscripts:    true,
					EnableFrameExtraction: true,
					PipelineOptions: pipeline.Options{
						SpaceID:          spaceID,
						EnableEmbeddings: a.embed.Available(),
						Chunking:         chunker.DefaultConfig(),
					},
				},
				Priority:        channel.PriorityMode(priority),
				OutputDirectory: a.cfg.DataDir,
				ProgressCallback: func(p channel.Progress) {
					a.log.WithField("video", p.CurrentVideo).Infof("%d/%d processed (%.0f%%)", p.SuccessfullyProcessed+p.FailedProcessing, p.TotalToProcess, p.OverallProgressPercent)
				},
			}

			if dryRun {
				discovered, derr := a.downloader.DiscoverChannel(context.Background(), args[0], maxVideos)
				if derr != nil {
					return fail(derr)
				}
				fmt.Printf("would process %d discovered video(s)\n", len(discovered))
				return nil
			}

			result, err := a.orch.Run(context.Background(), args[0], opts)
			if err != nil {
				return fail(err)
			}
			fmt.Printf("discovered: %d\n", result.DiscoveryCount)
			fmt.Printf("processed: %d\n", len(result.ProcessingResults))
			fmt.Printf("errors: %d\n", len(result.Errors))
			for _, e := range result.Errors {
				fmt.Printf("  %s\n", e)
			}
			for _, r := range result.Recommendations {
				fmt.Printf("recommendation: %s\n", r)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&maxVideos, "max-videos", "m", 0, "maximum videos to discover (0 = no limit)")
	cmd.Flags().StringVarP(&spaceID, "space", "s", "", "target space id")
	cmd.Flags().Float64Var(&minDuration, "min-duration", 0, "minimum video duration in seconds")
	cmd.Flags().Float64Var(&maxDuration, "max-duration", 0, "maximum video duration in seconds")
	cmd.Flags().BoolVar(&includeShorts, "include-shorts", false, "include videos under 60s")
	cmd.Flags().StringSliceVar(&excludeKeywords, "exclude-keywords", nil, "skip titles containing any of these")
	cmd.Flags().StringSliceVar(&includeKeywords, "include-keywords", nil, "require titles containing one of these")
	cmd.Flags().StringVar(&priority, "priority", string(channel.PriorityNewestFirst), "newest-first|oldest-first|most-popular|longest-first")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "discover only, print the count, and exit")
	return cmd
}

// --- spaces / create-space / stats / export / check / config ---

func newSpacesCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "spaces",
		Short: "List spaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return fail(err)
			}
			defer a.Close()

			spaces, err := a.store.ListSpaces()
			if err != nil {
				return fail(err)
			}
			if asJSON {
				return printJSON(spaces)
			}
			for _, s := range spaces {
				fmt.Printf("%s\t%s\n", s.ID, s.Name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "JSON output")
	return cmd
}

func newCreateSpaceCmd() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "create-space <name>",
		Short: "Create a space",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return fail(err)
			}
			defer a.Close()

			sp, err := a.store.CreateSpace(args[0], description)
			if err != nil {
				return fail(err)
			}
			fmt.Printf("created space %s (%s)\n", sp.Name, sp.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "space description")
	return cmd
}

// --- tags ---

func newTagsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tags <memoryId>",
		Short: "List tags attached to a memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return fail(err)
			}
			defer a.Close()

			tags, err := a.store.FindTagsByMemoryID(args[0])
			if err != nil {
				return fail(err)
			}
			if asJSON {
				return printJSON(tags)
			}
			for _, t := range tags {
				fmt.Printf("%s\t%s\n", t.ID, t.Name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "JSON output")
	return cmd
}

func newDeleteTagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-tag <tagId>",
		Short: "Delete a tag and its memory links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return fail(err)
			}
			defer a.Close()

			if err := a.store.DeleteTag(args[0]); err != nil {
				return fail(err)
			}
			fmt.Printf("deleted tag %s\n", args[0])
			return nil
		},
	}
	return cmd
}

// --- deep-links ---

func newDeepLinksCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "deep-links <memoryId>",
		Short: "List timestamped deep links recorded for a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return fail(err)
			}
			defer a.Close()

			links, err := a.store.FindDeepLinksByVideoID(args[0])
			if err != nil {
				return fail(err)
			}
			if asJSON {
				return printJSON(links)
			}
			for _, l := range links {
				fmt.Printf("%.0fs\t%s\t%s\n", l.TimestampStartSec, l.DeeplinkURL, l.ContextSummary)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "JSON output")
	return cmd
}

func newStatsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Store-wide counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return fail(err)
			}
			defer a.Close()

			stats, err := a.store.GetStats()
			if err != nil {
				return fail(err)
			}
			if asJSON {
				return printJSON(stats)
			}
			fmt.Printf("memories: %d\n", stats.TotalMemories)
			fmt.Printf("chunks: %d\n", stats.TotalChunks)
			fmt.Printf("embeddings: %d\n", stats.TotalEmbeddings)
			fmt.Printf("activeJobs: %d\n", stats.ActiveJobs)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "JSON output")
	return cmd
}

// exportDump is the shape written by `export`: every space's memories
// with their chunks, enough to reconstruct the store's logical content
// (not a byte-for-byte database backup).
type exportDump struct {
	ExportedAt time.Time       `json:"exportedAt"`
	Spaces     []store.Space   `json:"spaces"`
	Memories   []store.Memory  `json:"memories"`
	Chunks     []store.Chunk   `json:"chunks"`
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <path>",
		Short: "Export spaces, memories, and chunks to a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return fail(err)
			}
			defer a.Close()

			spaces, err := a.store.ListSpaces()
			if err != nil {
				return fail(err)
			}
			memories, err := a.store.SearchMemories("", store.MemorySearchFilter{Limit: 1 << 20})
			if err != nil {
				return fail(err)
			}
			memIDs := make([]string, len(memories))
			for i, m := range memories {
				memIDs[i] = m.ID
			}
			chunks, err := a.store.FindChunksByMemoryIDs(memIDs)
			if err != nil {
				return fail(err)
			}

			dump := exportDump{ExportedAt: time.Now().UTC(), Spaces: spaces, Memories: memories, Chunks: chunks}
			payload, err := json.MarshalIndent(dump, "", "  ")
			if err != nil {
				return fail(&errs.SystemError{Reason: "marshal export", Err: err})
			}
			if err := os.WriteFile(args[0], payload, 0o644); err != nil {
				return fail(&errs.SystemError{Reason: "write export file", Err: err})
			}
			fmt.Printf("exported %d space(s), %d memor(y/ies), %d chunk(s) to %s\n", len(spaces), len(memories), len(chunks), args[0])
			return nil
		},
	}
	return cmd
}

// newCheckCmd reports store health, whether an embedding endpoint is
// configured, and whether Redis connected, without running the full
// pipeline. The ffmpeg, ffprobe, yt-dlp and transcriber binaries are not
// checked.
func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the configured store and external tool availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return fail(err)
			}
			defer a.Close()

			ok := true
			report := func(name string, err error) {
				if err != nil {
					ok = false
					fmt.Printf("%-16s FAIL: %v\n", name, err)
					return
				}
				fmt.Printf("%-16s OK\n", name)
			}
			report("store", a.store.Health())
			report("embedder", boolErr(a.embed.Available(), "no endpoint configured"))
			if a.progress != nil {
				report("redis", nil)
			} else {
				fmt.Printf("%-16s disabled (progress events best-effort only)\n", "redis")
			}
			if !ok {
				return fmt.Errorf("one or more checks failed")
			}
			return nil
		},
	}
	return cmd
}

func boolErr(ok bool, reason string) error {
	if ok {
		return nil
	}
	return fmt.Errorf("%s", reason)
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			cfg, err := config.Load(cfgFile, v)
			if err != nil {
				return fail(err)
			}
			return printJSON(cfg)
		},
	}
	return cmd
}

func newServeMCPCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve-mcp",
		Short: "Serve the MCP transport shim (spawned as a child process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return fail(err)
			}
			defer a.Close()

			srv := mcpserve.New(a.store, a.searcher, a.log)
			a.log.Infof("serving MCP transport on %s", addr)
			if err := srv.Run(addr); err != nil {
				return fail(&errs.SystemError{Reason: "mcp server exited", Err: err})
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8848", "listen address")
	return cmd
}
