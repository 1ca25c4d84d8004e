// Package pipeline drives the per-video ingestion state machine
// (spec.md §4.6), superseding the teacher's stub VideoProcessor
// (internal/processor) with a fully sequenced
// validation→metadata→audio→transcription→frame-sampling→
// content-processing→database-storage flow, wired to the real
// media/transcriber/chunker/embedder adapters instead of untyped
// map[string]interface{} payloads.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"spiralmem/internal/chunker"
	"spiralmem/internal/embedder"
	"spiralmem/internal/errs"
	"spiralmem/internal/ffmpeg"
	"spiralmem/internal/media"
	"spiralmem/internal/queue"
	"spiralmem/internal/store"
	"spiralmem/internal/transcriber"
)

// validExtensions lists the video container formats validation
// accepts (spec.md §4.6).
var validExtensions = map[string]bool{
	".mp4": true, ".avi": true, ".mov": true, ".mkv": true, ".webm": true,
	".flv": true, ".wmv": true, ".m4v": true,
}

// Options configures one ProcessVideo run.
type Options struct {
	SpaceID                     string
	EnableFrameSampling         bool
	EnableTranscription         bool
	EnableEmbeddings            bool
	Chunking                    chunker.Config
	OutputDirectory             string
	SkipValidation              bool
	AudioFirstMode              bool
	FastAudioExtraction         bool
	CustomTitle                 string
	CleanupVideoAfterProcessing bool
	KeepAudioFiles              bool
	EmbeddingModel              string
	FrameSampleMethod           media.FrameSampleMethod
	PreferEmbeddedSubtitles     bool
}

// Result is ProcessVideo's typed return value.
type Result struct {
	JobID        string
	MemoryID     string
	Status       store.JobStatus
	ChunkCount   int
	HasEmbeddings bool
	BytesFreed   int64
	Warnings     []string
	ElapsedMs    int64
}

// Pipeline wires the adapters a video-ingestion job needs. One
// Pipeline is shared across jobs; it carries no per-job state.
type Pipeline struct {
	store       *store.Store
	extractor   *media.Extractor
	prober      *media.Prober
	transcriber *transcriber.Transcriber
	embedder    *embedder.Embedder
	subtitles   *ffmpeg.FFmpegClient
	progress    *queue.Queue
	log         *logrus.Logger
}

// New builds a Pipeline from its adapters. embed may be nil (the
// embedder is unavailable); the content-processing step then skips
// embedding generation rather than failing (spec.md §4.5). progress
// may be nil, in which case per-step progress events are simply not
// published (the job table in internal/store remains authoritative).
func New(st *store.Store, ffmpegPath, ffprobePath string, tr *transcriber.Transcriber, embed *embedder.Embedder, progress *queue.Queue, log *logrus.Logger) *Pipeline {
	return &Pipeline{
		store:       st,
		extractor:   media.NewExtractor(ffmpegPath),
		prober:      media.NewProber(ffprobePath),
		transcriber: tr,
		embedder:    embed,
		subtitles:   ffmpeg.NewFFmpegClient(),
		progress:    progress,
		log:         log,
	}
}

// publishProgress is a best-effort progress broadcast; failures are
// logged, not propagated, since the job table remains the source of
// truth (spec.md §7).
func (p *Pipeline) publishProgress(ctx context.Context, jobID string, status store.JobStatus, percent int, step string) {
	if p.progress == nil {
		return
	}
	if err := p.progress.PublishProgress(ctx, queue.ProgressEvent{
		JobID: jobID, Status: status, Progress: percent, Step: step,
	}); err != nil {
		p.log.WithError(err).Debug("failed to publish progress event")
	}
}

// ProcessVideo runs the full ingestion state machine against a local
// video file, creating a VideoProcessingJob and driving it to a
// terminal status (spec.md §4.6). The caller is responsible for any
// prior platform-download step (YouTube URL mode runs through
// internal/platform before calling this).
func (p *Pipeline) ProcessVideo(ctx context.Context, videoPath string, opts Options) (*Result, error) {
	start := time.Now()
	job, err := p.store.CreateJob(store.JobCreateInput{
		SourceID:   videoPath,
		SourceType: store.JobSourceLocal,
		VideoPath:  videoPath,
	})
	if err != nil {
		return nil, err
	}

	res := &Result{JobID: job.ID, Status: store.JobStatusPending}
	logger := p.log.WithField("job_id", job.ID)

	if err := p.store.UpdateJobStatus(job.ID, store.JobStatusProcessing, intPtr(0), ""); err != nil {
		return res, err
	}

	if !opts.SkipValidation {
		if err := p.runValidation(job.ID, videoPath); err != nil {
			p.failJob(ctx, job.ID, 10, "validation", err)
			res.Status = store.JobStatusFailed
			return res, err
		}
	}
	p.completeStep(ctx, job.ID, "validation", 10, nil)

	probeResult, err := p.runMetadata(ctx, job.ID, videoPath)
	if err != nil {
		p.failJob(ctx, job.ID, 20, "metadata", err)
		res.Status = store.JobStatusFailed
		return res, err
	}
	p.completeStep(ctx, job.ID, "metadata", 20, store.JSONMap{"durationSec": probeResult.DurationSec})

	audioPath, err := p.runAudioExtraction(ctx, job.ID, videoPath, opts)
	if err != nil {
		p.failJob(ctx, job.ID, 30, "audio-extraction", err)
		res.Status = store.JobStatusFailed
		return res, err
	}
	p.completeStep(ctx, job.ID, "audio-extraction", 40, store.JSONMap{"audioPath": audioPath})
	_ = p.store.SetJobPaths(job.ID, videoPath, audioPath, "")

	var tscript *store.Transcript
	if opts.EnableTranscription {
		tscript, err = p.runTranscription(ctx, job.ID, videoPath, audioPath, opts)
		if err != nil {
			logger.WithError(err).Warn("transcription failed, continuing without transcript")
			res.Warnings = append(res.Warnings, "transcription: "+err.Error())
			p.warnStep(job.ID, "transcription", err)
		}
	}
	p.advanceProgress(ctx, job.ID, 60)

	if opts.EnableFrameSampling {
		if err := p.runFrameSampling(ctx, job.ID, videoPath, probeResult, opts); err != nil {
			logger.WithError(err).Warn("frame sampling failed")
			res.Warnings = append(res.Warnings, "frame-sampling: "+err.Error())
			p.warnStep(job.ID, "frame-sampling", err)
		}
	}
	p.advanceProgress(ctx, job.ID, 70)

	var chunks []chunker.Chunk
	var hasEmbeddings bool
	if tscript != nil {
		chunks, hasEmbeddings, err = p.runContentProcessing(ctx, job.ID, *tscript, opts)
		if err != nil {
			logger.WithError(err).Warn("content processing failed")
			res.Warnings = append(res.Warnings, "content-processing: "+err.Error())
			p.warnStep(job.ID, "content-processing", err)
		}
	}
	p.advanceProgress(ctx, job.ID, 80)

	memoryID, chunkCount, err := p.runDatabaseStorage(job.ID, videoPath, tscript, chunks, opts)
	if err != nil {
		p.failJob(ctx, job.ID, 90, "database-storage", err)
		res.Status = store.JobStatusFailed
		return res, err
	}
	res.MemoryID = memoryID
	res.ChunkCount = chunkCount
	res.HasEmbeddings = hasEmbeddings
	p.completeStep(ctx, job.ID, "database-storage", 90, store.JSONMap{"memoryId": memoryID})

	if opts.CleanupVideoAfterProcessing {
		if freed, err := p.runCleanup(job.ID, videoPath, audioPath, opts); err != nil {
			logger.WithError(err).Warn("cleanup failed")
			res.Warnings = append(res.Warnings, "cleanup: "+err.Error())
		} else {
			res.BytesFreed = freed
		}
	}

	if err := p.store.UpdateJobStatus(job.ID, store.JobStatusCompleted, intPtr(100), ""); err != nil {
		return res, err
	}
	p.publishProgress(ctx, job.ID, store.JobStatusCompleted, 100, "")
	res.Status = store.JobStatusCompleted
	res.ElapsedMs = time.Since(start).Milliseconds()
	return res, nil
}

func (p *Pipeline) runValidation(jobID, videoPath string) error {
	_ = p.store.UpdateStep(jobID, "validation", store.StepStatusRunning, nil, "")
	info, err := os.Stat(videoPath)
	if err != nil {
		return &errs.ValidationError{Field: "videoPath", Reason: "file does not exist: " + videoPath}
	}
	if info.Size() == 0 {
		return &errs.ValidationError{Field: "videoPath", Reason: "file is empty"}
	}
	ext := filepath.Ext(videoPath)
	if !validExtensions[ext] {
		return &errs.ValidationError{Field: "videoPath", Reason: "unsupported extension: " + ext}
	}
	return nil
}

func (p *Pipeline) runMetadata(ctx context.Context, jobID, videoPath string) (*media.ProbeResult, error) {
	_ = p.store.UpdateStep(jobID, "metadata", store.StepStatusRunning, nil, "")
	return p.prober.Probe(ctx, videoPath)
}

func (p *Pipeline) runAudioExtraction(ctx context.Context, jobID, videoPath string, opts Options) (string, error) {
	_ = p.store.UpdateStep(jobID, "audio-extraction", store.StepStatusRunning, nil, "")
	audioOpts := media.TranscriptionOptimalOptions(opts.OutputDirectory)
	if opts.FastAudioExtraction {
		audioOpts = media.FastAudioOptions(opts.OutputDirectory)
	}
	result, err := p.extractor.ExtractAudio(ctx, p.prober, videoPath, audioOpts)
	if err != nil {
		return "", err
	}
	return result.OutputPath, nil
}

// runTranscription prefers an embedded subtitle stream when
// opts.PreferEmbeddedSubtitles is set (SPEC_FULL.md SRT passthrough
// supplement), falling back to the speech-recognition transcriber
// when the video carries no usable subtitle stream.
func (p *Pipeline) runTranscription(ctx context.Context, jobID, videoPath, audioPath string, opts Options) (*store.Transcript, error) {
	_ = p.store.UpdateStep(jobID, "transcription", store.StepStatusRunning, nil, "")

	if opts.PreferEmbeddedSubtitles {
		srtPath := filepath.Join(opts.OutputDirectory, "transcripts", baseNameNoExt(videoPath)+".srt")
		if err := os.MkdirAll(filepath.Dir(srtPath), 0o755); err == nil {
			if err := p.subtitles.ExtractSubtitlesToSRT(videoPath, srtPath); err == nil {
				if result, err := transcriber.TranscribeFromSRT(srtPath); err == nil {
					_ = p.store.SetJobPaths(jobID, "", "", result.OutputFilePath)
					return &store.Transcript{
						Language:     result.Language,
						DurationSec:  result.DurationSec,
						SegmentCount: len(result.Segments),
						FullText:     result.Text,
						Segments:     result.Segments,
					}, nil
				}
			}
		}
	}

	if p.transcriber == nil {
		return nil, &errs.TranscriptionError{Reason: "no transcriber configured"}
	}
	result, err := p.transcriber.Transcribe(ctx, audioPath, transcriber.Options{OutputDir: opts.OutputDirectory})
	if err != nil {
		return nil, err
	}
	_ = p.store.SetJobPaths(jobID, "", "", result.OutputFilePath)
	t := &store.Transcript{
		Language:     result.Language,
		DurationSec:  result.DurationSec,
		SegmentCount: len(result.Segments),
		FullText:     result.Text,
		Segments:     result.Segments,
	}
	return t, nil
}

func baseNameNoExt(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}

// runFrameSampling either samples frames now or, in audioFirstMode,
// records that the video is prepared for later on-demand extraction
// without doing the extraction work (spec.md §4.6 deferred contract).
// opts.FrameSampleMethod selects among the four sampling strategies
// (spec.md §4.2); an unset method defaults to uniform.
func (p *Pipeline) runFrameSampling(ctx context.Context, jobID, videoPath string, probeResult *media.ProbeResult, opts Options) error {
	_ = p.store.UpdateStep(jobID, "frame-sampling", store.StepStatusRunning, nil, "")
	if opts.AudioFirstMode {
		return p.store.UpdateStep(jobID, "frame-sampling", store.StepStatusCompleted, store.JSONMap{"deferred": true}, "")
	}

	method := opts.FrameSampleMethod
	if method == "" {
		method = media.FrameSampleUniform
	}

	framesDir := filepath.Join(opts.OutputDirectory, "frames")
	frames, err := p.extractor.ExtractFrames(ctx, p.prober, videoPath, framesDir, media.ExtractFramesOptions{
		Method:     method,
		StartTime:  0,
		EndTime:    probeResult.DurationSec,
		FrameCount: 10,
	})
	if err != nil {
		return err
	}
	return p.store.UpdateStep(jobID, "frame-sampling", store.StepStatusCompleted, store.JSONMap{"frameCount": len(frames), "method": string(method)}, "")
}

func (p *Pipeline) runContentProcessing(ctx context.Context, jobID string, tscript store.Transcript, opts Options) ([]chunker.Chunk, bool, error) {
	_ = p.store.UpdateStep(jobID, "content-processing", store.StepStatusRunning, nil, "")

	cfg := opts.Chunking
	if cfg.ChunkSize == 0 {
		cfg = chunker.DefaultConfig()
	}
	result := chunker.Chunk(tscript, cfg)

	hasEmbeddings := false
	if opts.EnableEmbeddings && p.embedder != nil && p.embedder.Available() {
		texts := make([]string, len(result.Chunks))
		for i, c := range result.Chunks {
			texts[i] = c.Content
		}
		embResults, _, err := p.embedder.Embed(ctx, texts, embedder.Options{Model: opts.EmbeddingModel})
		if err != nil {
			// Absence/failure of the embedding tool is a soft failure
			// (spec.md §4.5): the chunks still proceed to storage.
			_ = p.store.UpdateStep(jobID, "content-processing", store.StepStatusCompleted, store.JSONMap{"chunkCount": len(result.Chunks), "embeddingError": err.Error()}, "")
			return result.Chunks, false, nil
		}
		for _, r := range embResults {
			if r.Err == nil && len(r.Vector) > 0 {
				hasEmbeddings = true
				break
			}
		}
	}

	_ = p.store.UpdateStep(jobID, "content-processing", store.StepStatusCompleted, store.JSONMap{"chunkCount": len(result.Chunks), "timestampCoverage": result.TimestampCoverage}, "")
	return result.Chunks, hasEmbeddings, nil
}

// runDatabaseStorage creates the Memory first, then inserts each
// chunk individually; a chunk insert failure is logged but does not
// abort the remaining chunks or fail the job (spec.md §4.6).
func (p *Pipeline) runDatabaseStorage(jobID, videoPath string, tscript *store.Transcript, chunks []chunker.Chunk, opts Options) (string, int, error) {
	_ = p.store.UpdateStep(jobID, "database-storage", store.StepStatusRunning, nil, "")

	title := opts.CustomTitle
	if title == "" {
		title = filepath.Base(videoPath)
	}

	content := ""
	if tscript != nil {
		content = tscript.FullText
	}

	var memoryID string
	var insertedChunks int
	txErr := p.store.Transaction(func(tx *gorm.DB) error {
		memory, err := p.store.CreateMemoryTx(tx, store.MemoryCreateInput{
			SpaceID:     opts.SpaceID,
			ContentType: store.ContentTypeVideo,
			Title:       title,
			Content:     content,
			Source:      videoPath,
			FilePath:    videoPath,
			Metadata:    store.JSONMap{"jobId": jobID},
		})
		if err != nil {
			return err
		}
		memoryID = memory.ID

		var snapshots store.JSONChunkSnapshots
		for i, c := range chunks {
			chunk, chunkErr := p.store.CreateChunkTx(tx, store.ChunkCreateInput{
				MemoryID:      memory.ID,
				ChunkText:     c.Content,
				ChunkOrder:    i,
				StartOffsetMs: c.StartTimeMs,
				EndOffsetMs:   c.EndTimeMs,
				Metadata:      store.JSONMap{},
			})
			if chunkErr != nil {
				p.log.WithError(chunkErr).WithField("chunk_index", i).Warn("failed to insert chunk, continuing")
				continue
			}
			insertedChunks++
			snapshots = append(snapshots, store.ChunkSnapshot{
				ID: chunk.ID, ChunkText: chunk.ChunkText, ChunkOrder: chunk.ChunkOrder,
				StartOffsetMs: chunk.StartOffsetMs, EndOffsetMs: chunk.EndOffsetMs,
			})
		}

		if len(chunks) > 0 {
			jt := store.JSONTranscript{}
			if tscript != nil {
				jt = store.JSONTranscript(*tscript)
			}
			_, err := p.store.CreateProcessedContentTx(tx, store.ProcessedContentInput{
				JobID:      jobID,
				MemoryID:   memory.ID,
				Chunks:     snapshots,
				Transcript: jt,
				Metadata:   store.JSONMap{"chunkCount": insertedChunks},
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		return "", 0, txErr
	}
	return memoryID, insertedChunks, nil
}

// runCleanup deletes the source video when requested, reporting bytes
// freed. Skipped unless audio was kept, matching the safety contract
// in spec.md §4.6 ("if audio is absent or keepAudioFiles is false,
// skip cleanup").
func (p *Pipeline) runCleanup(jobID, videoPath, audioPath string, opts Options) (int64, error) {
	if !opts.KeepAudioFiles || audioPath == "" {
		return 0, nil
	}
	info, err := os.Stat(videoPath)
	if err != nil {
		return 0, nil
	}
	if err := os.Remove(videoPath); err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (p *Pipeline) completeStep(ctx context.Context, jobID, name string, progress int, metadata store.JSONMap) {
	_ = p.store.UpdateStep(jobID, name, store.StepStatusCompleted, metadata, "")
	_ = p.store.UpdateJobStatus(jobID, store.JobStatusProcessing, intPtr(progress), "")
	p.publishProgress(ctx, jobID, store.JobStatusProcessing, progress, name)
}

func (p *Pipeline) warnStep(jobID, name string, stepErr error) {
	_ = p.store.UpdateStep(jobID, name, store.StepStatusFailed, nil, stepErr.Error())
}

func (p *Pipeline) advanceProgress(ctx context.Context, jobID string, progress int) {
	_ = p.store.UpdateJobStatus(jobID, store.JobStatusProcessing, intPtr(progress), "")
	p.publishProgress(ctx, jobID, store.JobStatusProcessing, progress, "")
}

func (p *Pipeline) failJob(ctx context.Context, jobID string, progress int, step string, err error) {
	_ = p.store.UpdateStep(jobID, step, store.StepStatusFailed, nil, err.Error())
	_ = p.store.UpdateJobStatus(jobID, store.JobStatusFailed, intPtr(progress), err.Error())
	p.publishProgress(ctx, jobID, store.JobStatusFailed, progress, step)
}

func intPtr(v int) *int { return &v }
