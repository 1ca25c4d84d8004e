// Package transcriber wraps a local speech-recognition binary
// (whisper.cpp / faster-whisper CLI-compatible), grounded on the
// teacher's media subprocess-runner style (internal/media) combined
// with ghovax-LecturesAssistant's segment-batch transcription loop,
// collapsed here into a single subprocess invocation per audio file
// since the chosen binary already segments internally.
package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"spiralmem/internal/errs"
	"spiralmem/internal/ffmpeg"
	"spiralmem/internal/store"
)

// Options configures one Transcribe call.
type Options struct {
	Binary    string
	Model     string
	Language  string // empty = auto-detect
	OutputDir string // outputDirectory/transcripts per spec.md §4.3
}

const transcribeTimeout = 30 * time.Minute

// Result is Transcribe's typed return value (spec.md §4.3).
type Result struct {
	Success           bool
	Text              string
	Language          string
	DurationSec       float64
	AverageConfidence *float64
	Segments          []store.TranscriptSegment
	OutputFilePath    string
	SRTFilePath       string
}

// Transcriber wraps the configured speech-recognition binary.
type Transcriber struct {
	binary string
	model  string
}

// New builds a Transcriber. An empty binary path falls back to
// "whisper" on PATH.
func New(binary, model string) *Transcriber {
	if binary == "" {
		binary = "whisper"
	}
	return &Transcriber{binary: binary, model: model}
}

// whisperJSONOutput mirrors the --output_format json shape shared by
// whisper.cpp and faster-whisper-compatible CLIs: segments carrying
// optional word-level timestamps.
type whisperJSONOutput struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Segments []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Words []struct {
			Word  string  `json:"word"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
			Prob  float64 `json:"probability"`
		} `json:"words"`
		AvgLogProb float64 `json:"avg_logprob"`
	} `json:"segments"`
}

// Transcribe runs the speech-recognition binary against audioPath,
// writes the parsed transcript JSON to outputDirectory/transcripts,
// and returns the typed Result. Word-level timestamps may be absent
// from the binary's output; downstream chunking tolerates their
// absence (spec.md §4.3).
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string, opts Options) (*Result, error) {
	if opts.Binary == "" {
		opts.Binary = t.binary
	}
	if opts.Model == "" {
		opts.Model = t.model
	}

	outDir := opts.OutputDir
	if outDir == "" {
		outDir = filepath.Dir(audioPath)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, &errs.TranscriptionError{Reason: "create output directory", Err: err}
	}

	stem := baseNameNoExt(audioPath)
	jsonPath := filepath.Join(outDir, stem+".json")

	args := []string{
		audioPath,
		"--model", opts.Model,
		"--output_format", "json",
		"--output_dir", outDir,
		"--word_timestamps", "True",
	}
	if opts.Language != "" {
		args = append(args, "--language", opts.Language)
	}

	ctx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, opts.Binary, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &errs.TranscriptionError{Reason: "timed out", Err: ctx.Err()}
		}
		return nil, &errs.TranscriptionError{Reason: errs.TruncateTail(stderr.String(), 4096), Err: err}
	}

	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, &errs.TranscriptionError{Reason: "read transcript output", Err: err}
	}

	var parsed whisperJSONOutput
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &errs.TranscriptionError{Reason: "parse transcript JSON", Err: err}
	}

	segments := make([]store.TranscriptSegment, 0, len(parsed.Segments))
	var confSum float64
	var confN int
	var durationSec float64
	for _, s := range parsed.Segments {
		seg := store.TranscriptSegment{
			Text:     s.Text,
			StartSec: s.Start,
			EndSec:   s.End,
		}
		if s.AvgLogProb != 0 {
			conf := confidenceFromLogProb(s.AvgLogProb)
			seg.Confidence = conf
			confSum += conf
			confN++
		}
		for _, w := range s.Words {
			seg.Words = append(seg.Words, store.TranscriptWord{
				Word:       w.Word,
				StartMs:    int64(w.Start * 1000),
				EndMs:      int64(w.End * 1000),
				Confidence: w.Prob,
			})
		}
		segments = append(segments, seg)
		if s.End > durationSec {
			durationSec = s.End
		}
	}

	result := &Result{
		Success:        true,
		Text:           parsed.Text,
		Language:       parsed.Language,
		DurationSec:    durationSec,
		Segments:       segments,
		OutputFilePath: jsonPath,
	}
	if confN > 0 {
		avg := confSum / float64(confN)
		result.AverageConfidence = &avg
	}

	srtPath := filepath.Join(outDir, stem+".srt")
	if err := ffmpeg.WriteSRTFile(srtPath, subtitlesFromSegments(segments)); err == nil {
		result.SRTFilePath = srtPath
	}

	return result, nil
}

// subtitlesFromSegments converts transcript segments into the SRT
// subtitle shape for WriteSRTFile.
func subtitlesFromSegments(segments []store.TranscriptSegment) []ffmpeg.Subtitle {
	subs := make([]ffmpeg.Subtitle, len(segments))
	for i, s := range segments {
		subs[i] = ffmpeg.Subtitle{
			Index: i + 1,
			Start: time.Duration(s.StartSec * float64(time.Second)),
			End:   time.Duration(s.EndSec * float64(time.Second)),
			Text:  s.Text,
		}
	}
	return subs
}

// TranscribeFromSRT adapts a pre-extracted subtitle stream into the
// same Result shape, skipping the speech-recognition binary entirely
// (SPEC_FULL.md supplement: SRT/VTT subtitle passthrough, grounded on
// the teacher's ExtractSubtitlesToSRT + ParseSRTFile).
func TranscribeFromSRT(srtPath string) (*Result, error) {
	subs, err := ffmpeg.ParseSRTFile(srtPath)
	if err != nil {
		return nil, &errs.TranscriptionError{Reason: "parse subtitle stream", Err: err}
	}

	segments := make([]store.TranscriptSegment, 0, len(subs))
	var fullText string
	var durationSec float64
	for _, s := range subs {
		segments = append(segments, store.TranscriptSegment{
			Text:     s.Text,
			StartSec: s.Start.Seconds(),
			EndSec:   s.End.Seconds(),
		})
		if fullText != "" {
			fullText += " "
		}
		fullText += s.Text
		if end := s.End.Seconds(); end > durationSec {
			durationSec = end
		}
	}

	return &Result{
		Success:        true,
		Text:           fullText,
		Language:       "",
		DurationSec:    durationSec,
		Segments:       segments,
		OutputFilePath: srtPath,
	}, nil
}

func confidenceFromLogProb(avgLogProb float64) float64 {
	// avg_logprob is a negative log-likelihood; map it onto [0,1] with
	// a soft clamp rather than exposing the raw log scale to callers.
	c := 1.0 + avgLogProb
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c
}

func baseNameNoExt(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}
