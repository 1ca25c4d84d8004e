package media

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Quality classifies a video's encoded fidelity.
type Quality string

const (
	QualityLow      Quality = "low"
	QualityMedium   Quality = "medium"
	QualityHigh     Quality = "high"
	QualityVeryHigh Quality = "very_high"
)

// VideoStream describes the primary video stream found by probe.
type VideoStream struct {
	Codec  string
	Width  int
	Height int
	FPS    float64
}

// AudioStream describes the primary audio stream found by probe, if any.
type AudioStream struct {
	Codec      string
	SampleRate int
	Channels   int
	BitRate    int
}

// Chapter is one named chapter marker.
type Chapter struct {
	StartSec float64
	EndSec   float64
	Title    string
}

// Tags holds the handful of container tags the pipeline cares about.
type Tags struct {
	CreationTime string
	Title        string
	Artist       string
	Album        string
	Comment      string
}

// ProbeResult is probe's typed return value (spec.md §4.2).
type ProbeResult struct {
	DurationSec      float64
	Format           string
	SizeBytes        int64
	BitRate          int
	VideoStream      *VideoStream
	AudioStream      *AudioStream
	Chapters         []Chapter
	Tags             Tags
	EstimatedQuality Quality
}

// Prober wraps ffprobe for metadata extraction.
type Prober struct {
	r runner
}

// NewProber builds a Prober using the given ffprobe binary path (empty
// string falls back to "ffprobe" on PATH).
func NewProber(ffprobePath string) *Prober {
	return &Prober{r: newRunner("", ffprobePath)}
}

const probeTimeout = 30 * time.Second

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
	Chapters []ffprobeChapter `json:"chapters"`
}

type ffprobeStream struct {
	Index        int               `json:"index"`
	CodecName    string            `json:"codec_name"`
	CodecType    string            `json:"codec_type"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	RFrameRate   string            `json:"r_frame_rate"`
	SampleRate   string            `json:"sample_rate"`
	Channels     int               `json:"channels"`
	BitRate      string            `json:"bit_rate"`
	Tags         map[string]string `json:"tags"`
}

type ffprobeFormat struct {
	Duration string            `json:"duration"`
	Size     string            `json:"size"`
	BitRate  string            `json:"bit_rate"`
	FormatName string          `json:"format_name"`
	Tags     map[string]string `json:"tags"`
}

type ffprobeChapter struct {
	StartTime string            `json:"start_time"`
	EndTime   string            `json:"end_time"`
	Tags      map[string]string `json:"tags"`
}

// Probe runs ffprobe -show_format -show_streams -show_chapters and
// classifies the result into ProbeResult, grounded on
// eleven-am-goshl's probeStreams (stream classification) extended
// with the chapters/tags fields and quality-tier table spec.md §4.2
// names.
func (p *Prober) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	out, err := p.r.run(ctx, probeTimeout, p.r.ffprobePath,
		"-v", "error",
		"-show_format",
		"-show_streams",
		"-show_chapters",
		"-of", "json",
		path,
	)
	if err != nil {
		return nil, err
	}

	var ff ffprobeOutput
	if jsonErr := json.Unmarshal(out, &ff); jsonErr != nil {
		return nil, &mediaToolParseError{tool: "ffprobe", err: jsonErr}
	}

	result := &ProbeResult{Format: ff.Format.FormatName}
	if dur, e := strconv.ParseFloat(ff.Format.Duration, 64); e == nil {
		result.DurationSec = dur
	}
	if sz, e := strconv.ParseInt(ff.Format.Size, 10, 64); e == nil {
		result.SizeBytes = sz
	}
	if br, e := strconv.Atoi(ff.Format.BitRate); e == nil {
		result.BitRate = br
	}
	result.Tags = Tags{
		CreationTime: ff.Format.Tags["creation_time"],
		Title:        ff.Format.Tags["title"],
		Artist:       ff.Format.Tags["artist"],
		Album:        ff.Format.Tags["album"],
		Comment:      ff.Format.Tags["comment"],
	}

	for _, s := range ff.Streams {
		switch s.CodecType {
		case "video":
			if result.VideoStream == nil {
				result.VideoStream = &VideoStream{
					Codec:  s.CodecName,
					Width:  s.Width,
					Height: s.Height,
					FPS:    parseFrameRate(s.RFrameRate),
				}
			}
		case "audio":
			if result.AudioStream == nil {
				sr, _ := strconv.Atoi(s.SampleRate)
				br, _ := strconv.Atoi(s.BitRate)
				result.AudioStream = &AudioStream{
					Codec:      s.CodecName,
					SampleRate: sr,
					Channels:   s.Channels,
					BitRate:    br,
				}
			}
		}
	}

	for _, c := range ff.Chapters {
		start, _ := strconv.ParseFloat(c.StartTime, 64)
		end, _ := strconv.ParseFloat(c.EndTime, 64)
		result.Chapters = append(result.Chapters, Chapter{
			StartSec: start,
			EndSec:   end,
			Title:    c.Tags["title"],
		})
	}

	result.EstimatedQuality = estimateQuality(result.VideoStream, result.BitRate)
	return result, nil
}

// estimateQuality implements the deterministic height/bits-per-pixel
// table from spec.md §4.2.
func estimateQuality(v *VideoStream, bitrate int) Quality {
	if v == nil || v.Width == 0 || v.Height == 0 || v.FPS <= 0 {
		return QualityLow
	}
	pixelsPerSec := float64(v.Width) * float64(v.Height) * v.FPS
	if pixelsPerSec == 0 {
		return QualityLow
	}
	bpp := float64(bitrate) / pixelsPerSec

	switch {
	case v.Height >= 2160:
		if bpp > 0.1 {
			return QualityVeryHigh
		}
		return QualityHigh
	case v.Height >= 1080:
		if bpp > 0.05 {
			return QualityHigh
		}
		return QualityMedium
	case v.Height >= 720:
		if bpp > 0.03 {
			return QualityMedium
		}
		return QualityLow
	default:
		if bpp > 0.02 {
			return QualityMedium
		}
		return QualityLow
	}
}

func parseFrameRate(s string) float64 {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

// ProbeKeyframes enumerates keyframe presentation timestamps between
// startSec and endSec, grounded verbatim on eleven-am-goshl's
// probeKeyframes (pts_time/flags=K scan over -of csv=p=0, streamed
// through a bufio.Scanner rather than buffered in full).
func (p *Prober) ProbeKeyframes(ctx context.Context, path string, startSec, endSec float64) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	args := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "packet=pts_time,flags",
		"-of", "csv=p=0",
		path,
	}
	cmd := exec.CommandContext(ctx, p.r.ffprobePath, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &mediaToolParseError{tool: "ffprobe", err: err}
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, &mediaToolParseError{tool: "ffprobe", err: err}
	}

	var keyframes []float64
	scanner := bufio.NewScanner(stdoutPipe)
	for scanner.Scan() {
		line := scanner.Text()
		parts := strings.Split(line, ",")
		if len(parts) < 2 || !strings.Contains(parts[1], "K") {
			continue
		}
		pts, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			continue
		}
		if pts < startSec || (endSec > 0 && pts > endSec) {
			continue
		}
		keyframes = append(keyframes, pts)
	}

	if err := cmd.Wait(); err != nil {
		return nil, &mediaToolParseError{tool: "ffprobe", err: err}
	}
	return keyframes, nil
}

type mediaToolParseError struct {
	tool string
	err  error
}

func (e *mediaToolParseError) Error() string {
	return e.tool + ": " + e.err.Error()
}

func (e *mediaToolParseError) Unwrap() error { return e.err }

var _ = os.Stdout
