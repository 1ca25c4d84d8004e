package media

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFrameRate(t *testing.T) {
	assert.InDelta(t, 30.0, parseFrameRate("30/1"), 1e-9)
	assert.InDelta(t, 29.97, parseFrameRate("30000/1001"), 1e-2)
	assert.Equal(t, 0.0, parseFrameRate("garbage"))
	assert.Equal(t, 0.0, parseFrameRate("1/0"))
}

func TestEstimateQualityMissingStreamIsLow(t *testing.T) {
	assert.Equal(t, QualityLow, estimateQuality(nil, 1000))
	assert.Equal(t, QualityLow, estimateQuality(&VideoStream{Width: 0, Height: 1080, FPS: 30}, 1000))
}

func TestEstimateQuality4KHighBitrate(t *testing.T) {
	v := &VideoStream{Width: 3840, Height: 2160, FPS: 30}
	q := estimateQuality(v, 100_000_000)
	assert.Equal(t, QualityVeryHigh, q)
}

func TestEstimateQuality1080Low(t *testing.T) {
	v := &VideoStream{Width: 1920, Height: 1080, FPS: 30}
	q := estimateQuality(v, 100)
	assert.Equal(t, QualityMedium, q)
}

func TestBuildAudioFilterChain(t *testing.T) {
	assert.Equal(t, "", buildAudioFilterChain(ExtractAudioOptions{Fast: true, Denoise: true, Normalize: true}))
	assert.Equal(t, "afftdn,loudnorm", buildAudioFilterChain(ExtractAudioOptions{Denoise: true, Normalize: true}))
	assert.Equal(t, "afftdn", buildAudioFilterChain(ExtractAudioOptions{Denoise: true}))
	assert.Equal(t, "", buildAudioFilterChain(ExtractAudioOptions{}))
}

func TestOutputPathWithTimestampSuffixNoCollision(t *testing.T) {
	dir := t.TempDir()
	got := outputPathWithTimestampSuffix(dir, "clip", "wav")
	assert.Equal(t, filepath.Join(dir, "clip.wav"), got)
}

func TestBaseNameNoExt(t *testing.T) {
	assert.Equal(t, "movie", baseNameNoExt("/tmp/videos/movie.mp4"))
	assert.Equal(t, "archive.tar", baseNameNoExt("archive.tar.gz"))
}

func TestThumbnailTimestamp(t *testing.T) {
	assert.InDelta(t, 10.0, thumbnailTimestamp(ThumbnailStart, 100), 1e-9)
	assert.InDelta(t, 50.0, thumbnailTimestamp(ThumbnailMiddle, 100), 1e-9)
	assert.InDelta(t, 90.0, thumbnailTimestamp(ThumbnailEnd, 100), 1e-9)
}
