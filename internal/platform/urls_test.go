package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spiralmem/internal/errs"
	"spiralmem/internal/store"
)

func TestDetectYouTube(t *testing.T) {
	p, err := Detect("https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, store.PlatformYouTube, p)
}

func TestDetectUnsupportedPlatform(t *testing.T) {
	_, err := Detect("https://example.com/video/123")
	require.Error(t, err)
	var pe *errs.PlatformError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, errs.PlatformErrorUnsupported, pe.Code)
}

func TestExtractYouTubeVideoID(t *testing.T) {
	id, err := ExtractYouTubeVideoID("https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", id)
}

func TestExtractYouTubeVideoIDShortURL(t *testing.T) {
	id, err := ExtractYouTubeVideoID("https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", id)
}

func TestExtractVideoIDInvalidURL(t *testing.T) {
	_, err := ExtractVideoID(store.PlatformYouTube, "https://www.youtube.com/watch?v=tooshort")
	require.Error(t, err)
	var pe *errs.PlatformError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, errs.PlatformErrorInvalidURL, pe.Code)
}
