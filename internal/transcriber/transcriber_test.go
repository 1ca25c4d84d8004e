package transcriber

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSRT(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "subs.srt")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestTranscribeFromSRTJoinsSegments(t *testing.T) {
	srt := "1\n00:00:00,000 --> 00:00:02,500\nHello there.\n\n2\n00:00:02,500 --> 00:00:05,000\nGeneral Kenobi.\n\n"
	path := writeSRT(t, srt)

	result, err := TranscribeFromSRT(path)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "Hello there. General Kenobi.", result.Text)
	assert.InDelta(t, 5.0, result.DurationSec, 1e-9)
	require.Len(t, result.Segments, 2)
	assert.Equal(t, "Hello there.", result.Segments[0].Text)
	assert.InDelta(t, 2.5, result.Segments[1].StartSec, 1e-9)
	assert.Equal(t, path, result.OutputFilePath)
}

func TestTranscribeFromSRTMissingFile(t *testing.T) {
	_, err := TranscribeFromSRT(filepath.Join(t.TempDir(), "missing.srt"))
	require.Error(t, err)
}

func TestConfidenceFromLogProbClampsToUnitRange(t *testing.T) {
	assert.Equal(t, 1.0, confidenceFromLogProb(0))
	assert.Equal(t, 0.0, confidenceFromLogProb(-5))
	assert.InDelta(t, 0.8, confidenceFromLogProb(-0.2), 1e-9)
}

func TestBaseNameNoExt(t *testing.T) {
	assert.Equal(t, "audio", baseNameNoExt("/tmp/out/audio.wav"))
	assert.Equal(t, "clip.final", baseNameNoExt("clip.final.mp3"))
}
