package ffmpeg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSRTFileParsesMultipleEntries(t *testing.T) {
	contents := "1\n00:00:01,000 --> 00:00:02,000\nfirst line\n\n2\n00:00:02,500 --> 00:00:04,250\nsecond line\nwith wrap\n\n"
	path := filepath.Join(t.TempDir(), "subs.srt")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	subs, err := ParseSRTFile(path)
	require.NoError(t, err)
	require.Len(t, subs, 2)

	assert.Equal(t, 1, subs[0].Index)
	assert.Equal(t, time.Second, subs[0].Start)
	assert.Equal(t, "first line", subs[0].Text)

	assert.Equal(t, "second line\nwith wrap", subs[1].Text)
	assert.Equal(t, 2*time.Second+500*time.Millisecond, subs[1].Start)
	assert.Equal(t, 4*time.Second+250*time.Millisecond, subs[1].End)
}

func TestParseSRTFileMissingFile(t *testing.T) {
	_, err := ParseSRTFile(filepath.Join(t.TempDir(), "missing.srt"))
	require.Error(t, err)
}

func TestFormatDurationToSRT(t *testing.T) {
	d := time.Hour + 2*time.Minute + 3*time.Second + 456*time.Millisecond
	assert.Equal(t, "01:02:03,456", FormatDurationToSRT(d))
}
