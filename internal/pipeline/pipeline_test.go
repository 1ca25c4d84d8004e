package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spiralmem/internal/errs"
	"spiralmem/internal/logging"
	"spiralmem/internal/store"
)

func newTestPipeline(t *testing.T) (*Pipeline, *store.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath, logging.Noop())
	require.NoError(t, err)
	require.NoError(t, st.AutoMigrate())
	t.Cleanup(func() { _ = st.Close() })

	p := New(st, "ffmpeg", "ffprobe", nil, nil, nil, logging.Noop())
	return p, st
}

func TestRunValidationRejectsMissingFile(t *testing.T) {
	p, _ := newTestPipeline(t)
	err := p.runValidation("job-1", filepath.Join(t.TempDir(), "missing.mp4"))
	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestRunValidationRejectsEmptyFile(t *testing.T) {
	p, _ := newTestPipeline(t)
	path := filepath.Join(t.TempDir(), "empty.mp4")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	err := p.runValidation("job-1", path)
	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestRunValidationRejectsUnsupportedExtension(t *testing.T) {
	p, _ := newTestPipeline(t)
	path := filepath.Join(t.TempDir(), "clip.txt")
	require.NoError(t, os.WriteFile(path, []byte("not a video"), 0o644))

	err := p.runValidation("job-1", path)
	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestRunValidationAcceptsSupportedExtension(t *testing.T) {
	p, _ := newTestPipeline(t)
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("fake video bytes"), 0o644))

	assert.NoError(t, p.runValidation("job-1", path))
}

func TestBaseNameNoExt(t *testing.T) {
	assert.Equal(t, "movie", baseNameNoExt("/videos/movie.mp4"))
	assert.Equal(t, "archive.tar", baseNameNoExt("archive.tar.gz"))
}

func TestProcessVideoFailsJobOnValidationError(t *testing.T) {
	p, st := newTestPipeline(t)

	res, err := p.ProcessVideo(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"), Options{})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, store.JobStatusFailed, res.Status)

	job, err := st.FindJobByID(res.JobID)
	require.NoError(t, err)
	assert.Equal(t, store.JobStatusFailed, job.Status)
}
