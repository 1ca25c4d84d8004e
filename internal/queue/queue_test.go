package queue

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spiralmem/internal/logging"
	"spiralmem/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath, logging.Noop())
	require.NoError(t, err)
	require.NoError(t, st.AutoMigrate())
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestChannelNameIsPerJob(t *testing.T) {
	assert.Equal(t, "spiralmem:job:abc:progress", channelName("abc"))
	assert.NotEqual(t, channelName("abc"), channelName("def"))
}

func TestRecoverStaleJobsFailsPendingAndProcessing(t *testing.T) {
	st := newTestStore(t)

	pending, err := st.CreateJob(store.JobCreateInput{SourceID: "p1", SourceType: store.JobSourceLocal, VideoPath: "p1.mp4"})
	require.NoError(t, err)

	processing, err := st.CreateJob(store.JobCreateInput{SourceID: "p2", SourceType: store.JobSourceLocal, VideoPath: "p2.mp4"})
	require.NoError(t, err)
	require.NoError(t, st.UpdateJobStatus(processing.ID, store.JobStatusProcessing, nil, ""))

	done, err := st.CreateJob(store.JobCreateInput{SourceID: "p3", SourceType: store.JobSourceLocal, VideoPath: "p3.mp4"})
	require.NoError(t, err)
	require.NoError(t, st.UpdateJobStatus(done.ID, store.JobStatusCompleted, nil, ""))

	stale, err := RecoverStaleJobs(st)
	require.NoError(t, err)
	require.Len(t, stale, 2)

	var ids []string
	for _, j := range stale {
		ids = append(ids, j.ID)
	}
	assert.ElementsMatch(t, []string{pending.ID, processing.ID}, ids)

	after, err := st.FindJobByID(pending.ID)
	require.NoError(t, err)
	assert.Equal(t, store.JobStatusFailed, after.Status)
}
