package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spiralmem/internal/errs"
	"spiralmem/internal/logging"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(dbPath, logging.Noop())
	require.NoError(t, err)
	require.NoError(t, st.AutoMigrate())
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestEnsureDefaultIsIdempotent(t *testing.T) {
	st := newTestStore(t)

	first, err := st.EnsureDefault()
	require.NoError(t, err)
	second, err := st.EnsureDefault()
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestCreateSpaceRejectsDuplicateName(t *testing.T) {
	st := newTestStore(t)

	_, err := st.CreateSpace("research", "")
	require.NoError(t, err)

	_, err = st.CreateSpace("Research", "")
	var ae *errs.AlreadyExists
	require.ErrorAs(t, err, &ae)
}

func TestCreateMemoryDefaultsToDefaultSpace(t *testing.T) {
	st := newTestStore(t)

	m, err := st.CreateMemory(MemoryCreateInput{ContentType: ContentTypeVideo, Title: "t", Content: "c", Source: "s"})
	require.NoError(t, err)

	def, err := st.EnsureDefault()
	require.NoError(t, err)
	assert.Equal(t, def.ID, m.SpaceID)
}

func TestSearchMemoriesSubstringMatch(t *testing.T) {
	st := newTestStore(t)

	_, err := st.CreateMemory(MemoryCreateInput{ContentType: ContentTypeVideo, Title: "Kubernetes deep dive", Content: "pods and services", Source: "a"})
	require.NoError(t, err)
	_, err = st.CreateMemory(MemoryCreateInput{ContentType: ContentTypeVideo, Title: "Cooking pasta", Content: "tomato sauce", Source: "b"})
	require.NoError(t, err)

	results, err := st.SearchMemories("kubernetes", MemorySearchFilter{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Kubernetes deep dive", results[0].Title)
}

func TestCreateChunkRejectsDuplicateOrder(t *testing.T) {
	st := newTestStore(t)
	m, err := st.CreateMemory(MemoryCreateInput{ContentType: ContentTypeVideo, Title: "t", Content: "c", Source: "s"})
	require.NoError(t, err)

	_, err = st.CreateChunk(ChunkCreateInput{MemoryID: m.ID, ChunkText: "first", ChunkOrder: 0})
	require.NoError(t, err)

	_, err = st.CreateChunk(ChunkCreateInput{MemoryID: m.ID, ChunkText: "dup", ChunkOrder: 0})
	var ae *errs.AlreadyExists
	require.ErrorAs(t, err, &ae)
}

func TestUpsertEmbeddingReplacesExisting(t *testing.T) {
	st := newTestStore(t)

	e1, err := st.UpsertEmbedding("chunk-1", EmbeddingContentChunk, "model-a", 3, VectorBlob{1, 2, 3})
	require.NoError(t, err)
	e2, err := st.UpsertEmbedding("chunk-1", EmbeddingContentChunk, "model-a", 3, VectorBlob{4, 5, 6})
	require.NoError(t, err)

	assert.Equal(t, e1.ID, e2.ID)
	found, err := st.FindEmbedding("chunk-1", EmbeddingContentChunk, "model-a")
	require.NoError(t, err)
	assert.Equal(t, VectorBlob{4, 5, 6}, found.Vector)
}

func TestDeleteMemoryCascadesChunksAndEmbeddings(t *testing.T) {
	st := newTestStore(t)

	m, err := st.CreateMemory(MemoryCreateInput{ContentType: ContentTypeVideo, Title: "t", Content: "c", Source: "s"})
	require.NoError(t, err)
	c, err := st.CreateChunk(ChunkCreateInput{MemoryID: m.ID, ChunkText: "hi", ChunkOrder: 0})
	require.NoError(t, err)
	_, err = st.UpsertEmbedding(c.ID, EmbeddingContentChunk, "model-a", 2, VectorBlob{1, 2})
	require.NoError(t, err)
	_, err = st.UpsertEmbedding(m.ID, EmbeddingContentMemory, "model-a", 2, VectorBlob{3, 4})
	require.NoError(t, err)

	require.NoError(t, st.DeleteMemory(m.ID))

	var chunkCount, embeddingCount int64
	require.NoError(t, st.db.Model(&Chunk{}).Where("memory_id = ?", m.ID).Count(&chunkCount).Error)
	require.NoError(t, st.db.Model(&VectorEmbedding{}).Count(&embeddingCount).Error)
	assert.Equal(t, int64(0), chunkCount)
	assert.Equal(t, int64(0), embeddingCount)

	_, err = st.FindMemoryByID(m.ID)
	var nf *errs.NotFound
	require.ErrorAs(t, err, &nf)
}

func TestDeleteSpaceCascadesMemoriesChunksAndEmbeddings(t *testing.T) {
	st := newTestStore(t)

	sp, err := st.CreateSpace("scratch", "")
	require.NoError(t, err)

	m1, err := st.CreateMemory(MemoryCreateInput{ContentType: ContentTypeVideo, Title: "t1", Content: "c1", Source: "s1", SpaceID: sp.ID})
	require.NoError(t, err)
	m2, err := st.CreateMemory(MemoryCreateInput{ContentType: ContentTypeVideo, Title: "t2", Content: "c2", Source: "s2", SpaceID: sp.ID})
	require.NoError(t, err)

	c1, err := st.CreateChunk(ChunkCreateInput{MemoryID: m1.ID, ChunkText: "hi", ChunkOrder: 0})
	require.NoError(t, err)
	_, err = st.UpsertEmbedding(c1.ID, EmbeddingContentChunk, "model-a", 2, VectorBlob{1, 2})
	require.NoError(t, err)
	_, err = st.UpsertEmbedding(m2.ID, EmbeddingContentMemory, "model-a", 2, VectorBlob{3, 4})
	require.NoError(t, err)

	require.NoError(t, st.DeleteSpace(sp.ID))

	var memoryCount, chunkCount, embeddingCount int64
	require.NoError(t, st.db.Model(&Memory{}).Where("space_id = ?", sp.ID).Count(&memoryCount).Error)
	require.NoError(t, st.db.Model(&Chunk{}).Count(&chunkCount).Error)
	require.NoError(t, st.db.Model(&VectorEmbedding{}).Count(&embeddingCount).Error)
	assert.Equal(t, int64(0), memoryCount)
	assert.Equal(t, int64(0), chunkCount)
	assert.Equal(t, int64(0), embeddingCount)

	_, err = st.FindSpaceByID(sp.ID)
	var nf *errs.NotFound
	require.ErrorAs(t, err, &nf)
}

func TestGetStatsCountsAcrossTables(t *testing.T) {
	st := newTestStore(t)

	m, err := st.CreateMemory(MemoryCreateInput{ContentType: ContentTypeVideo, Title: "t", Content: "c", Source: "s"})
	require.NoError(t, err)
	_, err = st.CreateChunk(ChunkCreateInput{MemoryID: m.ID, ChunkText: "hi", ChunkOrder: 0})
	require.NoError(t, err)
	_, err = st.UpsertEmbedding(m.ID, EmbeddingContentMemory, "model-a", 2, VectorBlob{1, 2})
	require.NoError(t, err)

	stats, err := st.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalMemories)
	assert.Equal(t, int64(1), stats.TotalChunks)
	assert.Equal(t, int64(1), stats.TotalEmbeddings)
	assert.Equal(t, float64(2), stats.AvgDimensions)
}
