package store

import (
	"strconv"
	"time"

	"gorm.io/gorm"

	"spiralmem/internal/errs"
)

// ChunkCreateInput is the input to Store.CreateChunk.
type ChunkCreateInput struct {
	MemoryID      string
	ChunkText     string
	ChunkOrder    int
	StartOffsetMs *int64
	EndOffsetMs   *int64
	Metadata      JSONMap
}

// CreateChunk inserts one chunk, rejecting a duplicate
// (memoryId, chunkOrder) pair.
func (s *Store) CreateChunk(in ChunkCreateInput) (*Chunk, error) {
	var count int64
	if err := s.db.Model(&Chunk{}).Where("memory_id = ? AND chunk_order = ?", in.MemoryID, in.ChunkOrder).Count(&count).Error; err != nil {
		return nil, &errs.StoreError{Op: "check duplicate chunk order", Err: err}
	}
	if count > 0 {
		return nil, &errs.AlreadyExists{Entity: "chunk", Key: in.MemoryID + ":" + strconv.Itoa(in.ChunkOrder)}
	}

	c := &Chunk{
		ID:            newID(),
		MemoryID:      in.MemoryID,
		ChunkText:     in.ChunkText,
		ChunkOrder:    in.ChunkOrder,
		StartOffsetMs: in.StartOffsetMs,
		EndOffsetMs:   in.EndOffsetMs,
		Metadata:      in.Metadata,
		CreatedAt:     time.Now().UTC(),
	}
	if c.Metadata == nil {
		c.Metadata = JSONMap{}
	}
	if err := s.db.Create(c).Error; err != nil {
		return nil, &errs.StoreError{Op: "create chunk", Err: err}
	}
	return c, nil
}

// CreateChunkTx is CreateChunk run against an in-flight transaction,
// used by the database-storage pipeline step so chunk inserts share
// the same transaction as the owning memory.
func (s *Store) CreateChunkTx(tx *gorm.DB, in ChunkCreateInput) (*Chunk, error) {
	c := &Chunk{
		ID:            newID(),
		MemoryID:      in.MemoryID,
		ChunkText:     in.ChunkText,
		ChunkOrder:    in.ChunkOrder,
		StartOffsetMs: in.StartOffsetMs,
		EndOffsetMs:   in.EndOffsetMs,
		Metadata:      in.Metadata,
		CreatedAt:     time.Now().UTC(),
	}
	if c.Metadata == nil {
		c.Metadata = JSONMap{}
	}
	if err := tx.Create(c).Error; err != nil {
		return nil, &errs.StoreError{Op: "create chunk", Err: err}
	}
	return c, nil
}

// FindChunksByMemoryIDs returns chunks for the given memories ordered
// (memoryId asc, chunkOrder asc).
func (s *Store) FindChunksByMemoryIDs(memoryIDs []string) ([]Chunk, error) {
	if len(memoryIDs) == 0 {
		return nil, nil
	}
	var chunks []Chunk
	err := s.db.Where("memory_id IN ?", memoryIDs).Order("memory_id asc, chunk_order asc").Find(&chunks).Error
	if err != nil {
		return nil, &errs.StoreError{Op: "find chunks by memory ids", Err: err}
	}
	return chunks, nil
}

// FindChunkByID looks up a single chunk, used to enrich vector search
// hits whose contentType is chunk.
func (s *Store) FindChunkByID(id string) (*Chunk, error) {
	var c Chunk
	err := s.db.First(&c, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, &errs.NotFound{Entity: "chunk", ID: id}
	}
	if err != nil {
		return nil, &errs.StoreError{Op: "find chunk", Err: err}
	}
	return &c, nil
}

// CountChunksByMemoryID returns the number of chunks belonging to a memory.
func (s *Store) CountChunksByMemoryID(memoryID string) (int64, error) {
	var n int64
	if err := s.db.Model(&Chunk{}).Where("memory_id = ?", memoryID).Count(&n).Error; err != nil {
		return 0, &errs.StoreError{Op: "count chunks", Err: err}
	}
	return n, nil
}

// SearchChunks performs a substring match on chunkText, optionally
// scoped to a set of memory ids.
func (s *Store) SearchChunks(term string, memoryIDs []string, limit int) ([]Chunk, error) {
	q := s.db.Model(&Chunk{})
	if term != "" {
		q = q.Where("chunk_text LIKE ?", "%"+term+"%")
	}
	if len(memoryIDs) > 0 {
		q = q.Where("memory_id IN ?", memoryIDs)
	}
	if limit <= 0 {
		limit = 100
	}
	var chunks []Chunk
	if err := q.Order("memory_id asc, chunk_order asc").Limit(limit).Find(&chunks).Error; err != nil {
		return nil, &errs.StoreError{Op: "search chunks", Err: err}
	}
	return chunks, nil
}
