package store

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"spiralmem/internal/errs"
)

// MemoryCreateInput is the input to Store.CreateMemory.
type MemoryCreateInput struct {
	SpaceID     string
	ContentType ContentType
	Title       string
	Content     string
	Source      string
	FilePath    string
	Metadata    JSONMap
}

// CreateMemory creates a memory, assigning an id and defaulting
// SpaceID to the default space when unset.
func (s *Store) CreateMemory(in MemoryCreateInput) (*Memory, error) {
	spaceID := in.SpaceID
	if spaceID == "" {
		def, err := s.EnsureDefault()
		if err != nil {
			return nil, err
		}
		spaceID = def.ID
	}

	now := time.Now().UTC()
	m := &Memory{
		ID:          newID(),
		SpaceID:     spaceID,
		ContentType: in.ContentType,
		Title:       in.Title,
		Content:     in.Content,
		Source:      in.Source,
		FilePath:    in.FilePath,
		Metadata:    in.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if m.Metadata == nil {
		m.Metadata = JSONMap{}
	}
	if err := s.db.Create(m).Error; err != nil {
		return nil, &errs.StoreError{Op: "create memory", Err: err}
	}
	return m, nil
}

// CreateMemoryTx is CreateMemory run against an in-flight
// transaction, used by the database-storage pipeline step so the
// memory insert shares a transaction with its chunks (Open Question
// decision: database-storage is atomic across memory+content+chunks).
func (s *Store) CreateMemoryTx(tx *gorm.DB, in MemoryCreateInput) (*Memory, error) {
	spaceID := in.SpaceID
	if spaceID == "" {
		def, err := s.EnsureDefault()
		if err != nil {
			return nil, err
		}
		spaceID = def.ID
	}

	now := time.Now().UTC()
	m := &Memory{
		ID:          newID(),
		SpaceID:     spaceID,
		ContentType: in.ContentType,
		Title:       in.Title,
		Content:     in.Content,
		Source:      in.Source,
		FilePath:    in.FilePath,
		Metadata:    in.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if m.Metadata == nil {
		m.Metadata = JSONMap{}
	}
	if err := tx.Create(m).Error; err != nil {
		return nil, &errs.StoreError{Op: "create memory", Err: err}
	}
	return m, nil
}

// FindMemoryByID looks up a memory by id.
func (s *Store) FindMemoryByID(id string) (*Memory, error) {
	var m Memory
	err := s.db.First(&m, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, &errs.NotFound{Entity: "memory", ID: id}
	}
	if err != nil {
		return nil, &errs.StoreError{Op: "find memory", Err: err}
	}
	return &m, nil
}

// FindMemoryBySource looks up a memory by its exact source string
// (input path/URL), used to check the post-condition that a
// successful processVideo creates exactly one memory per source.
func (s *Store) FindMemoryBySource(source string) (*Memory, error) {
	var m Memory
	err := s.db.Where("source = ?", source).First(&m).Error
	if err == gorm.ErrRecordNotFound {
		return nil, &errs.NotFound{Entity: "memory", ID: source}
	}
	if err != nil {
		return nil, &errs.StoreError{Op: "find memory by source", Err: err}
	}
	return &m, nil
}

// MemorySearchFilter narrows a keyword Memories.search call.
type MemorySearchFilter struct {
	SpaceID      string
	ContentTypes []ContentType
	After        *time.Time
	Before       *time.Time
	Limit        int
	Offset       int
}

// SearchMemories performs a substring match on title|content with the
// given filters, ordered by createdAt desc. An empty query matches
// everything (spec.md §8 round-trip property).
func (s *Store) SearchMemories(query string, f MemorySearchFilter) ([]Memory, error) {
	q := s.db.Model(&Memory{})

	query = strings.TrimSpace(query)
	if query != "" {
		like := "%" + query + "%"
		q = q.Where("title LIKE ? OR content LIKE ?", like, like)
	}
	if f.SpaceID != "" {
		q = q.Where("space_id = ?", f.SpaceID)
	}
	if len(f.ContentTypes) > 0 {
		q = q.Where("content_type IN ?", f.ContentTypes)
	}
	if f.After != nil {
		q = q.Where("created_at >= ?", *f.After)
	}
	if f.Before != nil {
		q = q.Where("created_at <= ?", *f.Before)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	var memories []Memory
	err := q.Order("created_at desc").Limit(limit).Offset(f.Offset).Find(&memories).Error
	if err != nil {
		return nil, &errs.StoreError{Op: "search memories", Err: err}
	}
	return memories, nil
}

// UpdateMemory saves mutated fields on an existing memory.
func (s *Store) UpdateMemory(m *Memory) error {
	m.UpdatedAt = time.Now().UTC()
	if err := s.db.Save(m).Error; err != nil {
		return &errs.StoreError{Op: "update memory", Err: err}
	}
	return nil
}

// DeleteMemory deletes a memory and cascades to its chunks and
// embeddings, matching spec.md §3's cascade invariant.
func (s *Store) DeleteMemory(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var chunkIDs []string
		if err := tx.Model(&Chunk{}).Where("memory_id = ?", id).Pluck("id", &chunkIDs).Error; err != nil {
			return err
		}
		if len(chunkIDs) > 0 {
			if err := tx.Where("content_id IN ? AND content_type = ?", chunkIDs, EmbeddingContentChunk).Delete(&VectorEmbedding{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("content_id = ? AND content_type = ?", id, EmbeddingContentMemory).Delete(&VectorEmbedding{}).Error; err != nil {
			return err
		}
		if err := tx.Where("memory_id = ?", id).Delete(&Chunk{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&Memory{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &errs.NotFound{Entity: "memory", ID: id}
		}
		return nil
	})
}
