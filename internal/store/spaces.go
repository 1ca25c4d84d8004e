package store

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"spiralmem/internal/errs"
)

// DefaultSpaceName is the space that always exists after initialization.
const DefaultSpaceName = "default"

// EnsureDefault creates the default space if it doesn't already
// exist. Idempotent: calling it twice yields exactly one default
// space (spec.md §8, round-trip property).
func (s *Store) EnsureDefault() (*Space, error) {
	existing, err := s.FindSpaceByName(DefaultSpaceName)
	if err == nil {
		return existing, nil
	}
	var nf *errs.NotFound
	if !asNotFound(err, &nf) {
		return nil, err
	}
	return s.CreateSpace(DefaultSpaceName, "")
}

func asNotFound(err error, target **errs.NotFound) bool {
	nf, ok := err.(*errs.NotFound)
	if ok {
		*target = nf
	}
	return ok
}

// CreateSpace creates a new space, failing with AlreadyExists on a
// case-insensitive name collision.
func (s *Store) CreateSpace(name, description string) (*Space, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &errs.ValidationError{Field: "name", Reason: "must not be empty"}
	}

	_, err := s.FindSpaceByName(name)
	if err == nil {
		return nil, &errs.AlreadyExists{Entity: "space", Key: name}
	}
	var nf *errs.NotFound
	if !asNotFound(err, &nf) {
		return nil, err
	}

	sp := &Space{
		ID:          newID(),
		Name:        name,
		Description: description,
		Settings:    JSONMap{},
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.db.Create(sp).Error; err != nil {
		return nil, &errs.StoreError{Op: "create space", Err: err}
	}
	return sp, nil
}

// FindSpaceByName looks up a space case-insensitively.
func (s *Store) FindSpaceByName(name string) (*Space, error) {
	var sp Space
	err := s.db.Where("LOWER(name) = LOWER(?)", name).First(&sp).Error
	if err == gorm.ErrRecordNotFound {
		return nil, &errs.NotFound{Entity: "space", ID: name}
	}
	if err != nil {
		return nil, &errs.StoreError{Op: "find space by name", Err: err}
	}
	return &sp, nil
}

// FindSpaceByID looks up a space by id.
func (s *Store) FindSpaceByID(id string) (*Space, error) {
	var sp Space
	err := s.db.First(&sp, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, &errs.NotFound{Entity: "space", ID: id}
	}
	if err != nil {
		return nil, &errs.StoreError{Op: "find space by id", Err: err}
	}
	return &sp, nil
}

// ListSpaces returns every space.
func (s *Store) ListSpaces() ([]Space, error) {
	var spaces []Space
	if err := s.db.Order("created_at asc").Find(&spaces).Error; err != nil {
		return nil, &errs.StoreError{Op: "list spaces", Err: err}
	}
	return spaces, nil
}

// DeleteSpace deletes a space and cascades to its memories, their
// chunks, and every embedding keyed off either, mirroring DeleteMemory's
// cascade across every memory in the space in one transaction.
func (s *Store) DeleteSpace(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var memoryIDs []string
		if err := tx.Model(&Memory{}).Where("space_id = ?", id).Pluck("id", &memoryIDs).Error; err != nil {
			return err
		}

		if len(memoryIDs) > 0 {
			var chunkIDs []string
			if err := tx.Model(&Chunk{}).Where("memory_id IN ?", memoryIDs).Pluck("id", &chunkIDs).Error; err != nil {
				return err
			}
			if len(chunkIDs) > 0 {
				if err := tx.Where("content_id IN ? AND content_type = ?", chunkIDs, EmbeddingContentChunk).Delete(&VectorEmbedding{}).Error; err != nil {
					return err
				}
			}
			if err := tx.Where("content_id IN ? AND content_type = ?", memoryIDs, EmbeddingContentMemory).Delete(&VectorEmbedding{}).Error; err != nil {
				return err
			}
			if err := tx.Where("memory_id IN ?", memoryIDs).Delete(&Chunk{}).Error; err != nil {
				return err
			}
			if err := tx.Where("space_id = ?", id).Delete(&Memory{}).Error; err != nil {
				return err
			}
		}

		res := tx.Delete(&Space{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &errs.NotFound{Entity: "space", ID: id}
		}
		return nil
	})
}
