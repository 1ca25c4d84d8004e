package store

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"spiralmem/internal/errs"
)

// EnsureTag finds or creates a tag by case-insensitive name.
func (s *Store) EnsureTag(name string) (*Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &errs.ValidationError{Field: "name", Reason: "must not be empty"}
	}

	var t Tag
	err := s.db.Where("LOWER(name) = LOWER(?)", name).First(&t).Error
	if err == nil {
		return &t, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, &errs.StoreError{Op: "find tag", Err: err}
	}

	t = Tag{ID: newID(), Name: name, CreatedAt: time.Now().UTC()}
	if err := s.db.Create(&t).Error; err != nil {
		return nil, &errs.StoreError{Op: "create tag", Err: err}
	}
	return &t, nil
}

// TagMemory links a memory to a tag, creating the tag if absent.
func (s *Store) TagMemory(memoryID, tagName string) error {
	t, err := s.EnsureTag(tagName)
	if err != nil {
		return err
	}
	link := MemoryTag{MemoryID: memoryID, TagID: t.ID}
	if err := s.db.Where(link).FirstOrCreate(&link).Error; err != nil {
		return &errs.StoreError{Op: "link memory tag", Err: err}
	}
	return nil
}

// DeleteTag removes a tag and its memory links.
func (s *Store) DeleteTag(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tag_id = ?", id).Delete(&MemoryTag{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&Tag{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &errs.NotFound{Entity: "tag", ID: id}
		}
		return nil
	})
}

// FindTagsByMemoryID lists tags attached to a memory.
func (s *Store) FindTagsByMemoryID(memoryID string) ([]Tag, error) {
	var tags []Tag
	err := s.db.Joins("JOIN memory_tags ON memory_tags.tag_id = tags.id").
		Where("memory_tags.memory_id = ?", memoryID).Find(&tags).Error
	if err != nil {
		return nil, &errs.StoreError{Op: "find tags by memory", Err: err}
	}
	return tags, nil
}
