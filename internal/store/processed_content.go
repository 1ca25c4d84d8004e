package store

import (
	"time"

	"gorm.io/gorm"

	"spiralmem/internal/errs"
)

// ProcessedContentInput is the input to Store.CreateProcessedContent.
type ProcessedContentInput struct {
	JobID      string
	MemoryID   string
	Chunks     JSONChunkSnapshots
	Transcript JSONTranscript
	Frames     JSONMap
	Thumbnails JSONMap
	Metadata   JSONMap
}

// CreateProcessedContentTx inserts the one-row-per-job processed
// content snapshot, run against the same transaction as the owning
// memory and its chunks (Open Question decision: database-storage is
// atomic across memory+content+chunks).
func (s *Store) CreateProcessedContentTx(tx *gorm.DB, in ProcessedContentInput) (*ProcessedVideoContent, error) {
	pc := &ProcessedVideoContent{
		ID:         newID(),
		JobID:      in.JobID,
		MemoryID:   in.MemoryID,
		Chunks:     in.Chunks,
		Transcript: in.Transcript,
		Frames:     in.Frames,
		Thumbnails: in.Thumbnails,
		Metadata:   in.Metadata,
		CreatedAt:  time.Now().UTC(),
	}
	if pc.Frames == nil {
		pc.Frames = JSONMap{}
	}
	if pc.Thumbnails == nil {
		pc.Thumbnails = JSONMap{}
	}
	if pc.Metadata == nil {
		pc.Metadata = JSONMap{}
	}
	if err := tx.Create(pc).Error; err != nil {
		return nil, &errs.StoreError{Op: "create processed content", Err: err}
	}
	return pc, nil
}

// FindProcessedContentByJobID looks up the processed content row for
// a job, used to verify the post-condition that a completed job has a
// matching ProcessedVideoContent (spec.md §8).
func (s *Store) FindProcessedContentByJobID(jobID string) (*ProcessedVideoContent, error) {
	var pc ProcessedVideoContent
	err := s.db.First(&pc, "job_id = ?", jobID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, &errs.NotFound{Entity: "processed_content", ID: jobID}
	}
	if err != nil {
		return nil, &errs.StoreError{Op: "find processed content", Err: err}
	}
	return &pc, nil
}

// FindProcessedContentByMemoryID looks up a memory's processed content
// snapshot, used by timestamp-enriched search to recover word-level
// transcript alignment for a matched chunk.
func (s *Store) FindProcessedContentByMemoryID(memoryID string) (*ProcessedVideoContent, error) {
	var pc ProcessedVideoContent
	err := s.db.Where("memory_id = ?", memoryID).First(&pc).Error
	if err == gorm.ErrRecordNotFound {
		return nil, &errs.NotFound{Entity: "processed_content", ID: memoryID}
	}
	if err != nil {
		return nil, &errs.StoreError{Op: "find processed content by memory", Err: err}
	}
	return &pc, nil
}

// SearchProcessedContent substring-matches transcript.fullText.
func (s *Store) SearchProcessedContent(term string, limit int) ([]ProcessedVideoContent, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []ProcessedVideoContent
	err := s.db.Where("transcript LIKE ?", "%"+term+"%").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, &errs.StoreError{Op: "search processed content", Err: err}
	}
	return rows, nil
}
