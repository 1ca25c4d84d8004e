package store

import (
	"time"

	"gorm.io/gorm"

	"spiralmem/internal/errs"
)

// JobCreateInput is the input to Store.CreateJob.
type JobCreateInput struct {
	SourceID   string
	SourceType JobSourceType
	VideoPath  string
}

// CreateJob creates a VideoProcessingJob in the pending state.
func (s *Store) CreateJob(in JobCreateInput) (*VideoProcessingJob, error) {
	now := time.Now().UTC()
	j := &VideoProcessingJob{
		ID:              newID(),
		SourceID:        in.SourceID,
		SourceType:      in.SourceType,
		Status:          JobStatusPending,
		Progress:        0,
		VideoPath:       in.VideoPath,
		ProcessingSteps: ProcessingStepList{},
		Metadata:        JSONMap{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.db.Create(j).Error; err != nil {
		return nil, &errs.StoreError{Op: "create job", Err: err}
	}
	return j, nil
}

// FindJobByID looks up a job by id.
func (s *Store) FindJobByID(id string) (*VideoProcessingJob, error) {
	var j VideoProcessingJob
	err := s.db.First(&j, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, &errs.NotFound{Entity: "job", ID: id}
	}
	if err != nil {
		return nil, &errs.StoreError{Op: "find job", Err: err}
	}
	return &j, nil
}

// ListJobsByStatus supports job recovery on restart: every job stuck
// in a non-terminal status gets re-evaluated.
func (s *Store) ListJobsByStatus(status JobStatus) ([]VideoProcessingJob, error) {
	var jobs []VideoProcessingJob
	if err := s.db.Where("status = ?", status).Order("created_at asc").Find(&jobs).Error; err != nil {
		return nil, &errs.StoreError{Op: "list jobs by status", Err: err}
	}
	return jobs, nil
}

// UpdateJobStatus sets status/progress/error in one statement,
// setting CompletedAt iff the new status is terminal. progress and
// errMsg are no-ops when nil/empty respectively.
func (s *Store) UpdateJobStatus(id string, status JobStatus, progress *int, errMsg string) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if progress != nil {
		updates["progress"] = *progress
	}
	if status.IsTerminal() {
		now := time.Now().UTC()
		updates["completed_at"] = now
	}

	res := s.db.Model(&VideoProcessingJob{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return &errs.StoreError{Op: "update job status", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return &errs.NotFound{Entity: "job", ID: id}
	}

	if errMsg != "" {
		if err := s.setJobError(id, errMsg); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) setJobError(id, errMsg string) error {
	var j VideoProcessingJob
	if err := s.db.First(&j, "id = ?", id).Error; err != nil {
		return &errs.StoreError{Op: "load job for error metadata", Err: err}
	}
	if j.Metadata == nil {
		j.Metadata = JSONMap{}
	}
	j.Metadata["error"] = errMsg
	if err := s.db.Model(&VideoProcessingJob{}).Where("id = ?", id).Update("metadata", j.Metadata).Error; err != nil {
		return &errs.StoreError{Op: "set job error metadata", Err: err}
	}
	return nil
}

// UpdateStep upserts a named processing step on the job: if a step by
// that name exists it is replaced in place (preserving step order),
// otherwise it is appended.
func (s *Store) UpdateStep(id, name string, status StepStatus, metadata JSONMap, stepErr string) error {
	var j VideoProcessingJob
	if err := s.db.First(&j, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return &errs.NotFound{Entity: "job", ID: id}
		}
		return &errs.StoreError{Op: "load job for step update", Err: err}
	}

	now := time.Now().UTC()
	found := false
	for i := range j.ProcessingSteps {
		if j.ProcessingSteps[i].Name == name {
			step := &j.ProcessingSteps[i]
			if status == StepStatusRunning && step.StartedAt == nil {
				step.StartedAt = &now
			}
			if status == StepStatusCompleted || status == StepStatusFailed {
				step.EndedAt = &now
				if step.StartedAt != nil {
					d := now.Sub(*step.StartedAt).Milliseconds()
					step.DurationMs = &d
				}
			}
			step.Status = status
			step.Error = stepErr
			if metadata != nil {
				step.Metadata = metadata
			}
			found = true
			break
		}
	}
	if !found {
		step := ProcessingStep{
			Name:     name,
			Status:   status,
			Metadata: metadata,
			Error:    stepErr,
		}
		if status == StepStatusRunning {
			step.StartedAt = &now
		}
		j.ProcessingSteps = append(j.ProcessingSteps, step)
	}

	j.UpdatedAt = now
	if err := s.db.Model(&VideoProcessingJob{}).Where("id = ?", id).Update("processing_steps", j.ProcessingSteps).Error; err != nil {
		return &errs.StoreError{Op: "update job step", Err: err}
	}
	return nil
}

// SetJobPaths records the video/audio/transcript artifact paths
// produced as the pipeline progresses.
func (s *Store) SetJobPaths(id string, videoPath, audioPath, transcriptPath string) error {
	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	if videoPath != "" {
		updates["video_path"] = videoPath
	}
	if audioPath != "" {
		updates["audio_path"] = audioPath
	}
	if transcriptPath != "" {
		updates["transcript_path"] = transcriptPath
	}
	if err := s.db.Model(&VideoProcessingJob{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return &errs.StoreError{Op: "set job paths", Err: err}
	}
	return nil
}

// SetJobMetadata merges keys into the job's metadata JSON column.
func (s *Store) SetJobMetadata(id string, patch JSONMap) error {
	var j VideoProcessingJob
	if err := s.db.First(&j, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return &errs.NotFound{Entity: "job", ID: id}
		}
		return &errs.StoreError{Op: "load job for metadata merge", Err: err}
	}
	if j.Metadata == nil {
		j.Metadata = JSONMap{}
	}
	for k, v := range patch {
		j.Metadata[k] = v
	}
	if err := s.db.Model(&VideoProcessingJob{}).Where("id = ?", id).Update("metadata", j.Metadata).Error; err != nil {
		return &errs.StoreError{Op: "merge job metadata", Err: err}
	}
	return nil
}
