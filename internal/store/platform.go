package store

import (
	"time"

	"gorm.io/gorm"

	"spiralmem/internal/errs"
)

// PlatformVideoInput is the input to Store.UpsertPlatformVideo.
type PlatformVideoInput struct {
	MemoryID        string
	Platform        Platform
	PlatformVideoID string
	VideoURL        string
	ThumbnailURL    string
	DurationSec     *float64
	UploadDate      *time.Time
	ChannelInfo     JSONMap
	PlaylistInfo    JSONMap
	PlatformMetadata JSONMap
}

// UpsertPlatformVideo writes or replaces the row for
// (platform, platformVideoId), the table's unique key (spec.md §4.1).
func (s *Store) UpsertPlatformVideo(in PlatformVideoInput) (*PlatformVideo, error) {
	var existing PlatformVideo
	err := s.db.Where("platform = ? AND platform_video_id = ?", in.Platform, in.PlatformVideoID).First(&existing).Error
	now := time.Now().UTC()

	if err == nil {
		existing.MemoryID = in.MemoryID
		existing.VideoURL = in.VideoURL
		existing.ThumbnailURL = in.ThumbnailURL
		existing.DurationSec = in.DurationSec
		existing.UploadDate = in.UploadDate
		existing.ChannelInfo = in.ChannelInfo
		existing.PlaylistInfo = in.PlaylistInfo
		existing.PlatformMetadata = in.PlatformMetadata
		existing.LastIndexed = now
		if err := s.db.Save(&existing).Error; err != nil {
			return nil, &errs.StoreError{Op: "update platform video", Err: err}
		}
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, &errs.StoreError{Op: "find platform video", Err: err}
	}

	pv := &PlatformVideo{
		ID:               newID(),
		MemoryID:         in.MemoryID,
		Platform:         in.Platform,
		PlatformVideoID:  in.PlatformVideoID,
		VideoURL:         in.VideoURL,
		ThumbnailURL:     in.ThumbnailURL,
		DurationSec:      in.DurationSec,
		UploadDate:       in.UploadDate,
		ChannelInfo:      in.ChannelInfo,
		PlaylistInfo:     in.PlaylistInfo,
		PlatformMetadata: in.PlatformMetadata,
		LastIndexed:      now,
	}
	if err := s.db.Create(pv).Error; err != nil {
		return nil, &errs.StoreError{Op: "create platform video", Err: err}
	}
	return pv, nil
}

// FindPlatformVideo looks up a platform video by its composite key.
func (s *Store) FindPlatformVideo(platform Platform, platformVideoID string) (*PlatformVideo, error) {
	var pv PlatformVideo
	err := s.db.Where("platform = ? AND platform_video_id = ?", platform, platformVideoID).First(&pv).Error
	if err == gorm.ErrRecordNotFound {
		return nil, &errs.NotFound{Entity: "platform_video", ID: string(platform) + ":" + platformVideoID}
	}
	if err != nil {
		return nil, &errs.StoreError{Op: "find platform video", Err: err}
	}
	return &pv, nil
}

// UpsertPlatformTranscript writes or replaces the transcript for a
// platform video id.
func (s *Store) UpsertPlatformTranscript(platformVideoID string, transcript JSONTranscript) (*PlatformTranscript, error) {
	var existing PlatformTranscript
	err := s.db.Where("platform_video_id = ?", platformVideoID).First(&existing).Error
	if err == nil {
		existing.Transcript = transcript
		if err := s.db.Save(&existing).Error; err != nil {
			return nil, &errs.StoreError{Op: "update platform transcript", Err: err}
		}
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, &errs.StoreError{Op: "find platform transcript", Err: err}
	}

	pt := &PlatformTranscript{
		ID:              newID(),
		PlatformVideoID: platformVideoID,
		Transcript:      transcript,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.db.Create(pt).Error; err != nil {
		return nil, &errs.StoreError{Op: "create platform transcript", Err: err}
	}
	return pt, nil
}

// CreateDeepLink records a timestamped deep link into a video.
func (s *Store) CreateDeepLink(dl *VideoDeepLink) (*VideoDeepLink, error) {
	dl.ID = newID()
	dl.CreatedAt = time.Now().UTC()
	if err := s.db.Create(dl).Error; err != nil {
		return nil, &errs.StoreError{Op: "create deep link", Err: err}
	}
	return dl, nil
}

// FindDeepLinksByVideoID lists deep links for a video.
func (s *Store) FindDeepLinksByVideoID(videoID string) ([]VideoDeepLink, error) {
	var links []VideoDeepLink
	err := s.db.Where("video_id = ?", videoID).Order("timestamp_start_sec asc").Find(&links).Error
	if err != nil {
		return nil, &errs.StoreError{Op: "find deep links", Err: err}
	}
	return links, nil
}
