// Package store owns every persistent entity: schema, repositories,
// and transactions. It follows the teacher's custom sql.Scanner /
// driver.Valuer pattern for JSON columns (models.JSONObject,
// models.JSONStringArray in the teacher) but backs the database with
// SQLite instead of Postgres, since the spec requires a single
// relational database file rather than a server process.
package store

import (
	"database/sql/driver"
	"encoding/json"
	"math"
	"time"
)

// JSONMap stores a free-form metadata object as a JSON column, mirroring
// the teacher's JSONObject type.
type JSONMap map[string]interface{}

func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = JSONMap{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return nil
		}
	}
	if len(bytes) == 0 {
		*j = JSONMap{}
		return nil
	}
	return json.Unmarshal(bytes, j)
}

func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(j)
}

// JSONStringSlice stores a JSON array of strings, mirroring the
// teacher's JSONStringArray.
type JSONStringSlice []string

func (j *JSONStringSlice) Scan(value interface{}) error {
	if value == nil {
		*j = []string{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return nil
		}
	}
	if len(bytes) == 0 {
		*j = []string{}
		return nil
	}
	return json.Unmarshal(bytes, j)
}

func (j JSONStringSlice) Value() (driver.Value, error) {
	if j == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(j)
}

// VectorBlob stores a fixed-length float32 vector as a little-endian
// byte blob. Postgres' pgvector column type is unavailable once the
// store is SQLite, so the vector is serialized the same way the
// teacher serializes its JSON columns: a Scan/Value pair hung off a
// named type.
type VectorBlob []float32

func (v *VectorBlob) Scan(value interface{}) error {
	if value == nil {
		*v = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	n := len(bytes) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := uint32(bytes[i*4]) | uint32(bytes[i*4+1])<<8 | uint32(bytes[i*4+2])<<16 | uint32(bytes[i*4+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	*v = out
	return nil
}

func (v VectorBlob) Value() (driver.Value, error) {
	out := make([]byte, len(v)*4)
	for i, f := range v {
		bits := math.Float32bits(f)
		out[i*4] = byte(bits)
		out[i*4+1] = byte(bits >> 8)
		out[i*4+2] = byte(bits >> 16)
		out[i*4+3] = byte(bits >> 24)
	}
	return out, nil
}

// ContentType enumerates what a Memory's content represents.
type ContentType string

const (
	ContentTypeText     ContentType = "text"
	ContentTypeDocument ContentType = "document"
	ContentTypeVideo    ContentType = "video"
	ContentTypeURL      ContentType = "url"
)

// EmbeddingContentType enumerates what a VectorEmbedding is attached to.
type EmbeddingContentType string

const (
	EmbeddingContentChunk  EmbeddingContentType = "chunk"
	EmbeddingContentMemory EmbeddingContentType = "memory"
	EmbeddingContentFrame  EmbeddingContentType = "frame"
)

// JobSourceType enumerates where a VideoProcessingJob's input came from.
type JobSourceType string

const (
	JobSourceLocal    JobSourceType = "local"
	JobSourceYouTube  JobSourceType = "youtube"
	JobSourcePlatform JobSourceType = "platform"
)

// JobStatus enumerates a VideoProcessingJob's lifecycle state.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether s is a terminal job status.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// StepStatus enumerates a single processing step's state.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

// Platform enumerates the supported URL platforms (spec.md §4.1).
type Platform string

const (
	PlatformYouTube Platform = "youtube"
	PlatformSpotify Platform = "spotify"
	PlatformZoom    Platform = "zoom"
	PlatformTeams   Platform = "teams"
	PlatformVimeo   Platform = "vimeo"
	PlatformRumble  Platform = "rumble"
)

// Space is a named, logical partition grouping memories.
type Space struct {
	ID          string    `gorm:"primaryKey;size:36"`
	Name        string    `gorm:"size:256;not null;uniqueIndex"`
	Description string    `gorm:"size:1024"`
	Settings    JSONMap   `gorm:"type:jsonb;default:'{}'"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (Space) TableName() string { return "spaces" }

// Memory is the logical unit of ingested content.
type Memory struct {
	ID          string      `gorm:"primaryKey;size:36"`
	SpaceID     string      `gorm:"size:36;not null;index:idx_memories_space_created"`
	ContentType ContentType `gorm:"size:32;not null"`
	Title       string      `gorm:"size:1024"`
	Content     string      `gorm:"type:text;not null"`
	Source      string      `gorm:"size:2048;not null"`
	FilePath    string      `gorm:"size:2048"`
	Metadata    JSONMap     `gorm:"type:jsonb;default:'{}'"`
	CreatedAt   time.Time   `gorm:"not null;index:idx_memories_space_created"`
	UpdatedAt   time.Time   `gorm:"not null"`

	Chunks []Chunk `gorm:"foreignKey:MemoryID;constraint:OnDelete:CASCADE"`
}

func (Memory) TableName() string { return "memories" }

// Chunk is a sub-piece of a memory, sized for retrieval.
type Chunk struct {
	ID             string    `gorm:"primaryKey;size:36"`
	MemoryID       string    `gorm:"size:36;not null;uniqueIndex:idx_chunks_memory_order;index:idx_chunks_memory_order_asc"`
	ChunkText      string    `gorm:"type:text;not null"`
	ChunkOrder     int       `gorm:"not null;uniqueIndex:idx_chunks_memory_order"`
	StartOffsetMs  *int64    ``
	EndOffsetMs    *int64    ``
	Metadata       JSONMap   `gorm:"type:jsonb;default:'{}'"`
	CreatedAt      time.Time `gorm:"not null"`
}

func (Chunk) TableName() string { return "chunks" }

// VectorEmbedding holds one fixed-dimension dense vector for a piece
// of content. At most one row per (ContentID, ContentType, Model).
type VectorEmbedding struct {
	ID          string               `gorm:"primaryKey;size:128"`
	ContentID   string               `gorm:"size:36;not null;index"`
	ContentType EmbeddingContentType `gorm:"size:32;not null;index"`
	Model       string               `gorm:"size:128;not null;index:idx_vector_embeddings_model"`
	Dimensions  int                  `gorm:"not null"`
	Vector      VectorBlob           `gorm:"type:blob;not null"`
	CreatedAt   time.Time            `gorm:"not null"`
}

func (VectorEmbedding) TableName() string { return "vector_embeddings" }

// EmbeddingID computes the composite primary key for a VectorEmbedding.
func EmbeddingID(contentID string, contentType EmbeddingContentType, model string) string {
	return contentID + ":" + string(contentType) + ":" + model
}

// ProcessingStep is one named step within a VideoProcessingJob.
type ProcessingStep struct {
	Name       string     `json:"name"`
	Status     StepStatus `json:"status"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	EndedAt    *time.Time `json:"endedAt,omitempty"`
	DurationMs *int64     `json:"durationMs,omitempty"`
	Error      string     `json:"error,omitempty"`
	Metadata   JSONMap    `json:"metadata,omitempty"`
}

// ProcessingStepList stores []ProcessingStep as a JSON column.
type ProcessingStepList []ProcessingStep

func (p *ProcessingStepList) Scan(value interface{}) error {
	if value == nil {
		*p = []ProcessingStep{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	if len(bytes) == 0 {
		*p = []ProcessingStep{}
		return nil
	}
	return json.Unmarshal(bytes, p)
}

func (p ProcessingStepList) Value() (driver.Value, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p)
}

// VideoProcessingJob drives one video from raw input to indexed
// content (spec.md §4.6).
type VideoProcessingJob struct {
	ID             string              `gorm:"primaryKey;size:36"`
	SourceID       string              `gorm:"size:2048;not null"`
	SourceType     JobSourceType       `gorm:"size:32;not null"`
	Status         JobStatus           `gorm:"size:32;not null;index"`
	Progress       int                 `gorm:"not null;default:0"`
	VideoPath      string              `gorm:"size:2048"`
	AudioPath      string              `gorm:"size:2048"`
	TranscriptPath string              `gorm:"size:2048"`
	ProcessingSteps ProcessingStepList `gorm:"type:jsonb;default:'[]'"`
	Metadata       JSONMap             `gorm:"type:jsonb;default:'{}'"`
	CreatedAt      time.Time           `gorm:"not null"`
	UpdatedAt      time.Time           `gorm:"not null"`
	CompletedAt    *time.Time          ``
}

func (VideoProcessingJob) TableName() string { return "video_processing_jobs" }

// TranscriptWord is a single word with millisecond timestamps.
type TranscriptWord struct {
	Word       string  `json:"word"`
	StartMs    int64   `json:"startMs"`
	EndMs      int64   `json:"endMs"`
	Confidence float64 `json:"confidence,omitempty"`
}

// TranscriptSegment is a contiguous span of transcript text.
type TranscriptSegment struct {
	Text       string           `json:"text"`
	StartSec   float64          `json:"startSec"`
	EndSec     float64          `json:"endSec"`
	Confidence float64          `json:"confidence,omitempty"`
	Words      []TranscriptWord `json:"words,omitempty"`
}

// Transcript is the full transcription result for one memory's source audio.
type Transcript struct {
	Language     string              `json:"language"`
	DurationSec  float64             `json:"durationSec"`
	SegmentCount int                 `json:"segmentCount"`
	FullText     string              `json:"fullText"`
	Segments     []TranscriptSegment `json:"segments"`
}

// JSONTranscript stores a Transcript as a JSON column.
type JSONTranscript Transcript

func (t *JSONTranscript) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	if len(bytes) == 0 {
		return nil
	}
	return json.Unmarshal(bytes, t)
}

func (t JSONTranscript) Value() (driver.Value, error) {
	return json.Marshal(t)
}

// ChunkSnapshot is an immutable copy of a chunk's shape at processing
// time, embedded in ProcessedVideoContent.
type ChunkSnapshot struct {
	ID            string  `json:"id"`
	ChunkText     string  `json:"chunkText"`
	ChunkOrder    int     `json:"chunkOrder"`
	StartOffsetMs *int64  `json:"startOffsetMs,omitempty"`
	EndOffsetMs   *int64  `json:"endOffsetMs,omitempty"`
}

// JSONChunkSnapshots stores []ChunkSnapshot as a JSON column.
type JSONChunkSnapshots []ChunkSnapshot

func (c *JSONChunkSnapshots) Scan(value interface{}) error {
	if value == nil {
		*c = []ChunkSnapshot{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	if len(bytes) == 0 {
		*c = []ChunkSnapshot{}
		return nil
	}
	return json.Unmarshal(bytes, c)
}

func (c JSONChunkSnapshots) Value() (driver.Value, error) {
	if c == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c)
}

// ProcessedVideoContent exists 1:1 with a completed job, holding the
// chunk/embedding snapshot and full transcript.
type ProcessedVideoContent struct {
	ID         string             `gorm:"primaryKey;size:36"`
	JobID      string             `gorm:"size:36;not null;uniqueIndex"`
	MemoryID   string             `gorm:"size:36;not null;index"`
	Chunks     JSONChunkSnapshots `gorm:"type:jsonb;default:'[]'"`
	Transcript JSONTranscript     `gorm:"type:jsonb"`
	Frames     JSONMap            `gorm:"type:jsonb;default:'{}'"`
	Thumbnails JSONMap            `gorm:"type:jsonb;default:'{}'"`
	Metadata   JSONMap            `gorm:"type:jsonb;default:'{}'"`
	CreatedAt  time.Time          `gorm:"not null"`
}

func (ProcessedVideoContent) TableName() string { return "processed_video_content" }

// PlatformVideo indexes a platform URL without a full local download.
type PlatformVideo struct {
	ID              string     `gorm:"primaryKey;size:36"`
	MemoryID        string     `gorm:"size:36;not null;index"`
	Platform        Platform   `gorm:"size:32;not null;uniqueIndex:idx_platform_video"`
	PlatformVideoID string     `gorm:"size:256;not null;uniqueIndex:idx_platform_video"`
	VideoURL        string     `gorm:"size:2048;not null"`
	ThumbnailURL    string     `gorm:"size:2048"`
	DurationSec     *float64   ``
	UploadDate      *time.Time ``
	ChannelInfo     JSONMap    `gorm:"type:jsonb;default:'{}'"`
	PlaylistInfo    JSONMap    `gorm:"type:jsonb;default:'{}'"`
	PlatformMetadata JSONMap   `gorm:"type:jsonb;default:'{}'"`
	LastIndexed     time.Time  `gorm:"not null"`
	AccessibilityData JSONMap `gorm:"type:jsonb;default:'{}'"`
}

func (PlatformVideo) TableName() string { return "platform_videos" }

// PlatformTranscript is a transcript keyed by platform video id.
type PlatformTranscript struct {
	ID              string         `gorm:"primaryKey;size:36"`
	PlatformVideoID string         `gorm:"size:256;not null;index"`
	Transcript      JSONTranscript `gorm:"type:jsonb"`
	CreatedAt       time.Time      `gorm:"not null"`
}

func (PlatformTranscript) TableName() string { return "platform_transcripts" }

// VideoType enumerates the VideoDeepLink subject.
type VideoType string

const (
	VideoTypeLocal    VideoType = "local"
	VideoTypePlatform VideoType = "platform"
)

// VideoDeepLink is a platform URL plus a timestamp for direct navigation.
type VideoDeepLink struct {
	ID                string    `gorm:"primaryKey;size:36"`
	VideoID           string    `gorm:"size:36;not null;index"`
	VideoType         VideoType `gorm:"size:32;not null"`
	TimestampStartSec float64   `gorm:"not null"`
	TimestampEndSec   *float64  ``
	DeeplinkURL       string    `gorm:"size:2048;not null"`
	ContextSummary    string    `gorm:"size:2048"`
	SearchKeywords    JSONStringSlice `gorm:"type:jsonb;default:'[]'"`
	ConfidenceScore   float64   `gorm:"not null"`
	CreatedAt         time.Time `gorm:"not null"`
}

func (VideoDeepLink) TableName() string { return "video_deeplinks" }

// Tag is a unique, case-insensitive label attachable to memories.
type Tag struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Name      string    `gorm:"size:256;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"not null"`
}

func (Tag) TableName() string { return "tags" }

// MemoryTag is the many-to-many join between memories and tags.
type MemoryTag struct {
	MemoryID string `gorm:"primaryKey;size:36"`
	TagID    string `gorm:"primaryKey;size:36"`
}

func (MemoryTag) TableName() string { return "memory_tags" }
