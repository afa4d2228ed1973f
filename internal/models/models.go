package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Enums
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusError      JobStatus = "error"
	JobStatusPublished  JobStatus = "published"
)

// IsTerminal reports whether a job in this status will never be picked up again.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusError || s == JobStatusPublished
}

// JobType determines the music mood of the rendered video.
type JobType string

const (
	JobTypeHighlight JobType = "highlight"
	JobTypeNews      JobType = "news"
	JobTypeStory     JobType = "story"
	JobTypeAnalysis  JobType = "analysis"
)

// MusicMood maps a job type to a music folder. Unknown types get the epic default.
func (t JobType) MusicMood() string {
	switch t {
	case JobTypeHighlight:
		return "epic"
	case JobTypeNews:
		return "happy"
	case JobTypeStory:
		return "rock"
	case JobTypeAnalysis:
		return "sad"
	default:
		return "epic"
	}
}

// VideoFormat selects one of the two fixed aspect presets.
type VideoFormat string

const (
	FormatShorts    VideoFormat = "shorts"    // 1080x1920 portrait
	FormatLandscape VideoFormat = "landscape" // 1920x1080
)

// Resolution returns the target canvas for the format.
func (f VideoFormat) Resolution() (w, h int) {
	if f == FormatLandscape {
		return 1920, 1080
	}
	return 1080, 1920
}

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// ---------------------------------------------------------------------------
// Script — narration text, either a plain string or a structured block list.
// Intake systems send both shapes.
// ---------------------------------------------------------------------------

type ScriptBlock struct {
	Text string `json:"text"`
}

type Script struct {
	Text        string        `json:"text,omitempty"`
	Blocks      []ScriptBlock `json:"blocks,omitempty"`
	SearchTerms []string      `json:"search_terms,omitempty"`
}

// UnmarshalJSON accepts either a bare string or the structured object form.
func (s *Script) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		s.Text = plain
		return nil
	}

	type scriptAlias Script
	var obj scriptAlias
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("script must be a string or an object: %w", err)
	}
	*s = Script(obj)
	return nil
}

// Narration flattens the script into the single text the TTS engine reads.
func (s Script) Narration() string {
	if len(s.Blocks) == 0 {
		return strings.TrimSpace(s.Text)
	}
	parts := make([]string, 0, len(s.Blocks))
	for _, b := range s.Blocks {
		if t := strings.TrimSpace(b.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// AssetBundle is the loose set of visual references declared at intake.
// URLs are unvalidated; the acquisition pipeline downloads, filters, and
// rejects as needed.
type AssetBundle struct {
	AllImages []string                 `json:"all_images"`
	AllVideos []string                 `json:"all_videos"`
	AllNews   []map[string]interface{} `json:"all_news,omitempty"`
}

// RenderConfig carries per-job render preferences. Zero values mean
// "use engine defaults".
type RenderConfig struct {
	Format    VideoFormat `json:"format,omitempty"`
	MusicMood string      `json:"music_mood,omitempty"` // overrides the type-derived mood
}

// Models

type Job struct {
	ID            uuid.UUID  `json:"id"`
	SourceURL     string     `json:"source_url"`
	Title         string     `json:"title"`
	Status        JobStatus  `json:"status"`
	Category      *string    `json:"category,omitempty"`
	Priority      string     `json:"priority"`
	AudioPath     *string    `json:"audio_path,omitempty"`
	VideoPath     *string    `json:"video_path,omitempty"`
	ThumbnailPath *string    `json:"thumbnail_path,omitempty"`
	Metadata      JSONB      `json:"metadata,omitempty"`      // full intake payload
	MetadataPost  JSONB      `json:"metadata_post,omitempty"` // social post data (tags, descriptions, platform ids)
	Metrics       JSONB      `json:"metrics,omitempty"`       // analytics (views, likes, retention)
	RetryCount    int        `json:"retry_count"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
	Format        *string    `json:"format,omitempty"` // "shorts", "landscape"
	Region        *string    `json:"region,omitempty"`
	Aggregation   *string    `json:"aggregation,omitempty"`
	PubDate       *time.Time `json:"pub_date,omitempty"`
	Published     bool       `json:"published"`
	PlatformID    *string    `json:"platform_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// DTOs

type CreateJobRequest struct {
	Title       string       `json:"title" validate:"required,min=3"`
	Script      Script       `json:"script" validate:"required"`
	Type        JobType      `json:"type" validate:"required,oneof=highlight news story analysis"`
	Assets      AssetBundle  `json:"assets"`
	Config      RenderConfig `json:"config"`
	Format      *string      `json:"format,omitempty" validate:"omitempty,oneof=shorts landscape"`
	Region      *string      `json:"region,omitempty"`
	Aggregation *string      `json:"aggregation,omitempty"`
	PubDate     *time.Time   `json:"pub_date,omitempty"`
	SourceURL   *string      `json:"source_url,omitempty" validate:"omitempty,min=8"` // idempotency key
}

type CreateJobResponse struct {
	Status    string     `json:"status"` // "created", "existing", "skipped"
	JobID     *uuid.UUID `json:"job_id"`
	JobStatus JobStatus  `json:"job_status,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

// PatchJobRequest is a partial update. Nil fields are left untouched;
// JSONB fields merge key-wise into the stored value.
type PatchJobRequest struct {
	Status        *JobStatus `json:"status,omitempty" validate:"omitempty,oneof=pending processing completed error published"`
	Title         *string    `json:"title,omitempty"`
	AudioPath     *string    `json:"audio_path,omitempty"`
	VideoPath     *string    `json:"video_path,omitempty"`
	ThumbnailPath *string    `json:"thumbnail_path,omitempty"`
	Metadata      JSONB      `json:"metadata,omitempty"`
	MetadataPost  JSONB      `json:"metadata_post,omitempty"`
	Metrics       JSONB      `json:"metrics,omitempty"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
	Format        *string    `json:"format,omitempty"`
	Region        *string    `json:"region,omitempty"`
	Published     *bool      `json:"published,omitempty"`
	PlatformID    *string    `json:"platform_id,omitempty"`
}

type ListJobsResponse struct {
	Jobs  []Job `json:"jobs"`
	Total int   `json:"total"`
}

type CheckURLResponse struct {
	Exists bool `json:"exists"`
	Job    *Job `json:"job,omitempty"`
}

type ReapResponse struct {
	Reaped int         `json:"reaped"`
	IDs    []uuid.UUID `json:"ids"`
}
