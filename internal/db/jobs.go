package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/reelworks/newsreel/internal/models"
)

// ErrJobNotFound is returned when a lookup matches no row.
var ErrJobNotFound = fmt.Errorf("job not found")

const jobColumns = `
	id, source_url, title, status, category, priority,
	audio_path, video_path, thumbnail_path,
	metadata, metadata_post, metrics,
	retry_count, error_message,
	format, region, aggregation, pub_date, published, platform_id,
	created_at, updated_at
`

func scanJob(row interface{ Scan(...interface{}) error }) (*models.Job, error) {
	job := &models.Job{}
	err := row.Scan(
		&job.ID, &job.SourceURL, &job.Title, &job.Status, &job.Category, &job.Priority,
		&job.AudioPath, &job.VideoPath, &job.ThumbnailPath,
		&job.Metadata, &job.MetadataPost, &job.Metrics,
		&job.RetryCount, &job.ErrorMessage,
		&job.Format, &job.Region, &job.Aggregation, &job.PubDate, &job.Published, &job.PlatformID,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}
	return job, nil
}

// CreateJob inserts a new job already in 'processing' — intake schedules the
// render immediately, so there is no separate queued state. If a job with the same
// source_url already exists it is returned unchanged and created=false —
// the upstream intake system retries freely, so duplicates must map to
// the original row. The UNIQUE constraint catches the create/create race;
// on violation we re-read the winning row.
func (db *DB) CreateJob(ctx context.Context, job *models.Job) (created bool, existing *models.Job, err error) {
	if prior, lookupErr := db.GetJobBySourceURL(ctx, job.SourceURL); lookupErr == nil {
		return false, prior, nil
	} else if lookupErr != ErrJobNotFound {
		return false, nil, lookupErr
	}

	const query = `
		INSERT INTO video_jobs (
			id, source_url, title, status, category, priority,
			metadata, format, region, aggregation, pub_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	err = db.QueryRowContext(
		ctx, query,
		job.ID, job.SourceURL, job.Title, job.Status, job.Category, job.Priority,
		job.Metadata, job.Format, job.Region, job.Aggregation, job.PubDate,
	).Scan(&job.CreatedAt, &job.UpdatedAt)

	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		// Lost the race: another request inserted this source_url first.
		prior, lookupErr := db.GetJobBySourceURL(ctx, job.SourceURL)
		if lookupErr != nil {
			return false, nil, fmt.Errorf("duplicate source_url but lookup failed: %w", lookupErr)
		}
		return false, prior, nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("failed to insert job: %w", err)
	}

	return true, nil, nil
}

func (db *DB) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM video_jobs WHERE id = $1`
	return scanJob(db.QueryRowContext(ctx, query, id))
}

func (db *DB) GetJobBySourceURL(ctx context.Context, sourceURL string) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM video_jobs WHERE source_url = $1`
	return scanJob(db.QueryRowContext(ctx, query, sourceURL))
}

// ListJobs returns jobs newest first, optionally filtered by status.
func (db *DB) ListJobs(ctx context.Context, status models.JobStatus, limit int) ([]models.Job, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `SELECT ` + jobColumns + ` FROM video_jobs`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}

	return jobs, rows.Err()
}

// PatchJob applies a partial update as a single UPDATE statement.
// JSONB fields (metadata, metadata_post, metrics) merge key-wise via the
// || operator rather than replacing the stored value; setting status to
// error also increments retry_count. updated_at always advances.
func (db *DB) PatchJob(ctx context.Context, id uuid.UUID, patch *models.PatchJobRequest) error {
	fields := []string{}
	values := []interface{}{}

	add := func(column string, value interface{}) {
		fields = append(fields, fmt.Sprintf("%s = $%d", column, len(values)+1))
		values = append(values, value)
	}
	merge := func(column string, value models.JSONB) {
		fields = append(fields, fmt.Sprintf("%s = %s || $%d::jsonb", column, column, len(values)+1))
		values = append(values, value)
	}

	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.AudioPath != nil {
		add("audio_path", *patch.AudioPath)
	}
	if patch.VideoPath != nil {
		add("video_path", *patch.VideoPath)
	}
	if patch.ThumbnailPath != nil {
		add("thumbnail_path", *patch.ThumbnailPath)
	}
	if patch.ErrorMessage != nil {
		add("error_message", *patch.ErrorMessage)
	}
	if patch.Format != nil {
		add("format", *patch.Format)
	}
	if patch.Region != nil {
		add("region", *patch.Region)
	}
	if patch.Published != nil {
		add("published", *patch.Published)
	}
	if patch.PlatformID != nil {
		add("platform_id", *patch.PlatformID)
	}
	if patch.Metadata != nil {
		merge("metadata", patch.Metadata)
	}
	if patch.MetadataPost != nil {
		merge("metadata_post", patch.MetadataPost)
	}
	if patch.Metrics != nil {
		merge("metrics", patch.Metrics)
	}

	if len(fields) == 0 {
		return nil
	}

	fields = append(fields, "updated_at = CURRENT_TIMESTAMP")
	if patch.Status != nil && *patch.Status == models.JobStatusError {
		fields = append(fields, "retry_count = retry_count + 1")
	}

	query := "UPDATE video_jobs SET "
	for i, f := range fields {
		if i > 0 {
			query += ", "
		}
		query += f
	}
	query += fmt.Sprintf(" WHERE id = $%d", len(values)+1)
	values = append(values, id)

	result, err := db.ExecContext(ctx, query, values...)
	if err != nil {
		return fmt.Errorf("failed to patch job: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// UpdateStatus is the orchestrator's shorthand for a status-only transition.
func (db *DB) UpdateStatus(ctx context.Context, id uuid.UUID, status models.JobStatus) error {
	s := status
	return db.PatchJob(ctx, id, &models.PatchJobRequest{Status: &s})
}

// FailJob records a terminal failure with a bounded error message.
func (db *DB) FailJob(ctx context.Context, id uuid.UUID, message string) error {
	status := models.JobStatusError
	return db.PatchJob(ctx, id, &models.PatchJobRequest{
		Status:       &status,
		ErrorMessage: &message,
	})
}

// CompleteJob marks a job done and records its output video.
func (db *DB) CompleteJob(ctx context.Context, id uuid.UUID, videoPath, audioPath string) error {
	status := models.JobStatusCompleted
	return db.PatchJob(ctx, id, &models.PatchJobRequest{
		Status:    &status,
		VideoPath: &videoPath,
		AudioPath: &audioPath,
	})
}

// ReapStuckJobs forces any pending/processing job older than the threshold
// into error with a stall message. Rows updated in the last threshold window
// are untouched; rows never updated fall back to created_at. Fired by an
// external scheduler, never by the engine itself.
func (db *DB) ReapStuckJobs(ctx context.Context, olderThan time.Duration) ([]uuid.UUID, error) {
	const query = `
		UPDATE video_jobs
		SET status = 'error',
		    error_message = $1,
		    retry_count = retry_count + 1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE status IN ('pending', 'processing')
		  AND COALESCE(updated_at, created_at) < NOW() - $2::interval
		RETURNING id
	`

	message := fmt.Sprintf("job marked as stuck (stalled in pending/processing for > %s)", olderThan)
	interval := fmt.Sprintf("%f seconds", olderThan.Seconds())

	rows, err := db.QueryContext(ctx, query, message, interval)
	if err != nil {
		return nil, fmt.Errorf("failed to reap stuck jobs: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan reaped id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
