package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/reelworks/newsreel/internal/models"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("creating sqlmock: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &DB{DB: conn}, mock
}

func jobRow(id uuid.UUID, sourceURL string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "source_url", "title", "status", "category", "priority",
		"audio_path", "video_path", "thumbnail_path",
		"metadata", "metadata_post", "metrics",
		"retry_count", "error_message",
		"format", "region", "aggregation", "pub_date", "published", "platform_id",
		"created_at", "updated_at",
	}).AddRow(
		id.String(), sourceURL, "Stored job", "processing", nil, "normal",
		nil, nil, nil,
		[]byte(`{}`), []byte(`{}`), []byte(`{}`),
		0, nil,
		nil, nil, nil, nil, false, nil,
		now, now,
	)
}

func TestCreateJobReturnsExistingOnDuplicateSourceURL(t *testing.T) {
	database, mock := newMockDB(t)

	priorID := uuid.New()
	sourceURL := "https://example.com/story/42"
	mock.ExpectQuery(`FROM video_jobs WHERE source_url`).
		WithArgs(sourceURL).
		WillReturnRows(jobRow(priorID, sourceURL))

	created, existing, err := database.CreateJob(context.Background(), &models.Job{
		ID:        uuid.New(),
		SourceURL: sourceURL,
		Title:     "Duplicate submission",
		Status:    models.JobStatusProcessing,
		Priority:  "normal",
	})
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if created {
		t.Error("duplicate source_url must not create a new row")
	}
	if existing == nil || existing.ID != priorID {
		t.Fatalf("expected the first job's id %s back, got %+v", priorID, existing)
	}

	// No INSERT may have been issued.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected statements: %v", err)
	}
}

func TestCreateJobRaceFallsBackToWinningRow(t *testing.T) {
	database, mock := newMockDB(t)

	winnerID := uuid.New()
	sourceURL := "https://example.com/story/7"

	mock.ExpectQuery(`FROM video_jobs WHERE source_url`).
		WithArgs(sourceURL).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO video_jobs`).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectQuery(`FROM video_jobs WHERE source_url`).
		WithArgs(sourceURL).
		WillReturnRows(jobRow(winnerID, sourceURL))

	created, existing, err := database.CreateJob(context.Background(), &models.Job{
		ID:        uuid.New(),
		SourceURL: sourceURL,
		Status:    models.JobStatusProcessing,
		Priority:  "normal",
	})
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if created {
		t.Error("losing the unique race must not report a new row")
	}
	if existing == nil || existing.ID != winnerID {
		t.Fatalf("expected the race winner's row, got %+v", existing)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected statements: %v", err)
	}
}

func TestCreateJobInsertsNewRow(t *testing.T) {
	database, mock := newMockDB(t)

	sourceURL := "https://example.com/story/9"
	now := time.Now()

	mock.ExpectQuery(`FROM video_jobs WHERE source_url`).
		WithArgs(sourceURL).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO video_jobs`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	job := &models.Job{
		ID:        uuid.New(),
		SourceURL: sourceURL,
		Title:     "Fresh job",
		Status:    models.JobStatusProcessing,
		Priority:  "normal",
	}
	created, existing, err := database.CreateJob(context.Background(), job)
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if !created || existing != nil {
		t.Errorf("expected a fresh insert, got created=%v existing=%+v", created, existing)
	}
	if job.CreatedAt.IsZero() {
		t.Error("insert should populate created_at")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected statements: %v", err)
	}
}

func TestReapStuckJobsTargetsOnlyStaleNonTerminalRows(t *testing.T) {
	database, mock := newMockDB(t)

	stuckA := uuid.New()
	stuckB := uuid.New()

	// The reap statement must restrict itself to stale pending/processing
	// rows; completed and fresh jobs never match the predicate.
	mock.ExpectQuery(`UPDATE video_jobs[\s\S]*status IN \('pending', 'processing'\)[\s\S]*COALESCE\(updated_at, created_at\) < NOW\(\)`).
		WithArgs(sqlmock.AnyArg(), "3600.000000 seconds").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).
			AddRow(stuckA.String()).
			AddRow(stuckB.String()))

	ids, err := database.ReapStuckJobs(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("ReapStuckJobs failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != stuckA || ids[1] != stuckB {
		t.Errorf("unexpected reaped ids: %v", ids)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected statements: %v", err)
	}
}
