package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/reelworks/newsreel/internal/models"
)

const QueueRenderJob = "queue:render_job"

// Queue is the render dispatch queue. Job creation pushes one task per job
// id; because a source_url only ever maps to one insert, a given id is only
// ever scheduled once — that is the engine's whole mutual-exclusion story.
type Queue struct {
	client *redis.Client
}

// Task is the payload carried through Redis. The payload duplicates the
// intake request so a worker can render without re-reading intake state.
type Task struct {
	JobID     uuid.UUID               `json:"job_id"`
	Request   models.CreateJobRequest `json:"request"`
	CreatedAt time.Time               `json:"created_at"`
}

func New(redisURL string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Queue{client: client}, nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

// EnqueueRender schedules a render for a freshly created job.
func (q *Queue) EnqueueRender(ctx context.Context, jobID uuid.UUID, req models.CreateJobRequest) error {
	task := &Task{
		JobID:     jobID,
		Request:   req,
		CreatedAt: time.Now(),
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal render task: %w", err)
	}

	return q.client.RPush(ctx, QueueRenderJob, data).Err()
}

// Dequeue blocks up to timeout waiting for the next render task.
// Returns (nil, nil) when the queue stays empty.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Task, error) {
	result, err := q.client.BLPop(ctx, timeout, QueueRenderJob).Result()
	if err == redis.Nil {
		return nil, nil // No task available
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected redis response")
	}

	var task Task
	if err := json.Unmarshal([]byte(result[1]), &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal render task: %w", err)
	}

	return &task, nil
}

func (q *Queue) Length(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, QueueRenderJob).Result()
}
