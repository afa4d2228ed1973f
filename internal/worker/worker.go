package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/reelworks/newsreel/internal/cascade"
	"github.com/reelworks/newsreel/internal/config"
	"github.com/reelworks/newsreel/internal/db"
	"github.com/reelworks/newsreel/internal/media"
	"github.com/reelworks/newsreel/internal/models"
	"github.com/reelworks/newsreel/internal/queue"
	"github.com/reelworks/newsreel/internal/services"
)

// maxErrorMessageLen caps what gets persisted to the job row; ffmpeg and
// provider errors can run to pages.
const maxErrorMessageLen = 500

// Transcriber produces word-level timestamps for a narration file.
type Transcriber interface {
	TranscribeAudio(ctx context.Context, audioPath string) ([]services.WordTimestamp, error)
}

// Worker drains the render queue and runs the full assembly for each job.
// Every failure path ends in a db status update; a worker crash must never
// leave a job silently stuck in processing.
type Worker struct {
	db         *db.DB
	queue      *queue.Queue
	store      *media.Store
	ffmpeg     *services.FFmpegService
	pipeline   *media.Pipeline
	compositor *media.Compositor
	narration  *cascade.Cascade[services.SpeechRequest, services.SpeechResult]

	// nil when no OpenAI key is configured; jobs then ship without captions
	transcriber Transcriber

	cfg *config.Config
}

func New(database *db.DB, q *queue.Queue, store *media.Store, ffmpeg *services.FFmpegService, pipeline *media.Pipeline, compositor *media.Compositor, cascades *services.CascadeSet, transcriber Transcriber, cfg *config.Config) *Worker {
	return &Worker{
		db:          database,
		queue:       q,
		store:       store,
		ffmpeg:      ffmpeg,
		pipeline:    pipeline,
		compositor:  compositor,
		narration:   cascades.Narration,
		transcriber: transcriber,
		cfg:         cfg,
	}
}

// Start runs the dequeue loop until the context is cancelled. Concurrency is
// bounded by a semaphore: media assembly saturates CPU and disk quickly.
func (w *Worker) Start(ctx context.Context) {
	log.Printf("[Worker] Started (max %d concurrent jobs)", w.cfg.MaxConcurrentJobs)

	sem := make(chan struct{}, w.cfg.MaxConcurrentJobs)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Worker] Shutting down")
			return
		default:
		}

		task, err := w.queue.Dequeue(ctx, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[Worker] Dequeue error: %v", err)
			time.Sleep(2 * time.Second)
			continue
		}
		if task == nil {
			continue
		}

		sem <- struct{}{}
		go func(task *queue.Task) {
			defer func() { <-sem }()
			w.process(ctx, task)
		}(task)
	}
}

// process runs one job end to end. It never panics out and never returns:
// every outcome lands in the database as completed or error.
func (w *Worker) process(ctx context.Context, task *queue.Task) {
	jobID := task.JobID
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Worker] PANIC in job %s: %v", jobID, r)
			w.fail(ctx, jobID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	log.Printf("[Worker] Processing job %s: %s", jobID, task.Request.Title)

	// Intake already created the row in processing; this refresh advances
	// updated_at so the reaper sees the job is alive.
	if err := w.db.UpdateStatus(ctx, jobID, models.JobStatusProcessing); err != nil {
		log.Printf("[Worker] Could not mark job %s processing: %v", jobID, err)
		return
	}

	videoPath, audioPath, err := w.assemble(ctx, task)
	if err != nil {
		log.Printf("[Worker] Job %s failed after %s: %v", jobID, time.Since(start).Round(time.Second), err)
		w.fail(ctx, jobID, err.Error())
		return
	}

	if err := w.db.CompleteJob(ctx, jobID, videoPath, audioPath); err != nil {
		log.Printf("[Worker] Could not mark job %s completed: %v", jobID, err)
		return
	}

	log.Printf("[Worker] Job %s completed in %s: %s", jobID, time.Since(start).Round(time.Second), videoPath)
}

// assemble is the full pipeline: narration, parallel asset acquisition and
// transcription, timeline composition, audio mix and final encode.
func (w *Worker) assemble(ctx context.Context, task *queue.Task) (videoPath, audioPath string, err error) {
	req := task.Request
	jobID := task.JobID.String()

	text := req.Script.Narration()
	if text == "" {
		return "", "", fmt.Errorf("script has no narration text")
	}

	// Step 1: narration audio. Exhaustion here is fatal; there is no video
	// without a voice track.
	log.Printf("[Worker] [%s] Generating narration (%d chars)", jobID, len(text))
	speech, err := w.narration.Run(ctx, services.SpeechRequest{Text: text})
	if err != nil {
		return "", "", fmt.Errorf("narration generation failed: %w", err)
	}
	log.Printf("[Worker] [%s] Narration by %s (%d bytes)", jobID, speech.Provider, len(speech.Value.AudioData))

	audioPath = w.store.NarrationPath(jobID)
	if err := os.WriteFile(audioPath, speech.Value.AudioData, 0644); err != nil {
		return "", "", fmt.Errorf("writing narration audio: %w", err)
	}

	narrationDur, err := w.ffmpeg.MediaDuration(ctx, audioPath)
	if err != nil {
		return "", "", fmt.Errorf("probing narration duration: %w", err)
	}
	total := narrationDur + w.cfg.EndBufferSeconds
	format := resolveFormat(req)

	log.Printf("[Worker] [%s] Narration %.1fs, target %.1fs, format %s", jobID, narrationDur, total, format)

	// Step 2: asset acquisition and transcription run in parallel. The
	// acquisition error is fatal only on context death; transcription
	// failures just mean no captions.
	var assets []media.Asset
	var words []services.WordTimestamp

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var aerr error
		assets, aerr = w.pipeline.Acquire(gctx, media.AcquireRequest{
			Bundle:        req.Assets,
			SearchTerms:   req.Script.SearchTerms,
			Title:         req.Title,
			Portrait:      format == models.FormatShorts,
			TargetSeconds: total,
		})
		return aerr
	})
	g.Go(func() error {
		if w.transcriber == nil {
			return nil
		}
		ws, terr := w.transcriber.TranscribeAudio(gctx, audioPath)
		if terr != nil {
			log.Printf("[Worker] [%s] Transcription failed, shipping without captions: %v", jobID, terr)
			return nil
		}
		words = ws
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", "", fmt.Errorf("asset acquisition failed: %w", err)
	}

	defer w.cleanupAssets(assets)

	// Step 3: silent visual track.
	visualPath, err := w.compositor.Build(ctx, jobID, assets, format, total)
	if err != nil {
		return "", "", fmt.Errorf("timeline composition failed: %w", err)
	}
	defer w.store.Cleanup(visualPath)

	// Step 4: captions.
	subtitlePath := ""
	if groups := media.BuildCaptionGroups(words, total); len(groups) > 0 {
		width, height := format.Resolution()
		subtitlePath = w.ffmpeg.CreateTempFile(fmt.Sprintf("captions_%s.ass", jobID))
		if err := media.WriteASSCaptions(groups, subtitlePath, width, height); err != nil {
			log.Printf("[Worker] [%s] Caption write failed, shipping without captions: %v", jobID, err)
			subtitlePath = ""
		} else {
			defer w.store.Cleanup(subtitlePath)
		}
	}

	// Step 5: background music. Missing music is fine, the mix just skips it.
	mood := req.Config.MusicMood
	if mood == "" {
		mood = req.Type.MusicMood()
	}
	musicPath := w.store.Music(mood)
	if musicPath == "" {
		log.Printf("[Worker] [%s] No music available for mood %q", jobID, mood)
	}

	// Step 6: final encode under a hard wall-clock budget.
	videoPath = w.store.VideoPath(jobID)
	renderCtx, cancel := context.WithTimeout(ctx, w.cfg.RenderTimeout)
	defer cancel()

	if err := w.ffmpeg.EncodeFinal(renderCtx, visualPath, audioPath, musicPath, subtitlePath, videoPath, total); err != nil {
		if errors.Is(err, services.ErrRenderTimeout) {
			return "", "", fmt.Errorf("render timed out after %s", w.cfg.RenderTimeout)
		}
		return "", "", fmt.Errorf("final encode failed: %w", err)
	}

	return videoPath, audioPath, nil
}

func (w *Worker) cleanupAssets(assets []media.Asset) {
	for _, a := range assets {
		// Bundled loops are shared assets, not per-job temp files.
		if a.Kind == media.AssetLoop || a.Path == "" {
			continue
		}
		w.store.Cleanup(a.Path)
	}
}

// fail records the error on the job row, truncated to a storable size. It
// uses a fresh timeout so a cancelled job context does not lose the write.
func (w *Worker) fail(ctx context.Context, jobID uuid.UUID, message string) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := w.db.FailJob(writeCtx, jobID, TruncateError(message)); err != nil {
		log.Printf("[Worker] Could not record failure for job %s: %v", jobID, err)
	}
}

func resolveFormat(req models.CreateJobRequest) models.VideoFormat {
	if req.Config.Format != "" {
		return req.Config.Format
	}
	if req.Format != nil && *req.Format != "" {
		return models.VideoFormat(*req.Format)
	}
	return models.FormatShorts
}

// TruncateError trims an error message for storage.
func TruncateError(message string) string {
	if len(message) > maxErrorMessageLen {
		return message[:maxErrorMessageLen]
	}
	return message
}
