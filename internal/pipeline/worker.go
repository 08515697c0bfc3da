package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/forPelevin/adscribe/internal/domain/narration"
	"github.com/forPelevin/adscribe/internal/ports"
	"github.com/forPelevin/adscribe/internal/types"
	"github.com/forPelevin/adscribe/internal/usecase"
)

const (
	DefaultJobQueue    = "adscribe.narration.cmd"
	DefaultResultQueue = "adscribe.narration.result"

	StatusSuccess = "SUCCESS"
	StatusError   = "ERROR"
)

// Job is one narration request read from the job queue.
type Job struct {
	JobID          string          `json:"jobId"`
	Title          string          `json:"title"`
	Context        string          `json:"context"`
	NarrationStyle string          `json:"narrationStyle"`
	Result         json.RawMessage `json:"result"`
}

type JobResult struct {
	JobID        string                   `json:"jobId"`
	Status       string                   `json:"status"`
	Segments     []types.NarrationSegment `json:"segments"`
	ErrorMessage string                   `json:"errorMessage,omitempty"`
}

type WorkerConfig struct {
	Consumer    ports.Consumer
	Publisher   ports.Publisher
	ResultQueue string
	// Store is optional; when set, every successful job is stored under
	// <title or jobId>/.
	Store ports.BlobStore

	Rewriter       ports.Rewriter
	Retry          narration.RetryPolicy
	CarryRaw       bool
	MinGap         *time.Duration
	WordsPerSecond float64

	Logger *slog.Logger
}

type Worker struct {
	cfg WorkerConfig
	log *slog.Logger
}

func NewWorker(cfg WorkerConfig) *Worker {
	if cfg.ResultQueue == "" {
		cfg.ResultQueue = DefaultResultQueue
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Worker{cfg: cfg, log: log}
}

// Run handles deliveries one at a time until ctx is done or the consumer closes.
func (w *Worker) Run(ctx context.Context) error {
	msgs, err := w.cfg.Consumer.Consume(ctx)
	if err != nil {
		return err
	}
	w.log.Info("worker started", "result_queue", w.cfg.ResultQueue)
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("job consumer closed")
			}
			w.handleMessage(ctx, m)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, m ports.Message) {
	w.log.Info("job received", "bytes", len(m.Body))
	res, requeue := w.Handle(ctx, m.Body)
	if requeue {
		if err := m.Nack(true); err != nil {
			w.log.Error("nack failed", "job_id", res.JobID, "err", err)
		}
		return
	}

	payload, err := json.Marshal(res)
	if err == nil {
		err = w.cfg.Publisher.Publish(ctx, w.cfg.ResultQueue, payload)
	}
	if err != nil {
		w.log.Error("publish result failed", "job_id", res.JobID, "err", err)
		if err := m.Nack(true); err != nil {
			w.log.Error("nack failed", "job_id", res.JobID, "err", err)
		}
		return
	}
	if err := m.Ack(); err != nil {
		w.log.Error("ack failed", "job_id", res.JobID, "err", err)
		return
	}
	w.log.Info("job finished", "job_id", res.JobID, "status", res.Status, "segments", len(res.Segments))
}

// Handle processes one job body. requeue is true when the job was interrupted
// by shutdown and should be delivered again.
func (w *Worker) Handle(ctx context.Context, body []byte) (res JobResult, requeue bool) {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return errorResult(uuid.NewString(), fmt.Errorf("invalid job: %w", err)), false
	}
	if strings.TrimSpace(job.JobID) == "" {
		job.JobID = uuid.NewString()
	}
	log := w.log.With("job_id", job.JobID)
	if len(job.Result) == 0 {
		return errorResult(job.JobID, errors.New("job has no analysis result")), false
	}

	uc := usecase.New(usecase.Deps{
		Rewriter:          w.cfg.Rewriter,
		Progress:          progressLogger(log),
		Logger:            log,
		Retry:             w.cfg.Retry,
		CarryRawOnFailure: w.cfg.CarryRaw,
	})
	out, err := uc.Process(ctx, usecase.Input{
		Raw:            job.Result,
		Title:          job.Title,
		Context:        job.Context,
		NarrationStyle: job.NarrationStyle,
		MinDuration:    w.cfg.MinGap,
		WordsPerSecond: w.cfg.WordsPerSecond,
	})
	var cancelled *types.CancelledError
	if errors.As(err, &cancelled) {
		log.Warn("job interrupted", "completed", cancelled.Completed, "total", cancelled.Total)
		return JobResult{JobID: job.JobID}, true
	}
	if err != nil {
		log.Error("job failed", "err", err)
		return errorResult(job.JobID, err), false
	}

	if w.cfg.Store != nil {
		prefix := jobPrefix(job.Title, job.JobID)
		details := types.Details{Title: job.Title, Metadata: job.Context, NarrationStyle: job.NarrationStyle}
		if err := storeRun(ctx, w.cfg.Store, prefix, job.Result, out.Segments, details); err != nil {
			log.Error("store failed", "err", err)
			return errorResult(job.JobID, err), false
		}
	}

	segs := out.Segments
	if segs == nil {
		segs = []types.NarrationSegment{}
	}
	return JobResult{JobID: job.JobID, Status: StatusSuccess, Segments: segs}, false
}

// jobPrefix names a job's blobs after its title, then its ID, then a hash of the ID.
func jobPrefix(title, jobID string) string {
	if p := normalizePathSegment(title); p != "" {
		return p
	}
	if p := normalizePathSegment(jobID); p != "" {
		return p
	}
	return "job-" + hash(jobID)
}

func errorResult(jobID string, err error) JobResult {
	return JobResult{JobID: jobID, Status: StatusError, Segments: []types.NarrationSegment{}, ErrorMessage: err.Error()}
}
