// Package worker drains the job queue, running one extraction session per job.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tkilaker/newsminer/internal/database"
	"github.com/tkilaker/newsminer/internal/failure"
	"github.com/tkilaker/newsminer/internal/logger"
	"github.com/tkilaker/newsminer/internal/models"
	"github.com/tkilaker/newsminer/internal/output"
	"github.com/tkilaker/newsminer/internal/queue"
	"github.com/tkilaker/newsminer/internal/scraper"
)

// Runner executes one job
type Runner interface {
	Run(ctx context.Context, jobID string, job models.SearchJob) (*scraper.Result, error)
}

// Options controls the loop
type Options struct {
	// TempDir is emptied after every job
	TempDir string
	// Follow keeps polling an empty queue until the context ends
	Follow       bool
	PollInterval time.Duration
}

// Worker processes jobs strictly one at a time
type Worker struct {
	source  queue.Source
	runner  Runner
	browser io.Closer
	store   database.Store
	log     *logger.Logger
	opts    Options
}

// New creates a worker. store may be nil to disable archiving.
func New(source queue.Source, runner Runner, browser io.Closer, store database.Store, log *logger.Logger, opts Options) *Worker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 15 * time.Second
	}
	return &Worker{
		source:  source,
		runner:  runner,
		browser: browser,
		store:   store,
		log:     log,
		opts:    opts,
	}
}

// Run drains the source. Without Follow it returns once the queue is empty.
// A cancelled context ends the loop after the current job.
func (w *Worker) Run(ctx context.Context) error {
	defer w.log.LogMetrics()

	for {
		if ctx.Err() != nil {
			return nil
		}

		job, err := w.source.Next(ctx)
		if errors.Is(err, queue.ErrEmpty) {
			if !w.opts.Follow {
				w.log.Service().Info("Queue drained")
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.opts.PollInterval):
				continue
			}
		}
		if err != nil {
			return fmt.Errorf("failed to fetch job: %w", err)
		}

		if err := w.Process(ctx, job); err != nil {
			return fmt.Errorf("failed to acknowledge job %s: %w", job.ID, err)
		}
	}
}

// Process runs a single job and reports its outcome. The returned error is
// only about acknowledging; job failures are reported to the queue.
// Cancelling ctx does not interrupt a job that has started.
func (w *Worker) Process(ctx context.Context, job *queue.Job) error {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	log := w.log.WithJob(job.ID, job.Payload.SearchPhrase).WithField("attempt", job.Attempt)

	w.log.RecordJobProcessed()
	defer w.cleanup(log)

	if job.PayloadErr != nil {
		log.WithError(job.PayloadErr).Error("Invalid job payload")
		w.log.RecordJobFailure(string(failure.Application))
		return job.Fail(ctx, failure.Application, job.PayloadErr.Error())
	}

	log.Info("Processing job")
	runID := w.startRun(ctx, log, job)

	result, err := w.runner.Run(ctx, job.ID, job.Payload)
	if err != nil {
		kind := failure.KindOf(err)
		log.WithError(err).WithField("failure_kind", kind).Error("Job failed")
		w.log.RecordJobFailure(string(kind))
		w.finishRun(ctx, log, runID, database.RunOutcome{
			Status:         database.RunFailed,
			FailureKind:    string(kind),
			FailureMessage: err.Error(),
		})
		return job.Fail(ctx, kind, err.Error())
	}

	w.archive(ctx, log, runID, result.Records)
	w.finishRun(ctx, log, runID, database.RunOutcome{
		Status:      database.RunSucceeded,
		RecordCount: len(result.Records),
	})

	duration := time.Since(start)
	w.log.RecordJobSuccess(duration, len(result.Records))
	log.WithFields(logrus.Fields{
		"records":  len(result.Records),
		"duration": duration.String(),
		"zip":      result.Zip,
	}).Info("Job completed")

	return job.Done(ctx)
}

// cleanup runs after every job whatever its outcome
func (w *Worker) cleanup(log logrus.FieldLogger) {
	if w.browser != nil {
		if err := w.browser.Close(); err != nil {
			log.WithError(err).Warn("Failed to close browser")
		}
	}
	if w.opts.TempDir != "" {
		if err := output.ClearDir(w.opts.TempDir); err != nil {
			log.WithError(err).Warn("Failed to clear temp directory")
		}
	}
}

// startRun archives the job. Store errors are logged and never fail the job.
func (w *Worker) startRun(ctx context.Context, log logrus.FieldLogger, job *queue.Job) string {
	if w.store == nil {
		return ""
	}
	run := &database.Run{JobID: job.ID, Job: job.Payload}
	if err := w.store.CreateRun(ctx, run); err != nil {
		log.WithError(err).Warn("Failed to archive run")
		return ""
	}
	return run.ID
}

func (w *Worker) finishRun(ctx context.Context, log logrus.FieldLogger, runID string, outcome database.RunOutcome) {
	if w.store == nil || runID == "" {
		return
	}
	if err := w.store.FinishRun(ctx, runID, outcome); err != nil {
		log.WithError(err).Warn("Failed to update archived run")
	}
}

func (w *Worker) archive(ctx context.Context, log logrus.FieldLogger, runID string, records []models.ArticleRecord) {
	if w.store == nil || runID == "" {
		return
	}
	if err := w.store.SaveRecords(ctx, runID, records); err != nil {
		log.WithError(err).Warn("Failed to archive records")
	}
}
