package worker

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkilaker/newsminer/internal/database"
	"github.com/tkilaker/newsminer/internal/failure"
	"github.com/tkilaker/newsminer/internal/logger"
	"github.com/tkilaker/newsminer/internal/models"
	"github.com/tkilaker/newsminer/internal/queue"
	"github.com/tkilaker/newsminer/internal/scraper"
)

type outcome struct {
	done    bool
	kind    failure.Kind
	message string
}

type fakeAcker struct {
	outcome *outcome
}

func (a *fakeAcker) Done(ctx context.Context) error {
	a.outcome.done = true
	return nil
}

func (a *fakeAcker) Fail(ctx context.Context, kind failure.Kind, message string) error {
	a.outcome.kind = kind
	a.outcome.message = message
	return nil
}

type fakeSource struct {
	jobs []*queue.Job
	err  error
}

func (s *fakeSource) Next(ctx context.Context) (*queue.Job, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.jobs) == 0 {
		return nil, queue.ErrEmpty
	}
	job := s.jobs[0]
	s.jobs = s.jobs[1:]
	return job, nil
}

func (s *fakeSource) Close() error { return nil }

type fakeRunner struct {
	results map[string]*scraper.Result
	errs    map[string]error
	ran     []string
}

func (r *fakeRunner) Run(ctx context.Context, jobID string, job models.SearchJob) (*scraper.Result, error) {
	r.ran = append(r.ran, jobID)
	if err, ok := r.errs[jobID]; ok {
		return nil, err
	}
	if res, ok := r.results[jobID]; ok {
		return res, nil
	}
	return &scraper.Result{}, nil
}

type countingCloser struct {
	closes int
}

func (c *countingCloser) Close() error {
	c.closes++
	return nil
}

func quietLogger() *logger.Logger {
	return logger.NewWithOutput("test", "error", "text", io.Discard)
}

func newJob(id, phrase string, payloadErr error) (*queue.Job, *outcome) {
	o := &outcome{}
	return queue.NewJob(id, models.SearchJob{SearchPhrase: phrase}, payloadErr, 0, &fakeAcker{outcome: o}), o
}

func TestWorkerProcessesEveryJob(t *testing.T) {
	tempDir := t.TempDir()
	ok, okOutcome := newJob("ok", "Carnival", nil)
	business, businessOutcome := newJob("business", "Bitcoin", nil)
	broken, brokenOutcome := newJob("broken", "Elon Musk", nil)
	invalid, invalidOutcome := newJob("invalid", "", models.ErrEmptySearchPhrase)

	runner := &fakeRunner{
		results: map[string]*scraper.Result{
			"ok": {Records: []models.ArticleRecord{{Title: "a"}, {Title: "b"}}},
		},
		errs: map[string]error{
			"business": failure.Businessf("total number of files exceeds the maximum allowed limit of 50"),
			"broken":   errors.New("failed to open website: timeout"),
		},
	}
	browser := &countingCloser{}
	log := quietLogger()

	source := &fakeSource{jobs: []*queue.Job{ok, business, broken, invalid}}
	w := New(source, runner, browser, nil, log, Options{TempDir: tempDir})

	// Leftovers from a job must not leak into the next one
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "Carnival_0.jpeg"), []byte("x"), 0644))

	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, []string{"ok", "business", "broken"}, runner.ran)

	assert.True(t, okOutcome.done)
	assert.False(t, businessOutcome.done)
	assert.Equal(t, failure.Business, businessOutcome.kind)
	assert.Contains(t, businessOutcome.message, "maximum allowed limit")
	assert.Equal(t, failure.Application, brokenOutcome.kind)
	assert.Equal(t, "failed to open website: timeout", brokenOutcome.message)
	assert.Equal(t, failure.Application, invalidOutcome.kind)
	assert.Equal(t, models.ErrEmptySearchPhrase.Error(), invalidOutcome.message)

	assert.Equal(t, 4, browser.closes)
	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	m := log.GetMetrics()
	assert.Equal(t, int64(4), m.JobsProcessed)
	assert.Equal(t, int64(1), m.JobsSucceeded)
	assert.Equal(t, int64(3), m.JobsFailed)
	assert.Equal(t, int64(2), m.RecordsExtracted)
	assert.Equal(t, int64(1), m.FailuresByKind["BUSINESS"])
	assert.Equal(t, int64(2), m.FailuresByKind["APPLICATION"])
}

func TestWorkerSourceError(t *testing.T) {
	w := New(&fakeSource{err: errors.New("channel closed")}, &fakeRunner{}, nil, nil, quietLogger(), Options{})

	err := w.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel closed")
}

func TestWorkerFollowStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := &fakeRunner{}
	w := New(&fakeSource{}, runner, nil, nil, quietLogger(), Options{Follow: true, PollInterval: 10 * time.Millisecond})

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
	assert.Empty(t, runner.ran)
}

func TestWorkerArchivesRuns(t *testing.T) {
	ctx := context.Background()
	store, err := database.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer store.Close()

	ok, _ := newJob("ok", "Carnival", nil)
	failing, _ := newJob("failing", "Bitcoin", nil)
	runner := &fakeRunner{
		results: map[string]*scraper.Result{
			"ok": {Records: []models.ArticleRecord{
				{Title: "Carnival cruise", PublishedAt: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), ImageFile: models.NoImage},
			}},
		},
		errs: map[string]error{"failing": failure.Businessf("size of Bitcoin.zip exceeds the maximum allowed limit of 20 megabytes")},
	}

	w := New(&fakeSource{jobs: []*queue.Job{ok, failing}}, runner, nil, store, quietLogger(), Options{})
	require.NoError(t, w.Run(ctx))

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	byJob := map[string]*database.Run{}
	for _, r := range runs {
		byJob[r.JobID] = r
	}
	require.Contains(t, byJob, "ok")
	require.Contains(t, byJob, "failing")

	assert.Equal(t, database.RunSucceeded, byJob["ok"].Status)
	assert.Equal(t, 1, byJob["ok"].RecordCount)
	assert.Equal(t, database.RunFailed, byJob["failing"].Status)
	assert.Equal(t, "BUSINESS", byJob["failing"].FailureKind)

	records, err := store.RunRecords(ctx, byJob["ok"].ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Carnival cruise", records[0].Title)
}

type cancellingRunner struct {
	cancel context.CancelFunc
	ctxErr error
}

func (r *cancellingRunner) Run(ctx context.Context, jobID string, job models.SearchJob) (*scraper.Result, error) {
	r.cancel()
	r.ctxErr = ctx.Err()
	return &scraper.Result{}, nil
}

func TestWorkerFinishesJobAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first, firstOutcome := newJob("first", "Carnival", nil)
	second, _ := newJob("second", "Bitcoin", nil)
	runner := &cancellingRunner{cancel: cancel}

	w := New(&fakeSource{jobs: []*queue.Job{first, second}}, runner, nil, nil, quietLogger(), Options{})
	require.NoError(t, w.Run(ctx))

	assert.NoError(t, runner.ctxErr)
	assert.True(t, firstOutcome.done)
}
