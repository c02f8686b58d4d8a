// Package queue delivers search jobs to the worker and records their outcome.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tkilaker/newsminer/internal/failure"
	"github.com/tkilaker/newsminer/internal/models"
)

// ErrEmpty is returned by Next when no job is pending
var ErrEmpty = errors.New("queue is empty")

// Acker reports the outcome of a job back to its backend
type Acker interface {
	Done(ctx context.Context) error
	Fail(ctx context.Context, kind failure.Kind, message string) error
}

// Job is one delivered work item
type Job struct {
	ID      string
	Payload models.SearchJob
	// PayloadErr is set when the payload could not be decoded or validated
	PayloadErr error
	// Attempt counts previous deliveries of the same item
	Attempt int

	acker Acker
}

// NewJob builds a job bound to an acker. It is exported for backends and
// tests outside this package.
func NewJob(id string, payload models.SearchJob, payloadErr error, attempt int, acker Acker) *Job {
	return &Job{
		ID:         id,
		Payload:    payload,
		PayloadErr: payloadErr,
		Attempt:    attempt,
		acker:      acker,
	}
}

// Done marks the job as completed
func (j *Job) Done(ctx context.Context) error {
	return j.acker.Done(ctx)
}

// Fail marks the job as failed with the given kind
func (j *Job) Fail(ctx context.Context, kind failure.Kind, message string) error {
	return j.acker.Fail(ctx, kind, message)
}

// Source hands out pending jobs one at a time
type Source interface {
	// Next returns the next job or ErrEmpty
	Next(ctx context.Context) (*Job, error)
	Close() error
}

// Publisher enqueues new jobs
type Publisher interface {
	Publish(ctx context.Context, job models.SearchJob) (string, error)
}

// envelope accepts both {"news_data": {...}} and the flat payload
type envelope struct {
	ID       string            `json:"id,omitempty"`
	NewsData *models.SearchJob `json:"news_data,omitempty"`
	models.SearchJob
}

// DecodePayload parses and validates a job payload
func DecodePayload(data []byte) (string, models.SearchJob, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", models.SearchJob{}, fmt.Errorf("failed to decode payload: %w", err)
	}

	job := env.SearchJob
	if env.NewsData != nil {
		job = *env.NewsData
	}
	if err := job.Validate(); err != nil {
		return env.ID, job, fmt.Errorf("invalid payload: %w", err)
	}

	return env.ID, job, nil
}

// EncodePayload renders a job in the wrapped form
func EncodePayload(id string, job models.SearchJob) ([]byte, error) {
	data, err := json.Marshal(struct {
		ID       string           `json:"id"`
		NewsData models.SearchJob `json:"news_data"`
	}{id, job})
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return data, nil
}
