package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tkilaker/newsminer/internal/failure"
	"github.com/tkilaker/newsminer/internal/models"
)

// Directory layout of a Dir queue
const (
	PendingDir    = "pending"
	ProcessingDir = "processing"
	DoneDir       = "done"
	FailedDir     = "failed"
)

// FailureReport is written next to a failed work item
type FailureReport struct {
	ID       string       `json:"id"`
	Kind     failure.Kind `json:"exception_type"`
	Message  string       `json:"message"`
	FailedAt time.Time    `json:"failed_at"`
}

// Dir is a work-item queue kept as JSON files on disk
type Dir struct {
	root string
	mu   sync.Mutex
}

// OpenDir creates the queue directories below root
func OpenDir(root string) (*Dir, error) {
	for _, sub := range []string{PendingDir, ProcessingDir, DoneDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0755); err != nil {
			return nil, fmt.Errorf("failed to create queue directory: %w", err)
		}
	}
	return &Dir{root: root}, nil
}

// Publish writes a new pending work item
func (d *Dir) Publish(ctx context.Context, job models.SearchJob) (string, error) {
	if err := job.Validate(); err != nil {
		return "", err
	}

	id := uuid.New().String()
	data, err := EncodePayload(id, job)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("%020d-%s.json", time.Now().UnixNano(), id)
	tmp := filepath.Join(d.root, PendingDir, "."+name)
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write work item: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(d.root, PendingDir, name)); err != nil {
		return "", fmt.Errorf("failed to publish work item: %w", err)
	}

	return id, nil
}

// Next claims the oldest pending work item
func (d *Dir) Next(ctx context.Context) (*Job, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(d.root, PendingDir))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending work items: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), ".json") && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, ErrEmpty
	}
	sort.Strings(names)

	name := names[0]
	claimed := filepath.Join(d.root, ProcessingDir, name)
	if err := os.Rename(filepath.Join(d.root, PendingDir, name), claimed); err != nil {
		return nil, fmt.Errorf("failed to claim work item %s: %w", name, err)
	}

	data, err := os.ReadFile(claimed)
	if err != nil {
		return nil, fmt.Errorf("failed to read work item %s: %w", name, err)
	}

	id, payload, payloadErr := DecodePayload(data)
	if id == "" {
		id = strings.TrimSuffix(name, ".json")
	}

	return NewJob(id, payload, payloadErr, 0, &dirAcker{dir: d, id: id, name: name}), nil
}

// Close is a no-op for the directory queue
func (d *Dir) Close() error {
	return nil
}

type dirAcker struct {
	dir  *Dir
	id   string
	name string
}

func (a *dirAcker) Done(ctx context.Context) error {
	return a.move(DoneDir)
}

func (a *dirAcker) Fail(ctx context.Context, kind failure.Kind, message string) error {
	if err := a.move(FailedDir); err != nil {
		return err
	}

	report, err := json.MarshalIndent(FailureReport{
		ID:       a.id,
		Kind:     kind,
		Message:  message,
		FailedAt: time.Now(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode failure report: %w", err)
	}

	path := filepath.Join(a.dir.root, FailedDir, strings.TrimSuffix(a.name, ".json")+".error.json")
	if err := os.WriteFile(path, report, 0644); err != nil {
		return fmt.Errorf("failed to write failure report: %w", err)
	}
	return nil
}

func (a *dirAcker) move(sub string) error {
	from := filepath.Join(a.dir.root, ProcessingDir, a.name)
	to := filepath.Join(a.dir.root, sub, a.name)
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("failed to move work item to %s: %w", sub, err)
	}
	return nil
}
