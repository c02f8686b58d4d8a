// Package database archives runs and their records in Postgres or SQLite.
package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tkilaker/newsminer/internal/models"
)

// Store errors.
var (
	ErrRunNotFound    = errors.New("run not found")
	ErrNoDatabaseURL  = errors.New("database url is empty")
	ErrUnknownBackend = errors.New("unsupported database url scheme")
)

const sqliteScheme = "sqlite://"

// Store is the run archive
type Store interface {
	// CreateRun inserts a run in the running state. An empty ID is filled in.
	CreateRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, id string, outcome RunOutcome) error
	SaveRecords(ctx context.Context, runID string, records []models.ArticleRecord) error
	// ListRuns returns runs newest first
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	GetRun(ctx context.Context, id string) (*Run, error)
	RunRecords(ctx context.Context, runID string) ([]*Record, error)
	// RecentRecords returns records by publication date, newest first
	RecentRecords(ctx context.Context, limit int) ([]*Record, error)
	Close() error
}

// Open picks the backend from the url: sqlite://<path> or a postgres url
func Open(ctx context.Context, url string) (Store, error) {
	switch {
	case url == "":
		return nil, ErrNoDatabaseURL
	case strings.HasPrefix(url, sqliteScheme):
		return NewSQLite(strings.TrimPrefix(url, sqliteScheme))
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return NewPostgres(ctx, url)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, url)
}
