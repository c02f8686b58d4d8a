package extract

import (
	"time"

	"github.com/tkilaker/newsminer/internal/models"
)

// AddOutcome is the result of offering a record to the accumulator
type AddOutcome int

const (
	// Accepted means the record was appended
	Accepted AddOutcome = iota
	// DuplicateSkipped means an identical title and description was already held
	DuplicateSkipped
	// DateLimitReached means the record is older than the limit; nothing was appended
	DateLimitReached
)

func (o AddOutcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case DuplicateSkipped:
		return "duplicate_skipped"
	case DateLimitReached:
		return "date_limit_reached"
	}
	return "unknown"
}

type recordKey struct {
	title       string
	description string
}

// Accumulator collects records in insertion order and suppresses repeats of
// the same title and description pair
type Accumulator struct {
	limit   time.Time
	records []models.ArticleRecord
	seen    map[recordKey]struct{}
}

// NewAccumulator creates an empty accumulator for the given limit date
func NewAccumulator(limit time.Time) *Accumulator {
	return &Accumulator{
		limit: limit,
		seen:  make(map[recordKey]struct{}),
	}
}

// Check classifies a candidate without mutating the accumulator. Duplicates
// are detected before the date limit so a re-rendered old promo never ends
// the walk.
func (a *Accumulator) Check(title, description string, publishedAt time.Time) AddOutcome {
	if _, ok := a.seen[recordKey{title, description}]; ok {
		return DuplicateSkipped
	}
	if publishedAt.Before(a.limit) {
		return DateLimitReached
	}
	return Accepted
}

// Add appends the record when Check accepts it
func (a *Accumulator) Add(record models.ArticleRecord) AddOutcome {
	outcome := a.Check(record.Title, record.Description, record.PublishedAt)
	if outcome != Accepted {
		return outcome
	}

	a.seen[recordKey{record.Title, record.Description}] = struct{}{}
	a.records = append(a.records, record)
	return Accepted
}

// Len returns the number of accepted records
func (a *Accumulator) Len() int {
	return len(a.records)
}

// Records returns a copy of the accepted records in insertion order
func (a *Accumulator) Records() []models.ArticleRecord {
	out := make([]models.ArticleRecord, len(a.records))
	copy(out, a.records)
	return out
}

// Limit returns the oldest accepted publication time
func (a *Accumulator) Limit() time.Time {
	return a.limit
}

// Reset drops every record and sets a new limit date
func (a *Accumulator) Reset(limit time.Time) {
	a.limit = limit
	a.records = nil
	clear(a.seen)
}
