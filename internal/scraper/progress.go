package scraper

import (
	"sync"
	"time"
)

// ProgressStatus represents the current status of an extraction job
type ProgressStatus string

const (
	StatusIdle       ProgressStatus = "idle"
	StatusStarting   ProgressStatus = "starting"
	StatusSearching  ProgressStatus = "searching"
	StatusFiltering  ProgressStatus = "filtering"
	StatusExtracting ProgressStatus = "extracting"
	StatusWriting    ProgressStatus = "writing"
	StatusCompleted  ProgressStatus = "completed"
	StatusFailed     ProgressStatus = "failed"
)

// ProgressUpdate represents a single progress update
type ProgressUpdate struct {
	JobID        string         `json:"job_id"`
	SearchPhrase string         `json:"search_phrase"`
	Status       ProgressStatus `json:"status"`
	Message      string         `json:"message"`
	CurrentPage  int            `json:"current_page"`
	TotalPages   int            `json:"total_pages"`
	RecordsAdded int            `json:"records_added"`
	Timestamp    time.Time      `json:"timestamp"`
}

// ProgressTracker tracks the progress of the running job
type ProgressTracker struct {
	mu        sync.RWMutex
	current   ProgressUpdate
	listeners []chan ProgressUpdate
	active    bool
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{
		current: ProgressUpdate{
			Status:    StatusIdle,
			Timestamp: time.Now(),
		},
		listeners: make([]chan ProgressUpdate, 0),
	}
}

// Start begins tracking a new job
func (pt *ProgressTracker) Start(jobID, searchPhrase string) {
	pt.mu.Lock()
	pt.active = true
	pt.mu.Unlock()

	pt.Update(ProgressUpdate{
		JobID:        jobID,
		SearchPhrase: searchPhrase,
		Status:       StatusStarting,
		Message:      "Starting extraction",
	})
}

// Update updates the current progress
func (pt *ProgressTracker) Update(update ProgressUpdate) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	update.Timestamp = time.Now()
	pt.current = update

	for _, listener := range pt.listeners {
		select {
		case listener <- update:
		default:
			// Skip if channel is full
		}
	}
}

// UpdateStatus updates just the status and message
func (pt *ProgressTracker) UpdateStatus(status ProgressStatus, message string) {
	update := pt.GetCurrent()
	update.Status = status
	update.Message = message
	pt.Update(update)

	if status == StatusCompleted || status == StatusFailed {
		pt.SetActive(false)
	}
}

// UpdatePages updates the page counters and accepted record count
func (pt *ProgressTracker) UpdatePages(current, total, records int) {
	update := pt.GetCurrent()
	update.CurrentPage = current
	update.TotalPages = total
	update.RecordsAdded = records
	pt.Update(update)
}

// GetCurrent returns the current progress
func (pt *ProgressTracker) GetCurrent() ProgressUpdate {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	return pt.current
}

// Subscribe creates a new listener channel for progress updates
func (pt *ProgressTracker) Subscribe() chan ProgressUpdate {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	ch := make(chan ProgressUpdate, 10)
	pt.listeners = append(pt.listeners, ch)

	// Send current state immediately
	ch <- pt.current

	return ch
}

// Unsubscribe removes a listener channel
func (pt *ProgressTracker) Unsubscribe(ch chan ProgressUpdate) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	for i, listener := range pt.listeners {
		if listener == ch {
			pt.listeners = append(pt.listeners[:i], pt.listeners[i+1:]...)
			close(ch)
			break
		}
	}
}

// SetActive marks the tracker as active or inactive
func (pt *ProgressTracker) SetActive(active bool) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.active = active
}

// IsActive returns whether a job is currently running
func (pt *ProgressTracker) IsActive() bool {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	return pt.active
}

// Reset resets the progress tracker to idle and closes every listener
func (pt *ProgressTracker) Reset() {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.current = ProgressUpdate{
		Status:    StatusIdle,
		Timestamp: time.Now(),
	}
	pt.active = false

	for _, listener := range pt.listeners {
		close(listener)
	}
	pt.listeners = make([]chan ProgressUpdate, 0)
}
