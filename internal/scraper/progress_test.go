package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressTrackerLifecycle(t *testing.T) {
	pt := NewProgressTracker()
	assert.Equal(t, StatusIdle, pt.GetCurrent().Status)
	assert.False(t, pt.IsActive())

	ch := pt.Subscribe()
	initial := <-ch
	assert.Equal(t, StatusIdle, initial.Status)

	pt.Start("job-1", "Bitcoin")
	assert.True(t, pt.IsActive())
	started := <-ch
	assert.Equal(t, StatusStarting, started.Status)
	assert.Equal(t, "Bitcoin", started.SearchPhrase)

	pt.UpdatePages(2, 5, 12)
	paged := <-ch
	assert.Equal(t, 2, paged.CurrentPage)
	assert.Equal(t, 5, paged.TotalPages)
	assert.Equal(t, 12, paged.RecordsAdded)
	assert.Equal(t, "job-1", paged.JobID)

	pt.UpdateStatus(StatusCompleted, "done")
	assert.False(t, pt.IsActive())
	assert.Equal(t, StatusCompleted, (<-ch).Status)

	pt.Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)
}

func TestProgressTrackerReset(t *testing.T) {
	pt := NewProgressTracker()
	ch := pt.Subscribe()
	<-ch

	pt.Start("job-1", "Carnival")
	pt.Reset()

	assert.Equal(t, StatusIdle, pt.GetCurrent().Status)
	assert.False(t, pt.IsActive())

	// Drain what was buffered before the close
	for range ch {
	}
	require.Empty(t, pt.listeners)
}
