package logger

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, logrus.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, logrus.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, logrus.InfoLevel, ParseLevel("verbose"))
}

func TestWithJob_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("newsminer", "info", "json", &buf)

	log.WithJob("job-1", "bitcoin").Info("Reading payload")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Reading payload", entry["message"])
	assert.Equal(t, "newsminer", entry["service"])
	assert.Equal(t, "job-1", entry["job_id"])
	assert.Equal(t, "bitcoin", entry["search_phrase"])
}

func TestMetrics(t *testing.T) {
	log := NewWithOutput("newsminer", "info", "text", &bytes.Buffer{})

	log.RecordJobProcessed()
	log.RecordJobSuccess(2*time.Second, 12)
	log.RecordJobProcessed()
	log.RecordJobFailure("BUSINESS")

	m := log.GetMetrics()
	assert.Equal(t, int64(2), m.JobsProcessed)
	assert.Equal(t, int64(1), m.JobsSucceeded)
	assert.Equal(t, int64(12), m.RecordsExtracted)
	assert.Equal(t, int64(1), m.FailuresByKind["BUSINESS"])
	assert.InDelta(t, 50.0, m.SuccessRate, 0.001)
	assert.Equal(t, "2s", m.AvgProcessingTime)
}
