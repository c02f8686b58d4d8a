// Package logger wraps logrus with the service fields and job metrics used by
// the worker.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is a logrus logger tagged with the service name
type Logger struct {
	*logrus.Logger
	serviceName string
	metrics     *Metrics
}

// Metrics keeps job counters in memory
type Metrics struct {
	mu                  sync.RWMutex
	jobsProcessed       int64
	jobsSucceeded       int64
	jobsFailed          int64
	recordsExtracted    int64
	processingTimeTotal time.Duration
	processingTimeCount int64
	failuresByKind      map[string]int64
	startTime           time.Time
}

// New creates a logger writing to stdout. format is "json" or "text".
func New(serviceName, level, format string) *Logger {
	return NewWithOutput(serviceName, level, format, os.Stdout)
}

// NewWithOutput creates a logger writing to out
func NewWithOutput(serviceName, level, format string, out io.Writer) *Logger {
	log := logrus.New()

	if strings.EqualFold(format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	log.SetLevel(ParseLevel(level))
	log.SetOutput(out)

	return &Logger{
		Logger:      log,
		serviceName: serviceName,
		metrics:     newMetrics(),
	}
}

// ParseLevel maps a level name to a logrus level, defaulting to info
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Service returns an entry carrying only the service field
func (l *Logger) Service() *logrus.Entry {
	return l.WithField("service", l.serviceName)
}

// WithJob adds the job identifiers to the log context
func (l *Logger) WithJob(jobID, searchPhrase string) *logrus.Entry {
	return l.WithFields(logrus.Fields{
		"service":       l.serviceName,
		"job_id":        jobID,
		"search_phrase": searchPhrase,
	})
}

func newMetrics() *Metrics {
	return &Metrics{
		failuresByKind: make(map[string]int64),
		startTime:      time.Now(),
	}
}

// RecordJobProcessed counts a job taken from the queue
func (l *Logger) RecordJobProcessed() {
	l.metrics.mu.Lock()
	defer l.metrics.mu.Unlock()
	l.metrics.jobsProcessed++
}

// RecordJobSuccess counts a finished job and its records
func (l *Logger) RecordJobSuccess(duration time.Duration, records int) {
	l.metrics.mu.Lock()
	defer l.metrics.mu.Unlock()
	l.metrics.jobsSucceeded++
	l.metrics.recordsExtracted += int64(records)
	l.metrics.processingTimeTotal += duration
	l.metrics.processingTimeCount++
}

// RecordJobFailure counts a failed job by kind
func (l *Logger) RecordJobFailure(kind string) {
	l.metrics.mu.Lock()
	defer l.metrics.mu.Unlock()
	l.metrics.jobsFailed++
	l.metrics.failuresByKind[kind]++
}

// MetricsSnapshot is a point-in-time copy of the counters
type MetricsSnapshot struct {
	Service           string           `json:"service"`
	Uptime            string           `json:"uptime"`
	JobsProcessed     int64            `json:"jobs_processed"`
	JobsSucceeded     int64            `json:"jobs_succeeded"`
	JobsFailed        int64            `json:"jobs_failed"`
	RecordsExtracted  int64            `json:"records_extracted"`
	AvgProcessingTime string           `json:"avg_processing_time"`
	FailuresByKind    map[string]int64 `json:"failures_by_kind"`
	SuccessRate       float64          `json:"success_rate_percent"`
}

// GetMetrics returns a snapshot of the counters
func (l *Logger) GetMetrics() MetricsSnapshot {
	l.metrics.mu.RLock()
	defer l.metrics.mu.RUnlock()

	var avg time.Duration
	if l.metrics.processingTimeCount > 0 {
		avg = l.metrics.processingTimeTotal / time.Duration(l.metrics.processingTimeCount)
	}

	failures := make(map[string]int64, len(l.metrics.failuresByKind))
	for k, v := range l.metrics.failuresByKind {
		failures[k] = v
	}

	var rate float64
	if l.metrics.jobsProcessed > 0 {
		rate = float64(l.metrics.jobsSucceeded) / float64(l.metrics.jobsProcessed) * 100
	}

	return MetricsSnapshot{
		Service:           l.serviceName,
		Uptime:            time.Since(l.metrics.startTime).String(),
		JobsProcessed:     l.metrics.jobsProcessed,
		JobsSucceeded:     l.metrics.jobsSucceeded,
		JobsFailed:        l.metrics.jobsFailed,
		RecordsExtracted:  l.metrics.recordsExtracted,
		AvgProcessingTime: avg.String(),
		FailuresByKind:    failures,
		SuccessRate:       rate,
	}
}

// LogMetrics writes the current counters at info level
func (l *Logger) LogMetrics() {
	m := l.GetMetrics()
	l.Service().WithFields(logrus.Fields{
		"uptime":              m.Uptime,
		"jobs_processed":      m.JobsProcessed,
		"jobs_succeeded":      m.JobsSucceeded,
		"jobs_failed":         m.JobsFailed,
		"records_extracted":   m.RecordsExtracted,
		"avg_processing_time": m.AvgProcessingTime,
		"success_rate":        m.SuccessRate,
		"failures_by_kind":    m.FailuresByKind,
	}).Info("Metrics snapshot")
}
