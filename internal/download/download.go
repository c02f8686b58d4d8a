// Package download fetches remote files with retries.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// ErrUnexpectedStatusCode indicates an HTTP response with unexpected status.
var ErrUnexpectedStatusCode = errors.New("unexpected status code")

// RetryPolicy defines retry behavior.
type RetryPolicy struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultRetryPolicy returns three attempts with exponential backoff
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Delay returns the wait before the attempt following attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 || p.InitialDelay <= 0 {
		return 0
	}
	multiplier := p.BackoffMultiplier
	if multiplier < 1 {
		multiplier = 1
	}
	delay := time.Duration(float64(p.InitialDelay) * math.Pow(multiplier, float64(attempt-1)))
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Downloader stores remote files on disk
type Downloader struct {
	client *http.Client
	policy RetryPolicy
}

// New creates a downloader with the given request timeout and retry policy
func New(timeout time.Duration, policy RetryPolicy) *Downloader {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Downloader{
		client: &http.Client{Timeout: timeout},
		policy: policy,
	}
}

// Download fetches url into dest, overwriting any existing file
func (d *Downloader) Download(ctx context.Context, url, dest string) error {
	var lastErr error

	for attempt := 1; attempt <= d.policy.MaxAttempts; attempt++ {
		retry, err := d.fetch(ctx, url, dest)
		if err == nil {
			return nil
		}
		lastErr = fmt.Errorf("download failed (attempt %d/%d): %w", attempt, d.policy.MaxAttempts, err)

		if !retry || attempt == d.policy.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.policy.Delay(attempt)):
		}
	}

	return lastErr
}

// fetch performs one attempt and reports whether a failure may be retried
func (d *Downloader) fetch(ctx context.Context, url, dest string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")

	resp, err := d.client.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return isRetryableStatus(resp.StatusCode), fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return false, fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to a sibling temp file so a broken transfer never leaves a
	// truncated image behind
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return false, fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return true, fmt.Errorf("failed to read response body: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return false, fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return false, fmt.Errorf("failed to move file into place: %w", err)
	}

	return false, nil
}

// isRetryableStatus determines if we should retry based on HTTP status code.
func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusTooManyRequests,
		http.StatusRequestTimeout:
		return true
	}
	return false
}
