package queue

import (
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"

	"github.com/tkilaker/newsminer/internal/failure"
)

func TestDecideFailure(t *testing.T) {
	tests := []struct {
		name         string
		kind         failure.Kind
		nonRetryable bool
		attempt      int
		want         failureAction
	}{
		{"application retries", failure.Application, false, 0, failureAction{retry: true}},
		{"application last retry", failure.Application, false, 2, failureAction{retry: true}},
		{"application exhausted", failure.Application, false, 3, failureAction{reason: "max_retries_exceeded"}},
		{"business goes to dlq", failure.Business, false, 0, failureAction{reason: "business_rule"}},
		{"bad payload goes to dlq", failure.Application, true, 0, failureAction{reason: "non_retryable_error"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decideFailure(tt.kind, tt.nonRetryable, tt.attempt, 3))
		})
	}
}

func TestRetryCount(t *testing.T) {
	assert.Zero(t, retryCount(nil))
	assert.Equal(t, 2, retryCount(amqp.Table{RetryCountHeader: int32(2)}))
	assert.Equal(t, 4, retryCount(amqp.Table{RetryCountHeader: int64(4)}))
	assert.Zero(t, retryCount(amqp.Table{RetryCountHeader: "3"}))
}

func TestCopyHeaders(t *testing.T) {
	orig := amqp.Table{"a": "b"}
	cp := copyHeaders(orig)
	cp["c"] = "d"

	assert.Len(t, orig, 1)
	assert.Equal(t, "b", cp["a"])
	assert.NotNil(t, copyHeaders(nil))
}
