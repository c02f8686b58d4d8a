package queue

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"github.com/tkilaker/newsminer/internal/failure"
	"github.com/tkilaker/newsminer/internal/models"
)

// Message headers set on retried and dead-lettered jobs
const (
	DefaultMaxRetries    = 3
	RetryCountHeader     = "x-retry-count"
	RetryReasonHeader    = "x-retry-reason"
	FailureKindHeader    = "x-failure-kind"
	FailureMessageHeader = "x-failure-message"
	DLQReasonHeader      = "x-dlq-reason"
)

// AMQP is a RabbitMQ backed queue with a dead letter queue per job queue
type AMQP struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	queueName  string
	dlqName    string
	dlxName    string
	maxRetries int
	log        logrus.FieldLogger
}

// DialAMQP connects to RabbitMQ and declares the job queue with its DLX and DLQ
func DialAMQP(url, queueName string, maxRetries int, log logrus.FieldLogger) (*AMQP, error) {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	q := &AMQP{
		conn:       conn,
		channel:    ch,
		queueName:  queueName,
		dlqName:    queueName + "_dlq",
		dlxName:    queueName + "_dlx",
		maxRetries: maxRetries,
		log:        log,
	}

	if err := q.setupDLQ(); err != nil {
		q.Close()
		return nil, err
	}

	return q, nil
}

// setupDLQ declares the dead letter exchange, its queue and the job queue
func (q *AMQP) setupDLQ() error {
	if err := q.channel.ExchangeDeclare(q.dlxName, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLX: %w", err)
	}

	if _, err := q.channel.QueueDeclare(q.dlqName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}

	if err := q.channel.QueueBind(q.dlqName, "", q.dlxName, false, nil); err != nil {
		return fmt.Errorf("failed to bind DLQ to DLX: %w", err)
	}

	args := amqp.Table{"x-dead-letter-exchange": q.dlxName}
	if _, err := q.channel.QueueDeclare(q.queueName, true, false, false, false, args); err != nil {
		return fmt.Errorf("failed to declare queue with DLX: %w", err)
	}

	q.log.WithFields(logrus.Fields{
		"queue": q.queueName,
		"dlq":   q.dlqName,
		"dlx":   q.dlxName,
	}).Info("DLQ setup complete")
	return nil
}

// Next fetches one message without waiting
func (q *AMQP) Next(ctx context.Context) (*Job, error) {
	msg, ok, err := q.channel.Get(q.queueName, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	if !ok {
		return nil, ErrEmpty
	}

	id, payload, payloadErr := DecodePayload(msg.Body)
	if id == "" {
		id = msg.MessageId
	}
	attempt := retryCount(msg.Headers)

	acker := &amqpAcker{queue: q, msg: msg, nonRetryable: payloadErr != nil, attempt: attempt}
	return NewJob(id, payload, payloadErr, attempt, acker), nil
}

// Publish enqueues a job as a persistent message
func (q *AMQP) Publish(ctx context.Context, job models.SearchJob) (string, error) {
	if err := job.Validate(); err != nil {
		return "", err
	}

	id := uuid.New().String()
	body, err := EncodePayload(id, job)
	if err != nil {
		return "", err
	}

	err = q.channel.Publish("", q.queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    id,
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	return id, nil
}

// Close closes the channel and the connection
func (q *AMQP) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

// failureAction is what happens to a failed message
type failureAction struct {
	retry  bool
	reason string
}

// decideFailure dead-letters business failures and undecodable payloads
// right away and retries application failures until maxRetries
func decideFailure(kind failure.Kind, nonRetryable bool, attempt, maxRetries int) failureAction {
	switch {
	case nonRetryable:
		return failureAction{reason: "non_retryable_error"}
	case kind == failure.Business:
		return failureAction{reason: "business_rule"}
	case attempt >= maxRetries:
		return failureAction{reason: "max_retries_exceeded"}
	}
	return failureAction{retry: true}
}

func retryCount(headers amqp.Table) int {
	if headers == nil {
		return 0
	}
	switch v := headers[RetryCountHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func copyHeaders(headers amqp.Table) amqp.Table {
	out := amqp.Table{}
	for k, v := range headers {
		out[k] = v
	}
	return out
}

type amqpAcker struct {
	queue        *AMQP
	msg          amqp.Delivery
	nonRetryable bool
	attempt      int
}

func (a *amqpAcker) Done(ctx context.Context) error {
	if err := a.msg.Ack(false); err != nil {
		return fmt.Errorf("failed to ack message: %w", err)
	}
	return nil
}

func (a *amqpAcker) Fail(ctx context.Context, kind failure.Kind, message string) error {
	action := decideFailure(kind, a.nonRetryable, a.attempt, a.queue.maxRetries)

	headers := copyHeaders(a.msg.Headers)
	headers[FailureKindHeader] = string(kind)
	headers[FailureMessageHeader] = message

	exchange, key := a.queue.dlxName, ""
	if action.retry {
		headers[RetryCountHeader] = int32(a.attempt + 1)
		headers[RetryReasonHeader] = message
		exchange, key = "", a.queue.queueName
		a.queue.log.WithFields(logrus.Fields{
			"retry": a.attempt + 1,
			"max":   a.queue.maxRetries,
		}).Warn("Requeuing failed job")
	} else {
		headers[RetryCountHeader] = int32(a.attempt)
		headers[DLQReasonHeader] = action.reason
		a.queue.log.WithField("reason", action.reason).Warn("Sending failed job to DLQ")
	}

	err := a.queue.channel.Publish(exchange, key, false, false, amqp.Publishing{
		ContentType:  a.msg.ContentType,
		MessageId:    a.msg.MessageId,
		Body:         a.msg.Body,
		Headers:      headers,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		// Let the broker dead-letter the original
		a.msg.Nack(false, false)
		return fmt.Errorf("failed to republish failed job: %w", err)
	}

	if err := a.msg.Ack(false); err != nil {
		return fmt.Errorf("failed to ack message: %w", err)
	}
	return nil
}
