package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueAlerts is the Redis list key for low-stock alert jobs.
	QueueAlerts = "worker:alerts"
	// QueueDLQ receives jobs that exhausted their retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is how many attempts a job gets before the DLQ.
	MaxRetries = 3
	// RetryBackoff is the pause the worker takes after a failed attempt.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeLowStockAlert JobType = "low_stock_alert"
)

// LowStockAlertPayload carries the stock state observed at enqueue time.
// The worker treats it as a hint and re-checks current stock before
// notifying, so a restock between enqueue and delivery cancels the alert.
type LowStockAlertPayload struct {
	ProductID      uuid.UUID `json:"product_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	ProductName    string    `json:"product_name"`
	SKU            string    `json:"sku"`
	QuantityOnHand int       `json:"quantity_on_hand"`
	Threshold      int       `json:"threshold"`
}

// Job is the envelope stored on the Redis list.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue moves jobs between the API and the worker over a Redis list.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// EnqueueLowStockAlert wraps the payload in a fresh job envelope and pushes
// it onto the alert queue.
func (q *Queue) EnqueueLowStockAlert(ctx context.Context, payload LowStockAlertPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.NewString(),
		Type:      JobTypeLowStockAlert,
		Payload:   body,
		CreatedAt: time.Now(),
	}
	if err := q.push(ctx, QueueAlerts, job); err != nil {
		return err
	}
	q.logger.Debug("low-stock alert enqueued",
		zap.String("job_id", job.ID),
		zap.String("product_id", payload.ProductID.String()),
		zap.Int("quantity_on_hand", payload.QuantityOnHand))
	return nil
}

// Dequeue blocks until a job arrives or ctx is cancelled. A nil job with a
// nil error means the read produced nothing usable; callers loop.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	res, err := q.client.BLPop(ctx, 0, QueueAlerts).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	// BLPop returns [key, value].
	if len(res) != 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		q.logger.Warn("dropping undecodable job", zap.String("raw", res[1]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// Retry re-queues a failed job with its attempt counter bumped; once the
// counter reaches MaxRetries the job lands on the DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	if job.Attempt >= MaxRetries {
		if err := q.push(ctx, QueueDLQ, *job); err != nil {
			q.logger.Error("dead-letter push failed", zap.String("job_id", job.ID), zap.Error(err))
			return err
		}
		q.logger.Warn("job dead-lettered", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.push(ctx, QueueAlerts, *job); err != nil {
		return err
	}
	q.logger.Info("job requeued", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

func (q *Queue) push(ctx context.Context, key string, job Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", key, err)
	}
	return nil
}
