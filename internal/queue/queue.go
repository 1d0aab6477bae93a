// Package queue is the durable job queue behind notification delivery.
// Jobs carry only a notification id; the database row stays the unit of
// truth. Delivery is at-least-once, so consumers must be idempotent.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	jobsKey   = "notifications:jobs"
	parkedKey = "notifications:parked"

	// DefaultMaxAttempts bounds retries before a job is parked.
	DefaultMaxAttempts = 3
	// DefaultBackoff is the base of the exponential retry delay.
	DefaultBackoff = 2 * time.Second
)

// Job is what travels through Redis: the notification id plus how many
// delivery attempts already happened.
type Job struct {
	NotificationID string `json:"notification_id"`
	Attempt        int    `json:"attempt"`
}

type ParkedJob struct {
	Job
	Reason   string    `json:"reason"`
	ParkedAt time.Time `json:"parked_at"`
}

type Queue struct {
	client      *redis.Client
	maxAttempts int
	baseBackoff time.Duration
}

func NewQueue(client *redis.Client) *Queue {
	return &Queue{
		client:      client,
		maxAttempts: DefaultMaxAttempts,
		baseBackoff: DefaultBackoff,
	}
}

// Enqueue pushes a fresh delivery job for the notification id.
func (q *Queue) Enqueue(ctx context.Context, notificationID string) error {
	return q.push(ctx, Job{NotificationID: notificationID, Attempt: 0})
}

// Requeue pushes a job back after a failed attempt, with the attempt counter
// already incremented by the caller.
func (q *Queue) Requeue(ctx context.Context, job Job) error {
	return q.push(ctx, job)
}

func (q *Queue) push(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, jobsKey, body).Err(); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next job. A nil job with nil error
// means the wait timed out.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := q.client.BLPop(ctx, timeout, jobsKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue job: %w", err)
	}
	// BLPop returns [key, value].
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}

// Park moves an exhausted job to the dead list for manual inspection instead
// of dropping it.
func (q *Queue) Park(ctx context.Context, job Job, reason string) error {
	body, err := json.Marshal(ParkedJob{Job: job, Reason: reason, ParkedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal parked job: %w", err)
	}
	if err := q.client.RPush(ctx, parkedKey, body).Err(); err != nil {
		return fmt.Errorf("park job: %w", err)
	}
	return nil
}

// ParkedCount reports how many jobs await manual inspection.
func (q *Queue) ParkedCount(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, parkedKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count parked jobs: %w", err)
	}
	return n, nil
}

// MaxAttempts is the retry bound before parking.
func (q *Queue) MaxAttempts() int {
	return q.maxAttempts
}

// Backoff returns the delay before the given (zero-based) retry attempt.
func (q *Queue) Backoff(attempt int) time.Duration {
	d := q.baseBackoff
	for i := 0; i < attempt; i++ {
		d *= 2
	}
	return d
}
