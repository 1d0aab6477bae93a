// Package worker delivers notification emails from the durable queue. The
// queue guarantees at-least-once delivery, so the worker loads the database
// record by id and short-circuits when it was already sent.
package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/olamidemziyad/marketplace-cmr/domain"
	"github.com/olamidemziyad/marketplace-cmr/internal/queue"
)

const DefaultConcurrency = 5

// NotificationStore is the slice of the repository the worker needs.
type NotificationStore interface {
	GetNotification(ctx context.Context, id string) (*domain.Notification, error)
	MarkEmailSent(ctx context.Context, id string) error
	MarkEmailFailed(ctx context.Context, id string) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

type Pool struct {
	queue       *queue.Queue
	store       NotificationStore
	mailer      Mailer
	concurrency int

	// sleep is swappable so tests do not wait out real backoff.
	sleep func(time.Duration)
}

func NewPool(q *queue.Queue, store NotificationStore, mailer Mailer, concurrency int) *Pool {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Pool{
		queue:       q,
		store:       store,
		mailer:      mailer,
		concurrency: concurrency,
		sleep:       time.Sleep,
	}
}

// Run consumes jobs with a bounded set of workers until the context is
// cancelled. Cross-notification ordering is not guaranteed.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				job, err := p.queue.Dequeue(ctx, 5*time.Second)
				if err != nil {
					if ctx.Err() == nil {
						log.Printf("dequeue failed: %v", err)
						// Redis outages would otherwise spin this loop hot.
						p.sleep(time.Second)
					}
					continue
				}
				if job == nil {
					continue
				}
				p.handle(ctx, *job)
			}
		}()
	}
	wg.Wait()
}

func (p *Pool) handle(ctx context.Context, job queue.Job) {
	if err := p.Process(ctx, job); err != nil {
		log.Printf("notification %s attempt %d failed: %v", job.NotificationID, job.Attempt+1, err)
		p.retry(ctx, job, err)
	}
}

// Process performs one delivery attempt. A record already marked sent is a
// no-op, which bounds duplicate sends under queue replays.
func (p *Pool) Process(ctx context.Context, job queue.Job) error {
	notification, err := p.store.GetNotification(ctx, job.NotificationID)
	if err != nil {
		return err
	}
	if notification.EmailStatus == domain.EmailStatusSent {
		return nil
	}

	user, err := p.store.GetUser(ctx, notification.UserID)
	if err != nil {
		return err
	}
	if user.Email == "" {
		return fmt.Errorf("user %s has no email address", user.ID)
	}

	subject, body := render(notification, user)
	if err := p.mailer.Send(ctx, user.Email, subject, body); err != nil {
		return err
	}

	return p.store.MarkEmailSent(ctx, notification.ID)
}

// retry re-enqueues with exponential backoff; once attempts are exhausted
// the job is parked, not dropped, and the record is marked failed.
func (p *Pool) retry(ctx context.Context, job queue.Job, cause error) {
	job.Attempt++
	if job.Attempt >= p.queue.MaxAttempts() {
		if err := p.queue.Park(ctx, job, cause.Error()); err != nil {
			log.Printf("failed to park notification %s: %v", job.NotificationID, err)
		}
		if err := p.store.MarkEmailFailed(ctx, job.NotificationID); err != nil {
			log.Printf("failed to mark notification %s failed: %v", job.NotificationID, err)
		}
		return
	}

	p.sleep(p.queue.Backoff(job.Attempt - 1))
	if err := p.queue.Requeue(ctx, job); err != nil {
		log.Printf("failed to requeue notification %s: %v", job.NotificationID, err)
	}
}
