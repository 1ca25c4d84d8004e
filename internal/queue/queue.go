// Package queue adapts the teacher's Redis job queue into a progress
// pub/sub channel and startup job-recovery helper for the video
// pipeline (spec.md §5 "in-process job table with Redis-backed
// progress events" and §7 "jobs left running/pending across a restart
// are requeued").
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"spiralmem/internal/store"
)

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// ProgressEvent is one job-progress update the pipeline broadcasts to
// subscribers (any CLI or MCP client watching a single job).
type ProgressEvent struct {
	JobID     string          `json:"job_id"`
	Status    store.JobStatus `json:"status"`
	Progress  int             `json:"progress"`
	Step      string          `json:"step,omitempty"`
	Message   string          `json:"message,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// channelName returns the pub/sub channel used for a given job.
func channelName(jobID string) string {
	return fmt.Sprintf("spiralmem:job:%s:progress", jobID)
}

// Queue wraps a Redis client for progress pub/sub, separate from the
// durable job table that lives in internal/store.
type Queue struct {
	client *redis.Client
}

// New connects to Redis and verifies reachability with a ping, same
// contract as the teacher's NewQueue.
func New(cfg Config) (*Queue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Queue{client: client}, nil
}

// PublishProgress broadcasts a progress event for a job. Publish
// failures are non-fatal to the caller: progress events are
// best-effort telemetry, not the system of record (the job table in
// internal/store is authoritative).
func (q *Queue) PublishProgress(ctx context.Context, ev ProgressEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal progress event: %w", err)
	}
	return q.client.Publish(ctx, channelName(ev.JobID), payload).Err()
}

// Subscribe streams progress events for a single job until ctx is
// cancelled. The returned channel is closed when the subscription
// ends.
func (q *Queue) Subscribe(ctx context.Context, jobID string) (<-chan ProgressEvent, error) {
	sub := q.client.Subscribe(ctx, channelName(jobID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe to job %s: %w", jobID, err)
	}

	out := make(chan ProgressEvent)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev ProgressEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// RecoverStaleJobs handles every job left in pending or processing
// status by a previous process that exited mid-run, per spec.md §7's
// restart-recovery contract. It marks each as failed with a
// recoverable error message and returns them so the caller (buildApp
// at CLI startup) can decide whether to resubmit them; nothing is
// requeued automatically.
func RecoverStaleJobs(s *store.Store) ([]store.VideoProcessingJob, error) {
	var stale []store.VideoProcessingJob
	for _, status := range []store.JobStatus{store.JobStatusPending, store.JobStatusProcessing} {
		jobs, err := s.ListJobsByStatus(status)
		if err != nil {
			return nil, err
		}
		stale = append(stale, jobs...)
	}

	for _, j := range stale {
		if err := s.UpdateJobStatus(j.ID, store.JobStatusFailed, nil, "interrupted by process restart; requeue to retry"); err != nil {
			return nil, err
		}
	}
	return stale, nil
}

// Close releases the underlying Redis connection.
func (q *Queue) Close() error {
	return q.client.Close()
}
