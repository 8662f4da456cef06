// Package dispatch runs asynchronous session work on per-session FIFO lanes.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/docchat/internal/types"
)

// laneSize is the number of jobs a session lane buffers.
const laneSize = 100

var (
	ErrNotStarted = errors.New("queue not started")
	ErrStopped    = errors.New("queue stopped")
)

// Queue manages per-session lanes with a global concurrency semaphore.
// Jobs within a session run one at a time in enqueue order; the semaphore
// bounds how many sessions make progress at once.
type Queue struct {
	lanes     map[types.SessionID]chan *Job
	semaphore *semaphore.Weighted
	pending   atomic.Int64
	stopped   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewQueue creates a Queue that allows up to maxConcurrent jobs to execute
// simultaneously across all session lanes.
func NewQueue(maxConcurrent int64) *Queue {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Queue{
		lanes:     make(map[types.SessionID]chan *Job),
		semaphore: semaphore.NewWeighted(maxConcurrent),
	}
}

// Start initialises the queue's context. Must be called before Enqueue.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop cancels the queue context, closes all lanes, and waits for in-flight
// jobs to finish. Jobs still queued are discarded.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	if q.cancel != nil {
		q.cancel()
	}
	for _, lane := range q.lanes {
		close(lane)
	}
	q.mu.Unlock()
	q.wg.Wait()
	q.pending.Store(0)
}

// Enqueue adds a Job to the session's lane, creating the lane (and its
// goroutine) on first use. Returns an error if the lane's buffer is full.
func (q *Queue) Enqueue(job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return ErrStopped
	}
	if q.ctx == nil {
		return ErrNotStarted
	}

	lane, exists := q.lanes[job.SessionID]
	if !exists {
		lane = make(chan *Job, laneSize)
		q.lanes[job.SessionID] = lane
		q.wg.Add(1)
		go q.processLane(job.SessionID, lane)
	}

	q.pending.Add(1)
	select {
	case lane <- job:
		return nil
	default:
		q.pending.Add(-1)
		return fmt.Errorf("queue full for session %s", job.SessionID)
	}
}

// processLane drains a single session lane, acquiring a semaphore slot
// before running each job synchronously. The goroutine exits once the lane
// is empty; the next Enqueue for the session starts a fresh one.
func (q *Queue) processLane(id types.SessionID, lane chan *Job) {
	defer q.wg.Done()
	for {
		select {
		case job, ok := <-lane:
			if !ok {
				return
			}
			if err := q.semaphore.Acquire(q.ctx, 1); err != nil {
				q.pending.Add(-1)
				return
			}
			q.run(job)
			q.semaphore.Release(1)
			retired := q.retire(id, lane)
			q.pending.Add(-1)
			if retired {
				return
			}
		case <-q.ctx.Done():
			return
		}
	}
}

// retire removes lane from the map if nothing is queued on it. Enqueue sends
// under the same lock, so an empty lane cannot receive a job afterwards.
func (q *Queue) retire(id types.SessionID, lane chan *Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(lane) > 0 {
		return false
	}
	if q.lanes[id] == lane {
		delete(q.lanes, id)
	}
	return true
}

// Lanes returns the number of sessions with a live lane.
func (q *Queue) Lanes() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lanes)
}

func (q *Queue) run(job *Job) {
	if job.Run == nil {
		return
	}
	start := time.Now()
	if err := job.Run(q.ctx); err != nil {
		slog.Error("job failed", "job_id", string(job.ID), "session_id", string(job.SessionID), "kind", string(job.Kind), "error", err)
		return
	}
	slog.Debug("job complete", "job_id", string(job.ID), "session_id", string(job.SessionID), "kind", string(job.Kind), "duration", time.Since(start))
}

// Pending returns the number of jobs queued or running.
func (q *Queue) Pending() int64 {
	return q.pending.Load()
}

// WaitIdle blocks until no jobs are queued or running, or the timeout
// expires. Returns true if idle, false if timed out.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if q.pending.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(10 * time.Millisecond):
		}
	}
}
