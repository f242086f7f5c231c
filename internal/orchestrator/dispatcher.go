package orchestrator

import (
	"context"
	"sync"
)

// job is one inbound message waiting for its user's worker.
type job func(ctx context.Context)

// userQueue is the FIFO of one user. A queue exists only while its worker
// is running.
type userQueue struct {
	jobs []job
}

// Dispatcher runs jobs of one user strictly in arrival order and jobs of
// different users concurrently. Each busy user has one worker goroutine,
// which exits when the queue drains.
type Dispatcher struct {
	mu     sync.Mutex
	queues map[string]*userQueue
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{queues: make(map[string]*userQueue)}
}

// Submit queues fn behind every earlier job for userID.
func (d *Dispatcher) Submit(ctx context.Context, userID string, fn job) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if q, ok := d.queues[userID]; ok {
		q.jobs = append(q.jobs, fn)
		return
	}

	q := &userQueue{jobs: []job{fn}}
	d.queues[userID] = q
	d.wg.Add(1)
	go d.run(ctx, userID, q)
}

func (d *Dispatcher) run(ctx context.Context, userID string, q *userQueue) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		if len(q.jobs) == 0 {
			delete(d.queues, userID)
			d.mu.Unlock()
			return
		}
		next := q.jobs[0]
		q.jobs[0] = nil
		q.jobs = q.jobs[1:]
		d.mu.Unlock()

		next(ctx)
	}
}

// Pending returns the number of queued jobs for userID, not counting the
// one running.
func (d *Dispatcher) Pending(userID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if q, ok := d.queues[userID]; ok {
		return len(q.jobs)
	}
	return 0
}

// Wait blocks until every worker has drained its queue.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
