package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"scribe/internal/logging"
)

// ErrQueueCleared is returned to waiters dropped by Clear.
var ErrQueueCleared = errors.New("dispatch queue cleared")

// Task is the unit of work run while holding a slot.
type Task func(ctx context.Context) error

// Status is a point-in-time snapshot of the dispatcher.
type Status struct {
	Active        int `json:"active"`
	Queued        int `json:"queued"`
	MaxConcurrent int `json:"max_concurrent"`
	Processed     int `json:"processed"`
	Failed        int `json:"failed"`
	Total         int `json:"total"`
}

type waiter struct {
	id      string
	added   time.Time
	ready   chan struct{}
	granted bool
	err     error
}

// Dispatcher runs tasks with bounded concurrency in FIFO order.
type Dispatcher struct {
	logger *slog.Logger

	mu        sync.Mutex
	max       int
	active    int
	queue     []*waiter
	processed int
	failed    int
}

// New constructs a dispatcher. maxConcurrent below 1 is treated as 1.
func New(maxConcurrent int, logger *slog.Logger) *Dispatcher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dispatcher{
		logger: logging.NewComponentLogger(logger, "dispatch"),
		max:    maxConcurrent,
	}
}

// Do blocks until a slot is free, runs task, and returns its error. When ctx
// ends before a slot is granted the waiter leaves the queue and ctx.Err() is
// returned without running task.
func (d *Dispatcher) Do(ctx context.Context, id string, task Task) error {
	if task == nil {
		return errors.New("dispatch: nil task")
	}
	w := &waiter{id: id, added: time.Now(), ready: make(chan struct{})}

	d.mu.Lock()
	d.queue = append(d.queue, w)
	queued := len(d.queue)
	d.promoteLocked()
	d.mu.Unlock()

	d.logger.Debug("task queued", logging.String("task_id", id), logging.Int("queue_length", queued))

	select {
	case <-w.ready:
	case <-ctx.Done():
		d.mu.Lock()
		if w.granted {
			d.active--
			d.promoteLocked()
		} else if w.err == nil {
			d.removeLocked(w)
		}
		err := w.err
		d.mu.Unlock()
		if err != nil {
			return err
		}
		return ctx.Err()
	}
	if w.err != nil {
		return w.err
	}

	wait := time.Since(w.added)
	d.logger.Info("task started",
		logging.String("task_id", id),
		logging.Duration("wait", wait),
	)

	start := time.Now()
	err := d.run(ctx, task)
	elapsed := time.Since(start)

	d.mu.Lock()
	d.active--
	if err != nil {
		d.failed++
	} else {
		d.processed++
	}
	processed, failed := d.processed, d.failed
	d.promoteLocked()
	d.mu.Unlock()

	if err != nil {
		d.logger.Info("task failed",
			logging.String("task_id", id),
			logging.Duration("elapsed", elapsed),
			logging.Error(err),
			logging.Int("failed_total", failed),
		)
		return err
	}
	d.logger.Info("task completed",
		logging.String("task_id", id),
		logging.Duration("elapsed", elapsed),
		logging.Int("processed_total", processed),
	)
	return nil
}

func (d *Dispatcher) run(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch: task panic: %v", r)
		}
	}()
	return task(ctx)
}

// Status returns a snapshot of the counters.
func (d *Dispatcher) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Status{
		Active:        d.active,
		Queued:        len(d.queue),
		MaxConcurrent: d.max,
		Processed:     d.processed,
		Failed:        d.failed,
		Total:         d.processed + d.failed + d.active + len(d.queue),
	}
}

// SetMaxConcurrent changes the slot count. Values below 1 are rejected.
// Raising the limit admits queued waiters immediately.
func (d *Dispatcher) SetMaxConcurrent(max int) error {
	if max < 1 {
		return fmt.Errorf("dispatch: max concurrent must be at least 1, got %d", max)
	}
	d.mu.Lock()
	previous := d.max
	d.max = max
	d.promoteLocked()
	d.mu.Unlock()
	d.logger.Info("max concurrent changed", logging.Int("from", previous), logging.Int("to", max))
	return nil
}

// Clear drops every queued waiter with ErrQueueCleared and returns how many
// were dropped. Running tasks are unaffected.
func (d *Dispatcher) Clear() int {
	d.mu.Lock()
	dropped := d.queue
	d.queue = nil
	for _, w := range dropped {
		w.err = ErrQueueCleared
		close(w.ready)
	}
	d.mu.Unlock()
	if len(dropped) > 0 {
		d.logger.Info("queue cleared", logging.Int("cleared", len(dropped)))
	}
	return len(dropped)
}

// ResetStats zeroes the processed and failed counters.
func (d *Dispatcher) ResetStats() {
	d.mu.Lock()
	d.processed = 0
	d.failed = 0
	d.mu.Unlock()
}

func (d *Dispatcher) promoteLocked() {
	for d.active < d.max && len(d.queue) > 0 {
		w := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		w.granted = true
		d.active++
		close(w.ready)
	}
}

func (d *Dispatcher) removeLocked(target *waiter) {
	for i, w := range d.queue {
		if w == target {
			d.queue = append(d.queue[:i], d.queue[i+1:]...)
			return
		}
	}
}
