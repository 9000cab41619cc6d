// Package tasks runs long provider and saver operations off the request
// path. Tasks report progress through a callback; the runner records the
// last value, broadcasts updates over the websocket hub and reduces every
// ending to one of ok, cancelled or failed.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pkathuria/comicden/internal/errs"
	"github.com/pkathuria/comicden/internal/models"
	"github.com/pkathuria/comicden/internal/websocket"
)

type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

const (
	StatusQueued  = "queued"
	StatusRunning = "running"
)

// Fn is one unit of long work. It must honor ctx and may call progress at
// every suspension point.
type Fn func(ctx context.Context, progress models.ProgressFn) error

// Task is the observable state of one submitted operation.
type Task struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Status   string    `json:"status"`
	Progress int       `json:"progress"`
	Message  string    `json:"message"`
	Error    string    `json:"error,omitempty"`
	Started  time.Time `json:"started,omitempty"`
	Ended    time.Time `json:"ended,omitempty"`

	cancel context.CancelFunc
	done   chan struct{}
}

type work struct {
	task *Task
	fn   Fn
}

// Runner hosts two executors: a queue for ordinary tasks and a dedicated
// serial lane for providers that cannot run threaded (the headless browser
// driver is not re-entrant). Each lane runs one task at a time; user tasks
// never run in parallel against the same library.
type Runner struct {
	hub *websocket.Hub

	mu    sync.Mutex
	tasks map[string]*Task
	order []string

	queue  chan *work
	serial chan *work
}

func NewRunner(hub *websocket.Hub) *Runner {
	r := &Runner{
		hub:    hub,
		tasks:  make(map[string]*Task),
		queue:  make(chan *work, 64),
		serial: make(chan *work, 64),
	}
	go r.worker(r.queue)
	go r.worker(r.serial)
	return r
}

// Submit queues fn. serialExec routes it to the dedicated single-threaded
// lane; providers advertise this through their UsesThreading flag.
func (r *Runner) Submit(name string, serialExec bool, fn Fn) (*Task, error) {
	ctx, cancel := context.WithCancel(context.Background())
	task := &Task{
		ID:     uuid.NewString(),
		Name:   name,
		Status: StatusQueued,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	r.mu.Lock()
	r.tasks[task.ID] = task
	r.order = append(r.order, task.ID)
	r.mu.Unlock()

	w := &work{task: task, fn: func(_ context.Context, progress models.ProgressFn) error {
		return fn(ctx, progress)
	}}

	lane := r.queue
	if serialExec {
		lane = r.serial
	}
	select {
	case lane <- w:
		return task, nil
	default:
		r.finish(task, OutcomeFailed, fmt.Errorf("task queue is full"))
		return nil, errs.New(errs.KindPermanent, "task queue is full")
	}
}

func (r *Runner) worker(lane chan *work) {
	for w := range lane {
		r.run(w)
	}
}

func (r *Runner) run(w *work) {
	task := w.task

	r.mu.Lock()
	task.Status = StatusRunning
	task.Started = time.Now()
	r.mu.Unlock()
	r.publish(task, false)

	progress := func(pct int, message string) {
		r.mu.Lock()
		// Progress never moves backward in the UI even if phases overlap.
		if pct > task.Progress {
			task.Progress = pct
		}
		task.Message = message
		r.mu.Unlock()
		r.publish(task, false)
	}

	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Str("task", task.Name).Msg("task panicked")
				err = fmt.Errorf("task panicked: %v", rec)
			}
		}()
		return w.fn(context.Background(), progress)
	}()

	switch {
	case err == nil:
		r.finish(task, OutcomeOK, nil)
	case errs.KindOf(err) == errs.KindCancelled || errors.Is(err, context.Canceled):
		r.finish(task, OutcomeCancelled, err)
	default:
		r.finish(task, OutcomeFailed, err)
	}
}

func (r *Runner) finish(task *Task, outcome Outcome, err error) {
	r.mu.Lock()
	task.Status = string(outcome)
	task.Ended = time.Now()
	if err != nil {
		task.Error = err.Error()
		log.Warn().Err(err).Str("task", task.Name).Str("outcome", string(outcome)).Msg("task ended")
	}
	if outcome == OutcomeOK {
		task.Progress = 100
	}
	r.mu.Unlock()

	close(task.done)
	r.publish(task, true)
}

func (r *Runner) publish(task *Task, done bool) {
	if r.hub == nil {
		return
	}
	r.mu.Lock()
	update := models.ProgressUpdate{
		TaskID:   task.ID,
		Message:  task.Message,
		Progress: float64(task.Progress),
		Status:   task.Status,
		Done:     done,
	}
	r.mu.Unlock()
	r.hub.BroadcastJSON(update)
}

// Cancel requests cooperative cancellation of a task.
func (r *Runner) Cancel(id string) error {
	r.mu.Lock()
	task, ok := r.tasks[id]
	r.mu.Unlock()
	if !ok {
		return errs.New(errs.KindPermanent, "unknown task %q", id)
	}
	task.cancel()
	return nil
}

// Wait blocks until a task ends, for callers that need the outcome.
func (r *Runner) Wait(id string) (Outcome, error) {
	r.mu.Lock()
	task, ok := r.tasks[id]
	r.mu.Unlock()
	if !ok {
		return "", errs.New(errs.KindPermanent, "unknown task %q", id)
	}
	<-task.done

	r.mu.Lock()
	defer r.mu.Unlock()
	return Outcome(task.Status), nil
}

// Get returns a snapshot of one task.
func (r *Runner) Get(id string) (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

// List returns snapshots of every task in submission order.
func (r *Runner) List() []Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Task, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.tasks[id])
	}
	return out
}
