package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"bindery/internal/logging"
)

// Task is a named periodic unit of work.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Status is a point-in-time view of one registered task.
type Status struct {
	Name     string
	Interval time.Duration
	NextRun  time.Time
	LastRun  time.Time
	LastErr  string
	Running  bool
	Runs     int
}

type entry struct {
	task    Task
	nextRun time.Time
	lastRun time.Time
	lastErr error
	running bool
	runs    int
}

// Registry dispatches registered tasks in next-run order. A task whose
// previous invocation is still running is skipped for that tick rather than
// overlapped, and a panicking task is recovered and recorded instead of
// taking the dispatch loop down.
type Registry struct {
	logger *slog.Logger

	mu      sync.Mutex
	tasks   map[string]*entry
	started bool

	wake   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRegistry constructs an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Registry{
		logger: logging.WithComponent(logger, "schedule"),
		tasks:  make(map[string]*entry),
		wake:   make(chan struct{}, 1),
	}
}

// Register adds a task or replaces the existing one with the same name.
// Re-registering reschedules the task one full interval out; it never queues
// a duplicate.
func (r *Registry) Register(task Task) error {
	if task.Name == "" {
		return fmt.Errorf("task name required")
	}
	if task.Run == nil {
		return fmt.Errorf("task %q has no run function", task.Name)
	}
	if task.Interval <= 0 {
		return fmt.Errorf("task %q has non-positive interval", task.Name)
	}

	r.mu.Lock()
	if existing, ok := r.tasks[task.Name]; ok {
		existing.task = task
		existing.nextRun = time.Now().Add(task.Interval)
	} else {
		r.tasks[task.Name] = &entry{
			task:    task,
			nextRun: time.Now().Add(task.Interval),
		}
	}
	r.mu.Unlock()

	r.poke()
	return nil
}

// RunNow moves a task to the front of the schedule.
func (r *Registry) RunNow(name string) error {
	r.mu.Lock()
	e, ok := r.tasks[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("unknown task %q", name)
	}
	e.nextRun = time.Now()
	r.mu.Unlock()

	r.poke()
	return nil
}

// Start launches the dispatch loop. Safe to call once.
func (r *Registry) Start() {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.wg.Add(1)
	go r.loop(ctx)
}

// Stop halts dispatch and waits for in-flight task invocations to return.
func (r *Registry) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}

// Snapshot lists task statuses ordered by next run.
func (r *Registry) Snapshot() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	statuses := make([]Status, 0, len(r.tasks))
	for _, e := range r.tasks {
		status := Status{
			Name:     e.task.Name,
			Interval: e.task.Interval,
			NextRun:  e.nextRun,
			LastRun:  e.lastRun,
			Running:  e.running,
			Runs:     e.runs,
		}
		if e.lastErr != nil {
			status.LastErr = e.lastErr.Error()
		}
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool {
		if !statuses[i].NextRun.Equal(statuses[j].NextRun) {
			return statuses[i].NextRun.Before(statuses[j].NextRun)
		}
		return statuses[i].Name < statuses[j].Name
	})
	return statuses
}

// poke nudges the loop so it re-evaluates the schedule.
func (r *Registry) poke() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Registry) loop(ctx context.Context) {
	defer r.wg.Done()

	for {
		name, wait := r.next()

		var fire <-chan time.Time
		var timer *time.Timer
		if name != "" {
			timer = time.NewTimer(wait)
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-r.wake:
			if timer != nil {
				timer.Stop()
			}
		case <-fire:
			r.dispatch(ctx, name)
		}
	}
}

// next picks the task due soonest. Empty name means nothing is registered;
// the loop then sleeps until woken.
func (r *Registry) next() (string, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		name     string
		earliest time.Time
	)
	for taskName, e := range r.tasks {
		if name == "" || e.nextRun.Before(earliest) || (e.nextRun.Equal(earliest) && taskName < name) {
			name = taskName
			earliest = e.nextRun
		}
	}
	if name == "" {
		return "", 0
	}
	wait := time.Until(earliest)
	if wait < 0 {
		wait = 0
	}
	return name, wait
}

func (r *Registry) dispatch(ctx context.Context, name string) {
	r.mu.Lock()
	e, ok := r.tasks[name]
	if !ok {
		r.mu.Unlock()
		return
	}
	e.nextRun = time.Now().Add(e.task.Interval)
	if e.running {
		// Previous invocation still going; skip this tick.
		r.mu.Unlock()
		r.logger.Warn("task still running, skipping tick", logging.String(logging.FieldTask, name))
		return
	}
	e.running = true
	task := e.task
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		err := r.invoke(ctx, task)

		r.mu.Lock()
		e.running = false
		e.lastRun = time.Now()
		e.lastErr = err
		e.runs++
		r.mu.Unlock()

		if err != nil {
			r.logger.Error("task failed", logging.String(logging.FieldTask, task.Name), logging.Error(err))
		}
	}()
}

func (r *Registry) invoke(ctx context.Context, task Task) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task %s panicked: %v", task.Name, rec)
		}
	}()
	return task.Run(ctx)
}
