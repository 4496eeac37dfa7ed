package service

import (
	"context"
	"errors"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"sync"
	"worker-evaluation/pkg/metrics"
)

var (
	ErrMissingFailureHandler = errors.New("task requires a failure handler")
	ErrQueueFull             = errors.New("dispatcher queue is full")
)

// Task is a unit of background work. OnFailure is mandatory so every failure, panics included,
// ends in a terminal write owned by the submitter.
type Task struct {
	name      string
	run       func(ctx context.Context) error
	onFailure func(ctx context.Context, err error)
}

func NewTask(name string, run func(ctx context.Context) error, onFailure func(ctx context.Context, err error)) (Task, error) {
	if run == nil || onFailure == nil {
		return Task{}, ErrMissingFailureHandler
	}
	return Task{name: name, run: run, onFailure: onFailure}, nil
}

type Dispatcher struct {
	ctx      context.Context
	tasks    chan Task
	overflow chan struct{}
	done     chan struct{}
	workers  conc.WaitGroup
	pending  sync.WaitGroup
	mu       sync.Mutex
	stopped  bool
}

// NewDispatcher starts workers goroutines. Tasks run with a context detached from ctx's
// cancellation so a claimed run still reaches its terminal write during shutdown.
// At most queueSize tasks wait in the queue and at most queueSize+workers more wait for a slot.
func NewDispatcher(ctx context.Context, workers, queueSize int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	d := &Dispatcher{
		ctx:      context.WithoutCancel(ctx),
		tasks:    make(chan Task, queueSize),
		overflow: make(chan struct{}, queueSize+workers),
		done:     make(chan struct{}),
	}
	for i := 1; i <= workers; i++ {
		workerID := i
		d.workers.Go(func() {
			d.work(workerID)
		})
	}
	return d
}

// Submit never blocks the caller. A full queue hands the task to a waiting goroutine; once those
// are exhausted too the task fails with ErrQueueFull.
func (d *Dispatcher) Submit(task Task) {
	if err := d.enqueue(task); err != nil {
		zerolog.Ctx(d.ctx).Warn().Str("task", task.name).Msg("dispatcher queue is full")
		d.fail(zerolog.Ctx(d.ctx), task, err)
	}
}

func (d *Dispatcher) enqueue(task Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		zerolog.Ctx(d.ctx).Warn().Str("task", task.name).Msg("dispatcher stopped, task dropped")
		return nil
	}

	select {
	case d.tasks <- task:
		metrics.DispatcherQueued.Inc()
		return nil
	default:
	}

	select {
	case d.overflow <- struct{}{}:
	default:
		return ErrQueueFull
	}

	metrics.DispatcherQueued.Inc()
	d.pending.Add(1)
	go func() {
		defer d.pending.Done()
		defer func() { <-d.overflow }()
		select {
		case d.tasks <- task:
		case <-d.done:
			metrics.DispatcherQueued.Dec()
			zerolog.Ctx(d.ctx).Warn().Str("task", task.name).Msg("dispatcher stopped, task dropped")
		}
	}()
	return nil
}

func (d *Dispatcher) work(workerID int) {
	for {
		select {
		case <-d.done:
			return
		case task := <-d.tasks:
			metrics.DispatcherQueued.Dec()
			d.execute(workerID, task)
		}
	}
}

func (d *Dispatcher) execute(workerID int, task Task) {
	logger := zerolog.Ctx(d.ctx).With().Str("task", task.name).Int("worker_id", workerID).Logger()
	ctx := logger.WithContext(d.ctx)

	var err error
	var catcher panics.Catcher
	catcher.Try(func() {
		err = task.run(ctx)
	})
	if recovered := catcher.Recovered(); recovered != nil {
		err = recovered.AsError()
		logger.Error().Str("stack", string(recovered.Stack)).Msg("task panicked")
	}
	if err == nil {
		return
	}
	d.fail(&logger, task, err)
}

func (d *Dispatcher) fail(logger *zerolog.Logger, task Task, err error) {
	var catcher panics.Catcher
	catcher.Try(func() {
		task.onFailure(logger.WithContext(d.ctx), err)
	})
	if recovered := catcher.Recovered(); recovered != nil {
		logger.Error().Err(recovered.AsError()).Msg("failure handler panicked")
	}
}

// Stop waits for running tasks. Tasks still queued are dropped and stay pending.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.done)
	d.mu.Unlock()

	d.workers.Wait()
	d.pending.Wait()
	for {
		select {
		case task := <-d.tasks:
			metrics.DispatcherQueued.Dec()
			zerolog.Ctx(d.ctx).Warn().Str("task", task.name).Msg("dispatcher stopped, task dropped")
		default:
			return
		}
	}
}
